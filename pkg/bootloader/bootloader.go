// Package bootloader configures and installs the bootloader of a freshly
// installed system.
package bootloader

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"

	"github.com/osbuild/bootloader/pkg/arch"
	"github.com/osbuild/bootloader/pkg/bootsector"
	"github.com/osbuild/bootloader/pkg/disk"
	"github.com/osbuild/bootloader/pkg/kcmdline"
	"github.com/osbuild/bootloader/pkg/platform"
	"github.com/osbuild/bootloader/pkg/runner"
)

type Kind string

const (
	KIND_GRUB            Kind = "grub"
	KIND_EFI_GRUB        Kind = "efi-grub"
	KIND_YABOOT          Kind = "yaboot"
	KIND_IPSERIES_YABOOT Kind = "ipseries-yaboot"
	KIND_MAC_YABOOT      Kind = "mac-yaboot"
	KIND_ZIPL            Kind = "zipl"
	KIND_SILO            Kind = "silo"
)

type variant struct {
	capabilities func() Capabilities
	flavor       func() flavor
}

var variants = map[Kind]variant{
	KIND_GRUB:            {grubCapabilities, func() flavor { return &grub{} }},
	KIND_EFI_GRUB:        {efiCapabilities, func() flavor { return &efiGrub{} }},
	KIND_YABOOT:          {yabootCapabilities, newYaboot},
	KIND_IPSERIES_YABOOT: {ipseriesCapabilities, newIPSeriesYaboot},
	KIND_MAC_YABOOT:      {macCapabilities, newMacYaboot},
	KIND_ZIPL:            {ziplCapabilities, func() flavor { return &zipl{} }},
	KIND_SILO:            {siloCapabilities, func() flavor { return &silo{} }},
}

// Kinds returns all supported bootloader kinds, sorted by name.
func Kinds() []Kind {
	kinds := maps.Keys(variants)
	slices.Sort(kinds)
	return kinds
}

func KindFromString(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := variants[k]; !ok {
		return "", fmt.Errorf("unknown bootloader %q", s)
	}
	return k, nil
}

// KindFor returns the bootloader used on the given platform.
func KindFor(p platform.Platform) (Kind, error) {
	switch p.Arch {
	case arch.ARCH_X86_64:
		if p.BootMode == platform.BOOT_UEFI {
			return KIND_EFI_GRUB, nil
		}
		return KIND_GRUB, nil
	case arch.ARCH_AARCH64:
		if p.BootMode == platform.BOOT_UEFI {
			return KIND_EFI_GRUB, nil
		}
	case arch.ARCH_PPC64, arch.ARCH_PPC64LE:
		switch p.Firmware {
		case platform.FIRMWARE_PMAC:
			return KIND_MAC_YABOOT, nil
		case platform.FIRMWARE_PSERIES, platform.FIRMWARE_ISERIES:
			return KIND_IPSERIES_YABOOT, nil
		}
		return KIND_YABOOT, nil
	case arch.ARCH_S390X:
		return KIND_ZIPL, nil
	case arch.ARCH_SPARC64:
		return KIND_SILO, nil
	}
	return "", fmt.Errorf("no bootloader for platform %s", p)
}

// DeviceGraph is the view of the storage configuration the bootloader
// works with. It is implemented by disk.Tree.
type DeviceGraph interface {
	bootsector.Activator

	Devices() []*disk.Device
	Disks() []*disk.Device
	DeviceByName(name string) *disk.Device
	Mountpoint(mnt string) *disk.Device
	RootDevice() *disk.Device
	SwapDevices() []*disk.Device
}

type Options struct {
	// Runner executes the installer programs, runner.Host{} if nil.
	Runner runner.Runner
	// Cmdline is the command line of the running kernel.
	Cmdline *kcmdline.Cmdline

	Product string
	// EFIDir is the vendor directory below /boot/efi/EFI.
	EFIDir string

	// Serial is set when the installer runs on a serial console.
	Serial       bool
	VirtPConsole string
	// MachineClass is the uname machine, only used on SPARC.
	MachineClass string
}

const (
	DefaultProduct = "Linux"
	DefaultEFIDir  = "redhat"
)

type BootLoader struct {
	kind   Kind
	caps   Capabilities
	flavor flavor

	graph   DeviceGraph
	runner  runner.Runner
	cmdline *kcmdline.Cmdline

	product      string
	efiDir       string
	serial       bool
	machineClass string

	bootArgs   *ArgumentList
	dracutArgs []string

	drives     []*disk.Device
	driveOrder []string

	timeout         *int
	Password        string
	EncryptPassword bool

	console        string
	consoleOptions string

	linuxImages  []*Image
	chainImages  []*Image
	defaultImage *Image

	stage1     *disk.Device
	updateOnly bool
}

func New(kind Kind, graph DeviceGraph, opts Options) (*BootLoader, error) {
	v, ok := variants[kind]
	if !ok {
		return nil, fmt.Errorf("unknown bootloader %q", kind)
	}
	if graph == nil {
		return nil, fmt.Errorf("bootloader %s needs a device graph", kind)
	}

	b := &BootLoader{
		kind:         kind,
		caps:         v.capabilities(),
		flavor:       v.flavor(),
		graph:        graph,
		runner:       opts.Runner,
		cmdline:      opts.Cmdline,
		product:      opts.Product,
		efiDir:       opts.EFIDir,
		serial:       opts.Serial,
		machineClass: opts.MachineClass,
		bootArgs:     NewArgumentList(),
	}
	if b.runner == nil {
		b.runner = runner.Host{}
	}
	if b.cmdline == nil {
		b.cmdline = kcmdline.Parse("")
	}
	if b.product == "" {
		b.product = DefaultProduct
	}
	if b.efiDir == "" {
		b.efiDir = DefaultEFIDir
	}
	b.setConsole(opts.Serial, opts.VirtPConsole)
	return b, nil
}

func (b *BootLoader) setConsole(serial bool, virtpconsole string) {
	switch {
	case serial:
		console, ok := b.cmdline.Get("console")
		if !ok || console == "" {
			console = "ttyS0"
		}
		b.console, b.consoleOptions, _ = strings.Cut(console, ",")
	case virtpconsole != "":
		b.console = strings.TrimPrefix(virtpconsole, "/dev/")
	}
}

func (b *BootLoader) Kind() Kind {
	return b.kind
}

func (b *BootLoader) Name() string {
	return b.caps.Name
}

// Capabilities returns a copy of the instance's capability tables.
func (b *BootLoader) Capabilities() Capabilities {
	return b.caps.clone()
}

func (b *BootLoader) Product() string {
	return b.product
}

// Console returns the console device name and its options, e.g. "ttyS0"
// and "115200n8".
func (b *BootLoader) Console() (string, string) {
	return b.console, b.consoleOptions
}

// Timeout in seconds. Unless set explicitly it is 5 seconds on serial
// consoles and 20 seconds otherwise.
func (b *BootLoader) Timeout() int {
	switch {
	case b.timeout != nil:
		return *b.timeout
	case strings.HasPrefix(b.console, "ttyS"):
		return 5
	}
	return 20
}

func (b *BootLoader) SetTimeout(seconds int) {
	b.timeout = &seconds
}

func (b *BootLoader) UpdateOnly() bool {
	return b.updateOnly
}

// SetUpdateOnly requests that Write only updates an existing
// installation.
func (b *BootLoader) SetUpdateOnly(value bool) error {
	if value && !b.caps.CanUpdate {
		return fmt.Errorf("%w: %s", ErrUpdateNotSupported, b.caps.Name)
	}
	if b.caps.CanUpdate {
		b.updateOnly = value
	}
	return nil
}

// BootArgs returns the kernel command line of the installed system.
func (b *BootLoader) BootArgs() *ArgumentList {
	return b.bootArgs
}

// DracutArgs returns the part of the boot arguments that the initramfs
// needs to find the root filesystem.
func (b *BootLoader) DracutArgs() []string {
	return slices.Clone(b.dracutArgs)
}

// Default returns the default image. If none is set it is the first linux
// image, or a new image for the root device labelled with the product
// name.
func (b *BootLoader) Default() *Image {
	if b.defaultImage == nil {
		if len(b.linuxImages) > 0 {
			b.defaultImage = b.linuxImages[0]
		} else {
			b.defaultImage = NewLinuxImage(b.graph.RootDevice(), b.product, "linux", "")
		}
	}
	return b.defaultImage
}

func (b *BootLoader) SetDefault(img *Image) error {
	if !slices.Contains(b.Images(), img) {
		return fmt.Errorf("%w: new default image %q not in image list", ErrLookupFailure, img.Label)
	}
	logrus.Debugf("new default image: %s", img)
	b.defaultImage = img
	return nil
}

// Images returns the images that end up in the config: all linux images
// followed by the chain images that carry a label.
func (b *BootLoader) Images() []*Image {
	images := slices.Clone(b.linuxImages)
	if len(images) == 0 {
		images = append(images, b.Default())
	}
	for _, img := range b.chainImages {
		if img.Label != "" {
			images = append(images, img)
		}
	}
	return images
}

func (b *BootLoader) LinuxImages() []*Image {
	return slices.Clone(b.linuxImages)
}

func (b *BootLoader) ChainImages() []*Image {
	return slices.Clone(b.chainImages)
}

func (b *BootLoader) AddImage(img *Image) {
	if img.IsLinux() {
		b.linuxImages = append(b.linuxImages, img)
	} else {
		b.chainImages = append(b.chainImages, img)
	}
}

func (b *BootLoader) ClearImages() {
	b.linuxImages = nil
	b.chainImages = nil
}

// imageLabel returns the label the config uses for img.
func (b *BootLoader) imageLabel(img *Image) string {
	if b.caps.ShortLabels {
		return img.ShortLabel
	}
	return img.Label
}
