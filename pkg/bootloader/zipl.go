package bootloader

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/bootloader/pkg/disk"
	"github.com/osbuild/bootloader/pkg/runner"
)

func ziplCapabilities() Capabilities {
	c := defaultBootCapabilities.clone()
	c.Name = "ZIPL"
	c.TargetTypes = []disk.DeviceType{disk.DeviceTypeDisk, disk.DeviceTypePartition}
	c.TargetDisklabelTypes = []string{"msdos", "dasd"}
	c.TargetDescriptions = map[disk.DeviceType]string{
		disk.DeviceTypeDisk:      "IPL Device",
		disk.DeviceTypePartition: "IPL Partition",
	}
	c.BootTypes = []disk.DeviceType{disk.DeviceTypePartition, disk.DeviceTypeMDArray, disk.DeviceTypeLVMLV}
	c.BootRaidLevels = []string{disk.RAID1}
	c.PreserveArgs = []string{"cio_ignore"}
	c.ShortLabels = true
	return c
}

const ziplBootDir = "/boot"

// zipl is the s390 IPL loader. zipl itself decides which device it
// installs to.
type zipl struct {
	noUpdate
}

func (zipl) configFile(b *BootLoader) string {
	return "/etc/zipl.conf"
}

func (zipl) prepareConfig(b *BootLoader, root string) error {
	return nil
}

func (zipl) writeHeader(b *BootLoader, w io.Writer, root string) error {
	fmt.Fprintf(w, "[defaultboot]\ntimeout=%d\ndefault=%s\ntarget=%s\n",
		b.Timeout(), b.imageLabel(b.Default()), ziplBootDir)
	return nil
}

func (zipl) writeImages(b *BootLoader, w io.Writer) error {
	root := b.graph.RootDevice()
	if root == nil {
		return fmt.Errorf("%w: no root device", ErrLookupFailure)
	}
	for _, img := range b.Images() {
		if !img.IsLinux() {
			continue
		}
		initrdLine := ""
		if initrd := img.Initrd(); initrd != "" {
			initrdLine = fmt.Sprintf("\tramdisk=%s/%s\n", ziplBootDir, initrd)
		}
		args := NewArgumentList("root=" + root.FstabSpec())
		args.Extend(b.bootArgs.Args()...)
		fmt.Fprintf(w, "[%s]\n\timage=%s/%s\n%s\tparameters=\"%s\"\n",
			b.imageLabel(img), ziplBootDir, img.Kernel(), initrdLine, args)
	}
	return nil
}

func (zipl) finishConfig(b *BootLoader, root string) {}

var (
	ziplDevicePrefix = "Preparing boot device: "
	// e.g. "dasdb (0200)." or "dasdl."
	ziplDeviceSuffix = regexp.MustCompile(`(\s\(.+\))?\.$`)
)

// ParseZIPLDevice returns the name of the IPL device from zipl's output,
// or "" if the output does not name one.
func ParseZIPLDevice(output string) string {
	for _, line := range strings.Split(output, "\n") {
		if name, ok := strings.CutPrefix(strings.TrimSpace(line), ziplDevicePrefix); ok {
			return ziplDeviceSuffix.ReplaceAllString(name, "")
		}
	}
	return ""
}

func (zipl) install(b *BootLoader, root string) error {
	out, rc, err := runner.Capture(b.runner, &runner.Cmd{Name: "zipl", Root: root})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInstallFailure, err)
	}
	logrus.Debugf("zipl output:\n%s", out)
	if rc != 0 {
		return fmt.Errorf("%w: zipl exited with status %d", ErrInstallFailure, rc)
	}

	name := ParseZIPLDevice(out)
	if name == "" {
		return nil
	}
	d := b.graph.DeviceByName(name)
	if d == nil {
		return fmt.Errorf("%w: could not find IPL device %q", ErrLookupFailure, name)
	}
	return b.SetStage1Device(d)
}
