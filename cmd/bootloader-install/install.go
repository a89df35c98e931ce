package main

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/osbuild/bootloader/internal/buildconfig"
	"github.com/osbuild/bootloader/internal/cmdutil"
	"github.com/osbuild/bootloader/internal/common"
	"github.com/osbuild/bootloader/pkg/bootloader"
	"github.com/osbuild/bootloader/pkg/disk"
	"github.com/osbuild/bootloader/pkg/kcmdline"
	"github.com/osbuild/bootloader/pkg/platform"
	"github.com/osbuild/bootloader/pkg/runner"
)

// newRunner is replaced in tests.
var newRunner = func() runner.Runner {
	return runner.Host{}
}

var detectPlatform = platform.Detect

// installation ties a configured bootloader to the system it is written
// to.
type installation struct {
	root       string
	conf       *buildconfig.Config
	tree       *disk.Tree
	bootloader *bootloader.BootLoader
}

func newInstallation(flags *pflag.FlagSet) (*installation, error) {
	treePath, err := flags.GetString("tree")
	if err != nil {
		return nil, err
	}
	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	root, err := flags.GetString("root")
	if err != nil {
		return nil, err
	}
	variant, err := flags.GetString("variant")
	if err != nil {
		return nil, err
	}
	cmdlinePath, err := flags.GetString("cmdline")
	if err != nil {
		return nil, err
	}

	conf := &buildconfig.Config{}
	if configPath != "" {
		conf, err = buildconfig.New(configPath, nil)
		if err != nil {
			return nil, err
		}
	}
	if variant != "" {
		conf.Variant = variant
	}

	tree, err := disk.ReadTree(treePath)
	if err != nil {
		return nil, fmt.Errorf("cannot load device tree: %w", err)
	}
	seed, err := cmdutil.NewRNGSeed()
	if err != nil {
		return nil, err
	}
	/* #nosec G404 */
	tree.GenUUIDs(rand.New(rand.NewSource(seed)))

	cmdline, err := kcmdline.Read(cmdlinePath)
	if err != nil {
		logrus.Warnf("%v, using an empty one", err)
		cmdline = kcmdline.Parse("")
	}
	if conf.Console.Serial != "" {
		cmdline = withConsole(cmdline, conf.Console.Serial)
	}

	var plat platform.Platform
	// SILO needs the machine class even when the variant is configured
	if conf.Variant == "" || conf.Variant == string(bootloader.KIND_SILO) {
		plat, err = detectPlatform("/")
		if err != nil {
			return nil, err
		}
	}
	kind, err := kindFor(conf, plat)
	if err != nil {
		return nil, err
	}

	opts := bootloader.Options{
		Runner:       newRunner(),
		Cmdline:      cmdline,
		Product:      conf.Product,
		EFIDir:       conf.EFIDir,
		Serial:       conf.Console.Serial != "",
		VirtPConsole: conf.Console.VirtPConsole,
		MachineClass: plat.Machine,
	}
	if osrelease, err := common.ReadOSRelease(root); err != nil {
		logrus.Debugf("no product information: %v", err)
	} else {
		if opts.Product == "" {
			opts.Product = osrelease["NAME"]
		}
		if opts.EFIDir == "" {
			opts.EFIDir = osrelease["ID"]
		}
	}

	b, err := bootloader.New(kind, tree, opts)
	if err != nil {
		return nil, err
	}
	inst := &installation{root: root, conf: conf, tree: tree, bootloader: b}
	if err := inst.configure(); err != nil {
		return nil, err
	}
	return inst, nil
}

func kindFor(conf *buildconfig.Config, plat platform.Platform) (bootloader.Kind, error) {
	if conf.Variant != "" {
		return bootloader.KindFromString(conf.Variant)
	}
	return bootloader.KindFor(plat)
}

// withConsole adds console= to the kernel command line, replacing any
// console given there.
func withConsole(cmdline *kcmdline.Cmdline, console string) *kcmdline.Cmdline {
	var opts []string
	for _, key := range cmdline.Keys() {
		if key != "console" {
			opts = append(opts, cmdline.Option(key))
		}
	}
	opts = append(opts, "console="+console)
	return kcmdline.Parse(strings.Join(opts, " "))
}

// configure applies the configuration file to the bootloader.
func (inst *installation) configure() error {
	b, conf := inst.bootloader, inst.conf

	b.SetDriveOrder(conf.DriveOrder)
	switch conf.Location {
	case "mbr", "partition":
		if err := b.SetPreferredStage1Type(conf.Location); err != nil {
			return err
		}
	}
	if conf.Stage1 != "" {
		d := inst.tree.DeviceByName(conf.Stage1)
		if d == nil {
			return fmt.Errorf("%w: unknown stage1 device %q", bootloader.ErrLookupFailure, conf.Stage1)
		}
		if err := b.SetStage1Device(d); err != nil {
			return err
		}
	}
	if conf.Timeout.IsSome() {
		b.SetTimeout(conf.Timeout.Unwrap())
	}
	b.Password = conf.Password
	b.EncryptPassword = conf.EncryptPassword
	return b.SetUpdateOnly(conf.UpdateOnly)
}

func (inst *installation) setBootArgs() error {
	b, conf := inst.bootloader, inst.conf
	err := b.SetBootArgs(nil,
		bootloader.Keyboard{Keymap: conf.Keyboard},
		bootloader.Language{Lang: conf.Language},
	)
	if err != nil {
		return err
	}
	b.BootArgs().Extend(conf.Append...)
	return nil
}

// configureImages creates the linux images for the installed kernels and
// the configured chain images. It returns the default kernel package.
func (inst *installation) configureImages() (string, error) {
	b := inst.bootloader
	kernels, err := bootloader.DetectKernels(inst.root)
	if err != nil {
		return "", err
	}
	pkg, err := b.ConfigureImages(kernels)
	if err != nil {
		return "", err
	}

	found := b.FindChainImages("")
	for _, ch := range inst.conf.Chain {
		labelled := false
		for _, img := range found {
			if img.Device.Name == ch.Device {
				img.Label = ch.Label
				labelled = true
			}
		}
		if labelled {
			continue
		}
		d := inst.tree.DeviceByName(ch.Device)
		if d == nil {
			return "", fmt.Errorf("%w: unknown chain device %q", bootloader.ErrLookupFailure, ch.Device)
		}
		b.AddImage(bootloader.NewChainImage(d, ch.Label))
	}
	return pkg, nil
}

// write configures images and boot arguments and then writes and installs
// the bootloader. With location "none" only the configuration is written.
func (inst *installation) write() error {
	b := inst.bootloader
	pkg, err := inst.configureImages()
	if errors.Is(err, bootloader.ErrNoKernels) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := inst.setBootArgs(); err != nil {
		return err
	}

	if inst.conf.Location == "none" {
		logrus.Infof("bootloader location is none, only writing the configuration")
		if err := b.WriteConfig(inst.root); err != nil {
			return err
		}
	} else {
		if err := b.Write(inst.root); err != nil {
			return err
		}
	}
	return b.WriteSysconfigKernel(inst.root, pkg)
}
