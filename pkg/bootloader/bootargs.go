package bootloader

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/bootloader/pkg/disk"
)

// DracutSetupper contributes to the kernel command line of the installed
// system.
type DracutSetupper interface {
	DracutSetupString() string
}

// NetworkConfigurator provides the early boot network setup needed to
// reach network storage.
type NetworkConfigurator interface {
	DracutSetupString(d *disk.Device) string
}

type Keyboard struct {
	Keymap string
}

func (k Keyboard) DracutSetupString() string {
	if k.Keymap == "" {
		return ""
	}
	return "KEYTABLE=" + k.Keymap
}

type Language struct {
	Lang string
}

func (l Language) DracutSetupString() string {
	if l.Lang == "" {
		return ""
	}
	return "LANG=" + l.Lang
}

// rescueDefaults disable the initramfs probing for a storage technology
// unless a device needs it. The order is fixed.
var rescueDefaults = []struct {
	key, arg string
}{
	{"rd_LUKS_UUID", "rd_NO_LUKS"},
	{"rd_LVM_LV", "rd_NO_LVM"},
	{"rd_MD_UUID", "rd_NO_MD"},
	{"rd_DM_UUID", "rd_NO_DM"},
}

func (b *BootLoader) appendDracut(arg string) {
	if arg == "" {
		return
	}
	b.bootArgs.Append(arg)
	b.dracutArgs = append(b.dracutArgs, arg)
}

// SetBootArgs builds the kernel command line: the storage setup for the
// root, /boot and swap devices, the rescue defaults, whatever the extra
// objects contribute and the options preserved from the running kernel.
// network may be nil unless a network storage device is involved.
func (b *BootLoader) SetBootArgs(network NetworkConfigurator, extra ...DracutSetupper) error {
	root := b.graph.RootDevice()
	if root == nil {
		return fmt.Errorf("%w: no root device", ErrLookupFailure)
	}
	stage2 := b.Stage2Device()

	if v, _ := b.cmdline.Get("fips"); v == "1" {
		b.bootArgs.Append("boot=" + stage2.FstabSpec())
	}

	dracutDevices := []*disk.Device{root}
	if stage2 != root {
		dracutDevices = append(dracutDevices, stage2)
	}
	dracutDevices = append(dracutDevices, b.graph.SwapDevices()...)

	superseded := make(map[string]bool)
	visited := make(map[*disk.Device]bool)
	for _, device := range dracutDevices {
		for _, dep := range b.graph.Devices() {
			if dep != device && !device.DependsOn(dep) {
				continue
			}
			if visited[dep] {
				continue
			}
			setup := strings.TrimSpace(dep.DracutSetupString())
			if setup == "" {
				continue
			}
			visited[dep] = true
			b.appendDracut(setup)
			superseded[argKey(setup)] = true

			if dep.IsNetworkStorage() {
				if network == nil {
					logrus.Errorf("missing network configuration for boot command line of network storage device %s", dep.Name)
					return fmt.Errorf("%w: missing network configuration for network storage device %s", ErrInstallFailure, dep.Name)
				}
				b.appendDracut(strings.TrimSpace(network.DracutSetupString(dep)))
			}
		}
	}

	for _, rd := range rescueDefaults {
		if !superseded[rd.key] {
			b.appendDracut(rd.arg)
		}
	}

	for _, obj := range extra {
		b.appendDracut(strings.TrimSpace(obj.DracutSetupString()))
	}

	for _, opt := range slices.Concat(globalPreserveArgs, b.caps.PreserveArgs) {
		if b.cmdline.Has(opt) {
			b.bootArgs.Append(b.cmdline.Option(opt))
		}
	}
	return nil
}
