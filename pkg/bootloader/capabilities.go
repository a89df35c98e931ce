package bootloader

import (
	"maps"
	"os"
	"slices"

	"github.com/osbuild/bootloader/pkg/datasizes"
	"github.com/osbuild/bootloader/pkg/disk"
)

// Capabilities describes which devices a bootloader can be installed to
// and which devices it can boot from. Every BootLoader works on its own
// copy.
type Capabilities struct {
	Name string

	// TargetTypes is ordered by preference. The generic "disk" type also
	// matches iscsi and dmraid disks.
	TargetTypes          []disk.DeviceType
	TargetRaidLevels     []string
	TargetFormatTypes    []string
	TargetDisklabelTypes []string
	TargetMountpoints    []string
	// Size bounds are inclusive, zero means unbounded.
	TargetMinSize      datasizes.Size
	TargetMaxSize      datasizes.Size
	TargetDescriptions map[disk.DeviceType]string

	BootTypes               []disk.DeviceType
	BootRaidLevels          []string
	BootFormatTypes         []string
	BootMountpoints         []string
	NonLinuxBootFormatTypes []string

	// PreserveArgs are copied from the running kernel command line in
	// addition to the global list.
	PreserveArgs []string

	ConfigMode  os.FileMode
	CanDualBoot bool
	CanUpdate   bool
	// ProbesWindows enables the search for foreign boot sectors.
	ProbesWindows bool
	// ShortLabels selects Image.ShortLabel instead of Image.Label in
	// the rendered config.
	ShortLabels bool
}

var defaultBootCapabilities = Capabilities{
	BootFormatTypes: []string{"ext4", "ext3", "ext2"},
	BootMountpoints: []string{"/boot", "/"},
	ConfigMode:      0600,
}

func (c Capabilities) clone() Capabilities {
	c.TargetTypes = slices.Clone(c.TargetTypes)
	c.TargetRaidLevels = slices.Clone(c.TargetRaidLevels)
	c.TargetFormatTypes = slices.Clone(c.TargetFormatTypes)
	c.TargetDisklabelTypes = slices.Clone(c.TargetDisklabelTypes)
	c.TargetMountpoints = slices.Clone(c.TargetMountpoints)
	c.TargetDescriptions = maps.Clone(c.TargetDescriptions)
	c.BootTypes = slices.Clone(c.BootTypes)
	c.BootRaidLevels = slices.Clone(c.BootRaidLevels)
	c.BootFormatTypes = slices.Clone(c.BootFormatTypes)
	c.BootMountpoints = slices.Clone(c.BootMountpoints)
	c.NonLinuxBootFormatTypes = slices.Clone(c.NonLinuxBootFormatTypes)
	c.PreserveArgs = slices.Clone(c.PreserveArgs)
	return c
}

// globalPreserveArgs are kept on the installed system's command line if
// the installer was booted with them.
var globalPreserveArgs = []string{
	"speakup_synth", "apic", "noapic", "apm", "ide", "noht", "acpi",
	"video", "pci", "nodmraid", "nompath", "nomodeset", "noiswmd", "fips",
}
