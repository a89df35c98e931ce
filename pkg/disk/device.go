package disk

import (
	"fmt"
	"slices"
	"strings"

	"github.com/osbuild/bootloader/pkg/datasizes"
)

type DeviceType string

const (
	DeviceTypeDisk      DeviceType = "disk"
	DeviceTypePartition DeviceType = "partition"
	DeviceTypeMDArray   DeviceType = "mdarray"
	DeviceTypeLVMLV     DeviceType = "lvmlv"
	DeviceTypeLUKS      DeviceType = "luks"
	DeviceTypeDMRaid    DeviceType = "dmraid"
	DeviceTypeISCSI     DeviceType = "iscsi"
)

func (t DeviceType) valid() bool {
	switch t {
	case DeviceTypeDisk, DeviceTypePartition, DeviceTypeMDArray, DeviceTypeLVMLV,
		DeviceTypeLUKS, DeviceTypeDMRaid, DeviceTypeISCSI:
		return true
	}
	return false
}

const (
	RAID0  = "raid0"
	RAID1  = "raid1"
	RAID5  = "raid5"
	RAID6  = "raid6"
	RAID10 = "raid10"
)

// ReservedLabel marks the installer's own media. Devices carrying it are
// never bootloader targets.
const ReservedLabel = "ANACONDA"

// Format describes what is on a device.
type Format struct {
	// Type is the format type, e.g. "ext4", "efi", "swap", "prepboot" or
	// "disklabel" for partitioned disks.
	Type       string
	Mountpoint string
	Label      string
	UUID       string

	// LabelType is the disklabel type ("msdos", "gpt", "dasd", "mac",
	// "sun") when Type is "disklabel".
	LabelType string
}

var mountableFormats = []string{
	"ext2", "ext3", "ext4", "xfs", "btrfs", "vfat", "efi", "hfs", "hfs+", "ntfs",
}

// HasMountpoint returns true if the format is a filesystem that can be
// mounted.
func (f Format) HasMountpoint() bool {
	return slices.Contains(mountableFormats, f.Type)
}

// PartitionInfo holds the attributes that only partitions have.
type PartitionInfo struct {
	Number   int
	Bootable bool
	// Inactive is set for extended and free-space partitions.
	Inactive bool
}

// ISCSITarget identifies the network target backing an iscsi disk.
type ISCSITarget struct {
	Address  string
	Port     int
	IQN      string
	User     string
	Password string
}

// Device is a node of the storage device graph. The bootloader code only
// reads devices; activation state is owned by the graph.
type Device struct {
	Name string
	Type DeviceType
	Path string
	Size datasizes.Size
	// SectorSize in bytes, zero if unknown.
	SectorSize uint64
	Exists     bool

	Format    Format
	Partition *PartitionInfo

	// UUID of the container itself (md array UUID), not of its format.
	UUID      string
	RaidLevel string

	// VGName and LVName identify a logical volume.
	VGName string
	LVName string

	ISCSI *ISCSITarget

	Parents []*Device
}

func (d *Device) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.Type)
}

// DevPath returns the device node path.
func (d *Device) DevPath() string {
	if d.Path != "" {
		return d.Path
	}
	if d.Type == DeviceTypeLVMLV && d.VGName != "" {
		return fmt.Sprintf("/dev/mapper/%s-%s", strings.ReplaceAll(d.VGName, "-", "--"), strings.ReplaceAll(d.LVName, "-", "--"))
	}
	return "/dev/" + d.Name
}

// IsDisk returns true for whole-disk devices.
func (d *Device) IsDisk() bool {
	switch d.Type {
	case DeviceTypeDisk, DeviceTypeISCSI, DeviceTypeDMRaid:
		return true
	}
	return false
}

// IsPartitioned returns true for disks carrying a disklabel.
func (d *Device) IsPartitioned() bool {
	return d.IsDisk() && d.Format.Type == "disklabel"
}

// IsNetworkStorage returns true if the device needs the network to be up
// in early boot.
func (d *Device) IsNetworkStorage() bool {
	return d.Type == DeviceTypeISCSI
}

// Disk returns the disk a partition lives on, nil for other devices.
func (d *Device) Disk() *Device {
	if d.Type != DeviceTypePartition {
		return nil
	}
	for _, p := range d.Parents {
		if p.IsDisk() {
			return p
		}
	}
	return nil
}

// PartNum returns the partition number, zero for non-partitions.
func (d *Device) PartNum() int {
	if d.Partition == nil {
		return 0
	}
	return d.Partition.Number
}

// Disks returns every whole disk the device is built on.
func (d *Device) Disks() []*Device {
	if d.IsDisk() {
		return []*Device{d}
	}
	var disks []*Device
	for _, p := range d.Parents {
		for _, disk := range p.Disks() {
			if !slices.Contains(disks, disk) {
				disks = append(disks, disk)
			}
		}
	}
	return disks
}

// DependsOn returns true if other is an ancestor of d.
func (d *Device) DependsOn(other *Device) bool {
	for _, p := range d.Parents {
		if p == other || p.DependsOn(other) {
			return true
		}
	}
	return false
}

// FstabSpec returns the spec used to refer to the device in fstab and on
// the kernel command line.
func (d *Device) FstabSpec() string {
	if d.Format.UUID != "" {
		return "UUID=" + d.Format.UUID
	}
	return d.DevPath()
}
