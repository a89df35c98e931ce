package bootloader

import (
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/bootloader/pkg/bootsector"
	"github.com/osbuild/bootloader/pkg/disk"
)

// deviceTypeIndex returns the position of the device's type in types, or
// -1. A whole disk of any kind matches a "disk" entry.
func deviceTypeIndex(d *disk.Device, types []disk.DeviceType) int {
	if idx := slices.Index(types, d.Type); idx >= 0 {
		return idx
	}
	if d.IsDisk() {
		return slices.Index(types, disk.DeviceTypeDisk)
	}
	return -1
}

func partitionUsable(d *disk.Device) bool {
	if d.Partition == nil {
		return true
	}
	return d.Partition.Bootable && !d.Partition.Inactive
}

// IsValidTargetDevice returns true if the bootloader can be installed to
// the device.
func (b *BootLoader) IsValidTargetDevice(d *disk.Device) bool {
	c := &b.caps
	if d == nil || deviceTypeIndex(d, c.TargetTypes) < 0 {
		return false
	}
	if c.TargetMinSize > 0 && d.Size < c.TargetMinSize {
		return false
	}
	if c.TargetMaxSize > 0 && d.Size > c.TargetMaxSize {
		return false
	}
	if !partitionUsable(d) {
		return false
	}
	if d.Format.Label == disk.ReservedLabel {
		return false
	}
	if d.Type == disk.DeviceTypeMDArray && len(c.TargetRaidLevels) > 0 && !slices.Contains(c.TargetRaidLevels, d.RaidLevel) {
		return false
	}
	if len(c.TargetFormatTypes) > 0 && !slices.Contains(c.TargetFormatTypes, d.Format.Type) {
		return false
	}
	if len(c.TargetDisklabelTypes) > 0 {
		for _, dsk := range d.Disks() {
			if !slices.Contains(c.TargetDisklabelTypes, dsk.Format.LabelType) {
				return false
			}
		}
	}
	if len(c.TargetMountpoints) > 0 && d.Format.HasMountpoint() && !slices.Contains(c.TargetMountpoints, d.Format.Mountpoint) {
		return false
	}
	return true
}

// TargetDevices returns all valid stage1 devices, ordered by type
// preference and then moved around according to the drive order.
func (b *BootLoader) TargetDevices() []*disk.Device {
	slots := make([][]*disk.Device, len(b.caps.TargetTypes))
	for _, d := range b.graph.Devices() {
		idx := deviceTypeIndex(d, b.caps.TargetTypes)
		if idx < 0 {
			continue
		}
		if b.IsValidTargetDevice(d) {
			slots[idx] = append(slots[idx], d)
		}
	}
	return b.sortDrives(slices.Concat(slots...))
}

// Stage1Device returns the device the bootloader is installed to. It
// defaults to the first valid target device.
func (b *BootLoader) Stage1Device() (*disk.Device, error) {
	if b.stage1 == nil {
		targets := b.TargetDevices()
		if len(targets) == 0 {
			return nil, fmt.Errorf("%w: no valid stage1 device for %s", ErrLookupFailure, b.caps.Name)
		}
		if err := b.SetStage1Device(targets[0]); err != nil {
			return nil, err
		}
	}
	return b.stage1, nil
}

func (b *BootLoader) SetStage1Device(d *disk.Device) error {
	if !b.IsValidTargetDevice(d) {
		name := "<nil>"
		if d != nil {
			name = d.Name
		}
		return fmt.Errorf("%w: %s is not a valid target device for %s", ErrInvalidDevice, name, b.caps.Name)
	}
	logrus.Debugf("new bootloader stage1 device: %s", d.Name)
	b.stage1 = d
	return nil
}

// Stage2Device returns the device holding the kernels: /boot if it is a
// separate filesystem, the root device otherwise.
func (b *BootLoader) Stage2Device() *disk.Device {
	if d := b.graph.Mountpoint("/boot"); d != nil {
		return d
	}
	return b.graph.RootDevice()
}

// SetPreferredStage1Type moves the given type to the front of the target
// type list. "mbr" is an alias for "disk".
func (b *BootLoader) SetPreferredStage1Type(preferred string) error {
	if preferred == "mbr" {
		preferred = string(disk.DeviceTypeDisk)
	}
	idx := slices.Index(b.caps.TargetTypes, disk.DeviceType(preferred))
	if idx < 0 {
		return fmt.Errorf("%w: %q is not a valid stage1 device type for %s", ErrInvalidDevice, preferred, b.caps.Name)
	}
	t := b.caps.TargetTypes[idx]
	b.caps.TargetTypes = slices.Insert(slices.Delete(b.caps.TargetTypes, idx, idx+1), 0, t)
	return nil
}

// DeviceDescription returns a human readable description of the device
// as a stage1 target.
func (b *BootLoader) DeviceDescription(d *disk.Device) (string, error) {
	idx := deviceTypeIndex(d, b.caps.TargetTypes)
	if idx < 0 {
		return "", fmt.Errorf("%w: %q is not a valid stage1 type", ErrInvalidDevice, d.Type)
	}
	desc, ok := b.caps.TargetDescriptions[b.caps.TargetTypes[idx]]
	if !ok {
		return "", fmt.Errorf("%w: no description for %q", ErrLookupFailure, b.caps.TargetTypes[idx])
	}
	return desc, nil
}

func (b *BootLoader) DriveOrder() []string {
	return slices.Clone(b.driveOrder)
}

// SetDriveOrder sets a possibly partial order of drive names.
func (b *BootLoader) SetDriveOrder(order []string) {
	logrus.Debugf("new drive order: %v", order)
	b.driveOrder = slices.Clone(order)
	b.drives = nil
}

func (b *BootLoader) sortDrives(devices []*disk.Device) []*disk.Device {
	sorted := slices.Clone(devices)
	for i := len(b.driveOrder) - 1; i >= 0; i-- {
		name := b.driveOrder[i]
		idx := slices.IndexFunc(sorted, func(d *disk.Device) bool { return d.Name == name })
		if idx < 0 {
			logrus.Warnf("drive order specifies unknown drive %s", name)
			continue
		}
		d := sorted[idx]
		sorted = slices.Insert(slices.Delete(sorted, idx, idx+1), 0, d)
	}
	return sorted
}

// Drives returns the partitioned disks sorted by drive order.
func (b *BootLoader) Drives() []*disk.Device {
	if b.drives == nil {
		var drives []*disk.Device
		for _, d := range b.graph.Disks() {
			if d.IsPartitioned() {
				drives = append(drives, d)
			}
		}
		b.drives = b.sortDrives(drives)
	}
	return slices.Clone(b.drives)
}

// IsValidBootDevice returns true if the device might contain a bootable
// OS image, linux or not.
func (b *BootLoader) IsValidBootDevice(d *disk.Device, linux, nonLinux bool) bool {
	c := &b.caps
	if deviceTypeIndex(d, c.BootTypes) < 0 {
		return false
	}
	if d.Type == disk.DeviceTypeMDArray && !slices.Contains(c.BootRaidLevels, d.RaidLevel) {
		return false
	}
	if len(b.TargetDevices()) == 0 {
		return false
	}
	if !partitionUsable(d) && !bootsector.HasWindowsBootBlock(b.graph, d) {
		return false
	}

	var formatTypes []string
	if linux {
		if len(c.BootMountpoints) > 0 && !slices.Contains(c.BootMountpoints, d.Format.Mountpoint) {
			return false
		}
		formatTypes = append(formatTypes, c.BootFormatTypes...)
	}
	if nonLinux {
		formatTypes = append(formatTypes, c.NonLinuxBootFormatTypes...)
	}
	return slices.Contains(formatTypes, d.Format.Type)
}

// BootableDevices returns the devices that may contain linux.
func (b *BootLoader) BootableDevices() []*disk.Device {
	var devices []*disk.Device
	for _, d := range b.graph.Devices() {
		if b.IsValidBootDevice(d, true, false) {
			devices = append(devices, d)
		}
	}
	return devices
}

// BootableChainDevices returns the devices that may contain other
// operating systems.
func (b *BootLoader) BootableChainDevices() []*disk.Device {
	var devices []*disk.Device
	for _, d := range b.graph.Devices() {
		if b.IsValidBootDevice(d, false, true) {
			devices = append(devices, d)
		}
	}
	return devices
}

// HasWindows returns true if another OS was found that the bootloader can
// chainload.
func (b *BootLoader) HasWindows() bool {
	return b.caps.ProbesWindows && len(b.BootableChainDevices()) > 0
}

// FindChainImages replaces the chain images with one image per existing
// device that holds another OS. The images get the given label; an empty
// label keeps them out of the config until they are labelled.
func (b *BootLoader) FindChainImages(label string) []*Image {
	b.chainImages = nil
	if !b.caps.CanDualBoot {
		return nil
	}
	for _, d := range b.BootableChainDevices() {
		if d.Exists {
			b.chainImages = append(b.chainImages, NewChainImage(d, label))
		}
	}
	return slices.Clone(b.chainImages)
}
