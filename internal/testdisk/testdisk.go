// Package testdisk builds device trees for tests.
package testdisk

import (
	"fmt"

	"github.com/osbuild/bootloader/pkg/datasizes"
	"github.com/osbuild/bootloader/pkg/disk"
)

const (
	FakeDiskSize      = 100 * datasizes.GiB
	FakePartitionSize = 10 * datasizes.GiB

	RootFilesystemUUID = "6264d520-3fb9-423f-8ab8-7a0a8e3d3562"
	BootFilesystemUUID = "0194fdc2-fa2f-4cc0-81d3-ff12045b73c8"
	EFIFilesystemUUID  = "7b77-95e7"
	SwapUUID           = "7a6d5fa3-6f04-4cd8-a5e2-a8f21a8dd6fa"
	DataFilesystemUUID = "cb07c243-bc44-4717-853e-28852021225b"
)

// MakeFakeDisk returns a partitioned whole disk.
func MakeFakeDisk(name, labelType string) *disk.Device {
	return &disk.Device{
		Name:   name,
		Type:   disk.DeviceTypeDisk,
		Size:   FakeDiskSize,
		Exists: true,
		Format: disk.Format{Type: "disklabel", LabelType: labelType},
	}
}

// MakeFakePartition returns a bootable partition on parent. kind is a
// mountpoint ("/", "/boot", "/boot/efi", ...) or a format type without
// mountpoint ("swap", "prepboot", "appleboot", "biosboot", "ntfs", ...).
func MakeFakePartition(parent *disk.Device, num int, kind string) *disk.Device {
	p := &disk.Device{
		Name:      fmt.Sprintf("%s%d", parent.Name, num),
		Type:      disk.DeviceTypePartition,
		Size:      FakePartitionSize,
		Exists:    true,
		Partition: &disk.PartitionInfo{Number: num, Bootable: true},
		Parents:   []*disk.Device{parent},
	}
	switch kind {
	case "/":
		p.Format = disk.Format{Type: "ext4", Mountpoint: "/", UUID: RootFilesystemUUID}
	case "/boot":
		p.Size = 1 * datasizes.GiB
		p.Format = disk.Format{Type: "ext4", Mountpoint: "/boot", UUID: BootFilesystemUUID}
	case "/boot/efi":
		p.Size = 200 * datasizes.MiB
		p.Format = disk.Format{Type: "efi", Mountpoint: "/boot/efi", UUID: EFIFilesystemUUID}
	case "swap":
		p.Size = 2 * datasizes.GiB
		p.Format = disk.Format{Type: "swap", UUID: SwapUUID}
	case "prepboot":
		p.Size = 8 * datasizes.MiB
		p.Format = disk.Format{Type: "prepboot"}
	case "appleboot":
		p.Size = 1 * datasizes.MiB
		p.Format = disk.Format{Type: "appleboot"}
	case "biosboot":
		p.Size = 1 * datasizes.MiB
		p.Format = disk.Format{Type: "biosboot"}
	default:
		if len(kind) > 0 && kind[0] == '/' {
			p.Format = disk.Format{Type: "ext4", Mountpoint: kind, UUID: DataFilesystemUUID}
		} else {
			p.Format = disk.Format{Type: kind}
		}
	}
	return p
}

func mustAdd(tree *disk.Tree, devices ...*disk.Device) {
	for _, d := range devices {
		if err := tree.Add(d); err != nil {
			panic(err)
		}
	}
}

// MakeFakeTree returns a tree with one disk "sda" carrying a partition
// for every kind, numbered from 1.
func MakeFakeTree(labelType string, kinds ...string) *disk.Tree {
	tree := disk.NewTree()
	sda := MakeFakeDisk("sda", labelType)
	mustAdd(tree, sda)
	for i, kind := range kinds {
		mustAdd(tree, MakeFakePartition(sda, i+1, kind))
	}
	return tree
}

// MakeFakeLVMTree returns sda with a /boot partition and an encrypted
// physical volume holding the root and swap logical volumes of "vg0".
func MakeFakeLVMTree(labelType string) *disk.Tree {
	tree := disk.NewTree()
	sda := MakeFakeDisk("sda", labelType)
	boot := MakeFakePartition(sda, 1, "/boot")
	pv := MakeFakePartition(sda, 2, "luks")
	pv.Format.UUID = "f9f7d4ba-8e7c-4c1b-a1b5-4f8a7e1dd0a2"
	luks := &disk.Device{
		Name:    "luks-" + pv.Format.UUID,
		Type:    disk.DeviceTypeLUKS,
		Size:    pv.Size,
		Exists:  true,
		Format:  disk.Format{Type: "lvmpv"},
		Parents: []*disk.Device{pv},
	}
	root := &disk.Device{
		Name:    "vg0-root",
		Type:    disk.DeviceTypeLVMLV,
		Size:    8 * datasizes.GiB,
		Exists:  true,
		VGName:  "vg0",
		LVName:  "root",
		Format:  disk.Format{Type: "ext4", Mountpoint: "/", UUID: RootFilesystemUUID},
		Parents: []*disk.Device{luks},
	}
	swap := &disk.Device{
		Name:    "vg0-swap",
		Type:    disk.DeviceTypeLVMLV,
		Size:    2 * datasizes.GiB,
		Exists:  true,
		VGName:  "vg0",
		LVName:  "swap",
		Format:  disk.Format{Type: "swap", UUID: SwapUUID},
		Parents: []*disk.Device{luks},
	}
	mustAdd(tree, sda, boot, pv, luks, root, swap)
	return tree
}

// MakeFakeRAIDTree returns disks sda and sdb, mirrored by "md0" holding
// /boot and "md1" holding /.
func MakeFakeRAIDTree(labelType string) *disk.Tree {
	tree := disk.NewTree()
	sda := MakeFakeDisk("sda", labelType)
	sdb := MakeFakeDisk("sdb", labelType)
	sda1 := MakeFakePartition(sda, 1, "mdmember")
	sdb1 := MakeFakePartition(sdb, 1, "mdmember")
	sda2 := MakeFakePartition(sda, 2, "mdmember")
	sdb2 := MakeFakePartition(sdb, 2, "mdmember")
	md0 := &disk.Device{
		Name:      "md0",
		Type:      disk.DeviceTypeMDArray,
		Size:      1 * datasizes.GiB,
		Exists:    true,
		UUID:      "3a7e3ab8:8c1b1f1e:4c6fe2a1:5b2d0c11",
		RaidLevel: disk.RAID1,
		Format:    disk.Format{Type: "ext4", Mountpoint: "/boot", UUID: BootFilesystemUUID},
		Parents:   []*disk.Device{sda1, sdb1},
	}
	md1 := &disk.Device{
		Name:      "md1",
		Type:      disk.DeviceTypeMDArray,
		Size:      FakePartitionSize,
		Exists:    true,
		UUID:      "9d4f5c3e:0b7a6e21:f1c2d3e4:a5b6c7d8",
		RaidLevel: disk.RAID1,
		Format:    disk.Format{Type: "ext4", Mountpoint: "/", UUID: RootFilesystemUUID},
		Parents:   []*disk.Device{sda2, sdb2},
	}
	mustAdd(tree, sda, sdb, sda1, sdb1, sda2, sdb2, md0, md1)
	return tree
}
