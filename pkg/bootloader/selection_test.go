package bootloader_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/bootloader/internal/testdisk"
	"github.com/osbuild/bootloader/pkg/bootloader"
	"github.com/osbuild/bootloader/pkg/datasizes"
	"github.com/osbuild/bootloader/pkg/disk"
)

func twoDiskTree(t *testing.T, labelType string) *disk.Tree {
	t.Helper()
	tree := disk.NewTree()
	sda := testdisk.MakeFakeDisk("sda", labelType)
	sdb := testdisk.MakeFakeDisk("sdb", labelType)
	for _, d := range []*disk.Device{
		sda, testdisk.MakeFakePartition(sda, 1, "/"),
		sdb, testdisk.MakeFakePartition(sdb, 1, "/home"),
	} {
		require.NoError(t, tree.Add(d))
	}
	return tree
}

func names(devices []*disk.Device) []string {
	var n []string
	for _, d := range devices {
		n = append(n, d.Name)
	}
	return n
}

func TestTargetDevicesDeterministic(t *testing.T) {
	b, _ := newBootLoader(t, bootloader.KIND_GRUB, twoDiskTree(t, "msdos"), bootloader.Options{})
	first := b.TargetDevices()
	assert.Equal(t, []string{"sda", "sdb", "sda1", "sdb1"}, names(first))
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, b.TargetDevices())
	}
}

func TestDriveOrder(t *testing.T) {
	tree := twoDiskTree(t, "msdos")
	b, _ := newBootLoader(t, bootloader.KIND_GRUB, tree, bootloader.Options{})
	assert.Equal(t, []string{"sda", "sdb"}, names(b.Drives()))

	b.SetDriveOrder([]string{"sdb", "sda"})
	assert.Equal(t, []string{"sdb", "sda"}, b.DriveOrder())
	assert.Equal(t, []string{"sdb", "sda"}, names(b.Drives()))
	assert.Equal(t, []string{"sdb", "sda", "sda1", "sdb1"}, names(b.TargetDevices()))

	stage1, err := b.Stage1Device()
	require.NoError(t, err)
	assert.Equal(t, "sdb", stage1.Name)

	name, err := b.GrubDeviceName(tree.DeviceByName("sdb1"))
	require.NoError(t, err)
	assert.Equal(t, "(hd0,0)", name)
	name, err = b.GrubDeviceName(tree.DeviceByName("sda"))
	require.NoError(t, err)
	assert.Equal(t, "(hd1)", name)
}

func TestDriveOrderPartialAndUnknown(t *testing.T) {
	b, _ := newBootLoader(t, bootloader.KIND_GRUB, twoDiskTree(t, "msdos"), bootloader.Options{})
	b.SetDriveOrder([]string{"sdz", "sdb"})
	assert.Equal(t, []string{"sdb", "sda"}, names(b.Drives()))
}

func TestSetPreferredStage1Type(t *testing.T) {
	tree := twoDiskTree(t, "msdos")

	b, _ := newBootLoader(t, bootloader.KIND_GRUB, tree, bootloader.Options{})
	require.NoError(t, b.SetPreferredStage1Type("partition"))
	assert.Equal(t, []string{"sda1", "sdb1", "sda", "sdb"}, names(b.TargetDevices()))

	require.NoError(t, b.SetPreferredStage1Type("mbr"))
	assert.Equal(t, []string{"sda", "sdb", "sda1", "sdb1"}, names(b.TargetDevices()))

	assert.ErrorIs(t, b.SetPreferredStage1Type("lvmlv"), bootloader.ErrInvalidDevice)
}

func TestIsValidTargetDevice(t *testing.T) {
	efiTree := testdisk.MakeFakeTree("gpt", "/boot/efi", "/boot", "/")
	prepTree := testdisk.MakeFakeTree("msdos", "prepboot", "/")
	prepGPTTree := testdisk.MakeFakeTree("gpt", "prepboot", "/")
	macTree := testdisk.MakeFakeTree("mac", "appleboot", "/")
	sunTree := testdisk.MakeFakeTree("sun", "/boot", "/")

	tests := []struct {
		name  string
		kind  bootloader.Kind
		tree  *disk.Tree
		dev   string
		valid bool
	}{
		{"grub-mbr", bootloader.KIND_GRUB, efiTree, "sda", true},
		{"grub-partition", bootloader.KIND_GRUB, efiTree, "sda2", true},
		{"grub-sun-label", bootloader.KIND_GRUB, sunTree, "sda", false},
		{"efi-esp", bootloader.KIND_EFI_GRUB, efiTree, "sda1", true},
		{"efi-disk", bootloader.KIND_EFI_GRUB, efiTree, "sda", false},
		{"efi-ext4", bootloader.KIND_EFI_GRUB, efiTree, "sda2", false},
		{"ipseries-prep", bootloader.KIND_IPSERIES_YABOOT, prepTree, "sda1", true},
		{"ipseries-prep-gpt", bootloader.KIND_IPSERIES_YABOOT, prepGPTTree, "sda1", false},
		{"ipseries-root", bootloader.KIND_IPSERIES_YABOOT, prepTree, "sda2", false},
		{"yaboot-prep-gpt", bootloader.KIND_YABOOT, prepGPTTree, "sda1", true},
		{"mac-appleboot", bootloader.KIND_MAC_YABOOT, macTree, "sda1", true},
		{"mac-prep", bootloader.KIND_MAC_YABOOT, prepTree, "sda1", false},
		{"zipl-disk", bootloader.KIND_ZIPL, prepTree, "sda", true},
		{"silo-partition", bootloader.KIND_SILO, sunTree, "sda1", true},
		{"silo-disk", bootloader.KIND_SILO, sunTree, "sda", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b, _ := newBootLoader(t, tc.kind, tc.tree, bootloader.Options{})
			assert.Equal(t, tc.valid, b.IsValidTargetDevice(tc.tree.DeviceByName(tc.dev)))
		})
	}
}

func TestIsValidTargetDeviceSizeBounds(t *testing.T) {
	tests := []struct {
		size  datasizes.Size
		valid bool
	}{
		{49 * datasizes.MiB, false},
		{50 * datasizes.MiB, true},
		{256 * datasizes.MiB, true},
		{257 * datasizes.MiB, false},
	}
	for _, tc := range tests {
		tree := testdisk.MakeFakeTree("gpt", "/boot/efi", "/")
		tree.DeviceByName("sda1").Size = tc.size
		b, _ := newBootLoader(t, bootloader.KIND_EFI_GRUB, tree, bootloader.Options{})
		assert.Equal(t, tc.valid, b.IsValidTargetDevice(tree.DeviceByName("sda1")), "size %d", tc.size)
	}
}

func TestIsValidTargetDeviceRejects(t *testing.T) {
	tree := testdisk.MakeFakeTree("msdos", "/boot", "/", "/home")
	tree.DeviceByName("sda1").Format.Label = disk.ReservedLabel
	tree.DeviceByName("sda2").Partition.Bootable = false
	tree.DeviceByName("sda3").Partition.Inactive = true

	b, _ := newBootLoader(t, bootloader.KIND_GRUB, tree, bootloader.Options{})
	for _, name := range []string{"sda1", "sda2", "sda3"} {
		assert.False(t, b.IsValidTargetDevice(tree.DeviceByName(name)), name)
	}
	assert.False(t, b.IsValidTargetDevice(nil))
}

func TestIsValidTargetDeviceRAIDLevel(t *testing.T) {
	tree := testdisk.MakeFakeRAIDTree("msdos")
	b, _ := newBootLoader(t, bootloader.KIND_GRUB, tree, bootloader.Options{})
	md0 := tree.DeviceByName("md0")
	assert.True(t, b.IsValidTargetDevice(md0))
	md0.RaidLevel = disk.RAID0
	assert.False(t, b.IsValidTargetDevice(md0))
}

func TestStage1Device(t *testing.T) {
	tree := testdisk.MakeFakeTree("gpt", "/boot/efi", "/boot", "/")
	b, _ := newBootLoader(t, bootloader.KIND_EFI_GRUB, tree, bootloader.Options{})
	stage1, err := b.Stage1Device()
	require.NoError(t, err)
	assert.Equal(t, "sda1", stage1.Name)

	err = b.SetStage1Device(tree.DeviceByName("sda2"))
	assert.ErrorIs(t, err, bootloader.ErrInvalidDevice)
	assert.ErrorIs(t, b.SetStage1Device(nil), bootloader.ErrInvalidDevice)

	stage1, err = b.Stage1Device()
	require.NoError(t, err)
	assert.Equal(t, "sda1", stage1.Name)
}

func TestStage1DeviceNoTargets(t *testing.T) {
	b, _ := newBootLoader(t, bootloader.KIND_EFI_GRUB, testdisk.MakeFakeTree("gpt", "/"), bootloader.Options{})
	_, err := b.Stage1Device()
	assert.ErrorIs(t, err, bootloader.ErrLookupFailure)
}

func TestStage2Device(t *testing.T) {
	withBoot := testdisk.MakeFakeTree("msdos", "/boot", "/")
	b, _ := newBootLoader(t, bootloader.KIND_GRUB, withBoot, bootloader.Options{})
	assert.Equal(t, "sda1", b.Stage2Device().Name)
	// kernel paths are relative to the /boot filesystem
	assert.Equal(t, "", b.BootPrefix())
	name, err := b.GrubDeviceName(b.Stage2Device())
	require.NoError(t, err)
	assert.Equal(t, "(hd0,0)", name)

	rootOnly := testdisk.MakeFakeTree("msdos", "/")
	b, _ = newBootLoader(t, bootloader.KIND_GRUB, rootOnly, bootloader.Options{})
	assert.Equal(t, "sda1", b.Stage2Device().Name)
	assert.Equal(t, "/boot", b.BootPrefix())
	name, err = b.GrubDeviceName(b.Stage2Device())
	require.NoError(t, err)
	assert.Equal(t, "(hd0,0)", name)
}

func TestDeviceDescription(t *testing.T) {
	tree := testdisk.MakeFakeLVMTree("msdos")
	tests := []struct {
		kind bootloader.Kind
		dev  string
		desc string
	}{
		{bootloader.KIND_GRUB, "sda", "Master Boot Record"},
		{bootloader.KIND_GRUB, "sda1", "First sector of boot partition"},
		{bootloader.KIND_EFI_GRUB, "sda1", "EFI System Partition"},
		{bootloader.KIND_IPSERIES_YABOOT, "sda1", "PReP Boot Partition"},
		{bootloader.KIND_MAC_YABOOT, "sda1", "Apple Bootstrap Partition"},
		{bootloader.KIND_ZIPL, "sda", "IPL Device"},
		{bootloader.KIND_ZIPL, "sda1", "IPL Partition"},
	}
	for _, tc := range tests {
		t.Run(string(tc.kind)+"/"+tc.dev, func(t *testing.T) {
			b, _ := newBootLoader(t, tc.kind, tree, bootloader.Options{})
			desc, err := b.DeviceDescription(tree.DeviceByName(tc.dev))
			require.NoError(t, err)
			assert.Equal(t, tc.desc, desc)
		})
	}

	b, _ := newBootLoader(t, bootloader.KIND_GRUB, tree, bootloader.Options{})
	_, err := b.DeviceDescription(tree.DeviceByName("vg0-root"))
	assert.ErrorIs(t, err, bootloader.ErrInvalidDevice)
}

func TestBootableDevices(t *testing.T) {
	tree := testdisk.MakeFakeTree("msdos", "/boot", "/", "swap", "/home", "ntfs")
	b, _ := newBootLoader(t, bootloader.KIND_GRUB, tree, bootloader.Options{})
	assert.Equal(t, []string{"sda1", "sda2"}, names(b.BootableDevices()))
	assert.Equal(t, []string{"sda5"}, names(b.BootableChainDevices()))
	assert.True(t, b.HasWindows())

	efi, _ := newBootLoader(t, bootloader.KIND_EFI_GRUB, testdisk.MakeFakeTree("gpt", "/boot/efi", "vfat", "/"), bootloader.Options{})
	assert.Empty(t, efi.BootableChainDevices())
	assert.False(t, efi.HasWindows())
}

func TestBootableDevicesNeedTargets(t *testing.T) {
	tree := testdisk.MakeFakeTree("gpt", "/boot", "/")
	b, _ := newBootLoader(t, bootloader.KIND_EFI_GRUB, tree, bootloader.Options{})
	assert.Empty(t, b.BootableDevices())
}

func TestFindChainImages(t *testing.T) {
	tree := testdisk.MakeFakeTree("msdos", "ntfs", "vfat", "/")
	tree.DeviceByName("sda2").Exists = false
	b, _ := newBootLoader(t, bootloader.KIND_GRUB, tree, bootloader.Options{})

	images := b.FindChainImages("Other")
	require.Len(t, images, 1)
	assert.Equal(t, "sda1", images[0].Device.Name)
	assert.Equal(t, "Other", images[0].Label)
	assert.Equal(t, images, b.ChainImages())

	ipseries, _ := newBootLoader(t, bootloader.KIND_IPSERIES_YABOOT, testdisk.MakeFakeTree("msdos", "prepboot", "hfs+", "/"), bootloader.Options{})
	assert.Empty(t, ipseries.FindChainImages("Mac OS"))
}

func makeBootSector(t *testing.T, signed bool) string {
	t.Helper()
	block := make([]byte, 1024)
	if signed {
		block[510], block[511] = 0x55, 0xaa
	}
	p := filepath.Join(t.TempDir(), "sda1.img")
	require.NoError(t, os.WriteFile(p, block, 0644))
	return p
}

func TestWindowsBootSectorProbe(t *testing.T) {
	for _, signed := range []bool{true, false} {
		tree := testdisk.MakeFakeTree("msdos", "ntfs", "/")
		win := tree.DeviceByName("sda1")
		win.Partition.Bootable = false
		win.SectorSize = 512
		win.Path = makeBootSector(t, signed)

		b, _ := newBootLoader(t, bootloader.KIND_GRUB, tree, bootloader.Options{})
		assert.Equal(t, signed, b.HasWindows(), "signed %v", signed)
		assert.False(t, tree.Active(win))
	}
}
