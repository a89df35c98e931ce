package bootloader_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/bootloader/internal/testdisk"
	"github.com/osbuild/bootloader/pkg/arch"
	"github.com/osbuild/bootloader/pkg/bootloader"
	"github.com/osbuild/bootloader/pkg/kcmdline"
	"github.com/osbuild/bootloader/pkg/platform"
)

func TestKinds(t *testing.T) {
	assert.Equal(t, []bootloader.Kind{
		bootloader.KIND_EFI_GRUB,
		bootloader.KIND_GRUB,
		bootloader.KIND_IPSERIES_YABOOT,
		bootloader.KIND_MAC_YABOOT,
		bootloader.KIND_SILO,
		bootloader.KIND_YABOOT,
		bootloader.KIND_ZIPL,
	}, bootloader.Kinds())

	for _, k := range bootloader.Kinds() {
		parsed, err := bootloader.KindFromString(string(k))
		assert.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := bootloader.KindFromString("lilo")
	assert.EqualError(t, err, `unknown bootloader "lilo"`)
}

func TestKindFor(t *testing.T) {
	tests := []struct {
		platform platform.Platform
		kind     bootloader.Kind
		err      string
	}{
		{platform.Platform{Arch: arch.ARCH_X86_64, BootMode: platform.BOOT_LEGACY}, bootloader.KIND_GRUB, ""},
		{platform.Platform{Arch: arch.ARCH_X86_64, BootMode: platform.BOOT_UEFI}, bootloader.KIND_EFI_GRUB, ""},
		{platform.Platform{Arch: arch.ARCH_AARCH64, BootMode: platform.BOOT_UEFI}, bootloader.KIND_EFI_GRUB, ""},
		{platform.Platform{Arch: arch.ARCH_AARCH64, BootMode: platform.BOOT_LEGACY}, "", "no bootloader for platform aarch64/legacy"},
		{platform.Platform{Arch: arch.ARCH_PPC64, Firmware: platform.FIRMWARE_PMAC}, bootloader.KIND_MAC_YABOOT, ""},
		{platform.Platform{Arch: arch.ARCH_PPC64, Firmware: platform.FIRMWARE_ISERIES}, bootloader.KIND_IPSERIES_YABOOT, ""},
		{platform.Platform{Arch: arch.ARCH_PPC64LE, Firmware: platform.FIRMWARE_PSERIES}, bootloader.KIND_IPSERIES_YABOOT, ""},
		{platform.Platform{Arch: arch.ARCH_PPC64}, bootloader.KIND_YABOOT, ""},
		{platform.Platform{Arch: arch.ARCH_S390X}, bootloader.KIND_ZIPL, ""},
		{platform.Platform{Arch: arch.ARCH_SPARC64, Machine: "sun4v"}, bootloader.KIND_SILO, ""},
	}
	for _, tc := range tests {
		t.Run(tc.platform.String(), func(t *testing.T) {
			kind, err := bootloader.KindFor(tc.platform)
			if tc.err != "" {
				assert.EqualError(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.kind, kind)
		})
	}
}

func TestNewErrors(t *testing.T) {
	_, err := bootloader.New("lilo", testdisk.MakeFakeTree("msdos", "/"), bootloader.Options{})
	assert.EqualError(t, err, `unknown bootloader "lilo"`)

	_, err = bootloader.New(bootloader.KIND_GRUB, nil, bootloader.Options{})
	assert.EqualError(t, err, "bootloader grub needs a device graph")
}

func TestNewDefaults(t *testing.T) {
	b, err := bootloader.New(bootloader.KIND_GRUB, testdisk.MakeFakeTree("msdos", "/"), bootloader.Options{})
	require.NoError(t, err)
	assert.Equal(t, bootloader.KIND_GRUB, b.Kind())
	assert.Equal(t, "GRUB", b.Name())
	assert.Equal(t, bootloader.DefaultProduct, b.Product())
	assert.Equal(t, 20, b.Timeout())
	console, options := b.Console()
	assert.Equal(t, "", console)
	assert.Equal(t, "", options)
}

func TestConsole(t *testing.T) {
	tree := testdisk.MakeFakeTree("msdos", "/")
	tests := []struct {
		name    string
		opts    bootloader.Options
		console string
		options string
		timeout int
	}{
		{
			name:    "serial-default",
			opts:    bootloader.Options{Serial: true},
			console: "ttyS0",
			timeout: 5,
		},
		{
			name:    "serial-cmdline",
			opts:    bootloader.Options{Serial: true, Cmdline: kcmdline.Parse("quiet console=ttyS1,115200n8")},
			console: "ttyS1",
			options: "115200n8",
			timeout: 5,
		},
		{
			name:    "virtpconsole",
			opts:    bootloader.Options{VirtPConsole: "/dev/hvc0"},
			console: "hvc0",
			timeout: 20,
		},
		{
			name:    "cmdline-without-serial",
			opts:    bootloader.Options{Cmdline: kcmdline.Parse("console=ttyS1")},
			timeout: 20,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b, _ := newBootLoader(t, bootloader.KIND_GRUB, tree, tc.opts)
			console, options := b.Console()
			assert.Equal(t, tc.console, console)
			assert.Equal(t, tc.options, options)
			assert.Equal(t, tc.timeout, b.Timeout())
		})
	}
}

func TestSetTimeout(t *testing.T) {
	b, _ := newBootLoader(t, bootloader.KIND_GRUB, testdisk.MakeFakeTree("msdos", "/"), bootloader.Options{Serial: true})
	b.SetTimeout(0)
	assert.Equal(t, 0, b.Timeout())
}

func TestSetUpdateOnly(t *testing.T) {
	tree := testdisk.MakeFakeTree("msdos", "/")

	grub, _ := newBootLoader(t, bootloader.KIND_GRUB, tree, bootloader.Options{})
	require.NoError(t, grub.SetUpdateOnly(true))
	assert.True(t, grub.UpdateOnly())
	require.NoError(t, grub.SetUpdateOnly(false))
	assert.False(t, grub.UpdateOnly())

	zipl, _ := newBootLoader(t, bootloader.KIND_ZIPL, tree, bootloader.Options{})
	err := zipl.SetUpdateOnly(true)
	assert.ErrorIs(t, err, bootloader.ErrUpdateNotSupported)
	assert.False(t, zipl.UpdateOnly())
	assert.NoError(t, zipl.SetUpdateOnly(false))
	assert.ErrorIs(t, zipl.Update(t.TempDir()), bootloader.ErrUpdateNotSupported)
}

func TestDefaultImage(t *testing.T) {
	tree := testdisk.MakeFakeTree("msdos", "/boot", "/")
	b, _ := newBootLoader(t, bootloader.KIND_GRUB, tree, bootloader.Options{})

	def := b.Default()
	assert.Equal(t, "Fedora", def.Label)
	assert.Equal(t, "linux", def.ShortLabel)
	assert.Equal(t, tree.RootDevice(), def.Device)
	assert.Same(t, def, b.Default())

	// the implicit default is listed but not added
	assert.Equal(t, []*bootloader.Image{def}, b.Images())
	assert.Empty(t, b.LinuxImages())
	assert.Equal(t, 0, indexOf(b.Images(), b.Default()))
}

func TestDefaultIsFirstLinuxImage(t *testing.T) {
	tree := testdisk.MakeFakeTree("msdos", "/")
	b, _ := newBootLoader(t, bootloader.KIND_GRUB, tree, bootloader.Options{})

	first := bootloader.NewLinuxImage(tree.RootDevice(), "Fedora", "linux", testKernel)
	second := bootloader.NewLinuxImage(tree.RootDevice(), "Fedora-debug", "linux-debug", testKernel+"+debug")
	b.AddImage(first)
	b.AddImage(second)
	assert.Same(t, first, b.Default())

	require.NoError(t, b.SetDefault(second))
	assert.Same(t, second, b.Default())
	assert.Equal(t, 1, indexOf(b.Images(), b.Default()))

	stranger := bootloader.NewLinuxImage(tree.RootDevice(), "Other", "other", testKernel)
	assert.ErrorIs(t, b.SetDefault(stranger), bootloader.ErrLookupFailure)
	assert.Same(t, second, b.Default())
}

func TestImagesSkipsUnlabelledChainImages(t *testing.T) {
	tree := testdisk.MakeFakeTree("msdos", "ntfs", "vfat", "/")
	b, _ := newBootLoader(t, bootloader.KIND_GRUB, tree, bootloader.Options{})
	linux := bootloader.NewLinuxImage(tree.RootDevice(), "Fedora", "linux", testKernel)
	labelled := bootloader.NewChainImage(tree.DeviceByName("sda1"), "Other")
	b.AddImage(labelled)
	b.AddImage(linux)
	b.AddImage(bootloader.NewChainImage(tree.DeviceByName("sda2"), ""))

	assert.Equal(t, []*bootloader.Image{linux, labelled}, b.Images())
	assert.Len(t, b.ChainImages(), 2)

	b.ClearImages()
	assert.Empty(t, b.LinuxImages())
	assert.Empty(t, b.ChainImages())
}

func TestCapabilitiesAreCopied(t *testing.T) {
	tree := testdisk.MakeFakeTree("msdos", "/")
	b, _ := newBootLoader(t, bootloader.KIND_GRUB, tree, bootloader.Options{})
	caps := b.Capabilities()
	caps.TargetTypes[0] = "lvmlv"
	caps.TargetDescriptions["disk"] = "changed"

	other, _ := newBootLoader(t, bootloader.KIND_GRUB, tree, bootloader.Options{})
	require.NoError(t, other.SetPreferredStage1Type("partition"))

	fresh := b.Capabilities()
	assert.Equal(t, "disk", string(fresh.TargetTypes[0]))
	assert.Equal(t, "Master Boot Record", fresh.TargetDescriptions["disk"])
}

func indexOf(images []*bootloader.Image, img *bootloader.Image) int {
	for i, candidate := range images {
		if candidate == img {
			return i
		}
	}
	return -1
}
