package bootloader

import (
	"fmt"

	"github.com/osbuild/bootloader/pkg/disk"
)

type ImageKind uint64

const (
	IMAGE_LINUX ImageKind = iota
	IMAGE_CHAINLOAD
)

func (k ImageKind) String() string {
	switch k {
	case IMAGE_LINUX:
		return "linux"
	case IMAGE_CHAINLOAD:
		return "chainload"
	default:
		panic("invalid image kind")
	}
}

// Image is one entry of the boot menu.
type Image struct {
	Kind   ImageKind
	Device *disk.Device
	Label  string

	// The remaining fields are only used for linux images.
	ShortLabel string
	Version    string
	// KernelFile and InitrdFile override the file names derived from
	// Version.
	KernelFile string
	InitrdFile string
}

func NewLinuxImage(device *disk.Device, label, short, version string) *Image {
	return &Image{
		Kind:       IMAGE_LINUX,
		Device:     device,
		Label:      label,
		ShortLabel: short,
		Version:    version,
	}
}

func NewChainImage(device *disk.Device, label string) *Image {
	return &Image{
		Kind:   IMAGE_CHAINLOAD,
		Device: device,
		Label:  label,
	}
}

func (img *Image) IsLinux() bool {
	return img.Kind == IMAGE_LINUX
}

// Kernel returns the kernel file name relative to /boot.
func (img *Image) Kernel() string {
	if !img.IsLinux() || img.KernelFile != "" || img.Version == "" {
		return img.KernelFile
	}
	return "vmlinuz-" + img.Version
}

// Initrd returns the initramfs file name relative to /boot.
func (img *Image) Initrd() string {
	if !img.IsLinux() || img.InitrdFile != "" || img.Version == "" {
		return img.InitrdFile
	}
	return "initramfs-" + img.Version + ".img"
}

func (img *Image) String() string {
	return fmt.Sprintf("%s image %q", img.Kind, img.Label)
}
