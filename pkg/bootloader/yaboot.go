package bootloader

import (
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/osbuild/bootloader/pkg/datasizes"
	"github.com/osbuild/bootloader/pkg/disk"
	"github.com/osbuild/bootloader/pkg/runner"
)

const yabootConfigName = "yaboot.conf"

func yabootCapabilities() Capabilities {
	c := defaultBootCapabilities.clone()
	c.Name = "Yaboot"
	c.TargetTypes = []disk.DeviceType{disk.DeviceTypePartition, disk.DeviceTypeMDArray}
	c.TargetRaidLevels = []string{disk.RAID1}
	c.TargetFormatTypes = []string{"appleboot", "prepboot"}
	c.TargetDescriptions = map[disk.DeviceType]string{
		disk.DeviceTypePartition: "Yaboot Boot Partition",
		disk.DeviceTypeMDArray:   "RAID Device",
	}
	c.BootTypes = []disk.DeviceType{disk.DeviceTypePartition, disk.DeviceTypeMDArray}
	c.BootRaidLevels = []string{disk.RAID1}
	c.NonLinuxBootFormatTypes = []string{"hfs", "hfs+"}
	c.ShortLabels = true
	return c
}

func ipseriesCapabilities() Capabilities {
	c := yabootCapabilities()
	c.Name = "Yaboot (IPSeries)"
	c.TargetFormatTypes = []string{"prepboot"}
	c.TargetDisklabelTypes = []string{"msdos"}
	c.TargetMinSize = 4 * datasizes.MiB
	c.TargetMaxSize = 10 * datasizes.MiB
	c.TargetDescriptions[disk.DeviceTypePartition] = "PReP Boot Partition"
	return c
}

func macCapabilities() Capabilities {
	c := yabootCapabilities()
	c.Name = "Yaboot (Mac)"
	c.CanDualBoot = true
	c.TargetFormatTypes = []string{"appleboot"}
	c.TargetDisklabelTypes = []string{"mac"}
	c.TargetMinSize = 800 * datasizes.KiB
	c.TargetMaxSize = 1 * datasizes.MiB
	c.TargetDescriptions[disk.DeviceTypePartition] = "Apple Bootstrap Partition"
	return c
}

// yaboot covers the OpenFirmware machines. The variants differ in the
// installer program and in a few header lines.
type yaboot struct {
	noUpdate
	prog          string
	variantHeader func(b *BootLoader, w io.Writer)
}

func newYaboot() flavor {
	return &yaboot{
		prog: "ybin",
		variantHeader: func(b *BootLoader, w io.Writer) {
			io.WriteString(w, "nonvram\nmntpoint=/boot/yaboot\nusemount\n")
		},
	}
}

func newIPSeriesYaboot() flavor {
	return &yaboot{
		prog: "mkofboot",
		variantHeader: func(b *BootLoader, w io.Writer) {
			io.WriteString(w, "nonvram\nfstype=raw\n")
		},
	}
}

func newMacYaboot() flavor {
	return &yaboot{
		prog: "mkofboot",
		variantHeader: func(b *BootLoader, w io.Writer) {
			for _, img := range b.chainImages {
				if img.Label != "" {
					fmt.Fprintf(w, "macosx=%s\n", img.Device.DevPath())
					break
				}
			}
			io.WriteString(w, "magicboot=/usr/lib/yaboot/ofboot\n")
		},
	}
}

// stage2ConfigDir returns dir below /boot if /boot is a separate
// filesystem, fallback otherwise.
func stage2ConfigDir(b *BootLoader, dir, fallback string) string {
	if b.Stage2Device().Format.Mountpoint == "/boot" {
		return dir
	}
	return fallback
}

func (y *yaboot) configFile(b *BootLoader) string {
	return path.Join(stage2ConfigDir(b, "/boot/etc", "/etc"), yabootConfigName)
}

func (y *yaboot) prepareConfig(b *BootLoader, root string) error {
	return nil
}

// stage2PartNum returns the partition number of the stage2 device or of
// the first member of a stage2 array.
func stage2PartNum(b *BootLoader) int {
	stage2 := b.Stage2Device()
	if stage2.Type == disk.DeviceTypeMDArray && len(stage2.Parents) > 0 {
		return stage2.Parents[0].PartNum()
	}
	return stage2.PartNum()
}

func (y *yaboot) writeHeader(b *BootLoader, w io.Writer, root string) error {
	stage1, err := b.Stage1Device()
	if err != nil {
		return err
	}
	// yaboot counts the timeout in tenths of a second
	fmt.Fprintf(w, "# yaboot.conf generated by bootloader-install\n\n"+
		"boot=%s\n"+
		"init-message=\"Welcome to %s!\\nHit <TAB> for boot options\"\n\n"+
		"partition=%d\n"+
		"timeout=%d\n"+
		"install=/usr/lib/yaboot/yaboot\n"+
		"delay=5\n"+
		"enablecdboot\n"+
		"enableofboot\n"+
		"enablenetboot\n",
		stage1.DevPath(), b.product, stage2PartNum(b), b.Timeout()*10)
	y.variantHeader(b, w)
	writeRestrictedPassword(b, w)
	io.WriteString(w, "\n")
	return nil
}

func (y *yaboot) writeImages(b *BootLoader, w io.Writer) error {
	return writeYabootSILOImages(b, w)
}

// writeYabootSILOImages writes the linux images in the syntax yaboot and
// silo share. Chain images are skipped.
func writeYabootSILOImages(b *BootLoader, w io.Writer) error {
	root := b.graph.RootDevice()
	if root == nil {
		return fmt.Errorf("%w: no root device", ErrLookupFailure)
	}
	prefix := b.BootPrefix()
	for _, img := range b.Images() {
		if !img.IsLinux() {
			continue
		}
		args := NewArgumentList()
		initrdLine := ""
		if initrd := img.Initrd(); initrd != "" {
			initrdLine = fmt.Sprintf("\tinitrd=%s/%s\n", prefix, initrd)
		}
		rootLine := ""
		if spec := root.FstabSpec(); strings.HasPrefix(spec, "/") {
			rootLine = fmt.Sprintf("\troot=%s\n", spec)
		} else {
			args.Append("root=" + spec)
		}
		args.Extend(b.bootArgs.Args()...)

		fmt.Fprintf(w, "image=%s/%s\n\tlabel=%s\n\tread-only\n%s%s\tappend=\"%s\"\n\n",
			prefix, img.Kernel(), b.imageLabel(img), initrdLine, rootLine, args)
	}
	return nil
}

// finishConfig links /etc/yaboot.conf to a config kept in /boot/etc.
func (y *yaboot) finishConfig(b *BootLoader, root string) {
	if y.configFile(b) == path.Join("/etc", yabootConfigName) {
		return
	}
	etcConf := filepath.Join(root, "etc", yabootConfigName)
	if !exists(etcConf) {
		symlink("../boot/etc/"+yabootConfigName, etcConf)
	}
}

func (y *yaboot) install(b *BootLoader, root string) error {
	return b.run(root, &runner.Cmd{Name: y.prog, Args: []string{"-f", "-C", y.configFile(b)}})
}
