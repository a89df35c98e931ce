package bootloader

import (
	"fmt"
	"io"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/bootloader/pkg/datasizes"
	"github.com/osbuild/bootloader/pkg/disk"
	"github.com/osbuild/bootloader/pkg/runner"
)

func efiCapabilities() Capabilities {
	c := grubCapabilities()
	c.Name = "GRUB (EFI)"
	c.TargetTypes = []disk.DeviceType{disk.DeviceTypePartition, disk.DeviceTypeMDArray}
	c.TargetFormatTypes = []string{"efi"}
	c.TargetMountpoints = []string{"/boot/efi"}
	c.TargetDisklabelTypes = []string{"gpt"}
	c.TargetMinSize = 50 * datasizes.MiB
	c.TargetMaxSize = 256 * datasizes.MiB
	c.TargetDescriptions = map[disk.DeviceType]string{
		disk.DeviceTypePartition: "EFI System Partition",
		disk.DeviceTypeMDArray:   "RAID Device",
	}
	c.NonLinuxBootFormatTypes = nil
	c.CanDualBoot = false
	return c
}

// efiGrub is GRUB installed to the EFI system partition. It shares the
// config format with BIOS GRUB but registers itself with the firmware
// instead of writing boot sectors.
type efiGrub struct {
	grub
}

func (efiGrub) configDir(b *BootLoader) string {
	return path.Join("/boot/efi/EFI", b.efiDir)
}

func (e efiGrub) configFile(b *BootLoader) string {
	return path.Join(e.configDir(b), grubConfigName)
}

func (e efiGrub) deviceMapFile(b *BootLoader) string {
	return path.Join(e.configDir(b), grubDeviceMapName)
}

func (e efiGrub) prepareConfig(b *BootLoader, root string) error {
	return writeDeviceMap(b, filepath.Join(root, e.deviceMapFile(b)))
}

func (e efiGrub) writeHeader(b *BootLoader, w io.Writer, root string) error {
	line, err := e.deviceLine(b)
	if err != nil {
		return err
	}
	return writeGrubHeader(b, w, root, e.configDir(b), line)
}

func (e efiGrub) finishConfig(b *BootLoader, root string) {
	finishGrubConfig(b, root, e.configFile(b))
}

func (efiGrub) efibootmgr(b *BootLoader, root string, args ...string) error {
	return b.run(root, &runner.Cmd{Name: "efibootmgr", Args: args})
}

func (efiGrub) efibootmgrCapture(b *BootLoader, args ...string) (string, error) {
	out, rc, err := runner.Capture(b.runner, &runner.Cmd{Name: "efibootmgr", Args: args})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInstallFailure, err)
	}
	if rc != 0 {
		logrus.Warnf("efibootmgr %s exited with status %d", strings.Join(args, " "), rc)
	}
	return out, nil
}

// productPath returns the firmware device path of the product's boot
// entry, e.g. "HD(1,800,64000,faacb4ef-e361-455e-bd97-ca33632550c3)".
func (e efiGrub) productPath(b *BootLoader) (string, error) {
	out, err := e.efibootmgrCapture(b, "-v")
	if err != nil {
		return "", err
	}
	re := regexp.MustCompile(regexp.QuoteMeta(b.product) + `\s+(HD\(.+?\))`)
	m := re.FindStringSubmatch(out)
	if m == nil {
		return "", nil
	}
	return m[1], nil
}

func (e efiGrub) deviceLine(b *BootLoader) (string, error) {
	name, err := b.GrubDeviceName(b.Stage2Device())
	if err != nil {
		return "", err
	}
	p, err := e.productPath(b)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("device %s %s\n", name, p), nil
}

// removeBootEntries deletes every firmware boot entry whose name contains
// the product name. Entries of other products mentioning it are removed as
// well.
func (e efiGrub) removeBootEntries(b *BootLoader, root string) error {
	out, err := e.efibootmgrCapture(b)
	if err != nil {
		return err
	}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.SplitN(strings.TrimSpace(line), " ", 2)
		if len(fields) != 2 {
			continue
		}
		slot, product := fields[0], strings.TrimSpace(fields[1])
		if !strings.Contains(product, b.product) {
			continue
		}
		if len(slot) < 8 || !isDigits(slot[4:8]) {
			logrus.Warnf("failed to parse efi boot slot (%s)", slot)
			continue
		}
		if err := e.efibootmgr(b, root, "-b", slot[4:8], "-B"); err != nil {
			return fmt.Errorf("failed to remove old efi boot entry: %w", err)
		}
	}
	return nil
}

func isDigits(s string) bool {
	return s != "" && leadingDigits(s) == s
}

func (e efiGrub) addBootEntry(b *BootLoader, root string) error {
	bootEFI := b.graph.Mountpoint("/boot/efi")
	if bootEFI == nil {
		return fmt.Errorf("%w: no /boot/efi device", ErrLookupFailure)
	}
	part := bootEFI
	if bootEFI.Type == disk.DeviceTypeMDArray && len(bootEFI.Parents) > 0 {
		// the firmware only knows about partitions
		part = bootEFI.Parents[0]
	}
	bootDisk := part.Disk()
	if bootDisk == nil {
		return fmt.Errorf("%w: cannot find the disk of %s", ErrLookupFailure, bootEFI.Name)
	}

	loader := fmt.Sprintf(`\EFI\%s\grub.efi`, b.efiDir)
	if err := e.efibootmgr(b, root, "-c", "-w", "-L", b.product,
		"-d", bootDisk.DevPath(), "-p", fmt.Sprint(part.PartNum()), "-l", loader); err != nil {
		return fmt.Errorf("failed to set new efi boot target: %w", err)
	}
	return nil
}

func (e efiGrub) install(b *BootLoader, root string) error {
	if err := e.removeBootEntries(b, root); err != nil {
		return err
	}
	return e.addBootEntry(b, root)
}

// update rewrites everything, boot entries are recreated.
func (e efiGrub) update(b *BootLoader, root string) error {
	return b.writeAndInstall(root)
}
