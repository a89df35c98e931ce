package bootloader

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/bootloader/pkg/crypt"
	"github.com/osbuild/bootloader/pkg/disk"
	"github.com/osbuild/bootloader/pkg/runner"
)

const (
	grubConfigName    = "grub.conf"
	grubDeviceMapName = "device.map"
	grubSplashName    = "splash.xpm.gz"
)

func grubCapabilities() Capabilities {
	c := defaultBootCapabilities.clone()
	c.Name = "GRUB"
	c.TargetTypes = []disk.DeviceType{disk.DeviceTypeDisk, disk.DeviceTypePartition, disk.DeviceTypeMDArray}
	c.TargetRaidLevels = []string{disk.RAID1}
	c.TargetDisklabelTypes = []string{"msdos", "gpt"}
	c.TargetDescriptions = map[disk.DeviceType]string{
		disk.DeviceTypeDisk:      "Master Boot Record",
		disk.DeviceTypePartition: "First sector of boot partition",
		disk.DeviceTypeMDArray:   "RAID Device",
	}
	c.BootTypes = []disk.DeviceType{disk.DeviceTypePartition, disk.DeviceTypeMDArray}
	c.BootRaidLevels = []string{disk.RAID1}
	c.NonLinuxBootFormatTypes = []string{"vfat", "ntfs", "hpfs"}
	c.CanDualBoot = true
	c.CanUpdate = true
	c.ProbesWindows = true
	return c
}

// grub is the legacy BIOS GRUB.
type grub struct{}

func (grub) configDir(b *BootLoader) string {
	return "/boot/grub"
}

func (g grub) configFile(b *BootLoader) string {
	return path.Join(g.configDir(b), grubConfigName)
}

func (g grub) deviceMapFile(b *BootLoader) string {
	return path.Join(g.configDir(b), grubDeviceMapName)
}

// grubConfigDir is the config directory as GRUB sees it on the stage2
// device, without the leading slash.
func (b *BootLoader) grubConfigDir(configDir string) string {
	return strings.TrimPrefix(path.Join(b.BootPrefix(), strings.TrimPrefix(configDir, "/boot")), "/")
}

// GrubDeviceName returns GRUB's name for a drive or partition, e.g.
// "(hd0)" or "(hd0,0)". Drives are numbered in drive order. RAID arrays
// are represented by their first member.
func (b *BootLoader) GrubDeviceName(d *disk.Device) (string, error) {
	for d != nil && d.Type == disk.DeviceTypeMDArray && len(d.Parents) > 0 {
		d = d.Parents[0]
	}
	if d == nil {
		return "", fmt.Errorf("%w: no device", ErrLookupFailure)
	}
	drive := d
	if d.Type == disk.DeviceTypePartition {
		drive = d.Disk()
	}
	idx := slices.Index(b.Drives(), drive)
	if idx < 0 {
		return "", fmt.Errorf("%w: %s is not on a known drive", ErrLookupFailure, d.Name)
	}
	if d.Type == disk.DeviceTypePartition {
		return fmt.Sprintf("(hd%d,%d)", idx, d.PartNum()-1), nil
	}
	return fmt.Sprintf("(hd%d)", idx), nil
}

func (g grub) prepareConfig(b *BootLoader, root string) error {
	return writeDeviceMap(b, filepath.Join(root, g.deviceMapFile(b)))
}

// writeDeviceMap maps GRUB's drive names to device nodes.
func writeDeviceMap(b *BootLoader, mapPath string) error {
	if err := backup(mapPath); err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString("# this device map was generated by bootloader-install\n")
	for _, drive := range b.Drives() {
		name, err := b.GrubDeviceName(drive)
		if err != nil {
			return err
		}
		fmt.Fprintf(&sb, "%s      %s\n", name, drive.DevPath())
	}
	if err := os.WriteFile(mapPath, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("cannot write device map: %w", err)
	}
	return nil
}

func (g grub) writeHeader(b *BootLoader, w io.Writer, root string) error {
	return writeGrubHeader(b, w, root, g.configDir(b), "")
}

// writeGrubHeader is shared by BIOS and EFI GRUB. deviceLine is written
// right after the boot= line.
func writeGrubHeader(b *BootLoader, w io.Writer, root, configDir, deviceLine string) error {
	stage1, err := b.Stage1Device()
	if err != nil {
		return err
	}
	stage2 := b.Stage2Device()
	stage2Name, err := b.GrubDeviceName(stage2)
	if err != nil {
		return err
	}

	prefix := b.BootPrefix()
	doNot := ""
	if prefix != "" {
		doNot = "do not "
	}
	fmt.Fprintf(w, "# grub.conf generated by bootloader-install\n"+
		"#\n"+
		"# Note that you do not have to rerun grub after making changes to this file\n"+
		"# NOTICE:  You %shave a /boot partition. This means that all kernel and\n"+
		"#          initrd paths are relative to %s, eg.\n"+
		"#          root %s\n"+
		"#          kernel %s/vmlinuz-version ro root=%s\n"+
		"#          initrd %s/initrd-[generic-]version.img\n",
		doNot, stage2.Format.Mountpoint, stage2Name, prefix, stage2.DevPath(), prefix)
	fmt.Fprintf(w, "boot=%s\n", stage1.DevPath())
	io.WriteString(w, deviceLine)

	def := b.Default()
	idx := slices.Index(b.Images(), def)
	if idx < 0 {
		return fmt.Errorf("%w: cannot find default image (%s)", ErrLookupFailure, def.Label)
	}
	fmt.Fprintf(w, "default=%d\n", idx)
	fmt.Fprintf(w, "timeout=%d\n", b.Timeout())

	writeGrubConsole(b, w)

	if !b.serial && exists(filepath.Join(root, configDir, grubSplashName)) {
		fmt.Fprintf(w, "splashimage=%s/%s/%s\n", stage2Name, b.grubConfigDir(configDir), grubSplashName)
		io.WriteString(w, "hiddenmenu\n")
	}

	return writeGrubPassword(b, w)
}

// writeGrubConsole also adds the console to the boot arguments.
func writeGrubConsole(b *BootLoader, w io.Writer) {
	if b.console == "" {
		return
	}
	if strings.HasPrefix(b.console, "ttyS") {
		unit := b.console[len(b.console)-1:]
		speed := "9600"
		for _, opt := range strings.Split(b.consoleOptions, ",") {
			if digits := leadingDigits(opt); digits != "" {
				speed = digits
				break
			}
		}
		fmt.Fprintf(w, "serial --unit=%s --speed=%s\n", unit, speed)
		fmt.Fprintf(w, "terminal --timeout=%d serial console\n", b.Timeout())
	}

	arg := "console=" + b.console
	if b.consoleOptions != "" {
		arg += "," + b.consoleOptions
	}
	b.bootArgs.Append(arg)
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}

func writeGrubPassword(b *BootLoader, w io.Writer) error {
	if b.Password == "" {
		return nil
	}
	password := b.Password
	if b.EncryptPassword {
		if !crypt.PasswordIsCrypted(password) {
			hashed, err := crypt.CryptSHA512(password)
			if err != nil {
				return fmt.Errorf("cannot encrypt bootloader password: %w", err)
			}
			password = hashed
		}
		password = "--encrypted " + password
	}
	fmt.Fprintf(w, "password %s\n", password)
	return nil
}

func (grub) writeImages(b *BootLoader, w io.Writer) error {
	return writeGrubImages(b, w)
}

func writeGrubImages(b *BootLoader, w io.Writer) error {
	stage2Name, err := b.GrubDeviceName(b.Stage2Device())
	if err != nil {
		return err
	}
	prefix := b.BootPrefix()
	for _, img := range b.Images() {
		if !img.IsLinux() {
			name, err := b.GrubDeviceName(img.Device)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "title %s\n\trootnoverify %s\n\tchainloader +1\n", img.Label, name)
			continue
		}
		args := NewArgumentList("ro", "root="+img.Device.FstabSpec())
		args.Extend(b.bootArgs.Args()...)
		fmt.Fprintf(w, "title %s (%s)\n\troot %s\n\tkernel %s/%s %s\n\tinitrd %s/%s\n",
			img.Label, img.Version, stage2Name, prefix, img.Kernel(), args, prefix, img.Initrd())
	}
	return nil
}

func (g grub) finishConfig(b *BootLoader, root string) {
	finishGrubConfig(b, root, g.configFile(b))
}

// finishGrubConfig links menu.lst, GRUB's default config name, and
// /etc/grub.conf to the config.
func finishGrubConfig(b *BootLoader, root, configFile string) {
	menuLst := filepath.Join(root, path.Dir(configFile), "menu.lst")
	if err := backup(menuLst); err != nil {
		logrus.Errorf("failed to back up %s: %v", menuLst, err)
	}
	symlink(grubConfigName, menuLst)

	etcGrub := filepath.Join(root, "etc", grubConfigName)
	if exists(etcGrub) {
		if err := os.Remove(etcGrub); err != nil {
			logrus.Errorf("failed to remove %s: %v", etcGrub, err)
		}
	}
	symlink(".."+configFile, etcGrub)
}

type grubTarget struct {
	stage1, stage2 *disk.Device
}

// installTargets returns the stage1/stage2 pairs GRUB is installed to.
// With /boot on a RAID1 array every member gets its own pair so the system
// stays bootable when a disk fails.
func (g grub) installTargets(b *BootLoader) ([]grubTarget, error) {
	stage1, err := b.Stage1Device()
	if err != nil {
		return nil, err
	}
	stage2 := b.Stage2Device()
	if stage2.Type != disk.DeviceTypeMDArray {
		return []grubTarget{{stage1, stage2}}, nil
	}

	for _, member := range stage2.Parents {
		if member.Type != disk.DeviceTypePartition {
			return nil, fmt.Errorf("%w: boot array member devices must be partitions", ErrInstallFailure)
		}
	}
	var targets []grubTarget
	for _, member := range stage2.Parents {
		t := grubTarget{stage1: stage1, stage2: member}
		switch {
		case stage1.IsDisk() && stage2.DependsOn(stage1):
			// the target disk holds array members: use each member's disk
			t.stage1 = member.Disk()
		case !stage1.IsDisk():
			// installing to /boot itself: use every member partition
			t.stage1 = member
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func (g grub) install(b *BootLoader, root string) error {
	if err := b.run(root, &runner.Cmd{Name: "grub-install", Args: []string{"--just-copy"}}); err != nil {
		return err
	}

	targets, err := g.installTargets(b)
	if err != nil {
		return err
	}
	configDir := g.configDir(b)
	grubDir := b.grubConfigDir(configDir)
	for _, t := range targets {
		stage1Name, err := b.GrubDeviceName(t.stage1)
		if err != nil {
			return err
		}
		stage2Name, err := b.GrubDeviceName(t.stage2)
		if err != nil {
			return err
		}
		script := fmt.Sprintf("root %[1]s\n"+
			"install --stage2=%[2]s/stage2 /%[3]s/stage1 d %[4]s /%[3]s/stage2 p %[1]s/%[3]s/%[5]s\n",
			stage2Name, configDir, grubDir, stage1Name, grubConfigName)
		if err := g.runShell(b, root, script); err != nil {
			return err
		}
	}
	return nil
}

// runShell feeds script to an interactive grub shell through a pipe.
func (g grub) runShell(b *BootLoader, root, script string) error {
	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("cannot create pipe for grub: %w", err)
	}
	defer r.Close()
	if _, err := io.WriteString(w, script); err != nil {
		w.Close()
		return fmt.Errorf("cannot write grub script: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("cannot write grub script: %w", err)
	}

	return b.run(root, &runner.Cmd{
		Name:  "grub",
		Args:  []string{"--batch", "--no-floppy", "--device-map=" + g.deviceMapFile(b)},
		Stdin: r,
	})
}

// update reinstalls stage1 and stage2 without touching the config.
func (g grub) update(b *BootLoader, root string) error {
	return g.install(b, root)
}
