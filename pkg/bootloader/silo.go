package bootloader

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/osbuild/bootloader/pkg/disk"
	"github.com/osbuild/bootloader/pkg/runner"
)

const (
	siloConfigName  = "silo.conf"
	siloMessageFile = "/etc/silo.message"
)

func siloCapabilities() Capabilities {
	c := defaultBootCapabilities.clone()
	c.Name = "SILO"
	c.TargetTypes = []disk.DeviceType{disk.DeviceTypePartition}
	c.TargetDisklabelTypes = []string{"sun"}
	c.TargetDescriptions = map[disk.DeviceType]string{
		disk.DeviceTypePartition: "First sector of boot partition",
	}
	c.BootTypes = []disk.DeviceType{disk.DeviceTypePartition}
	c.ShortLabels = true
	return c
}

// silo is the SPARC loader.
type silo struct {
	noUpdate
}

func (silo) configDir(b *BootLoader) string {
	return stage2ConfigDir(b, "/boot", "/etc")
}

func (s silo) configFile(b *BootLoader) string {
	return path.Join(s.configDir(b), siloConfigName)
}

// prepareConfig writes the banner shown by silo.
func (silo) prepareConfig(b *BootLoader, root string) error {
	messagePath := filepath.Join(root, siloMessageFile)
	if err := os.MkdirAll(filepath.Dir(messagePath), 0755); err != nil {
		return fmt.Errorf("cannot write silo message: %w", err)
	}
	msg := fmt.Sprintf("Welcome to %s!\nHit <TAB> for boot options\n\n", b.product)
	if err := os.WriteFile(messagePath, []byte(msg), 0600); err != nil {
		return fmt.Errorf("cannot write silo message: %w", err)
	}
	return os.Chmod(messagePath, 0600)
}

func (silo) writeHeader(b *BootLoader, w io.Writer, root string) error {
	stage1, err := b.Stage1Device()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "# silo.conf generated by bootloader-install\n\n"+
		"#boot=%s\n"+
		"message=%s\n"+
		"timeout=%d\n"+
		"partition=%d\n"+
		"default=%s\n",
		stage1.DevPath(), siloMessageFile, b.Timeout(), stage1.PartNum(), b.imageLabel(b.Default()))
	writeRestrictedPassword(b, w)
	return nil
}

func (silo) writeImages(b *BootLoader, w io.Writer) error {
	return writeYabootSILOImages(b, w)
}

// finishConfig links /etc/silo.conf to a config kept in /boot.
func (s silo) finishConfig(b *BootLoader, root string) {
	if s.configDir(b) != "/boot" {
		return
	}
	etcConf := filepath.Join(root, "etc", siloConfigName)
	if !exists(etcConf) {
		symlink("../boot/"+siloConfigName, etcConf)
	}
}

func (s silo) install(b *BootLoader, root string) error {
	args := []string{"-f", "-C", s.configFile(b), "-S", path.Join(s.configDir(b), "backup.b")}
	switch b.machineClass {
	case "sun4u", "sun4v":
		args = append(args, "-u")
	default:
		args = append(args, "-U")
	}
	return b.run(root, &runner.Cmd{Name: "silo", Args: args})
}
