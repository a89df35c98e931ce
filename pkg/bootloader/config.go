package bootloader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/osbuild/bootloader/pkg/runner"
)

// BackupSuffix is appended to existing files that get replaced.
const BackupSuffix = ".bak"

// flavor holds the parts of writing and installing that differ between
// bootloaders. Paths are relative to the installation root.
type flavor interface {
	configFile(b *BootLoader) string
	// prepareConfig runs before the config file is written.
	prepareConfig(b *BootLoader, root string) error
	writeHeader(b *BootLoader, w io.Writer, root string) error
	writeImages(b *BootLoader, w io.Writer) error
	// finishConfig runs after the config file is written. Failures are
	// only logged.
	finishConfig(b *BootLoader, root string)
	install(b *BootLoader, root string) error
	update(b *BootLoader, root string) error
}

// ConfigFile returns the path of the config file inside the installed
// system.
func (b *BootLoader) ConfigFile() string {
	return b.flavor.configFile(b)
}

// BootPrefix is the prefix of paths in /boot as the bootloader sees them.
// It is "/boot" if /boot is part of the root filesystem.
func (b *BootLoader) BootPrefix() string {
	if b.Stage2Device() == b.graph.RootDevice() {
		return "/boot"
	}
	return ""
}

// backup renames path to path + BackupSuffix if it exists.
func backup(path string) error {
	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.Rename(path, path+BackupSuffix); err != nil {
		return fmt.Errorf("cannot back up %s: %w", path, err)
	}
	return nil
}

// symlink points link to target, logging failures.
func symlink(target, link string) {
	if err := os.MkdirAll(filepath.Dir(link), 0755); err != nil {
		logrus.Errorf("cannot create symlink %s: %v", link, err)
		return
	}
	if err := os.Symlink(target, link); err != nil {
		logrus.Errorf("cannot create symlink %s: %v", link, err)
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// WriteConfig writes the bootloader configuration below root. An existing
// config is kept with BackupSuffix.
func (b *BootLoader) WriteConfig(root string) error {
	configFile := b.flavor.configFile(b)
	if configFile == "" {
		return fmt.Errorf("%w: %s", ErrMissingConfigPath, b.caps.Name)
	}
	configPath := filepath.Join(root, configFile)
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	if err := b.flavor.prepareConfig(b, root); err != nil {
		return err
	}
	if err := backup(configPath); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := b.flavor.writeHeader(b, &buf, root); err != nil {
		return err
	}
	if err := b.flavor.writeImages(b, &buf); err != nil {
		return err
	}
	if err := os.WriteFile(configPath, buf.Bytes(), b.caps.ConfigMode); err != nil {
		return fmt.Errorf("cannot write bootloader config: %w", err)
	}
	if err := os.Chmod(configPath, b.caps.ConfigMode); err != nil {
		logrus.Errorf("failed to set config file permissions: %v", err)
	}
	b.flavor.finishConfig(b, root)
	return nil
}

// Write writes the configuration and installs the bootloader. In
// update-only mode only the update step runs. Nothing is rolled back on
// failure.
func (b *BootLoader) Write(root string) error {
	if b.updateOnly {
		return b.Update(root)
	}
	return b.writeAndInstall(root)
}

func (b *BootLoader) writeAndInstall(root string) error {
	if err := b.WriteConfig(root); err != nil {
		return err
	}
	unix.Sync()
	return b.Install(root)
}

// Install runs the installer programs. The config must have been written.
func (b *BootLoader) Install(root string) error {
	return b.flavor.install(b, root)
}

// Update refreshes an existing installation.
func (b *BootLoader) Update(root string) error {
	if !b.caps.CanUpdate {
		return fmt.Errorf("%w: %s", ErrUpdateNotSupported, b.caps.Name)
	}
	return b.flavor.update(b, root)
}

// run executes an installer program inside root. A nonzero exit status is
// an ErrInstallFailure.
func (b *BootLoader) run(root string, cmd *runner.Cmd) error {
	cmd.Root = root
	rc, err := b.runner.Run(cmd)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInstallFailure, err)
	}
	if rc != 0 {
		return fmt.Errorf("%w: %s exited with status %d", ErrInstallFailure, cmd.Name, rc)
	}
	return nil
}

// writeRestrictedPassword writes the yaboot and silo password lines.
func writeRestrictedPassword(b *BootLoader, w io.Writer) {
	if b.Password != "" {
		fmt.Fprintf(w, "password=%s\nrestricted\n", b.Password)
	}
}

// noUpdate is embedded by flavors that cannot update an installation.
type noUpdate struct{}

func (noUpdate) update(b *BootLoader, root string) error {
	return fmt.Errorf("%w: %s", ErrUpdateNotSupported, b.caps.Name)
}
