// Package runner executes the external programs that install bootloaders,
// optionally inside the target system root.
package runner

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/bootloader/pkg/shutil"
)

// Cmd describes one program invocation.
type Cmd struct {
	Name string
	Args []string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Root is the directory the program is chrooted into. Empty or "/"
	// runs it on the host.
	Root string
}

func (c *Cmd) String() string {
	return shutil.QuoteCmd(append([]string{c.Name}, c.Args...)...)
}

func (c *Cmd) chroot() bool {
	return c.Root != "" && c.Root != "/"
}

// Runner runs a command to completion and returns its exit status. The
// error is only set if the program could not be run at all.
type Runner interface {
	Run(cmd *Cmd) (int, error)
}

// Host runs commands with os/exec.
type Host struct{}

func (Host) Run(c *Cmd) (int, error) {
	cmd := exec.Command(c.Name, c.Args...)
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	if c.chroot() {
		cmd.SysProcAttr = &syscall.SysProcAttr{Chroot: c.Root}
		cmd.Dir = "/"
	}

	logrus.Debugf("running %s (root %q)", c, c.Root)
	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		logrus.Infof("%s exited with status %d", c.Name, exitErr.ExitCode())
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, fmt.Errorf("cannot run %s: %w", c.Name, err)
	}
	return 0, nil
}

// Capture runs cmd and returns its combined output. A Stdout or Stderr
// already set on cmd is replaced.
func Capture(r Runner, cmd *Cmd) (string, int, error) {
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	rc, err := r.Run(cmd)
	return out.String(), rc, err
}
