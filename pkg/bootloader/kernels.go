package bootloader

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"

	"github.com/osbuild/bootloader/internal/common"
	"github.com/osbuild/bootloader/pkg/arch"
)

// Kernel is an installed kernel.
type Kernel struct {
	Version string
	Arch    string
	// Nick names the kernel flavour, "base" for the standard kernel.
	Nick string
}

// Package returns the name of the package providing the kernel.
func (k Kernel) Package() string {
	if k.Nick == "" || k.Nick == "base" {
		return "kernel"
	}
	return "kernel-" + k.Nick
}

var (
	kernelGlob = glob.MustCompile("vmlinuz-*")
	rescueGlob = glob.MustCompile("vmlinuz-0-rescue-*")
)

// kernelFlavours are recognised version suffixes, e.g. "+debug" or
// ".PAE".
var kernelFlavours = []string{"debug", "PAE", "PAEdebug", "xen", "64k", "rt"}

// ParseKernelVersion splits a kernel version into its architecture and
// flavour.
func ParseKernelVersion(version string) Kernel {
	k := Kernel{Version: version, Nick: "base"}
	rest := version
	for _, flavour := range kernelFlavours {
		if base, ok := strings.CutSuffix(rest, "+"+flavour); ok {
			k.Nick, rest = flavour, base
			break
		}
		if base, ok := strings.CutSuffix(rest, "."+flavour); ok {
			k.Nick, rest = flavour, base
			break
		}
	}
	if idx := strings.LastIndex(rest, "."); idx >= 0 {
		if a, err := arch.FromString(rest[idx+1:]); err == nil {
			k.Arch = a.String()
		}
	}
	return k
}

// DetectKernels returns the kernels installed in root's /boot, newest
// first. Rescue images are ignored.
func DetectKernels(root string) ([]Kernel, error) {
	entries, err := os.ReadDir(filepath.Join(root, "boot"))
	if err != nil {
		return nil, fmt.Errorf("cannot detect kernels: %w", err)
	}
	var kernels []Kernel
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !kernelGlob.Match(name) || rescueGlob.Match(name) {
			continue
		}
		kernels = append(kernels, ParseKernelVersion(strings.TrimPrefix(name, "vmlinuz-")))
	}
	slices.SortStableFunc(kernels, func(a, b Kernel) int {
		switch {
		case common.VersionLessThan(b.Version, a.Version):
			return -1
		case common.VersionLessThan(a.Version, b.Version):
			return 1
		}
		return 0
	})
	return kernels, nil
}

// ConfigureImages creates the linux images for the installed kernels. The
// first kernel becomes the default image, the others are labelled after
// it. It returns the package name of the default kernel. Without kernels
// nothing changes and ErrNoKernels is returned.
func (b *BootLoader) ConfigureImages(kernels []Kernel) (string, error) {
	if len(kernels) == 0 {
		logrus.Warnf("no kernel was installed -- bootloader config unchanged")
		return "", ErrNoKernels
	}

	def := b.Default()
	def.Version = kernels[0].Version
	if !slices.Contains(b.linuxImages, def) {
		b.linuxImages = slices.Insert(b.linuxImages, 0, def)
	}

	used := map[string]bool{"base": true}
	for _, k := range kernels[1:] {
		suffix := k.Nick
		switch {
		case suffix == "" || suffix == "base":
			suffix = k.Version
		case used[suffix]:
			suffix += "-" + k.Version
		}
		used[suffix] = true
		img := NewLinuxImage(b.graph.RootDevice(), def.Label+"-"+suffix, def.ShortLabel+"-"+suffix, k.Version)
		b.AddImage(img)
	}
	return kernels[0].Package(), nil
}

// WriteSysconfigKernel writes /etc/sysconfig/kernel, which tells kernel
// updates whether to become the default and which package is the default
// kernel.
func (b *BootLoader) WriteSysconfigKernel(root, defaultKernel string) error {
	update := "no"
	// only follow kernel updates if the default boots this system
	if b.Default().Device == b.graph.RootDevice() {
		update = "yes"
	}

	// PrettyFormat is package-wide
	defer func(pretty bool) { ini.PrettyFormat = pretty }(ini.PrettyFormat)
	ini.PrettyFormat = false
	cfg := ini.Empty()
	sec := cfg.Section(ini.DefaultSection)
	key, err := sec.NewKey("UPDATEDEFAULT", update)
	if err != nil {
		return err
	}
	key.Comment = "# UPDATEDEFAULT specifies if new kernels should become the default"
	key, err = sec.NewKey("DEFAULTKERNEL", defaultKernel)
	if err != nil {
		return err
	}
	key.Comment = "# DEFAULTKERNEL specifies the default kernel package type"

	p := filepath.Join(root, "etc/sysconfig/kernel")
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("cannot write %s: %w", p, err)
	}
	if err := cfg.SaveTo(p); err != nil {
		return fmt.Errorf("cannot write %s: %w", p, err)
	}
	return nil
}
