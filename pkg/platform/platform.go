// Package platform describes the firmware and machine class of the system
// a bootloader is being installed for.
package platform

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/osbuild/bootloader/pkg/arch"
)

// Firmware distinguishes the OpenFirmware flavours found on POWER
// machines. It is FIRMWARE_NONE everywhere else.
type Firmware uint64

const (
	FIRMWARE_NONE Firmware = iota
	FIRMWARE_PSERIES
	FIRMWARE_ISERIES
	FIRMWARE_PMAC
)

func (f Firmware) String() string {
	switch f {
	case FIRMWARE_NONE:
		return "none"
	case FIRMWARE_PSERIES:
		return "pseries"
	case FIRMWARE_ISERIES:
		return "iseries"
	case FIRMWARE_PMAC:
		return "pmac"
	default:
		panic("invalid firmware")
	}
}

type Platform struct {
	Arch     arch.Arch
	BootMode BootMode
	Firmware Firmware
	// Machine is the kernel's machine class, e.g. "sun4v" on SPARC.
	Machine string
}

func (p Platform) String() string {
	s := fmt.Sprintf("%s/%s", p.Arch, p.BootMode)
	if p.Firmware != FIRMWARE_NONE {
		s += "/" + p.Firmware.String()
	}
	if p.Machine != "" {
		s += "/" + p.Machine
	}
	return s
}

// Detect inspects the running system below root (normally "/") and
// returns its platform description.
func Detect(root string) (Platform, error) {
	p := Platform{
		Arch:     arch.Current(),
		BootMode: BOOT_LEGACY,
	}
	if _, err := os.Stat(filepath.Join(root, "sys/firmware/efi")); err == nil {
		p.BootMode = BOOT_UEFI
	}

	switch p.Arch {
	case arch.ARCH_PPC64, arch.ARCH_PPC64LE:
		fw, err := ppcFirmware(filepath.Join(root, "proc/cpuinfo"))
		if err != nil {
			return p, err
		}
		p.Firmware = fw
		p.BootMode = BOOT_NONE
	case arch.ARCH_S390X:
		p.BootMode = BOOT_NONE
	case arch.ARCH_SPARC64:
		p.BootMode = BOOT_NONE
		m, err := machineClass()
		if err != nil {
			return p, err
		}
		p.Machine = m
	}
	return p, nil
}

func ppcFirmware(cpuinfo string) (Firmware, error) {
	f, err := os.Open(cpuinfo)
	if err != nil {
		return FIRMWARE_NONE, fmt.Errorf("cannot detect POWER firmware: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key != "platform" && key != "machine" {
			continue
		}
		switch value = strings.TrimSpace(value); {
		case strings.Contains(value, "PowerMac"), strings.Contains(value, "PowerBook"):
			return FIRMWARE_PMAC, nil
		case strings.Contains(value, "iSeries"):
			return FIRMWARE_ISERIES, nil
		case strings.Contains(value, "pSeries"), strings.Contains(value, "CHRP"):
			return FIRMWARE_PSERIES, nil
		}
	}
	return FIRMWARE_NONE, scanner.Err()
}

func machineClass() (string, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", fmt.Errorf("cannot get machine class: %w", err)
	}
	return unix.ByteSliceToString(uts.Machine[:]), nil
}
