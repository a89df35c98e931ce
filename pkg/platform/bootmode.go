package platform

import (
	"fmt"
)

type BootMode uint64

const (
	BOOT_NONE BootMode = iota
	BOOT_LEGACY
	BOOT_UEFI
)

func (m BootMode) String() string {
	switch m {
	case BOOT_NONE:
		return "none"
	case BOOT_LEGACY:
		return "legacy"
	case BOOT_UEFI:
		return "uefi"
	default:
		panic("invalid boot mode")
	}
}

var BootModeMap = make(map[string]BootMode)

func init() {
	BootModeMap["none"] = BOOT_NONE
	BootModeMap["legacy"] = BOOT_LEGACY
	BootModeMap["uefi"] = BOOT_UEFI
}

func (m *BootMode) UnmarshalText(text []byte) error {
	mode, ok := BootModeMap[string(text)]
	if !ok {
		return fmt.Errorf("unknown boot mode %q", string(text))
	}
	*m = mode
	return nil
}
