package bootloader

import "errors"

var (
	// ErrInvalidDevice is returned when a device does not qualify as the
	// stage1 target of the bootloader.
	ErrInvalidDevice = errors.New("invalid bootloader device")

	ErrMissingConfigPath = errors.New("no config file defined for this bootloader")

	// ErrInstallFailure covers installer programs exiting with a nonzero
	// status as well as missing collaborators needed to boot the system.
	ErrInstallFailure = errors.New("bootloader install failed")

	ErrLookupFailure = errors.New("lookup failed")

	ErrUpdateNotSupported = errors.New("this bootloader does not support updates")

	// ErrNoKernels is a soft failure: nothing is installed that could be
	// booted, so the bootloader configuration is left alone.
	ErrNoKernels = errors.New("no kernel was installed")
)
