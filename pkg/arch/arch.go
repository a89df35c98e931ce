package arch

import (
	"fmt"
	"runtime"
)

type Arch uint64

const ( // architecture enum
	ARCH_AARCH64 Arch = iota
	ARCH_PPC64
	ARCH_PPC64LE
	ARCH_S390X
	ARCH_SPARC64
	ARCH_X86_64
)

func (a Arch) String() string {
	switch a {
	case ARCH_AARCH64:
		return "aarch64"
	case ARCH_PPC64:
		return "ppc64"
	case ARCH_PPC64LE:
		return "ppc64le"
	case ARCH_S390X:
		return "s390x"
	case ARCH_SPARC64:
		return "sparc64"
	case ARCH_X86_64:
		return "x86_64"
	default:
		panic("invalid architecture")
	}
}

func FromString(a string) (Arch, error) {
	switch a {
	case "amd64", "x86_64":
		return ARCH_X86_64, nil
	case "arm64", "aarch64":
		return ARCH_AARCH64, nil
	case "ppc64":
		return ARCH_PPC64, nil
	case "ppc64le":
		return ARCH_PPC64LE, nil
	case "s390x":
		return ARCH_S390X, nil
	case "sparc64":
		return ARCH_SPARC64, nil
	default:
		return 0, fmt.Errorf("unsupported architecture %q", a)
	}
}

var runtimeGOARCH = runtime.GOARCH

func Current() Arch {
	a, err := FromString(runtimeGOARCH)
	if err != nil {
		panic("unsupported architecture")
	}
	return a
}

func IsX86_64() bool {
	return Current() == ARCH_X86_64
}

func IsAarch64() bool {
	return Current() == ARCH_AARCH64
}

// IsPPC is true for both the big and little endian flavours.
func IsPPC() bool {
	a := Current()
	return a == ARCH_PPC64 || a == ARCH_PPC64LE
}

func IsS390x() bool {
	return Current() == ARCH_S390X
}

func IsSPARC() bool {
	return Current() == ARCH_SPARC64
}
