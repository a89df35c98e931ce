package bootsector

import (
	"os"

	"golang.org/x/sys/unix"
)

// logicalSectorSize asks the kernel for the logical sector size of a block
// device. It returns 0 for anything that is not one.
func logicalSectorSize(f *os.File) uint64 {
	sz, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKSSZGET)
	if err != nil || sz <= 0 {
		return 0
	}
	return uint64(sz)
}
