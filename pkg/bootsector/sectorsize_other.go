//go:build !linux

package bootsector

import (
	"os"
)

func logicalSectorSize(f *os.File) uint64 {
	return 0
}
