// Package bootsector reads boot sectors to find installations of other
// operating systems.
package bootsector

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/bootloader/pkg/disk"
)

const (
	BlockSize         = 512
	DefaultSectorSize = 512
)

// Activator changes the activation state of devices. It is implemented by
// the device graph.
type Activator interface {
	Active(d *disk.Device) bool
	Setup(d *disk.Device) error
	Teardown(d *disk.Device) error
}

// guard activates a device and everything it is built on for the lifetime
// of a read. Release deactivates, in reverse order, exactly the devices that
// were inactive before.
type guard struct {
	act      Activator
	acquired []*disk.Device
}

// lineage returns d and its ancestors, parents before children.
func lineage(d *disk.Device, seen map[*disk.Device]bool) []*disk.Device {
	if seen[d] {
		return nil
	}
	seen[d] = true
	var devs []*disk.Device
	for _, p := range d.Parents {
		devs = append(devs, lineage(p, seen)...)
	}
	return append(devs, d)
}

func acquire(act Activator, d *disk.Device) (*guard, error) {
	g := &guard{act: act}
	for _, dev := range lineage(d, make(map[*disk.Device]bool)) {
		if act.Active(dev) {
			continue
		}
		if err := act.Setup(dev); err != nil {
			g.release()
			return nil, err
		}
		g.acquired = append(g.acquired, dev)
	}
	return g, nil
}

func (g *guard) release() {
	for i := len(g.acquired) - 1; i >= 0; i-- {
		dev := g.acquired[i]
		if err := g.act.Teardown(dev); err != nil {
			logrus.Warnf("cannot deactivate %s after reading a boot sector: %v", dev.Name, err)
		}
	}
	g.acquired = nil
}

// ReadBootBlock reads the 512 byte block that starts seekBlocks sectors
// into the device. A device that cannot be activated yields an empty block.
func ReadBootBlock(act Activator, d *disk.Device, seekBlocks int64) ([]byte, error) {
	g, err := acquire(act, d)
	if err != nil {
		logrus.Debugf("cannot activate %s to read its boot sector: %v", d.Name, err)
		return nil, nil
	}
	defer g.release()

	f, err := os.Open(d.DevPath())
	if err != nil {
		return nil, err
	}
	defer f.Close()

	block := make([]byte, BlockSize)
	n, err := f.ReadAt(block, seekBlocks*int64(sectorSize(d, f)))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("cannot read boot block of %s: %w", d.Name, err)
	}
	return block[:n], nil
}

func sectorSize(d *disk.Device, f *os.File) uint64 {
	if d.SectorSize > 0 {
		return d.SectorSize
	}
	if sz := logicalSectorSize(f); sz > 0 {
		return sz
	}
	return DefaultSectorSize
}

// IsWindowsBootBlock returns true if block ends in the 0x55 0xAA boot
// signature.
func IsWindowsBootBlock(block []byte) bool {
	if len(block) < BlockSize {
		return false
	}
	return block[0x1fe] == 0x55 && block[0x1ff] == 0xaa
}

// HasWindowsBootBlock probes the first sector of the device. Errors are
// treated as "no foreign OS".
func HasWindowsBootBlock(act Activator, d *disk.Device) bool {
	block, err := ReadBootBlock(act, d, 0)
	if err != nil {
		logrus.Debugf("boot sector probe of %s failed: %v", d.Name, err)
		return false
	}
	return IsWindowsBootBlock(block)
}
