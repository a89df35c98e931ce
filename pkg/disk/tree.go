package disk

import (
	"fmt"
	"io"
	"math/rand"
	"slices"

	"github.com/google/uuid"
)

// Tree is an in-memory device graph. It answers the queries the bootloader
// needs and tracks which devices are active.
type Tree struct {
	devices []*Device
	byName  map[string]*Device
	active  map[*Device]bool

	// ActivateFunc, if set, is called whenever a device changes its
	// activation state. An error leaves the state unchanged.
	ActivateFunc func(d *Device, active bool) error
}

func NewTree() *Tree {
	return &Tree{
		byName: make(map[string]*Device),
		active: make(map[*Device]bool),
	}
}

// Add adds a device to the tree. Its parents must already be part of it.
func (t *Tree) Add(d *Device) error {
	if d.Name == "" {
		return fmt.Errorf("device without name")
	}
	if !d.Type.valid() {
		return fmt.Errorf("device %q: unsupported device type %q", d.Name, d.Type)
	}
	if _, ok := t.byName[d.Name]; ok {
		return fmt.Errorf("device %q: duplicate device name", d.Name)
	}
	for _, p := range d.Parents {
		if t.byName[p.Name] != p {
			return fmt.Errorf("device %q: parent %q is not part of the tree", d.Name, p.Name)
		}
	}
	t.devices = append(t.devices, d)
	t.byName[d.Name] = d
	return nil
}

// Devices returns all devices in the order they were added.
func (t *Tree) Devices() []*Device {
	return slices.Clone(t.devices)
}

// Disks returns all whole-disk devices.
func (t *Tree) Disks() []*Device {
	var disks []*Device
	for _, d := range t.devices {
		if d.IsDisk() {
			disks = append(disks, d)
		}
	}
	return disks
}

func (t *Tree) DeviceByName(name string) *Device {
	return t.byName[name]
}

// Mountpoint returns the device mounted at mnt, or nil.
func (t *Tree) Mountpoint(mnt string) *Device {
	for _, d := range t.devices {
		if d.Format.Mountpoint == mnt {
			return d
		}
	}
	return nil
}

func (t *Tree) RootDevice() *Device {
	return t.Mountpoint("/")
}

func (t *Tree) SwapDevices() []*Device {
	var swaps []*Device
	for _, d := range t.devices {
		if d.Format.Type == "swap" {
			swaps = append(swaps, d)
		}
	}
	return swaps
}

func (t *Tree) Active(d *Device) bool {
	return t.active[d]
}

// SetActive records the activation state without calling ActivateFunc.
func (t *Tree) SetActive(d *Device, active bool) {
	t.active[d] = active
}

func (t *Tree) setState(d *Device, active bool) error {
	if t.active[d] == active {
		return nil
	}
	if t.ActivateFunc != nil {
		if err := t.ActivateFunc(d, active); err != nil {
			return fmt.Errorf("cannot change state of %s: %w", d.Name, err)
		}
	}
	t.active[d] = active
	return nil
}

// Setup activates the device and everything it is built on.
func (t *Tree) Setup(d *Device) error {
	for _, p := range d.Parents {
		if err := t.Setup(p); err != nil {
			return err
		}
	}
	return t.setState(d, true)
}

// Teardown deactivates the device itself. Its parents are left alone.
func (t *Tree) Teardown(d *Device) error {
	return t.setState(d, false)
}

func newRandomUUIDFromReader(r io.Reader) (uuid.UUID, error) {
	return uuid.NewRandomFromReader(r)
}

// GenUUIDs assigns random UUIDs to every filesystem, swap and md array
// that has none yet.
func (t *Tree) GenUUIDs(rng *rand.Rand) {
	for _, d := range t.devices {
		if d.Format.UUID == "" && (d.Format.HasMountpoint() || d.Format.Type == "swap" || d.Format.Type == "luks") {
			d.Format.UUID = uuid.Must(newRandomUUIDFromReader(rng)).String()
		}
		if d.Type == DeviceTypeMDArray && d.UUID == "" {
			d.UUID = uuid.Must(newRandomUUIDFromReader(rng)).String()
		}
	}
}
