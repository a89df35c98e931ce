package disk_test

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/bootloader/pkg/datasizes"
	"github.com/osbuild/bootloader/pkg/disk"
)

const treeYAML = `
devices:
  - name: sda
    type: disk
    size: 20 GiB
    active: true
    format: {type: disklabel, label_type: msdos}
  - name: sda1
    type: partition
    size: 500 MiB
    parents: [sda]
    partition: {number: 1, bootable: true}
    format: {type: ext4, mountpoint: /boot}
  - name: sda2
    type: partition
    parents: [sda]
    partition: {number: 2}
    format: {type: swap}
  - name: sda3
    type: partition
    parents: [sda]
    partition: {number: 3}
    exists: false
    format: {type: xfs, mountpoint: /, uuid: 6a1e2a4c-58b1-4a47-8d0a-1b0ad8a9f3c2}
`

func TestLoadTree(t *testing.T) {
	tree, err := disk.LoadTree(strings.NewReader(treeYAML))
	require.NoError(t, err)

	require.Len(t, tree.Devices(), 4)
	sda := tree.DeviceByName("sda")
	require.NotNil(t, sda)
	assert.Equal(t, datasizes.Size(20*datasizes.GiB), sda.Size)
	assert.Equal(t, "msdos", sda.Format.LabelType)
	assert.True(t, sda.Exists)
	assert.True(t, tree.Active(sda))

	sda1 := tree.DeviceByName("sda1")
	assert.Equal(t, []*disk.Device{sda}, sda1.Parents)
	assert.Equal(t, &disk.PartitionInfo{Number: 1, Bootable: true}, sda1.Partition)
	assert.False(t, tree.Active(sda1))

	assert.Equal(t, sda1, tree.Mountpoint("/boot"))
	assert.Equal(t, "sda3", tree.RootDevice().Name)
	assert.False(t, tree.RootDevice().Exists)
	assert.Equal(t, []*disk.Device{tree.DeviceByName("sda2")}, tree.SwapDevices())
	assert.Equal(t, []*disk.Device{sda}, tree.Disks())
	assert.Nil(t, tree.Mountpoint("/home"))
}

func TestLoadTreeErrors(t *testing.T) {
	for _, tc := range []struct {
		input string
		err   string
	}{
		{"devices:\n  - name: sda1\n    type: partition\n    parents: [sda]\n", `device "sda1": unknown parent "sda"`},
		{"devices:\n  - name: sda\n    type: floppy\n", `device "sda": unsupported device type "floppy"`},
		{"devices:\n  - name: sda\n    type: disk\n  - name: sda\n    type: disk\n", `device "sda": duplicate device name`},
		{"devices:\n  - name: sda\n    type: disk\n    colour: red\n", "cannot decode device tree: "},
	} {
		_, err := disk.LoadTree(strings.NewReader(tc.input))
		assert.ErrorContains(t, err, tc.err)
	}
}

func TestTreeAddForeignParent(t *testing.T) {
	tree := disk.NewTree()
	sda := &disk.Device{Name: "sda", Type: disk.DeviceTypeDisk}
	err := tree.Add(&disk.Device{Name: "sda1", Type: disk.DeviceTypePartition, Parents: []*disk.Device{sda}})
	assert.EqualError(t, err, `device "sda1": parent "sda" is not part of the tree`)
}

func TestTreeSetupTeardown(t *testing.T) {
	tree, err := disk.LoadTree(strings.NewReader(treeYAML))
	require.NoError(t, err)
	sda := tree.DeviceByName("sda")
	sda1 := tree.DeviceByName("sda1")
	tree.SetActive(sda, false)

	var calls []string
	tree.ActivateFunc = func(d *disk.Device, active bool) error {
		if active {
			calls = append(calls, "setup "+d.Name)
		} else {
			calls = append(calls, "teardown "+d.Name)
		}
		return nil
	}

	require.NoError(t, tree.Setup(sda1))
	assert.True(t, tree.Active(sda))
	assert.True(t, tree.Active(sda1))
	require.NoError(t, tree.Setup(sda1))
	require.NoError(t, tree.Teardown(sda1))
	assert.False(t, tree.Active(sda1))
	assert.True(t, tree.Active(sda))
	assert.Equal(t, []string{"setup sda", "setup sda1", "teardown sda1"}, calls)
}

func TestTreeSetupFailure(t *testing.T) {
	tree, err := disk.LoadTree(strings.NewReader(treeYAML))
	require.NoError(t, err)
	sda1 := tree.DeviceByName("sda1")
	tree.ActivateFunc = func(d *disk.Device, active bool) error {
		return errors.New("no such device")
	}
	err = tree.Setup(sda1)
	assert.EqualError(t, err, "cannot change state of sda1: no such device")
	assert.False(t, tree.Active(sda1))
}

func TestGenUUIDs(t *testing.T) {
	tree, err := disk.LoadTree(strings.NewReader(treeYAML))
	require.NoError(t, err)

	// nolint:gosec
	tree.GenUUIDs(rand.New(rand.NewSource(0)))
	assert.NotEmpty(t, tree.DeviceByName("sda1").Format.UUID)
	assert.NotEmpty(t, tree.DeviceByName("sda2").Format.UUID)
	assert.Equal(t, "6a1e2a4c-58b1-4a47-8d0a-1b0ad8a9f3c2", tree.DeviceByName("sda3").Format.UUID)
	assert.Empty(t, tree.DeviceByName("sda").Format.UUID)

	tree2, err := disk.LoadTree(strings.NewReader(treeYAML))
	require.NoError(t, err)
	// nolint:gosec
	tree2.GenUUIDs(rand.New(rand.NewSource(0)))
	assert.Equal(t, tree.DeviceByName("sda1").Format.UUID, tree2.DeviceByName("sda1").Format.UUID)
}
