package disk

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/osbuild/bootloader/pkg/datasizes"
)

type treeYAML struct {
	Devices []deviceYAML `yaml:"devices"`
}

type deviceYAML struct {
	Name       string         `yaml:"name"`
	Type       DeviceType     `yaml:"type"`
	Path       string         `yaml:"path,omitempty"`
	Size       datasizes.Size `yaml:"size,omitempty"`
	SectorSize uint64         `yaml:"sector_size,omitempty"`
	// devices exist unless stated otherwise
	Exists *bool `yaml:"exists,omitempty"`
	Active bool  `yaml:"active,omitempty"`

	Format    formatYAML     `yaml:"format,omitempty"`
	Partition *PartitionInfo `yaml:"partition,omitempty"`
	UUID      string         `yaml:"uuid,omitempty"`
	RaidLevel string         `yaml:"raid_level,omitempty"`
	VGName    string         `yaml:"vg_name,omitempty"`
	LVName    string         `yaml:"lv_name,omitempty"`
	ISCSI     *ISCSITarget   `yaml:"iscsi,omitempty"`
	Parents   []string       `yaml:"parents,omitempty"`
}

type formatYAML struct {
	Type       string `yaml:"type"`
	Mountpoint string `yaml:"mountpoint,omitempty"`
	Label      string `yaml:"label,omitempty"`
	UUID       string `yaml:"uuid,omitempty"`
	LabelType  string `yaml:"label_type,omitempty"`
}

// LoadTree reads a device tree description. Devices must be listed after
// their parents.
func LoadTree(r io.Reader) (*Tree, error) {
	var in treeYAML
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("cannot decode device tree: %w", err)
	}

	tree := NewTree()
	for _, dy := range in.Devices {
		d := &Device{
			Name:       dy.Name,
			Type:       dy.Type,
			Path:       dy.Path,
			Size:       dy.Size,
			SectorSize: dy.SectorSize,
			Exists:     dy.Exists == nil || *dy.Exists,
			Format:     Format(dy.Format),
			Partition:  dy.Partition,
			UUID:       dy.UUID,
			RaidLevel:  dy.RaidLevel,
			VGName:     dy.VGName,
			LVName:     dy.LVName,
			ISCSI:      dy.ISCSI,
		}
		for _, pname := range dy.Parents {
			p := tree.DeviceByName(pname)
			if p == nil {
				return nil, fmt.Errorf("device %q: unknown parent %q", dy.Name, pname)
			}
			d.Parents = append(d.Parents, p)
		}
		if err := tree.Add(d); err != nil {
			return nil, err
		}
		tree.SetActive(d, dy.Active)
	}
	return tree, nil
}

// ReadTree loads a device tree description from a file.
func ReadTree(path string) (*Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadTree(f)
}
