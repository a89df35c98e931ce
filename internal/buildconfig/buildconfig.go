package buildconfig

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/osbuild/bootloader/internal/types"
)

// Config is the installer configuration read by bootloader-install.
type Config struct {
	// Variant overrides the bootloader picked for the detected platform.
	Variant string `toml:"variant"`
	Product string `toml:"product"`
	EFIDir  string `toml:"efi_dir"`

	// Location is one of "mbr", "partition" or "none".
	Location   string   `toml:"location"`
	Stage1     string   `toml:"stage1"`
	DriveOrder []string `toml:"drive_order"`

	Timeout         types.Option[int] `toml:"timeout"`
	Password        string            `toml:"password"`
	EncryptPassword bool              `toml:"encrypt_password"`
	Append          []string          `toml:"append"`
	UpdateOnly      bool              `toml:"update_only"`

	Console Console `toml:"console"`

	Keyboard string `toml:"keyboard"`
	Language string `toml:"language"`

	Chain []ChainImage `toml:"chain"`
}

type Console struct {
	// Serial is the console= value for serial consoles, e.g. "ttyS0,115200".
	Serial       string `toml:"serial"`
	VirtPConsole string `toml:"virtpconsole"`
}

// ChainImage adds a menu entry chainloading another OS.
type ChainImage struct {
	Device string `toml:"device"`
	Label  string `toml:"label"`
}

type Options struct {
	AllowUnknownFields bool
}

var validLocations = []string{"", "mbr", "partition", "none"}

func New(path string, opts *Options) (*Config, error) {
	if opts == nil {
		opts = &Options{}
	}

	var conf Config
	meta, err := toml.DecodeFile(path, &conf)
	if err != nil {
		return nil, fmt.Errorf("cannot decode bootloader config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 && !opts.AllowUnknownFields {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("cannot decode bootloader config: unknown keys %s", strings.Join(keys, ", "))
	}
	if err := conf.validate(); err != nil {
		return nil, fmt.Errorf("invalid bootloader config %q: %w", path, err)
	}
	return &conf, nil
}

func (c *Config) validate() error {
	valid := false
	for _, l := range validLocations {
		if c.Location == l {
			valid = true
		}
	}
	if !valid {
		return fmt.Errorf("unknown location %q", c.Location)
	}
	if c.Timeout.IsSome() && c.Timeout.Unwrap() < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	for i, ch := range c.Chain {
		if ch.Device == "" {
			return fmt.Errorf("chain image %d: missing device", i)
		}
	}
	return nil
}
