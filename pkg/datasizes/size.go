package datasizes

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	KiloByte = 1000
	KibiByte = 1024
	MegaByte = 1000 * KiloByte
	MebiByte = 1024 * KibiByte
	GigaByte = 1000 * MegaByte
	GibiByte = 1024 * MebiByte
	TeraByte = 1000 * GigaByte
	TebiByte = 1024 * GibiByte

	KiB = KibiByte
	MiB = MebiByte
	GiB = GibiByte
	TiB = TebiByte
)

var unitMultiplier = map[string]uint64{
	"":    1,
	"B":   1,
	"kB":  KiloByte,
	"KiB": KibiByte,
	"MB":  MegaByte,
	"MiB": MebiByte,
	"GB":  GigaByte,
	"GiB": GibiByte,
	"TB":  TeraByte,
	"TiB": TebiByte,
}

var sizeRe = regexp.MustCompile(`^(\d+)\s*([A-Za-z]*)$`)

// Parse converts a size with an optional unit ("512", "50 MiB", "1GB") to
// bytes. Units are case sensitive.
func Parse(size string) (uint64, error) {
	size = strings.TrimSpace(size)
	m := sizeRe.FindStringSubmatch(size)
	if m == nil {
		return 0, fmt.Errorf("unknown data size units in string: %s", size)
	}
	mul, ok := unitMultiplier[m[2]]
	if !ok {
		return 0, fmt.Errorf("unknown data size units in string: %s", size)
	}
	n, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, err
	}
	return n * mul, nil
}

// Size is a byte count that can be given either as a plain number or as a
// string with a unit in JSON, TOML and YAML.
type Size uint64

func (s Size) Uint64() uint64 {
	return uint64(s)
}

func (s Size) String() string {
	switch {
	case s != 0 && s%GiB == 0:
		return fmt.Sprintf("%d GiB", s/GiB)
	case s != 0 && s%MiB == 0:
		return fmt.Sprintf("%d MiB", s/MiB)
	case s != 0 && s%KiB == 0:
		return fmt.Sprintf("%d KiB", s/KiB)
	default:
		return fmt.Sprintf("%d B", uint64(s))
	}
}

func (s *Size) fromAny(v any) error {
	switch val := v.(type) {
	case int64:
		if val < 0 {
			return fmt.Errorf("cannot be negative")
		}
		*s = Size(val)
	case int:
		if val < 0 {
			return fmt.Errorf("cannot be negative")
		}
		*s = Size(val)
	case uint64:
		*s = Size(val)
	case float64:
		return fmt.Errorf("cannot be float")
	case string:
		n, err := Parse(val)
		if err != nil {
			return err
		}
		*s = Size(n)
	default:
		return fmt.Errorf("failed to convert value \"%v\" to number", v)
	}
	return nil
}

func (s *Size) UnmarshalTOML(data any) error {
	if err := s.fromAny(data); err != nil {
		return fmt.Errorf("error decoding TOML size: %w", err)
	}
	return nil
}

func (s *Size) UnmarshalJSON(data []byte) error {
	var v any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("error decoding size: %w", err)
	}
	if num, ok := v.(json.Number); ok {
		n, err := strconv.ParseInt(num.String(), 10, 64)
		if err != nil {
			return fmt.Errorf("error decoding size: %w", err)
		}
		v = n
	}
	if err := s.fromAny(v); err != nil {
		return fmt.Errorf("error decoding size: %w", err)
	}
	return nil
}

func (s *Size) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("error decoding YAML size: expected a scalar in line %d", node.Line)
	}
	var v any = node.Value
	if node.Tag == "!!int" {
		n, err := strconv.ParseInt(node.Value, 0, 64)
		if err != nil {
			return fmt.Errorf("error decoding YAML size: %w", err)
		}
		v = n
	} else if node.Tag == "!!float" {
		v = float64(0)
	}
	if err := s.fromAny(v); err != nil {
		return fmt.Errorf("error decoding YAML size: %w", err)
	}
	return nil
}
