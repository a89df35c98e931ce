package datasizes_test

import (
	"encoding/json"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/osbuild/bootloader/pkg/datasizes"
)

func TestParse(t *testing.T) {
	cases := []struct {
		input   string
		success bool
		output  uint64
	}{
		{"123", true, 123},
		{"123 B", true, 123},
		{"123 kB", true, 123000},
		{"123 KiB", true, 123 * 1024},
		{"123 MB", true, 123 * 1000 * 1000},
		{"123 MiB", true, 123 * 1024 * 1024},
		{"123 GiB", true, 123 * 1024 * 1024 * 1024},
		{"123 TiB", true, 123 * 1024 * 1024 * 1024 * 1024},
		{"123MiB", true, 123 * 1024 * 1024},
		{"  50 MiB  ", true, 50 * 1024 * 1024},
		{"123 KB", false, 0},
		{"123 mb", false, 0},
		{"123 PiB", false, 0},
		{"MiB", false, 0},
		{"-1", false, 0},
	}

	for _, c := range cases {
		result, err := datasizes.Parse(c.input)
		if c.success {
			require.NoError(t, err, c.input)
			assert.EqualValues(t, c.output, result)
		} else {
			assert.Error(t, err, c.input)
		}
	}
}

func TestSizeUnmarshalHappy(t *testing.T) {
	cases := []struct {
		name      string
		inputJSON string
		inputTOML string
		inputYAML string
		expected  datasizes.Size
	}{
		{
			name:      "int",
			inputJSON: `{"size": 1234}`,
			inputTOML: `size = 1234`,
			inputYAML: `size: 1234`,
			expected:  1234,
		},
		{
			name:      "str",
			inputJSON: `{"size": "1234"}`,
			inputTOML: `size = "1234"`,
			inputYAML: `size: "1234"`,
			expected:  1234,
		},
		{
			name:      "str/with-unit",
			inputJSON: `{"size": "256 MiB"}`,
			inputTOML: `size = "256 MiB"`,
			inputYAML: `size: 256 MiB`,
			expected:  256 * datasizes.MiB,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var v struct {
				Size datasizes.Size `json:"size" toml:"size" yaml:"size"`
			}
			err := toml.Unmarshal([]byte(tc.inputTOML), &v)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, v.Size, tc.inputTOML)
			err = json.Unmarshal([]byte(tc.inputJSON), &v)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, v.Size, tc.inputJSON)
			err = yaml.Unmarshal([]byte(tc.inputYAML), &v)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, v.Size, tc.inputYAML)
		})
	}
}

func TestSizeUnmarshalUnhappy(t *testing.T) {
	var v struct {
		Size datasizes.Size `json:"size" toml:"size" yaml:"size"`
	}
	assert.EqualError(t, json.Unmarshal([]byte(`{"size": "20 KG"}`), &v), "error decoding size: unknown data size units in string: 20 KG")
	assert.EqualError(t, json.Unmarshal([]byte(`{"size": true}`), &v), `error decoding size: failed to convert value "true" to number`)
	assert.ErrorContains(t, toml.Unmarshal([]byte(`size = 3.14`), &v), "cannot be float")
	assert.ErrorContains(t, yaml.Unmarshal([]byte(`size: [1, 2]`), &v), "expected a scalar")
}

func TestSizeString(t *testing.T) {
	assert.Equal(t, "256 MiB", datasizes.Size(256*datasizes.MiB).String())
	assert.Equal(t, "2 GiB", datasizes.Size(2*datasizes.GiB).String())
	assert.Equal(t, "800 KiB", datasizes.Size(800*datasizes.KiB).String())
	assert.Equal(t, "511 B", datasizes.Size(511).String())
	assert.Equal(t, uint64(1234), datasizes.Size(1234).Uint64())
}
