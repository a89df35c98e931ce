// Package kcmdline parses the kernel command line of the running system.
package kcmdline

import (
	"fmt"
	"os"
	"strings"

	"github.com/siderolabs/go-procfs/procfs"
)

const ProcCmdline = "/proc/cmdline"

// Cmdline is a read-only view of a kernel command line. Options given
// without a value read as "". A repeated option reads as its last value.
type Cmdline struct {
	params *procfs.Cmdline
}

func Parse(s string) *Cmdline {
	return &Cmdline{params: procfs.NewCmdline(strings.TrimSpace(s))}
}

// Read parses the command line stored at path, usually ProcCmdline.
func Read(path string) (*Cmdline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read kernel command line: %w", err)
	}
	return Parse(string(data)), nil
}

func (c *Cmdline) param(key string) *procfs.Parameter {
	if c == nil || c.params == nil {
		return nil
	}
	return c.params.Get(key)
}

func (c *Cmdline) Has(key string) bool {
	return c.param(key) != nil
}

func (c *Cmdline) Get(key string) (string, bool) {
	p := c.param(key)
	if p == nil {
		return "", false
	}
	var value string
	for i := 0; p.Get(i) != nil; i++ {
		value = *p.Get(i)
	}
	return value, true
}

// Option renders key the way it appeared on the command line, "key" or
// "key=value". It returns "" if the option is absent.
func (c *Cmdline) Option(key string) string {
	v, ok := c.Get(key)
	switch {
	case !ok:
		return ""
	case v == "":
		return key
	}
	return key + "=" + v
}

// Keys returns the option names in order of first appearance.
func (c *Cmdline) Keys() []string {
	if c == nil || c.params == nil {
		return nil
	}
	var keys []string
	for _, p := range c.params.Parameters {
		keys = append(keys, p.Key())
	}
	return keys
}
