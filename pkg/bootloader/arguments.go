package bootloader

import (
	"slices"
	"strings"
)

// ArgumentList is an ordered list of kernel command line arguments.
// Arguments are compared by key, the part before the first "=". Two
// arguments with the same key but different values can coexist.
type ArgumentList struct {
	args []string
}

func NewArgumentList(args ...string) *ArgumentList {
	l := &ArgumentList{}
	l.Extend(args...)
	return l
}

func argKey(arg string) string {
	key, _, _ := strings.Cut(arg, "=")
	return key
}

// Append adds arg unless it is empty or the first argument with the same
// key is identical to it.
func (l *ArgumentList) Append(arg string) {
	if arg == "" {
		return
	}
	if idx := l.Index(arg); idx >= 0 && l.args[idx] == arg {
		return
	}
	l.args = append(l.args, arg)
}

func (l *ArgumentList) Extend(args ...string) {
	for _, arg := range args {
		l.Append(arg)
	}
}

func (l *ArgumentList) Contains(arg string) bool {
	return l.Index(arg) >= 0
}

func (l *ArgumentList) Count(arg string) int {
	key := argKey(arg)
	n := 0
	for _, a := range l.args {
		if argKey(a) == key {
			n++
		}
	}
	return n
}

// Index returns the position of the first argument sharing the key of arg,
// or -1.
func (l *ArgumentList) Index(arg string) int {
	key := argKey(arg)
	return slices.IndexFunc(l.args, func(a string) bool {
		return argKey(a) == key
	})
}

// RIndex is Index searching from the end.
func (l *ArgumentList) RIndex(arg string) int {
	key := argKey(arg)
	for i := len(l.args) - 1; i >= 0; i-- {
		if argKey(l.args[i]) == key {
			return i
		}
	}
	return -1
}

func (l *ArgumentList) Len() int {
	return len(l.args)
}

func (l *ArgumentList) Args() []string {
	return slices.Clone(l.args)
}

func (l *ArgumentList) String() string {
	return strings.Join(l.args, " ")
}
