package common

import (
	"strconv"
	"unicode"

	"github.com/hashicorp/go-version"
)

// VersionLessThan returns true if the kernel version a is older than b.
//
// Versions that go-version understands (e.g. "5.10-1") are compared
// semantically. Everything else, such as "5.14.0-362.el9.x86_64", is split
// into runs of digits and letters which are compared pairwise, numbers
// numerically. Evaluates to false if a and b are equal.
func VersionLessThan(a, b string) bool {
	aV, errA := version.NewVersion(a)
	bV, errB := version.NewVersion(b)
	if errA == nil && errB == nil {
		return aV.LessThan(bV)
	}
	return segmentCompare(a, b) < 0
}

func segments(s string) []string {
	var segs []string
	start := -1
	digit := false
	for i, r := range s {
		isDigit := unicode.IsDigit(r)
		isAlnum := isDigit || unicode.IsLetter(r)
		if start >= 0 && (!isAlnum || isDigit != digit) {
			segs = append(segs, s[start:i])
			start = -1
		}
		if isAlnum && start < 0 {
			start, digit = i, isDigit
		}
	}
	if start >= 0 {
		segs = append(segs, s[start:])
	}
	return segs
}

func segmentCompare(a, b string) int {
	as, bs := segments(a), segments(b)
	for i := 0; i < len(as) && i < len(bs); i++ {
		an, aErr := strconv.ParseUint(as[i], 10, 64)
		bn, bErr := strconv.ParseUint(bs[i], 10, 64)
		switch {
		case aErr == nil && bErr == nil:
			if an != bn {
				if an < bn {
					return -1
				}
				return 1
			}
		case aErr == nil:
			// numbers are newer than letters
			return 1
		case bErr == nil:
			return -1
		case as[i] != bs[i]:
			if as[i] < bs[i] {
				return -1
			}
			return 1
		}
	}
	return len(as) - len(bs)
}
