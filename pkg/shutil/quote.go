package shutil

import (
	"regexp"
	"strings"
)

var unsafeChars = regexp.MustCompile(`[^\w@%+=:,./-]`)

// Quote returns a shell-escaped version of s that can be safely used as
// one token in a shell command line.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if !unsafeChars.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// QuoteCmd quotes every argument and joins them with spaces.
func QuoteCmd(args ...string) string {
	quoted := make([]string, 0, len(args))
	for _, arg := range args {
		quoted = append(quoted, Quote(arg))
	}
	return strings.Join(quoted, " ")
}
