package common

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ReadOSRelease reads the os-release file of the system installed below
// root, falling back to usr/lib/os-release.
func ReadOSRelease(root string) (map[string]string, error) {
	var errs []error
	for _, p := range []string{"etc/os-release", "usr/lib/os-release"} {
		f, err := os.Open(filepath.Join(root, p))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		defer f.Close()
		return readOSRelease(f)
	}
	return nil, fmt.Errorf("cannot read os-release: %w", errors.Join(errs...))
}

func readOSRelease(r io.Reader) (map[string]string, error) {
	osrelease := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid os-release line %q", line)
		}
		if unquoted, err := strconv.Unquote(value); err == nil {
			value = unquoted
		} else {
			value = strings.Trim(value, `"'`)
		}
		osrelease[key] = value
	}
	return osrelease, scanner.Err()
}
