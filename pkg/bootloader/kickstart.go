package bootloader

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

// WriteKickstart writes the bootloader command that reproduces this
// configuration in a kickstart file.
func (b *BootLoader) WriteKickstart(w io.Writer) error {
	stage1, err := b.Stage1Device()
	if errors.Is(err, ErrLookupFailure) {
		_, err := io.WriteString(w, "bootloader --location=none\n")
		return err
	}
	if err != nil {
		return err
	}

	var sb strings.Builder
	location := "partition"
	if stage1.IsDisk() {
		location = "mbr"
	}
	fmt.Fprintf(&sb, "bootloader --location=%s", location)
	if len(b.driveOrder) > 0 {
		fmt.Fprintf(&sb, " --driveorder=%s", strings.Join(b.driveOrder, ","))
	}

	var appendArgs []string
	for _, arg := range b.bootArgs.Args() {
		if !slices.Contains(b.dracutArgs, arg) {
			appendArgs = append(appendArgs, arg)
		}
	}
	if len(appendArgs) > 0 {
		fmt.Fprintf(&sb, " --append=\"%s\"", strings.Join(appendArgs, " "))
	}
	sb.WriteString("\n")

	_, err = io.WriteString(w, sb.String())
	return err
}
