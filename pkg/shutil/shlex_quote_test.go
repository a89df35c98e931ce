package shutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/osbuild/bootloader/pkg/shutil"
)

func TestShlexQuote(t *testing.T) {
	assert.Equal(t, `''`, shutil.Quote(""))
	assert.Equal(t, `'test file name'`, shutil.Quote(`test file name`))
	unsafe := `Robert'); DROP TABLE`
	assert.Equal(t, `'Robert'"'"'); DROP TABLE'`, shutil.Quote(unsafe))
	assert.Equal(t, `--device-map=/boot/grub/device.map`, shutil.Quote(`--device-map=/boot/grub/device.map`))
}

func TestQuoteCmd(t *testing.T) {
	assert.Equal(t, `efibootmgr -c -L 'Red Hat' -l '\EFI\redhat\grub.efi'`,
		shutil.QuoteCmd("efibootmgr", "-c", "-L", "Red Hat", "-l", `\EFI\redhat\grub.efi`))
	assert.Equal(t, "", shutil.QuoteCmd())
}
