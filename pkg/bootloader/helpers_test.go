package bootloader_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/osbuild/bootloader/internal/cmdutil"
	"github.com/osbuild/bootloader/pkg/bootloader"
	"github.com/osbuild/bootloader/pkg/disk"
)

const testKernel = "5.14.0-70.el9.x86_64"

func newBootLoader(t *testing.T, kind bootloader.Kind, tree *disk.Tree, opts bootloader.Options) (*bootloader.BootLoader, *cmdutil.MockRunner) {
	t.Helper()
	mock := cmdutil.NewMockRunner()
	if opts.Runner == nil {
		opts.Runner = mock
	}
	if opts.Product == "" {
		opts.Product = "Fedora"
	}
	if opts.EFIDir == "" {
		opts.EFIDir = "fedora"
	}
	b, err := bootloader.New(kind, tree, opts)
	require.NoError(t, err)
	return b, mock
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func readLink(t *testing.T, path string) string {
	t.Helper()
	target, err := os.Readlink(path)
	require.NoError(t, err)
	return target
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}
