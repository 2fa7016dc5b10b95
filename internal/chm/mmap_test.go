package chm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenFileMissingPathReturnsError(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "missing.chm"))
	require.Error(t, err)
}

func TestOpenFileRejectsNonCHMContentAndReleasesMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.chm")
	require.NoError(t, os.WriteFile(path, []byte("not a chm container"), 0o644))

	_, err := OpenFile(path)
	require.Error(t, err)

	// OpenFile must have unmapped and closed the file on parse failure,
	// so the file should still be freely removable on every platform.
	require.NoError(t, os.Remove(path))
}
