package fsnotes

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadNoteResolvesRelativeToVaultRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.md"), []byte("hello"), 0o644))

	r := NewReader(dir)
	content, err := r.ReadNote(context.Background(), "note.md")
	require.NoError(t, err)
	assert.Equal(t, "hello", content)
}

func TestReadNoteMissingFileReturnsError(t *testing.T) {
	r := NewReader(t.TempDir())
	_, err := r.ReadNote(context.Background(), "missing.md")
	assert.Error(t, err)
}

func TestReadNoteAbsolutePathIgnoresVaultRoot(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(dir, "note.md")
	require.NoError(t, os.WriteFile(abs, []byte("abs content"), 0o644))

	r := NewReader("/some/other/vault")
	content, err := r.ReadNote(context.Background(), abs)
	require.NoError(t, err)
	assert.Equal(t, "abs content", content)
}
