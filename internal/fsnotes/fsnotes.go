// Package fsnotes reads vault notes straight off local disk, the note
// source the long-lived ingestion daemon uses since it runs detached
// from any live editor connection.
package fsnotes

import (
	"context"
	"os"
	"path/filepath"

	"github.com/vaultbridge/internal/bridgeerr"
)

// Reader reads notes relative to a fixed vault root.
type Reader struct {
	vaultPath string
}

// NewReader builds a Reader rooted at vaultPath.
func NewReader(vaultPath string) *Reader {
	return &Reader{vaultPath: vaultPath}
}

// ReadNote reads notePath, resolving it against the vault root when it
// isn't already absolute.
func (r *Reader) ReadNote(_ context.Context, notePath string) (string, error) {
	p := notePath
	if !filepath.IsAbs(p) && r.vaultPath != "" {
		p = filepath.Join(r.vaultPath, notePath)
	}

	raw, err := os.ReadFile(p)
	if err != nil {
		return "", bridgeerr.Wrap(bridgeerr.NotFound, "note not found: "+notePath, err)
	}
	return string(raw), nil
}
