// Package asset resolves string keys to binary resources.
package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound marks a key with no backing resource.
var ErrNotFound = errors.New("asset not found")

// Store resolves a key to raw bytes.
type Store interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Dir serves assets from a directory, probing a fixed list of extensions.
type Dir struct {
	dir  string
	exts []string
}

// NewDir constructs a directory store rooted at dir.
func NewDir(dir string) *Dir {
	return &Dir{dir: dir, exts: []string{".jpg", ".jpeg", ".png"}}
}

// Open resolves key to the first matching file. Keys must be plain names;
// anything path-like is treated as missing rather than resolved.
func (d *Dir) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if errCtx := ctx.Err(); errCtx != nil {
		return nil, errCtx
	}
	if !validKey(key) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	for _, ext := range d.exts {
		f, errOpen := os.Open(filepath.Join(d.dir, key+ext))
		if errOpen == nil {
			return f, nil
		}
		if !os.IsNotExist(errOpen) {
			return nil, fmt.Errorf("open asset %q: %w", key, errOpen)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
}

func validKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	return !strings.ContainsAny(key, `/\`)
}
