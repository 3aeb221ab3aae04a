package store

import (
	"bytes"
	"context"
	"net/url"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// File stores one JSON document per key in a directory. Writes replace the
// file atomically, so a crash never leaves a half-written preference. Reads
// accept hand-edited files with comments or trailing commas.
type File struct {
	dir string
}

// NewFile creates a file store rooted at dir, creating the directory if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &File{dir: dir}, nil
}

// Dir returns the root directory.
func (f *File) Dir() string {
	return f.dir
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

// Get reads the document for key.
func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	return f.GetSync(key)
}

// GetSync reads the document for key from local disk.
func (f *File) GetSync(key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return hujson.Standardize(data)
}

// Set atomically replaces the document for key.
func (f *File) Set(_ context.Context, key string, data []byte) error {
	return atomic.WriteFile(f.path(key), bytes.NewReader(data))
}

// Remove deletes the document for key.
func (f *File) Remove(_ context.Context, key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
