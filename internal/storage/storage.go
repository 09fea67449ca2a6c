// Package storage keeps the original photo bytes and the thumbnails.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/kozaktomas/photo-library/internal/config"
)

// ErrNotFound is returned by Open when the object does not exist.
var ErrNotFound = errors.New("object not found")

// ErrInvalidPath is returned for paths that would escape their tree.
var ErrInvalidPath = errors.New("invalid object path")

// Tree selects one of the two object trees.
type Tree int

const (
	Photos Tree = iota
	Thumbs
)

func (t Tree) String() string {
	switch t {
	case Photos:
		return "photos"
	case Thumbs:
		return "thumbs"
	default:
		return fmt.Sprintf("tree(%d)", int(t))
	}
}

// ParseTree maps "photos" and "thumbs" to their Tree.
func ParseTree(s string) (Tree, bool) {
	switch s {
	case "photos":
		return Photos, true
	case "thumbs":
		return Thumbs, true
	}
	return 0, false
}

// Info describes a stored object.
type Info struct {
	Size    int64
	ModTime time.Time
}

// Store is a blob store with a photo tree and a thumbnail tree. Paths are
// slash separated and relative to the tree, e.g. "2021-06/<digest>.jpg".
type Store interface {
	// EnsureDir creates the directory within the tree if it is missing.
	EnsureDir(ctx context.Context, tree Tree, dir string) error
	// Put writes data at the path, replacing any existing object.
	Put(ctx context.Context, tree Tree, name string, data []byte) error
	// Open returns a reader over the object. Returns ErrNotFound when missing.
	Open(ctx context.Context, tree Tree, name string) (io.ReadSeekCloser, Info, error)
	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error
}

// CleanPath validates a tree-relative path and returns it in clean form.
func CleanPath(name string) (string, error) {
	if name == "" || strings.Contains(name, "\\") || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	clean := path.Clean(name)
	if clean == "." || !filepath.IsLocal(filepath.FromSlash(clean)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return clean, nil
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg *config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "", "fs":
		return NewFS(cfg.PhotoDir, cfg.ThumbDir)
	case "minio":
		return NewMinIO(ctx, cfg.MinIO)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
