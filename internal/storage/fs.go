package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FS stores objects as files under two root directories.
type FS struct {
	roots [2]string
}

// NewFS creates the root directories if needed.
func NewFS(photoDir, thumbDir string) (*FS, error) {
	if photoDir == "" || thumbDir == "" {
		return nil, errors.New("photo and thumb directories are required")
	}
	for _, dir := range []string{photoDir, thumbDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &FS{roots: [2]string{photoDir, thumbDir}}, nil
}

// Root returns the directory backing the tree.
func (s *FS) Root(tree Tree) string {
	return s.roots[tree]
}

func (s *FS) resolve(tree Tree, name string) (string, error) {
	if tree != Photos && tree != Thumbs {
		return "", fmt.Errorf("unknown %s", tree)
	}
	clean, err := CleanPath(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.roots[tree], filepath.FromSlash(clean)), nil
}

// EnsureDir creates the directory if it does not exist.
func (s *FS) EnsureDir(ctx context.Context, tree Tree, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.resolve(tree, dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p, 0o755); err != nil {
		return fmt.Errorf("create %s directory %s: %w", tree, dir, err)
	}
	return nil
}

// Put writes the file through a temporary file in the same directory so
// readers never see a partial object.
func (s *FS) Put(ctx context.Context, tree Tree, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.resolve(tree, name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return fmt.Errorf("save %s %s: %w", tree, name, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save %s %s: %w", tree, name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save %s %s: %w", tree, name, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("save %s %s: %w", tree, name, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("save %s %s: %w", tree, name, err)
	}
	return nil
}

// Open opens the file for reading.
func (s *FS) Open(ctx context.Context, tree Tree, name string) (io.ReadSeekCloser, Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, Info{}, err
	}
	p, err := s.resolve(tree, name)
	if err != nil {
		return nil, Info{}, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, Info{}, fmt.Errorf("%s %s: %w", tree, name, ErrNotFound)
	}
	if err != nil {
		return nil, Info{}, fmt.Errorf("open %s %s: %w", tree, name, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, Info{}, fmt.Errorf("stat %s %s: %w", tree, name, err)
	}
	if st.IsDir() {
		f.Close()
		return nil, Info{}, fmt.Errorf("%s %s: %w", tree, name, ErrNotFound)
	}
	return f, Info{Size: st.Size(), ModTime: st.ModTime()}, nil
}

// Ping checks both roots are still directories.
func (s *FS) Ping(ctx context.Context) error {
	for _, root := range s.roots {
		st, err := os.Stat(root)
		if err != nil {
			return err
		}
		if !st.IsDir() {
			return fmt.Errorf("%s is not a directory", root)
		}
	}
	return nil
}
