// Package static serves the web client: its assets under /static and
// index.html for every other page route.
package static

import (
	"bytes"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
	"time"
)

// Site serves a web client directory.
type Site struct {
	fsys fs.FS
}

// New returns a site backed by dir, or nil if dir is empty or missing.
func New(dir string) *Site {
	if dir == "" {
		return nil
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil
	}
	return &Site{fsys: os.DirFS(dir)}
}

// NewFS returns a site backed by fsys.
func NewFS(fsys fs.FS) *Site {
	return &Site{fsys: fsys}
}

// HasIndex returns true if the site has an index.html.
func (s *Site) HasIndex() bool {
	if s == nil {
		return false
	}
	_, err := fs.Stat(s.fsys, "index.html")
	return err == nil
}

// Assets serves files below the prefix stripped request path.
func (s *Site) Assets(prefix string) http.Handler {
	if s == nil {
		return http.NotFoundHandler()
	}
	return http.StripPrefix(prefix, http.FileServerFS(s.fsys))
}

// Index serves index.html for any page route so client side routing works.
func (s *Site) Index(w http.ResponseWriter, r *http.Request) {
	if !s.HasIndex() || strings.HasPrefix(r.URL.Path, "/api/") || path.Ext(r.URL.Path) != "" {
		http.NotFound(w, r)
		return
	}

	data, err := fs.ReadFile(s.fsys, "index.html")
	if err != nil {
		http.Error(w, "failed to read index", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, "index.html", time.Time{}, bytes.NewReader(data))
}
