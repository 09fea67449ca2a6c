package handlers

import (
	"errors"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/photo-library/internal/storage"
)

// FilesHandler serves stored photos and thumbnails
type FilesHandler struct {
	blobs storage.Store
}

// NewFilesHandler creates a new files handler
func NewFilesHandler(blobs storage.Store) *FilesHandler {
	return &FilesHandler{blobs: blobs}
}

// Photo serves an original photo.
func (h *FilesHandler) Photo(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, storage.Photos)
}

// Thumb serves a thumbnail.
func (h *FilesHandler) Thumb(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, storage.Thumbs)
}

func (h *FilesHandler) serve(w http.ResponseWriter, r *http.Request, tree storage.Tree) {
	name, err := storage.CleanPath(path.Join(chi.URLParam(r, "month"), chi.URLParam(r, "file")))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	f, info, err := h.blobs.Open(r.Context(), tree, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		respondFailure(w, "Failed to open file", err)
		return
	}
	defer f.Close()

	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	// Names embed the content digest, so a path never changes content.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(w, r, path.Base(name), info.ModTime, f)
}
