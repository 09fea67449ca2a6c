package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/kozaktomas/photo-library/internal/avatar"
)

// AvatarRenderer renders face portraits. *avatar.Renderer implements it.
type AvatarRenderer interface {
	ForPerson(ctx context.Context, person int64) ([]byte, error)
	ForAppearance(ctx context.Context, appearance int64) ([]byte, error)
}

// AvatarsHandler serves face portraits
type AvatarsHandler struct {
	renderer AvatarRenderer
}

// NewAvatarsHandler creates a new avatars handler
func NewAvatarsHandler(renderer AvatarRenderer) *AvatarsHandler {
	return &AvatarsHandler{renderer: renderer}
}

// Person returns the avatar of a person as PNG.
func (h *AvatarsHandler) Person(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.serve(w, "No matching person", func() ([]byte, error) {
		return h.renderer.ForPerson(r.Context(), id)
	})
}

// Appearance returns the face of an appearance as PNG.
func (h *AvatarsHandler) Appearance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.serve(w, "No matching appearance", func() ([]byte, error) {
		return h.renderer.ForAppearance(r.Context(), id)
	})
}

func (h *AvatarsHandler) serve(w http.ResponseWriter, notFound string, render func() ([]byte, error)) {
	data, err := render()
	switch {
	case errors.Is(err, avatar.ErrNotFound):
		respondError(w, http.StatusNotFound, notFound)
		return
	case err != nil:
		respondFailure(w, "Failed to generate image", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
