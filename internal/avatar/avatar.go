// Package avatar renders square face portraits from stored photos.
package avatar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/kozaktomas/photo-library/internal/constants"
	"github.com/kozaktomas/photo-library/internal/database"
	"github.com/kozaktomas/photo-library/internal/imagecodec"
	"github.com/kozaktomas/photo-library/internal/storage"
)

// ErrNotFound is returned when the person has no avatar or the appearance
// does not exist.
var ErrNotFound = errors.New("avatar not found")

// Renderer crops avatars out of the original photos.
type Renderer struct {
	store  database.AvatarStore
	blobs  storage.Store
	size   int
	zoom   float64
	logger *slog.Logger
}

// NewRenderer creates a renderer. Non-positive size or zoom fall back to
// the defaults.
func NewRenderer(store database.AvatarStore, blobs storage.Store, size int, zoom float64, logger *slog.Logger) *Renderer {
	if size <= 0 {
		size = constants.DefaultAvatarSize
	}
	if zoom <= 0 {
		zoom = constants.DefaultAvatarZoom
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{store: store, blobs: blobs, size: size, zoom: zoom, logger: logger}
}

// Size returns the side of the rendered avatars in pixels.
func (r *Renderer) Size() int {
	return r.size
}

// ForPerson renders the avatar of the person as PNG.
func (r *Renderer) ForPerson(ctx context.Context, person int64) ([]byte, error) {
	src, err := r.store.AvatarForPerson(ctx, person)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("person %d: %w", person, ErrNotFound)
	}
	return r.render(ctx, src)
}

// ForAppearance renders the face of an appearance as PNG.
func (r *Renderer) ForAppearance(ctx context.Context, appearance int64) ([]byte, error) {
	src, err := r.store.AvatarSourceForAppearance(ctx, appearance)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("appearance %d: %w", appearance, ErrNotFound)
	}
	return r.render(ctx, src)
}

// render loads the original photo and crops the box. Boxes were detected
// on the reoriented image, so the photo is reoriented before cropping.
func (r *Renderer) render(ctx context.Context, src *database.AvatarSource) ([]byte, error) {
	f, _, err := r.blobs.Open(ctx, storage.Photos, src.FileName)
	if err != nil {
		return nil, fmt.Errorf("opening photo %s: %w", src.FileName, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading photo %s: %w", src.FileName, err)
	}

	img, err := imagecodec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding photo %s: %w", src.FileName, err)
	}

	crop, err := imagecodec.AvatarCrop(img.Reoriented(), src.Box().Rectangle(), r.size, r.zoom)
	if err != nil {
		return nil, fmt.Errorf("cropping photo %s: %w", src.FileName, err)
	}

	out, err := imagecodec.EncodeBytes(crop, imagecodec.PNG)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("rendered avatar", "file", src.FileName, "bytes", len(out))
	return out, nil
}
