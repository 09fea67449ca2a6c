package avatar

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/kozaktomas/photo-library/internal/database"
	"github.com/kozaktomas/photo-library/internal/database/mock"
	"github.com/kozaktomas/photo-library/internal/fingerprint"
	"github.com/kozaktomas/photo-library/internal/imagecodec/imagetest"
	"github.com/kozaktomas/photo-library/internal/logging"
	"github.com/kozaktomas/photo-library/internal/storage"
)

type fixture struct {
	store    *mock.Store
	renderer *Renderer
	person   int64
	appear   int64
}

// setup stores a 64×48 PNG with EXIF orientation 6, so the reoriented
// photo is 48×64, and a face box near its bottom edge that only exists in
// reoriented coordinates.
func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	dir := t.TempDir()
	blobs, err := storage.NewFS(filepath.Join(dir, "photos"), filepath.Join(dir, "thumbs"))
	if err != nil {
		t.Fatal(err)
	}
	if err := blobs.EnsureDir(ctx, storage.Photos, "2021-06"); err != nil {
		t.Fatal(err)
	}
	data := imagetest.PNG(imagetest.Gradient(64, 48), imagetest.Exif(6, ""))
	if err := blobs.Put(ctx, storage.Photos, "2021-06/a.png", data); err != nil {
		t.Fatal(err)
	}

	store := mock.NewStore()
	photo, err := store.InsertPhoto(ctx, database.NewPhoto{
		Digest:         fingerprint.Digest{1},
		FileName:       "2021-06/a.png",
		ImageWidth:     48,
		ImageHeight:    64,
		UploadDatetime: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	person, err := store.InsertPlaceholderPerson(ctx)
	if err != nil {
		t.Fatal(err)
	}
	appear, err := store.InsertAppearance(ctx, database.Appearance{
		Person: person, Photo: photo, Reference: true,
		Top: 58, Left: 2, Bottom: 62, Right: 6,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.InsertAvatar(ctx, person, appear); err != nil {
		t.Fatal(err)
	}

	return &fixture{
		store:    store,
		renderer: NewRenderer(store, blobs, 32, 1.0, logging.Discard()),
		person:   person,
		appear:   appear,
	}
}

func TestForPerson(t *testing.T) {
	f := setup(t)

	out, err := f.renderer.ForPerson(context.Background(), f.person)
	if err != nil {
		t.Fatalf("ForPerson: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("expected PNG output: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 32 {
		t.Errorf("expected 32x32 avatar, got %v", b)
	}
}

func TestForAppearance(t *testing.T) {
	f := setup(t)

	out, err := f.renderer.ForAppearance(context.Background(), f.appear)
	if err != nil {
		t.Fatalf("ForAppearance: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(out)); err != nil {
		t.Fatalf("expected PNG output: %v", err)
	}
}

func TestNotFound(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if _, err := f.renderer.ForPerson(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown person, got %v", err)
	}
	if _, err := f.renderer.ForAppearance(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown appearance, got %v", err)
	}

	// A person without an avatar.
	other, _ := f.store.InsertPlaceholderPerson(ctx)
	if _, err := f.renderer.ForPerson(ctx, other); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for person without avatar, got %v", err)
	}
}

func TestStoreErrorPassesThrough(t *testing.T) {
	f := setup(t)
	boom := errors.New("boom")
	f.store.AvatarError = boom

	if _, err := f.renderer.ForPerson(context.Background(), f.person); !errors.Is(err, boom) {
		t.Errorf("expected store error, got %v", err)
	}
}

func TestMissingBlob(t *testing.T) {
	f := setup(t)
	dir := t.TempDir()
	empty, err := storage.NewFS(filepath.Join(dir, "p"), filepath.Join(dir, "t"))
	if err != nil {
		t.Fatal(err)
	}
	r := NewRenderer(f.store, empty, 0, 0, nil)
	if r.Size() != 128 {
		t.Errorf("expected default size, got %d", r.Size())
	}
	if _, err := r.ForPerson(context.Background(), f.person); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected storage.ErrNotFound, got %v", err)
	}
}
