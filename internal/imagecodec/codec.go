// Package imagecodec decodes uploaded photos, reads their EXIF metadata and
// derives reoriented, thumbnail and avatar images.
package imagecodec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Format is the encoded format of a photo, as reported by the decoder.
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
	GIF  Format = "gif"
	BMP  Format = "bmp"
	TIFF Format = "tiff"
	WebP Format = "webp"
)

var (
	// ErrUnsupportedFormat is returned when no registered decoder recognises the data.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrNotPersistable is returned when a decoded format has no file extension we can store.
	ErrNotPersistable = errors.New("image format not persistable")
)

// Extension returns the file extension used when storing the format.
// The second result is false for formats that decode but cannot be
// re-encoded for thumbnails.
func (f Format) Extension() (string, bool) {
	switch f {
	case JPEG:
		return "jpg", true
	case PNG:
		return "png", true
	case GIF:
		return "gif", true
	case BMP:
		return "bmp", true
	case TIFF:
		return "tiff", true
	default:
		return "", false
	}
}

// carriesExif reports whether the format may embed an EXIF block.
func (f Format) carriesExif() bool {
	return f == JPEG || f == PNG || f == TIFF
}

func (f Format) imagingFormat() (imaging.Format, bool) {
	switch f {
	case JPEG:
		return imaging.JPEG, true
	case PNG:
		return imaging.PNG, true
	case GIF:
		return imaging.GIF, true
	case BMP:
		return imaging.BMP, true
	case TIFF:
		return imaging.TIFF, true
	default:
		return 0, false
	}
}

// Image is a decoded photo with its detected format and metadata.
type Image struct {
	Pixels   image.Image
	Format   Format
	Metadata Metadata
}

// Width returns the decoded (not reoriented) pixel width.
func (i *Image) Width() int { return i.Pixels.Bounds().Dx() }

// Height returns the decoded (not reoriented) pixel height.
func (i *Image) Height() int { return i.Pixels.Bounds().Dy() }

// Reoriented returns the pixels with the EXIF orientation applied.
func (i *Image) Reoriented() image.Image {
	return Reorient(i.Pixels, i.Metadata.Orientation)
}

// Decode decodes data into pixels and reads metadata for formats that may
// carry EXIF. Metadata problems never fail decoding; see Metadata.Err.
func Decode(data []byte) (*Image, error) {
	pixels, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupportedFormat
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	format := Format(name)
	img := &Image{
		Pixels:   pixels,
		Format:   format,
		Metadata: Metadata{Orientation: Identity},
	}
	if format.carriesExif() {
		img.Metadata = ReadMetadata(data, format)
	}
	return img, nil
}

// Encode writes img in the given format. JPEG output uses quality 90.
func Encode(w io.Writer, img image.Image, format Format) error {
	f, ok := format.imagingFormat()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotPersistable, format)
	}
	if err := imaging.Encode(w, img, f, imaging.JPEGQuality(90)); err != nil {
		return fmt.Errorf("encoding %s: %w", format, err)
	}
	return nil
}

// EncodeBytes is Encode into a fresh buffer.
func EncodeBytes(img image.Image, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
