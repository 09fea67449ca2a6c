package imagecodec

import (
	"errors"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/kozaktomas/photo-library/internal/constants"
)

// ErrEmptyCrop is returned when an avatar crop does not intersect the image.
var ErrEmptyCrop = errors.New("avatar crop outside image")

// ThumbnailSize computes thumbnail dimensions for a w×h image.
//
// Shapes between 1:2 and 2:1 get their shorter side scaled to size. Wider
// panoramas have their width clamped to 2×size, taller images their width
// clamped to size/2, so extreme shapes stay visible instead of collapsing
// the short side towards zero. The long side never exceeds
// constants.ThumbMaxLongSide×size. No returned dimension is ever below 1.
func ThumbnailSize(w, h, size int) (int, int) {
	if w <= 0 || h <= 0 {
		return 1, 1
	}
	ratio := float64(w) / float64(h)

	var tw, th int
	switch {
	case ratio > 2:
		tw = min(w, 2*size)
		th = int(math.Round(float64(tw) / ratio))
	case ratio < 0.5:
		tw = min(w, size/2)
		th = int(math.Round(float64(tw) / ratio))
		if limit := constants.ThumbMaxLongSide * size; th > limit {
			th = limit
			tw = int(math.Round(float64(th) * ratio))
		}
	case w < h:
		tw = size
		th = int(math.Round(float64(size) / ratio))
	default:
		tw = int(math.Round(float64(size) * ratio))
		th = size
	}

	return max(tw, 1), max(th, 1)
}

// Thumbnail resizes img to ThumbnailSize with a Lanczos filter.
func Thumbnail(img image.Image, size int) *image.NRGBA {
	b := img.Bounds()
	tw, th := ThumbnailSize(b.Dx(), b.Dy(), size)
	return imaging.Resize(img, tw, th, imaging.Lanczos)
}

// AvatarCrop cuts a square around a face box and scales it to size×size.
//
// The crop is centred on the box with half-side zoom×max(box width, box
// height), so zoom 1 yields a side twice the larger box dimension. Parts of
// the square outside the image are clipped.
func AvatarCrop(img image.Image, box image.Rectangle, size int, zoom float64) (*image.NRGBA, error) {
	box = box.Canon()
	cx := (box.Min.X + box.Max.X) / 2
	cy := (box.Min.Y + box.Max.Y) / 2
	half := int(math.Round(zoom * float64(max(box.Dx(), box.Dy()))))
	if half <= 0 {
		return nil, ErrEmptyCrop
	}

	x0 := max(0, cx-half)
	y0 := max(0, cy-half)
	region := image.Rect(x0, y0, x0+2*half, y0+2*half).Add(img.Bounds().Min)
	if region.Intersect(img.Bounds()).Empty() {
		return nil, ErrEmptyCrop
	}

	cropped := imaging.Crop(img, region)
	return imaging.Resize(cropped, size, size, imaging.Lanczos), nil
}
