package imagecodec

import (
	"image"

	"github.com/disintegration/imaging"
)

// Orientation is an EXIF orientation code (tag 0x0112).
type Orientation int

const (
	Identity    Orientation = 1
	FlipHorz    Orientation = 2
	Rotate180   Orientation = 3
	FlipVert    Orientation = 4
	Transpose   Orientation = 5
	Rotate90Cw  Orientation = 6
	Transverse  Orientation = 7
	Rotate270Cw Orientation = 8
)

var orientationNames = map[Orientation]string{
	Identity:    "Identity",
	FlipHorz:    "FlipHorz",
	Rotate180:   "Rotate180",
	FlipVert:    "FlipVert",
	Transpose:   "Transpose",
	Rotate90Cw:  "Rotate90Cw",
	Transverse:  "Transverse",
	Rotate270Cw: "Rotate270Cw",
}

// OrientationFromCode maps an EXIF value to an Orientation.
// Values outside 1..8 are reported as not ok.
func OrientationFromCode(code int) (Orientation, bool) {
	o := Orientation(code)
	_, ok := orientationNames[o]
	return o, ok
}

func (o Orientation) String() string {
	if name, ok := orientationNames[o]; ok {
		return name
	}
	return "Unknown"
}

// SwapsDimensions reports whether applying o exchanges width and height.
func (o Orientation) SwapsDimensions() bool {
	return o >= Transpose && o <= Rotate270Cw
}

// Inverse returns the orientation whose transform undoes o.
func (o Orientation) Inverse() Orientation {
	switch o {
	case Rotate90Cw:
		return Rotate270Cw
	case Rotate270Cw:
		return Rotate90Cw
	default:
		return o
	}
}

// Reorient applies the transform that displays an image stored with
// orientation o upright. Identity (and unknown codes) return img unchanged.
func Reorient(img image.Image, o Orientation) image.Image {
	switch o {
	case FlipHorz:
		return imaging.FlipH(img)
	case Rotate180:
		return imaging.Rotate180(img)
	case FlipVert:
		return imaging.FlipV(img)
	case Transpose:
		return imaging.Transpose(img)
	case Rotate90Cw:
		// imaging rotates counter-clockwise.
		return imaging.Rotate270(img)
	case Transverse:
		return imaging.Transverse(img)
	case Rotate270Cw:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
