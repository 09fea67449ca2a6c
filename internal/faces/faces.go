// Package faces wraps the external face detection, landmark and encoding
// capability behind the Encoder interface.
package faces

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/kozaktomas/photo-library/internal/imagecodec"
)

// EmbeddingDim is the length of a face embedding.
const EmbeddingDim = 128

// ErrDimension is returned when an embedding has the wrong length.
var ErrDimension = errors.New("embedding dimension mismatch")

// Embedding is a face descriptor. Two descriptors of the same person are
// close in Euclidean distance.
type Embedding [EmbeddingDim]float64

// Distance returns the Euclidean distance between e and o.
func (e Embedding) Distance(o Embedding) float64 {
	var sum float64
	for i := range e {
		d := e[i] - o[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// MarshalBinary encodes e as 128 little-endian float64 values.
func (e Embedding) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, EmbeddingDim*8)
	for _, v := range e {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
	}
	return buf, nil
}

// UnmarshalBinary decodes the MarshalBinary form.
func (e *Embedding) UnmarshalBinary(data []byte) error {
	if len(data) != EmbeddingDim*8 {
		return fmt.Errorf("%w: %d bytes", ErrDimension, len(data))
	}
	for i := range e {
		e[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return nil
}

// Float32 returns the embedding as a float32 slice, the form vector indexes use.
func (e Embedding) Float32() []float32 {
	out := make([]float32, EmbeddingDim)
	for i, v := range e {
		out[i] = float32(v)
	}
	return out
}

// FromFloat64 copies a slice into an Embedding.
func FromFloat64(values []float64) (Embedding, error) {
	var e Embedding
	if len(values) != EmbeddingDim {
		return e, fmt.Errorf("%w: got %d values", ErrDimension, len(values))
	}
	copy(e[:], values)
	return e, nil
}

// FromFloat32 converts a float32 slice into an Embedding.
func FromFloat32(values []float32) (Embedding, error) {
	var e Embedding
	if len(values) != EmbeddingDim {
		return e, fmt.Errorf("%w: got %d values", ErrDimension, len(values))
	}
	for i, v := range values {
		e[i] = float64(v)
	}
	return e, nil
}

// Rect is a face bounding box in pixel coordinates of the reoriented photo.
type Rect struct {
	Top    int `json:"top"`
	Left   int `json:"left"`
	Bottom int `json:"bottom"`
	Right  int `json:"right"`
}

// Rectangle converts r into an image.Rectangle.
func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right, r.Bottom)
}

// Corners returns r as [x1, y1, x2, y2].
func (r Rect) Corners() []float64 {
	return []float64{float64(r.Left), float64(r.Top), float64(r.Right), float64(r.Bottom)}
}

// Point is a facial landmark position.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Landmarks are the shape points found inside one face box. An empty set
// means the face could not be landmarked and should be skipped.
type Landmarks []Point

// Encoder is the face recognition capability consumed by ingestion.
type Encoder interface {
	// Ready reports whether the models are loaded. An error here is a
	// model initialization failure.
	Ready(ctx context.Context) error
	// DetectFaces returns the bounding boxes of faces in the frame.
	DetectFaces(ctx context.Context, frame *Frame) ([]Rect, error)
	// Landmarks returns the shape points inside box, or none.
	Landmarks(ctx context.Context, frame *Frame, box Rect) (Landmarks, error)
	// Encode returns one embedding per landmark set, in order.
	Encode(ctx context.Context, frame *Frame, landmarks []Landmarks) ([]Embedding, error)
}

// Frame is an image handed to an Encoder. Its transport encoding is
// computed once and shared by every call made for the same photo.
type Frame struct {
	img  image.Image
	once sync.Once
	data []byte
	err  error
}

// NewFrame wraps img.
func NewFrame(img image.Image) *Frame {
	return &Frame{img: img}
}

// Image returns the wrapped pixels.
func (f *Frame) Image() image.Image {
	return f.img
}

// Bytes returns the frame encoded as PNG.
func (f *Frame) Bytes() ([]byte, error) {
	f.once.Do(func() {
		f.data, f.err = imagecodec.EncodeBytes(f.img, imagecodec.PNG)
	})
	return f.data, f.err
}
