// Package mock provides a deterministic faces.Encoder for tests.
package mock

import (
	"context"
	"sync"

	"github.com/kozaktomas/photo-library/internal/faces"
)

// Face is a face the mock encoder will "find".
type Face struct {
	Box       faces.Rect
	Embedding faces.Embedding
	// NoLandmarks makes Landmarks return an empty set for this face.
	NoLandmarks bool
}

// Encoder is a mock implementation of faces.Encoder.
type Encoder struct {
	mu sync.Mutex

	// Faces is returned for every frame unless FacesFor is set.
	Faces []Face
	// FacesFor picks the faces for a specific frame.
	FacesFor func(frame *faces.Frame) []Face

	// Error injection
	ReadyError     error
	DetectError    error
	LandmarksError error
	EncodeError    error

	// Call counters
	ReadyCalls     int
	DetectCalls    int
	LandmarksCalls int
	EncodeCalls    int
}

// New creates a mock encoder that finds the given faces in every frame.
func New(found ...Face) *Encoder {
	return &Encoder{Faces: found}
}

func (e *Encoder) facesFor(frame *faces.Frame) []Face {
	if e.FacesFor != nil {
		return e.FacesFor(frame)
	}
	return e.Faces
}

// Ready reports the injected error, if any.
func (e *Encoder) Ready(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ReadyCalls++
	return e.ReadyError
}

// DetectFaces returns the boxes of the configured faces.
func (e *Encoder) DetectFaces(ctx context.Context, frame *faces.Frame) ([]faces.Rect, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.DetectCalls++
	if e.DetectError != nil {
		return nil, e.DetectError
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	found := e.facesFor(frame)
	rects := make([]faces.Rect, len(found))
	for i, f := range found {
		rects[i] = f.Box
	}
	return rects, nil
}

// Landmarks returns the box corners for a configured face, or nothing when
// the face is marked NoLandmarks or box is unknown.
func (e *Encoder) Landmarks(ctx context.Context, frame *faces.Frame, box faces.Rect) (faces.Landmarks, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.LandmarksCalls++
	if e.LandmarksError != nil {
		return nil, e.LandmarksError
	}

	for _, f := range e.facesFor(frame) {
		if f.Box != box {
			continue
		}
		if f.NoLandmarks {
			return nil, nil
		}
		return faces.Landmarks{
			{X: box.Left, Y: box.Top},
			{X: box.Right, Y: box.Bottom},
		}, nil
	}
	return nil, nil
}

// Encode returns the configured embedding of the face each landmark set
// was produced for.
func (e *Encoder) Encode(ctx context.Context, frame *faces.Frame, landmarks []faces.Landmarks) ([]faces.Embedding, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.EncodeCalls++
	if e.EncodeError != nil {
		return nil, e.EncodeError
	}

	found := e.facesFor(frame)
	out := make([]faces.Embedding, 0, len(landmarks))
	for _, lm := range landmarks {
		var emb faces.Embedding
		if len(lm) >= 2 {
			box := faces.Rect{Left: lm[0].X, Top: lm[0].Y, Right: lm[1].X, Bottom: lm[1].Y}
			for _, f := range found {
				if f.Box == box {
					emb = f.Embedding
					break
				}
			}
		}
		out = append(out, emb)
	}
	return out, nil
}

// Embedding returns a deterministic embedding whose every component is v.
// Distance between Embedding(a) and Embedding(b) is |a-b|*sqrt(128).
func Embedding(v float64) faces.Embedding {
	var e faces.Embedding
	for i := range e {
		e[i] = v
	}
	return e
}

// Axis returns an embedding that is zero except for component i set to v.
func Axis(i int, v float64) faces.Embedding {
	var e faces.Embedding
	e[i%faces.EmbeddingDim] = v
	return e
}
