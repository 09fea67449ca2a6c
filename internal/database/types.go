package database

import (
	"time"

	"github.com/kozaktomas/photo-library/internal/faces"
	"github.com/kozaktomas/photo-library/internal/fingerprint"
)

// Photo is a stored photograph. FileName is relative to the photo and
// thumbnail trees, e.g. "2021-06/<digest>.jpg".
type Photo struct {
	ID               int64
	Digest           fingerprint.Digest
	FileName         string
	ImageWidth       int
	ImageHeight      int
	ThumbWidth       int
	ThumbHeight      int
	OriginalDatetime *time.Time
	UploadDatetime   time.Time
}

// TakenAt is the datetime used for gallery grouping: the original capture
// time when known, otherwise the upload time.
func (p *Photo) TakenAt() time.Time {
	if p.OriginalDatetime != nil {
		return *p.OriginalDatetime
	}
	return p.UploadDatetime
}

// Person is an identity in the people graph.
type Person struct {
	ID          int64
	FirstName   string
	MiddleNames *string
	Surname     string
	DisplayName *string
	DOB         *time.Time
}

// Appearance records one detected face of a person in a photo. Reference
// appearances are the anchors the identity matcher compares against.
type Appearance struct {
	ID        int64
	Person    int64
	Photo     int64
	Reference bool
	Top       int
	Left      int
	Bottom    int
	Right     int
	Embedding faces.Embedding
}

// Box returns the face bounding box of the appearance.
func (a *Appearance) Box() faces.Rect {
	return faces.Rect{Top: a.Top, Left: a.Left, Bottom: a.Bottom, Right: a.Right}
}

// Avatar designates the appearance used as a person's portrait.
type Avatar struct {
	ID         int64
	Person     int64
	Appearance int64
}

// AvatarSource is everything needed to render an avatar: the photo file and
// the face box within it.
type AvatarSource struct {
	FileName string
	Top      int
	Left     int
	Bottom   int
	Right    int
}

// Box returns the face bounding box.
func (s *AvatarSource) Box() faces.Rect {
	return faces.Rect{Top: s.Top, Left: s.Left, Bottom: s.Bottom, Right: s.Right}
}

// KnownFace is the embedding of a reference appearance together with the
// person it belongs to.
type KnownFace struct {
	Person    int64
	Embedding faces.Embedding
}

// DayCount is the number of photos taken on a calendar day.
type DayCount struct {
	Date  time.Time
	Count int
}
