package database

import (
	"context"
	"time"

	"github.com/kozaktomas/photo-library/internal/fingerprint"
)

// NewPhoto holds the fields of a photo being recorded.
type NewPhoto struct {
	Digest           fingerprint.Digest
	FileName         string
	ImageWidth       int
	ImageHeight      int
	ThumbWidth       int
	ThumbHeight      int
	OriginalDatetime *time.Time
	UploadDatetime   time.Time
}

// PhotoStore provides access to photos
type PhotoStore interface {
	// InsertPhoto records a photo and returns its id
	InsertPhoto(ctx context.Context, photo NewPhoto) (int64, error)
	// FindPhotoByDigest returns the id of the photo with the digest, or ok=false
	FindPhotoByDigest(ctx context.Context, digest fingerprint.Digest) (id int64, ok bool, err error)
	// GetPhoto returns the photo, or nil if it does not exist
	GetPhoto(ctx context.Context, id int64) (*Photo, error)
	// CountPerDay returns photo counts per day, newest day first.
	// When people is non-empty only photos containing all of them are counted.
	CountPerDay(ctx context.Context, people []int64) ([]DayCount, error)
	// PhotosForDay returns the photos taken on day, ordered by taken time then id.
	// When people is non-empty only photos containing all of them are returned.
	PhotosForDay(ctx context.Context, day time.Time, people []int64) ([]Photo, error)
}

// PersonStore provides access to people
type PersonStore interface {
	// InsertPlaceholderPerson mints a person with placeholder names
	InsertPlaceholderPerson(ctx context.Context) (int64, error)
	// GetPerson returns the person, or nil if it does not exist
	GetPerson(ctx context.Context, id int64) (*Person, error)
	// ListPeople returns everyone ordered by surname, first name and id
	ListPeople(ctx context.Context) ([]Person, error)
	// UpdatePerson overwrites the person's fields. Returns ErrNoSuchRecord
	// when no person has the id.
	UpdatePerson(ctx context.Context, person Person) error
	// MergePeople moves every appearance of src to dst, drops src's avatar and
	// deletes src, in one transaction. Returns ErrNoSuchRecord when either
	// person does not exist.
	MergePeople(ctx context.Context, dst, src int64) error
}

// AppearanceStore provides access to face appearances
type AppearanceStore interface {
	// InsertAppearance records an appearance and returns its id
	InsertAppearance(ctx context.Context, appearance Appearance) (int64, error)
	// KnownFaces returns the embeddings of all reference appearances in id order
	KnownFaces(ctx context.Context) ([]KnownFace, error)
	// AppearancesForPhoto returns the appearances in a photo in id order
	AppearancesForPhoto(ctx context.Context, photo int64) ([]Appearance, error)
	// GetAppearance returns the appearance, or nil if it does not exist
	GetAppearance(ctx context.Context, id int64) (*Appearance, error)
}

// AvatarStore provides access to avatars
type AvatarStore interface {
	// InsertAvatar records the avatar of a person and returns its id
	InsertAvatar(ctx context.Context, person, appearance int64) (int64, error)
	// AvatarForPerson returns the source of the person's avatar, or nil
	AvatarForPerson(ctx context.Context, person int64) (*AvatarSource, error)
	// AvatarSourceForAppearance returns the appearance's face within its photo, or nil
	AvatarSourceForAppearance(ctx context.Context, appearance int64) (*AvatarSource, error)
}

// Store combines every repository.
type Store interface {
	PhotoStore
	PersonStore
	AppearanceStore
	AvatarStore

	// Migrate applies pending schema migrations and returns the applied versions
	Migrate(ctx context.Context) ([]string, error)
	// Ping checks the connection
	Ping(ctx context.Context) error
	// Close releases the connection pool
	Close() error
}
