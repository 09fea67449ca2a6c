// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Image derivation constants
const (
	// DefaultThumbSize is the target length of the shorter thumbnail side in pixels
	DefaultThumbSize = 256

	// ThumbMaxLongSide caps the long side of very tall thumbnails, in
	// multiples of the thumbnail size
	ThumbMaxLongSide = 16

	// DefaultAvatarSize is the side of the square avatar image in pixels
	DefaultAvatarSize = 128

	// DefaultAvatarZoom scales the avatar crop around the face box.
	// At 1.0 the crop side is twice the larger box dimension.
	DefaultAvatarZoom = 1.0

	// MonthDirLayout is the time layout used for calendar-month sub-directories
	MonthDirLayout = "2006-01"

	// ExifDateTimeLayout is the layout of EXIF DateTimeOriginal values
	ExifDateTimeLayout = "2006:01:02 15:04:05"

	// DayLayout is the layout of calendar days in URLs and API payloads
	DayLayout = "2006-01-02"
)

// Face matching constants
const (
	// DefaultMatchTolerance is the maximum Euclidean embedding distance accepted
	// as "same person". Lower values = stricter matching
	DefaultMatchTolerance = 0.6

	// DuplicateBoxIoU is the Intersection over Union above which two detected
	// face boxes are treated as the same face
	DuplicateBoxIoU = 0.9

	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node
	HNSWMaxNeighbors = 16

	// HNSWCandidates is the number of candidates requested from the HNSW index
	// before exact re-scoring
	HNSWCandidates = 8

	// HNSWEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	HNSWEfSearch = 64
)

// Processing constants
const (
	// DefaultUploadConcurrency is the number of parallel uploads for the bulk upload command
	DefaultUploadConcurrency = 4

	// DefaultFaceServiceTimeout is the per-request timeout in seconds for the face service
	DefaultFaceServiceTimeout = 60
)

// File upload constants
const (
	// MaxUploadSize is the maximum accepted photo upload body (100 MiB)
	MaxUploadSize = 100 << 20
)

// Placeholder name fields for people minted from unknown faces
const (
	PlaceholderFirstName   = "Person"
	PlaceholderMiddleNames = "'Photo Bomber'"
	PlaceholderSurname     = "McPerson"
)
