package ingest

import (
	"errors"
	"fmt"
)

// Kind classifies ingestion failures.
type Kind int

const (
	ImageLoadFailed Kind = iota + 1
	UnpersistableImageFormat
	FetchExistingPhotoFailed
	PhotoAlreadyPosted
	CreatePhotoDirError
	CreateThumbDirError
	SavePhotoFailed
	SaveThumbFailed
	RecordPhotoFailed
	FetchKnownFacesFailed
	FaceEncoderInitFailed
	FaceDetectionFailed
	RecordPersonFailed
	RecordAppearanceFailed
	RecordAvatarFailed
	OperationCancelled
)

var kindMessages = map[Kind]string{
	ImageLoadFailed:          "Failed to decode image",
	UnpersistableImageFormat: "Image format not persistable",
	FetchExistingPhotoFailed: "Failed to check if the photo already exists",
	PhotoAlreadyPosted:       "Photo already posted",
	CreatePhotoDirError:      "Failed to create the photo sub-directory",
	CreateThumbDirError:      "Failed to create the thumb sub-directory",
	SavePhotoFailed:          "Failed to store the photo",
	SaveThumbFailed:          "Failed to store the photo's thumbnail",
	RecordPhotoFailed:        "Failed to record photo in database",
	FetchKnownFacesFailed:    "Failed to fetch known faces",
	FaceEncoderInitFailed:    "Failed to setup face encoder",
	FaceDetectionFailed:      "Failed to process faces",
	RecordPersonFailed:       "Failed to record person in database",
	RecordAppearanceFailed:   "Failed to record appearance in database",
	RecordAvatarFailed:       "Failed to record avatar in database",
	OperationCancelled:       "Operation cancelled",
}

var kindNames = map[Kind]string{
	ImageLoadFailed:          "ImageLoadFailed",
	UnpersistableImageFormat: "UnpersistableImageFormat",
	FetchExistingPhotoFailed: "FetchExistingPhotoFailed",
	PhotoAlreadyPosted:       "PhotoAlreadyPosted",
	CreatePhotoDirError:      "CreatePhotoDirError",
	CreateThumbDirError:      "CreateThumbDirError",
	SavePhotoFailed:          "SavePhotoFailed",
	SaveThumbFailed:          "SaveThumbFailed",
	RecordPhotoFailed:        "RecordPhotoFailed",
	FetchKnownFacesFailed:    "FetchKnownFacesFailed",
	FaceEncoderInitFailed:    "FaceEncoderInitFailed",
	FaceDetectionFailed:      "FaceDetectionFailed",
	RecordPersonFailed:       "RecordPersonFailed",
	RecordAppearanceFailed:   "RecordAppearanceFailed",
	RecordAvatarFailed:       "RecordAvatarFailed",
	OperationCancelled:       "OperationCancelled",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Message is the human readable description of the kind.
func (k Kind) Message() string {
	if msg, ok := kindMessages[k]; ok {
		return msg
	}
	return "Ingestion failed"
}

// InputError reports whether the failure was caused by the uploaded bytes.
func (k Kind) InputError() bool {
	return k == ImageLoadFailed || k == UnpersistableImageFormat
}

// Error is an ingestion failure. PhotoID is set for PhotoAlreadyPosted (the
// existing photo) and for failures after the photo row was recorded.
type Error struct {
	Kind    Kind
	PhotoID int64
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.Message()
	if e.Kind == PhotoAlreadyPosted {
		msg = fmt.Sprintf("%s (photo %d)", msg, e.PhotoID)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, photoID int64, err error) *Error {
	return &Error{Kind: kind, PhotoID: photoID, Err: err}
}

// KindOf returns the kind of an ingestion error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// ErrPoolClosed is the cause of OperationCancelled once the pool is closed.
var ErrPoolClosed = errors.New("ingest pool closed")
