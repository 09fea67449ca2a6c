// Package ingest turns uploaded bytes into a stored photo and resolves the
// faces in it to people.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/photo-library/internal/constants"
	"github.com/kozaktomas/photo-library/internal/database"
	"github.com/kozaktomas/photo-library/internal/facematch"
	"github.com/kozaktomas/photo-library/internal/faces"
	"github.com/kozaktomas/photo-library/internal/fingerprint"
	"github.com/kozaktomas/photo-library/internal/imagecodec"
	"github.com/kozaktomas/photo-library/internal/observability"
	"github.com/kozaktomas/photo-library/internal/storage"
)

// Result describes a successful ingestion.
type Result struct {
	PhotoID  int64
	UploadID string
	// FileName is the photo's path within the photo and thumbnail trees
	FileName string
	// Appearances are the recorded appearance ids in detection order
	Appearances []int64
	// NewPeople are the people minted for unrecognised faces
	NewPeople []int64
}

// Options tunes an Ingester.
type Options struct {
	// ThumbSize is the thumbnail target size (default 256)
	ThumbSize int
	// Now returns the upload time (default time.Now)
	Now func() time.Time
	// Metrics is optional
	Metrics *observability.Metrics
	// Logger defaults to slog.Default()
	Logger *slog.Logger
}

// Ingester runs the ingestion pipeline. It is safe for concurrent use.
type Ingester struct {
	store     database.Store
	blobs     storage.Store
	encoder   faces.Encoder
	resolver  facematch.Resolver
	thumbSize int
	now       func() time.Time
	metrics   *observability.Metrics
	logger    *slog.Logger
	digests   digestLocks
}

// New creates an Ingester.
func New(store database.Store, blobs storage.Store, encoder faces.Encoder, resolver facematch.Resolver, opts Options) *Ingester {
	if opts.ThumbSize <= 0 {
		opts.ThumbSize = constants.DefaultThumbSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Ingester{
		store:     store,
		blobs:     blobs,
		encoder:   encoder,
		resolver:  resolver,
		thumbSize: opts.ThumbSize,
		now:       opts.Now,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
}

type uploadIDKey struct{}

// WithUploadID attaches a correlation id to ctx for Ingest to use.
func WithUploadID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, uploadIDKey{}, id)
}

// UploadID returns the correlation id attached to ctx, if any.
func UploadID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(uploadIDKey{}).(string)
	return id, ok && id != ""
}

func (in *Ingester) stage(name string, start time.Time) {
	in.metrics.ObserveStage(name, time.Since(start).Seconds())
}

// Ingest stores data as a new photo and records its faces. Failures after
// the photo row is recorded are not rolled back; the returned *Error then
// carries the photo id.
func (in *Ingester) Ingest(ctx context.Context, data []byte) (*Result, error) {
	uploadID, ok := UploadID(ctx)
	if !ok {
		uploadID = uuid.NewString()
	}
	log := in.logger.With("upload_id", uploadID)
	started := time.Now()

	res, err := in.run(ctx, log, uploadID, data)

	outcome := observability.OutcomeStored
	if err != nil {
		outcome = observability.OutcomeFailed
		if kind, _ := KindOf(err); kind == PhotoAlreadyPosted {
			outcome = observability.OutcomeDuplicate
		}
		log.Warn("photo ingestion failed", "error", err, "duration", time.Since(started))
	} else {
		log.Info("photo ingested",
			"photo_id", res.PhotoID,
			"file", res.FileName,
			"appearances", len(res.Appearances),
			"new_people", len(res.NewPeople),
			"duration", time.Since(started))
	}
	in.metrics.Upload(outcome)
	in.stage("total", started)

	return res, err
}

func (in *Ingester) run(ctx context.Context, log *slog.Logger, uploadID string, data []byte) (*Result, error) {
	// 1. Decode.
	t := time.Now()
	img, err := imagecodec.Decode(data)
	if err != nil {
		return nil, newError(ImageLoadFailed, 0, err)
	}
	if img.Metadata.Err != nil {
		log.Debug("photo metadata unavailable", "error", img.Metadata.Err)
	}
	log.Debug("decoded photo",
		"format", img.Format,
		"orientation", img.Metadata.Orientation,
		"original_datetime", img.Metadata.OriginalDatetime)

	// 2. Fingerprint and duplicate check.
	digest := fingerprint.Compute(img.Pixels)
	in.stage("decode", t)

	// Steps 2 to 7 hold the digest lock, so a concurrent upload of the same
	// pixels is rejected before it writes any file.
	unlock := in.digests.lock(digest)
	defer func() { unlock() }()

	if id, found, err := in.store.FindPhotoByDigest(ctx, digest); err != nil {
		return nil, newError(FetchExistingPhotoFailed, 0, err)
	} else if found {
		return nil, newError(PhotoAlreadyPosted, id, nil)
	}

	// 3. Persistable extension.
	ext, ok := img.Format.Extension()
	if !ok {
		return nil, newError(UnpersistableImageFormat, 0, fmt.Errorf("%w: %s", imagecodec.ErrNotPersistable, img.Format))
	}

	// 4. Month sub-directories.
	uploaded := in.now().UTC().Truncate(time.Second)
	taken := uploaded
	if img.Metadata.OriginalDatetime != nil {
		taken = *img.Metadata.OriginalDatetime
	}
	month := taken.Format(constants.MonthDirLayout)
	fileName := month + "/" + digest.String() + "." + ext

	if err := in.blobs.EnsureDir(ctx, storage.Photos, month); err != nil {
		return nil, newError(CreatePhotoDirError, 0, err)
	}
	if err := in.blobs.EnsureDir(ctx, storage.Thumbs, month); err != nil {
		return nil, newError(CreateThumbDirError, 0, err)
	}

	// 5. Reorient and derive the thumbnail.
	t = time.Now()
	reoriented := img.Reoriented()
	thumb := imagecodec.Thumbnail(reoriented, in.thumbSize)
	thumbBytes, err := imagecodec.EncodeBytes(thumb, img.Format)
	if err != nil {
		return nil, newError(SaveThumbFailed, 0, err)
	}
	in.stage("thumbnail", t)

	// 6. Original bytes and thumbnail.
	t = time.Now()
	if err := in.blobs.Put(ctx, storage.Photos, fileName, data); err != nil {
		return nil, newError(SavePhotoFailed, 0, err)
	}
	if err := in.blobs.Put(ctx, storage.Thumbs, fileName, thumbBytes); err != nil {
		return nil, newError(SaveThumbFailed, 0, err)
	}
	in.stage("store_files", t)

	// 7. Photo row.
	rb := reoriented.Bounds()
	tb := thumb.Bounds()
	photoID, err := in.store.InsertPhoto(ctx, database.NewPhoto{
		Digest:           digest,
		FileName:         fileName,
		ImageWidth:       rb.Dx(),
		ImageHeight:      rb.Dy(),
		ThumbWidth:       tb.Dx(),
		ThumbHeight:      tb.Dy(),
		OriginalDatetime: img.Metadata.OriginalDatetime,
		UploadDatetime:   uploaded,
	})
	if err != nil {
		// A concurrent upload of the same pixels may have won the unique index.
		if id, found, ferr := in.store.FindPhotoByDigest(ctx, digest); ferr == nil && found {
			return nil, newError(PhotoAlreadyPosted, id, nil)
		}
		return nil, newError(RecordPhotoFailed, 0, err)
	}
	unlock()
	unlock = func() {}
	log = log.With("photo_id", photoID)
	log.Debug("recorded photo", "file", fileName, "width", rb.Dx(), "height", rb.Dy())

	res := &Result{PhotoID: photoID, UploadID: uploadID, FileName: fileName}

	// 8.-9. Faces.
	t = time.Now()
	err = in.resolveFaces(ctx, log, faces.NewFrame(reoriented), res)
	in.stage("faces", t)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// resolveFaces detects the faces in the frame and records an appearance
// for each. The known set is loaded once, so people minted here are not
// matched by later faces of the same photo.
func (in *Ingester) resolveFaces(ctx context.Context, log *slog.Logger, frame *faces.Frame, res *Result) error {
	photoID := res.PhotoID

	known, err := in.store.KnownFaces(ctx)
	if err != nil {
		return newError(FetchKnownFacesFailed, photoID, err)
	}
	log.Debug("loaded known faces", "count", len(known))

	boxes, err := in.encoder.DetectFaces(ctx, frame)
	if err != nil {
		return newError(FaceDetectionFailed, photoID, err)
	}
	detected := len(boxes)
	boxes = facematch.DedupeBoxes(boxes, constants.DuplicateBoxIoU)
	in.metrics.FaceDetected(len(boxes))
	log.Debug("detected faces", "count", len(boxes), "duplicates", detected-len(boxes))

	if len(boxes) == 0 {
		return nil
	}
	if err := in.encoder.Ready(ctx); err != nil {
		return newError(FaceEncoderInitFailed, photoID, err)
	}

	for _, box := range boxes {
		landmarks, err := in.encoder.Landmarks(ctx, frame, box)
		if err != nil {
			return newError(FaceDetectionFailed, photoID, err)
		}
		if len(landmarks) == 0 {
			log.Debug("skipping face without landmarks", "box", box)
			continue
		}

		embeddings, err := in.encoder.Encode(ctx, frame, []faces.Landmarks{landmarks})
		if err != nil {
			return newError(FaceDetectionFailed, photoID, err)
		}
		if len(embeddings) != 1 {
			return newError(FaceDetectionFailed, photoID, fmt.Errorf("expected 1 embedding, got %d", len(embeddings)))
		}
		embedding := embeddings[0]

		match := in.resolver.Resolve(embedding, known)
		person := match.Person
		if match.New {
			person, err = in.store.InsertPlaceholderPerson(ctx)
			if err != nil {
				return newError(RecordPersonFailed, photoID, err)
			}
			in.metrics.PersonMinted()
			res.NewPeople = append(res.NewPeople, person)
			log.Debug("minted person", "person", person, "nearest", match.Distance)
		} else {
			in.metrics.FaceMatched(match.Distance)
			log.Debug("matched person", "person", person, "distance", match.Distance)
		}

		appearance, err := in.store.InsertAppearance(ctx, database.Appearance{
			Person:    person,
			Photo:     photoID,
			Reference: match.New,
			Top:       box.Top,
			Left:      box.Left,
			Bottom:    box.Bottom,
			Right:     box.Right,
			Embedding: embedding,
		})
		if err != nil {
			return newError(RecordAppearanceFailed, photoID, err)
		}
		res.Appearances = append(res.Appearances, appearance)

		if match.New {
			if _, err := in.store.InsertAvatar(ctx, person, appearance); err != nil {
				return newError(RecordAvatarFailed, photoID, err)
			}
		}
	}
	return nil
}

// IsCancelled reports whether err is a cancellation, either of the pool or
// of a store operation.
func IsCancelled(err error) bool {
	if kind, ok := KindOf(err); ok && kind == OperationCancelled {
		return true
	}
	return database.IsCancelled(err) || errors.Is(err, context.Canceled)
}
