package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/kozaktomas/photo-library/internal/constants"
	"github.com/kozaktomas/photo-library/internal/database"
	"github.com/kozaktomas/photo-library/internal/ingest"
)

// UploadIDHeader carries the correlation id of an upload.
const UploadIDHeader = "X-Upload-ID"

// Submitter runs photo ingestion. *ingest.Pool implements it.
type Submitter interface {
	Submit(ctx context.Context, data []byte) (*ingest.Result, error)
}

// PhotosHandler handles photo endpoints
type PhotosHandler struct {
	store         database.PhotoStore
	appearances   database.AppearanceStore
	submitter     Submitter
	maxUploadSize int64
	logger        *slog.Logger
}

// NewPhotosHandler creates a new photos handler
func NewPhotosHandler(store database.Store, submitter Submitter, maxUploadSize int64, logger *slog.Logger) *PhotosHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = constants.MaxUploadSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PhotosHandler{
		store:         store,
		appearances:   store,
		submitter:     submitter,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// Upload ingests the raw request body as a new photo.
func (h *PhotosHandler) Upload(w http.ResponseWriter, r *http.Request) {
	uploadID := r.Header.Get(UploadIDHeader)
	if uploadID == "" || len(uploadID) > 64 {
		uploadID = uuid.NewString()
	}
	uploadID = sanitizeForLog(uploadID)
	w.Header().Set(UploadIDHeader, uploadID)

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUploadSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "Photo exceeds the upload size limit")
			return
		}
		respondFailure(w, "Failed to read request body", err)
		return
	}
	if len(data) == 0 {
		respondError(w, http.StatusBadRequest, "Empty request body")
		return
	}

	ctx := ingest.WithUploadID(r.Context(), uploadID)
	if _, err := h.submitter.Submit(ctx, data); err != nil {
		respondFailure(w, "", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Get returns a photo, or null when it does not exist.
func (h *PhotosHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	photo, err := h.store.GetPhoto(r.Context(), id)
	if err != nil {
		respondFailure(w, errDatabaseQuery, err)
		return
	}
	if photo == nil {
		respondNull(w)
		return
	}
	respondJSON(w, http.StatusOK, photoToResponse(photo))
}

// Appearances returns the faces in a photo keyed by appearance id.
func (h *PhotosHandler) Appearances(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	appearances, err := h.appearances.AppearancesForPhoto(r.Context(), id)
	if err != nil {
		respondFailure(w, errDatabaseQuery, err)
		return
	}

	var resp IDMap[AppearanceResponse]
	for i := range appearances {
		resp.Add(appearances[i].ID, appearanceToResponse(&appearances[i]))
	}
	respondJSON(w, http.StatusOK, resp)
}

// CountPerDay returns [date, count] pairs, newest day first.
func (h *PhotosHandler) CountPerDay(w http.ResponseWriter, r *http.Request) {
	people, err := peopleFilter(r.URL.Query())
	if err != nil {
		respondFailure(w, "Failed to decode query string", withStatus(http.StatusBadRequest, err))
		return
	}

	counts, err := h.store.CountPerDay(r.Context(), people)
	if err != nil {
		respondFailure(w, errDatabaseQuery, err)
		return
	}

	resp := make([]DayCountResponse, len(counts))
	for i, c := range counts {
		resp[i] = DayCountResponse{Date: Date{Time: c.Date}, Count: c.Count}
	}
	respondJSON(w, http.StatusOK, resp)
}

// ForDay returns the photos taken on a day keyed by photo id, in taken order.
func (h *PhotosHandler) ForDay(w http.ResponseWriter, r *http.Request) {
	day, err := pathDate(r, "date")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	people, err := peopleFilter(r.URL.Query())
	if err != nil {
		respondFailure(w, "Failed to decode query string", withStatus(http.StatusBadRequest, err))
		return
	}

	photos, err := h.store.PhotosForDay(r.Context(), day, people)
	if err != nil {
		respondFailure(w, errDatabaseQuery, err)
		return
	}

	var resp IDMap[PhotoResponse]
	for i := range photos {
		resp.Add(photos[i].ID, photoToResponse(&photos[i]))
	}
	respondJSON(w, http.StatusOK, resp)
}
