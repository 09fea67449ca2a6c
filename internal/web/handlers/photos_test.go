package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/photo-library/internal/database"
	"github.com/kozaktomas/photo-library/internal/database/mock"
	"github.com/kozaktomas/photo-library/internal/fingerprint"
	"github.com/kozaktomas/photo-library/internal/ingest"
	"github.com/kozaktomas/photo-library/internal/logging"
)

type stubSubmitter struct {
	err      error
	data     []byte
	uploadID string
}

func (s *stubSubmitter) Submit(ctx context.Context, data []byte) (*ingest.Result, error) {
	s.data = data
	s.uploadID, _ = ingest.UploadID(ctx)
	if s.err != nil {
		return nil, s.err
	}
	return &ingest.Result{PhotoID: 1, UploadID: s.uploadID}, nil
}

func seedPhoto(t *testing.T, store *mock.Store, n byte, taken *time.Time, uploaded time.Time) int64 {
	t.Helper()
	id, err := store.InsertPhoto(context.Background(), database.NewPhoto{
		Digest:           fingerprint.Digest{n},
		FileName:         "2021-06/photo.jpg",
		ImageWidth:       640,
		ImageHeight:      480,
		ThumbWidth:       341,
		ThumbHeight:      256,
		OriginalDatetime: taken,
		UploadDatetime:   uploaded,
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func seedAppearance(t *testing.T, store *mock.Store, person, photo int64) int64 {
	t.Helper()
	id, err := store.InsertAppearance(context.Background(), database.Appearance{
		Person: person, Photo: photo, Reference: true,
		Top: 10, Left: 20, Bottom: 50, Right: 60,
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func at(s string) *time.Time {
	t, err := time.Parse(time.DateTime, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestPhotosHandler_Upload(t *testing.T) {
	sub := &stubSubmitter{}
	h := NewPhotosHandler(mock.NewStore(), sub, 1024, logging.Discard())

	req := httptest.NewRequest(http.MethodPost, "/api/photos", strings.NewReader("jpeg bytes"))
	req.Header.Set(UploadIDHeader, "upload-7")
	recorder := httptest.NewRecorder()
	h.Upload(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	if recorder.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", recorder.Body.String())
	}
	if string(sub.data) != "jpeg bytes" {
		t.Errorf("submitter got %q", sub.data)
	}
	if sub.uploadID != "upload-7" || recorder.Header().Get(UploadIDHeader) != "upload-7" {
		t.Errorf("upload id not propagated: ctx %q, header %q", sub.uploadID, recorder.Header().Get(UploadIDHeader))
	}
}

func TestPhotosHandler_UploadGeneratesID(t *testing.T) {
	sub := &stubSubmitter{}
	h := NewPhotosHandler(mock.NewStore(), sub, 1024, logging.Discard())

	recorder := httptest.NewRecorder()
	h.Upload(recorder, httptest.NewRequest(http.MethodPost, "/api/photos", strings.NewReader("x")))

	assertStatusCode(t, recorder, http.StatusOK)
	if id := recorder.Header().Get(UploadIDHeader); id == "" || id != sub.uploadID {
		t.Errorf("expected generated upload id, header %q ctx %q", id, sub.uploadID)
	}
}

func TestPhotosHandler_UploadErrors(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		err         error
		wantStatus  int
		wantMessage string
		wantPhotoID int64
	}{
		{
			name:        "empty body",
			body:        "",
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Empty request body",
		},
		{
			name:        "too large",
			body:        strings.Repeat("x", 2048),
			wantStatus:  http.StatusRequestEntityTooLarge,
			wantMessage: "Photo exceeds the upload size limit",
		},
		{
			name:        "undecodable",
			body:        "garbage",
			err:         &ingest.Error{Kind: ingest.ImageLoadFailed, Err: errors.New("image: unknown format")},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Failed to decode image",
		},
		{
			name:        "duplicate",
			body:        "again",
			err:         &ingest.Error{Kind: ingest.PhotoAlreadyPosted, PhotoID: 12},
			wantStatus:  http.StatusConflict,
			wantMessage: "Photo already posted (photo 12)",
			wantPhotoID: 12,
		},
		{
			name:        "database down",
			body:        "photo",
			err:         &ingest.Error{Kind: ingest.RecordPhotoFailed, Err: errors.New("database is locked")},
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Failed to record photo in database",
		},
		{
			name:        "shutting down",
			body:        "photo",
			err:         &ingest.Error{Kind: ingest.OperationCancelled, Err: ingest.ErrPoolClosed},
			wantStatus:  http.StatusServiceUnavailable,
			wantMessage: "Operation cancelled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewPhotosHandler(mock.NewStore(), &stubSubmitter{err: tt.err}, 1024, logging.Discard())

			recorder := httptest.NewRecorder()
			h.Upload(recorder, httptest.NewRequest(http.MethodPost, "/api/photos", strings.NewReader(tt.body)))

			assertStatusCode(t, recorder, tt.wantStatus)
			var result ErrorResponse
			parseJSONResponse(t, recorder, &result)
			if result.Error != tt.wantMessage {
				t.Errorf("error = %q, want %q", result.Error, tt.wantMessage)
			}
			if result.PhotoID != tt.wantPhotoID {
				t.Errorf("photo_id = %d, want %d", result.PhotoID, tt.wantPhotoID)
			}
		})
	}
}

func TestPhotosHandler_UploadCauseChain(t *testing.T) {
	cause := errors.New("unexpected EOF")
	h := NewPhotosHandler(mock.NewStore(), &stubSubmitter{err: &ingest.Error{Kind: ingest.ImageLoadFailed, Err: cause}}, 0, nil)

	recorder := httptest.NewRecorder()
	h.Upload(recorder, httptest.NewRequest(http.MethodPost, "/api/photos", strings.NewReader("x")))

	var result ErrorResponse
	parseJSONResponse(t, recorder, &result)
	if result.Cause == nil || result.Cause.Description != "unexpected EOF" {
		t.Errorf("unexpected cause %+v", result.Cause)
	}
}

func TestPhotosHandler_Get(t *testing.T) {
	store := mock.NewStore()
	seedPhoto(t, store, 1, at("2021-06-15 10:00:00"), time.Unix(1646397000, 0))
	h := NewPhotosHandler(store, &stubSubmitter{}, 0, logging.Discard())

	t.Run("existing", func(t *testing.T) {
		req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/photos/1", nil), map[string]string{"id": "1"})
		recorder := httptest.NewRecorder()
		h.Get(recorder, req)

		assertStatusCode(t, recorder, http.StatusOK)
		var result PhotoResponse
		parseJSONResponse(t, recorder, &result)
		if result.FileName != "2021-06/photo.jpg" || result.ThumbHeight != 256 {
			t.Errorf("unexpected photo %+v", result)
		}
		if result.OriginalDatetime == nil || result.OriginalDatetime.Unix() != 1623751200 {
			t.Errorf("unexpected original datetime %v", result.OriginalDatetime)
		}
		if result.UploadDatetime.Unix() != 1646397000 {
			t.Errorf("unexpected upload datetime %v", result.UploadDatetime)
		}
	})

	t.Run("missing", func(t *testing.T) {
		req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/photos/99", nil), map[string]string{"id": "99"})
		recorder := httptest.NewRecorder()
		h.Get(recorder, req)

		assertStatusCode(t, recorder, http.StatusOK)
		if strings.TrimSpace(recorder.Body.String()) != "null" {
			t.Errorf("expected null, got %q", recorder.Body.String())
		}
	})

	t.Run("database failure", func(t *testing.T) {
		store.GetPhotoError = database.WrapError("get photo", errors.New("disk I/O error"))
		defer func() { store.GetPhotoError = nil }()

		req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/photos/1", nil), map[string]string{"id": "1"})
		recorder := httptest.NewRecorder()
		h.Get(recorder, req)

		assertStatusCode(t, recorder, http.StatusInternalServerError)
		assertJSONError(t, recorder, errDatabaseQuery)
	})
}

func TestPhotosHandler_Appearances(t *testing.T) {
	store := mock.NewStore()
	photo := seedPhoto(t, store, 1, nil, time.Now())
	person := store.AddPerson(database.Person{FirstName: "Ada", Surname: "Lovelace"})
	first := seedAppearance(t, store, person, photo)
	second := seedAppearance(t, store, person, photo)
	h := NewPhotosHandler(store, &stubSubmitter{}, 0, logging.Discard())

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/photos/1/appearances", nil), map[string]string{"id": "1"})
	recorder := httptest.NewRecorder()
	h.Appearances(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var result IDMap[AppearanceResponse]
	parseJSONResponse(t, recorder, &result)
	ids := result.IDs()
	if len(ids) != 2 || ids[0] != first || ids[1] != second {
		t.Fatalf("unexpected appearance ids %v", ids)
	}
	a, _ := result.Get(first)
	if a.Person != person || a.Photo != photo || !a.Reference || a.Top != 10 || a.Right != 60 {
		t.Errorf("unexpected appearance %+v", a)
	}
}

func TestPhotosHandler_CountPerDay(t *testing.T) {
	store := mock.NewStore()
	seedPhoto(t, store, 1, at("2021-06-15 10:00:00"), time.Now())
	seedPhoto(t, store, 2, at("2021-06-15 18:00:00"), time.Now())
	withAda := seedPhoto(t, store, 3, at("2021-07-01 09:00:00"), time.Now())
	ada := store.AddPerson(database.Person{FirstName: "Ada", Surname: "Lovelace"})
	seedAppearance(t, store, ada, withAda)
	h := NewPhotosHandler(store, &stubSubmitter{}, 0, logging.Discard())

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"all", "", `[["2021-07-01",1],["2021-06-15",2]]`},
		{"filtered", "?people[]=1", `[["2021-07-01",1]]`},
		{"nobody matches", "?people[]=1&people[]=2", `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			h.CountPerDay(recorder, httptest.NewRequest(http.MethodGet, "/api/photos/count-per-day"+tt.query, nil))

			assertStatusCode(t, recorder, http.StatusOK)
			if got := strings.TrimSpace(recorder.Body.String()); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}

	t.Run("bad filter", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		h.CountPerDay(recorder, httptest.NewRequest(http.MethodGet, "/api/photos/count-per-day?people[]=x", nil))

		assertStatusCode(t, recorder, http.StatusBadRequest)
		assertJSONError(t, recorder, "Failed to decode query string")
	})
}

func TestPhotosHandler_ForDay(t *testing.T) {
	store := mock.NewStore()
	late := seedPhoto(t, store, 1, at("2021-06-15 18:00:00"), time.Now())
	early := seedPhoto(t, store, 2, at("2021-06-15 07:00:00"), time.Now())
	seedPhoto(t, store, 3, at("2021-06-16 07:00:00"), time.Now())
	h := NewPhotosHandler(store, &stubSubmitter{}, 0, logging.Discard())

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/photos/for-day/2021-06-15", nil), map[string]string{"date": "2021-06-15"})
	recorder := httptest.NewRecorder()
	h.ForDay(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var result IDMap[PhotoResponse]
	parseJSONResponse(t, recorder, &result)
	ids := result.IDs()
	if len(ids) != 2 || ids[0] != early || ids[1] != late {
		t.Errorf("expected photos in taken order [%d %d], got %v", early, late, ids)
	}

	t.Run("bad date", func(t *testing.T) {
		req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/photos/for-day/15.6.2021", nil), map[string]string{"date": "15.6.2021"})
		recorder := httptest.NewRecorder()
		h.ForDay(recorder, req)

		assertStatusCode(t, recorder, http.StatusBadRequest)
	})
}
