package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	m.Upload(OutcomeStored)
	m.Upload(OutcomeStored)
	m.Upload(OutcomeDuplicate)
	m.FaceDetected(3)
	m.PersonMinted()
	m.FaceMatched(0.31)
	m.ObserveStage("decode", 0.01)

	if got := testutil.ToFloat64(m.Uploads.WithLabelValues(OutcomeStored)); got != 2 {
		t.Errorf("expected 2 stored uploads, got %v", got)
	}
	if got := testutil.ToFloat64(m.Uploads.WithLabelValues(OutcomeDuplicate)); got != 1 {
		t.Errorf("expected 1 duplicate upload, got %v", got)
	}
	if got := testutil.ToFloat64(m.FacesDetected); got != 3 {
		t.Errorf("expected 3 faces, got %v", got)
	}
	if got := testutil.ToFloat64(m.PeopleMinted); got != 1 {
		t.Errorf("expected 1 person minted, got %v", got)
	}
	if got := testutil.ToFloat64(m.FacesMatched); got != 1 {
		t.Errorf("expected 1 match, got %v", got)
	}
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.Upload(OutcomeFailed)
	m.FaceDetected(1)
	m.PersonMinted()
	m.FaceMatched(0.1)
	m.ObserveStage("x", 1)
	m.InFlight(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 from nil metrics handler, got %d", rec.Code)
	}
}

func TestHandler(t *testing.T) {
	m := NewMetrics()
	m.Upload(OutcomeStored)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `photos_uploads_total{outcome="stored"} 1`) {
		t.Errorf("expected upload counter in exposition, got:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("expected Go runtime collector in exposition")
	}
}
