package faces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestFrame() *Frame {
	return NewFrame(image.NewNRGBA(image.Rect(0, 0, 200, 100)))
}

func TestClient_Ready(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		anyErr  bool
	}{
		{"healthy", http.StatusOK, `{"status":"ok","models":{"detector":true,"encoder":true}}`, nil, false},
		{"model missing", http.StatusOK, `{"status":"ok","models":{"detector":true,"encoder":false}}`, ErrModelsNotLoaded, true},
		{"server error", http.StatusServiceUnavailable, `loading`, nil, true},
		{"bad json", http.StatusOK, `{`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/health" || r.Method != http.MethodGet {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			err := NewClient(server.URL+"/", 0).Ready(context.Background())
			if tt.anyErr != (err != nil) {
				t.Fatalf("expected error=%v, got %v", tt.anyErr, err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestClient_DetectFaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/faces/detect" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
			return
		}
		defer file.Close()
		if ct := header.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("expected image/png part, got %s", ct)
		}
		data, _ := io.ReadAll(file)
		if len(data) == 0 {
			t.Error("empty image upload")
		}
		fmt.Fprint(w, `{"faces_count":3,"faces":[
			{"bbox":[10.2,20.7,50.4,60.5],"det_score":0.99},
			{"bbox":[180,80,260,140],"det_score":0.8},
			{"bbox":[5,5,5,30],"det_score":0.5}
		]}`)
	}))
	defer server.Close()

	rects, err := NewClient(server.URL, 0).DetectFaces(context.Background(), newTestFrame())
	if err != nil {
		t.Fatalf("DetectFaces() error: %v", err)
	}
	if len(rects) != 2 {
		t.Fatalf("expected 2 faces (empty box dropped), got %d: %v", len(rects), rects)
	}
	if want := (Rect{Top: 21, Left: 10, Bottom: 61, Right: 50}); rects[0] != want {
		t.Errorf("expected %+v, got %+v", want, rects[0])
	}
	// The second box is clamped to the 200x100 frame.
	if want := (Rect{Top: 80, Left: 180, Bottom: 100, Right: 200}); rects[1] != want {
		t.Errorf("expected clamped %+v, got %+v", want, rects[1])
	}
}

func TestClient_DetectFaces_BadBBox(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"faces":[{"bbox":[1,2,3]}]}`)
	}))
	defer server.Close()

	if _, err := NewClient(server.URL, 0).DetectFaces(context.Background(), newTestFrame()); err == nil {
		t.Error("expected error for malformed bbox")
	}
}

func TestClient_Landmarks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/faces/landmarks" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var bbox []float64
		if err := json.Unmarshal([]byte(r.FormValue("bbox")), &bbox); err != nil {
			t.Errorf("bad bbox field %q: %v", r.FormValue("bbox"), err)
		}
		if len(bbox) != 4 || bbox[0] != 10 || bbox[3] != 60 {
			t.Errorf("unexpected bbox %v", bbox)
		}
		fmt.Fprint(w, `{"points":[[12.4,30.6],[40,31]]}`)
	}))
	defer server.Close()

	lm, err := NewClient(server.URL, 0).Landmarks(context.Background(), newTestFrame(), Rect{Top: 20, Left: 10, Bottom: 60, Right: 50})
	if err != nil {
		t.Fatalf("Landmarks() error: %v", err)
	}
	if len(lm) != 2 || lm[0] != (Point{X: 12, Y: 31}) {
		t.Errorf("unexpected landmarks %v", lm)
	}
}

func TestClient_Encode(t *testing.T) {
	vector := make([]string, EmbeddingDim)
	for i := range vector {
		vector[i] = "0.5"
	}
	row := "[" + strings.Join(vector, ",") + "]"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var shapes [][][2]int
		if err := json.Unmarshal([]byte(r.FormValue("landmarks")), &shapes); err != nil {
			t.Errorf("bad landmarks field: %v", err)
		}
		if len(shapes) != 2 || shapes[1][0] != [2]int{3, 4} {
			t.Errorf("unexpected shapes %v", shapes)
		}
		fmt.Fprintf(w, `{"dim":128,"embeddings":[%s,%s]}`, row, row)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	embs, err := client.Encode(context.Background(), newTestFrame(), []Landmarks{
		{{X: 1, Y: 2}},
		{{X: 3, Y: 4}},
	})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if len(embs) != 2 || embs[1][127] != 0.5 {
		t.Errorf("unexpected embeddings (len %d)", len(embs))
	}
}

func TestClient_Encode_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"dim":128,"embeddings":[]}`)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, 0).Encode(context.Background(), newTestFrame(), []Landmarks{{{X: 1, Y: 1}}})
	if err == nil {
		t.Error("expected error when the service returns fewer embeddings")
	}
}

func TestClient_Encode_NoLandmarks(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 0)
	embs, err := client.Encode(context.Background(), newTestFrame(), nil)
	if err != nil || embs != nil {
		t.Errorf("expected no call for empty input, got %v %v", embs, err)
	}
}

func TestClient_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"faces":[]}`)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(server.URL, 0).DetectFaces(ctx, newTestFrame())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
