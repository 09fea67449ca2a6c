package faces

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const defaultServiceURL = "http://localhost:8000"

// ErrModelsNotLoaded is returned by Ready when the service is up but its
// models are not.
var ErrModelsNotLoaded = errors.New("face models not loaded")

// Client talks to the face recognition service over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new face service client. A zero timeout disables the
// per-request deadline; callers still bound requests with their context.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultServiceURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the service address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type healthResponse struct {
	Status string          `json:"status"`
	Models map[string]bool `json:"models"`
}

type detectResponse struct {
	FacesCount int `json:"faces_count"`
	Faces      []struct {
		BBox     []float64 `json:"bbox"` // [x1, y1, x2, y2]
		DetScore float64   `json:"det_score"`
	} `json:"faces"`
}

type landmarksResponse struct {
	Points [][2]float64 `json:"points"`
}

type encodeResponse struct {
	Dim        int         `json:"dim"`
	Embeddings [][]float64 `json:"embeddings"`
}

// Ready checks that the service is reachable and every model reports loaded.
func (c *Client) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var health healthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	for name, loaded := range health.Models {
		if !loaded {
			return fmt.Errorf("%w: %s", ErrModelsNotLoaded, name)
		}
	}
	return nil
}

// DetectFaces returns the face boxes the service finds in frame.
func (c *Client) DetectFaces(ctx context.Context, frame *Frame) ([]Rect, error) {
	body, err := c.postFrame(ctx, "/faces/detect", frame, nil)
	if err != nil {
		return nil, err
	}

	var detResp detectResponse
	if err := json.Unmarshal(body, &detResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	bounds := frame.Image().Bounds()
	rects := make([]Rect, 0, len(detResp.Faces))
	for i, f := range detResp.Faces {
		if len(f.BBox) != 4 {
			return nil, fmt.Errorf("face %d: bbox has %d values, want 4", i, len(f.BBox))
		}
		r := Rect{
			Left:   clamp(int(f.BBox[0]+0.5), bounds.Min.X, bounds.Max.X),
			Top:    clamp(int(f.BBox[1]+0.5), bounds.Min.Y, bounds.Max.Y),
			Right:  clamp(int(f.BBox[2]+0.5), bounds.Min.X, bounds.Max.X),
			Bottom: clamp(int(f.BBox[3]+0.5), bounds.Min.Y, bounds.Max.Y),
		}
		if r.Rectangle().Empty() {
			continue
		}
		rects = append(rects, r)
	}
	return rects, nil
}

// Landmarks returns the shape points for the face inside box.
func (c *Client) Landmarks(ctx context.Context, frame *Frame, box Rect) (Landmarks, error) {
	bbox, err := json.Marshal(box.Corners())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bbox: %w", err)
	}
	body, err := c.postFrame(ctx, "/faces/landmarks", frame, map[string][]byte{"bbox": bbox})
	if err != nil {
		return nil, err
	}

	var lmResp landmarksResponse
	if err := json.Unmarshal(body, &lmResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	points := make(Landmarks, len(lmResp.Points))
	for i, p := range lmResp.Points {
		points[i] = Point{X: int(p[0] + 0.5), Y: int(p[1] + 0.5)}
	}
	return points, nil
}

// Encode computes one embedding per landmark set.
func (c *Client) Encode(ctx context.Context, frame *Frame, landmarks []Landmarks) ([]Embedding, error) {
	if len(landmarks) == 0 {
		return nil, nil
	}
	shapes := make([][][2]int, len(landmarks))
	for i, lm := range landmarks {
		shapes[i] = make([][2]int, len(lm))
		for j, p := range lm {
			shapes[i][j] = [2]int{p.X, p.Y}
		}
	}
	payload, err := json.Marshal(shapes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal landmarks: %w", err)
	}

	body, err := c.postFrame(ctx, "/faces/encode", frame, map[string][]byte{"landmarks": payload})
	if err != nil {
		return nil, err
	}

	var encResp encodeResponse
	if err := json.Unmarshal(body, &encResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(encResp.Embeddings) != len(landmarks) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(landmarks), len(encResp.Embeddings))
	}

	out := make([]Embedding, len(encResp.Embeddings))
	for i, values := range encResp.Embeddings {
		emb, err := FromFloat64(values)
		if err != nil {
			return nil, fmt.Errorf("embedding %d: %w", i, err)
		}
		out[i] = emb
	}
	return out, nil
}

// postFrame posts the frame as a multipart "file" part plus any extra form
// fields, and returns the response body of a 200 reply.
func (c *Client) postFrame(ctx context.Context, endpoint string, frame *Frame, fields map[string][]byte) ([]byte, error) {
	imageData, err := frame.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.png"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	for name, value := range fields {
		if err := writer.WriteField(name, string(value)); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	return "application/octet-stream"
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
