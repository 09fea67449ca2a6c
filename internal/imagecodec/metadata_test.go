package imagecodec

import (
	"errors"
	"testing"
	"time"

	"github.com/kozaktomas/photo-library/internal/imagecodec/imagetest"
)

func TestReadMetadata_JPEG(t *testing.T) {
	data := imagetest.JPEG(imagetest.Gradient(16, 8), imagetest.Exif(6, "2019:05:01 10:11:12"))

	img, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}

	md := img.Metadata
	if md.Err != nil {
		t.Fatalf("unexpected metadata error: %v", md.Err)
	}
	if md.Orientation != Rotate90Cw {
		t.Errorf("orientation = %v, want Rotate90Cw", md.Orientation)
	}
	want := time.Date(2019, 5, 1, 10, 11, 12, 0, time.UTC)
	if md.OriginalDatetime == nil || !md.OriginalDatetime.Equal(want) {
		t.Errorf("original datetime = %v, want %v", md.OriginalDatetime, want)
	}
}

func TestReadMetadata_PNGExifChunk(t *testing.T) {
	data := imagetest.PNG(imagetest.Gradient(8, 8), imagetest.Exif(3, ""))

	img, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if img.Metadata.Orientation != Rotate180 {
		t.Errorf("orientation = %v, want Rotate180 (err %v)", img.Metadata.Orientation, img.Metadata.Err)
	}
	if img.Metadata.OriginalDatetime != nil {
		t.Errorf("expected no original datetime, got %v", img.Metadata.OriginalDatetime)
	}
}

func TestReadMetadata_DegradesGracefully(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		format  Format
		wantErr bool
	}{
		{"jpeg without exif", imagetest.JPEG(imagetest.Gradient(4, 4), nil), JPEG, true},
		{"png without exif", imagetest.PNG(imagetest.Gradient(4, 4), nil), PNG, true},
		{"corrupt exif block", imagetest.JPEG(imagetest.Gradient(4, 4), []byte("II*\x00garbage")), JPEG, false},
		{"not an image", []byte("nope"), PNG, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := ReadMetadata(tt.data, tt.format)
			if md.Orientation != Identity {
				t.Errorf("orientation = %v, want Identity", md.Orientation)
			}
			if md.OriginalDatetime != nil {
				t.Errorf("original datetime = %v, want nil", md.OriginalDatetime)
			}
			if tt.wantErr && md.Err == nil {
				t.Error("expected an informational metadata error")
			}
		})
	}
}

func TestReadMetadata_InvalidOrientationIgnored(t *testing.T) {
	data := imagetest.JPEG(imagetest.Gradient(4, 4), imagetest.Exif(42, ""))

	md := ReadMetadata(data, JPEG)
	if md.Orientation != Identity {
		t.Errorf("orientation = %v, want Identity for out-of-range code", md.Orientation)
	}
}

func TestPNGExifChunk_Missing(t *testing.T) {
	_, err := pngExifChunk(imagetest.PNG(imagetest.Gradient(2, 2), nil))
	if !errors.Is(err, ErrNoExif) {
		t.Errorf("pngExifChunk error = %v, want ErrNoExif", err)
	}
}

func TestParseExifDatetime(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"2020:12:31 23:59:59", true},
		{"2020:12:31 23:59:59\x00", true},
		{"2020-12-31 23:59:59", false},
		{"0000:00:00 00:00:00", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseExifDatetime(tt.input)
			if (got != nil) != tt.valid {
				t.Errorf("parseExifDatetime(%q) = %v, valid want %v", tt.input, got, tt.valid)
			}
		})
	}
}
