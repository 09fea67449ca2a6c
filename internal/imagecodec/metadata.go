package imagecodec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/photo-library/internal/constants"
	"github.com/rwcarlsen/goexif/exif"
)

// ErrNoExif is reported in Metadata.Err when the container has no EXIF block.
var ErrNoExif = errors.New("no EXIF data")

// Metadata holds the EXIF fields the library uses.
type Metadata struct {
	Orientation      Orientation
	OriginalDatetime *time.Time
	// Err records why metadata could not be read. It is informational only:
	// a photo without readable metadata is ingested with Identity
	// orientation and no original datetime.
	Err error
}

// ReadMetadata extracts orientation and capture time. It never fails;
// problems are reported through Metadata.Err.
func ReadMetadata(data []byte, format Format) Metadata {
	md := Metadata{Orientation: Identity}

	raw := data
	if format == PNG {
		chunk, err := pngExifChunk(data)
		if err != nil {
			md.Err = err
			return md
		}
		raw = chunk
	}

	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		md.Err = fmt.Errorf("reading EXIF: %w", err)
		return md
	}

	if tag, err := x.Get(exif.Orientation); err == nil {
		if code, err := tag.Int(0); err == nil {
			if o, ok := OrientationFromCode(code); ok {
				md.Orientation = o
			}
		}
	}

	if tag, err := x.Get(exif.DateTimeOriginal); err == nil {
		if s, err := tag.StringVal(); err == nil {
			md.OriginalDatetime = parseExifDatetime(s)
		}
	}

	return md
}

// parseExifDatetime parses the EXIF "YYYY:MM:DD HH:MM:SS" form. EXIF carries
// no zone, so the value is taken as UTC.
func parseExifDatetime(s string) *time.Time {
	s = strings.TrimRight(strings.TrimSpace(s), "\x00")
	t, err := time.ParseInLocation(constants.ExifDateTimeLayout, s, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// pngExifChunk returns the payload of the eXIf chunk, which holds a bare
// TIFF-structured EXIF block.
func pngExifChunk(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, errors.New("not a PNG stream")
	}
	rest := data[len(pngSignature):]
	for len(rest) >= 12 {
		length := binary.BigEndian.Uint32(rest[:4])
		kind := string(rest[4:8])
		if uint64(length)+12 > uint64(len(rest)) {
			return nil, errors.New("truncated PNG chunk")
		}
		payload := rest[8 : 8+length]
		switch kind {
		case "eXIf":
			return payload, nil
		case "IEND":
			return nil, ErrNoExif
		}
		rest = rest[12+length:]
	}
	return nil, ErrNoExif
}
