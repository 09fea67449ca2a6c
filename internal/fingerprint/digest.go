// Package fingerprint computes content digests of decoded photos for exact
// duplicate detection.
package fingerprint

import (
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Size is the digest length in bytes.
const Size = md5.Size

// Digest is a 128-bit fingerprint of decoded pixel data.
// It is used for equality only, never for security.
type Digest [Size]byte

// ErrInvalidDigest is returned when a textual or binary digest has the wrong shape.
var ErrInvalidDigest = errors.New("invalid digest")

// Compute fingerprints the pixels of img. Pixels are first normalised to
// 8-bit non-premultiplied RGBA so the digest depends on what the image looks
// like, not on the decoder's native layout or the compressed file bytes.
func Compute(img image.Image) Digest {
	return md5.Sum(imaging.Clone(img).Pix)
}

// String returns the URL-safe unpadded base64 form, also used as file name.
func (d Digest) String() string {
	return base64.RawURLEncoding.EncodeToString(d[:])
}

// Bytes returns a copy of the raw digest.
func (d Digest) Bytes() []byte {
	return append([]byte(nil), d[:]...)
}

// IsZero reports whether d is the zero digest.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// Parse decodes the textual form produced by String.
func Parse(s string) (Digest, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Digest{}, fmt.Errorf("%w: %w", ErrInvalidDigest, err)
	}
	return FromBytes(raw)
}

// FromBytes converts a stored 16-byte value back into a Digest.
func FromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != Size {
		return d, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidDigest, Size, len(b))
	}
	copy(d[:], b)
	return d, nil
}
