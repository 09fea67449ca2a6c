// Package sqlstore implements database.Store on database/sql. Backends
// supply a Dialect for placeholders, embedding columns and migrations.
package sqlstore

import (
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/kozaktomas/photo-library/internal/faces"
)

// Dialect describes the differences between SQL backends.
type Dialect interface {
	// Name is the backend name used in logs and errors
	Name() string
	// Placeholder returns the n-th (1-based) bind parameter marker
	Placeholder(n int) string
	// EncodeEmbedding converts an embedding into a bind value
	EncodeEmbedding(e faces.Embedding) (any, error)
	// NewEmbeddingScanner returns a scan target for an embedding column
	NewEmbeddingScanner() EmbeddingScanner
	// Migrations returns a filesystem whose root holds the *.sql migrations
	Migrations() fs.FS
}

// EmbeddingScanner is a scan destination that yields an embedding.
type EmbeddingScanner interface {
	sql.Scanner
	Embedding() (faces.Embedding, error)
}

// BlobEmbedding scans embeddings stored as 1024-byte little-endian blobs.
type BlobEmbedding struct {
	data []byte
}

// Scan implements sql.Scanner.
func (b *BlobEmbedding) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		b.data = append(b.data[:0], v...)
	case string:
		b.data = append(b.data[:0], v...)
	default:
		return fmt.Errorf("cannot scan %T into embedding", src)
	}
	return nil
}

// Embedding decodes the scanned blob.
func (b *BlobEmbedding) Embedding() (faces.Embedding, error) {
	var e faces.Embedding
	err := e.UnmarshalBinary(b.data)
	return e, err
}

// EncodeBlobEmbedding is the EncodeEmbedding of blob-based dialects.
func EncodeBlobEmbedding(e faces.Embedding) (any, error) {
	return e.MarshalBinary()
}

// QuestionPlaceholder is the Placeholder of dialects using "?".
func QuestionPlaceholder(int) string {
	return "?"
}

// DollarPlaceholder is the Placeholder of dialects using "$1", "$2", ...
func DollarPlaceholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// rebind rewrites "?" markers into the dialect's placeholders.
func rebind(d Dialect, query string) string {
	if d.Placeholder(1) == "?" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(d.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
