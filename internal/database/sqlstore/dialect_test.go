package sqlstore

import (
	"io/fs"
	"testing"

	"github.com/kozaktomas/photo-library/internal/faces"
)

type fakeDialect struct {
	placeholder func(int) string
}

func (d fakeDialect) Name() string                                   { return "fake" }
func (d fakeDialect) Placeholder(n int) string                       { return d.placeholder(n) }
func (d fakeDialect) EncodeEmbedding(e faces.Embedding) (any, error) { return EncodeBlobEmbedding(e) }
func (d fakeDialect) NewEmbeddingScanner() EmbeddingScanner          { return &BlobEmbedding{} }
func (d fakeDialect) Migrations() fs.FS                              { return nil }

func TestRebind(t *testing.T) {
	query := "SELECT id FROM photos WHERE a = ? AND b = ? AND c = ?"

	if got := rebind(fakeDialect{QuestionPlaceholder}, query); got != query {
		t.Errorf("question dialect should not rewrite, got %q", got)
	}

	want := "SELECT id FROM photos WHERE a = $1 AND b = $2 AND c = $3"
	if got := rebind(fakeDialect{DollarPlaceholder}, query); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestSplitStatements(t *testing.T) {
	script := `-- initial schema
CREATE TABLE a (id INTEGER);

-- comment; with a semicolon
CREATE INDEX a_id ON a (id);
  ;
`
	got := splitStatements(script)
	if len(got) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(got), got)
	}
	if got[0] != "CREATE TABLE a (id INTEGER)" {
		t.Errorf("unexpected first statement %q", got[0])
	}
	if got[1] != "CREATE INDEX a_id ON a (id)" {
		t.Errorf("unexpected second statement %q", got[1])
	}
}

func TestBlobEmbedding(t *testing.T) {
	var e faces.Embedding
	e[0], e[127] = 0.25, -1.5

	value, err := EncodeBlobEmbedding(e)
	if err != nil {
		t.Fatalf("EncodeBlobEmbedding() error: %v", err)
	}

	var scanner BlobEmbedding
	if err := scanner.Scan(value); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	got, err := scanner.Embedding()
	if err != nil {
		t.Fatalf("Embedding() error: %v", err)
	}
	if got != e {
		t.Error("blob round trip changed the embedding")
	}

	if err := scanner.Scan(int64(4)); err == nil {
		t.Error("expected error scanning an integer")
	}
}
