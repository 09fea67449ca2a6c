// Package postgres is the PostgreSQL store backend. Face embeddings are
// stored in pgvector columns.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/photo-library/internal/config"
	"github.com/kozaktomas/photo-library/internal/database"
	"github.com/kozaktomas/photo-library/internal/database/sqlstore"
	"github.com/kozaktomas/photo-library/internal/faces"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func init() {
	database.RegisterBackend("postgres", func(ctx context.Context, cfg *config.DatabaseConfig) (database.Store, error) {
		return Open(ctx, cfg)
	})
}

// Dialect is the PostgreSQL flavour of SQL: "$n" placeholders and
// vector(128) embeddings. pgvector stores float32 components.
type Dialect struct{}

func (Dialect) Name() string { return "postgres" }

func (Dialect) Placeholder(n int) string { return sqlstore.DollarPlaceholder(n) }

func (Dialect) EncodeEmbedding(e faces.Embedding) (any, error) {
	return pgvector.NewVector(e.Float32()), nil
}

func (Dialect) NewEmbeddingScanner() sqlstore.EmbeddingScanner { return &vectorEmbedding{} }

func (Dialect) Migrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		// This is an embedded directory so this error should never happen in practice
		panic("postgres: migrations directory missing: " + err.Error())
	}
	return sub
}

type vectorEmbedding struct {
	vec pgvector.Vector
}

func (v *vectorEmbedding) Scan(src any) error {
	return v.vec.Scan(src)
}

func (v *vectorEmbedding) Embedding() (faces.Embedding, error) {
	return faces.FromFloat32(v.vec.Slice())
}

// Open connects to the database at cfg.URL.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*sqlstore.Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool.
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	// Verify connection.
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return sqlstore.New(db, Dialect{}), nil
}
