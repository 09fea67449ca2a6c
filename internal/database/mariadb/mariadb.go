// Package mariadb is the MariaDB/MySQL store backend.
package mariadb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/kozaktomas/photo-library/internal/config"
	"github.com/kozaktomas/photo-library/internal/database"
	"github.com/kozaktomas/photo-library/internal/database/sqlstore"
	"github.com/kozaktomas/photo-library/internal/faces"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func init() {
	database.RegisterBackend("mariadb", func(ctx context.Context, cfg *config.DatabaseConfig) (database.Store, error) {
		return Open(ctx, cfg)
	})
}

// Dialect is the MariaDB flavour of SQL: "?" placeholders and blob embeddings.
type Dialect struct{}

func (Dialect) Name() string { return "mariadb" }

func (Dialect) Placeholder(n int) string { return sqlstore.QuestionPlaceholder(n) }

func (Dialect) EncodeEmbedding(e faces.Embedding) (any, error) {
	return sqlstore.EncodeBlobEmbedding(e)
}

func (Dialect) NewEmbeddingScanner() sqlstore.EmbeddingScanner { return &sqlstore.BlobEmbedding{} }

func (Dialect) Migrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		// This is an embedded directory so this error should never happen in practice
		panic("mariadb: migrations directory missing: " + err.Error())
	}
	return sub
}

// NormalizeDSN forces the connection options the store depends on: DATETIME
// columns scan into time.Time and are read and written in UTC.
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid MariaDB DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// Open connects to the database described by the DSN in cfg.URL.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*sqlstore.Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	dsn, err := NormalizeDSN(cfg.URL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return sqlstore.New(db, Dialect{}), nil
}
