package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Faces    FacesConfig    `yaml:"faces"`
	Matching MatchingConfig `yaml:"matching"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"` // extra CORS origins besides localhost
	StaticDir      string   `yaml:"static_dir"`      // web client assets; empty disables
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver"`         // sqlite, postgres or mariadb
	Path         string `yaml:"path"`           // SQLite database file
	URL          string `yaml:"url"`            // PostgreSQL URL or MariaDB DSN
	MaxOpenConns int    `yaml:"max_open_conns"` // Maximum open connections (default 25)
	MaxIdleConns int    `yaml:"max_idle_conns"` // Maximum idle connections (default 5)
}

type StorageConfig struct {
	Backend  string      `yaml:"backend"` // fs or minio
	PhotoDir string      `yaml:"photo_dir"`
	ThumbDir string      `yaml:"thumb_dir"`
	MinIO    MinIOConfig `yaml:"minio"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type FacesConfig struct {
	URL            string `yaml:"url"` // face detection/encoding service
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type MatchingConfig struct {
	Tolerance float64 `yaml:"tolerance"` // maximum embedding distance for "same person"
	Index     string  `yaml:"index"`     // linear or hnsw
}

type IngestConfig struct {
	ThumbSize     int     `yaml:"thumb_size"`
	AvatarSize    int     `yaml:"avatar_size"`
	AvatarZoom    float64 `yaml:"avatar_zoom"`
	Workers       int     `yaml:"workers"` // 0 means one per CPU
	MaxUploadSize int64   `yaml:"max_upload_size"`
}

type LogConfig struct {
	Level      string `yaml:"level"`  // trace, debug, info, warn, error
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`   // optional rotating log file
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envString returns the environment variable or the default when unset.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envBool parses common boolean spellings, falling back to the default.
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

// envList splits a comma-separated environment variable.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

// Load builds the configuration from the embedded defaults, the optional
// YAML file named by PHOTOS_CONFIG_FILE and the environment, in that order.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("PHOTOS_CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if cfg.Ingest.Workers <= 0 {
		cfg.Ingest.Workers = runtime.NumCPU()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = envString("WEB_HOST", c.Server.Host)
	c.Server.Port = envInt("WEB_PORT", c.Server.Port)
	c.Server.AllowedOrigins = envList("WEB_ALLOWED_ORIGINS", c.Server.AllowedOrigins)
	c.Server.StaticDir = envString("STATIC_DIR", c.Server.StaticDir)

	c.Database.Driver = envString("DATABASE_DRIVER", c.Database.Driver)
	c.Database.Path = envString("DATABASE_PATH", c.Database.Path)
	c.Database.URL = envString("DATABASE_URL", c.Database.URL)
	c.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", c.Database.MaxIdleConns)

	c.Storage.Backend = envString("STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.PhotoDir = envString("PHOTO_DIR", c.Storage.PhotoDir)
	c.Storage.ThumbDir = envString("THUMB_DIR", c.Storage.ThumbDir)
	c.Storage.MinIO.Endpoint = envString("MINIO_ENDPOINT", c.Storage.MinIO.Endpoint)
	c.Storage.MinIO.AccessKey = envString("MINIO_ACCESS_KEY", c.Storage.MinIO.AccessKey)
	c.Storage.MinIO.SecretKey = envString("MINIO_SECRET_KEY", c.Storage.MinIO.SecretKey)
	c.Storage.MinIO.Bucket = envString("MINIO_BUCKET", c.Storage.MinIO.Bucket)
	c.Storage.MinIO.UseSSL = envBool("MINIO_USE_SSL", c.Storage.MinIO.UseSSL)

	c.Faces.URL = envString("FACE_SERVICE_URL", c.Faces.URL)
	c.Faces.TimeoutSeconds = envInt("FACE_SERVICE_TIMEOUT", c.Faces.TimeoutSeconds)

	c.Matching.Tolerance = envFloat("MATCH_TOLERANCE", c.Matching.Tolerance)
	c.Matching.Index = envString("MATCH_INDEX", c.Matching.Index)

	c.Ingest.ThumbSize = envInt("THUMB_SIZE", c.Ingest.ThumbSize)
	c.Ingest.AvatarSize = envInt("AVATAR_SIZE", c.Ingest.AvatarSize)
	c.Ingest.AvatarZoom = envFloat("AVATAR_ZOOM", c.Ingest.AvatarZoom)
	c.Ingest.Workers = envInt("INGEST_WORKERS", c.Ingest.Workers)
	c.Ingest.MaxUploadSize = int64(envInt("INGEST_MAX_UPLOAD_SIZE", int(c.Ingest.MaxUploadSize)))

	c.Log.Level = envString("PHOTOS_LOG", c.Log.Level)
	c.Log.Format = envString("PHOTOS_LOG_FORMAT", c.Log.Format)
	c.Log.File = envString("PHOTOS_LOG_FILE", c.Log.File)
}

// Validate reports configuration values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database path is required for the sqlite driver"))
		}
	case "postgres", "mariadb":
		if c.Database.URL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for the %s driver", c.Database.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}

	switch c.Storage.Backend {
	case "fs":
		if c.Storage.PhotoDir == "" || c.Storage.ThumbDir == "" {
			errs = append(errs, errors.New("photo and thumb directories are required for the fs storage backend"))
		}
	case "minio":
		if c.Storage.MinIO.Endpoint == "" || c.Storage.MinIO.Bucket == "" {
			errs = append(errs, errors.New("MINIO_ENDPOINT and MINIO_BUCKET are required for the minio storage backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}

	switch c.Matching.Index {
	case "linear", "hnsw":
	default:
		errs = append(errs, fmt.Errorf("unknown match index %q", c.Matching.Index))
	}

	if c.Matching.Tolerance <= 0 {
		errs = append(errs, errors.New("match tolerance must be positive"))
	}
	if c.Ingest.ThumbSize < 2 {
		errs = append(errs, errors.New("thumb size must be at least 2"))
	}
	if c.Ingest.AvatarSize < 1 {
		errs = append(errs, errors.New("avatar size must be positive"))
	}
	if c.Ingest.AvatarZoom <= 0 {
		errs = append(errs, errors.New("avatar zoom must be positive"))
	}

	return errors.Join(errs...)
}

// Addr returns the host:port the server listens on.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
