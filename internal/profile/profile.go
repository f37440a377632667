package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where recollect stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string
	// Secret signs API access tokens
	Secret string

	// Embedding configuration
	EmbeddingBaseURL      string // RECOLLECT_EMBEDDING_BASE_URL
	EmbeddingAPIKey       string // RECOLLECT_EMBEDDING_API_KEY
	EmbeddingModel        string // RECOLLECT_EMBEDDING_MODEL (default: sentence-transformers/all-MiniLM-L6-v2)
	EmbeddingModelVersion string // RECOLLECT_EMBEDDING_MODEL_VERSION (default: 1.0)
	EmbeddingDimensions   int    // RECOLLECT_EMBEDDING_DIMENSIONS (default: 384)

	// AsyncEmbedding controls whether embedding jobs run on the in-process
	// queue or synchronously on the request path.
	AsyncEmbedding bool // RECOLLECT_ASYNC_EMBEDDING (default: true)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads embedding and auth configuration from RECOLLECT_* environment variables.
func (p *Profile) FromEnv() {
	if p.Secret == "" {
		p.Secret = os.Getenv("RECOLLECT_SECRET")
	}
	p.EmbeddingBaseURL = getEnvOrDefault("RECOLLECT_EMBEDDING_BASE_URL", "https://api.openai.com/v1")
	p.EmbeddingAPIKey = os.Getenv("RECOLLECT_EMBEDDING_API_KEY")
	p.EmbeddingModel = getEnvOrDefault("RECOLLECT_EMBEDDING_MODEL", "sentence-transformers/all-MiniLM-L6-v2")
	p.EmbeddingModelVersion = getEnvOrDefault("RECOLLECT_EMBEDDING_MODEL_VERSION", "1.0")
	if p.EmbeddingDimensions == 0 {
		p.EmbeddingDimensions = 384
	}
	p.AsyncEmbedding = getEnvOrDefault("RECOLLECT_ASYNC_EMBEDDING", "true") != "false"
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "recollect")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/recollect"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("recollect_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	return nil
}
