package ai

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/recollecthq/recollect/internal/profile"
)

// EmbeddingService turns text into fixed-length vectors. Implementations must
// be deterministic for a given model version.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
	ModelVersion() string
	Dimensions() int
}

// Config holds the embedding provider configuration.
type Config struct {
	BaseURL      string
	APIKey       string
	Model        string
	ModelVersion string
	Dimensions   int
	MaxRetries   int
	Timeout      time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      "https://api.openai.com/v1",
		APIKey:       "",
		Model:        "sentence-transformers/all-MiniLM-L6-v2",
		ModelVersion: "1.0",
		Dimensions:   384,
		MaxRetries:   3,
		Timeout:      30 * time.Second,
	}
}

// ConfigFromProfile builds a provider config from the server profile.
func ConfigFromProfile(p *profile.Profile) *Config {
	cfg := DefaultConfig()
	if p.EmbeddingBaseURL != "" {
		cfg.BaseURL = p.EmbeddingBaseURL
	}
	cfg.APIKey = p.EmbeddingAPIKey
	if p.EmbeddingModel != "" {
		cfg.Model = p.EmbeddingModel
	}
	if p.EmbeddingModelVersion != "" {
		cfg.ModelVersion = p.EmbeddingModelVersion
	}
	if p.EmbeddingDimensions > 0 {
		cfg.Dimensions = p.EmbeddingDimensions
	}
	return cfg
}

// Provider is an EmbeddingService backed by an OpenAI-compatible API.
type Provider struct {
	client *openai.Client
	config *Config
}

// NewProvider creates a new embedding provider.
func NewProvider(cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Model == "" {
		cfg.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 384
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Provider{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}, nil
}

func (p *Provider) ModelName() string    { return p.config.Model }
func (p *Provider) ModelVersion() string { return p.config.ModelVersion }
func (p *Provider) Dimensions() int      { return p.config.Dimensions }

// Embed generates an embedding vector for the given text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embedding vectors for all texts in a single request.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var result [][]float32
	err := p.doWithRetry(ctx, func() error {
		req := openai.EmbeddingRequest{
			Input: texts,
			Model: openai.EmbeddingModel(p.config.Model),
		}

		resp, err := p.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("embedding response size mismatch: got %d, want %d", len(resp.Data), len(texts))
		}
		result = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			result[i] = data.Embedding
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	return result, nil
}

// Validate validates the provider configuration by testing API connectivity.
func (p *Provider) Validate(ctx context.Context) error {
	if p.config.APIKey == "" {
		return fmt.Errorf("API key is required, set RECOLLECT_EMBEDDING_API_KEY environment variable")
	}

	if _, err := p.Embed(ctx, "test"); err != nil {
		return fmt.Errorf("embedding validation failed: %w", err)
	}

	slog.Info("embedding provider validated",
		"model", p.config.Model,
		"model_version", p.config.ModelVersion,
		"dimensions", p.config.Dimensions)

	return nil
}

// doWithRetry executes a function with exponential backoff retry.
func (p *Provider) doWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.config.MaxRetries; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			if attempt < p.config.MaxRetries-1 {
				waitTime := time.Duration(math.Pow(2, float64(attempt))) * time.Second
				slog.Debug("embedding request failed, retrying",
					"attempt", attempt+1,
					"wait_time", waitTime,
					"error", err)
				select {
				case <-time.After(waitTime):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return lastErr
}
