package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder maps text to fixed-length vectors. Satisfied by langchaingo's
// embedder implementations and by test fakes.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type EmbedderConfig struct {
	Provider string // "ollama" (local) or "openai" (remote endpoint)
	Model    string
	BaseURL  string
	APIKey   string
}

// NewEmbedder builds the configured embedding provider. Provider selection is
// a configuration choice made once; nothing downstream inspects it again.
func NewEmbedder(config EmbedderConfig) (Embedder, error) {
	switch config.Provider {
	case "ollama":
		client, err := ollama.New(
			ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama embedder: %w", err)
		}
		return embeddings.NewEmbedder(client)

	case "openai":
		opts := []openai.Option{
			openai.WithToken(config.APIKey),
			openai.WithEmbeddingModel(config.Model),
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		client, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai embedder: %w", err)
		}
		return embeddings.NewEmbedder(client)

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", config.Provider)
	}
}
