package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.LLM.MaxTokens < 1 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be positive",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if _, err := url.Parse(c.LLM.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid LLM base URL",
		})
	}

	switch c.Embedding.Provider {
	case "ollama", "openai":
	default:
		errors = append(errors, ValidationError{
			Field:   "embedding.provider",
			Message: fmt.Sprintf("unknown embedding provider: %s", c.Embedding.Provider),
		})
	}

	switch c.Store.Provider {
	case "local", "qdrant", "pgvector":
	default:
		errors = append(errors, ValidationError{
			Field:   "store.provider",
			Message: fmt.Sprintf("unknown vector store provider: %s", c.Store.Provider),
		})
	}

	if c.Store.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "store.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Store.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "store.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Store.PostgresURL != "" {
		if _, err := url.Parse(c.Store.PostgresURL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "store.postgres_url",
				Message: "invalid postgres URL",
			})
		}
	}

	if c.Crawler.MaxPages < 1 {
		errors = append(errors, ValidationError{
			Field:   "crawler.max_pages",
			Message: "max_pages must be positive",
		})
	}

	if c.Crawler.TimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "crawler.timeout_seconds",
			Message: "timeout_seconds must be positive",
		})
	}

	if c.Crawler.DelayMillis < 0 {
		errors = append(errors, ValidationError{
			Field:   "crawler.delay_millis",
			Message: "delay_millis must be non-negative",
		})
	}

	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Processor.ChunkOverlap < 0 || c.Processor.ChunkOverlap >= c.Processor.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	return errors
}
