package store

import (
	"context"
	"fmt"

	"sitechat/internal/models"
	"sitechat/pkg/llm"
)

const embedBatchSize = 32

// embedChunks embeds chunk contents in bounded batches and returns one vector
// per chunk, in chunk order.
func embedChunks(ctx context.Context, embedder llm.Embedder, chunks []models.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))

	for i := 0; i < len(chunks); i += embedBatchSize {
		end := i + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-i)
		for _, chunk := range chunks[i:end] {
			texts = append(texts, chunk.Content)
		}

		batch, err := embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks %d-%d: %w", i, end, err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(batch), len(texts))
		}

		vectors = append(vectors, batch...)
	}

	return vectors, nil
}
