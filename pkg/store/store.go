package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"sitechat/internal/models"
	"sitechat/pkg/llm"
)

// ErrNotFound is returned by OpenCollection when no collection with the given
// name exists.
var ErrNotFound = errors.New("collection not found")

// Store persists embedded chunks under named collections. CreateCollection is
// destructive: any prior collection of the same name is deleted first, so one
// collection never mixes chunks from two indexing runs. DeleteCollection
// removes a collection outright; deleting a missing one is a no-op.
// OpenCollection re-attaches to an existing collection by name alone, which
// lets the create and query sides live in different requests or processes.
type Store interface {
	CreateCollection(ctx context.Context, name string, chunks []models.Chunk) error
	DeleteCollection(ctx context.Context, name string) error
	OpenCollection(ctx context.Context, name string) (Collection, error)
	Close() error
}

// Collection is a read view over one named set of embedded chunks.
type Collection interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]models.Chunk, error)
}

type Config struct {
	Provider    string
	Path        string
	VectorDim   int
	QdrantHost  string
	QdrantPort  int
	PostgresURL string
}

// New builds the configured provider. Selection happens here once; the rest of
// the pipeline only sees the Store interface.
func New(ctx context.Context, config Config, embedder llm.Embedder, logger *zap.Logger) (Store, error) {
	switch config.Provider {
	case "local":
		return NewLocalStore(config.Path, embedder, logger)
	case "qdrant":
		return NewQdrantStore(config.QdrantHost, config.QdrantPort, config.VectorDim, embedder, logger)
	case "pgvector":
		return NewPGVectorStore(ctx, config.PostgresURL, config.VectorDim, embedder, logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", config.Provider)
	}
}

// Retriever binds a collection to a fixed top-K similarity parameter. It is
// stateless beyond referencing the collection.
type Retriever struct {
	collection Collection
	topK       int
}

func NewRetriever(collection Collection, topK int) Retriever {
	if topK == 0 {
		topK = 4
	}
	return Retriever{collection: collection, topK: topK}
}

func (r Retriever) RelevantDocuments(ctx context.Context, query string) ([]models.Chunk, error) {
	return r.collection.SimilaritySearch(ctx, query, r.topK)
}
