package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"sitechat/internal/models"
	"sitechat/pkg/llm"
)

// QdrantStore is the managed remote provider, speaking gRPC to a qdrant
// deployment.
type QdrantStore struct {
	client    *qdrant.Client
	embedder  llm.Embedder
	vectorDim uint64
	logger    *zap.Logger
}

func NewQdrantStore(host string, port, vectorDim int, embedder llm.Embedder, logger *zap.Logger) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port, // gRPC port
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantStore{
		client:    client,
		embedder:  embedder,
		vectorDim: uint64(vectorDim),
		logger:    logger,
	}, nil
}

func (s *QdrantStore) CreateCollection(ctx context.Context, name string, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		s.logger.Warn("no chunks provided to create collection", zap.String("collection", name))
		return nil
	}

	vectors, err := embedChunks(ctx, s.embedder, chunks)
	if err != nil {
		return err
	}

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %q: %w", name, err)
	}
	if exists {
		// Absence is fine; a failed delete is not, the old content would leak
		// into the new index.
		if err := s.client.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("failed to reset collection %q: %w", name, err)
		}
		s.logger.Info("deleted existing collection", zap.String("collection", name))
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.vectorDim,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %q: %w", name, err)
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, chunk := range chunks {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(uuid.NewString()),
			Vectors: qdrant.NewVectorsDense(vectors[i]),
			Payload: qdrant.NewValueMap(map[string]any{
				"content": chunk.Content,
				"source":  chunk.Metadata.Source,
				"title":   chunk.Metadata.Title,
			}),
		})
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to insert chunks into %q: %w", name, err)
	}

	s.logger.Info("created qdrant collection",
		zap.String("collection", name),
		zap.Int("chunks", len(chunks)))
	return nil
}

func (s *QdrantStore) DeleteCollection(ctx context.Context, name string) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %q: %w", name, err)
	}
	if !exists {
		return nil
	}
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to delete collection %q: %w", name, err)
	}
	return nil
}

func (s *QdrantStore) OpenCollection(ctx context.Context, name string) (Collection, error) {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection %q: %w", name, err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	return &qdrantCollection{store: s, name: name}, nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

type qdrantCollection struct {
	store *QdrantStore
	name  string
}

func (c *qdrantCollection) SimilaritySearch(ctx context.Context, query string, k int) ([]models.Chunk, error) {
	queryVector, err := c.store.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	points, err := c.store.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.name,
		Query:          qdrant.NewQueryDense(queryVector),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %q: %w", c.name, err)
	}

	results := make([]models.Chunk, 0, len(points))
	for _, point := range points {
		results = append(results, models.Chunk{
			Content: point.Payload["content"].GetStringValue(),
			Metadata: models.Metadata{
				Source: point.Payload["source"].GetStringValue(),
				Title:  point.Payload["title"].GetStringValue(),
			},
		})
	}
	return results, nil
}
