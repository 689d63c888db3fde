package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"sitechat/internal/models"
	"sitechat/pkg/llm"
)

// LocalStore is the embedded on-disk provider: one bbolt bucket per
// collection, brute-force cosine similarity at query time. Good for the
// single-site page counts this pipeline indexes.
type LocalStore struct {
	db       *bolt.DB
	embedder llm.Embedder
	logger   *zap.Logger
}

type localPoint struct {
	Content string    `json:"content"`
	Source  string    `json:"source"`
	Title   string    `json:"title"`
	Vector  []float32 `json:"vector"`
}

func NewLocalStore(path string, embedder llm.Embedder, logger *zap.Logger) (*LocalStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	return &LocalStore{db: db, embedder: embedder, logger: logger}, nil
}

func (s *LocalStore) CreateCollection(ctx context.Context, name string, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		s.logger.Warn("no chunks provided to create collection", zap.String("collection", name))
		return nil
	}

	vectors, err := embedChunks(ctx, s.embedder, chunks)
	if err != nil {
		return err
	}

	s.logger.Info("creating local collection",
		zap.String("collection", name),
		zap.Int("chunks", len(chunks)))

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(name)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return fmt.Errorf("failed to reset collection %q: %w", name, err)
		}

		bucket, err := tx.CreateBucket([]byte(name))
		if err != nil {
			return fmt.Errorf("failed to create collection %q: %w", name, err)
		}

		for i, chunk := range chunks {
			point := localPoint{
				Content: chunk.Content,
				Source:  chunk.Metadata.Source,
				Title:   chunk.Metadata.Title,
				Vector:  vectors[i],
			}
			value, err := json.Marshal(point)
			if err != nil {
				return err
			}

			key := make([]byte, 8)
			binary.BigEndian.PutUint64(key, uint64(i))
			if err := bucket.Put(key, value); err != nil {
				return err
			}
		}

		return nil
	})
}

func (s *LocalStore) DeleteCollection(_ context.Context, name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(name)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return fmt.Errorf("failed to delete collection %q: %w", name, err)
		}
		return nil
	})
}

func (s *LocalStore) OpenCollection(_ context.Context, name string) (Collection, error) {
	err := s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(name)) == nil {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &localCollection{store: s, name: name}, nil
}

func (s *LocalStore) Close() error {
	return s.db.Close()
}

type localCollection struct {
	store *LocalStore
	name  string
}

func (c *localCollection) SimilaritySearch(ctx context.Context, query string, k int) ([]models.Chunk, error) {
	queryVector, err := c.store.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	type scored struct {
		chunk models.Chunk
		score float64
	}
	var candidates []scored

	err = c.store.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(c.name))
		if bucket == nil {
			return ErrNotFound
		}

		return bucket.ForEach(func(_, value []byte) error {
			var point localPoint
			if err := json.Unmarshal(value, &point); err != nil {
				return err
			}
			candidates = append(candidates, scored{
				chunk: models.Chunk{
					Content:  point.Content,
					Metadata: models.Metadata{Source: point.Source, Title: point.Title},
				},
				score: cosineSimilarity(queryVector, point.Vector),
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if k > len(candidates) {
		k = len(candidates)
	}

	results := make([]models.Chunk, 0, k)
	for _, candidate := range candidates[:k] {
		results = append(results, candidate.chunk)
	}
	return results, nil
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
