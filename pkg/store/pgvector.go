package store

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"sitechat/internal/models"
	"sitechat/pkg/llm"
)

// PGVectorStore keeps every collection in one pgvector-backed table, keyed by
// a collection column. Reset is a transactional delete of that collection's
// rows, so a failed run never leaves a half-deleted collection visible.
type PGVectorStore struct {
	pool     *pgxpool.Pool
	embedder llm.Embedder
	logger   *zap.Logger
}

const chunksTable = "site_chunks"

func NewPGVectorStore(ctx context.Context, connString string, vectorDim int, embedder llm.Embedder, logger *zap.Logger) (*PGVectorStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &PGVectorStore{pool: pool, embedder: embedder, logger: logger}

	if err := s.initialize(ctx, vectorDim); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PGVectorStore) initialize(ctx context.Context, vectorDim int) error {
	_, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			collection TEXT NOT NULL,
			source TEXT,
			title TEXT,
			content TEXT,
			embedding vector(%d)
		)`, chunksTable, vectorDim)

	if _, err := s.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createCollectionIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_collection_idx
		ON %s (collection)`, chunksTable, chunksTable)

	if _, err := s.pool.Exec(ctx, createCollectionIndex); err != nil {
		return fmt.Errorf("failed to create collection index: %w", err)
	}

	createVectorIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`, chunksTable, chunksTable)

	if _, err := s.pool.Exec(ctx, createVectorIndex); err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}

	return nil
}

func (s *PGVectorStore) CreateCollection(ctx context.Context, name string, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		s.logger.Warn("no chunks provided to create collection", zap.String("collection", name))
		return nil
	}

	vectors, err := embedChunks(ctx, s.embedder, chunks)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	deleteStmt := fmt.Sprintf("DELETE FROM %s WHERE collection = $1", chunksTable)
	if _, err := tx.Exec(ctx, deleteStmt, name); err != nil {
		return fmt.Errorf("failed to reset collection %q: %w", name, err)
	}

	insertStmt := fmt.Sprintf(`
		INSERT INTO %s (collection, source, title, content, embedding)
		VALUES ($1, $2, $3, $4, $5)`, chunksTable)

	for i, chunk := range chunks {
		_, err := tx.Exec(ctx, insertStmt,
			name,
			chunk.Metadata.Source,
			sanitizeUTF8(chunk.Metadata.Title),
			sanitizeUTF8(chunk.Content),
			pgvector.NewVector(vectors[i]),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("created pgvector collection",
		zap.String("collection", name),
		zap.Int("chunks", len(chunks)))
	return nil
}

func (s *PGVectorStore) DeleteCollection(ctx context.Context, name string) error {
	deleteStmt := fmt.Sprintf("DELETE FROM %s WHERE collection = $1", chunksTable)
	if _, err := s.pool.Exec(ctx, deleteStmt, name); err != nil {
		return fmt.Errorf("failed to delete collection %q: %w", name, err)
	}
	return nil
}

func (s *PGVectorStore) OpenCollection(ctx context.Context, name string) (Collection, error) {
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE collection = $1)", chunksTable)

	var exists bool
	if err := s.pool.QueryRow(ctx, query, name).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check collection %q: %w", name, err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	return &pgCollection{store: s, name: name}, nil
}

func (s *PGVectorStore) Close() error {
	s.pool.Close()
	return nil
}

type pgCollection struct {
	store *PGVectorStore
	name  string
}

func (c *pgCollection) SimilaritySearch(ctx context.Context, query string, k int) ([]models.Chunk, error) {
	queryVector, err := c.store.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	stmt := fmt.Sprintf(`
		SELECT content, source, title
		FROM %s
		WHERE collection = $1
		ORDER BY embedding <=> $2
		LIMIT $3`, chunksTable)

	rows, err := c.store.pool.Query(ctx, stmt, c.name, pgvector.NewVector(queryVector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %q: %w", c.name, err)
	}
	defer rows.Close()

	var results []models.Chunk
	for rows.Next() {
		var chunk models.Chunk
		if err := rows.Scan(&chunk.Content, &chunk.Metadata.Source, &chunk.Metadata.Title); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, chunk)
	}

	return results, rows.Err()
}

// sanitizeUTF8 drops invalid byte sequences and null bytes, which postgres
// rejects in text columns.
func sanitizeUTF8(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	if utf8.ValidString(s) {
		return s
	}

	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(s[i:])
			if size == 1 {
				continue
			}
		}
		v = append(v, r)
	}
	return string(v)
}
