package rag

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"sitechat/internal/models"
	"sitechat/pkg/config"
	"sitechat/pkg/crawler"
	"sitechat/pkg/extractor"
	"sitechat/pkg/llm"
	"sitechat/pkg/processor"
	"sitechat/pkg/session"
	"sitechat/pkg/store"
	"sitechat/pkg/validator"
)

// ErrNoContent is returned by Index when every crawled page fails extraction
// or chunking, leaving nothing to store.
var ErrNoContent = errors.New("no readable content could be extracted from the website")

// Service wires the indexing pipeline (validate, crawl, extract, clean,
// chunk, store) and the query path (retrieve, answer) behind two calls.
type Service struct {
	cfg       *config.Config
	validator *validator.Validator
	extractor *extractor.Extractor
	processor *processor.Processor
	store     store.Store
	engine    *llm.ChatEngine
	logger    *zap.Logger

	// one writer at a time per collection name
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(cfg *config.Config, st store.Store, engine *llm.ChatEngine, logger *zap.Logger) *Service {
	timeout := time.Duration(cfg.Crawler.TimeoutSeconds) * time.Second

	return &Service{
		cfg:       cfg,
		validator: validator.New(timeout, cfg.Crawler.UserAgent, logger),
		extractor: extractor.New(cfg.Processor.MinContentLength, logger),
		processor: processor.New(processor.Config{
			ChunkSize:    cfg.Processor.ChunkSize,
			ChunkOverlap: cfg.Processor.ChunkOverlap,
		}, logger),
		store:  st,
		engine: engine,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// IndexResult reports what one indexing run did.
type IndexResult struct {
	UpToDate bool // the session already indexed this URL; nothing was done
	Pages    int
	Chunks   int
}

// Index crawls rawURL and rebuilds the session's collection from its content.
// It is a no-op when the session's active URL already equals rawURL. The
// page-fetch progress callback may be nil.
func (s *Service) Index(ctx context.Context, sess *session.Session, rawURL string, onPage func(url string)) (*IndexResult, error) {
	if !sess.NeedsIndex(rawURL) {
		s.logger.Info("url already indexed", zap.String("url", rawURL))
		return &IndexResult{UpToDate: true}, nil
	}

	if verr := s.validator.Validate(ctx, rawURL); verr != nil {
		return nil, verr
	}

	crawl := crawler.New(crawler.Config{
		MaxPages:  s.cfg.Crawler.MaxPages,
		Timeout:   time.Duration(s.cfg.Crawler.TimeoutSeconds) * time.Second,
		UserAgent: s.cfg.Crawler.UserAgent,
		Delay:     time.Duration(s.cfg.Crawler.DelayMillis) * time.Millisecond,
		OnPage:    onPage,
	}, s.logger)

	pages, err := crawl.Crawl(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	var allChunks []models.Chunk
	for _, page := range pages {
		extracted := s.extractor.Extract(page.HTML, page.URL)
		if extracted == nil {
			continue
		}

		cleaned := s.processor.Clean(extracted.Text)
		chunks, err := s.processor.Chunk(cleaned, extracted.URL, extracted.Title)
		if err != nil {
			s.logger.Warn("failed to chunk page", zap.String("url", extracted.URL), zap.Error(err))
			continue
		}
		allChunks = append(allChunks, chunks...)
	}

	unlock := s.lockCollection(sess.CollectionName)
	defer unlock()

	if len(allChunks) == 0 {
		// The session no longer targets the site behind the old collection,
		// so answering from it would be wrong. Drop it and leave the session
		// unindexed.
		if err := s.store.DeleteCollection(ctx, sess.CollectionName); err != nil {
			return nil, err
		}
		sess.SetIndexed("")
		s.logger.Warn("no indexable content",
			zap.String("url", rawURL),
			zap.Int("pages", len(pages)))
		return nil, ErrNoContent
	}

	if err := s.store.CreateCollection(ctx, sess.CollectionName, allChunks); err != nil {
		return nil, err
	}

	sess.SetIndexed(rawURL)

	s.logger.Info("indexing complete",
		zap.String("url", rawURL),
		zap.Int("pages", len(pages)),
		zap.Int("chunks", len(allChunks)))

	return &IndexResult{Pages: len(pages), Chunks: len(allChunks)}, nil
}

// Ask answers a question against the session's collection and records both
// turns in the history. It always returns an answer-shaped value.
func (s *Service) Ask(ctx context.Context, sess *session.Session, question string) models.Answer {
	sess.Append("user", question)

	collection, err := s.store.OpenCollection(ctx, sess.CollectionName)
	if err != nil {
		var answer models.Answer
		if errors.Is(err, store.ErrNotFound) {
			answer = models.Answer{Answer: llm.NoAnswerSentinel, Sources: []models.Chunk{}}
		} else {
			s.logger.Error("failed to open collection", zap.Error(err))
			answer = models.Answer{Answer: "An error occurred: " + err.Error(), Sources: []models.Chunk{}}
		}
		sess.Append("assistant", answer.Answer)
		return answer
	}

	retriever := store.NewRetriever(collection, s.cfg.Store.TopK)

	answer := s.engine.Answer(ctx, question, sess.History(), retriever)
	sess.Append("assistant", answer.Answer)
	return answer
}

func (s *Service) lockCollection(name string) func() {
	s.mu.Lock()
	lock, ok := s.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[name] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
