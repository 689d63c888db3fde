package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"sitechat/internal/models"
)

// NoAnswerSentinel is returned verbatim when the index holds nothing relevant
// to the question. The prompt instructs the model to emit the same phrase when
// the retrieved context is insufficient.
const NoAnswerSentinel = "The answer is not available on the provided website."

const promptTemplate = `Use the following pieces of context to answer the question at the end.
If you don't know the answer, just say 'The answer is not available on the provided website.', don't try to make up an answer.

%s

Current Conversation:
%s

Question: %s
Answer:`

// Retriever is the read-only view the engine pulls grounding context from.
type Retriever interface {
	RelevantDocuments(ctx context.Context, query string) ([]models.Chunk, error)
}

type ChatConfig struct {
	Model       string
	BaseURL     string
	APIKey      string
	MaxTokens   int
	Temperature float64
}

// ChatEngine answers questions grounded in retrieved chunks.
type ChatEngine struct {
	config ChatConfig
	model  llms.Model
	logger *zap.Logger
}

// NewChatEngine connects to an OpenAI-compatible endpoint (Groq by default).
func NewChatEngine(config ChatConfig, logger *zap.Logger) (*ChatEngine, error) {
	if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}

	opts := []openai.Option{
		openai.WithToken(config.APIKey),
		openai.WithModel(config.Model),
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return NewChatEngineWithModel(config, model, logger), nil
}

// NewChatEngineWithModel wires an existing model, mainly for tests.
func NewChatEngineWithModel(config ChatConfig, model llms.Model, logger *zap.Logger) *ChatEngine {
	if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	return &ChatEngine{config: config, model: model, logger: logger}
}

// Answer retrieves grounding chunks for the query and generates a response.
// Zero retrieved chunks yields the sentinel answer; retrieval or generation
// failures yield an error-shaped answer. Callers never see a raw error.
func (ce *ChatEngine) Answer(ctx context.Context, query, chatHistory string, retriever Retriever) models.Answer {
	ce.logger.Info("generating answer", zap.String("query", query))

	docs, err := retriever.RelevantDocuments(ctx, query)
	if err != nil {
		ce.logger.Error("retrieval failed", zap.Error(err))
		return models.Answer{
			Answer:  fmt.Sprintf("An error occurred: %v", err),
			Sources: []models.Chunk{},
		}
	}

	if len(docs) == 0 {
		ce.logger.Warn("no relevant documents found", zap.String("query", query))
		return models.Answer{Answer: NoAnswerSentinel, Sources: []models.Chunk{}}
	}

	var contextBuilder strings.Builder
	for i, doc := range docs {
		if i > 0 {
			contextBuilder.WriteString("\n\n")
		}
		contextBuilder.WriteString(doc.Content)
	}

	prompt := fmt.Sprintf(promptTemplate, contextBuilder.String(), chatHistory, query)

	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}

	response, err := ce.model.GenerateContent(ctx, content,
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
	)
	if err != nil {
		ce.logger.Error("generation failed", zap.Error(err))
		return models.Answer{
			Answer:  fmt.Sprintf("An error occurred: %v", err),
			Sources: []models.Chunk{},
		}
	}

	if len(response.Choices) == 0 {
		ce.logger.Error("empty response from LLM")
		return models.Answer{
			Answer:  "An error occurred: no response from LLM",
			Sources: []models.Chunk{},
		}
	}

	return models.Answer{
		Answer:  response.Choices[0].Content,
		Sources: docs,
	}
}

// FormatSources deduplicates source URLs for citation display.
func FormatSources(docs []models.Chunk) []string {
	var sources []string
	seen := make(map[string]bool)

	for _, doc := range docs {
		if !seen[doc.Metadata.Source] {
			sources = append(sources, doc.Metadata.Source)
			seen[doc.Metadata.Source] = true
		}
	}

	return sources
}
