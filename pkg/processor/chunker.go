package processor

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"

	"sitechat/internal/models"
)

// Chunk splits cleaned page text into overlapping retrieval units, splitting
// on paragraph breaks before line breaks before spaces before characters so a
// larger semantic unit is never severed when it fits. Every chunk carries the
// page's source URL and title.
func (p *Processor) Chunk(text, sourceURL, title string) ([]models.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		p.logger.Warn("attempted to chunk empty text", zap.String("source", sourceURL))
		return nil, nil
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(p.config.ChunkSize),
		textsplitter.WithChunkOverlap(p.config.ChunkOverlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
	)

	pieces, err := splitter.SplitText(text)
	if err != nil {
		return nil, err
	}

	metadata := models.Metadata{Source: sourceURL, Title: title}

	chunks := make([]models.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		chunks = append(chunks, models.Chunk{Content: piece, Metadata: metadata})
	}

	p.logger.Info("split text into chunks",
		zap.Int("chunks", len(chunks)),
		zap.String("source", sourceURL))
	return chunks, nil
}
