package processor

import (
	"go.uber.org/zap"
)

type Config struct {
	ChunkSize    int
	ChunkOverlap int
}

// Processor normalizes extracted text and splits it into retrieval units.
type Processor struct {
	config Config
	logger *zap.Logger
}

func New(config Config, logger *zap.Logger) *Processor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 150
	}

	return &Processor{
		config: config,
		logger: logger,
	}
}
