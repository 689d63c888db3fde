package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"go.uber.org/zap"

	"sitechat/pkg/config"
	"sitechat/pkg/llm"
	"sitechat/pkg/rag"
	"sitechat/pkg/session"
	"sitechat/pkg/store"
	"sitechat/server"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.Parse()

	if err := run(configPath); err != nil {
		log.Fatal(err)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Printf("config error: %v", e)
		}
		return fmt.Errorf("invalid configuration")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	for _, warning := range cfg.Warnings() {
		logger.Warn(warning)
	}

	embedder, err := llm.NewEmbedder(llm.EmbedderConfig{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %v", err)
	}

	ctx := context.Background()

	vectorStore, err := store.New(ctx, store.Config{
		Provider:    cfg.Store.Provider,
		Path:        cfg.Store.Path,
		VectorDim:   cfg.Store.VectorDim,
		QdrantHost:  cfg.Store.QdrantHost,
		QdrantPort:  cfg.Store.QdrantPort,
		PostgresURL: cfg.Store.PostgresURL,
	}, embedder, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %v", err)
	}
	defer vectorStore.Close()

	chatEngine, err := llm.NewChatEngine(llm.ChatConfig{
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize chat engine: %v", err)
	}

	service := rag.New(cfg, vectorStore, chatEngine, logger)
	sessions := session.NewManager(cfg.Store.Collection)

	srv := server.New(service, sessions, logger)
	return srv.Run(fmt.Sprintf(":%d", cfg.Server.Port))
}
