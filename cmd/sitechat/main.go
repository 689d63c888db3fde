package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sitechat/pkg/config"
	"sitechat/pkg/llm"
	"sitechat/pkg/rag"
	"sitechat/pkg/session"
	"sitechat/pkg/store"
)

var urlRegex = regexp.MustCompile(`https?://[^\s]+`)

func main() {
	var configPath string
	var seedURL string
	var verbose bool

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&seedURL, "url", "", "Website URL to index before chatting")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	flag.Parse()

	if err := run(configPath, seedURL, verbose); err != nil {
		log.Fatal(err)
	}
}

func run(configPath, seedURL string, verbose bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config error: %v", e)
		}
		return fmt.Errorf("invalid configuration")
	}
	for _, warning := range cfg.Warnings() {
		color.Yellow("⚠ %s", warning)
	}

	logger, err := newLogger(verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

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
	sess := session.New(cfg.Store.Collection)

	if seedURL != "" {
		if err := indexURL(ctx, service, sess, seedURL); err != nil {
			return err
		}
	}

	color.Cyan("\nChat with the indexed website (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := scanner.Text()
		if strings.ToLower(query) == "exit" {
			break
		}
		if strings.TrimSpace(query) == "" {
			continue
		}

		// A URL in the message switches the site context. Indexing only runs
		// when the URL differs from the active one.
		if url := urlRegex.FindString(query); url != "" {
			if err := indexURL(ctx, service, sess, url); err != nil {
				color.Red("Failed to index %s: %v\n", url, err)
				continue
			}
			if strings.TrimSpace(query) == url {
				continue
			}
		}

		answerSpinner := getSpinner(" Thinking...")
		answer := service.Ask(ctx, sess, query)
		answerSpinner.Finish()

		assistantPrompt("\nAssistant: %s\n", answer.Answer)

		if sources := llm.FormatSources(answer.Sources); len(sources) > 0 {
			color.Blue("\nSources:")
			for _, source := range sources {
				color.Blue("  - %s", source)
			}
		}
	}

	return nil
}

func indexURL(ctx context.Context, service *rag.Service, sess *session.Session, url string) error {
	if !sess.NeedsIndex(url) {
		color.Green("✓ %s is already indexed\n", url)
		return nil
	}

	color.Blue("\nIndexing %s", url)

	var pageCount int32
	crawlBar := getSpinner(" Crawling website...")

	result, err := service.Index(ctx, sess, url, func(pageURL string) {
		count := atomic.AddInt32(&pageCount, 1)
		crawlBar.Describe(color.BlueString(" Crawling website... (%d pages)", count))
		crawlBar.Add(1)
	})
	crawlBar.Finish()

	if err != nil {
		return err
	}

	color.Green("✓ Indexed %d pages into %d chunks\n", result.Pages, result.Chunks)
	return nil
}

// newLogger keeps the chat UI quiet by default; -verbose opens up debug
// output for pipeline troubleshooting.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
