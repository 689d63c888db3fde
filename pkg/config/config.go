package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "ollama" (local) or "openai" (remote endpoint)
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
}

type StoreConfig struct {
	Provider    string `yaml:"provider"` // "local", "qdrant" or "pgvector"
	Path        string `yaml:"path"`
	Collection  string `yaml:"collection"`
	TopK        int    `yaml:"top_k"`
	VectorDim   int    `yaml:"vector_dim"`
	QdrantHost  string `yaml:"qdrant_host"`
	QdrantPort  int    `yaml:"qdrant_port"`
	PostgresURL string `yaml:"postgres_url"`
}

type CrawlerConfig struct {
	MaxPages       int    `yaml:"max_pages"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
	DelayMillis    int    `yaml:"delay_millis"`
}

type ProcessorConfig struct {
	ChunkSize        int `yaml:"chunk_size"`
	ChunkOverlap     int `yaml:"chunk_overlap"`
	MinContentLength int `yaml:"min_content_length"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
	Crawler   CrawlerConfig   `yaml:"crawler"`
	Processor ProcessorConfig `yaml:"processor"`
	Server    ServerConfig    `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// Pick up a .env file if one is present.
	_ = godotenv.Load()

	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/sitechat/config.yaml"),
			"/etc/sitechat/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Model == "" {
		config.LLM.Model = "llama-3.3-70b-versatile"
	}
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "https://api.groq.com/openai/v1"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	// Temperature intentionally defaults to 0.

	if config.Embedding.Provider == "" {
		config.Embedding.Provider = "ollama"
	}
	if config.Embedding.Model == "" {
		if config.Embedding.Provider == "ollama" {
			config.Embedding.Model = "nomic-embed-text:latest"
		} else {
			config.Embedding.Model = "text-embedding-3-small"
		}
	}
	if config.Embedding.BaseURL == "" && config.Embedding.Provider == "ollama" {
		config.Embedding.BaseURL = "http://localhost:11434"
	}

	if config.Store.Provider == "" {
		config.Store.Provider = "local"
	}
	if config.Store.Path == "" {
		config.Store.Path = "sitechat.db"
	}
	if config.Store.Collection == "" {
		config.Store.Collection = "website_content"
	}
	if config.Store.TopK == 0 {
		config.Store.TopK = 4
	}
	if config.Store.VectorDim == 0 {
		config.Store.VectorDim = 768
	}
	if config.Store.QdrantHost == "" {
		config.Store.QdrantHost = "localhost"
	}
	if config.Store.QdrantPort == 0 {
		config.Store.QdrantPort = 6334
	}

	if config.Crawler.MaxPages == 0 {
		config.Crawler.MaxPages = 5
	}
	if config.Crawler.TimeoutSeconds == 0 {
		config.Crawler.TimeoutSeconds = 10
	}
	if config.Crawler.UserAgent == "" {
		config.Crawler.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.114 Safari/537.36"
	}
	if config.Crawler.DelayMillis == 0 {
		config.Crawler.DelayMillis = 500
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkOverlap = 150
	}
	if config.Processor.MinContentLength == 0 {
		config.Processor.MinContentLength = 10
	}

	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
}

func mergeWithEnv(config *Config) {
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if baseURL := os.Getenv("LLM_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if key := os.Getenv("EMBEDDING_API_KEY"); key != "" {
		config.Embedding.APIKey = key
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
	}
	if provider := os.Getenv("VECTOR_STORE_PROVIDER"); provider != "" {
		config.Store.Provider = provider
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Store.PostgresURL = dbURL
	}
	if host := os.Getenv("QDRANT_HOST"); host != "" {
		config.Store.QdrantHost = host
	}
}

// Warnings reports missing credentials for the selected providers. They are
// surfaced before the pipeline runs instead of failing deep inside a request.
func (c *Config) Warnings() []string {
	var warnings []string

	if c.LLM.APIKey == "" {
		warnings = append(warnings, "GROQ_API_KEY is missing. Answer generation will fail.")
	}
	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		warnings = append(warnings, "EMBEDDING_API_KEY is missing but embedding provider is set to 'openai'. Indexing will fail.")
	}
	if c.Store.Provider == "pgvector" && c.Store.PostgresURL == "" {
		warnings = append(warnings, "DATABASE_URL is missing but vector store provider is set to 'pgvector'. Indexing will fail.")
	}

	return warnings
}
