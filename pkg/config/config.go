package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig                 `yaml:"app"`
	Server    ServerConfig              `yaml:"server"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Retrieval RetrievalConfig           `yaml:"retrieval"`
	Critic    CriticConfig              `yaml:"critic"`
	Billing   BillingConfig             `yaml:"billing"`
	Prompts   PromptsConfig             `yaml:"prompts"`
}

type AppConfig struct {
	Name string `yaml:"name"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type ProviderConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embedding_model,omitempty"`
	BaseURL        string `yaml:"base_url,omitempty"`
	Enabled        bool   `yaml:"enabled"`
}

type RetrievalConfig struct {
	URL            string  `yaml:"url"`
	Namespace      string  `yaml:"namespace"`
	K              int     `yaml:"k"`
	ScoreThreshold float32 `yaml:"score_threshold"`
	KnowledgeBase  string  `yaml:"knowledge_base"`
	ChunkSize      int     `yaml:"chunk_size"`
	ChunkOverlap   int     `yaml:"chunk_overlap"`
}

type CriticConfig struct {
	Enabled bool `yaml:"enabled"`
}

type BillingConfig struct {
	Path string `yaml:"path"`
}

type PromptsConfig struct {
	Directory string `yaml:"directory"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		App:    AppConfig{Name: "saarthi"},
		Server: ServerConfig{Addr: ":8080", RequestTimeout: 60 * time.Second},
		Retrieval: RetrievalConfig{
			K:              4,
			ScoreThreshold: 0.2,
			ChunkSize:      500,
			ChunkOverlap:   50,
		},
		Critic:  CriticConfig{Enabled: true},
		Billing: BillingConfig{Path: "data/billing.db"},
		Prompts: PromptsConfig{Directory: "./prompts"},
	}
}

// GetDefaultProvider returns the first enabled provider.
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	for name, p := range c.Providers {
		if p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}
