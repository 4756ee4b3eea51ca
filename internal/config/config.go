// Package config holds all renterchat configuration, loaded from YAML with
// environment-variable overrides. Missing model credentials are a fatal
// configuration error: Validate fails before any turn can be accepted.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all renterchat configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// HTTP transport
	Server ServerConfig `yaml:"server"`

	// Primary conversation model
	LLM LLMConfig `yaml:"llm"`

	// Preference extraction model (cheap/fast tier)
	Extractor ExtractorConfig `yaml:"extractor"`

	// Embedding backend for fuzzy pet-type matching
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Fuzzy matcher tuning
	Matcher MatcherConfig `yaml:"matcher"`

	// Inventory data source
	Catalog CatalogConfig `yaml:"catalog"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LLMConfig configures the conversation model client.
type LLMConfig struct {
	Provider string `yaml:"provider"` // anthropic, openai
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// ParseTimeout returns the configured timeout or the fallback when unset
// or unparseable.
func (l LLMConfig) ParseTimeout(fallback time.Duration) time.Duration {
	if l.Timeout == "" {
		return fallback
	}
	d, err := time.ParseDuration(l.Timeout)
	if err != nil {
		return fallback
	}
	return d
}

// ExtractorConfig configures the preference extraction model.
// When disabled, preference extraction is a no-op and profiles keep
// their prior preference state.
type ExtractorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// EmbeddingConfig configures the embedding engine used by the fuzzy matcher.
// Provider "disabled" turns semantic matching off; the catalog then falls
// back to exact-key lookups only.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // genai, ollama, disabled

	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`

	GenAIAPIKey string `yaml:"genai_api_key"`
	GenAIModel  string `yaml:"genai_model"`
}

// MatcherConfig tunes the fuzzy category matcher.
type MatcherConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// CatalogConfig configures the inventory data source.
type CatalogConfig struct {
	Provider     string `yaml:"provider"` // json, sqlite
	DataDir      string `yaml:"data_dir"`
	DatabasePath string `yaml:"database_path"`
	Watch        bool   `yaml:"watch"` // reload snapshot when data files change
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
	Dir        string          `yaml:"dir"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return Config{
		Name:    "renterchat",
		Version: "1.0.0",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		LLM: LLMConfig{
			Provider: "anthropic",
			Model:    "claude-3-5-sonnet-20241022",
			Timeout:  "60s",
		},
		Extractor: ExtractorConfig{
			Enabled: true,
			Model:   "claude-3-haiku-20240307",
			Timeout: "20s",
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
		},
		Matcher: MatcherConfig{
			ConfidenceThreshold: 0.6,
		},
		Catalog: CatalogConfig{
			Provider: "json",
			DataDir:  "data",
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
			Dir:       ".renterchat",
		},
	}
}

// Load reads a YAML config file, applying defaults for unset fields and
// environment overrides on top. A missing file yields defaults + env.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the config as YAML, creating parent directories as needed.
func (c Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config dir: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate verifies the configuration is usable. Configuration errors are
// fatal at startup; the coordinator must never accept turns without a
// credentialed model client.
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("llm.provider must be anthropic or openai, got %q", c.LLM.Provider)
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required (or set %s)", providerKeyEnv(c.LLM.Provider))
	}

	switch c.Catalog.Provider {
	case "json":
		if c.Catalog.DataDir == "" {
			return fmt.Errorf("catalog.data_dir is required for the json provider")
		}
	case "sqlite":
		if c.Catalog.DatabasePath == "" {
			return fmt.Errorf("catalog.database_path is required for the sqlite provider")
		}
	default:
		return fmt.Errorf("catalog.provider must be json or sqlite, got %q", c.Catalog.Provider)
	}

	switch c.Embedding.Provider {
	case "genai":
		if c.Embedding.GenAIAPIKey == "" {
			return fmt.Errorf("embedding.genai_api_key is required for the genai provider (or set GEMINI_API_KEY)")
		}
	case "ollama", "disabled":
	default:
		return fmt.Errorf("embedding.provider must be genai, ollama or disabled, got %q", c.Embedding.Provider)
	}

	if t := c.Matcher.ConfidenceThreshold; t < 0 || t > 1 {
		return fmt.Errorf("matcher.confidence_threshold must be in [0,1], got %v", t)
	}

	return nil
}

func providerKeyEnv(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	default:
		return "ANTHROPIC_API_KEY"
	}
}
