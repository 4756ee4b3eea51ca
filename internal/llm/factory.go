package llm

import (
	"fmt"
	"os"
	"time"

	"renterchat/internal/config"
)

// NewClient creates an LLM client from configuration.
func NewClient(cfg config.LLMConfig) (Client, error) {
	timeout := cfg.ParseTimeout(60 * time.Second)

	switch Provider(cfg.Provider) {
	case ProviderAnthropic:
		c := DefaultAnthropicConfig(cfg.APIKey)
		c.Timeout = timeout
		if cfg.Model != "" {
			c.Model = cfg.Model
		}
		if cfg.BaseURL != "" {
			c.BaseURL = cfg.BaseURL
		}
		return NewAnthropicClientWithConfig(c), nil

	case ProviderOpenAI:
		c := DefaultOpenAIConfig(cfg.APIKey)
		c.Timeout = timeout
		if cfg.Model != "" {
			c.Model = cfg.Model
		}
		if cfg.BaseURL != "" {
			c.BaseURL = cfg.BaseURL
		}
		return NewOpenAIClientWithConfig(c), nil

	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// NewClientFromEnv creates a client from environment variables.
// Priority: ANTHROPIC_API_KEY, then OPENAI_API_KEY.
func NewClientFromEnv() (Client, error) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return NewAnthropicClient(key), nil
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return NewOpenAIClient(key), nil
	}
	return nil, fmt.Errorf("no API key found; set ANTHROPIC_API_KEY or OPENAI_API_KEY")
}
