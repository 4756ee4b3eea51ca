package config

import (
	"os"
	"strconv"
)

// applyEnvOverrides layers environment variables over the loaded config.
// Credentials come from the conventional provider env vars; operational
// settings use the RENTERCHAT_ prefix.
func (c *Config) applyEnvOverrides() {
	// Provider credentials
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && c.LLM.Provider == "anthropic" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.LLM.Provider == "openai" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Embedding.GenAIAPIKey = key
	}

	// Operational overrides
	if v := os.Getenv("RENTERCHAT_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("RENTERCHAT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("RENTERCHAT_DATA_DIR"); v != "" {
		c.Catalog.DataDir = v
	}
	if v := os.Getenv("RENTERCHAT_DATABASE"); v != "" {
		c.Catalog.DatabasePath = v
		c.Catalog.Provider = "sqlite"
	}
	if v := os.Getenv("RENTERCHAT_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("RENTERCHAT_DEBUG"); v != "" {
		if debug, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = debug
		}
	}
}
