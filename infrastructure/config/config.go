package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// Storage configuration
	DataDir string

	// Model catalog
	CatalogPath string

	// Dispatch configuration
	DispatchesPerSecond float64
	ProviderTimeout     int // seconds

	// Provider credentials from the environment. Keys stored through the
	// API take precedence; these are the fallback.
	OpenAIKey     string
	AnthropicKey  string
	GoogleKey     string
	MistralKey    string
	CerebrasKey   string
	GroqKey       string
	OpenRouterKey string
	OllamaBaseURL string

	// Logging
	LogLevel string

	// Feature flags
	EnableCORS bool
}

// LoadConfig loads configuration from the environment. A .env file in the
// working directory is folded in first when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		DataDir:     getEnv("DATA_DIR", "./data"),
		CatalogPath: getEnv("MODEL_CATALOG_PATH", ""),

		DispatchesPerSecond: getEnvFloat("DISPATCHES_PER_SECOND", 8),
		ProviderTimeout:     getEnvInt("PROVIDER_TIMEOUT_SECONDS", 120),

		OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
		AnthropicKey:  getEnv("ANTHROPIC_API_KEY", ""),
		GoogleKey:     getEnv("GOOGLE_API_KEY", ""),
		MistralKey:    getEnv("MISTRAL_API_KEY", ""),
		CerebrasKey:   getEnv("CEREBRAS_API_KEY", ""),
		GroqKey:       getEnv("GROQ_API_KEY", ""),
		OpenRouterKey: getEnv("OPENROUTER_API_KEY", ""),
		OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),

		LogLevel:   getEnv("LOG_LEVEL", "info"),
		EnableCORS: getEnvBool("ENABLE_CORS", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if c.DispatchesPerSecond < 0 {
		return fmt.Errorf("DISPATCHES_PER_SECOND cannot be negative")
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

// EnvironmentKeys returns the provider credentials configured through the
// environment, keyed by provider name.
func (c *Config) EnvironmentKeys() map[string]string {
	keys := make(map[string]string)
	for provider, value := range map[string]string{
		"openai":     c.OpenAIKey,
		"anthropic":  c.AnthropicKey,
		"google":     c.GoogleKey,
		"mistral":    c.MistralKey,
		"cerebras":   c.CerebrasKey,
		"groq":       c.GroqKey,
		"openrouter": c.OpenRouterKey,
	} {
		if value != "" {
			keys[provider] = value
		}
	}
	return keys
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
