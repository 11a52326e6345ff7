package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed prices.yaml
var pricesYAML []byte

// Config holds everything read from the environment at startup.
type Config struct {
	Oracle   OracleConfig
	Gemini   GeminiConfig
	OpenAI   OpenAIConfig
	Database DatabaseConfig
	Web      WebConfig
	Prices   PricesConfig
}

// OracleConfig selects and bounds the verification backend.
type OracleConfig struct {
	Provider       string // "gemini" (default) or "openai"
	TimeoutSeconds int    // bound on a single comparison call, 0 = none
}

type GeminiConfig struct {
	APIKey string
}

type OpenAIConfig struct {
	Token string
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type WebConfig struct {
	Host          string
	Port          int
	SessionSecret string
}

type PricesConfig struct {
	Models map[string]ModelPricing `yaml:"models"`
}

type ModelPricing struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envString reads an environment variable with a default.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// Load builds the configuration from the environment and the embedded
// pricing table.
func Load() *Config {
	var prices PricesConfig
	if err := yaml.Unmarshal(pricesYAML, &prices); err != nil {
		// Embedded file, so this cannot happen with a valid build.
		panic("failed to unmarshal embedded prices.yaml: " + err.Error())
	}

	return &Config{
		Oracle: OracleConfig{
			Provider:       envString("ORACLE_PROVIDER", "gemini"),
			TimeoutSeconds: envInt("ORACLE_TIMEOUT_SECONDS", 60),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Web: WebConfig{
			Host:          envString("WEB_HOST", "0.0.0.0"),
			Port:          envInt("WEB_PORT", 8080),
			SessionSecret: os.Getenv("WEB_SESSION_SECRET"),
		},
		Prices: prices,
	}
}

// GetModelPricing returns pricing for a specific model. Unknown models get
// zero pricing, which only affects cost reporting, never correctness.
func (c *Config) GetModelPricing(modelName string) ModelPricing {
	if pricing, ok := c.Prices.Models[modelName]; ok {
		return pricing
	}
	return ModelPricing{}
}
