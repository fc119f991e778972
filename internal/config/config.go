// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/smartfriend/mortgage-advisor/internal/llm"
)

// Config holds all runtime settings for the service.
type Config struct {
	// HTTP server
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// LLM provider
	LLMProvider llm.Provider
	LLMAPIKey   string
	LLMBaseURL  string
	LLMModel    string
	MaxTokens   int
	Temperature float32

	// Conversation
	MaxToolRounds int
	LeadThreshold int

	// Lead persistence
	LeadsFile string

	// Events (optional; the service runs without NATS)
	NATSURL string

	// Auth
	JWTSecret string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Observability
	LogLevel        string
	TracingEnabled  bool
	TracingEndpoint string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getIntEnv("PORT", 8000),
		ReadTimeout:  getDurationEnv("READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getDurationEnv("WRITE_TIMEOUT", 300*time.Second),
		IdleTimeout:  getDurationEnv("IDLE_TIMEOUT", 60*time.Second),

		LLMBaseURL:  getEnv("LLM_BASE_URL", ""),
		LLMModel:    getEnv("LLM_MODEL", "llama-3.3-70b-versatile"),
		MaxTokens:   getIntEnv("MAX_TOKENS", 1024),
		Temperature: getFloatEnv("TEMPERATURE", 0.7),

		MaxToolRounds: getIntEnv("MAX_TOOL_ROUNDS", 5),
		LeadThreshold: getIntEnv("LEAD_THRESHOLD", 4),

		LeadsFile: getEnv("LEADS_FILE", "leads.json"),

		NATSURL: getEnv("NATS_URL", ""),

		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		LogLevel:        getEnv("LOG_LEVEL", "info"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
	}

	provider, key, err := resolveProvider()
	if err != nil {
		return nil, err
	}
	cfg.LLMProvider = provider
	cfg.LLMAPIKey = key
	if cfg.LLMProvider == llm.ProviderGroq && cfg.LLMBaseURL == "" {
		cfg.LLMBaseURL = llm.GroqBaseURL
	}

	return cfg, nil
}

// resolveProvider picks the LLM provider from whichever API key is set,
// preferring Groq, then OpenAI, then Anthropic.
func resolveProvider() (llm.Provider, string, error) {
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		return llm.ProviderGroq, key, nil
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return llm.ProviderOpenAI, key, nil
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return llm.ProviderAnthropic, key, nil
	}
	return "", "", fmt.Errorf("no LLM API key configured: set GROQ_API_KEY, OPENAI_API_KEY, or ANTHROPIC_API_KEY")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(parsed)
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
