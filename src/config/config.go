package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port         string
	DatabasePath string
	LogLevel     string

	// HTTP settings
	RateLimitInterval time.Duration
	RateLimitBurst    int
	AllowedOrigins    []string

	// Market data settings
	QuoteCacheTTL    time.Duration
	QuoteFetchLimit  int
	QuoteHTTPTimeout time.Duration

	// Summary/report caching
	SummaryCacheTTL time.Duration

	// Gemini AI settings
	GeminiAPIKey   string
	GeminiModel    string
	AnalysisPrompt string
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// defaultAnalysisPrompt is the built-in template for AI portfolio reviews.
// {{POSITIONS}} is replaced with a plain-text table of the current summary.
const defaultAnalysisPrompt = `You are an experienced equity analyst. Review the following stock positions
(shares held, average cost, current price, realized and unrealized P&L) and
write a concise trading analysis: overall portfolio health, concentration
risks, and per-position observations. Do not invent prices.

{{POSITIONS}}`

// LoadConfig loads configuration from environment variables or a .env file.
// It centralizes all configuration logic for the application.
func LoadConfig() {
	// Try the current directory first, then the parent (common when running
	// from a build subdirectory).
	errEnv := godotenv.Load()
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}
	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found. Relying on OS environment variables (expected in production).")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	geminiAPIKey := getEnv("GEMINI_API_KEY", "")
	if geminiAPIKey == "" {
		log.Println("WARNING: GEMINI_API_KEY not set; AI analysis endpoints will be unavailable.")
	}

	Cfg = &AppConfig{
		// Core
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./lotfolio.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		// HTTP
		RateLimitInterval: getEnvAsDuration("RATE_LIMIT_INTERVAL", 100*time.Millisecond),
		RateLimitBurst:    getEnvAsInt("RATE_LIMIT_BURST", 30),
		AllowedOrigins:    getEnvAsList("ALLOWED_ORIGINS", "http://localhost:3000"),

		// Market data
		QuoteCacheTTL:    getEnvAsDuration("QUOTE_CACHE_TTL", 15*time.Minute),
		QuoteFetchLimit:  getEnvAsInt("QUOTE_FETCH_LIMIT", 8),
		QuoteHTTPTimeout: getEnvAsDuration("QUOTE_HTTP_TIMEOUT", 20*time.Second),

		// Caching
		SummaryCacheTTL: getEnvAsDuration("SUMMARY_CACHE_TTL", 5*time.Minute),

		// Gemini
		GeminiAPIKey:   geminiAPIKey,
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		AnalysisPrompt: getEnv("ANALYSIS_PROMPT_TEMPLATE", defaultAnalysisPrompt),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath)
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}

// getEnvAsList retrieves a comma-separated environment variable as a trimmed slice.
func getEnvAsList(key, fallback string) []string {
	valueStr := getEnv(key, fallback)
	if valueStr == "" {
		return nil
	}
	parts := strings.Split(valueStr, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
