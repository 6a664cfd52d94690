package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr      string
	CORSOrigin      string
	DefaultLanguage string

	PricingAPIBaseURL   string
	PricingTimeoutMs    int
	PricingRateLimitRPS int
	PricingMaxRetries   int

	UploadAllowedExts []string

	ProgressTickMs       int
	ProgressDecayFactor  float64
	ProgressCap          float64
	AnalyzeSecondsPerRow int
	IngestSecondsPerFile int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:      getEnv("LISTEN_ADDR", ":8080"),
		CORSOrigin:      getEnv("CORS_ORIGIN", "http://localhost:3000"),
		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "vi"),

		PricingAPIBaseURL:   getEnv("PRICING_API_BASE_URL", "http://localhost:8000"),
		PricingTimeoutMs:    getEnvInt("PRICING_TIMEOUT_MS", 300000),
		PricingRateLimitRPS: getEnvInt("PRICING_RATE_LIMIT_RPS", 5),
		PricingMaxRetries:   getEnvInt("PRICING_MAX_RETRIES", 3),

		UploadAllowedExts: getEnvList("UPLOAD_ALLOWED_EXTS", []string{".xlsx", ".xls"}),

		ProgressTickMs:       getEnvInt("PROGRESS_TICK_MS", 500),
		ProgressDecayFactor:  getEnvFloat("PROGRESS_DECAY_FACTOR", 0.1),
		ProgressCap:          getEnvFloat("PROGRESS_CAP", 95),
		AnalyzeSecondsPerRow: getEnvInt("ANALYZE_SECONDS_PER_ROW", 5),
		IngestSecondsPerFile: getEnvInt("INGEST_SECONDS_PER_FILE", 10),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := getEnv(key, "")
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
