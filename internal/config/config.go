package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port          string
	Env           string // development, staging, production
	LogLevel      string
	PublicBaseURL string
	FrontendURL   string

	// Database
	DatabaseURL string

	// Firebase
	FirebaseProjectID string

	// LLM providers
	LLMProvider   string // claude, openai, gemini
	ClaudeAPIKey  string
	ClaudeBaseURL string
	ClaudeModel   string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	GeminiAPIKey  string
	GeminiModel   string
	LLMPerMinute  int // 0 = unpaced

	// Job sources
	RapidAPIKey   string
	AdzunaAppID   string
	AdzunaAppKey  string
	AdzunaCountry string

	// Scanning
	CronSecret       string
	ScanSchedule     string
	ReminderSchedule string
	ScanThrottle     time.Duration

	// Uploads
	UploadDir      string
	MaxUploadBytes int64

	// Notifications
	TelegramBotToken string

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	StripePriceProMonth string
	StripePriceProYear  string

	// Rate Limiting
	RateLimitRPS int

	// CORS
	AllowedOrigins []string

	MetricsEnabled bool
}

func Load() (*Config, error) {
	// Real env vars win over .env; a missing file is fine
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		Env:                 getEnv("ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		PublicBaseURL:       strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		FrontendURL:         getEnv("FRONTEND_URL", "http://localhost:5173"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		FirebaseProjectID:   getEnv("FIREBASE_PROJECT_ID", ""),
		LLMProvider:         strings.ToLower(getEnv("LLM_PROVIDER", "")),
		ClaudeAPIKey:        getEnv("CLAUDE_API_KEY", ""),
		ClaudeBaseURL:       getEnv("CLAUDE_BASE_URL", "https://api.anthropic.com"),
		ClaudeModel:         getEnv("CLAUDE_MODEL", "claude-sonnet-4-5-20250929"),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4.1-mini"),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		LLMPerMinute:        getEnvInt("LLM_REQUESTS_PER_MINUTE", 0),
		RapidAPIKey:         getEnv("RAPIDAPI_KEY", ""),
		AdzunaAppID:         getEnv("ADZUNA_APP_ID", ""),
		AdzunaAppKey:        getEnv("ADZUNA_APP_KEY", ""),
		AdzunaCountry:       getEnv("ADZUNA_COUNTRY", "us"),
		CronSecret:          getEnv("CRON_SECRET", ""),
		ScanSchedule:        getEnv("SCAN_SCHEDULE", "0 */6 * * *"),
		ReminderSchedule:    getEnv("REMINDER_SCHEDULE", "0 8 * * *"),
		ScanThrottle:        time.Duration(getEnvInt("SCAN_THROTTLE_MINUTES", 120)) * time.Minute,
		UploadDir:           getEnv("UPLOAD_DIR", "./uploads"),
		MaxUploadBytes:      int64(getEnvInt("MAX_UPLOAD_MB", 10)) << 20,
		TelegramBotToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripePriceProMonth: getEnv("STRIPE_PRICE_PRO_MONTHLY", ""),
		StripePriceProYear:  getEnv("STRIPE_PRICE_PRO_YEARLY", ""),
		RateLimitRPS:        getEnvInt("RATE_LIMIT_RPS", 10),
		AllowedOrigins:      getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		MetricsEnabled:      getEnvBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}
	switch c.LLMProvider {
	case "", "claude", "openai", "gemini":
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER must be claude, openai or gemini, got %q", c.LLMProvider))
	}
	if c.RateLimitRPS <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_MB must be positive"))
	}
	if c.Env == "production" && c.CronSecret == "" {
		errs = append(errs, fmt.Errorf("CRON_SECRET is required in production"))
	}

	return errors.Join(errs...)
}

// BillingEnabled reports whether Stripe is configured
func (c *Config) BillingEnabled() bool {
	return c.StripeSecretKey != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
