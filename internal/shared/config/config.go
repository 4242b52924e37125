package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"textlens-backend/internal/provider"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	LocalStoreDir   string
	DatabaseURL     string
	Env             string

	ProviderAPIKeys map[provider.Provider]string
	ProviderModels  map[provider.Provider]string
	ProviderTimeout time.Duration

	BatchDelay time.Duration
	DelayTick  time.Duration

	CreditCosts map[string]int

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	UIRedirectURL      string

	StripeAPIKey        string
	StripeWebhookSecret string
	StripeSuccessURL    string
	StripeCancelURL     string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		DatabaseURL:     dbURL,
		Env:             env,

		ProviderAPIKeys: map[provider.Provider]string{
			provider.OpenAI:     os.Getenv("OPENAI_API_KEY"),
			provider.Groq:       os.Getenv("GROQ_API_KEY"),
			provider.OpenRouter: os.Getenv("OPENROUTER_API_KEY"),
			provider.Anthropic:  os.Getenv("ANTHROPIC_API_KEY"),
		},
		ProviderModels: map[provider.Provider]string{
			provider.OpenAI:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			provider.Groq:       getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
			provider.OpenRouter: getEnv("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
			provider.Anthropic:  getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		},
		ProviderTimeout: durationEnv("PROVIDER_TIMEOUT_SECONDS", 120*time.Second),

		BatchDelay: durationEnv("BATCH_DELAY_SECONDS", 10*time.Second),
		DelayTick:  durationEnv("DELAY_TICK_MS", 100*time.Millisecond),

		CreditCosts: costOverrides(os.Getenv("CREDIT_COSTS")),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		UIRedirectURL:      getEnv("UI_REDIRECT_URL", ""),

		StripeAPIKey:        os.Getenv("STRIPE_API_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeSuccessURL:    getEnv("STRIPE_SUCCESS_URL", "http://localhost:5173/billing/success"),
		StripeCancelURL:     getEnv("STRIPE_CANCEL_URL", "http://localhost:5173/billing/cancel"),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// durationEnv reads an integer environment variable in the unit implied by the
// key suffix (_SECONDS or _MS) and falls back to def when unset or invalid.
func durationEnv(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		log.Printf("ignoring invalid %s=%q", key, raw)
		return def
	}
	if strings.HasSuffix(key, "_MS") {
		return time.Duration(n) * time.Millisecond
	}
	return time.Duration(n) * time.Second
}

// costOverrides parses "kind=cost,kind=cost" pairs.
func costOverrides(raw string) map[string]int {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	out := make(map[string]int)
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		kind := strings.TrimSpace(parts[0])
		cost, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || kind == "" || cost < 0 {
			continue
		}
		out[kind] = cost
	}
	return out
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}
