package llm

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ProviderType identifies which language model provider to use.
type ProviderType string

const (
	ProviderNone   ProviderType = "none"
	ProviderGemini ProviderType = "gemini"
	ProviderOpenAI ProviderType = "openai"
)

const (
	DefaultGeminiModel   = "gemini-2.5-flash"
	DefaultOpenAIModel   = "gpt-3.5-turbo"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultTimeout       = 30 * time.Second
)

// Config holds the language model provider configuration.
type Config struct {
	Provider ProviderType

	GeminiKey   string
	GeminiModel string

	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string

	// Timeout bounds every call, including retries.
	Timeout time.Duration
	RPS     float64
	Burst   int
	Retries int
}

// LoadFromEnv loads provider configuration from environment variables.
//
// Environment variables:
//   - LLM_PROVIDER: "gemini", "openai" or "none" (default: openai when
//     OPENAI_API_KEY is set, gemini when GEMINI_API_KEY is set, else none)
//   - GEMINI_API_KEY, GEMINI_MODEL (default: gemini-2.5-flash)
//   - OPENAI_API_KEY, OPENAI_MODEL (default: gpt-3.5-turbo), OPENAI_BASE_URL
//   - LLM_TIMEOUT (Go duration, default 30s), LLM_RPS, LLM_BURST, LLM_RETRIES (default 2)
func LoadFromEnv() Config {
	cfg := Config{
		GeminiKey:     strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:   firstNonEmpty(os.Getenv("GEMINI_MODEL"), DefaultGeminiModel),
		OpenAIKey:     strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:   firstNonEmpty(os.Getenv("OPENAI_MODEL"), DefaultOpenAIModel),
		OpenAIBaseURL: strings.TrimRight(firstNonEmpty(os.Getenv("OPENAI_BASE_URL"), DefaultOpenAIBaseURL), "/"),
		Timeout:       DefaultTimeout,
		Retries:       2,
	}

	switch strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER"))) {
	case "gemini":
		cfg.Provider = ProviderGemini
	case "openai":
		cfg.Provider = ProviderOpenAI
	case "none":
		cfg.Provider = ProviderNone
	default:
		switch {
		case cfg.OpenAIKey != "":
			cfg.Provider = ProviderOpenAI
		case cfg.GeminiKey != "":
			cfg.Provider = ProviderGemini
		default:
			cfg.Provider = ProviderNone
		}
	}

	if d, err := time.ParseDuration(strings.TrimSpace(os.Getenv("LLM_TIMEOUT"))); err == nil && d > 0 {
		cfg.Timeout = d
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv("LLM_RPS")), 64); err == nil {
		cfg.RPS = f
	}
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("LLM_BURST"))); err == nil {
		cfg.Burst = n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("LLM_RETRIES"))); err == nil && n >= 0 {
		cfg.Retries = n
	}
	return cfg
}

// Validate checks that the configuration is valid for the selected provider.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderGemini:
		if c.GeminiKey == "" {
			return ErrMissingGeminiKey
		}
	case ProviderOpenAI:
		if c.OpenAIKey == "" {
			return ErrMissingOpenAIKey
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
