// Package config reads service settings from the environment. A .env.local
// file in the working directory is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/pavelength/pavelength/internal/artifact"
	"github.com/pavelength/pavelength/internal/llm"
)

const (
	DefaultPort        = "5050"
	DefaultSessionTTL  = 2 * time.Hour
	DefaultMaxUploadMB = 200
)

// DefaultOrigins are the local front-end dev servers.
var DefaultOrigins = []string{"http://localhost:5173", "http://localhost:8501"}

type Config struct {
	Port        string
	LLM         llm.Config
	SessionTTL  time.Duration
	MaxUploadMB int64

	// SchemaFile replaces the embedded field registry when set.
	SchemaFile        string
	TranslateFallback bool

	DatabaseURL string
	Artifacts   artifact.Config

	// AccessKeyHash is a bcrypt hash; empty disables the access key check.
	AccessKeyHash  string
	AllowedOrigins []string
}

// Load reads .env.local (if any) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load(".env.local")

	cfg := Config{
		Port:              firstNonEmpty(os.Getenv("PORT"), DefaultPort),
		LLM:               llm.LoadFromEnv(),
		SessionTTL:        DefaultSessionTTL,
		MaxUploadMB:       DefaultMaxUploadMB,
		SchemaFile:        strings.TrimSpace(os.Getenv("SCHEMA_FILE")),
		TranslateFallback: fallbackEnabled(os.Getenv("TRANSLATE_FALLBACK")),
		DatabaseURL:       strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Artifacts: artifact.Config{
			Endpoint:  strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT")),
			Region:    strings.TrimSpace(os.Getenv("ARTIFACT_S3_REGION")),
			AccessKey: strings.TrimSpace(os.Getenv("ARTIFACT_S3_ACCESS_KEY")),
			SecretKey: strings.TrimSpace(os.Getenv("ARTIFACT_S3_SECRET_KEY")),
			Bucket:    strings.TrimSpace(os.Getenv("ARTIFACT_S3_BUCKET")),
			UseSSL:    parseBool(firstNonEmpty(os.Getenv("ARTIFACT_S3_USE_SSL"), "true")),
		},
		AccessKeyHash:  strings.TrimSpace(os.Getenv("ACCESS_KEY_HASH")),
		AllowedOrigins: DefaultOrigins,
	}

	if v := strings.TrimSpace(os.Getenv("SESSION_TTL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("SESSION_TTL: %w", err)
		}
		cfg.SessionTTL = d
	}
	if v := strings.TrimSpace(os.Getenv("MAX_UPLOAD_MB")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("MAX_UPLOAD_MB: %w", err)
		}
		cfg.MaxUploadMB = n
	}
	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	return cfg, cfg.Validate()
}

var (
	ErrBadPort       = errors.New("PORT must be a number")
	ErrBadSessionTTL = errors.New("SESSION_TTL must be positive")
	ErrBadUpload     = errors.New("MAX_UPLOAD_MB must be positive")
	ErrPartialS3     = errors.New("ARTIFACT_S3_ENDPOINT, ARTIFACT_S3_ACCESS_KEY, ARTIFACT_S3_SECRET_KEY and ARTIFACT_S3_BUCKET must be set together")
)

func (c Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return ErrBadPort
	}
	if c.SessionTTL <= 0 {
		return ErrBadSessionTTL
	}
	if c.MaxUploadMB <= 0 {
		return ErrBadUpload
	}
	a := c.Artifacts
	set := 0
	for _, v := range []string{a.Endpoint, a.AccessKey, a.SecretKey, a.Bucket} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 4 {
		return ErrPartialS3
	}
	return c.LLM.Validate()
}

// MaxUploadBytes is the upload limit in bytes.
func (c Config) MaxUploadBytes() int64 { return c.MaxUploadMB << 20 }

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func parseBool(v string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(v))
	return b
}

// fallbackEnabled accepts "select_all" as well as boolean spellings.
func fallbackEnabled(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "select_all") || parseBool(v)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
