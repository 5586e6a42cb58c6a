package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrMissingGeminiKey = errors.New("GEMINI_API_KEY environment variable is required for gemini provider")
	ErrMissingOpenAIKey = errors.New("OPENAI_API_KEY environment variable is required for openai provider")
	ErrUnknownProvider  = errors.New("unknown provider type")
)

// providerRegistry holds registered provider constructors.
var providerRegistry = map[ProviderType]func(context.Context, Config) (Client, error){
	ProviderNone: func(context.Context, Config) (Client, error) { return disabled{}, nil },
}

// RegisterProvider registers a client constructor for a provider type.
// It is called from init() in each provider file.
func RegisterProvider(p ProviderType, constructor func(context.Context, Config) (Client, error)) {
	providerRegistry[p] = constructor
}

// NewProvider builds the configured client wrapped in the standard
// middleware stack: logging, overall timeout, retry and rate limiting.
func NewProvider(ctx context.Context, cfg Config) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	constructor, ok := providerRegistry[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
	inner, err := constructor(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return Wrap(inner,
		Logging(),
		Timeout(cfg.Timeout),
		Retry(cfg.Retries+1, 300*time.Millisecond),
		RateLimit(cfg.RPS, cfg.Burst),
	), nil
}
