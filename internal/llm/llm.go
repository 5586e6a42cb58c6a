package llm

import (
	"context"
	"errors"
)

// Client is the language-model collaborator. Implementations only perform the
// call; rate limiting, retries, timeouts and logging are layered on with
// Middleware.
type Client interface {
	// Name identifies the provider and model for logs.
	Name() string
	// Complete sends one prompt and returns the raw text of the reply.
	Complete(ctx context.Context, req Request) (string, error)
	Close() error
}

// Request is a single prompt. JSON asks the provider for a JSON object reply
// when it supports a response format switch.
type Request struct {
	Purpose string
	Prompt  string
	JSON    bool
}

var (
	ErrEmptyResponse = errors.New("llm: empty response from model")
	ErrDisabled      = errors.New("llm: no language model provider configured")
)

// PermanentError marks a failure that retrying will not fix (bad request,
// rejected credentials).
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// disabled is the client used when no provider is configured. Every call
// fails, so suggestions degrade to empty and translations report an error.
type disabled struct{}

func (disabled) Name() string { return "none" }
func (disabled) Close() error { return nil }
func (disabled) Complete(context.Context, Request) (string, error) {
	return "", NewPermanentError(ErrDisabled)
}
