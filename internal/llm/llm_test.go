package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next Client) Client {
			return clientFunc{name: next.Name(), fn: func(ctx context.Context, req Request) (string, error) {
				order = append(order, name)
				return next.Complete(ctx, req)
			}}
		}
	}
	c := Wrap(Texts("ok"), mark("A"), mark("B"))
	_, err := c.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, order)
}

func TestRetryRecoversFromTransientErrors(t *testing.T) {
	fake := NewFakeClient(Reply{Err: errors.New("flaky")}, Reply{Text: "done"})
	c := Wrap(fake, Retry(3, time.Millisecond))

	out, err := c.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, 2, fake.Calls())
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	fake := NewFakeClient(Reply{Err: NewPermanentError(errors.New("bad key"))}, Reply{Text: "never"})
	c := Wrap(fake, Retry(3, time.Millisecond))

	_, err := c.Complete(context.Background(), Request{})
	var pErr *PermanentError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, 1, fake.Calls())
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	fake := NewFakeClient(Reply{Err: errors.New("down")})
	c := Wrap(fake, Retry(2, time.Millisecond))

	_, err := c.Complete(context.Background(), Request{})
	assert.EqualError(t, err, "down")
	assert.Equal(t, 2, fake.Calls())
}

func TestTimeoutCancelsBlockedCall(t *testing.T) {
	fake := Texts("late")
	release := fake.Block()
	defer release()

	c := Wrap(fake, Timeout(20*time.Millisecond))
	_, err := c.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimitDisabledReturnsInner(t *testing.T) {
	fake := Texts("x")
	assert.Same(t, Client(fake), RateLimit(0, 0)(fake))
}

func TestDisabledProvider(t *testing.T) {
	c, err := NewProvider(context.Background(), Config{Provider: ProviderNone})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestNewProviderValidatesKeys(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Provider: ProviderOpenAI})
	assert.ErrorIs(t, err, ErrMissingOpenAIKey)
	_, err = NewProvider(context.Background(), Config{Provider: "claude-ish"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("LLM_RPS", "0.5")
	t.Setenv("LLM_RETRIES", "0")

	cfg := LoadFromEnv()
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, DefaultOpenAIModel, cfg.OpenAIModel)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 0.5, cfg.RPS)
	assert.Equal(t, 0, cfg.Retries)
	assert.NoError(t, cfg.Validate())

	t.Setenv("LLM_PROVIDER", "gemini")
	cfg = LoadFromEnv()
	assert.Equal(t, ProviderGemini, cfg.Provider)
	assert.ErrorIs(t, cfg.Validate(), ErrMissingGeminiKey)
}

func TestOpenAIClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body.Model)
		if assert.NotNil(t, body.ResponseFormat) {
			assert.Equal(t, "json_object", body.ResponseFormat.Type)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" {\"PCI\":\"pci\"} "}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL+"/", "sk-test", "gpt-test", srv.Client())
	out, err := c.Complete(context.Background(), Request{Prompt: "map", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"PCI":"pci"}`, out)
}

func TestOpenAIClientStatusErrors(t *testing.T) {
	status := http.StatusUnauthorized
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid key"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "bad", "gpt-test", srv.Client())
	_, err := c.Complete(context.Background(), Request{Prompt: "x"})
	var pErr *PermanentError
	require.ErrorAs(t, err, &pErr)
	assert.Contains(t, err.Error(), "invalid key")

	status = http.StatusTooManyRequests
	_, err = c.Complete(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
	assert.False(t, errors.As(err, &pErr))
}

type clientFunc struct {
	name string
	fn   func(context.Context, Request) (string, error)
}

func (c clientFunc) Name() string { return c.name }
func (c clientFunc) Close() error { return nil }
func (c clientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return c.fn(ctx, req)
}
