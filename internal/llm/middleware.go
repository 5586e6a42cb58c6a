package llm

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// Middleware decorates a Client with a cross-cutting concern.
type Middleware func(Client) Client

// Wrap applies middlewares in left-to-right order: Wrap(inner, A, B) => A(B(inner)).
func Wrap(inner Client, mws ...Middleware) Client {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// -------- Rate limiting --------

// RateLimit throttles calls to rps with the given burst. rps <= 0 disables it.
func RateLimit(rps float64, burst int) Middleware {
	return func(next Client) Client {
		if rps <= 0 {
			return next
		}
		if burst < 1 {
			burst = 1
		}
		return &rateLimited{next: next, lim: rate.NewLimiter(rate.Limit(rps), burst)}
	}
}

type rateLimited struct {
	next Client
	lim  *rate.Limiter
}

func (c *rateLimited) Name() string { return c.next.Name() }
func (c *rateLimited) Close() error { return c.next.Close() }
func (c *rateLimited) Complete(ctx context.Context, req Request) (string, error) {
	if err := c.lim.Wait(ctx); err != nil {
		return "", err
	}
	return c.next.Complete(ctx, req)
}

// -------- Retry with exponential backoff --------

// Retry retries Complete up to maxAttempts with exponential backoff starting
// at baseDelay. Permanent errors and a canceled context stop immediately.
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 300 * time.Millisecond
	}
	return func(next Client) Client {
		return &retrying{next: next, max: maxAttempts, base: baseDelay}
	}
}

type retrying struct {
	next Client
	max  int
	base time.Duration
}

func (r *retrying) Name() string { return r.next.Name() }
func (r *retrying) Close() error { return r.next.Close() }
func (r *retrying) Complete(ctx context.Context, req Request) (string, error) {
	var last error
	for i := 0; i < r.max; i++ {
		out, err := r.next.Complete(ctx, req)
		if err == nil {
			return out, nil
		}
		var pErr *PermanentError
		if errors.As(err, &pErr) {
			return "", err
		}
		last = err
		if i == r.max-1 {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(r.base * time.Duration(1<<i)):
		}
	}
	return "", last
}

// -------- Timeout --------

// Timeout bounds each call with d. d <= 0 disables it.
func Timeout(d time.Duration) Middleware {
	return func(next Client) Client {
		if d <= 0 {
			return next
		}
		return &timeoutClient{next: next, d: d}
	}
}

type timeoutClient struct {
	next Client
	d    time.Duration
}

func (c *timeoutClient) Name() string { return c.next.Name() }
func (c *timeoutClient) Close() error { return c.next.Close() }
func (c *timeoutClient) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.d)
	defer cancel()
	return c.next.Complete(ctx, req)
}

// -------- Logging --------

// Logging logs request size, latency and failures of every call.
func Logging() Middleware {
	return func(next Client) Client {
		return &logged{next: next}
	}
}

type logged struct {
	next Client
}

func (c *logged) Name() string { return c.next.Name() }
func (c *logged) Close() error { return c.next.Close() }
func (c *logged) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	LogRequest(c.next.Name(), req.Purpose, len(req.Prompt))
	out, err := c.next.Complete(ctx, req)
	if err != nil {
		LogError(c.next.Name(), req.Purpose, err)
		return "", err
	}
	LogResponse(c.next.Name(), req.Purpose, time.Since(start), len(out))
	return out, nil
}
