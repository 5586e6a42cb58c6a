package llm

import (
	"context"
	"sync"
)

// Reply is one scripted answer of a FakeClient.
type Reply struct {
	Text string
	Err  error
}

// FakeClient replays scripted replies in order for offline runs and tests.
// When the script is exhausted the last reply repeats.
type FakeClient struct {
	mu       sync.Mutex
	replies  []Reply
	requests []Request
	block    chan struct{}
}

func NewFakeClient(replies ...Reply) *FakeClient {
	return &FakeClient{replies: replies}
}

// Texts is a shorthand for a FakeClient that answers with the given texts.
func Texts(texts ...string) *FakeClient {
	replies := make([]Reply, len(texts))
	for i, t := range texts {
		replies[i] = Reply{Text: t}
	}
	return NewFakeClient(replies...)
}

// Block makes every call wait until the returned release func is called or
// the context ends.
func (f *FakeClient) Block() (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.block = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *FakeClient) Name() string { return "fake" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) Complete(ctx context.Context, req Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	n := len(f.requests)
	block := f.block
	var r Reply
	switch {
	case len(f.replies) == 0:
		r = Reply{Err: ErrEmptyResponse}
	case n <= len(f.replies):
		r = f.replies[n-1]
	default:
		r = f.replies[len(f.replies)-1]
	}
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if r.Err != nil {
		return "", r.Err
	}
	return r.Text, nil
}

// Requests returns every request received so far.
func (f *FakeClient) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

// Calls is the number of requests received.
func (f *FakeClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}
