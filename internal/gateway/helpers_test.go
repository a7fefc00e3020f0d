package gateway_test

import (
	"context"
	"sync"
	"time"

	"github.com/systmms/apimprobe/internal/credentials"
	"github.com/systmms/apimprobe/internal/gateway"
)

// scriptedCaller replays envelopes in order, repeating the last one.
type scriptedCaller struct {
	mu        sync.Mutex
	responses []gateway.Envelope
	requests  []gateway.Request
}

func newScriptedCaller(responses ...gateway.Envelope) *scriptedCaller {
	return &scriptedCaller{responses: responses}
}

func (s *scriptedCaller) Execute(ctx context.Context, req gateway.Request) (gateway.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := len(s.requests)
	s.requests = append(s.requests, req)
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

func (s *scriptedCaller) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// countingRefresher records Refresh calls and returns a fixed result.
type countingRefresher struct {
	mu    sync.Mutex
	cred  credentials.Credential
	err   error
	calls int
}

func (r *countingRefresher) Refresh(ctx context.Context, tenant string, preferred credentials.Slot) (credentials.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.cred, r.err
}

// fakeClock advances only when Sleep is called.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

func status(code int, body string) gateway.Envelope {
	return gateway.Envelope{StatusCode: code, Body: body}
}
