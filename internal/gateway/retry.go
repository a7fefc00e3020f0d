package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/systmms/apimprobe/internal/config"
	"github.com/systmms/apimprobe/internal/credentials"
	"github.com/systmms/apimprobe/internal/logging"
)

// Refresher rotates a tenant credential. *credentials.Store implements it.
type Refresher interface {
	Refresh(ctx context.Context, tenant string, preferred credentials.Slot) (credentials.Credential, error)
}

// RetryConfig bounds the retries for transport failures and 429s.
type RetryConfig struct {
	// MaxRetries is the number of extra attempts after the first (default: 3)
	MaxRetries int

	// Delay is the wait before a retry when no hint is available (default: 5s)
	Delay time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: config.DefaultMaxRetries,
		Delay:      config.DefaultRetryDelay,
	}
}

// Coordinator retries gateway calls. Transport failures and 429 responses
// are retried up to MaxRetries times. A 401 triggers one credential rotation
// followed by exactly one more call whose result is final. Every other
// status is returned as is.
type Coordinator struct {
	caller    Caller
	refresher Refresher
	cfg       RetryConfig
	logger    *logging.Logger
	metrics   *Metrics
	sleep     SleepFunc
}

// NewCoordinator creates a Coordinator. refresher may be nil, in which case
// a 401 is returned without rotation.
func NewCoordinator(caller Caller, refresher Refresher, cfg RetryConfig, opts ...Option) *Coordinator {
	o := newOptions(opts)
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Delay <= 0 {
		cfg.Delay = config.DefaultRetryDelay
	}
	return &Coordinator{
		caller:    caller,
		refresher: refresher,
		cfg:       cfg,
		logger:    o.logger,
		metrics:   o.metrics,
		sleep:     o.sleep,
	}
}

// Config returns the effective retry configuration.
func (c *Coordinator) Config() RetryConfig {
	return c.cfg
}

// Do runs req to completion. Once retries are exhausted the last envelope is
// returned with a nil error. A non-nil error means the request could not be
// built or ctx ended while waiting.
func (c *Coordinator) Do(ctx context.Context, req Request) (Envelope, error) {
	attempts := 0
	for {
		env, err := c.caller.Execute(ctx, req)
		if err != nil {
			return env, err
		}

		switch {
		case env.TransportFailed(), env.StatusCode == http.StatusTooManyRequests:
			if attempts >= c.cfg.MaxRetries {
				c.logger.Debug("Giving up on %s %s after %d retries (status %s)", req.Method, req.Path, attempts, env.Status())
				return env, nil
			}

			wait, reason := c.waitFor(env)
			attempts++
			c.metrics.RecordRetry(req.Tenant, reason)
			c.logger.Warn("%s %s returned %s, retrying in %s (%d/%d)",
				req.Method, req.Path, env.Status(), wait, attempts, c.cfg.MaxRetries)

			if err := c.sleep(ctx, wait); err != nil {
				return env, err
			}

		case env.StatusCode == http.StatusUnauthorized:
			return c.rotate(ctx, req, env)

		default:
			return env, nil
		}
	}
}

func (c *Coordinator) waitFor(env Envelope) (time.Duration, string) {
	if env.TransportFailed() {
		return c.cfg.Delay, "transport"
	}
	if d, ok := ParseRetryHint(env.Body); ok {
		return d, "rate_limited"
	}
	if d, ok := retryAfterHeader(env); ok {
		return d, "rate_limited"
	}
	return c.cfg.Delay, "rate_limited"
}

// rotate refreshes the tenant credential once and replays req once. When the
// refresh fails the original 401 is returned.
func (c *Coordinator) rotate(ctx context.Context, req Request, unauthorized Envelope) (Envelope, error) {
	if c.refresher == nil {
		return unauthorized, nil
	}

	cred, err := c.refresher.Refresh(ctx, req.Tenant, credentials.SlotUnknown)
	if err != nil {
		c.metrics.RecordRotation(req.Tenant, "failure")
		c.logger.Warn("Rotation fallback for %s unavailable: %v", req.Tenant, err)
		return unauthorized, nil
	}

	c.metrics.RecordRotation(req.Tenant, "success")
	c.logger.Info("Retrying %s %s with rotated %s key for %s", req.Method, req.Path, cred.Slot, req.Tenant)
	return c.caller.Execute(ctx, req)
}
