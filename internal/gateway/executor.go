package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/systmms/apimprobe/internal/config"
	"github.com/systmms/apimprobe/internal/credentials"
	"github.com/systmms/apimprobe/internal/logging"
)

// Per-call timeouts.
const (
	DefaultJSONTimeout   = 60 * time.Second
	DefaultBinaryTimeout = 120 * time.Second
)

// Header names for the two key schemes.
const (
	HeaderAPIKey          = "api-key"
	HeaderSubscriptionKey = "Ocp-Apim-Subscription-Key"
)

// Scheme selects which header carries the tenant key.
type Scheme string

// Supported schemes. The empty Scheme means the executor default.
const (
	SchemeAPIKey          Scheme = config.HeaderAPIKey
	SchemeSubscriptionKey Scheme = config.HeaderSubscriptionKey
)

// HeaderName returns the HTTP header used by the scheme.
func (s Scheme) HeaderName() string {
	if s == SchemeSubscriptionKey {
		return HeaderSubscriptionKey
	}
	return HeaderAPIKey
}

// CredentialSource supplies the current tenant credential.
type CredentialSource interface {
	Get(tenant string) (credentials.Credential, error)
}

// Caller performs a single gateway call. *Executor implements it.
type Caller interface {
	Execute(ctx context.Context, req Request) (Envelope, error)
}

// Request describes one gateway call.
type Request struct {
	Method  string
	Tenant  string
	Path    string
	Payload Payload
	// Scheme overrides the executor default when set.
	Scheme Scheme
}

// ExecutorConfig configures an Executor.
type ExecutorConfig struct {
	BaseURL       string
	Scheme        Scheme
	JSONTimeout   time.Duration
	BinaryTimeout time.Duration
	HTTPClient    *http.Client
	Logger        *logging.Logger
	Metrics       *Metrics
}

// Executor issues authenticated calls for any configured tenant.
type Executor struct {
	creds         CredentialSource
	baseURL       string
	scheme        Scheme
	jsonTimeout   time.Duration
	binaryTimeout time.Duration
	client        *http.Client
	logger        *logging.Logger
	metrics       *Metrics
}

// NewExecutor creates an Executor reading keys from creds.
func NewExecutor(creds CredentialSource, cfg ExecutorConfig) *Executor {
	e := &Executor{
		creds:         creds,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		scheme:        cfg.Scheme,
		jsonTimeout:   cfg.JSONTimeout,
		binaryTimeout: cfg.BinaryTimeout,
		client:        cfg.HTTPClient,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
	}
	if e.scheme == "" {
		e.scheme = SchemeAPIKey
	}
	if e.jsonTimeout <= 0 {
		e.jsonTimeout = DefaultJSONTimeout
	}
	if e.binaryTimeout <= 0 {
		e.binaryTimeout = DefaultBinaryTimeout
	}
	if e.client == nil {
		e.client = &http.Client{}
	}
	if e.logger == nil {
		e.logger = logging.Discard()
	}
	return e
}

// BaseURL returns the gateway base without a trailing slash.
func (e *Executor) BaseURL() string {
	return e.baseURL
}

// URL returns the absolute URL for a tenant path.
func (e *Executor) URL(tenant, path string) string {
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return e.baseURL + "/" + tenant + path
}

// Execute performs one call. Every HTTP status, including errors, comes back
// as an Envelope; failures with no HTTP response come back as a transport
// failure Envelope. The returned error is non-nil only when the request
// cannot be built, for example for an unknown tenant.
func (e *Executor) Execute(ctx context.Context, req Request) (Envelope, error) {
	if req.Payload.err != nil {
		return Envelope{}, req.Payload.err
	}
	cred, err := e.creds.Get(req.Tenant)
	if err != nil {
		return Envelope{}, err
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	scheme := req.Scheme
	if scheme == "" {
		scheme = e.scheme
	}
	timeout := e.jsonTimeout
	if req.Payload.Binary() {
		timeout = e.binaryTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if req.Payload.body != nil {
		body = bytes.NewReader(req.Payload.body)
	}
	url := e.URL(req.Tenant, req.Path)
	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return Envelope{}, fmt.Errorf("build request for %s: %w", url, err)
	}
	httpReq.Header.Set("Content-Type", req.Payload.ContentType())
	httpReq.Header.Set("Accept", ContentTypeJSON)
	httpReq.Header.Set(scheme.HeaderName(), cred.Material)

	e.logger.Debug("%s %s (%s, %s)", method, url, scheme.HeaderName(), cred)

	start := time.Now()
	env := e.do(httpReq)
	e.metrics.RecordRequest(req.Tenant, env.Status(), time.Since(start).Seconds())

	if env.TransportFailed() {
		e.logger.Debug("%s %s: transport failure: %v", method, url, env.Err)
	} else {
		e.logger.Debug("%s %s -> %d %s", method, url, env.StatusCode,
			logging.Truncate(logging.Redact(env.Body, []string{cred.Material}), 200))
	}
	return env, nil
}

func (e *Executor) do(req *http.Request) Envelope {
	resp, err := e.client.Do(req)
	if err != nil {
		return transportFailure(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportFailure(fmt.Errorf("read response body: %w", err))
	}
	return Envelope{
		StatusCode: resp.StatusCode,
		Body:       string(data),
		Header:     resp.Header,
	}
}
