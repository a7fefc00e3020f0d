package gateway_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/apimprobe/internal/credentials"
	aperrors "github.com/systmms/apimprobe/internal/errors"
	"github.com/systmms/apimprobe/internal/gateway"
)

// capturedRequest holds what the test gateway received.
type capturedRequest struct {
	Method  string
	Path    string
	Query   string
	Body    []byte
	Headers http.Header
}

type recordingServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []capturedRequest
}

func newRecordingServer(t *testing.T, handler http.HandlerFunc) *recordingServer {
	t.Helper()

	rs := &recordingServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rs.mu.Lock()
		rs.requests = append(rs.requests, capturedRequest{
			Method:  r.Method,
			Path:    r.URL.Path,
			Query:   r.URL.RawQuery,
			Body:    body,
			Headers: r.Header.Clone(),
		})
		rs.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *recordingServer) Requests() []capturedRequest {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]capturedRequest(nil), rs.requests...)
}

func newTestStore(tenant, key string) *credentials.Store {
	s := credentials.NewStore(credentials.Options{})
	s.Set(tenant, key)
	return s
}

func TestExecuteJSON(t *testing.T) {
	t.Parallel()

	srv := newRecordingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	exec := gateway.NewExecutor(newTestStore("wlrs", "K1"), gateway.ExecutorConfig{BaseURL: srv.URL + "/"})
	env, err := exec.Execute(context.Background(), gateway.Request{
		Method:  http.MethodPost,
		Tenant:  "wlrs",
		Path:    "/chat/completions",
		Payload: gateway.JSONPayload(map[string]string{"model": "gpt-4o"}),
	})
	require.NoError(t, err)
	assert.Equal(t, "200", env.Status())
	assert.Equal(t, `{"choices":[]}`, env.Body)
	assert.Equal(t, "application/json", env.Header.Get("Content-Type"))

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "/wlrs/chat/completions", reqs[0].Path)
	assert.JSONEq(t, `{"model":"gpt-4o"}`, string(reqs[0].Body))
	assert.Equal(t, "application/json", reqs[0].Headers.Get("Content-Type"))
	assert.Equal(t, "application/json", reqs[0].Headers.Get("Accept"))
	assert.Equal(t, "K1", reqs[0].Headers.Get("api-key"))
	assert.Empty(t, reqs[0].Headers.Get("Ocp-Apim-Subscription-Key"))
}

func TestExecuteReturnsErrorStatuses(t *testing.T) {
	t.Parallel()

	for _, code := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusTooManyRequests, http.StatusBadGateway} {
		srv := newRecordingServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", code)
		})

		exec := gateway.NewExecutor(newTestStore("wlrs", "K1"), gateway.ExecutorConfig{BaseURL: srv.URL})
		env, err := exec.Execute(context.Background(), gateway.Request{Method: http.MethodGet, Tenant: "wlrs", Path: "/items"})
		require.NoError(t, err)
		assert.Equal(t, code, env.StatusCode)
		assert.False(t, env.TransportFailed())
		assert.Contains(t, env.Body, "nope")
	}
}

func TestExecuteHeaderScheme(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		defaultSch gateway.Scheme
		reqScheme  gateway.Scheme
		wantHeader string
		otherHdr   string
	}{
		{name: "default is api-key", wantHeader: "api-key", otherHdr: "Ocp-Apim-Subscription-Key"},
		{name: "legacy per request", reqScheme: gateway.SchemeSubscriptionKey, wantHeader: "Ocp-Apim-Subscription-Key", otherHdr: "api-key"},
		{name: "legacy default", defaultSch: gateway.SchemeSubscriptionKey, wantHeader: "Ocp-Apim-Subscription-Key", otherHdr: "api-key"},
		{name: "request overrides default", defaultSch: gateway.SchemeSubscriptionKey, reqScheme: gateway.SchemeAPIKey, wantHeader: "api-key", otherHdr: "Ocp-Apim-Subscription-Key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := newRecordingServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
			exec := gateway.NewExecutor(newTestStore("wlrs", "K1"), gateway.ExecutorConfig{BaseURL: srv.URL, Scheme: tt.defaultSch})

			_, err := exec.Execute(context.Background(), gateway.Request{Tenant: "wlrs", Path: "/ping", Scheme: tt.reqScheme})
			require.NoError(t, err)

			reqs := srv.Requests()
			require.Len(t, reqs, 1)
			assert.Equal(t, "K1", reqs[0].Headers.Get(tt.wantHeader))
			assert.Empty(t, reqs[0].Headers.Get(tt.otherHdr))
			assert.Equal(t, http.MethodGet, reqs[0].Method)
		})
	}
}

func TestExecutePayloadKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		payload     gateway.Payload
		wantType    string
		wantBody    string
		wantBinary  bool
		bodyContain string
	}{
		{name: "empty", payload: gateway.Payload{}, wantType: "application/json"},
		{name: "raw json", payload: gateway.JSONPayload([]byte(`{"a":1}`)), wantType: "application/json", wantBody: `{"a":1}`},
		{name: "binary", payload: gateway.BinaryPayload([]byte{0x00, 0x01}), wantType: "application/octet-stream", wantBody: "\x00\x01", wantBinary: true},
		{name: "pdf", payload: gateway.PDFPayload([]byte("%PDF-1.4")), wantType: "application/pdf", wantBody: "%PDF-1.4", wantBinary: true},
		{name: "multipart", payload: gateway.MultipartPayload("file", "doc.pdf", []byte("%PDF-1.4")), wantType: "multipart/form-data; boundary=", wantBinary: true, bodyContain: `filename="doc.pdf"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := newRecordingServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusAccepted)
			})
			exec := gateway.NewExecutor(newTestStore("wlrs", "K1"), gateway.ExecutorConfig{BaseURL: srv.URL})

			env, err := exec.Execute(context.Background(), gateway.Request{Method: http.MethodPost, Tenant: "wlrs", Path: "/upload", Payload: tt.payload})
			require.NoError(t, err)
			assert.Equal(t, http.StatusAccepted, env.StatusCode)
			assert.Equal(t, tt.wantBinary, tt.payload.Binary())

			reqs := srv.Requests()
			require.Len(t, reqs, 1)
			assert.True(t, strings.HasPrefix(reqs[0].Headers.Get("Content-Type"), tt.wantType), reqs[0].Headers.Get("Content-Type"))
			if tt.bodyContain != "" {
				assert.Contains(t, string(reqs[0].Body), tt.bodyContain)
			} else {
				assert.Equal(t, tt.wantBody, string(reqs[0].Body))
			}
		})
	}
}

func TestExecuteUnknownTenant(t *testing.T) {
	t.Parallel()

	exec := gateway.NewExecutor(newTestStore("wlrs", "K1"), gateway.ExecutorConfig{BaseURL: "http://127.0.0.1:1"})
	_, err := exec.Execute(context.Background(), gateway.Request{Tenant: "other", Path: "/x"})
	assert.ErrorIs(t, err, aperrors.ErrUnknownTenant)
}

func TestExecuteInvalidPayload(t *testing.T) {
	t.Parallel()

	exec := gateway.NewExecutor(newTestStore("wlrs", "K1"), gateway.ExecutorConfig{BaseURL: "http://127.0.0.1:1"})
	_, err := exec.Execute(context.Background(), gateway.Request{Tenant: "wlrs", Payload: gateway.JSONPayload(make(chan int))})
	assert.Error(t, err)
}

func TestExecuteTransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	exec := gateway.NewExecutor(newTestStore("wlrs", "K1"), gateway.ExecutorConfig{BaseURL: base})
	env, err := exec.Execute(context.Background(), gateway.Request{Tenant: "wlrs", Path: "/items"})
	require.NoError(t, err)
	assert.True(t, env.TransportFailed())
	assert.Equal(t, "000", env.Status())
	assert.Zero(t, env.StatusCode)
}

func TestExecuteTimeoutIsTransportFailure(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	exec := gateway.NewExecutor(newTestStore("wlrs", "K1"), gateway.ExecutorConfig{
		BaseURL:     srv.URL,
		JSONTimeout: 50 * time.Millisecond,
	})
	env, err := exec.Execute(context.Background(), gateway.Request{Tenant: "wlrs", Path: "/slow"})
	require.NoError(t, err)
	assert.Equal(t, "000", env.Status())
	assert.ErrorIs(t, env.Err, context.DeadlineExceeded)
}

func TestExecutorURL(t *testing.T) {
	t.Parallel()

	exec := gateway.NewExecutor(newTestStore("wlrs", "K1"), gateway.ExecutorConfig{BaseURL: "https://apim.example.net/"})
	assert.Equal(t, "https://apim.example.net", exec.BaseURL())
	assert.Equal(t, "https://apim.example.net/wlrs/chat/completions", exec.URL("wlrs", "/chat/completions"))
	assert.Equal(t, "https://apim.example.net/wlrs/chat", exec.URL("wlrs", "chat"))
	assert.Equal(t, "https://apim.example.net/wlrs", exec.URL("wlrs", ""))
}
