package gateway_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	aperrors "github.com/systmms/apimprobe/internal/errors"
	"github.com/systmms/apimprobe/internal/gateway"
)

const testBase = "https://apim.example.net"

func newTestPoller(caller gateway.Caller, clock *fakeClock) *gateway.Poller {
	return gateway.NewPoller(caller, testBase, 2*time.Second,
		gateway.WithSleep(clock.Sleep),
		gateway.WithClock(clock.Now))
}

func TestPollSucceeds(t *testing.T) {
	t.Parallel()

	for _, terminal := range []string{"succeeded", "completed", "Succeeded"} {
		caller := newScriptedCaller(
			status(200, `{"status":"running"}`),
			status(200, `{"status":"`+terminal+`","result":{"id":1}}`),
		)
		clock := newFakeClock()

		op, err := newTestPoller(caller, clock).Poll(context.Background(), "wlrs", "/operations/abc", time.Minute)
		require.NoError(t, err)
		assert.True(t, op.Terminal)
		assert.Equal(t, terminal, op.Status)
		assert.Contains(t, op.Body, `"result"`)
		assert.Equal(t, 2, caller.calls())
		assert.Equal(t, []time.Duration{2 * time.Second}, clock.Sleeps())
	}
}

func TestPollFirstResponseTerminal(t *testing.T) {
	t.Parallel()

	caller := newScriptedCaller(status(200, `{"status":"succeeded"}`))
	clock := newFakeClock()

	op, err := newTestPoller(caller, clock).Poll(context.Background(), "wlrs", "/operations/abc", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "succeeded", op.Status)
	assert.Equal(t, 1, caller.calls())
	assert.Empty(t, clock.Sleeps())
}

func TestPollFailedStopsImmediately(t *testing.T) {
	t.Parallel()

	failedBody := `{"status":"failed","error":{"code":"InvalidDocument"}}`
	caller := newScriptedCaller(
		status(200, `{"status":"notStarted"}`),
		status(200, failedBody),
		status(200, `{"status":"succeeded"}`),
	)
	clock := newFakeClock()

	op, err := newTestPoller(caller, clock).Poll(context.Background(), "wlrs", "/operations/abc", time.Minute)
	require.Error(t, err)

	var opErr *aperrors.OperationFailedError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, failedBody, opErr.Detail)
	assert.Equal(t, "/operations/abc", opErr.Location)
	assert.True(t, op.Terminal)
	assert.Equal(t, 2, caller.calls())
}

func TestPollTimeout(t *testing.T) {
	t.Parallel()

	caller := newScriptedCaller(status(200, `{"status":"running"}`))
	clock := newFakeClock()

	op, err := newTestPoller(caller, clock).Poll(context.Background(), "wlrs", "/operations/abc", 6*time.Second)
	assert.ErrorIs(t, err, aperrors.ErrPollTimeout)
	assert.False(t, op.Terminal)
	assert.Equal(t, "running", op.Status)
	assert.Equal(t, 3, caller.calls())
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second}, clock.Sleeps())
}

func TestPollKeepsGoingOnUnparseable(t *testing.T) {
	t.Parallel()

	caller := newScriptedCaller(
		gateway.Envelope{Err: errors.New("connection reset")},
		status(502, "<html>bad gateway</html>"),
		status(200, `{"id":"abc"}`),
		status(200, `{"status":"completed"}`),
	)
	clock := newFakeClock()

	op, err := newTestPoller(caller, clock).Poll(context.Background(), "wlrs", "/operations/abc", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "completed", op.Status)
	assert.Equal(t, 4, caller.calls())
}

func TestPollZeroWait(t *testing.T) {
	t.Parallel()

	caller := newScriptedCaller(status(200, `{"status":"running"}`))
	clock := newFakeClock()

	_, err := newTestPoller(caller, clock).Poll(context.Background(), "wlrs", "/operations/abc", 0)
	assert.ErrorIs(t, err, aperrors.ErrPollTimeout)
	assert.Equal(t, 1, caller.calls())
	assert.Empty(t, clock.Sleeps())
}

func TestPollUsesRelativePath(t *testing.T) {
	t.Parallel()

	caller := newScriptedCaller(status(200, `{"status":"succeeded"}`))
	_, err := newTestPoller(caller, newFakeClock()).Poll(context.Background(), "wlrs",
		testBase+"/wlrs/operations/abc?api-version=2024-01-01", time.Minute)
	require.NoError(t, err)

	require.Len(t, caller.requests, 1)
	assert.Equal(t, http.MethodGet, caller.requests[0].Method)
	assert.Equal(t, "wlrs", caller.requests[0].Tenant)
	assert.Equal(t, "/operations/abc?api-version=2024-01-01", caller.requests[0].Path)
}

func TestPollContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	caller := newScriptedCaller(status(200, `{"status":"running"}`))
	_, err := newTestPoller(caller, newFakeClock()).Poll(ctx, "wlrs", "/operations/abc", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRelativePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		location string
		want     string
	}{
		{name: "gateway absolute", location: testBase + "/wlrs/operations/1", want: "/operations/1"},
		{name: "gateway absolute with query", location: testBase + "/wlrs/operations/1?x=y", want: "/operations/1?x=y"},
		{name: "relative", location: "/operations/1", want: "/operations/1"},
		{name: "relative without slash", location: "operations/1", want: "/operations/1"},
		{name: "other host with tenant", location: "https://backend.internal/wlrs/operations/1", want: "/operations/1"},
		{name: "other host without tenant", location: "https://backend.internal/ops/1?v=2", want: "/ops/1?v=2"},
		{name: "tenant prefix is a whole segment", location: testBase + "/wlrs-dev/operations/1", want: "/wlrs-dev/operations/1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, gateway.RelativePath(testBase+"/", "wlrs", tt.location))
		})
	}
}
