package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/systmms/apimprobe/internal/config"
	aperrors "github.com/systmms/apimprobe/internal/errors"
	"github.com/systmms/apimprobe/internal/logging"
)

// Operation is the last observed state of an asynchronous operation.
type Operation struct {
	Location string
	Status   string
	Terminal bool
	Body     string
}

// Poller follows asynchronous operations at a fixed interval.
type Poller struct {
	caller   Caller
	baseURL  string
	interval time.Duration
	logger   *logging.Logger
	metrics  *Metrics
	sleep    SleepFunc
	now      func() time.Time
}

// NewPoller creates a Poller. baseURL is used to turn absolute operation
// locations back into tenant paths.
func NewPoller(caller Caller, baseURL string, interval time.Duration, opts ...Option) *Poller {
	o := newOptions(opts)
	if interval <= 0 {
		interval = config.DefaultPollInterval
	}
	return &Poller{
		caller:   caller,
		baseURL:  strings.TrimRight(baseURL, "/"),
		interval: interval,
		logger:   o.logger,
		metrics:  o.metrics,
		sleep:    o.sleep,
		now:      o.now,
	}
}

// Poll queries location until it reports succeeded, completed or failed,
// or until maxWait has elapsed. A failed operation returns
// *errors.OperationFailedError carrying the response body; running out of
// time returns errors.ErrPollTimeout. Both also return the last Operation.
func (p *Poller) Poll(ctx context.Context, tenant, location string, maxWait time.Duration) (Operation, error) {
	op := Operation{Location: location}
	path := RelativePath(p.baseURL, tenant, location)
	start := p.now()

	for {
		env, err := p.caller.Execute(ctx, Request{Method: http.MethodGet, Tenant: tenant, Path: path})
		if err != nil {
			return op, err
		}

		op.Body = env.Body
		op.Status = operationStatus(env)

		switch strings.ToLower(op.Status) {
		case "succeeded", "completed":
			op.Terminal = true
			p.metrics.RecordPoll(tenant, "succeeded")
			return op, nil
		case "failed":
			op.Terminal = true
			p.metrics.RecordPoll(tenant, "failed")
			return op, &aperrors.OperationFailedError{Location: location, Detail: env.Body}
		}

		p.metrics.RecordPoll(tenant, "pending")
		p.logger.Debug("Operation %s is %q (HTTP %s)", path, op.Status, env.Status())

		if p.now().Sub(start) >= maxWait {
			break
		}
		if err := p.sleep(ctx, p.interval); err != nil {
			return op, err
		}
		if p.now().Sub(start) >= maxWait {
			break
		}
	}

	p.metrics.RecordPoll(tenant, "timeout")
	return op, fmt.Errorf("%w: %s still %q after %s", aperrors.ErrPollTimeout, location, op.Status, maxWait)
}

// operationStatus returns the JSON "status" field, or "" when the envelope
// has no parseable body.
func operationStatus(env Envelope) string {
	if env.TransportFailed() || env.Body == "" {
		return ""
	}
	var doc struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(env.Body), &doc); err != nil {
		return ""
	}
	return doc.Status
}

// RelativePath turns an operation location into a path under the tenant.
// Locations under {base}/{tenant} lose that prefix; other absolute URLs keep
// their path and query with a leading /{tenant} removed; relative locations
// are used as given.
func RelativePath(baseURL, tenant, location string) string {
	baseURL = strings.TrimRight(baseURL, "/")
	prefix := baseURL + "/" + tenant
	if baseURL != "" && strings.HasPrefix(location, prefix) {
		rest := strings.TrimPrefix(location, prefix)
		if rest == "" || rest[0] == '/' || rest[0] == '?' {
			return rest
		}
	}

	u, err := url.Parse(location)
	if err != nil || !u.IsAbs() {
		return ensureLeadingSlash(location)
	}

	path := u.EscapedPath()
	if tenantPrefix := "/" + tenant; path == tenantPrefix || strings.HasPrefix(path, tenantPrefix+"/") {
		path = strings.TrimPrefix(path, tenantPrefix)
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return ensureLeadingSlash(path)
}

func ensureLeadingSlash(p string) string {
	if p == "" || strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}
