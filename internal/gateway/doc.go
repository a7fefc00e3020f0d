// Package gateway issues authenticated calls against the API gateway.
//
// An Executor performs a single call and returns an Envelope; failures below
// HTTP are folded into the envelope rather than returned as errors. A
// Coordinator wraps an Executor with bounded retries for transport failures
// and rate limiting, and one credential rotation on 401. A Poller follows an
// asynchronous operation until it reaches a terminal status.
package gateway
