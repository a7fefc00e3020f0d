package gateway

import (
	"net/http"
	"strconv"
)

// TransportFailureStatus is the display status of an envelope that carries
// no HTTP response. Real responses always have a code of at least 100.
const TransportFailureStatus = "000"

// Envelope is the outcome of one gateway call. Either Err is set (no HTTP
// response was obtained) or StatusCode, Body and Header describe the
// response.
type Envelope struct {
	StatusCode int
	Body       string
	Header     http.Header
	Err        error
}

// TransportFailed reports whether the call produced no HTTP response.
func (e Envelope) TransportFailed() bool {
	return e.Err != nil
}

// Status renders the status code, or "000" for a transport failure.
func (e Envelope) Status() string {
	if e.TransportFailed() {
		return TransportFailureStatus
	}
	return strconv.Itoa(e.StatusCode)
}

// Success reports a 2xx response.
func (e Envelope) Success() bool {
	return !e.TransportFailed() && e.StatusCode >= 200 && e.StatusCode < 300
}

func transportFailure(err error) Envelope {
	return Envelope{Err: err}
}
