package gateway

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var retryAfterPattern = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

// maxHintSeconds is the largest wait representable as a time.Duration.
const maxHintSeconds = int64(math.MaxInt64 / int64(time.Second))

// ParseRetryHint extracts a "retry after N" wait from a 429 body. JSON bodies
// are searched in their message fields first, then as plain text. Most
// bodies carry no hint, which yields false.
func ParseRetryHint(body string) (time.Duration, bool) {
	body = strings.TrimSpace(body)
	if body == "" {
		return 0, false
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(body), &doc); err == nil {
		for _, msg := range messageFields(doc) {
			if d, ok := matchRetryAfter(msg); ok {
				return d, true
			}
		}
	}
	return matchRetryAfter(body)
}

func messageFields(doc map[string]any) []string {
	var msgs []string
	if s, ok := doc["message"].(string); ok {
		msgs = append(msgs, s)
	}
	switch e := doc["error"].(type) {
	case string:
		msgs = append(msgs, e)
	case map[string]any:
		if s, ok := e["message"].(string); ok {
			msgs = append(msgs, s)
		}
	}
	return msgs
}

func matchRetryAfter(text string) (time.Duration, bool) {
	m := retryAfterPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	return seconds(m[1])
}

// seconds parses a non-negative whole number of seconds. Values that do not
// fit in a time.Duration are rejected.
func seconds(v string) (time.Duration, bool) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 || n > maxHintSeconds {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}

// retryAfterHeader reads an integer Retry-After header in seconds.
func retryAfterHeader(env Envelope) (time.Duration, bool) {
	if env.Header == nil {
		return 0, false
	}
	v := strings.TrimSpace(env.Header.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	return seconds(v)
}
