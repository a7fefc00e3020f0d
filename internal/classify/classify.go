// Package classify recognizes personal data shapes and redaction markers in
// response values.
package classify

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// 555-123-4567, (555) 123-4567, 555.123.4567, 555 123 4567, +1-555-123-4567
	phonePattern = regexp.MustCompile(`(?:\+\d{1,3}[-. ]?)?(?:\(\d{3}\)\s?|\d{3}[-. ])\d{3}[-. ]\d{4}\b`)

	// 123-45-6789
	groupedIDPattern = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)

	asteriskRunPattern = regexp.MustCompile(`\*{2,}`)
)

// RedactedMarker is the literal placeholder a masking policy substitutes.
const RedactedMarker = "[REDACTED]"

// LooksLikePII reports whether value contains an email address, a phone
// number or a 3-2-4 digit identifier.
func LooksLikePII(value string) bool {
	return emailPattern.MatchString(value) ||
		phonePattern.MatchString(value) ||
		groupedIDPattern.MatchString(value)
}

// IsRedacted reports whether value carries a masking marker: a run of
// asterisks, the literal [REDACTED], or XXXXX.
func IsRedacted(value string) bool {
	return asteriskRunPattern.MatchString(value) ||
		strings.Contains(value, RedactedMarker) ||
		strings.Contains(value, "XXXXX")
}

// Verdict is the classification of one value.
type Verdict struct {
	Value    string `json:"value"`
	PII      bool   `json:"pii"`
	Redacted bool   `json:"redacted"`
}

// Classify applies both predicates.
func Classify(value string) Verdict {
	return Verdict{
		Value:    value,
		PII:      LooksLikePII(value),
		Redacted: IsRedacted(value),
	}
}
