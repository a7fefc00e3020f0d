package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLooksLikePII(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value string
		want  bool
	}{
		{"test@example.com", true},
		{"contact: jane.doe+apim@sub.example.co.uk today", true},
		{"555-123-4567", true},
		{"(555) 123-4567", true},
		{"555.123.4567", true},
		{"555 123 4567", true},
		{"+1-555-123-4567", true},
		{"123-45-6789", true},
		{"SSN 987-65-4321 on file", true},
		{"hello world", false},
		{"", false},
		{"***-**-****", false},
		{"[REDACTED]", false},
		{"order 12345", false},
		{"user@localhost", false},
		{"2026-10-17", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, LooksLikePII(tt.value))
		})
	}
}

func TestIsRedacted(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value string
		want  bool
	}{
		{"***-**-****", true},
		{"**", true},
		{"j***@example.com", true},
		{"[REDACTED]", true},
		{"phone: XXXXX4567", true},
		{"*", false},
		{"XXXX", false},
		{"redacted", false},
		{"test@example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRedacted(tt.value))
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	v := Classify("test@example.com")
	assert.True(t, v.PII)
	assert.False(t, v.Redacted)

	v = Classify("***-**-****")
	assert.False(t, v.PII)
	assert.True(t, v.Redacted)
}
