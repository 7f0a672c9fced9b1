package chaterrors

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ContainsAnyPattern reports whether err's lowercased message contains any
// of patterns. Mirrors the teacher's pkg/aierrors helper of the same name;
// adapters use it to normalize wire-level error strings that don't carry a
// structured status code (e.g. Ollama's plain-text errors).
func ContainsAnyPattern(err error, patterns []string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsRateLimitError reports whether err represents provider throttling.
func IsRateLimitError(err error) bool {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return true
	}
	return ContainsAnyPattern(err, []string{"rate_limit", "rate limit", "429", "too many requests"})
}

// IsAuthError reports whether err represents a rejected credential.
func IsAuthError(err error) bool {
	var ake *APIKeyError
	if errors.As(err, &ake) {
		return true
	}
	return ContainsAnyPattern(err, []string{
		"invalid api key", "invalid_api_key", "incorrect api key",
		"unauthorized", "forbidden", "access denied", "401", "403",
	})
}

// IsTimeoutError reports whether err represents a deadline/watchdog trip.
func IsTimeoutError(err error) bool {
	return ContainsAnyPattern(err, []string{
		"timeout", "timed out", "deadline exceeded", "context deadline exceeded", "408", "504",
	})
}

// IsServerError reports whether err represents a 5xx-class provider failure.
func IsServerError(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Status >= 500
	}
	return ContainsAnyPattern(err, []string{"server_error", "internal server error", "503", "502", "500"})
}

var contextLengthPattern = regexp.MustCompile(`(\d+)\s*tokens?\s*>\s*(\d+)\s*(?:maximum|max)`)

// IsContextLengthError reports whether err represents a provider-side
// context-window overflow, distinct from the core's own ContextOverflow
// (which is raised before ever calling the provider).
func IsContextLengthError(err error) bool {
	if err == nil {
		return false
	}
	var co *ContextOverflow
	if errors.As(err, &co) {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "context length") ||
		strings.Contains(lower, "context_length") ||
		strings.Contains(lower, "prompt is too long") ||
		strings.Contains(lower, "maximum context") ||
		contextLengthPattern.MatchString(lower)
}

// ParseRetryAfterSeconds extracts a "retry after Ns" hint from a raw
// provider error message, returning 0 if none is present.
func ParseRetryAfterSeconds(msg string) int {
	re := regexp.MustCompile(`retry[- ]after[:\s]*(\d+)`)
	if m := re.FindStringSubmatch(strings.ToLower(msg)); len(m) == 2 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 0
}

// FailoverReason classifies why a turn failed, for deciding whether it is
// worth retrying against a fallback connection profile (SPEC_FULL.md §C.2).
type FailoverReason string

const (
	FailoverAuth      FailoverReason = "auth"
	FailoverRateLimit FailoverReason = "rate_limit"
	FailoverTimeout   FailoverReason = "timeout"
	FailoverServer    FailoverReason = "server"
	FailoverContext   FailoverReason = "context_length"
	FailoverUnknown   FailoverReason = "unknown"
)

// ClassifyFailoverReason maps a raw or normalized error to a FailoverReason.
// Grounded on the teacher's ClassifyFailoverReason (pkg/aierrors/errors_extended.go).
func ClassifyFailoverReason(err error) FailoverReason {
	switch {
	case err == nil:
		return FailoverUnknown
	case IsAuthError(err):
		return FailoverAuth
	case IsRateLimitError(err):
		return FailoverRateLimit
	case IsTimeoutError(err):
		return FailoverTimeout
	case IsContextLengthError(err):
		return FailoverContext
	case IsServerError(err):
		return FailoverServer
	default:
		return FailoverUnknown
	}
}
