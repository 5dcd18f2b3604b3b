package ingest

import (
	"regexp"
	"strings"
	"time"

	"github.com/vaultbridge/internal/bridgeerr"
	"github.com/vaultbridge/internal/jsonx"
)

func jsonLiteral(v any) string {
	s, err := jsonx.MarshalToString(v)
	if err != nil {
		return ""
	}
	return s
}

// regainAccessRe matches the provider rate-limit message's reset
// timestamp, e.g. "You will regain access on 2030-01-02 at 03:04 UTC".
var regainAccessRe = regexp.MustCompile(`regain access on (\d{4}-\d{2}-\d{2}) at (\d{2}:\d{2}) UTC`)

// retryAfterRe matches an explicit "retry-after: N" marker in provider
// error text.
var retryAfterRe = regexp.MustCompile(`(?i)retry-after:\s*(\d+)`)

const defaultRateLimitBackoffSeconds = 60

// classifyFailure fills in result's failure fields from err, leaving
// result.Status as one of "rate_limited", "infrastructure_error", or
// "failed" (the catch-all, original error passed through verbatim).
func classifyFailure(result Result, err error) Result {
	msg := err.Error()
	result.Error = msg
	result.ProviderMessage = firstLine(msg)

	if be, ok := bridgeerr.As(err); ok {
		switch be.Kind {
		case bridgeerr.RateLimited:
			result.Status = "rate_limited"
			result.RetryAfterSeconds = be.RetryAfterSeconds
			result.ResetTimeISO = be.ResetTimeISO
			return result
		case bridgeerr.InfrastructureFail:
			result.Status = "infrastructure_error"
			result.CancelSync = true
			return result
		}
	}

	if looksRateLimited(msg) {
		result.Status = "rate_limited"
		result.RetryAfterSeconds, result.ResetTimeISO = parseRateLimit(msg)
		return result
	}

	if looksLikeInfrastructureFailure(msg) {
		result.Status = "infrastructure_error"
		result.CancelSync = true
		return result
	}

	result.Status = "failed"
	return result
}

func looksRateLimited(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "usage limit") ||
		strings.Contains(lower, "quota") ||
		strings.Contains(lower, "regain access")
}

func looksLikeInfrastructureFailure(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "<html") ||
		strings.Contains(lower, "internal server error") ||
		strings.Contains(lower, "resource limit") ||
		strings.Contains(lower, "out of memory")
}

// parseRateLimit extracts a reset time and retry-after seconds from
// provider error text, falling back to a fixed default backoff when
// neither the reset-timestamp nor retry-after markers are present.
func parseRateLimit(msg string) (retryAfterSeconds int, resetTimeISO string) {
	if m := regainAccessRe.FindStringSubmatch(msg); m != nil {
		if t, err := time.Parse("2006-01-02 15:04", m[1]+" "+m[2]); err == nil {
			t = t.UTC()
			resetTimeISO = t.Format(time.RFC3339)
			if d := time.Until(t); d > 0 {
				retryAfterSeconds = int(d.Seconds())
			}
			return retryAfterSeconds, resetTimeISO
		}
	}
	if m := retryAfterRe.FindStringSubmatch(msg); m != nil {
		var n int
		for _, c := range m[1] {
			n = n*10 + int(c-'0')
		}
		return n, ""
	}
	return defaultRateLimitBackoffSeconds, ""
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
