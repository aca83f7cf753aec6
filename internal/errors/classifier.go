// Package errors classifies raw backend failures into a fixed ErrorKind
// taxonomy and maps each kind to the ErrorAction a caller should take
// (spec §4.1, §7). Classification is a pure function: it never touches
// the circuit breaker or performs I/O. The breaker decides, based on the
// returned kind, whether the failure should count toward its own state.
package errors

import (
	"regexp"
	"strings"

	"github.com/aragora-project/aragora-go/internal/types"
)

// Context carries the operation metadata a classifier may want for
// logging, even though it has no effect on the classification itself.
type Context struct {
	Op      string
	Agent   string
	Attempt int
}

var rateLimitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)rate.?limit`),
	regexp.MustCompile(`(?i)too many requests`),
	regexp.MustCompile(`(?i)\b429\b`),
	regexp.MustCompile(`(?i)quota exceeded`),
	regexp.MustCompile(`(?i)throttl`),
}

var timeoutPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)timed?.?out`),
	regexp.MustCompile(`(?i)deadline exceeded`),
	regexp.MustCompile(`(?i)context canceled`),
	regexp.MustCompile(`(?i)\bi/o timeout\b`),
}

var networkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)connection refused`),
	regexp.MustCompile(`(?i)connection reset`),
	regexp.MustCompile(`(?i)no such host`),
	regexp.MustCompile(`(?i)broken pipe`),
	regexp.MustCompile(`(?i)eof\b`),
	regexp.MustCompile(`(?i)network is unreachable`),
	regexp.MustCompile(`(?i)\b50[0234]\b`),
	regexp.MustCompile(`(?i)service unavailable`),
	regexp.MustCompile(`(?i)bad gateway`),
}

var authPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)unauthorized`),
	regexp.MustCompile(`(?i)invalid api key`),
	regexp.MustCompile(`(?i)authentication fail`),
	regexp.MustCompile(`(?i)forbidden`),
	regexp.MustCompile(`(?i)\b401\b`),
	regexp.MustCompile(`(?i)\b403\b`),
	regexp.MustCompile(`(?i)permission denied`),
}

var parsePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)invalid json`),
	regexp.MustCompile(`(?i)unexpected end of`),
	regexp.MustCompile(`(?i)unmarshal`),
	regexp.MustCompile(`(?i)malformed`),
	regexp.MustCompile(`(?i)parse error`),
	regexp.MustCompile(`(?i)decode error`),
}

var payloadPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)payload too large`),
	regexp.MustCompile(`(?i)context length exceeded`),
	regexp.MustCompile(`(?i)maximum context length`),
	regexp.MustCompile(`(?i)\b413\b`),
	regexp.MustCompile(`(?i)request too large`),
}

var streamPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)stream closed`),
	regexp.MustCompile(`(?i)unexpected stream end`),
	regexp.MustCompile(`(?i)chunk(ed)? read error`),
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// Classify maps a raw error's text into an ErrorKind and the ErrorAction a
// caller should take. The breaker itself is never consulted or mutated
// here; if the caller already knows the breaker is open for this entity,
// it should short-circuit to ErrCircuitOpen before calling Classify.
func Classify(raw string, _ Context) (types.ErrorKind, types.ErrorAction) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return types.ErrUnknown, types.ActionFailFast
	}

	switch {
	case matchesAny(text, rateLimitPatterns):
		return types.ErrRateLimit, types.ActionRetryWithBackoff
	case matchesAny(text, timeoutPatterns):
		return types.ErrTimeout, types.ActionRetryWithBackoff
	case matchesAny(text, networkPatterns):
		return types.ErrConnection, types.ActionRetryWithBackoff
	case matchesAny(text, authPatterns):
		return types.ErrAuth, types.ActionFailFast
	case matchesAny(text, payloadPatterns):
		return types.ErrPayload, types.ActionFailFast
	case matchesAny(text, parsePatterns):
		return types.ErrParse, types.ActionFailFast
	case matchesAny(text, streamPatterns):
		return types.ErrStream, types.ActionFailFast
	default:
		return types.ErrUnknown, types.ActionFailFast
	}
}

// ClassifyCircuitOpen is the fixed-result entry point for when a caller
// has already determined the breaker is blocking an entity; it exists so
// every call site uses the same kind/action pair instead of re-deriving
// it (spec §4.1 step 2 / §7: "surface as a skipped agent ... continue").
func ClassifyCircuitOpen() (types.ErrorKind, types.ErrorAction) {
	return types.ErrCircuitOpen, types.ActionFailFast
}

// ClassifyFatal marks an error as unrecoverable for the current phase
// (spec §7: "abort the phase, mark the debate failed").
func ClassifyFatal(_ string) (types.ErrorKind, types.ErrorAction) {
	return types.ErrFatal, types.ActionFailFast
}

// CountsTowardBreaker reports whether a classified kind should be
// recorded as a failure by the circuit breaker. AUTH/PARSE/PAYLOAD are
// caller mistakes or content issues, not transient backend health
// signals, so they are excluded (spec §4.1: "AUTH does not count toward
// the breaker; CONNECTION and RATE_LIMIT do").
func CountsTowardBreaker(kind types.ErrorKind) bool {
	switch kind {
	case types.ErrConnection, types.ErrRateLimit, types.ErrTimeout:
		return true
	default:
		return false
	}
}

// HTTPStatus maps a kind to the fixed status code exposed to clients
// (spec §7 "User-visible behaviour").
func HTTPStatus(kind types.ErrorKind) int {
	switch kind {
	case types.ErrAuth:
		return 403
	case types.ErrPayload, types.ErrParse:
		return 400
	case types.ErrRateLimit:
		return 429
	case types.ErrConnection, types.ErrTimeout, types.ErrCircuitOpen, types.ErrStream:
		return 503
	default:
		return 500
	}
}

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)api[_-]?key\s*[=:]\s*\S+`),
	regexp.MustCompile(`(?i)bearer\s+\S+`),
	regexp.MustCompile(`(?i)token\s*[=:]\s*\S+`),
	regexp.MustCompile(`(?i)/(home|root|users)/[^\s]+`),
}

// Sanitize scrubs secrets and local filesystem paths from error text
// before it is surfaced to clients (spec §7 "Sanitization"). Internal
// logs should keep the raw, unsanitized text.
func Sanitize(raw string) string {
	out := raw
	for _, p := range secretPatterns {
		out = p.ReplaceAllString(out, "[redacted]")
	}
	return out
}
