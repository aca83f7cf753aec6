package errors

import (
	"testing"

	"github.com/aragora-project/aragora-go/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestClassifyRateLimit(t *testing.T) {
	kind, action := Classify("429 Too Many Requests: rate limit exceeded", Context{Op: "generate"})
	assert.Equal(t, types.ErrRateLimit, kind)
	assert.Equal(t, types.ActionRetryWithBackoff, action)
}

func TestClassifyTimeout(t *testing.T) {
	kind, _ := Classify("context deadline exceeded", Context{})
	assert.Equal(t, types.ErrTimeout, kind)
}

func TestClassifyConnection(t *testing.T) {
	kind, action := Classify("dial tcp: connection refused", Context{})
	assert.Equal(t, types.ErrConnection, kind)
	assert.Equal(t, types.ActionRetryWithBackoff, action)
}

func TestClassifyAuth(t *testing.T) {
	kind, action := Classify("401 Unauthorized: invalid api key", Context{})
	assert.Equal(t, types.ErrAuth, kind)
	assert.Equal(t, types.ActionFailFast, action)
}

func TestClassifyPayload(t *testing.T) {
	kind, _ := Classify("maximum context length exceeded", Context{})
	assert.Equal(t, types.ErrPayload, kind)
}

func TestClassifyParse(t *testing.T) {
	kind, _ := Classify("failed to unmarshal response body", Context{})
	assert.Equal(t, types.ErrParse, kind)
}

func TestClassifyUnknownOnEmpty(t *testing.T) {
	kind, action := Classify("", Context{})
	assert.Equal(t, types.ErrUnknown, kind)
	assert.Equal(t, types.ActionFailFast, action)
}

func TestClassifyUnknownFallback(t *testing.T) {
	kind, _ := Classify("something bizarre happened", Context{})
	assert.Equal(t, types.ErrUnknown, kind)
}

func TestCountsTowardBreaker(t *testing.T) {
	assert.True(t, CountsTowardBreaker(types.ErrConnection))
	assert.True(t, CountsTowardBreaker(types.ErrRateLimit))
	assert.True(t, CountsTowardBreaker(types.ErrTimeout))
	assert.False(t, CountsTowardBreaker(types.ErrAuth))
	assert.False(t, CountsTowardBreaker(types.ErrParse))
	assert.False(t, CountsTowardBreaker(types.ErrPayload))
}

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, 403, HTTPStatus(types.ErrAuth))
	assert.Equal(t, 400, HTTPStatus(types.ErrPayload))
	assert.Equal(t, 429, HTTPStatus(types.ErrRateLimit))
	assert.Equal(t, 503, HTTPStatus(types.ErrCircuitOpen))
	assert.Equal(t, 500, HTTPStatus(types.ErrFatal))
}

func TestSanitizeScrubsSecrets(t *testing.T) {
	out := Sanitize("request failed: api_key=sk-abc123 bearer xyz999 token=foo /home/alice/.config/secret")
	assert.NotContains(t, out, "sk-abc123")
	assert.NotContains(t, out, "xyz999")
	assert.NotContains(t, out, "/home/alice")
}

func TestClassifyCircuitOpenFixed(t *testing.T) {
	kind, action := ClassifyCircuitOpen()
	assert.Equal(t, types.ErrCircuitOpen, kind)
	assert.Equal(t, types.ActionFailFast, action)
}
