package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripControlRemovesNulAndControlBytes(t *testing.T) {
	in := "hello\x00world\x01\x1f\x7f done\tok\nfine\r"
	out := Prompt(in)
	assert.NotContains(t, out, "\x00")
	assert.NotContains(t, out, "\x01")
	assert.NotContains(t, out, "\x7f")
	assert.Contains(t, out, "\t")
	assert.Contains(t, out, "\n")
}

func TestPromptIsIdempotent(t *testing.T) {
	in := "clean \x00 text \x02 here"
	once := Prompt(in)
	twice := Prompt(once)
	assert.Equal(t, once, twice)
}

func TestAgentOutputEmptyPlaceholder(t *testing.T) {
	assert.Equal(t, "[no response]", AgentOutput(""))
	assert.Equal(t, "[no response]", AgentOutput("   \n\t  "))
	assert.Equal(t, "[no response]", AgentOutput("\x00\x01"))
}

func TestAgentOutputTrimsWhitespace(t *testing.T) {
	assert.Equal(t, "hello", AgentOutput("  hello  \n"))
}

func TestCLIArgStripsControlOnly(t *testing.T) {
	out := CLIArg("rm -rf \x00/tmp/x")
	assert.Equal(t, "rm -rf /tmp/x", out)
}

func TestTruncateMessageUnderBudgetUnchanged(t *testing.T) {
	short := "a short message"
	assert.Equal(t, short, TruncateMessage(short))
}

func TestTruncateMessageOverBudgetInsertsMarker(t *testing.T) {
	long := strings.Repeat("x", MaxMessageChars+5000)
	out := TruncateMessage(long)
	assert.Less(t, len(out), len(long))
	assert.Contains(t, out, "chars truncated")
	require.True(t, strings.HasPrefix(out, strings.Repeat("x", 10)))
}

func TestTruncateContextEmpty(t *testing.T) {
	assert.Empty(t, TruncateContext(nil))
}

func TestTruncateContextKeepsMostRecent(t *testing.T) {
	messages := []string{
		strings.Repeat("a", MaxContextChars),
		"most recent message",
	}
	out := TruncateContext(messages)
	require.NotEmpty(t, out)
	assert.Equal(t, "most recent message", out[len(out)-1])
}

func TestTruncateContextWithinBudgetKeepsAll(t *testing.T) {
	messages := []string{"one", "two", "three"}
	out := TruncateContext(messages)
	assert.Equal(t, messages, out)
}
