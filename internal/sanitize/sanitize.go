// Package sanitize strips unsafe bytes from prompts, agent outputs, and
// context messages and enforces the per-message and aggregate character
// budgets described in spec §4.5. It is the one place in the orchestrator
// that touches raw agent text before it is trusted anywhere else.
package sanitize

import (
	"fmt"
	"strings"
)

// Budgets mirror the constants aagora's base.py agents use for context
// truncation (MAX_CONTEXT_CHARS / MAX_MESSAGE_CHARS), generalized here to
// the Sanitizer rather than living inline in each backend adapter.
const (
	MaxMessageChars = 20_000
	MaxContextChars = 120_000
)

// stripControl removes NUL and any control character other than tab, LF,
// and CR. It is idempotent: running it twice yields the same string.
func stripControl(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == 0:
			continue
		case r == '\t' || r == '\n' || r == '\r':
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Prompt sanitizes text bound for an agent backend as a prompt.
func Prompt(v any) string {
	return stripControl(toString(v))
}

// AgentOutput sanitizes text returned by an agent backend. Unlike Prompt,
// it also trims outer whitespace and substitutes an explicit placeholder
// when the result is empty, so downstream code never has to special-case
// an empty/whitespace-only response (spec §4.4 step 5).
func AgentOutput(v any) string {
	out := strings.TrimSpace(stripControl(toString(v)))
	if out == "" {
		return "[no response]"
	}
	return out
}

// CLIArg sanitizes a string bound for a CLI subprocess argument vector.
// It strips the same control-character class as Prompt; argument
// separation is the caller's responsibility via exec.Command's argv,
// never shell concatenation, so no shell-metacharacter escaping is done
// here (there is no shell to escape for).
func CLIArg(v any) string {
	return stripControl(toString(v))
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// TruncateMessage enforces the per-message character budget, inserting an
// explicit "[... N chars truncated ...]" marker and retaining the head and
// tail of the original text (spec §4.4 step 1).
func TruncateMessage(content string) string {
	if len(content) <= MaxMessageChars {
		return content
	}
	half := MaxMessageChars/2 - 50
	if half < 0 {
		half = 0
	}
	truncated := len(content) - 2*half
	return content[:half] +
		fmt.Sprintf("\n\n[... %d chars truncated ...]\n\n", truncated) +
		content[len(content)-half:]
}

// ContextMessage is the minimal shape TruncateContext needs from a
// conversation message; agentcore.Message satisfies it.
type ContextMessage interface {
	GetContent() string
}

// TruncateContext caps the aggregate character budget across a slice of
// messages, retaining the most recent messages and truncating (with a
// visible marker) the earliest one it can still partially fit, per spec
// §4.4 step 1 / §8 boundary behaviour ("oldest messages elided with a
// visible marker; most recent round retained").
func TruncateContext(messages []string) []string {
	if len(messages) == 0 {
		return messages
	}

	// Walk from the most recent message backwards, keeping as many as fit.
	kept := make([]string, 0, len(messages))
	total := 0
	startIdx := len(messages)
	for i := len(messages) - 1; i >= 0; i-- {
		msg := TruncateMessage(messages[i])
		if total+len(msg) > MaxContextChars {
			remaining := MaxContextChars - total - 100
			if remaining > 500 {
				kept = append(kept, msg[:remaining]+"\n[... truncated ...]")
				startIdx = i
			}
			break
		}
		kept = append(kept, msg)
		total += len(msg) + 4
		startIdx = i
	}
	_ = startIdx

	// kept was built in reverse (newest first); restore chronological order.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}
