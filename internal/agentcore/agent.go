// Package agentcore defines the uniform Agent contract (spec §4.4) that
// wraps disparate LLM backends in sanitization, circuit breaking, retry
// with backoff, and response parsing. It generalizes internal/agent's
// single OpenAI-bound Agent struct into a polymorphic abstraction over
// backend adapters.
package agentcore

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aragora-project/aragora-go/internal/breaker"
	aerrors "github.com/aragora-project/aragora-go/internal/errors"
	"github.com/aragora-project/aragora-go/internal/retrypolicy"
	"github.com/aragora-project/aragora-go/internal/sanitize"
	"github.com/aragora-project/aragora-go/internal/types"
)

// MaxStreamBytes caps an accumulated streaming response (spec §4.4:
// "accumulated into a final string under a cap of 10 MiB").
const MaxStreamBytes = 10 * 1024 * 1024

// Message is one turn of conversational context passed to Backend.Generate.
type Message struct {
	Role    string
	Content string
}

// GetContent satisfies sanitize.ContextMessage.
func (m Message) GetContent() string { return m.Content }

// Critique is the structured result of an agent critiquing a target.
type Critique struct {
	Issues      []string
	Suggestions []string
	Severity    float64
	Reasoning   string
}

// Vote is the structured result of an agent voting among proposals.
type Vote struct {
	Choice     string
	Confidence float64
	Reasoning  string
}

// Backend is the minimal transport an Agent wraps: a single blocking call
// that returns the full generated text (streaming backends accumulate
// internally and satisfy this same signature).
type Backend interface {
	Generate(ctx context.Context, prompt string, history []Message) (string, error)
}

// Config describes one Agent's identity and tuning knobs.
type Config struct {
	Name      string
	Role      types.AgentRole
	Model     string
	AgentType types.BackendKind
	Timeout   time.Duration
	Retry     retrypolicy.Config
}

// Agent is the polymorphic wrapper described in spec §4.4: every call
// site sanitizes input, checks the breaker, invokes the backend under a
// hard timeout, classifies and retries on failure, and sanitizes output.
type Agent struct {
	cfg     Config
	backend Backend
	br      *breaker.Breaker
}

// New constructs an Agent. br is the shared, process-wide breaker keyed
// by agent name; a nil breaker is replaced with a private one so callers
// that don't care about cross-agent breaker sharing still get safe
// defaults.
func New(cfg Config, backend Backend, br *breaker.Breaker) *Agent {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry == (retrypolicy.Config{}) {
		cfg.Retry = retrypolicy.DefaultConfig()
	}
	if br == nil {
		br = breaker.New(breaker.DefaultConfig())
	}
	return &Agent{cfg: cfg, backend: backend, br: br}
}

func (a *Agent) Name() string                 { return a.cfg.Name }
func (a *Agent) Role() types.AgentRole        { return a.cfg.Role }
func (a *Agent) Model() string                { return a.cfg.Model }
func (a *Agent) AgentType() types.BackendKind { return a.cfg.AgentType }

// Generate runs the full call envelope from spec §4.4 steps 1-5 and
// returns the sanitized backend output.
func (a *Agent) Generate(ctx context.Context, prompt string, history []Message) (string, error) {
	if !a.br.CanProceed(a.cfg.Name) {
		kind, _ := aerrors.ClassifyCircuitOpen()
		return "", fmt.Errorf("%s: agent %q unavailable", kind, a.cfg.Name)
	}

	cleanPrompt := sanitize.Prompt(prompt)
	cleanHistory := sanitizeHistory(history)

	var lastErr error
	for attempt := 0; ; attempt++ {
		out, err := a.invokeOnce(ctx, cleanPrompt, cleanHistory)
		if err == nil {
			a.br.RecordSuccess(a.cfg.Name)
			return sanitize.AgentOutput(out), nil
		}
		lastErr = err

		kind, action := aerrors.Classify(err.Error(), aerrors.Context{
			Op: "generate", Agent: a.cfg.Name, Attempt: attempt,
		})
		if aerrors.CountsTowardBreaker(kind) {
			a.br.RecordFailure(a.cfg.Name)
		}
		if action != types.ActionRetryWithBackoff && action != types.ActionRetry {
			break
		}
		if !a.cfg.Retry.ShouldRetry(attempt + 1) {
			break
		}
		delay := a.cfg.Retry.Delay(attempt, nil)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(delay * float64(time.Second))):
		}
	}
	return "", lastErr
}

func (a *Agent) invokeOnce(ctx context.Context, prompt string, history []Message) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	return a.backend.Generate(callCtx, prompt, history)
}

func sanitizeHistory(history []Message) []Message {
	contents := make([]string, len(history))
	for i, m := range history {
		contents[i] = sanitize.Prompt(m.Content)
	}
	truncated := sanitize.TruncateContext(contents)
	out := make([]Message, len(truncated))
	// TruncateContext may drop leading messages; align by keeping the
	// same roles for the tail that survived.
	offset := len(history) - len(truncated)
	for i, content := range truncated {
		role := "user"
		if offset+i >= 0 && offset+i < len(history) {
			role = history[offset+i].Role
		}
		out[i] = Message{Role: role, Content: sanitize.TruncateMessage(content)}
	}
	return out
}

// Critique asks the agent to critique target in the context of task, then
// parses the free-form response with the line-oriented heuristic from
// spec §4.4 (ported from aagora's CritiqueMixin._parse_critique).
func (a *Agent) Critique(ctx context.Context, target, task string, history []Message) (Critique, error) {
	prompt := fmt.Sprintf(
		"Critique the following response to the task.\n\nTask: %s\n\nResponse:\n%s\n\n"+
			"List concrete issues and suggestions. Include a severity rating 1-10 if you can.",
		task, target,
	)
	raw, err := a.Generate(ctx, prompt, history)
	if err != nil {
		return Critique{}, err
	}
	return ParseCritique(raw), nil
}

// Vote asks the agent to choose among proposals for task, then parses
// the choice/confidence pair (spec §4.4 "vote parsing").
func (a *Agent) Vote(ctx context.Context, proposals map[string]string, task string) (Vote, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\nChoose the best proposal among:\n", task)
	choices := make([]string, 0, len(proposals))
	for name, content := range proposals {
		choices = append(choices, name)
		fmt.Fprintf(&b, "- %s: %s\n", name, content)
	}
	b.WriteString("\nRespond with your chosen name and a confidence from 0 to 1.")

	raw, err := a.Generate(ctx, b.String(), nil)
	if err != nil {
		return Vote{}, err
	}
	vote := ParseVote(raw, choices)
	return vote, nil
}

var (
	issueSectionRe      = regexp.MustCompile(`(?i)issue|problem|concern`)
	suggestionSectionRe = regexp.MustCompile(`(?i)suggest|recommend|improvement`)
	severityLineRe      = regexp.MustCompile(`(?i)severity`)
	severityNumberRe    = regexp.MustCompile(`(\d+(\.\d+)?)`)
)

// ParseCritique implements the heuristic, line-oriented critique parser
// from spec §4.4: recognise section headers by keyword, collect bullet
// lines under the current section, and extract severity from any line
// mentioning the word "severity" with a number (values > 1 are divided
// by 10, treating the source as a 0-10 scale).
func ParseCritique(response string) Critique {
	lines := strings.Split(response, "\n")

	var issues, suggestions []string
	severity := 0.5
	currentSection := "issues"

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if m := severityLineRe.FindString(trimmed); m != "" {
			if numMatch := severityNumberRe.FindString(trimmed); numMatch != "" {
				if v, err := strconv.ParseFloat(numMatch, 64); err == nil {
					if v > 1 {
						v = v / 10
					}
					severity = types.Clamp01(v)
				}
			}
			continue
		}

		switch {
		case issueSectionRe.MatchString(trimmed) && !isBullet(trimmed):
			currentSection = "issues"
			continue
		case suggestionSectionRe.MatchString(trimmed) && !isBullet(trimmed):
			currentSection = "suggestions"
			continue
		}

		if isBullet(trimmed) {
			text := strings.TrimSpace(strings.TrimLeft(trimmed, "-*•"))
			if text == "" {
				continue
			}
			if currentSection == "suggestions" {
				suggestions = append(suggestions, text)
			} else {
				issues = append(issues, text)
			}
		}
	}

	if len(issues) == 0 && len(suggestions) == 0 {
		issues, suggestions = fallbackSentenceSplit(response)
	}

	if len(issues) > 5 {
		issues = issues[:5]
	}
	if len(suggestions) > 5 {
		suggestions = suggestions[:5]
	}

	reasoning := response
	if len(reasoning) > 500 {
		reasoning = reasoning[:500]
	}

	return Critique{
		Issues:      issues,
		Suggestions: suggestions,
		Severity:    severity,
		Reasoning:   reasoning,
	}
}

func isBullet(line string) bool {
	return strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") || strings.HasPrefix(line, "•")
}

// fallbackSentenceSplit bisects response by sentence when no structured
// bullets were found, assigning the first half to issues and the second
// half to suggestions (spec §4.4 / aagora's fallback behaviour).
func fallbackSentenceSplit(response string) (issues, suggestions []string) {
	parts := strings.Split(response, ".")
	var sentences []string
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	mid := (len(sentences) + 1) / 2
	issues = sentences[:mid]
	if mid < len(sentences) {
		suggestions = sentences[mid:]
	}
	return issues, suggestions
}

var confidenceRe = regexp.MustCompile(`(\d*\.?\d+)`)

// ParseVote extracts a choice (validated against candidates) and a
// confidence in [0,1] from a free-form vote response (spec §4.4 "vote
// parsing"). An unrecognised choice degrades to AbstainChoice.
func ParseVote(response string, candidates []string) Vote {
	lower := strings.ToLower(response)
	choice := types.AbstainChoice
	bestIdx := -1
	for _, c := range candidates {
		if idx := strings.Index(lower, strings.ToLower(c)); idx != -1 {
			if bestIdx == -1 || idx < bestIdx {
				bestIdx = idx
				choice = c
			}
		}
	}
	choice = types.ValidateChoice(choice, candidates)

	confidence := 0.5
	if m := confidenceRe.FindString(response); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			if v > 1 {
				v = v / 10
			}
			confidence = types.Clamp01(v)
		}
	}

	return Vote{Choice: choice, Confidence: confidence, Reasoning: strings.TrimSpace(response)}
}
