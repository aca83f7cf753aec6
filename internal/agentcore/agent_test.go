package agentcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aragora-project/aragora-go/internal/breaker"
	"github.com/aragora-project/aragora-go/internal/retrypolicy"
	"github.com/aragora-project/aragora-go/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	calls     int
	responses []string
	errs      []error
}

func (s *stubBackend) Generate(_ context.Context, _ string, _ []Message) (string, error) {
	idx := s.calls
	s.calls++
	var err error
	if idx < len(s.errs) {
		err = s.errs[idx]
	}
	var resp string
	if idx < len(s.responses) {
		resp = s.responses[idx]
	}
	return resp, err
}

func testConfig(name string) Config {
	return Config{
		Name:    name,
		Role:    types.RoleProposer,
		Model:   "test-model",
		Timeout: time.Second,
		Retry:   retrypolicy.Config{BaseSeconds: 0.01, CapSeconds: 0.05, JitterFactor: 0, MaxAttempts: 3},
	}
}

func TestGenerateSuccessSanitizesOutput(t *testing.T) {
	backend := &stubBackend{responses: []string{"  hello world  \x00"}}
	agent := New(testConfig("alice"), backend, nil)
	out, err := agent.Generate(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
}

func TestGenerateEmptyOutputPlaceholder(t *testing.T) {
	backend := &stubBackend{responses: []string{"   "}}
	agent := New(testConfig("alice"), backend, nil)
	out, err := agent.Generate(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "[no response]", out)
}

func TestGenerateRetriesOnTransientError(t *testing.T) {
	backend := &stubBackend{
		errs:      []error{errors.New("connection refused"), nil},
		responses: []string{"", "recovered"},
	}
	agent := New(testConfig("alice"), backend, nil)
	out, err := agent.Generate(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, 2, backend.calls)
}

func TestGenerateFailFastOnAuthError(t *testing.T) {
	backend := &stubBackend{errs: []error{errors.New("401 unauthorized invalid api key")}}
	agent := New(testConfig("alice"), backend, nil)
	_, err := agent.Generate(context.Background(), "hi", nil)
	require.Error(t, err)
	assert.Equal(t, 1, backend.calls)
}

func TestGenerateBlockedByOpenBreaker(t *testing.T) {
	br := breaker.New(breaker.DefaultConfig())
	br.RecordFailure("alice")
	br.RecordFailure("alice")
	br.RecordFailure("alice")
	backend := &stubBackend{responses: []string{"should not be called"}}
	agent := New(testConfig("alice"), backend, br)
	_, err := agent.Generate(context.Background(), "hi", nil)
	require.Error(t, err)
	assert.Equal(t, 0, backend.calls)
}

func TestGenerateExhaustsRetriesThenFails(t *testing.T) {
	backend := &stubBackend{errs: []error{
		errors.New("timeout"), errors.New("timeout"), errors.New("timeout"),
	}}
	agent := New(testConfig("alice"), backend, nil)
	_, err := agent.Generate(context.Background(), "hi", nil)
	require.Error(t, err)
	assert.LessOrEqual(t, backend.calls, 3)
}

func TestParseCritiqueWithStructuredBullets(t *testing.T) {
	response := "Issues:\n- The argument lacks evidence\n- Tone is dismissive\n" +
		"Suggestions:\n- Add a citation\n- Soften the tone\nSeverity: 7"
	c := ParseCritique(response)
	require.Len(t, c.Issues, 2)
	require.Len(t, c.Suggestions, 2)
	assert.Equal(t, "The argument lacks evidence", c.Issues[0])
	assert.Equal(t, "Add a citation", c.Suggestions[0])
	assert.InDelta(t, 0.7, c.Severity, 0.001)
}

func TestParseCritiqueSeverityAlreadyNormalized(t *testing.T) {
	c := ParseCritique("Severity: 0.8\n- some issue")
	assert.InDelta(t, 0.8, c.Severity, 0.001)
}

func TestParseCritiqueCapsAtFive(t *testing.T) {
	response := "Issues:\n"
	for i := 0; i < 8; i++ {
		response += "- issue\n"
	}
	c := ParseCritique(response)
	assert.Len(t, c.Issues, 5)
}

func TestParseCritiqueFallbackSentenceSplit(t *testing.T) {
	response := "This is wrong. That is also wrong. Try this instead. Try that too."
	c := ParseCritique(response)
	assert.NotEmpty(t, c.Issues)
	assert.NotEmpty(t, c.Suggestions)
}

func TestParseVoteKnownChoice(t *testing.T) {
	v := ParseVote("I vote for alice with confidence 0.9", []string{"alice", "bob"})
	assert.Equal(t, "alice", v.Choice)
	assert.InDelta(t, 0.9, v.Confidence, 0.001)
}

func TestParseVoteUnknownChoiceAbstains(t *testing.T) {
	v := ParseVote("I vote for nobody in particular", []string{"alice", "bob"})
	assert.Equal(t, types.AbstainChoice, v.Choice)
}
