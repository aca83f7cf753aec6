// Package scoring cross-checks a critique's self-reported severity
// against an independent LLM judgment (spec §4.8 step 2). It is grounded
// on the teacher's ArgumentScore/Scorer, narrowed from a five-axis
// entertainment-debate rubric down to the single severity axis the
// Arena's CRITIQUE phase actually consumes, and wired in as
// arena.Config.Calibrator.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/aragora-project/aragora-go/internal/types"
)

// severityScore is the JSON shape the calibration prompt asks for.
type severityScore struct {
	Severity    float64 `json:"severity"`
	Explanation string  `json:"explanation"`
}

// Scorer cross-checks a critique's self-reported severity with an
// independent model call. It satisfies arena.SeverityCalibrator
// structurally.
type Scorer struct {
	llm llms.LLM
}

// NewScorer constructs a Scorer backed by an OpenAI chat model.
func NewScorer(apiKey string) (*Scorer, error) {
	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel("gpt-4o-mini"),
	)
	if err != nil {
		return nil, fmt.Errorf("scoring: create scorer llm: %w", err)
	}
	return &Scorer{llm: llm}, nil
}

// Calibrate rates how severe issues are for task on a 0-100 scale and
// averages that with the critic's own selfSeverity. Issues with no
// entries are self-evidently not severe, so the call is skipped. A
// failed call or unparseable response returns selfSeverity unchanged
// along with the error, so a flaky calibrator never overrides a
// perfectly usable critique.
func (s *Scorer) Calibrate(ctx context.Context, task string, issues []string, selfSeverity float64) (float64, error) {
	if len(issues) == 0 {
		return selfSeverity, nil
	}

	prompt := fmt.Sprintf(`Given this task and a critic's list of issues, rate how
severe the issues are overall on a 0-100 scale, where 100 means the
response is unusable and 0 means the issues are cosmetic.

Task: %s

Issues:
- %s

Respond ONLY with a JSON object, starting with a { symbol:
{"severity": <0-100>, "explanation": "<brief reason>"}`, task, strings.Join(issues, "\n- "))

	completion, err := s.llm.Call(ctx, prompt)
	if err != nil {
		return selfSeverity, fmt.Errorf("scoring: calibration call: %w", err)
	}
	completion = strings.Trim(strings.TrimSpace(completion), "`")

	var score severityScore
	if err := json.Unmarshal([]byte(completion), &score); err != nil {
		return selfSeverity, fmt.Errorf("scoring: parse calibration response: %w\nraw response: %s", err, completion)
	}

	calibrated := types.Clamp01(score.Severity / 100)
	return (selfSeverity + calibrated) / 2, nil
}
