package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rahul/saarthi/internal/observability"
	"github.com/tmc/langchaingo/llms"
)

// Critic validates the produced answer against the plan and evidence.
// It reads the state and never mutates it. If the validation call
// itself fails, the critic fails open (valid, no fallback) so a critic
// outage never blocks an otherwise good answer.
type Critic struct {
	Model   llms.Model
	Prompts *PromptManager
	Logger  *observability.Logger
}

func NewCritic(model llms.Model, prompts *PromptManager, logger *observability.Logger) *Critic {
	return &Critic{Model: model, Prompts: prompts, Logger: logger}
}

func (c *Critic) Validate(ctx context.Context, state *ExecutionState, requestID string) *ValidationResult {
	system := c.Prompts.Get("critic")

	plan, _ := state.Plan()
	evidence, _ := state.Evidence()
	user := fmt.Sprintf("Validate the following execution:\n\nPlan:\n%s\nEvidence Used:\n%s\nFinal Answer:\n%s\n\nSteps Executed:\n%s",
		describePlan(plan), describeEvidence(evidence), state.Answer(), describeSteps(state.Steps()))

	result, err := generateJSON[ValidationResult](ctx, c.Model, "critic", system, user)
	if err != nil {
		c.Logger.LogError(requestID, "validating", err)
		return &ValidationResult{
			Valid:           true,
			Checks:          []ValidationCheck{},
			TriggerFallback: false,
			Feedback:        "",
		}
	}

	c.Logger.Log(observability.Event{
		Type:      observability.EventTypeValidation,
		RequestID: requestID,
		Data: map[string]any{
			"valid":            result.Valid,
			"trigger_fallback": result.TriggerFallback,
			"checks_count":     len(result.Checks),
		},
	})
	return &result
}

func describePlan(plan *Plan) string {
	if plan == nil {
		return "No plan\n"
	}
	return formatPlan(plan)
}

func describeEvidence(evidence []EvidenceItem) string {
	if len(evidence) == 0 {
		return "No evidence\n"
	}
	return formatEvidence(evidence)
}

func describeSteps(steps []StepOutcome) string {
	if len(steps) == 0 {
		return "No steps"
	}
	data, err := json.Marshal(steps)
	if err != nil {
		return fmt.Sprintf("%v", steps)
	}
	return string(data)
}
