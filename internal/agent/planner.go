package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rahul/saarthi/internal/observability"
	"github.com/tmc/langchaingo/llms"
)

// Planner turns a user query into a structured execution plan. It never
// returns an error: if the model fails or produces an invalid plan, the
// degenerate single-synthesis fallback plan is returned so the pipeline
// always has something to execute.
type Planner struct {
	Model     llms.Model
	Prompts   *PromptManager
	Logger    *observability.Logger
	ToolNames []string
}

func NewPlanner(model llms.Model, prompts *PromptManager, logger *observability.Logger, toolNames []string) *Planner {
	return &Planner{Model: model, Prompts: prompts, Logger: logger, ToolNames: toolNames}
}

func (p *Planner) Plan(ctx context.Context, userQuery, requestID string) *Plan {
	system := p.Prompts.Get("planner")
	if len(p.ToolNames) > 0 {
		system += "\n\nAvailable tools: " + strings.Join(p.ToolNames, ", ")
	}

	plan, err := generateJSON[Plan](ctx, p.Model, "planner", system, userQuery)
	if err != nil {
		p.Logger.LogError(requestID, "planning", err)
		return fallbackPlan()
	}

	if err := validatePlan(&plan); err != nil {
		p.Logger.LogError(requestID, "planning", fmt.Errorf("generated plan invalid: %w", err))
		return fallbackPlan()
	}

	p.Logger.Log(observability.Event{
		Type:      observability.EventTypePlan,
		RequestID: requestID,
		Data: map[string]any{
			"steps_count":  len(plan.Steps),
			"tools_needed": plan.ToolsNeeded,
		},
	})
	return &plan
}

// fallbackPlan is the degenerate plan used when planning fails: a
// single synthesis step, no retrieval, no tools.
func fallbackPlan() *Plan {
	return &Plan{
		Steps: []PlanStep{{
			StepID:      1,
			Description: "Process query",
			Type:        StepTypeSynthesis,
		}},
		RetrievalNeeds: []RetrievalNeed{},
		ToolsNeeded:    []string{},
	}
}

func validatePlan(plan *Plan) error {
	if len(plan.Steps) == 0 {
		return fmt.Errorf("plan has no steps")
	}
	prev := 0
	for _, step := range plan.Steps {
		if step.StepID <= prev {
			return fmt.Errorf("step ids must start at 1 and strictly increase, got %d after %d", step.StepID, prev)
		}
		prev = step.StepID
		switch step.Type {
		case StepTypeRetrieval, StepTypeTool, StepTypeSynthesis:
		default:
			return fmt.Errorf("step %d has unknown type %q", step.StepID, step.Type)
		}
		if step.Type == StepTypeTool && step.ToolName == "" {
			return fmt.Errorf("step %d is a tool step without a tool name", step.StepID)
		}
		if step.Type == StepTypeRetrieval && step.RetrievalQuery == "" {
			return fmt.Errorf("step %d is a retrieval step without a query", step.StepID)
		}
	}
	if plan.Steps[0].StepID != 1 {
		return fmt.Errorf("step ids must start at 1, got %d", plan.Steps[0].StepID)
	}
	return nil
}
