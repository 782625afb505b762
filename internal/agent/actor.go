package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rahul/saarthi/internal/governance"
	"github.com/rahul/saarthi/internal/observability"
	"github.com/rahul/saarthi/internal/tools"
	"github.com/tmc/langchaingo/llms"
	"golang.org/x/sync/errgroup"
)

const toolConcurrency = 4

const apologyAnswer = "I encountered an error while processing your request."

// actorOutput is the schema the synthesis call must produce.
type actorOutput struct {
	Answer        string           `json:"answer"`
	StepsExecuted []StepOutcome    `json:"steps_executed"`
	ToolsUsed     []ToolInvocation `json:"tools_used"`
	EvidenceUsed  []string         `json:"evidence_used"`
}

// Actor executes the plan's tool steps, then produces the final answer
// from plan, evidence and tool results. Tool failures are isolated per
// step; a synthesis failure degrades to an apology answer. Execute
// never returns an error.
type Actor struct {
	Model    llms.Model
	Registry *tools.Registry
	Policy   governance.PolicyEngine
	Prompts  *PromptManager
	Logger   *observability.Logger
}

func NewActor(model llms.Model, registry *tools.Registry, policy governance.PolicyEngine, prompts *PromptManager, logger *observability.Logger) *Actor {
	return &Actor{Model: model, Registry: registry, Policy: policy, Prompts: prompts, Logger: logger}
}

func (a *Actor) Execute(ctx context.Context, plan *Plan, evidence []EvidenceItem, userQuery, requestID string) (string, []StepOutcome, []ToolInvocation) {
	stepsExecuted, toolsUsed := a.runToolSteps(ctx, plan, requestID)

	recorded := make(map[int]bool, len(stepsExecuted))
	for _, s := range stepsExecuted {
		recorded[s.StepID] = true
	}

	system := a.Prompts.Get("actor")
	user := fmt.Sprintf("Execute the following plan using the provided evidence.\n\n%s\n%s\n%s\nUser Query: %s",
		formatPlan(plan), formatEvidence(evidence), formatToolResults(toolsUsed), userQuery)

	out, err := generateJSON[actorOutput](ctx, a.Model, "actor", system, user)
	if err != nil {
		a.Logger.LogError(requestID, "acting", err)
		return apologyAnswer, stepsExecuted, toolsUsed
	}
	a.Logger.LogLLM(requestID, "actor", user, out.Answer)

	// Merge model-reported steps, first writer wins per step id. Tool
	// outcomes recorded above are never overwritten.
	for _, s := range out.StepsExecuted {
		if recorded[s.StepID] {
			continue
		}
		recorded[s.StepID] = true
		stepsExecuted = append(stepsExecuted, s)
	}
	toolsUsed = append(toolsUsed, out.ToolsUsed...)

	// Reconciliation: every plan step must appear exactly once in the
	// outcome list. Steps the model absorbed into the answer are marked
	// implicitly executed; the count is logged so masked steps stay
	// visible to operators.
	implicit := 0
	for _, step := range plan.Steps {
		if recorded[step.StepID] {
			continue
		}
		recorded[step.StepID] = true
		implicit++
		stepsExecuted = append(stepsExecuted, StepOutcome{
			StepID: step.StepID,
			Status: StepStatusSuccess,
			Result: "Implicitly executed during answer generation",
		})
	}

	answer := out.Answer
	if answer == "" {
		answer = "I couldn't generate a proper answer."
	}

	a.Logger.LogPhase(requestID, "acting", map[string]any{
		"answer_length":  len(answer),
		"steps_count":    len(stepsExecuted),
		"tools_count":    len(toolsUsed),
		"implicit_steps": implicit,
	})
	return answer, stepsExecuted, toolsUsed
}

type toolStepResult struct {
	outcome StepOutcome
	record  *ToolInvocation
}

// runToolSteps executes every tool-type step. Steps run concurrently
// under a cap; results are gathered then merged back in plan order so
// the outcome list is deterministic.
func (a *Actor) runToolSteps(ctx context.Context, plan *Plan, requestID string) ([]StepOutcome, []ToolInvocation) {
	var mu sync.Mutex
	results := make(map[int]toolStepResult)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(toolConcurrency)

	for _, step := range plan.Steps {
		if step.Type != StepTypeTool {
			continue
		}
		step := step
		g.Go(func() error {
			// Panic in a capability is a step failure, not a crash.
			defer func() {
				if rec := recover(); rec != nil {
					mu.Lock()
					results[step.StepID] = toolStepResult{outcome: StepOutcome{
						StepID: step.StepID,
						Status: StepStatusFailed,
						Result: fmt.Sprintf("Tool execution panicked: %v", rec),
					}}
					mu.Unlock()
				}
			}()

			res := a.runToolStep(gctx, step, requestID)
			mu.Lock()
			results[step.StepID] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var stepsExecuted []StepOutcome
	var toolsUsed []ToolInvocation
	for _, step := range plan.Steps {
		res, ok := results[step.StepID]
		if !ok {
			continue
		}
		stepsExecuted = append(stepsExecuted, res.outcome)
		if res.record != nil {
			toolsUsed = append(toolsUsed, *res.record)
		}
	}
	return stepsExecuted, toolsUsed
}

func (a *Actor) runToolStep(ctx context.Context, step PlanStep, requestID string) (res toolStepResult) {
	params := step.ToolParams
	if params == nil {
		params = map[string]any{}
	}

	if a.Policy != nil {
		verdict, err := a.Policy.Evaluate(ctx, governance.Request{
			Tool:      step.ToolName,
			Params:    params,
			RequestID: requestID,
		})
		if err == nil && verdict.Effect == governance.EffectDeny {
			res.outcome = StepOutcome{
				StepID: step.StepID,
				Status: StepStatusFailed,
				Result: fmt.Sprintf("Tool call denied: %s", verdict.Reason),
			}
			return res
		}
	}

	a.Logger.LogToolCall(requestID, step.ToolName, params)
	result, err := a.Registry.Invoke(ctx, step.ToolName, params)
	if err != nil {
		a.Logger.LogError(requestID, "acting", err)
		res.outcome = StepOutcome{
			StepID: step.StepID,
			Status: StepStatusFailed,
			Result: fmt.Sprintf("Tool execution failed: %v", err),
		}
		return res
	}

	res.outcome = StepOutcome{
		StepID: step.StepID,
		Status: StepStatusSuccess,
		Result: fmt.Sprintf("Tool %s executed: %s", step.ToolName, result),
	}
	res.record = &ToolInvocation{
		ToolName: step.ToolName,
		Params:   params,
		Result:   result,
	}
	return res
}

func formatPlan(plan *Plan) string {
	var sb strings.Builder
	sb.WriteString("Execution Plan:\n")
	for _, step := range plan.Steps {
		fmt.Fprintf(&sb, "  Step %d: %s (%s)\n", step.StepID, step.Description, step.Type)
	}
	return sb.String()
}

func formatEvidence(evidence []EvidenceItem) string {
	if len(evidence) == 0 {
		return "Evidence: none available.\n"
	}
	var sb strings.Builder
	sb.WriteString("Evidence:\n")
	for i, item := range evidence {
		fmt.Fprintf(&sb, "  %d. [doc_id: %s, confidence: %.2f]\n     %s\n", i+1, item.DocID, item.Confidence, item.Excerpt)
	}
	return sb.String()
}

func formatToolResults(toolsUsed []ToolInvocation) string {
	if len(toolsUsed) == 0 {
		return "Tool Results: none.\n"
	}
	var sb strings.Builder
	sb.WriteString("Tool Results:\n")
	for _, t := range toolsUsed {
		fmt.Fprintf(&sb, "  %s -> %s\n", t.ToolName, t.Result)
	}
	return sb.String()
}
