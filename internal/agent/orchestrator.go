package agent

import (
	"context"
	"fmt"

	"github.com/rahul/saarthi/internal/observability"
)

// Phase names for the per-request state machine. Transitions are
// strictly forward; GROUNDED is skipped when the plan needs no
// retrieval and VALIDATED is skipped when the critic is disabled.
type Phase string

const (
	PhaseCreated   Phase = "CREATED"
	PhasePlanned   Phase = "PLANNED"
	PhaseGrounded  Phase = "GROUNDED"
	PhaseActed     Phase = "ACTED"
	PhaseValidated Phase = "VALIDATED"
	PhaseDone      Phase = "DONE"
)

// FallbackAnswer is returned whenever the pipeline cannot stand behind
// the generated answer. Diagnostic detail goes to metadata, never here.
const FallbackAnswer = "I apologize, but I encountered an error processing your request. " +
	"Please try rephrasing your question or contact support."

// Orchestrator drives one request through the planner, grounder, actor
// and critic. It owns the ExecutionState for the request's lifetime and
// is the single fatal-error boundary: each role fails open internally,
// so only a panic or a cancelled context lands here.
type Orchestrator struct {
	Planner  *Planner
	Grounder *Grounder
	Actor    *Actor
	Critic   *Critic // nil disables validation
	Router   *Router // nil disables routing
	Logger   *observability.Logger
}

func NewOrchestrator(planner *Planner, grounder *Grounder, actor *Actor, critic *Critic, router *Router, logger *observability.Logger) *Orchestrator {
	return &Orchestrator{
		Planner:  planner,
		Grounder: grounder,
		Actor:    actor,
		Critic:   critic,
		Router:   router,
		Logger:   logger,
	}
}

// Run executes the full pipeline for one query and always returns a
// populated state with a non-empty answer.
func (o *Orchestrator) Run(ctx context.Context, userQuery, traceID string) *ExecutionState {
	state := NewExecutionState(userQuery)
	trace := observability.NewTraceContext(traceID)
	state.SetMeta("trace_id", trace.TraceID)

	defer func() {
		if rec := recover(); rec != nil {
			o.fail(state, fmt.Errorf("panic: %v", rec))
		}
		if state.Answer() == "" {
			_ = state.ReplaceAnswer(FallbackAnswer)
		}
		o.transition(state, PhaseDone)
	}()

	o.transition(state, PhaseCreated)

	if o.Router != nil {
		state.SetMeta("route", o.Router.Route(ctx, userQuery, state.RequestID()))
	}

	// Phase 1: planning
	span := o.Logger.StartSpan("planning", state.RequestID(), trace.TraceID)
	plan := o.Planner.Plan(ctx, userQuery, state.RequestID())
	span.End(nil)
	if err := state.SetPlan(plan); err != nil {
		o.fail(state, err)
		return state
	}
	o.transition(state, PhasePlanned)
	if o.cancelled(ctx, state) {
		return state
	}

	// Phase 2: grounding, skipped when the plan has no retrieval needs
	if len(plan.RetrievalNeeds) > 0 {
		span = o.Logger.StartSpan("grounding", state.RequestID(), trace.TraceID)
		evidence := o.Grounder.Retrieve(ctx, plan.RetrievalNeeds, state.RequestID())
		span.End(nil)
		if err := state.SetEvidence(evidence); err != nil {
			o.fail(state, err)
			return state
		}
		o.transition(state, PhaseGrounded)
		if o.cancelled(ctx, state) {
			return state
		}
	}

	// Phase 3: acting
	evidence, _ := state.Evidence()
	span = o.Logger.StartSpan("acting", state.RequestID(), trace.TraceID)
	answer, steps, toolsUsed := o.Actor.Execute(ctx, plan, evidence, userQuery, state.RequestID())
	span.End(nil)
	if err := state.SetAnswer(answer); err != nil {
		o.fail(state, err)
		return state
	}
	for _, step := range steps {
		if err := state.AppendStep(step); err != nil {
			o.Logger.LogError(state.RequestID(), string(PhaseActed), err)
		}
	}
	for _, t := range toolsUsed {
		state.AppendTool(t)
	}
	o.transition(state, PhaseActed)
	if o.cancelled(ctx, state) {
		return state
	}

	// Phase 4: validation, skipped when the critic is disabled
	if o.Critic != nil {
		span = o.Logger.StartSpan("validating", state.RequestID(), trace.TraceID)
		validation := o.Critic.Validate(ctx, state, state.RequestID())
		span.End(nil)
		if err := state.SetValidation(validation); err != nil {
			o.fail(state, err)
			return state
		}
		if validation.TriggerFallback {
			// Fallback replaces the answer, not the state: plan,
			// evidence, steps and tools stay for diagnostics.
			o.Logger.LogFallback(state.RequestID(), validation.Feedback)
			if err := state.ReplaceAnswer(FallbackAnswer); err != nil {
				o.Logger.LogError(state.RequestID(), string(PhaseValidated), err)
			}
		}
		o.transition(state, PhaseValidated)
	}

	return state
}

func (o *Orchestrator) transition(state *ExecutionState, phase Phase) {
	state.SetMeta("phase", string(phase))
	o.Logger.LogPhase(state.RequestID(), string(phase), nil)
}

// cancelled abandons the remaining phases when the caller is gone.
func (o *Orchestrator) cancelled(ctx context.Context, state *ExecutionState) bool {
	if err := ctx.Err(); err != nil {
		o.fail(state, err)
		return true
	}
	return false
}

func (o *Orchestrator) fail(state *ExecutionState, err error) {
	state.SetMeta("error", err.Error())
	o.Logger.LogError(state.RequestID(), "orchestrator", err)
	if rerr := state.ReplaceAnswer(FallbackAnswer); rerr != nil {
		// Answer was already replaced once; keep it.
		_ = rerr
	}
}
