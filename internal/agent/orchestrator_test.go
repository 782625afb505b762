package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/rahul/saarthi/internal/observability"
	"github.com/rahul/saarthi/internal/tools"
)

const (
	plannerToolPlanJSON = `{"steps":[{"step_id":1,"description":"look up order","type":"tool","tool_name":"get_refund_status","tool_params":{"order_id":"ORD-123"}},{"step_id":2,"description":"answer","type":"synthesis"}],"retrieval_needs":[],"tools_needed":["get_refund_status"]}`
	plannerRAGPlanJSON  = `{"steps":[{"step_id":1,"description":"find policy","type":"retrieval","retrieval_query":"refund policy"},{"step_id":2,"description":"answer","type":"synthesis"}],"retrieval_needs":[{"query":"refund policy","purpose":"ground the answer"}],"tools_needed":[]}`
	actorAnswerJSON     = `{"answer":"Your order ORD-123 refund status is: Refund Processed.","steps_executed":[{"step_id":2,"status":"success","result":"synthesized"}],"tools_used":[]}`
	criticValidJSON     = `{"valid":true,"checks":[{"check_name":"answer_addresses_query","passed":true,"details":"ok"}],"trigger_fallback":false,"feedback":""}`
	criticFallbackJSON  = `{"valid":false,"checks":[{"check_name":"answer_addresses_query","passed":false,"details":"bad"}],"trigger_fallback":true,"feedback":"unsafe answer"}`
)

func newTestOrchestrator(model *fakeModel, port RetrievalPort, registry *tools.Registry, withCritic bool) *Orchestrator {
	logger := observability.NewLogger()
	prompts := NewPromptManager("")
	if registry == nil {
		registry = tools.NewRegistry()
	}
	if port == nil {
		port = &fakePort{}
	}
	var critic *Critic
	if withCritic {
		critic = NewCritic(model, prompts, logger)
	}
	return NewOrchestrator(
		NewPlanner(model, prompts, logger, registry.List()),
		NewGrounder(port, 4, logger),
		NewActor(model, registry, nil, prompts, logger),
		critic,
		nil,
		logger,
	)
}

func TestOrchestrator_RefundScenario(t *testing.T) {
	registry := tools.NewRegistry()
	_ = registry.Register(&stubTool{
		name:   "get_refund_status",
		result: `{"success":true,"order_id":"ORD-123","refund_status":"Refund Processed"}`,
	})

	model := &fakeModel{responses: []string{plannerToolPlanJSON, actorAnswerJSON, criticValidJSON}}
	orch := newTestOrchestrator(model, nil, registry, true)

	state := orch.Run(context.Background(), "What's the status of ORD-123?", "")

	if !strings.Contains(state.Answer(), "Refund Processed") {
		t.Errorf("answer should contain the refund status, got %q", state.Answer())
	}

	toolsUsed := state.Tools()
	if len(toolsUsed) != 1 || toolsUsed[0].ToolName != "get_refund_status" {
		t.Errorf("tools_used should record the refund lookup, got %+v", toolsUsed)
	}

	plan, ok := state.Plan()
	if !ok {
		t.Fatal("plan should be set")
	}
	planIDs := map[int]bool{}
	for _, s := range plan.Steps {
		planIDs[s.StepID] = true
	}
	steps := state.Steps()
	if len(steps) != len(plan.Steps) {
		t.Fatalf("steps_executed must cover the plan exactly: %d vs %d", len(steps), len(plan.Steps))
	}
	for _, s := range steps {
		if !planIDs[s.StepID] {
			t.Errorf("step %d not in plan", s.StepID)
		}
	}

	validation, ok := state.Validation()
	if !ok || !validation.Valid {
		t.Errorf("validation should be present and valid, got %+v", validation)
	}
	if phase, _ := state.Meta("phase"); phase != string(PhaseDone) {
		t.Errorf("final phase = %v, want DONE", phase)
	}
}

func TestOrchestrator_PlannerFailureStillAnswers(t *testing.T) {
	model := &fakeModel{responses: []string{
		"not json at all",
		`{"answer":"Happy to help! What would you like to know?","steps_executed":[{"step_id":1,"status":"success","result":"answered"}],"tools_used":[]}`,
	}}
	orch := newTestOrchestrator(model, nil, nil, false)

	state := orch.Run(context.Background(), "hello there", "")

	plan, ok := state.Plan()
	if !ok {
		t.Fatal("plan should be set")
	}
	if len(plan.Steps) != 1 || plan.Steps[0].Type != StepTypeSynthesis || plan.Steps[0].StepID != 1 {
		t.Errorf("planner failure should produce the fallback plan, got %+v", plan)
	}
	if state.Answer() == "" {
		t.Error("pipeline must still produce an answer")
	}
}

func TestOrchestrator_GroundingSkippedWithoutNeeds(t *testing.T) {
	port := &fakePort{}
	model := &fakeModel{responses: []string{plannerToolPlanJSON, actorAnswerJSON}}
	registry := tools.NewRegistry()
	_ = registry.Register(&stubTool{name: "get_refund_status", result: "ok"})
	orch := newTestOrchestrator(model, port, registry, false)

	state := orch.Run(context.Background(), "status of ORD-123?", "")

	if port.called {
		t.Error("retrieval port must not be called when the plan has no retrieval needs")
	}
	if _, ok := state.Evidence(); ok {
		t.Error("evidence should be absent when grounding is skipped")
	}
}

func TestOrchestrator_GroundingPopulatesEvidence(t *testing.T) {
	port := &fakePort{docs: []RetrievedDoc{
		{DocID: "kb-0", Excerpt: "Refunds take 5 business days.", Score: 0.8, Source: "kb.md"},
	}}
	model := &fakeModel{responses: []string{
		plannerRAGPlanJSON,
		`{"answer":"Refunds take 5 business days.","steps_executed":[],"tools_used":[],"evidence_used":["kb-0"]}`,
	}}
	orch := newTestOrchestrator(model, port, nil, false)

	state := orch.Run(context.Background(), "how long do refunds take?", "")

	evidence, ok := state.Evidence()
	if !ok || len(evidence) != 1 || evidence[0].DocID != "kb-0" {
		t.Errorf("evidence should be populated from the port, got %+v", evidence)
	}
}

func TestOrchestrator_CriticDisabledLeavesAnswer(t *testing.T) {
	model := &fakeModel{responses: []string{plannerRAGPlanJSON, `{"answer":"actor answer","steps_executed":[],"tools_used":[]}`}}
	orch := newTestOrchestrator(model, nil, nil, false)

	state := orch.Run(context.Background(), "how long do refunds take?", "")

	if _, ok := state.Validation(); ok {
		t.Error("validation_result must be absent when the critic is disabled")
	}
	if state.Answer() != "actor answer" {
		t.Errorf("answer must be the actor's, got %q", state.Answer())
	}
}

func TestOrchestrator_CriticFallbackReplacesAnswerOnly(t *testing.T) {
	port := &fakePort{docs: []RetrievedDoc{{DocID: "kb-0", Excerpt: "x", Score: 0.5, Source: "kb.md"}}}
	model := &fakeModel{responses: []string{
		plannerRAGPlanJSON,
		`{"answer":"a fabricated answer","steps_executed":[{"step_id":1,"status":"success","result":"retrieved"},{"step_id":2,"status":"success","result":"synthesized"}],"tools_used":[]}`,
		criticFallbackJSON,
	}}
	orch := newTestOrchestrator(model, port, nil, true)

	state := orch.Run(context.Background(), "how long do refunds take?", "")

	if state.Answer() != FallbackAnswer {
		t.Errorf("answer should be replaced with the fallback text, got %q", state.Answer())
	}
	if _, ok := state.Plan(); !ok {
		t.Error("plan must survive the fallback")
	}
	if evidence, ok := state.Evidence(); !ok || len(evidence) != 1 {
		t.Error("evidence must survive the fallback")
	}
	if len(state.Steps()) != 2 {
		t.Errorf("steps_executed must survive the fallback, got %+v", state.Steps())
	}
	validation, _ := state.Validation()
	if validation == nil || !validation.TriggerFallback {
		t.Error("validation result should record the fallback trigger")
	}
}

func TestOrchestrator_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	model := &fakeModel{responses: []string{plannerRAGPlanJSON, actorAnswerJSON}}
	orch := newTestOrchestrator(model, nil, nil, false)

	state := orch.Run(ctx, "how long do refunds take?", "")

	if state.Answer() != FallbackAnswer {
		t.Errorf("cancelled request should get the fallback answer, got %q", state.Answer())
	}
	if _, ok := state.Meta("error"); !ok {
		t.Error("cancellation should be recorded in metadata.error")
	}
	if phase, _ := state.Meta("phase"); phase != string(PhaseDone) {
		t.Errorf("state machine must still terminate at DONE, got %v", phase)
	}
}

func TestOrchestrator_TraceIDPropagated(t *testing.T) {
	model := &fakeModel{responses: []string{plannerRAGPlanJSON, `{"answer":"ok","steps_executed":[],"tools_used":[]}`}}
	orch := newTestOrchestrator(model, nil, nil, false)

	state := orch.Run(context.Background(), "q", "trace-abc")

	if traceID, _ := state.Meta("trace_id"); traceID != "trace-abc" {
		t.Errorf("supplied trace id should be kept, got %v", traceID)
	}
}
