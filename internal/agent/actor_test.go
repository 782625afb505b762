package agent

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rahul/saarthi/internal/governance"
	"github.com/rahul/saarthi/internal/observability"
	"github.com/rahul/saarthi/internal/tools"
)

type stubTool struct {
	name   string
	result string
	err    error
	calls  int32
}

func (s *stubTool) Name() string                { return s.name }
func (s *stubTool) Description() string         { return "stub" }
func (s *stubTool) Parameters() map[string]any  { return map[string]any{"type": "object"} }
func (s *stubTool) Execute(ctx context.Context, input string) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.result, s.err
}

func newTestActor(model *fakeModel, registry *tools.Registry, policy governance.PolicyEngine) *Actor {
	return NewActor(model, registry, policy, NewPromptManager(""), observability.NewLogger())
}

func toolPlan() *Plan {
	return &Plan{
		Steps: []PlanStep{
			{StepID: 1, Description: "look up order", Type: StepTypeTool, ToolName: "broken", ToolParams: map[string]any{}},
			{StepID: 2, Description: "look up refund", Type: StepTypeTool, ToolName: "refund", ToolParams: map[string]any{"order_id": "ORD-123"}},
			{StepID: 3, Description: "answer", Type: StepTypeSynthesis},
		},
		ToolsNeeded: []string{"broken", "refund"},
	}
}

func TestActor_ToolFailureIsIsolated(t *testing.T) {
	registry := tools.NewRegistry()
	broken := &stubTool{name: "broken", err: errors.New("boom")}
	refund := &stubTool{name: "refund", result: `{"success":true,"refund_status":"Refund Processed"}`}
	_ = registry.Register(broken)
	_ = registry.Register(refund)

	model := &fakeModel{responses: []string{
		`{"answer":"Your refund for ORD-123 has been processed.","steps_executed":[{"step_id":3,"status":"success","result":"synthesized"}],"tools_used":[]}`,
	}}

	answer, steps, toolsUsed := newTestActor(model, registry, nil).
		Execute(context.Background(), toolPlan(), nil, "status of ORD-123?", "req-1")

	if answer == "" || answer == apologyAnswer {
		t.Fatalf("expected a real answer, got %q", answer)
	}

	byID := map[int]StepOutcome{}
	for _, s := range steps {
		byID[s.StepID] = s
	}
	if byID[1].Status != StepStatusFailed {
		t.Errorf("step 1 should fail, got %+v", byID[1])
	}
	if !strings.Contains(byID[1].Result, "boom") {
		t.Errorf("failed outcome should carry the error, got %q", byID[1].Result)
	}
	if byID[2].Status != StepStatusSuccess {
		t.Errorf("step 2 should still run after step 1 fails, got %+v", byID[2])
	}
	if byID[3].Status != StepStatusSuccess {
		t.Errorf("synthesis step should be recorded, got %+v", byID[3])
	}
	if atomic.LoadInt32(&refund.calls) != 1 {
		t.Errorf("refund tool should be called once, got %d", refund.calls)
	}
	if len(toolsUsed) != 1 || toolsUsed[0].ToolName != "refund" {
		t.Errorf("only successful invocations belong in tools_used, got %+v", toolsUsed)
	}
}

func TestActor_SynthesisFailureReturnsApology(t *testing.T) {
	registry := tools.NewRegistry()
	refund := &stubTool{name: "refund", result: "ok"}
	_ = registry.Register(refund)

	model := &fakeModel{err: errors.New("provider down")}
	plan := &Plan{Steps: []PlanStep{
		{StepID: 1, Type: StepTypeTool, ToolName: "refund", ToolParams: map[string]any{}},
		{StepID: 2, Type: StepTypeSynthesis},
	}}

	answer, steps, toolsUsed := newTestActor(model, registry, nil).
		Execute(context.Background(), plan, nil, "q", "req-2")

	if answer != apologyAnswer {
		t.Errorf("expected apology answer, got %q", answer)
	}
	if len(steps) != 1 || steps[0].StepID != 1 {
		t.Errorf("accumulated tool outcomes should survive, got %+v", steps)
	}
	if len(toolsUsed) != 1 {
		t.Errorf("accumulated tool records should survive, got %+v", toolsUsed)
	}
}

func TestActor_ReconciliationFillsMissingSteps(t *testing.T) {
	model := &fakeModel{responses: []string{`{"answer":"done","steps_executed":[],"tools_used":[]}`}}
	plan := &Plan{Steps: []PlanStep{
		{StepID: 1, Type: StepTypeRetrieval, RetrievalQuery: "refund policy"},
		{StepID: 2, Type: StepTypeSynthesis},
	}}

	_, steps, _ := newTestActor(model, tools.NewRegistry(), nil).
		Execute(context.Background(), plan, nil, "q", "req-3")

	if len(steps) != 2 {
		t.Fatalf("every plan step must appear exactly once, got %d", len(steps))
	}
	for _, s := range steps {
		if s.Status != StepStatusSuccess {
			t.Errorf("reconciled step should be success, got %+v", s)
		}
		if !strings.Contains(s.Result, "mplicitly executed") {
			t.Errorf("reconciled step should be marked implicit, got %q", s.Result)
		}
	}
}

func TestActor_FirstWriterWinsOnMerge(t *testing.T) {
	registry := tools.NewRegistry()
	_ = registry.Register(&stubTool{name: "refund", err: errors.New("db down")})

	// Model claims step 1 succeeded; the recorded tool failure must win.
	model := &fakeModel{responses: []string{
		`{"answer":"done","steps_executed":[{"step_id":1,"status":"success","result":"made up"},{"step_id":2,"status":"success","result":"synth"}],"tools_used":[]}`,
	}}
	plan := &Plan{Steps: []PlanStep{
		{StepID: 1, Type: StepTypeTool, ToolName: "refund", ToolParams: map[string]any{}},
		{StepID: 2, Type: StepTypeSynthesis},
	}}

	_, steps, _ := newTestActor(model, registry, nil).
		Execute(context.Background(), plan, nil, "q", "req-4")

	for _, s := range steps {
		if s.StepID == 1 && s.Status != StepStatusFailed {
			t.Errorf("recorded tool outcome must not be overwritten, got %+v", s)
		}
	}
}

func TestActor_PolicyDenialBecomesFailedStep(t *testing.T) {
	registry := tools.NewRegistry()
	tool := &stubTool{name: "refund", result: "ok"}
	_ = registry.Register(tool)

	policy := governance.NewDefaultPolicyEngine()
	policy.DenyTool("refund")

	model := &fakeModel{responses: []string{`{"answer":"done","steps_executed":[],"tools_used":[]}`}}
	plan := &Plan{Steps: []PlanStep{
		{StepID: 1, Type: StepTypeTool, ToolName: "refund", ToolParams: map[string]any{}},
		{StepID: 2, Type: StepTypeSynthesis},
	}}

	_, steps, toolsUsed := newTestActor(model, registry, policy).
		Execute(context.Background(), plan, nil, "q", "req-5")

	if atomic.LoadInt32(&tool.calls) != 0 {
		t.Error("denied tool must not execute")
	}
	if len(toolsUsed) != 0 {
		t.Errorf("denied call should leave no invocation record, got %+v", toolsUsed)
	}
	var found bool
	for _, s := range steps {
		if s.StepID == 1 {
			found = true
			if s.Status != StepStatusFailed || !strings.Contains(s.Result, "denied") {
				t.Errorf("denial should surface as failed outcome, got %+v", s)
			}
		}
	}
	if !found {
		t.Error("denied step missing from outcomes")
	}
}
