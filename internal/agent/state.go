package agent

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// StepType classifies a plan step.
type StepType string

const (
	StepTypeRetrieval StepType = "retrieval"
	StepTypeTool      StepType = "tool"
	StepTypeSynthesis StepType = "synthesis"
)

// StepStatus is the outcome of an executed step.
type StepStatus string

const (
	StepStatusSuccess StepStatus = "success"
	StepStatusFailed  StepStatus = "failed"
	StepStatusSkipped StepStatus = "skipped"
)

// PlanStep is a single step in an execution plan.
type PlanStep struct {
	StepID         int            `json:"step_id"`
	Description    string         `json:"description"`
	Type           StepType       `json:"type"`
	ToolName       string         `json:"tool_name,omitempty"`
	ToolParams     map[string]any `json:"tool_params,omitempty"`
	RetrievalQuery string         `json:"retrieval_query,omitempty"`
}

// RetrievalNeed is a single information requirement from the planner.
type RetrievalNeed struct {
	Query   string `json:"query"`
	Purpose string `json:"purpose"`
}

// Plan is the planner's structured output.
type Plan struct {
	Steps          []PlanStep      `json:"steps"`
	RetrievalNeeds []RetrievalNeed `json:"retrieval_needs"`
	ToolsNeeded    []string        `json:"tools_needed"`
}

// EvidenceItem is one retrieved piece of supporting text.
type EvidenceItem struct {
	DocID      string         `json:"doc_id"`
	Excerpt    string         `json:"excerpt"`
	Confidence float64        `json:"confidence"`
	Source     string         `json:"source"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// StepOutcome records how one plan step went.
type StepOutcome struct {
	StepID int        `json:"step_id"`
	Status StepStatus `json:"status"`
	Result string     `json:"result"`
}

// ToolInvocation records one tool call made by the actor.
type ToolInvocation struct {
	ToolName string         `json:"tool_name"`
	Params   map[string]any `json:"params"`
	Result   string         `json:"result"`
}

// ValidationCheck is a single critic check.
type ValidationCheck struct {
	CheckName string `json:"check_name"`
	Passed    bool   `json:"passed"`
	Details   string `json:"details"`
}

// ValidationResult is the critic's verdict.
type ValidationResult struct {
	Valid           bool              `json:"valid"`
	Checks          []ValidationCheck `json:"checks"`
	TriggerFallback bool              `json:"trigger_fallback"`
	Feedback        string            `json:"feedback"`
}

// writeOnce guards a field that exactly one phase may set.
type writeOnce[T any] struct {
	mu  sync.Mutex
	val T
	set bool
}

func (w *writeOnce[T]) Set(v T) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.set {
		return fmt.Errorf("value already set")
	}
	w.val = v
	w.set = true
	return nil
}

func (w *writeOnce[T]) Get() (T, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.val, w.set
}

// ExecutionState is the single mutable record threaded through one
// request. The orchestrator owns it exclusively for the request's
// lifetime; plan, evidence and validation are write-once, steps and
// tools are append-only, and the answer may be replaced at most once
// by the fallback policy.
type ExecutionState struct {
	requestID string
	userQuery string

	plan       writeOnce[*Plan]
	evidence   writeOnce[[]EvidenceItem]
	validation writeOnce[*ValidationResult]

	mu       sync.Mutex
	answer   string
	answered bool
	replaced bool
	steps    []StepOutcome
	stepIDs  map[int]bool
	tools    []ToolInvocation
	metadata map[string]any
}

func NewExecutionState(userQuery string) *ExecutionState {
	return &ExecutionState{
		requestID: uuid.New().String(),
		userQuery: userQuery,
		stepIDs:   make(map[int]bool),
		metadata:  make(map[string]any),
	}
}

func (s *ExecutionState) RequestID() string { return s.requestID }
func (s *ExecutionState) UserQuery() string { return s.userQuery }

func (s *ExecutionState) SetPlan(p *Plan) error {
	if err := s.plan.Set(p); err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	return nil
}

func (s *ExecutionState) Plan() (*Plan, bool) { return s.plan.Get() }

func (s *ExecutionState) SetEvidence(items []EvidenceItem) error {
	if err := s.evidence.Set(items); err != nil {
		return fmt.Errorf("evidence: %w", err)
	}
	return nil
}

func (s *ExecutionState) Evidence() ([]EvidenceItem, bool) { return s.evidence.Get() }

func (s *ExecutionState) SetValidation(v *ValidationResult) error {
	if err := s.validation.Set(v); err != nil {
		return fmt.Errorf("validation: %w", err)
	}
	return nil
}

func (s *ExecutionState) Validation() (*ValidationResult, bool) { return s.validation.Get() }

// SetAnswer records the actor's answer. It may be called once.
func (s *ExecutionState) SetAnswer(answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.answered {
		return fmt.Errorf("answer already set")
	}
	s.answer = answer
	s.answered = true
	return nil
}

// ReplaceAnswer overwrites the answer exactly once; the fallback policy
// is the only caller. It also covers the fatal path where the actor
// never produced an answer.
func (s *ExecutionState) ReplaceAnswer(answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replaced {
		return fmt.Errorf("answer already replaced once")
	}
	s.answer = answer
	s.answered = true
	s.replaced = true
	return nil
}

func (s *ExecutionState) Answer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answer
}

// AppendStep records a step outcome. Step ids are unique within a
// state; a duplicate id is rejected so first writer wins.
func (s *ExecutionState) AppendStep(o StepOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stepIDs[o.StepID] {
		return fmt.Errorf("step %d already recorded", o.StepID)
	}
	s.stepIDs[o.StepID] = true
	s.steps = append(s.steps, o)
	return nil
}

func (s *ExecutionState) HasStep(stepID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stepIDs[stepID]
}

func (s *ExecutionState) Steps() []StepOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StepOutcome, len(s.steps))
	copy(out, s.steps)
	return out
}

func (s *ExecutionState) AppendTool(t ToolInvocation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools = append(s.tools, t)
}

func (s *ExecutionState) Tools() []ToolInvocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ToolInvocation, len(s.tools))
	copy(out, s.tools)
	return out
}

func (s *ExecutionState) SetMeta(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[key] = value
}

func (s *ExecutionState) Meta(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.metadata[key]
	return v, ok
}

// Snapshot is the serializable view of a finished request.
type Snapshot struct {
	RequestID     string            `json:"request_id"`
	UserQuery     string            `json:"user_query"`
	Answer        string            `json:"answer"`
	Plan          *Plan             `json:"plan,omitempty"`
	Evidence      []EvidenceItem    `json:"evidence,omitempty"`
	StepsExecuted []StepOutcome     `json:"steps_executed"`
	ToolsUsed     []ToolInvocation  `json:"tools_used"`
	Validation    *ValidationResult `json:"validation_result,omitempty"`
	Metadata      map[string]any    `json:"metadata"`
}

func (s *ExecutionState) Snapshot() Snapshot {
	plan, _ := s.Plan()
	evidence, _ := s.Evidence()
	validation, _ := s.Validation()

	s.mu.Lock()
	meta := make(map[string]any, len(s.metadata))
	for k, v := range s.metadata {
		meta[k] = v
	}
	s.mu.Unlock()

	return Snapshot{
		RequestID:     s.requestID,
		UserQuery:     s.userQuery,
		Answer:        s.Answer(),
		Plan:          plan,
		Evidence:      evidence,
		StepsExecuted: s.Steps(),
		ToolsUsed:     s.Tools(),
		Validation:    validation,
		Metadata:      meta,
	}
}
