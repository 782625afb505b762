package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Tool defines the interface for all executable capabilities.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any // JSON Schema for the tool's inputs
	Execute(ctx context.Context, input string) (string, error)
}

// DuplicateToolError is returned when registering a name twice.
// Duplicates are rejected rather than overwritten so a tool can never
// be silently shadowed.
type DuplicateToolError struct {
	Tool string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.Tool)
}

// UnknownToolError is returned when resolving a name that was never
// registered.
type UnknownToolError struct {
	Tool string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("tool %q is not registered", e.Tool)
}

// InvalidParamsError is returned when a tool call is missing required
// parameters, before the tool itself ever runs.
type InvalidParamsError struct {
	Tool    string
	Missing []string
}

func (e *InvalidParamsError) Error() string {
	return fmt.Sprintf("tool %q called with missing params %v", e.Tool, e.Missing)
}

// ToolExecutionError wraps any error raised by a tool capability.
type ToolExecutionError struct {
	Tool   string
	Params map[string]any
	Err    error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// Registry manages the set of available tools. It is built once at
// startup and read-mostly afterward; concurrent invokes on different
// tools do not block each other.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		return &DuplicateToolError{Tool: t.Name()}
	}
	r.tools[t.Name()] = t
	return nil
}

func (r *Registry) Resolve(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, &UnknownToolError{Tool: name}
	}
	return t, nil
}

func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke resolves a tool, validates the params against its declared
// schema and executes it. Any error from the capability itself is
// wrapped as a ToolExecutionError, never swallowed.
func (r *Registry) Invoke(ctx context.Context, name string, params map[string]any) (string, error) {
	t, err := r.Resolve(name)
	if err != nil {
		return "", err
	}

	if missing := missingParams(t.Parameters(), params); len(missing) > 0 {
		return "", &InvalidParamsError{Tool: name, Missing: missing}
	}

	input, err := json.Marshal(params)
	if err != nil {
		return "", &InvalidParamsError{Tool: name, Missing: []string{fmt.Sprintf("unencodable params: %v", err)}}
	}

	result, err := t.Execute(ctx, string(input))
	if err != nil {
		return "", &ToolExecutionError{Tool: name, Params: params, Err: err}
	}
	return result, nil
}

func missingParams(schema, params map[string]any) []string {
	required, ok := schema["required"].([]string)
	if !ok {
		if anyList, ok := schema["required"].([]any); ok {
			for _, v := range anyList {
				if s, ok := v.(string); ok {
					required = append(required, s)
				}
			}
		}
	}
	var missing []string
	for _, key := range required {
		if _, ok := params[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}
