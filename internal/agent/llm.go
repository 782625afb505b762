package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// GenerationError indicates the model call failed or returned output
// that does not match the requested schema. Callers decide how to fail
// open; garbage is never passed through.
type GenerationError struct {
	Role string
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed for %s: %v", e.Role, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// generateJSON asks the model for JSON-mode output and decodes it into
// T. Markdown fences are stripped first; some providers wrap JSON even
// in JSON mode.
func generateJSON[T any](ctx context.Context, model llms.Model, role, system, user string) (T, error) {
	var out T

	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(system)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(user)},
		},
	}

	resp, err := model.GenerateContent(ctx, messages, llms.WithJSONMode())
	if err != nil {
		return out, &GenerationError{Role: role, Err: err}
	}
	if len(resp.Choices) == 0 {
		return out, &GenerationError{Role: role, Err: fmt.Errorf("model returned no choices")}
	}

	clean := stripFences(resp.Choices[0].Content)
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return out, &GenerationError{
			Role: role,
			Err:  fmt.Errorf("unparsable output: %v (raw: %.200s)", err, clean),
		}
	}
	return out, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
