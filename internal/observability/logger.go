package observability

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypePhase      EventType = "phase"
	EventTypePlan       EventType = "plan"
	EventTypeEvidence   EventType = "evidence"
	EventTypeToolCall   EventType = "tool_call"
	EventTypeToolResult EventType = "tool_result"
	EventTypeValidation EventType = "validation"
	EventTypeFallback   EventType = "fallback"
	EventTypeError      EventType = "error"
	EventTypeSpan       EventType = "span"
	EventTypeLLM        EventType = "llm"
)

// Event represents a structured log entry. Every event carries the
// request id so a single request can be correlated across phases.
type Event struct {
	Type      EventType `json:"type"`
	RequestID string    `json:"request_id,omitempty"`
	Phase     string    `json:"phase,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger emits structured JSON events. The pipeline never depends on a
// log write succeeding; failures are swallowed after a best-effort note.
type Logger struct {
	llmLogPath string
	maxSize    int64
}

func NewLogger() *Logger {
	return &Logger{
		llmLogPath: filepath.Join("logs", "llm.jsonl"),
		maxSize:    10 * 1024 * 1024, // 10MB
	}
}

// Log emits a structured JSON event to stdout.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		fmt.Printf("{\"error\": \"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Println(string(data))

	if evt.Type == EventTypeLLM {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogPhase(requestID, phase string, fields map[string]any) {
	l.Log(Event{
		Type:      EventTypePhase,
		RequestID: requestID,
		Phase:     phase,
		Data:      fields,
	})
}

func (l *Logger) LogToolCall(requestID, tool string, params map[string]any) {
	l.Log(Event{
		Type:      EventTypeToolCall,
		RequestID: requestID,
		Data: map[string]any{
			"tool":   tool,
			"params": params,
		},
	})
}

func (l *Logger) LogError(requestID, phase string, err error) {
	l.Log(Event{
		Type:      EventTypeError,
		RequestID: requestID,
		Phase:     phase,
		Data:      map[string]string{"error": err.Error()},
	})
}

func (l *Logger) LogFallback(requestID, reason string) {
	l.Log(Event{
		Type:      EventTypeFallback,
		RequestID: requestID,
		Data:      map[string]string{"reason": reason},
	})
}

func (l *Logger) LogLLM(requestID, role string, prompt any, response string) {
	l.Log(Event{
		Type:      EventTypeLLM,
		RequestID: requestID,
		Data: map[string]any{
			"role":     role,
			"prompt":   prompt,
			"response": response,
		},
	})
}
