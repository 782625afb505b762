package agent

import (
	"context"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// fakeModel returns canned responses in order, or a fixed error.
type fakeModel struct {
	mu        sync.Mutex
	responses []string
	idx       int
	err       error
	calls     int
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "{}"}}}, nil
	}
	resp := f.responses[f.idx]
	if f.idx < len(f.responses)-1 {
		f.idx++
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: resp}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := f.GenerateContent(ctx, []llms.MessageContent{
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextPart(prompt)}},
	}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

// fakePort records whether it was called and serves canned docs.
type fakePort struct {
	docs    []RetrievedDoc
	err     error
	called  bool
	queries []string
}

func (f *fakePort) Search(ctx context.Context, queries []string, k int) ([]RetrievedDoc, error) {
	f.called = true
	f.queries = queries
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}
