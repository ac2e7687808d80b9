package advisory

import "context"

// --- MockCompleter ---

type MockCompleter struct {
	CompleteFunc func(ctx context.Context, system, prompt string, maxTokens int) (string, error)
	Prompts      []string
}

func (m *MockCompleter) Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, system, prompt, maxTokens)
	}
	return "", nil
}

func reply(text string) *MockCompleter {
	return &MockCompleter{CompleteFunc: func(context.Context, string, string, int) (string, error) {
		return text, nil
	}}
}
