package advisory

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider names accepted by NewCompleter.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Settings selects and configures a backend.
type Settings struct {
	Provider string
	URL      string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// NewCompleter builds the backend named by s.Provider. It returns nil and no
// error when no API key is set, which disables advice entirely.
func NewCompleter(ctx context.Context, s Settings) (Completer, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, nil
	}
	switch strings.ToLower(s.Provider) {
	case "", ProviderOpenAI:
		cfg := DefaultOpenAIConfig(s.APIKey)
		if s.URL != "" {
			cfg.URL = s.URL
		}
		if s.Model != "" {
			cfg.Model = s.Model
		}
		if s.Timeout > 0 {
			cfg.Timeout = s.Timeout
		}
		return NewOpenAIClient(cfg), nil
	case ProviderGemini:
		g, err := NewGeminiClient(ctx, GeminiConfig{APIKey: s.APIKey, Model: s.Model, Temperature: 0.9})
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", s.Provider)
	}
}
