// Package llm wraps the chat-completion providers used for interview feedback and CV
// content, and the helpers that pull JSON out of model replies.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ChatModel is the provider-neutral chat interface.
type ChatModel interface {
	Ask(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

var (
	ErrNoModel = errors.New("no language model configured")
	ErrNoJSON  = errors.New("no JSON object in model reply")
)

// ExtractJSON decodes the object spanning the first '{' and the last '}' of text into v.
func ExtractJSON(text string, v any) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return fmt.Errorf("failed to decode model JSON: %w", err)
	}
	return nil
}

// New picks a provider. An empty or unknown provider prefers Groq, then Gemini. It
// returns nil when no key is configured so callers fall back to canned content.
func New(ctx context.Context, cfg Config) (ChatModel, error) {
	useGemini := cfg.GeminiAPIKey != "" && (cfg.Provider == "gemini" || cfg.GroqAPIKey == "")
	switch {
	case useGemini:
		g, err := NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		return g, nil
	case cfg.GroqAPIKey != "":
		return NewGroq(cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.GroqModel), nil
	}
	return nil, nil
}

type Config struct {
	Provider     string
	GroqAPIKey   string
	GroqBaseURL  string
	GroqModel    string
	GeminiAPIKey string
	GeminiModel  string
}
