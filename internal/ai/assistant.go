package ai

import (
	"context"
	"fmt"
	"strings"
)

// Provider names an external model backend.
type Provider string

const (
	ProviderNone   Provider = "none"
	ProviderGemini Provider = "gemini"
	ProviderJina   Provider = "jina"
)

// ParseProvider normalizes a configured provider name. Empty means none.
func ParseProvider(raw string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(raw))); p {
	case "", ProviderNone:
		return ProviderNone, nil
	case ProviderGemini, ProviderJina:
		return p, nil
	default:
		return "", fmt.Errorf("unknown ai provider %q", raw)
	}
}

// TextGenerator answers a message under a system instruction.
type TextGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
