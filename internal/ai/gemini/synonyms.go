package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/hh-traits/internal/ai"
	"github.com/spigell/hh-traits/internal/logger"
	"github.com/spigell/hh-traits/internal/utils"
)

//go:embed synonyms_prompt.md
var promptTemplate string

const (
	defaultMaxSynonyms  = 10
	defaultMaxLogLength = 200
)

// SynonymGenerator asks a language model for synonyms of taxonomy keywords.
type SynonymGenerator struct {
	generator ai.TextGenerator
	max       int
	logger    *zap.Logger
	maxLogLen int
}

// NewSynonymGenerator creates a synonym expander on top of generator.
func NewSynonymGenerator(generator ai.TextGenerator, max int, log *zap.Logger) *SynonymGenerator {
	if max <= 0 {
		max = defaultMaxSynonyms
	}

	return &SynonymGenerator{
		generator: generator,
		max:       max,
		logger:    logger.WithFields(log),
		maxLogLen: defaultMaxLogLength,
	}
}

// Lookup returns up to max single-word synonyms of word.
func (s *SynonymGenerator) Lookup(ctx context.Context, word string) ([]string, error) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return nil, fmt.Errorf("word must not be empty")
	}

	raw, err := s.generator.GenerateContent(ctx, buildPrompt(s.max), word)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("gemini synonyms response",
		zap.String(logger.FieldKeyword, word),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
	)

	words, err := parseSynonyms(raw)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(words))
	for _, w := range words {
		if len(out) == s.max {
			break
		}
		if w == word || !isSingleWord(w) {
			continue
		}
		out = append(out, w)
	}

	return out, nil
}

func buildPrompt(max int) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Return a JSON array with at most {{MAX}} single-word synonyms of the user's word."
	}
	return strings.ReplaceAll(template, "{{MAX}}", strconv.Itoa(max))
}

func parseSynonyms(raw string) ([]string, error) {
	cleaned := extractJSON(raw)

	var words []string
	if err := json.Unmarshal([]byte(cleaned), &words); err != nil {
		var wrapped struct {
			Synonyms []string `json:"synonyms"`
		}
		if werr := json.Unmarshal([]byte(cleaned), &wrapped); werr != nil {
			return nil, fmt.Errorf("parse gemini response: %w", err)
		}
		words = wrapped.Synonyms
	}

	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			out = append(out, w)
		}
	}
	return out, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func isSingleWord(w string) bool {
	for _, r := range w {
		if !unicode.IsLetter(r) && r != '-' {
			return false
		}
	}
	return w != ""
}
