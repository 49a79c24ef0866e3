package gemini

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type stubGenerator struct {
	response    string
	err         error
	lastSystem  string
	lastMessage string
}

func (s *stubGenerator) GenerateContent(_ context.Context, system, message string) (string, error) {
	s.lastSystem = system
	s.lastMessage = message
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) Model() string {
	return "stub-model"
}

func TestSynonymGeneratorLookup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
		max      int
		expect   []string
	}{
		{
			name:     "plain array",
			response: `["Hardworking", "industrious", "diligent"]`,
			expect:   []string{"hardworking", "industrious"},
		},
		{
			name:     "fenced json",
			response: "```json\n[\"industrious\", \"hard working\", \"sedulous\"]\n```",
			expect:   []string{"industrious", "sedulous"},
		},
		{
			name:     "wrapped object",
			response: `{"synonyms": ["assiduous"]}`,
			expect:   []string{"assiduous"},
		},
		{
			name:     "respects max",
			response: `["a-one", "b", "c"]`,
			max:      2,
			expect:   []string{"a-one", "b"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stub := &stubGenerator{response: tt.response}
			gen := NewSynonymGenerator(stub, tt.max, zap.NewNop())

			got, err := gen.Lookup(context.Background(), " Diligent ")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.expect) {
				t.Fatalf("expected %v, got %v", tt.expect, got)
			}
			if stub.lastMessage != "diligent" {
				t.Fatalf("unexpected message: %q", stub.lastMessage)
			}
			if strings.Contains(stub.lastSystem, "{{MAX}}") {
				t.Fatalf("expected max placeholder to be replaced: %q", stub.lastSystem)
			}
		})
	}
}

func TestSynonymGeneratorErrors(t *testing.T) {
	t.Parallel()

	failing := NewSynonymGenerator(&stubGenerator{err: errors.New("quota")}, 0, nil)
	if _, err := failing.Lookup(context.Background(), "calm"); err == nil {
		t.Fatalf("expected generator error")
	}

	garbage := NewSynonymGenerator(&stubGenerator{response: "not json"}, 0, nil)
	if _, err := garbage.Lookup(context.Background(), "calm"); err == nil {
		t.Fatalf("expected parse error")
	}

	if _, err := garbage.Lookup(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty word")
	}
}

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	if got := extractJSON("```json\n[1]\n```"); got != "[1]" {
		t.Fatalf("unexpected extraction: %q", got)
	}
	if got := extractJSON("  [2] "); got != "[2]" {
		t.Fatalf("unexpected extraction: %q", got)
	}
}
