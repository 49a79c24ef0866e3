package synonym

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/hh-traits/internal/logger"
)

type stubExpander struct {
	words map[string][]string
	errs  map[string]error
	block map[string]bool
}

func (s stubExpander) Lookup(ctx context.Context, word string) ([]string, error) {
	if s.block[word] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := s.errs[word]; err != nil {
		return nil, err
	}
	return s.words[word], nil
}

func TestBuildIndexToleratesFailures(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.WarnLevel)
	exp := stubExpander{
		words: map[string][]string{
			"diligent": {"Hardworking", "industrious", "hardworking", "diligent", " "},
		},
		errs: map[string]error{
			"creative": errors.New("service unavailable"),
		},
		block: map[string]bool{"curious": true},
	}

	index, stats := BuildIndex(context.Background(), exp, []string{"diligent", "creative", "curious", "calm"}, 20*time.Millisecond, zap.New(core))

	if got := index.For("diligent"); !reflect.DeepEqual(got, []string{"hardworking", "industrious"}) {
		t.Fatalf("unexpected diligent synonyms: %v", got)
	}
	for _, kw := range []string{"creative", "curious", "calm"} {
		if _, ok := index[kw]; !ok {
			t.Fatalf("expected %q to be present in the index", kw)
		}
		if got := index.For(kw); len(got) != 0 {
			t.Fatalf("expected no synonyms for %q, got %v", kw, got)
		}
	}

	if stats.Keywords != 4 || stats.Failures != 2 || stats.Empty != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	entries := observed.FilterMessage("synonym lookup failed").All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(entries))
	}
	if entries[0].ContextMap()[logger.FieldKeyword] != "creative" {
		t.Fatalf("expected keyword field, got %v", entries[0].ContextMap())
	}
}

func TestBuildIndexNilExpander(t *testing.T) {
	t.Parallel()

	index, stats := BuildIndex(context.Background(), nil, []string{"diligent"}, 0, nil)
	if len(index.For("diligent")) != 0 || stats.Failures != 0 {
		t.Fatalf("unexpected result: %v %+v", index, stats)
	}
}

func TestChain(t *testing.T) {
	t.Parallel()

	ok := stubExpander{words: map[string][]string{"calm": {"serene"}}}
	broken := stubExpander{errs: map[string]error{"calm": errors.New("boom")}}

	got, err := Chain{broken, ok}.Lookup(context.Background(), "calm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"serene"}) {
		t.Fatalf("unexpected synonyms: %v", got)
	}

	if _, err := (Chain{broken, broken}).Lookup(context.Background(), "calm"); err == nil {
		t.Fatalf("expected error when every expander fails")
	}
}
