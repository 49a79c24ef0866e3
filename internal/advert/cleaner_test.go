package advert

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/hh-traits/internal/logger"
)

type countingReporter struct {
	mu    sync.Mutex
	ticks int
}

func (r *countingReporter) Phase(string) {}
func (r *countingReporter) SetTotal(int) {}
func (r *countingReporter) Done()        {}
func (r *countingReporter) Tick() {
	r.mu.Lock()
	r.ticks++
	r.mu.Unlock()
}

func TestCleanerClean(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		text   string
		expect []Token
	}{
		{
			name:   "plain text is lowercased and stopwords dropped",
			text:   "We need a Diligent and creative engineer",
			expect: []Token{"need", "diligent", "creative", "engineer"},
		},
		{
			name:   "html blocks do not glue words",
			text:   "<p>Diligent</p><p>Creative</p><ul><li>Go</li><li>SQL</li></ul>",
			expect: []Token{"diligent", "creative", "go", "sql"},
		},
		{
			name:   "entities are decoded and scripts removed",
			text:   "<div>R&amp;D team</div><script>var x = 1;</script>",
			expect: []Token{"team"},
		},
		{
			name:   "hyphens are normalized and numbers dropped",
			text:   "--self--motivated team-player 2024 utf-8",
			expect: []Token{"self-motivated", "team-player", "utf-8"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cleaner := NewCleaner(CleanerConfig{}, nil, nil)
			got := cleaner.Clean(Advertisement{ID: "ad-1", Text: tt.text})

			if !reflect.DeepEqual(got.Tokens, tt.expect) {
				t.Fatalf("expected tokens %v, got %v", tt.expect, got.Tokens)
			}
			if errs := cleaner.RecoverErrors(); len(errs) != 0 {
				t.Fatalf("expected no cleaning errors, got %v", errs)
			}
		})
	}
}

func TestCleanerDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	in := Advertisement{ID: "ad-1", Text: "Diligent worker"}
	cleaner := NewCleaner(CleanerConfig{}, nil, nil)

	out := cleaner.Clean(in)

	if in.Tokens != nil {
		t.Fatalf("input advertisement was mutated: %v", in.Tokens)
	}
	if out.ID != in.ID || out.Text != in.Text {
		t.Fatalf("expected id and text to be carried over, got %+v", out)
	}
}

func TestCleanerRecordsFailures(t *testing.T) {
	t.Parallel()

	cleaner := NewCleaner(CleanerConfig{Stopwords: []string{"Job"}}, nil, nil)

	empty := cleaner.Clean(Advertisement{ID: "empty", Text: "   "})
	stopOnly := cleaner.Clean(Advertisement{ID: "stop", Text: "the job"})

	for _, ad := range []Advertisement{empty, stopOnly} {
		if !ad.Cleaned() || ad.HasTokens() {
			t.Fatalf("expected cleaned advertisement without tokens, got %+v", ad)
		}
	}

	errs := cleaner.RecoverErrors()
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(errs))
	}
	if errs[0].AdID != "empty" || !errors.Is(errs[0], ErrEmptyText) {
		t.Fatalf("unexpected first error: %v", errs[0])
	}
	if errs[1].AdID != "stop" || !errors.Is(errs[1], ErrNoTokens) {
		t.Fatalf("unexpected second error: %v", errs[1])
	}

	if again := cleaner.RecoverErrors(); len(again) != 0 {
		t.Fatalf("expected errors to be cleared, got %v", again)
	}
}

func TestRecoverErrorsLogsWithoutText(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.WarnLevel)
	cleaner := NewCleaner(CleanerConfig{}, nil, zap.New(core))

	cleaner.Clean(Advertisement{ID: "ad-7", Text: "a an the"})
	cleaner.RecoverErrors()

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(entries))
	}

	fields := entries[0].ContextMap()
	if fields[logger.FieldAdID] != "ad-7" {
		t.Fatalf("expected ad id field, got %v", fields)
	}
	for key, value := range fields {
		if value == "a an the" {
			t.Fatalf("raw text leaked into field %q", key)
		}
	}
}

func TestCleanerTicksProgressConcurrently(t *testing.T) {
	t.Parallel()

	reporter := &countingReporter{}
	cleaner := NewCleaner(CleanerConfig{}, reporter, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				cleaner.Clean(Advertisement{ID: "ad", Text: ""})
			}
		}()
	}
	wg.Wait()

	if reporter.ticks != 80 {
		t.Fatalf("expected 80 ticks, got %d", reporter.ticks)
	}
	if errs := cleaner.RecoverErrors(); len(errs) != 80 {
		t.Fatalf("expected 80 recorded errors, got %d", len(errs))
	}
}

func TestCleanerMinTokenLength(t *testing.T) {
	t.Parallel()

	cleaner := NewCleaner(CleanerConfig{MinTokenLength: 4}, nil, nil)
	got := cleaner.Tokenize("go java rust")

	expect := []Token{"java", "rust"}
	if !reflect.DeepEqual(got, expect) {
		t.Fatalf("expected %v, got %v", expect, got)
	}
}
