package filtering

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/hh-traits/internal/advert"
)

func ids(ads []advert.Advertisement) []string {
	out := make([]string, 0, len(ads))
	for _, ad := range ads {
		out = append(out, ad.ID)
	}
	return out
}

func TestDefaultsFilters(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "exclude.txt")
	if err := os.WriteFile(path, []byte("# reviewed\nad-3\n\n"), 0o644); err != nil {
		t.Fatalf("write exclude file: %v", err)
	}

	ads := []advert.Advertisement{
		{ID: "ad-1", Text: "first"},
		{ID: "", Text: "no id"},
		{ID: "ad-1", Text: "second"},
		{ID: "ad-2", Text: "kept"},
		{ID: "ad-3", Text: "excluded"},
	}

	core, observed := observer.New(zapcore.InfoLevel)
	got, err := Run(context.Background(), zap.New(core), Defaults(path), ads)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if want := []string{"ad-1", "ad-2"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}
	if got[0].Text != "first" {
		t.Fatalf("expected the first duplicate to win, got %q", got[0].Text)
	}
	if n := observed.FilterMessage("filter step").Len(); n != 3 {
		t.Fatalf("expected 3 filter step entries, got %d", n)
	}
}

func TestExcludeFileDisabledWithoutPath(t *testing.T) {
	t.Parallel()

	if NewExcludeFile("  ").IsEnabled() {
		t.Fatal("expected exclude file filter to be disabled")
	}

	ads := []advert.Advertisement{{ID: "ad-1"}}
	got, err := Run(context.Background(), nil, []Filter{NewExcludeFile("")}, ads)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected input to pass through, got %v", got)
	}
}

func TestExcludeFileMissing(t *testing.T) {
	t.Parallel()

	filter := NewExcludeFile(filepath.Join(t.TempDir(), "missing.txt"))
	_, err := Run(context.Background(), nil, []Filter{filter}, []advert.Advertisement{{ID: "ad-1"}})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not exist error, got %v", err)
	}
}
