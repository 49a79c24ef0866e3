package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/hh-traits/internal/advert"
	"github.com/spigell/hh-traits/internal/filtering"
	"github.com/spigell/hh-traits/internal/output"
	"github.com/spigell/hh-traits/internal/progress"
	"github.com/spigell/hh-traits/internal/similarity"
	"github.com/spigell/hh-traits/internal/source"
	"github.com/spigell/hh-traits/internal/taxonomy"
)

type keywordList []taxonomy.Keyword

func (k keywordList) LoadKeywords() ([]taxonomy.Keyword, error) { return k, nil }

type failingKeywords struct{ err error }

func (f failingKeywords) LoadKeywords() ([]taxonomy.Keyword, error) { return nil, f.err }

type failingSource struct{ err error }

func (f failingSource) FetchAll(context.Context, int, bool) ([]advert.Advertisement, error) {
	return nil, f.err
}

type closingSource struct {
	source.Static
	closed bool
}

func (c *closingSource) Close() error {
	c.closed = true
	return nil
}

type recordingSink struct {
	mu      sync.Mutex
	results []output.Result
	err     error
}

func (s *recordingSink) Emit(_ context.Context, r output.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.results = append(s.results, r)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

type brokenExpander struct{}

func (brokenExpander) Lookup(context.Context, string) ([]string, error) {
	return nil, errors.New("synonym service unavailable")
}

var bigFiveKeywords = keywordList{
	{Word: "diligent", Trait: "conscientiousness"},
	{Word: "creative", Trait: "openness"},
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MinLength = 0
	cfg.TraitOrder = []string{"conscientiousness", "openness"}
	return cfg
}

func testDeps(src source.Source, sink output.Sink) Deps {
	return Deps{
		Source:   src,
		Keywords: bigFiveKeywords,
		Oracle:   similarity.Exact{},
		Sink:     sink,
		Logger:   zap.NewNop(),
		Progress: progress.Nop{},
	}
}

func TestNewRequiresDeps(t *testing.T) {
	t.Parallel()

	if _, err := New(DefaultConfig(), Deps{}); err == nil {
		t.Fatal("expected error for missing deps")
	}
}

func TestRunScoresAndEmits(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	src := source.Static{{ID: "ad-1", Text: "<p>Diligent worker</p>"}}

	o, err := New(testConfig(), testDeps(src, sink))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	result, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := result.Vectors["ad-1"]; !reflect.DeepEqual(got, []float64{1.0, 0.0}) {
		t.Fatalf("expected vector [1 0], got %v", got)
	}
	if got := result.Scores["ad-1"]; got["diligent"] != 1.0 || got["creative"] != 0.0 {
		t.Fatalf("unexpected scores: %v", got)
	}
	if result.RunID == "" {
		t.Fatal("expected run id")
	}
	if sink.count() != 1 {
		t.Fatalf("expected one emission, got %d", sink.count())
	}

	expect := []State{StateLoading, StateCleaning, StateConfigLoading, StateScoring, StateAggregating, StateEmitting, StateDone}
	if got := o.History(); !reflect.DeepEqual(got, expect) {
		t.Fatalf("expected history %v, got %v", expect, got)
	}
	if o.State() != StateDone {
		t.Fatalf("expected Done, got %s", o.State())
	}
}

func TestRunEmptyInputEmitsEmptyResult(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	o, err := New(testConfig(), testDeps(source.Static{}, sink))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	result, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Vectors) != 0 || len(result.Scores) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
	if sink.count() != 1 {
		t.Fatalf("expected the empty result to be emitted, got %d emissions", sink.count())
	}
}

func TestRunToleratesSynonymFailures(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.WarnLevel)
	sink := &recordingSink{}
	deps := testDeps(source.Static{{ID: "ad-1", Text: "diligent worker"}}, sink)
	deps.Synonyms = brokenExpander{}
	deps.Logger = zap.New(core)

	o, err := New(testConfig(), deps)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	result, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := result.Vectors["ad-1"]; !reflect.DeepEqual(got, []float64{1.0, 0.0}) {
		t.Fatalf("expected vector [1 0], got %v", got)
	}
	if observed.FilterMessage("synonym lookup failed").Len() != 2 {
		t.Fatalf("expected a warning per keyword, got %v", observed.All())
	}
}

func TestRunSourceFailure(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	boom := errors.New("connection refused")
	o, err := New(testConfig(), testDeps(failingSource{err: boom}, sink))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	_, err = o.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}

	var phaseErr *PhaseError
	if !errors.As(err, &phaseErr) || phaseErr.Phase != StateLoading {
		t.Fatalf("expected Loading phase error, got %v", err)
	}
	if o.State() != StateFailed {
		t.Fatalf("expected Failed, got %s", o.State())
	}
	if sink.count() != 0 {
		t.Fatal("nothing must be emitted after a failure")
	}
}

func TestRunClosesSource(t *testing.T) {
	t.Parallel()

	src := &closingSource{Static: source.Static{{ID: "ad-1", Text: "diligent worker"}}}
	o, err := New(testConfig(), testDeps(src, &recordingSink{}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !src.closed {
		t.Fatal("expected source to be closed after loading")
	}
}

func TestRunKeywordFailure(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	deps := testDeps(source.Static{{ID: "ad-1", Text: "diligent worker"}}, sink)
	deps.Keywords = failingKeywords{err: errors.New("no such file")}

	o, err := New(testConfig(), deps)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	_, err = o.Run(context.Background())

	var phaseErr *PhaseError
	if !errors.As(err, &phaseErr) || phaseErr.Phase != StateConfigLoading {
		t.Fatalf("expected ConfigLoading phase error, got %v", err)
	}
	if sink.count() != 0 {
		t.Fatal("nothing must be emitted after a failure")
	}
}

func TestRunEmptyKeywordsFail(t *testing.T) {
	t.Parallel()

	deps := testDeps(source.Static{}, &recordingSink{})
	deps.Keywords = keywordList{}

	o, err := New(testConfig(), deps)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if _, err := o.Run(context.Background()); !errors.Is(err, taxonomy.ErrNoKeywords) {
		t.Fatalf("expected ErrNoKeywords, got %v", err)
	}
}

func TestRunDeclinedConfirmation(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	deps := testDeps(source.Static{{ID: "ad-1", Text: "diligent worker"}}, sink)
	var seen output.Result
	deps.Confirm = func(_ context.Context, r output.Result) (bool, error) {
		seen = r
		return false, nil
	}

	o, err := New(testConfig(), deps)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	result, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sink.count() != 0 {
		t.Fatal("declined result must not be emitted")
	}
	if result == nil || len(seen.Vectors) != 1 {
		t.Fatalf("expected the computed result to reach the hook, got %+v", seen)
	}
	if o.State() != StateDone {
		t.Fatalf("expected Done, got %s", o.State())
	}
}

func TestRunSinkFailure(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{err: errors.New("disk full")}
	o, err := New(testConfig(), testDeps(source.Static{{ID: "ad-1", Text: "diligent worker"}}, sink))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	_, err = o.Run(context.Background())

	var phaseErr *PhaseError
	if !errors.As(err, &phaseErr) || phaseErr.Phase != StateEmitting {
		t.Fatalf("expected Emitting phase error, got %v", err)
	}
}

func TestRunLeavesNoPartialOutputWhenASinkFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "scores.arff")
	sink := output.Multi{
		output.ARFF{Path: path},
		&recordingSink{err: errors.New("disk full")},
	}

	o, err := New(testConfig(), testDeps(source.Static{{ID: "ad-1", Text: "diligent worker"}}, sink))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	_, err = o.Run(context.Background())

	var phaseErr *PhaseError
	if !errors.As(err, &phaseErr) || phaseErr.Phase != StateEmitting {
		t.Fatalf("expected Emitting phase error, got %v", err)
	}
	if o.State() != StateFailed {
		t.Fatalf("expected Failed, got %s", o.State())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no output files after a failed run, got %d entries", len(entries))
	}
}

func TestRunRejectsOverlappingRun(t *testing.T) {
	t.Parallel()

	var o *Orchestrator
	var nestedErr error

	deps := testDeps(source.Static{{ID: "ad-1", Text: "diligent worker"}}, &recordingSink{})
	deps.Confirm = func(ctx context.Context, _ output.Result) (bool, error) {
		_, nestedErr = o.Run(ctx)
		return true, nil
	}

	o, err := New(testConfig(), deps)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !errors.Is(nestedErr, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", nestedErr)
	}
	if o.State() != StateDone {
		t.Fatalf("expected Done, got %s", o.State())
	}

	// A finished orchestrator can run again.
	o.deps.Confirm = nil
	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &recordingSink{}
	o, err := New(testConfig(), testDeps(source.Static{{ID: "ad-1", Text: "diligent worker"}}, sink))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if _, err := o.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if sink.count() != 0 {
		t.Fatal("nothing must be emitted after cancellation")
	}
}

func TestRunDropEmpty(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.DropEmpty = true
	cfg.ExcludeEmpty = false

	sink := &recordingSink{}
	src := source.Static{
		{ID: "ad-1", Text: "diligent worker"},
		{ID: "ad-2", Text: "   "},
	}
	o, err := New(cfg, testDeps(src, sink))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	result, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, ok := result.Vectors["ad-2"]; ok {
		t.Fatal("advertisement without tokens must be dropped")
	}
	if _, ok := result.Vectors["ad-1"]; !ok {
		t.Fatal("expected ad-1 to be scored")
	}
}

func TestCleanShardsMatchesSequential(t *testing.T) {
	t.Parallel()

	ads := []advert.Advertisement{
		{ID: "1", Text: "Diligent and creative engineer"},
		{ID: "2", Text: "<b>Team</b> player"},
		{ID: "3", Text: ""},
		{ID: "4", Text: "Curious analyst with 5 years"},
		{ID: "5", Text: "Reliable, punctual driver"},
	}

	sequential := CleanShards(advert.NewCleaner(advert.CleanerConfig{}, nil, nil), ads, 1)
	for _, workers := range []int{2, 3, 8} {
		got := CleanShards(advert.NewCleaner(advert.CleanerConfig{}, nil, nil), ads, workers)
		if !reflect.DeepEqual(got, sequential) {
			t.Fatalf("workers=%d: expected %v, got %v", workers, sequential, got)
		}
	}
}

func TestRunAppliesFilters(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	deps := testDeps(source.Static{
		{ID: "ad-1", Text: "diligent worker"},
		{ID: "ad-1", Text: "creative designer"},
		{ID: "", Text: "diligent"},
	}, sink)
	deps.Filters = filtering.Defaults("")

	o, err := New(testConfig(), deps)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	result, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Vectors) != 1 {
		t.Fatalf("expected one advertisement after filtering, got %v", result.Vectors)
	}
	if got := result.Vectors["ad-1"]; !reflect.DeepEqual(got, []float64{1.0, 0.0}) {
		t.Fatalf("expected the first duplicate to be scored, got %v", got)
	}
}
