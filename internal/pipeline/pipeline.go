// Package pipeline runs the scoring pipeline: Loading, then Cleaning in
// parallel with ConfigLoading, then Scoring, Aggregating and Emitting.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/hh-traits/internal/advert"
	"github.com/spigell/hh-traits/internal/filtering"
	"github.com/spigell/hh-traits/internal/logger"
	"github.com/spigell/hh-traits/internal/metrics"
	"github.com/spigell/hh-traits/internal/output"
	"github.com/spigell/hh-traits/internal/progress"
	"github.com/spigell/hh-traits/internal/scoring"
	"github.com/spigell/hh-traits/internal/similarity"
	"github.com/spigell/hh-traits/internal/source"
	"github.com/spigell/hh-traits/internal/synonym"
	"github.com/spigell/hh-traits/internal/taxonomy"
	"github.com/spigell/hh-traits/internal/traits"
	"github.com/spigell/hh-traits/internal/utils"
)

// Progress labels reported for each phase.
const (
	LabelLoading     = "Reading from database"
	LabelCleaning    = "Cleaning"
	LabelScoring     = "Lexical analysis"
	LabelAggregating = "Calculating Big Five personality scores"
	LabelEmitting    = "Writing similarity scores to file"
)

// KeywordLoader provides the keyword to trait configuration.
type KeywordLoader interface {
	LoadKeywords() ([]taxonomy.Keyword, error)
}

// ConfirmFunc decides whether a computed result is emitted. Declining ends
// the run in Done without output.
type ConfirmFunc func(ctx context.Context, r output.Result) (bool, error)

// Config tunes a run.
type Config struct {
	MinLength       int
	ExcludeEmpty    bool
	CleaningWorkers int
	ScoringWorkers  int
	// DropEmpty removes advertisements without tokens before scoring.
	// Otherwise they are scored and get all-zero scores.
	DropEmpty      bool
	TraitOrder     []string
	SynonymTimeout time.Duration
	Cleaner        advert.CleanerConfig
}

// DefaultConfig returns the settings the pipeline was designed around.
func DefaultConfig() Config {
	return Config{
		MinLength:       source.DefaultMinLength,
		ExcludeEmpty:    source.DefaultExcludeEmpty,
		CleaningWorkers: 2,
		ScoringWorkers:  1,
		SynonymTimeout:  10 * time.Second,
	}
}

// Deps are the collaborators of the pipeline. Filters, Synonyms, Confirm,
// Logger, Metrics and Progress are optional.
type Deps struct {
	Source   source.Source
	Filters  []filtering.Filter
	Keywords KeywordLoader
	Synonyms synonym.Expander
	Oracle   similarity.Oracle
	Sink     output.Sink
	Confirm  ConfirmFunc
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Progress progress.Reporter
}

// Orchestrator drives runs and tracks their state.
type Orchestrator struct {
	cfg  Config
	deps Deps

	mu      sync.Mutex
	state   State
	history []State
}

// New validates deps and creates an orchestrator.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Source == nil:
		return nil, errors.New("advertisement source is required")
	case deps.Keywords == nil:
		return nil, errors.New("keyword loader is required")
	case deps.Oracle == nil:
		return nil, errors.New("similarity oracle is required")
	case deps.Sink == nil:
		return nil, errors.New("result sink is required")
	}

	if deps.Synonyms == nil {
		deps.Synonyms = synonym.None{}
	}
	if cfg.CleaningWorkers < 1 {
		cfg.CleaningWorkers = 1
	}
	if cfg.ScoringWorkers < 1 {
		cfg.ScoringWorkers = 1
	}

	return &Orchestrator{cfg: cfg, deps: deps}, nil
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// History returns the states the last run went through.
func (o *Orchestrator) History() []State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]State(nil), o.history...)
}

// ErrRunInProgress is returned by Run while another run of the same
// orchestrator has not finished.
var ErrRunInProgress = errors.New("run already in progress")

// Run executes the pipeline once. The result is returned even when the
// confirmation hook declined emission. On failure the error is a
// *PhaseError and nothing has been emitted, unless another run is still
// going, in which case it is ErrRunInProgress.
func (o *Orchestrator) Run(ctx context.Context) (*output.Result, error) {
	o.mu.Lock()
	if o.state != StateIdle && !o.state.Terminal() {
		current := o.state
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: currently %s", ErrRunInProgress, current)
	}
	o.state = StateIdle
	o.history = nil
	o.mu.Unlock()

	run := newRun(o.deps.Logger, o.deps.Progress, o.deps.Metrics)
	run.Logger.Info("run started")

	result, err := o.run(ctx, run)
	if err != nil {
		o.transition(StateFailed)
		run.Metrics.RunSucceeded.Set(0)

		var phaseErr *PhaseError
		phase := ""
		if errors.As(err, &phaseErr) {
			phase = phaseErr.Phase.String()
		}
		run.Logger.Error("run failed", zap.String(logger.FieldPhase, phase), zap.Error(err))
		return nil, err
	}

	o.transition(StateDone)
	run.Metrics.RunSucceeded.Set(1)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, run *Run) (*output.Result, error) {
	o.transition(StateLoading)
	started := time.Now()
	ads, err := o.load(ctx, run)
	run.Metrics.ObservePhase(StateLoading.String(), time.Since(started))
	if err != nil {
		return nil, &PhaseError{Phase: StateLoading, Err: err}
	}

	cleaned, tax, index, err := o.prepare(ctx, run, ads)
	if err != nil {
		return nil, err
	}

	o.transition(StateScoring)
	started = time.Now()
	scores, stats := o.score(ctx, run, cleaned, tax, index)
	run.Metrics.ObservePhase(StateScoring.String(), time.Since(started))
	if err := ctx.Err(); err != nil {
		return nil, &PhaseError{Phase: StateScoring, Err: err}
	}

	o.transition(StateAggregating)
	started = time.Now()
	result := o.aggregate(run, tax, scores)
	run.Metrics.ObservePhase(StateAggregating.String(), time.Since(started))

	if o.deps.Confirm != nil {
		ok, err := o.deps.Confirm(ctx, result)
		if err != nil {
			return nil, &PhaseError{Phase: StateEmitting, Err: fmt.Errorf("confirm emission: %w", err)}
		}
		if !ok {
			run.Logger.Info("emission declined, nothing written")
			return &result, nil
		}
	}

	o.transition(StateEmitting)
	started = time.Now()
	run.Progress.Phase(LabelEmitting)
	err = o.deps.Sink.Emit(ctx, result)
	run.Progress.Done()
	run.Metrics.ObservePhase(StateEmitting.String(), time.Since(started))
	if err != nil {
		return nil, &PhaseError{Phase: StateEmitting, Err: err}
	}

	run.Logger.Info("scoring completed",
		zap.Int("advertisements", len(result.Vectors)),
		zap.Int("keywords", len(result.Keywords)),
		zap.Int("traits", len(result.Traits)),
		zap.Int64("similarity_lookups", stats.Lookups),
		zap.Int64("similarity_failures", stats.Failures),
		zap.Duration("elapsed", time.Since(run.Started)),
	)

	return &result, nil
}

func (o *Orchestrator) load(ctx context.Context, run *Run) ([]advert.Advertisement, error) {
	run.Progress.Phase(LabelLoading)
	defer run.Progress.Done()

	ads, err := o.deps.Source.FetchAll(ctx, o.cfg.MinLength, o.cfg.ExcludeEmpty)

	if closer, ok := o.deps.Source.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil {
			run.phaseLogger(StateLoading).Warn("cannot close advertisement source", zap.Error(cerr))
		}
	}

	if err != nil {
		return nil, fmt.Errorf("fetch advertisements: %w", err)
	}
	run.Metrics.AdsFetched.Add(float64(len(ads)))

	fetched := len(ads)
	ads, err = filtering.Run(ctx, run.phaseLogger(StateLoading), o.deps.Filters, ads)
	if err != nil {
		return nil, fmt.Errorf("filter advertisements: %w", err)
	}
	run.Metrics.AdsDropped.Add(float64(fetched - len(ads)))

	run.phaseLogger(StateLoading).Info("advertisements loaded",
		zap.Int("fetched", fetched),
		zap.Int("count", len(ads)),
	)

	return ads, nil
}

// prepare cleans the advertisements while the keyword configuration and the
// synonym index are loaded, and joins both before returning.
func (o *Orchestrator) prepare(ctx context.Context, run *Run, ads []advert.Advertisement) ([]advert.Advertisement, *taxonomy.Taxonomy, synonym.Index, error) {
	o.transition(StateCleaning)
	o.transition(StateConfigLoading)

	var (
		cleaned []advert.Advertisement
		tax     *taxonomy.Taxonomy
		index   synonym.Index
	)

	cleaner := advert.NewCleaner(o.cfg.Cleaner, run.Progress, run.phaseLogger(StateCleaning))
	run.Progress.Phase(LabelCleaning)
	run.Progress.SetTotal(len(ads))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		started := time.Now()
		cleaned = CleanShards(cleaner, ads, o.cfg.CleaningWorkers)
		run.Metrics.ObservePhase(StateCleaning.String(), time.Since(started))
		return nil
	})
	g.Go(func() error {
		started := time.Now()
		var err error
		tax, index, err = o.loadConfig(gctx, run)
		run.Metrics.ObservePhase(StateConfigLoading.String(), time.Since(started))
		if err != nil {
			return &PhaseError{Phase: StateConfigLoading, Err: err}
		}
		return nil
	})

	err := g.Wait()
	run.Progress.Done()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, nil, &PhaseError{Phase: StateCleaning, Err: err}
	}

	failures := cleaner.RecoverErrors()
	run.Metrics.AdsCleaned.Add(float64(len(cleaned)))
	run.Metrics.CleaningFailures.Add(float64(len(failures)))

	if o.cfg.DropEmpty {
		kept := cleaned[:0:0]
		for _, ad := range cleaned {
			if ad.HasTokens() {
				kept = append(kept, ad)
			}
		}
		if dropped := len(cleaned) - len(kept); dropped > 0 {
			run.Metrics.AdsDropped.Add(float64(dropped))
			run.phaseLogger(StateCleaning).Info("advertisements without tokens dropped", zap.Int("count", dropped))
		}
		cleaned = kept
	}

	return cleaned, tax, index, nil
}

func (o *Orchestrator) loadConfig(ctx context.Context, run *Run) (*taxonomy.Taxonomy, synonym.Index, error) {
	log := run.phaseLogger(StateConfigLoading)

	keywords, err := o.deps.Keywords.LoadKeywords()
	if err != nil {
		return nil, nil, fmt.Errorf("load keywords: %w", err)
	}

	tax, err := taxonomy.New(keywords, o.cfg.TraitOrder)
	if err != nil {
		return nil, nil, err
	}
	if dups := tax.Duplicates(); len(dups) > 0 {
		log.Warn("duplicate keywords ignored, the first mapping wins", zap.Strings("keywords", dups))
	}

	index, stats := synonym.BuildIndex(ctx, o.deps.Synonyms, tax.Keywords(), o.cfg.SynonymTimeout, log)
	run.Metrics.SynonymFailures.Add(float64(stats.Failures))

	log.Info("keyword configuration loaded",
		zap.Int("keywords", tax.Len()),
		zap.Strings("traits", tax.Traits()),
		zap.Int("without_synonyms", stats.Empty),
		zap.Int("synonym_failures", stats.Failures),
	)

	return tax, index, nil
}

func (o *Orchestrator) score(ctx context.Context, run *Run, ads []advert.Advertisement, tax *taxonomy.Taxonomy, index synonym.Index) (scoring.ScoreMap, scoring.Stats) {
	run.Progress.Phase(LabelScoring)
	run.Progress.SetTotal(len(ads))
	defer run.Progress.Done()

	engine := scoring.NewEngine(o.deps.Oracle, scoring.Options{
		Workers:  o.cfg.ScoringWorkers,
		Progress: run.Progress,
		Logger:   run.phaseLogger(StateScoring),
	})

	scores, stats := engine.Score(ctx, ads, tax.Keywords(), index)

	run.Metrics.SimilarityLookups.Add(float64(stats.Lookups))
	run.Metrics.SimilarityFailures.Add(float64(stats.Failures))
	if stats.Failures > 0 {
		run.phaseLogger(StateScoring).Warn("some similarity lookups failed and scored zero",
			zap.Int64("failures", stats.Failures),
			zap.Int64("lookups", stats.Lookups),
		)
	}
	if stats.Skipped > 0 {
		run.phaseLogger(StateScoring).Warn("advertisements without id skipped", zap.Int("count", stats.Skipped))
	}

	return scores, stats
}

func (o *Orchestrator) aggregate(run *Run, tax *taxonomy.Taxonomy, scores scoring.ScoreMap) output.Result {
	run.Progress.Phase(LabelAggregating)
	defer run.Progress.Done()

	mapping := tax.Mapping()
	order := tax.Traits()

	if unmapped := traits.UnmappedKeywords(tax.Keywords(), mapping, order); len(unmapped) > 0 {
		run.phaseLogger(StateAggregating).Warn("keywords without a known trait contribute nothing",
			zap.Strings("keywords", unmapped),
		)
	}

	return output.Result{
		RunID:    run.ID,
		Keywords: tax.Keywords(),
		Traits:   order,
		Scores:   scores,
		Vectors:  traits.Aggregate(scores, mapping, order),
	}
}

func (o *Orchestrator) transition(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = s
	o.history = append(o.history, s)
}

// CleanShards cleans ads with workers goroutines, each owning a contiguous
// shard and a private buffer. Buffers are joined in shard order, so the
// output order matches the input order.
func CleanShards(cleaner *advert.Cleaner, ads []advert.Advertisement, workers int) []advert.Advertisement {
	shards := utils.Shards(len(ads), workers)
	buffers := make([][]advert.Advertisement, len(shards))

	var wg sync.WaitGroup
	for i, r := range shards {
		wg.Add(1)
		go func(i int, r utils.Range) {
			defer wg.Done()
			buf := make([]advert.Advertisement, 0, r.Len())
			for _, ad := range ads[r.Start:r.End] {
				buf = append(buf, cleaner.Clean(ad))
			}
			buffers[i] = buf
		}(i, r)
	}
	wg.Wait()

	out := make([]advert.Advertisement, 0, len(ads))
	for _, buf := range buffers {
		out = append(out, buf...)
	}
	return out
}
