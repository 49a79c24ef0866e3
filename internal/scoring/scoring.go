// Package scoring measures how strongly each advertisement expresses every
// taxonomy keyword.
package scoring

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/spigell/hh-traits/internal/advert"
	"github.com/spigell/hh-traits/internal/logger"
	"github.com/spigell/hh-traits/internal/progress"
	"github.com/spigell/hh-traits/internal/similarity"
	"github.com/spigell/hh-traits/internal/synonym"
	"github.com/spigell/hh-traits/internal/utils"
)

// ScoreMap holds the score of every keyword for every advertisement:
// advertisement ID -> keyword -> score.
type ScoreMap map[string]map[string]float64

// Stats summarizes a scoring pass.
type Stats struct {
	Advertisements int
	Skipped        int
	Lookups        int64
	Failures       int64
}

// Options tunes an Engine.
type Options struct {
	// Workers is the number of goroutines scoring disjoint advertisement
	// ranges. Values below one mean one.
	Workers  int
	Progress progress.Reporter
	Logger   *zap.Logger
}

// Engine scores advertisements with a similarity oracle.
type Engine struct {
	oracle   similarity.Oracle
	workers  int
	progress progress.Reporter
	logger   *zap.Logger
}

// NewEngine creates an engine using oracle.
func NewEngine(oracle similarity.Oracle, opts Options) *Engine {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	reporter := opts.Progress
	if reporter == nil {
		reporter = progress.Nop{}
	}

	return &Engine{
		oracle:   oracle,
		workers:  workers,
		progress: reporter,
		logger:   logger.WithFields(opts.Logger),
	}
}

type counters struct {
	lookups  atomic.Int64
	failures atomic.Int64
}

// Score computes, for each advertisement and keyword, the best similarity
// between any token of the advertisement and the keyword or one of its
// synonyms. Every keyword is present for every scored advertisement.
// Advertisements without an ID are skipped. Oracle failures score zero.
func (e *Engine) Score(ctx context.Context, ads []advert.Advertisement, keywords []string, index synonym.Index) (ScoreMap, Stats) {
	results := make([]map[string]float64, len(ads))
	var c counters

	var wg sync.WaitGroup
	for _, r := range utils.Shards(len(ads), e.workers) {
		wg.Add(1)
		go func(r utils.Range) {
			defer wg.Done()
			for i := r.Start; i < r.End; i++ {
				if ads[i].ID == "" {
					e.progress.Tick()
					continue
				}
				results[i] = e.scoreOne(ctx, ads[i], keywords, index, &c)
				e.progress.Tick()
			}
		}(r)
	}
	wg.Wait()

	scores := make(ScoreMap, len(ads))
	stats := Stats{}
	for i, res := range results {
		if res == nil {
			stats.Skipped++
			continue
		}
		if _, dup := scores[ads[i].ID]; dup {
			e.logger.Warn("duplicate advertisement id, keeping the first one",
				zap.String(logger.FieldAdID, ads[i].ID),
			)
			continue
		}
		scores[ads[i].ID] = res
		stats.Advertisements++
	}
	stats.Lookups = c.lookups.Load()
	stats.Failures = c.failures.Load()

	return scores, stats
}

func (e *Engine) scoreOne(ctx context.Context, ad advert.Advertisement, keywords []string, index synonym.Index, c *counters) map[string]float64 {
	words := ad.Words()
	scores := make(map[string]float64, len(keywords))

	for _, keyword := range keywords {
		best := e.best(ctx, ad.ID, words, keyword, 0, c)
		for _, syn := range index.For(keyword) {
			best = e.best(ctx, ad.ID, words, syn, best, c)
		}
		scores[keyword] = best
	}

	return scores
}

// best returns the maximum of current and the similarity of target to any
// of words.
func (e *Engine) best(ctx context.Context, adID string, words []string, target string, current float64, c *counters) float64 {
	for _, word := range words {
		c.lookups.Add(1)
		score, err := e.oracle.Similarity(ctx, word, target)
		if err != nil {
			c.failures.Add(1)
			e.logger.Debug("similarity lookup failed",
				zap.String(logger.FieldAdID, adID),
				zap.String(logger.FieldKeyword, target),
				zap.Error(err),
			)
			continue
		}
		if score > current {
			current = score
		}
	}
	return current
}
