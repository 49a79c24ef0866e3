// Package output emits the scores of a finished run.
package output

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spigell/hh-traits/internal/scoring"
	"github.com/spigell/hh-traits/internal/traits"
)

// DefaultRelation names the ARFF relation when none is configured.
const DefaultRelation = "bigfive"

// Result is everything a run produced. Traits is the order every trait
// vector is aligned to; Keywords is the configured keyword order.
type Result struct {
	RunID    string
	Keywords []string
	Traits   []string
	Scores   scoring.ScoreMap
	Vectors  traits.Vectors
}

// AdIDs returns the scored advertisement IDs in ascending order.
func (r Result) AdIDs() []string {
	ids := make([]string, 0, len(r.Vectors))
	for id := range r.Vectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Sink receives the result of a successful run.
type Sink interface {
	Emit(ctx context.Context, r Result) error
}

// Pending is output staged by a Preparer that is not visible yet.
// Discard is safe to call after a failed Commit.
type Pending interface {
	Commit(ctx context.Context) error
	Discard() error
}

// Preparer is a sink that can stage a result before publishing it.
type Preparer interface {
	Sink
	Prepare(ctx context.Context, r Result) (Pending, error)
}

// Reverter withdraws a result that was already committed.
type Reverter interface {
	Revert(ctx context.Context, r Result) error
}

// Multi publishes a result to every sink or to none of them. Every sink is
// prepared first. Sinks that cannot stage are emitted before the staged ones
// are committed in order. When a commit fails the remaining staged output is
// discarded and committed sinks that implement Reverter are reverted.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, r Result) error {
	ordered := make([]Sink, 0, len(m))
	for _, sink := range m {
		if _, ok := sink.(Preparer); !ok {
			ordered = append(ordered, sink)
		}
	}
	for _, sink := range m {
		if _, ok := sink.(Preparer); ok {
			ordered = append(ordered, sink)
		}
	}

	staged := make([]Pending, 0, len(ordered))
	for _, sink := range ordered {
		pending, err := prepare(ctx, sink, r)
		if err != nil {
			return errors.Join(err, discard(staged))
		}
		staged = append(staged, pending)
	}

	for i, pending := range staged {
		if err := pending.Commit(ctx); err != nil {
			return errors.Join(err, discard(staged[i:]), revert(ctx, ordered[:i], r))
		}
	}

	return nil
}

func prepare(ctx context.Context, sink Sink, r Result) (Pending, error) {
	if p, ok := sink.(Preparer); ok {
		return p.Prepare(ctx, r)
	}
	return deferred{sink: sink, result: r}, nil
}

// emitStaged emits through a single Preparer.
func emitStaged(ctx context.Context, p Preparer, r Result) error {
	pending, err := p.Prepare(ctx, r)
	if err != nil {
		return err
	}
	if err := pending.Commit(ctx); err != nil {
		return errors.Join(err, pending.Discard())
	}
	return nil
}

func discard(staged []Pending) error {
	var errs []error
	for _, pending := range staged {
		if err := pending.Discard(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func revert(ctx context.Context, committed []Sink, r Result) error {
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for i := len(committed) - 1; i >= 0; i-- {
		reverter, ok := committed[i].(Reverter)
		if !ok {
			continue
		}
		if err := reverter.Revert(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("revert: %w", err))
		}
	}
	return errors.Join(errs...)
}

// deferred stages nothing: the wrapped sink emits on Commit.
type deferred struct {
	sink   Sink
	result Result
}

func (d deferred) Commit(ctx context.Context) error {
	return d.sink.Emit(ctx, d.result)
}

func (deferred) Discard() error { return nil }
