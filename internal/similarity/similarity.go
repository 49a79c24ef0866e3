// Package similarity provides word relatedness oracles. Every oracle returns
// a score in [0, 1] and is a pure function of its two inputs.
package similarity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrUnknownWord is returned when a word cannot be resolved by the oracle.
var ErrUnknownWord = errors.New("word is not in the vocabulary")

// Oracle scores how related two words are.
type Oracle interface {
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// Func adapts a plain function to Oracle.
type Func func(ctx context.Context, a, b string) (float64, error)

func (f Func) Similarity(ctx context.Context, a, b string) (float64, error) {
	return f(ctx, a, b)
}

// Exact scores 1 for case-insensitively equal words and 0 otherwise.
type Exact struct{}

func (Exact) Similarity(_ context.Context, a, b string) (float64, error) {
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return 1, nil
	}
	return 0, nil
}

// Relater tells whether two words belong to the same synonym group.
type Relater interface {
	Related(a, b string) bool
}

// Lexical scores identical words 1 and words of one lexicon group Weight.
type Lexical struct {
	Groups Relater
	Weight float64
}

// DefaultLexicalWeight is used when Lexical.Weight is not set.
const DefaultLexicalWeight = 0.8

func (l Lexical) Similarity(ctx context.Context, a, b string) (float64, error) {
	if score, _ := (Exact{}).Similarity(ctx, a, b); score == 1 {
		return 1, nil
	}
	if l.Groups == nil || !l.Groups.Related(a, b) {
		return 0, nil
	}

	weight := l.Weight
	if weight <= 0 {
		weight = DefaultLexicalWeight
	}
	return clamp(weight), nil
}

// WithTimeout bounds every call of o by d. A non-positive d returns o.
func WithTimeout(o Oracle, d time.Duration) Oracle {
	if d <= 0 {
		return o
	}
	return Func(func(ctx context.Context, a, b string) (float64, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return o.Similarity(ctx, a, b)
	})
}

// Memoize caches successful answers of o per word pair. Failures are not
// cached, so a transient error may succeed on a later call.
func Memoize(o Oracle) Oracle {
	var cache sync.Map
	return Func(func(ctx context.Context, a, b string) (float64, error) {
		key := a + "\x00" + b
		if v, ok := cache.Load(key); ok {
			return v.(float64), nil
		}
		score, err := o.Similarity(ctx, a, b)
		if err != nil {
			return 0, err
		}
		cache.Store(key, score)
		return score, nil
	})
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
