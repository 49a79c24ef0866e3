// Package synonym expands taxonomy keywords into synonym sets.
package synonym

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hh-traits/internal/logger"
)

// ErrNoSynonyms may be returned by expanders that know the word but have
// nothing to offer. It is treated like an empty result.
var ErrNoSynonyms = errors.New("no synonyms found")

// Expander returns words related to word.
type Expander interface {
	Lookup(ctx context.Context, word string) ([]string, error)
}

// None is an expander without synonyms. Scoring then relies on each
// keyword's own pass only.
type None struct{}

func (None) Lookup(context.Context, string) ([]string, error) {
	return nil, nil
}

// Index maps a keyword to its deduplicated synonyms.
type Index map[string][]string

// For returns the synonyms of keyword, nil when there are none.
func (i Index) For(keyword string) []string {
	if i == nil {
		return nil
	}
	return i[keyword]
}

// BuildStats summarizes an index build.
type BuildStats struct {
	Keywords int
	Empty    int
	Failures int
}

// BuildIndex looks up synonyms for every keyword. A failed or slow lookup
// leaves the keyword without synonyms and is logged; it never fails the
// build. A non-positive timeout disables the per-lookup deadline.
func BuildIndex(ctx context.Context, exp Expander, keywords []string, timeout time.Duration, log *zap.Logger) (Index, BuildStats) {
	log = logger.WithFields(log)
	if exp == nil {
		exp = None{}
	}

	index := make(Index, len(keywords))
	stats := BuildStats{Keywords: len(keywords)}

	for _, keyword := range keywords {
		words, err := lookup(ctx, exp, keyword, timeout)
		if err != nil && !errors.Is(err, ErrNoSynonyms) {
			stats.Failures++
			log.Warn("synonym lookup failed",
				zap.String(logger.FieldKeyword, keyword),
				zap.Error(err),
			)
			words = nil
		}

		words = Normalize(keyword, words)
		if len(words) == 0 {
			stats.Empty++
		}
		index[keyword] = words
	}

	return index, stats
}

// Normalize lowercases and trims words, dropping blanks, duplicates and the
// keyword itself.
func Normalize(keyword string, words []string) []string {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	seen := map[string]struct{}{keyword: {}}

	var out []string
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}

	return out
}

func lookup(ctx context.Context, exp Expander, keyword string, timeout time.Duration) ([]string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return exp.Lookup(ctx, keyword)
}

// Chain queries every expander and merges their answers. It fails only when
// all of them fail.
type Chain []Expander

func (c Chain) Lookup(ctx context.Context, word string) ([]string, error) {
	var (
		words []string
		errs  []error
	)
	for _, exp := range c {
		found, err := exp.Lookup(ctx, word)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		words = append(words, found...)
	}

	if len(c) > 0 && len(errs) == len(c) {
		return nil, errors.Join(errs...)
	}

	return words, nil
}
