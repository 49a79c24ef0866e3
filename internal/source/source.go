// Package source reads raw advertisements from the systems that store them.
package source

import (
	"context"
	"strings"

	"github.com/spigell/hh-traits/internal/advert"
)

// Default filters applied to raw advertisements.
const (
	DefaultMinLength    = 3
	DefaultExcludeEmpty = true
)

// Source returns every raw advertisement it holds. Advertisements with fewer
// than minLength words are left out; blank ones are left out only when
// excludeEmpty is set.
type Source interface {
	FetchAll(ctx context.Context, minLength int, excludeEmpty bool) ([]advert.Advertisement, error)
}

// Keep reports whether an advertisement text passes the source filters.
// minLength counts whitespace-separated words and applies to non-blank
// texts only.
func Keep(text string, minLength int, excludeEmpty bool) bool {
	words := len(strings.Fields(text))
	if words == 0 {
		return !excludeEmpty
	}
	return words >= minLength
}

// Filter returns the advertisements that pass Keep, preserving order.
func Filter(ads []advert.Advertisement, minLength int, excludeEmpty bool) []advert.Advertisement {
	out := make([]advert.Advertisement, 0, len(ads))
	for _, ad := range ads {
		if Keep(ad.Text, minLength, excludeEmpty) {
			out = append(out, ad)
		}
	}
	return out
}

// Static serves a fixed list of advertisements.
type Static []advert.Advertisement

func (s Static) FetchAll(_ context.Context, minLength int, excludeEmpty bool) ([]advert.Advertisement, error) {
	return Filter(s, minLength, excludeEmpty), nil
}
