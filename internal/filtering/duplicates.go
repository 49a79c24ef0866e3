package filtering

import (
	"context"
	"strings"

	"github.com/spigell/hh-traits/internal/advert"
)

type missingIDFilter struct{}

// NewMissingID creates a filter that removes advertisements without an ID.
// Such advertisements cannot be keyed in the score map.
func NewMissingID() Filter {
	return &missingIDFilter{}
}

func (f *missingIDFilter) Name() string { return "missing_id" }

func (f *missingIDFilter) IsEnabled() bool { return true }

func (f *missingIDFilter) Apply(_ context.Context, ads []advert.Advertisement) ([]advert.Advertisement, Step, error) {
	initial := len(ads)
	left, dropped := keep(ads, func(ad advert.Advertisement) bool {
		return strings.TrimSpace(ad.ID) == ""
	})

	return left, Step{Initial: initial, Dropped: len(dropped), Left: len(left)}, nil
}

type duplicatesFilter struct{}

// NewDuplicates creates a filter that keeps only the first advertisement of
// every ID.
func NewDuplicates() Filter {
	return &duplicatesFilter{}
}

func (f *duplicatesFilter) Name() string { return "duplicates" }

func (f *duplicatesFilter) IsEnabled() bool { return true }

func (f *duplicatesFilter) Apply(_ context.Context, ads []advert.Advertisement) ([]advert.Advertisement, Step, error) {
	initial := len(ads)
	seen := make(map[string]struct{}, len(ads))

	left, dropped := keep(ads, func(ad advert.Advertisement) bool {
		if _, ok := seen[ad.ID]; ok {
			return true
		}
		seen[ad.ID] = struct{}{}
		return false
	})

	return left, Step{Initial: initial, Dropped: len(dropped), Left: len(left)}, nil
}

// Defaults returns the filters every run applies, followed by the exclude
// file filter for excludeFile.
func Defaults(excludeFile string) []Filter {
	return []Filter{
		NewMissingID(),
		NewDuplicates(),
		NewExcludeFile(excludeFile),
	}
}
