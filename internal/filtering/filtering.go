package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/hh-traits/internal/advert"
)

// Filter represents a single filtering step applied to advertisements
// before they are cleaned.
type Filter interface {
	Name() string
	IsEnabled() bool

	Apply(ctx context.Context, ads []advert.Advertisement) ([]advert.Advertisement, Step, error)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Run executes the supplied filters sequentially and returns the remaining
// advertisements. The input order is preserved.
func Run(ctx context.Context, logger *zap.Logger, steps []Filter, ads []advert.Advertisement) ([]advert.Advertisement, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			logger.Debug("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, ads)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		logger.Info("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		ads = next
	}

	return ads, nil
}

// keep returns the advertisements for which drop is false and the IDs of the
// dropped ones.
func keep(ads []advert.Advertisement, drop func(advert.Advertisement) bool) ([]advert.Advertisement, []string) {
	out := make([]advert.Advertisement, 0, len(ads))
	var dropped []string

	for _, ad := range ads {
		if drop(ad) {
			dropped = append(dropped, ad.ID)
			continue
		}
		out = append(out, ad)
	}

	return out, dropped
}
