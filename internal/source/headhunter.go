package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/hh-traits/internal/advert"
	"github.com/spigell/hh-traits/internal/headhunter"
	"github.com/spigell/hh-traits/internal/logger"
)

type vacancyAPI interface {
	Search(ctx context.Context, params *headhunter.SearchParams) (*headhunter.Vacancies, error)
	GetVacancy(ctx context.Context, id string) (*headhunter.Vacancy, error)
}

// HeadHunter reads vacancies from hh.ru as advertisements.
type HeadHunter struct {
	api    vacancyAPI
	params headhunter.SearchParams
	// Details fetches every vacancy to get its full description instead of
	// the search snippet.
	details bool
	logger  *zap.Logger
}

// NewHeadHunter creates a source running params against api.
func NewHeadHunter(api vacancyAPI, params headhunter.SearchParams, details bool, log *zap.Logger) *HeadHunter {
	return &HeadHunter{api: api, params: params, details: details, logger: logger.WithFields(log)}
}

func (h *HeadHunter) FetchAll(ctx context.Context, minLength int, excludeEmpty bool) ([]advert.Advertisement, error) {
	params := h.params
	vacancies, err := h.api.Search(ctx, &params)
	if err != nil {
		return nil, fmt.Errorf("search vacancies: %w", err)
	}

	h.logger.Info("vacancies found", zap.Int("count", vacancies.Len()))

	ads := make([]advert.Advertisement, 0, vacancies.Len())
	for _, vacancy := range vacancies.Items {
		if vacancy == nil {
			continue
		}

		if h.details {
			full, err := h.api.GetVacancy(ctx, vacancy.ID)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				h.logger.Warn("cannot get vacancy details, using the search snippet",
					zap.String("vacancy_id", vacancy.ID),
					zap.Error(err),
				)
			} else {
				vacancy = full
			}
		}

		text := vacancy.Text()
		if !Keep(text, minLength, excludeEmpty) {
			continue
		}
		ads = append(ads, advert.Advertisement{ID: vacancy.ID, Text: text})
	}

	return ads, nil
}
