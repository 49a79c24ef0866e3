package pipeline

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/hh-traits/internal/logger"
	"github.com/spigell/hh-traits/internal/metrics"
	"github.com/spigell/hh-traits/internal/progress"
)

// Run carries the per-run collaborators. It is created when a run starts and
// dropped when it ends; nothing in it outlives the run.
type Run struct {
	ID       string
	Started  time.Time
	Logger   *zap.Logger
	Progress progress.Reporter
	Metrics  *metrics.Metrics
}

func newRun(base *zap.Logger, reporter progress.Reporter, m *metrics.Metrics) *Run {
	id := uuid.NewString()
	log := logger.WithFields(base, logger.RunFields(id, "")...)

	if m == nil {
		m = metrics.New()
	}
	if reporter == nil {
		reporter = progress.NewLogger(log, nil)
	}

	return &Run{
		ID:       id,
		Started:  time.Now(),
		Logger:   log,
		Progress: reporter,
		Metrics:  m,
	}
}

// phaseLogger returns the run logger tagged with phase.
func (r *Run) phaseLogger(phase State) *zap.Logger {
	return r.Logger.With(zap.String(logger.FieldPhase, phase.String()))
}
