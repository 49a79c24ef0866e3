// Package progress reports how far the pipeline has advanced through a phase.
// Reporters observe the run and never influence its outcome.
package progress

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Reporter receives phase and item progress. Tick may be called from many
// goroutines at once.
type Reporter interface {
	Phase(label string)
	SetTotal(n int)
	Tick()
	Done()
}

// Nop discards every report.
type Nop struct{}

func (Nop) Phase(string) {}
func (Nop) SetTotal(int) {}
func (Nop) Tick()        {}
func (Nop) Done()        {}

// Observer is notified when a phase completes.
type Observer func(label string, items int64, elapsed time.Duration)

// Logger reports progress through a zap logger, emitting one entry every time
// another tenth of the phase completes.
type Logger struct {
	logger   *zap.Logger
	observer Observer

	mu      sync.Mutex
	label   string
	started time.Time

	total   atomic.Int64
	count   atomic.Int64
	decile  atomic.Int64
	running atomic.Bool
}

// NewLogger creates a reporter writing to logger. A nil logger discards output.
func NewLogger(logger *zap.Logger, observer Observer) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Logger{logger: logger, observer: observer}
}

func (l *Logger) Phase(label string) {
	l.mu.Lock()
	l.label = label
	l.started = time.Now()
	l.mu.Unlock()

	l.total.Store(0)
	l.count.Store(0)
	l.decile.Store(0)
	l.running.Store(true)

	l.logger.Info("phase started", zap.String("label", label))
}

func (l *Logger) SetTotal(n int) {
	if n < 0 {
		n = 0
	}
	l.total.Store(int64(n))
}

func (l *Logger) Tick() {
	done := l.count.Add(1)
	total := l.total.Load()
	if total <= 0 {
		return
	}

	reached := done * 10 / total
	for {
		last := l.decile.Load()
		if reached <= last {
			return
		}
		if l.decile.CompareAndSwap(last, reached) {
			break
		}
	}

	l.logger.Info("progress",
		zap.String("label", l.currentLabel()),
		zap.Int64("done", done),
		zap.Int64("total", total),
		zap.Int64("percent", done*100/total),
	)
}

func (l *Logger) Done() {
	if !l.running.Swap(false) {
		return
	}

	l.mu.Lock()
	label := l.label
	elapsed := time.Since(l.started)
	l.mu.Unlock()

	items := l.count.Load()
	l.logger.Info("phase completed",
		zap.String("label", label),
		zap.Int64("items", items),
		zap.Duration("elapsed", elapsed),
	)

	if l.observer != nil {
		l.observer(label, items, elapsed)
	}
}

// Count returns the number of ticks seen in the current phase.
func (l *Logger) Count() int64 {
	return l.count.Load()
}

func (l *Logger) currentLabel() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.label
}
