package workers

import (
	"context"
	"log/slog"
	"time"

	"jamlab/runtime"
)

// SweepWorker drives the timer table: every tick it fires the rows whose
// deadline passed. Timer accuracy is bounded by the tick resolution, which
// is deliberately coarse next to the second-scale deadlines it serves.
type SweepWorker struct {
	log        *slog.Logger
	timers     *runtime.TimerTable
	resolution time.Duration
}

func NewSweepWorker(log *slog.Logger, timers *runtime.TimerTable, resolution time.Duration) *SweepWorker {
	return &SweepWorker{log: log, timers: timers, resolution: resolution}
}

// Run ticks until the context ends. Implements contract.Worker.
func (w *SweepWorker) Run(ctx context.Context) error {
	w.log.Info("Starting timer sweep worker", "resolution", w.resolution)
	ticker := time.NewTicker(w.resolution)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if fired := w.timers.Sweep(now); fired > 0 {
				w.log.Debug("Timers fired", "count", fired)
			}
		}
	}
}
