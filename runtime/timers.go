package runtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
)

type timerRow struct {
	key      string
	deadline time.Time
	fn       func()
}

// TimerTable is the scheduled-task table behind every deadline in the
// core: one row per pending timer, keyed by the owning component.
// Cancelling removes the row; there is no true cancellation of a callback
// already collected by a sweep, which is why every callback re-checks the
// state it acts on before doing anything.
type TimerTable struct {
	mu   sync.Mutex
	log  *slog.Logger
	rows map[string]timerRow
}

func NewTimerTable(log *slog.Logger) *TimerTable {
	return &TimerTable{log: log, rows: make(map[string]timerRow)}
}

// Schedule registers a callback to fire at deadline. Scheduling an already
// present key replaces the row; deadlines are fixed, never renewed.
func (t *TimerTable) Schedule(key string, deadline time.Time, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows[key] = timerRow{key: key, deadline: deadline, fn: fn}
}

// Cancel disarms a pending timer by removing its row. Reports whether the
// row was still present.
func (t *TimerTable) Cancel(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.rows[key]
	delete(t.rows, key)
	return ok
}

// Sweep fires every row whose deadline is at or before now and returns how
// many fired. Due rows are removed before their callbacks run, so a
// concurrent Cancel between collection and execution is exactly the race
// the callbacks' own re-checks cover.
func (t *TimerTable) Sweep(now time.Time) int {
	t.mu.Lock()
	due := lo.Filter(lo.Values(t.rows), func(row timerRow, _ int) bool {
		return !row.deadline.After(now)
	})
	for _, row := range due {
		delete(t.rows, row.key)
	}
	t.mu.Unlock()

	for _, row := range due {
		t.log.Debug("Timer fired", "key", row.key)
		row.fn()
	}
	return len(due)
}

func (t *TimerTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}
