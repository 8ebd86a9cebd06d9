package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerTable_SweepFiresOnlyDueRows(t *testing.T) {
	req := require.New(t)
	timers := NewTimerTable(discardLogger())
	now := time.Now()

	var fired []string
	timers.Schedule("due", now.Add(5*time.Second), func() { fired = append(fired, "due") })
	timers.Schedule("later", now.Add(30*time.Second), func() { fired = append(fired, "later") })

	req.Equal(0, timers.Sweep(now))
	req.Equal(1, timers.Sweep(now.Add(10*time.Second)))
	req.Equal([]string{"due"}, fired)
	req.Equal(1, timers.Len())
}

func TestTimerTable_CancelledRowNeverFires(t *testing.T) {
	req := require.New(t)
	timers := NewTimerTable(discardLogger())
	now := time.Now()

	fired := false
	timers.Schedule("grace:room-1:alice", now.Add(time.Second), func() { fired = true })

	req.True(timers.Cancel("grace:room-1:alice"))
	req.False(timers.Cancel("grace:room-1:alice"))

	req.Equal(0, timers.Sweep(now.Add(time.Minute)))
	req.False(fired)
}

func TestTimerTable_RescheduleReplacesRow(t *testing.T) {
	req := require.New(t)
	timers := NewTimerTable(discardLogger())
	now := time.Now()

	var fired []string
	timers.Schedule("approval:bob", now.Add(time.Second), func() { fired = append(fired, "old") })
	timers.Schedule("approval:bob", now.Add(time.Minute), func() { fired = append(fired, "new") })

	// The replaced deadline is gone; only the latest row exists.
	req.Equal(0, timers.Sweep(now.Add(10*time.Second)))
	req.Equal(1, timers.Sweep(now.Add(2*time.Minute)))
	req.Equal([]string{"new"}, fired)
}

func TestTimerTable_SweepRemovesRowBeforeCallbackRuns(t *testing.T) {
	req := require.New(t)
	timers := NewTimerTable(discardLogger())
	now := time.Now()

	// A callback rescheduling its own key must not be clobbered by the
	// sweep that fired it.
	timers.Schedule("onboarding:room-1:alice", now.Add(time.Second), func() {
		timers.Schedule("onboarding:room-1:alice", now.Add(time.Hour), func() {})
	})

	req.Equal(1, timers.Sweep(now.Add(time.Minute)))
	req.Equal(1, timers.Len())
}
