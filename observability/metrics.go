// Package observability aggregates runtime telemetry: event counters, a
// rooms gauge, and operation latencies. It observes the event stream and
// never mutates state.
package observability

import (
	"context"
	"log/slog"
	goruntime "runtime"
	"sync"
	"sync/atomic"
	"time"

	"jamlab/domain/event"
)

// Stats is one telemetry snapshot.
type Stats struct {
	RoomsOpen       int64                 `json:"rooms_open"`
	EventsPublished uint64                `json:"events_published"`
	EventsByKind    map[event.Kind]uint64 `json:"events_by_kind"`
	AllocMemMb      uint64                `json:"alloc_mem_mb"`
	NumGC           uint32                `json:"num_gc"`
	NumGoroutine    int                   `json:"num_goroutine"`
	Latencies       map[string]OpLatency  `json:"latencies"`
}

// OpLatency accumulates per-operation timing.
type OpLatency struct {
	Count   uint64        `json:"count"`
	Total   time.Duration `json:"total"`
	Max     time.Duration `json:"max"`
	Average time.Duration `json:"average"`
}

// Metrics is the telemetry aggregate. Counter updates come from the event
// bus; latency samples come from Instrument-wrapped operations.
type Metrics struct {
	log *slog.Logger

	roomsOpen       int64
	eventsPublished uint64

	mu        sync.Mutex
	byKind    map[event.Kind]uint64
	latencies map[string]OpLatency
}

func NewMetrics(log *slog.Logger) *Metrics {
	return &Metrics{
		log:       log,
		byKind:    make(map[event.Kind]uint64),
		latencies: make(map[string]OpLatency),
	}
}

// Consume counts one event. Subscribe it to every kind of interest.
func (m *Metrics) Consume(_ context.Context, e event.DomainEvent) error {
	atomic.AddUint64(&m.eventsPublished, 1)
	switch e.Kind() {
	case event.KindRoomCreated:
		atomic.AddInt64(&m.roomsOpen, 1)
	case event.KindRoomClosed:
		atomic.AddInt64(&m.roomsOpen, -1)
	}

	m.mu.Lock()
	m.byKind[e.Kind()]++
	m.mu.Unlock()
	return nil
}

// Record adds one latency sample for an operation.
func (m *Metrics) Record(op string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lat := m.latencies[op]
	lat.Count++
	lat.Total += d
	if d > lat.Max {
		lat.Max = d
	}
	m.latencies[op] = lat
}

// Snapshot returns the current telemetry, Go runtime stats included.
func (m *Metrics) Snapshot() Stats {
	var mem goruntime.MemStats
	goruntime.ReadMemStats(&mem)

	m.mu.Lock()
	byKind := make(map[event.Kind]uint64, len(m.byKind))
	for kind, count := range m.byKind {
		byKind[kind] = count
	}
	latencies := make(map[string]OpLatency, len(m.latencies))
	for op, lat := range m.latencies {
		if lat.Count > 0 {
			lat.Average = lat.Total / time.Duration(lat.Count)
		}
		latencies[op] = lat
	}
	m.mu.Unlock()

	return Stats{
		RoomsOpen:       atomic.LoadInt64(&m.roomsOpen),
		EventsPublished: atomic.LoadUint64(&m.eventsPublished),
		EventsByKind:    byKind,
		AllocMemMb:      mem.Alloc / 1024 / 1024,
		NumGC:           mem.NumGC,
		NumGoroutine:    goruntime.NumGoroutine(),
		Latencies:       latencies,
	}
}

// Instrument wraps an operation with latency recording. Slow calls are
// logged with their duration.
func Instrument(m *Metrics, op string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	m.Record(op, elapsed)
	if elapsed > 100*time.Millisecond {
		m.log.Warn("Slow operation", "op", op, "elapsed", elapsed)
	}
	return err
}
