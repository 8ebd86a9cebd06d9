// Package storage feeds the event journal off the hot path: events are
// buffered on a channel and written by a supervised worker, so a slow disk
// never blocks a publish.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"jamlab/domain/event"
	"jamlab/repositories"
)

type DiskSink struct {
	repository repositories.IJournalRepository
	log        *slog.Logger
	queue      chan event.DomainEvent
}

func NewDiskSink(repository repositories.IJournalRepository, log *slog.Logger, bufferSize int) *DiskSink {
	return &DiskSink{
		repository: repository,
		log:        log,
		queue:      make(chan event.DomainEvent, bufferSize),
	}
}

// Consume enqueues one event for persistence. A full buffer drops the
// event rather than stall the publisher; the journal is a convenience
// record, not the source of truth.
func (d *DiskSink) Consume(_ context.Context, e event.DomainEvent) error {
	select {
	case d.queue <- e:
	default:
		d.log.Warn(fmt.Sprintf("Journal buffer full, dropping event %s", e.Kind()))
	}
	return nil
}

// Run drains the buffer until the context ends. Implements contract.Worker.
func (d *DiskSink) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return ctx.Err()
		case e := <-d.queue:
			if err := d.repository.Append(e); err != nil {
				d.log.Error("Journal append failed", "kind", string(e.Kind()), "error", err)
			}
		}
	}
}

// drain flushes whatever is still buffered at shutdown.
func (d *DiskSink) drain() {
	for {
		select {
		case e := <-d.queue:
			if err := d.repository.Append(e); err != nil {
				d.log.Error("Journal append failed during drain", "kind", string(e.Kind()), "error", err)
			}
		default:
			return
		}
	}
}
