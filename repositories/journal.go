//go:generate go run go.uber.org/mock/mockgen -source=journal.go -destination=../mocks/mock_journal_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"jamlab/domain/event"
)

type IJournalRepository interface {
	Append(e event.DomainEvent) error
	EventsForRoom(roomID string, cursor *string) ([]StoredEvent, *string, error)
}

// StoredEvent is the persisted envelope. The payload keeps the event's own
// JSON shape; readers switch on Kind to decode it.
type StoredEvent struct {
	Kind    event.Kind      `json:"kind"`
	Room    string          `json:"room"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

type JournalRepository struct {
	db          *badger.DB
	log         *slog.Logger
	limitEvents *int
}

func NewJournalRepository(db *badger.DB, log *slog.Logger, limitEvents *int) JournalRepository {
	return JournalRepository{db: db, log: log, limitEvents: limitEvents}
}

// Append persists one event in BadgerDB.
// The key is formatted as "evt:{room_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two events
//     arrive at the same nanosecond.
func (j JournalRepository) Append(e event.DomainEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", e.Kind(), err)
	}
	envelope, err := json.Marshal(StoredEvent{
		Kind:    e.Kind(),
		Room:    e.RoomID(),
		At:      e.OccurredAt(),
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", e.Kind(), err)
	}

	key := fmt.Sprintf("evt:%s:%019d:%s",
		e.RoomID(),
		e.OccurredAt().UnixNano(),
		uuid.NewString(),
	)
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), envelope)
	})
}

// EventsForRoom retrieves a room's events using a prefix scan, newest
// first. Thanks to the padded timestamp in the key, events are naturally
// sorted by time. It stops once the configured limitEvents is reached and
// returns a cursor for the next page.
func (j JournalRepository) EventsForRoom(roomID string, cursor *string) ([]StoredEvent, *string, error) {
	var rawEvents [][]byte
	var lastKey string
	err := j.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("evt:%s:", roomID)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if j.limitEvents != nil && len(rawEvents) == *j.limitEvents {
				j.log.Debug(fmt.Sprintf("Maximum of %d events reached", *j.limitEvents))
				break
			}
			item := it.Item()
			// Memorize cursor part of the actual key
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				rawEvents = append(rawEvents, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	events := make([]StoredEvent, 0, len(rawEvents))
	for _, raw := range rawEvents {
		var stored StoredEvent
		if err = json.Unmarshal(raw, &stored); err != nil {
			return nil, nil, err
		}
		events = append(events, stored)
	}
	return events, &lastKey, nil
}
