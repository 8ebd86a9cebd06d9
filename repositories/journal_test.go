package repositories

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"jamlab/domain/event"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Append_Multiple_Events(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewJournalRepository(db, slog.Default(), nil)
	at := time.Now().UTC()
	events := []event.DomainEvent{
		event.RoomCreated{Header: event.Header{Room: "room-1", At: at}, Name: "Blues Basement", OwnerID: "alice"},
		event.MemberJoined{Header: event.Header{Room: "room-1", At: at.Add(time.Minute)}},
		event.MemberLeft{Header: event.Header{Room: "room-1", At: at.Add(2 * time.Minute)}, UserID: "bob"},
	}
	for _, e := range events {
		req.NoError(repository.Append(e))
	}
	// An event of another room must not leak into the scan
	req.NoError(repository.Append(event.RoomCreated{
		Header: event.Header{Room: "room-2", At: at},
		Name:   "Synth Loft",
	}))

	stored, cursor, err := repository.EventsForRoom("room-1", nil)
	req.NoError(err)
	req.NotNil(cursor)
	req.Len(stored, 3)

	// Newest first, payload decodable from the envelope
	req.Equal(event.KindMemberLeft, stored[0].Kind)
	req.Equal(event.KindMemberJoined, stored[1].Kind)
	req.Equal(event.KindRoomCreated, stored[2].Kind)

	var left event.MemberLeft
	req.NoError(json.Unmarshal(stored[0].Payload, &left))
	req.Equal("bob", left.UserID)
}

func Test_Append_Limit_And_Cursor(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	limit := 2
	repository := NewJournalRepository(db, slog.Default(), &limit)
	at := time.Now().UTC()
	for i := 0; i < 5; i++ {
		req.NoError(repository.Append(event.MemberJoined{
			Header: event.Header{Room: "room-1", At: at.Add(time.Duration(i) * time.Minute)},
		}))
	}

	// First page holds the two newest events
	page1, cursor, err := repository.EventsForRoom("room-1", nil)
	req.NoError(err)
	req.Len(page1, limit)
	req.NotNil(cursor)

	// The cursor resumes strictly after the last seen event
	page2, cursor, err := repository.EventsForRoom("room-1", cursor)
	req.NoError(err)
	req.Len(page2, limit)
	req.True(page1[1].At.After(page2[0].At))

	page3, _, err := repository.EventsForRoom("room-1", cursor)
	req.NoError(err)
	req.Len(page3, 1)
}
