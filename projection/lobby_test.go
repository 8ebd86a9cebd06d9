package projection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jamlab/domain/event"
)

func header(roomID string, at time.Time) event.Header {
	return event.Header{Room: roomID, At: at}
}

func TestLobby_RoomLifecycle(t *testing.T) {
	req := require.New(t)
	lobby := NewLobby()
	ctx := context.Background()
	now := time.Now().UTC()

	// Given two rooms created one second apart
	req.NoError(lobby.Consume(ctx, event.RoomCreated{
		Header:     header("room-1", now),
		Name:       "Blues Basement",
		OwnerID:    "alice",
		MaxMembers: 4,
		GenreTags:  []string{"blues"},
	}))
	req.NoError(lobby.Consume(ctx, event.RoomCreated{
		Header:     header("room-2", now.Add(time.Second)),
		Name:       "Synth Loft",
		OwnerID:    "bob",
		Private:    true,
		MaxMembers: 8,
	}))

	// Then the listing is newest first
	entries := lobby.List()
	req.Len(entries, 2)
	req.Equal("room-2", entries[0].RoomID)
	req.Equal("room-1", entries[1].RoomID)
	req.Equal(1, entries[0].MemberCount)

	// Membership events move the counter
	req.NoError(lobby.Consume(ctx, event.MemberJoined{Header: header("room-1", now)}))
	req.NoError(lobby.Consume(ctx, event.MemberJoined{Header: header("room-1", now)}))
	req.NoError(lobby.Consume(ctx, event.MemberLeft{Header: header("room-1", now), UserID: "x"}))
	entry, ok := lobby.Entry("room-1")
	req.True(ok)
	req.Equal(2, entry.MemberCount)

	// Closing removes the room from the lobby
	req.NoError(lobby.Consume(ctx, event.RoomClosed{Header: header("room-2", now)}))
	_, ok = lobby.Entry("room-2")
	req.False(ok)
	req.Len(lobby.List(), 1)
}

func TestLobby_EventsForUnknownRoomsAreIgnored(t *testing.T) {
	req := require.New(t)
	lobby := NewLobby()
	ctx := context.Background()

	// Replay starting mid-stream must not fail or create phantom entries
	req.NoError(lobby.Consume(ctx, event.MemberJoined{Header: header("ghost", time.Now())}))
	req.NoError(lobby.Consume(ctx, event.RoomClosed{Header: header("ghost", time.Now())}))
	req.Empty(lobby.List())
}

func TestLobby_SettingsDiffReplay(t *testing.T) {
	req := require.New(t)
	lobby := NewLobby()
	ctx := context.Background()
	now := time.Now().UTC()

	req.NoError(lobby.Consume(ctx, event.RoomCreated{
		Header:     header("room-1", now),
		Name:       "Blues Basement",
		OwnerID:    "alice",
		MaxMembers: 4,
	}))

	// A diff-carrying update patches only the fields it names
	req.NoError(lobby.Consume(ctx, event.SettingsUpdated{
		Header:  header("room-1", now),
		ActorID: "alice",
		Diff: []event.FieldChange{
			{Field: "max_members", Old: "4", New: "10"},
			{Field: "is_private", Old: "false", New: "true"},
			{Field: "genre_tags", Old: "", New: "jazz,funk"},
		},
	}))

	entry, ok := lobby.Entry("room-1")
	req.True(ok)
	req.Equal(10, entry.MaxMembers)
	req.True(entry.Private)
	req.Equal([]string{"jazz", "funk"}, entry.GenreTags)
	req.Equal("Blues Basement", entry.Name)

	req.NoError(lobby.Consume(ctx, event.OwnershipTransferred{
		Header:     header("room-1", now),
		FromUserID: "alice",
		ToUserID:   "bob",
	}))
	entry, _ = lobby.Entry("room-1")
	req.Equal("bob", entry.OwnerID)
}

func TestLobby_DescriptionLanguageDetection(t *testing.T) {
	req := require.New(t)
	lobby := NewLobby()
	ctx := context.Background()
	now := time.Now().UTC()

	req.NoError(lobby.Consume(ctx, event.RoomCreated{
		Header:  header("room-1", now),
		Name:    "Chanson Corner",
		OwnerID: "alice",
	}))

	// A substantial description gets a language tag
	req.NoError(lobby.Consume(ctx, event.SettingsUpdated{
		Header: header("room-1", now),
		Diff: []event.FieldChange{
			{Field: "description", Old: "", New: "Une salle conviviale pour improviser de la chanson française tous les vendredis soirs"},
		},
	}))
	entry, _ := lobby.Entry("room-1")
	req.Equal("fr", entry.DescLanguage)

	// A short description stays untagged
	req.NoError(lobby.Consume(ctx, event.SettingsUpdated{
		Header: header("room-1", now),
		Diff: []event.FieldChange{
			{Field: "description", Old: "", New: "jam here"},
		},
	}))
	entry, _ = lobby.Entry("room-1")
	req.Empty(entry.DescLanguage)
}
