// Package projection builds local read models from observed events.
// Handles ordering and per-room digests.
// Does not emit events or mutate room state.
package projection

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/abadojack/whatlanggo"

	"jamlab/domain/event"
)

// LobbyEntry is the browsable digest of one open room, kept current from
// the event stream alone.
type LobbyEntry struct {
	RoomID       string    `json:"room_id"`
	Name         string    `json:"name"`
	OwnerID      string    `json:"owner_id"`
	Private      bool      `json:"private"`
	MaxMembers   int       `json:"max_members"`
	MemberCount  int       `json:"member_count"`
	GenreTags    []string  `json:"genre_tags"`
	Description  string    `json:"description"`
	DescLanguage string    `json:"desc_language,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Lobby is the read-side room directory. It consumes lifecycle events and
// answers listing queries; it never reaches back into the aggregates.
type Lobby struct {
	mu      sync.RWMutex
	entries map[string]*LobbyEntry
}

func NewLobby() *Lobby {
	return &Lobby{entries: make(map[string]*LobbyEntry)}
}

// Consume applies one event to the lobby view. Unknown kinds and events
// for unknown rooms are ignored; the lobby tolerates replay from the
// middle of a stream.
func (l *Lobby) Consume(_ context.Context, e event.DomainEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch evt := e.(type) {
	case event.RoomCreated:
		l.entries[evt.RoomID()] = &LobbyEntry{
			RoomID:      evt.RoomID(),
			Name:        evt.Name,
			OwnerID:     evt.OwnerID,
			Private:     evt.Private,
			MaxMembers:  evt.MaxMembers,
			MemberCount: 1,
			GenreTags:   evt.GenreTags,
			CreatedAt:   evt.OccurredAt(),
		}
	case event.RoomClosed:
		delete(l.entries, evt.RoomID())
	case event.MemberJoined:
		if entry, ok := l.entries[evt.RoomID()]; ok {
			entry.MemberCount++
		}
	case event.MemberLeft:
		if entry, ok := l.entries[evt.RoomID()]; ok && entry.MemberCount > 0 {
			entry.MemberCount--
		}
	case event.OwnershipTransferred:
		if entry, ok := l.entries[evt.RoomID()]; ok {
			entry.OwnerID = evt.ToUserID
		}
	case event.SettingsUpdated:
		if entry, ok := l.entries[evt.RoomID()]; ok {
			applyDiff(entry, evt.Diff)
		}
	}
	return nil
}

// applyDiff replays a settings diff onto the entry. Fields absent from the
// diff did not change.
func applyDiff(entry *LobbyEntry, diff []event.FieldChange) {
	for _, change := range diff {
		switch change.Field {
		case "max_members":
			if n, err := strconv.Atoi(change.New); err == nil {
				entry.MaxMembers = n
			}
		case "is_private":
			entry.Private = change.New == "true"
		case "genre_tags":
			if change.New == "" {
				entry.GenreTags = nil
			} else {
				entry.GenreTags = strings.Split(change.New, ",")
			}
		case "description":
			entry.Description = change.New
			entry.DescLanguage = detectLanguage(change.New)
		}
	}
}

// detectLanguage tags a description with its ISO language code so clients
// can filter the lobby. Short or ambiguous text stays untagged.
func detectLanguage(text string) string {
	if len(text) < 20 {
		return ""
	}
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}

// List returns the open rooms, newest first.
func (l *Lobby) List() []LobbyEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entries := make([]LobbyEntry, 0, len(l.entries))
	for _, entry := range l.entries {
		entries = append(entries, *entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].RoomID < entries[j].RoomID
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries
}

// Entry returns one room's digest.
func (l *Lobby) Entry(roomID string) (LobbyEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, ok := l.entries[roomID]
	if !ok {
		return LobbyEntry{}, false
	}
	return *entry, true
}

// Kinds lists the event kinds the lobby consumes, for wiring.
func Kinds() []event.Kind {
	return []event.Kind{
		event.KindRoomCreated,
		event.KindRoomClosed,
		event.KindMemberJoined,
		event.KindMemberLeft,
		event.KindOwnershipTransferred,
		event.KindSettingsUpdated,
	}
}
