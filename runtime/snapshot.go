package runtime

import (
	"time"

	"jamlab/domain"
)

// RoomState is the authoritative room snapshot broadcast after every
// admission or membership change. Consumers replace, never merge, their
// prior view with it.
type RoomState struct {
	RoomID    string                   `json:"room_id"`
	Name      string                   `json:"name"`
	OwnerID   string                   `json:"owner_id"`
	Settings  domain.RoomSettings      `json:"settings"`
	CreatedAt time.Time                `json:"created_at"`
	Members   []domain.Member          `json:"members"`
	Pending   []domain.PendingApproval `json:"pending"`
}

// SnapshotRoom captures the full authoritative state of a room. Callers
// must hold the runtime locker.
func SnapshotRoom(room *domain.Room) RoomState {
	return RoomState{
		RoomID:    room.ID,
		Name:      room.Name,
		OwnerID:   room.OwnerID,
		Settings:  room.Settings,
		CreatedAt: room.CreatedAt,
		Members:   room.MembersSnapshot(),
		Pending:   room.PendingSnapshot(),
	}
}

// RoomSummary is the lobby-facing digest broadcast to every connection
// when a room appears.
type RoomSummary struct {
	RoomID      string   `json:"room_id"`
	Name        string   `json:"name"`
	OwnerID     string   `json:"owner_id"`
	Private     bool     `json:"private"`
	MaxMembers  int      `json:"max_members"`
	MemberCount int      `json:"member_count"`
	GenreTags   []string `json:"genre_tags"`
}

func SummarizeRoom(room *domain.Room) RoomSummary {
	return RoomSummary{
		RoomID:      room.ID,
		Name:        room.Name,
		OwnerID:     room.OwnerID,
		Private:     room.Settings.IsPrivate,
		MaxMembers:  room.Settings.MaxMembers,
		MemberCount: room.MemberCount(),
		GenreTags:   room.Settings.GenreTags,
	}
}
