package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"jamlab/domain/event"
	"jamlab/errors"
)

func newTestRoom(t *testing.T, settings RoomSettings) *Room {
	t.Helper()
	room, err := NewRoom("Friday Jam", "owner-1", "Alice", settings)
	require.NoError(t, err)
	room.FlushEvents()
	return room
}

func TestNewRoom_OwnerAutoJoinedAndEventRecorded(t *testing.T) {
	req := require.New(t)

	room, err := NewRoom("  Friday Jam  ", "owner-1", "Alice", RoomSettings{MaxMembers: 4})
	req.NoError(err)

	// The owner is the first and only member
	req.Equal("Friday Jam", room.Name)
	req.Equal(1, room.MemberCount())
	req.True(room.IsOwner("owner-1"))
	owner, ok := room.Member("owner-1")
	req.True(ok)
	req.Equal(RoleOwner, owner.Role)

	// The outbox contains exactly one RoomCreated event
	events := room.FlushEvents()
	req.Len(events, 1)
	created, ok := events[0].(event.RoomCreated)
	req.True(ok)
	req.Equal(room.ID, created.RoomID())
	req.Equal("owner-1", created.OwnerID)

	// The outbox is empty after FlushEvents
	req.Empty(room.FlushEvents())
}

func TestNewRoom_NameValidation(t *testing.T) {
	req := require.New(t)

	_, err := NewRoom("   ", "owner-1", "Alice", RoomSettings{MaxMembers: 4})
	req.ErrorIs(err, errors.Sentinel(errors.CodeValidation))

	long := ""
	for i := 0; i < 101; i++ {
		long += "x"
	}
	_, err = NewRoom(long, "owner-1", "Alice", RoomSettings{MaxMembers: 4})
	req.ErrorIs(err, errors.Sentinel(errors.CodeValidation))
}

func TestRoom_AddMember_CapacityNeverExceeded(t *testing.T) {
	req := require.New(t)

	// Given a public room of 8 including the owner
	room := newTestRoom(t, RoomSettings{MaxMembers: 8})
	for i := 0; i < 7; i++ {
		req.NoError(room.AddMember(fmt.Sprintf("user-%d", i), fmt.Sprintf("User %d", i), RoleBandMember))
	}
	req.Equal(8, room.MemberCount())

	// When a 9th member is added
	err := room.AddMember("user-9", "User 9", RoleBandMember)

	// Then the call fails with CAPACITY and membership is unchanged
	req.ErrorIs(err, errors.Sentinel(errors.CodeCapacity))
	req.Equal(8, room.MemberCount())
}

func TestRoom_AddMember_DuplicateAndDisallowedRoles(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t, RoomSettings{MaxMembers: 8})

	// Duplicate membership is a state conflict
	req.NoError(room.AddMember("bob", "Bob", RoleBandMember))
	err := room.AddMember("bob", "Bob", RoleBandMember)
	req.ErrorIs(err, errors.Sentinel(errors.CodeStateConflict))

	// Audience is rejected while the room forbids it
	err = room.AddMember("carol", "Carol", RoleAudience)
	req.ErrorIs(err, errors.Sentinel(errors.CodeCapacity))

	// A second owner can never be added
	err = room.AddMember("dave", "Dave", RoleOwner)
	req.ErrorIs(err, errors.Sentinel(errors.CodeStateConflict))
}

func TestRoom_RemoveMember_OwnerIsProtected(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t, RoomSettings{MaxMembers: 8})
	req.NoError(room.AddMember("bob", "Bob", RoleBandMember))
	room.FlushEvents()

	// The owner cannot be removed before a transfer
	err := room.RemoveMember("owner-1")
	req.ErrorIs(err, errors.Sentinel(errors.CodeStateConflict))
	req.True(room.HasMember("owner-1"))

	// A regular member leaves and a MemberLeft event is recorded
	req.NoError(room.RemoveMember("bob"))
	events := room.FlushEvents()
	req.Len(events, 1)
	left, ok := events[0].(event.MemberLeft)
	req.True(ok)
	req.Equal("bob", left.UserID)
	req.True(left.Intentional)
}

func TestRoom_TransferOwnership(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t, RoomSettings{MaxMembers: 8})
	req.NoError(room.AddMember("bob", "Bob", RoleBandMember))
	room.FlushEvents()

	// Transferring to a non-member fails and mutates nothing
	err := room.TransferOwnership("ghost")
	req.ErrorIs(err, errors.Sentinel(errors.CodeNotFound))
	req.True(room.IsOwner("owner-1"))
	req.Empty(room.FlushEvents())

	// Transferring to the current owner is a no-op
	req.NoError(room.TransferOwnership("owner-1"))
	req.Empty(room.FlushEvents())

	// A valid transfer swaps exactly one OWNER role
	req.NoError(room.TransferOwnership("bob"))
	req.True(room.IsOwner("bob"))
	bob, _ := room.Member("bob")
	req.Equal(RoleOwner, bob.Role)
	previous, _ := room.Member("owner-1")
	req.Equal(RoleBandMember, previous.Role)

	owners := 0
	for _, m := range room.MembersSnapshot() {
		if m.Role == RoleOwner {
			owners++
		}
	}
	req.Equal(1, owners)

	events := room.FlushEvents()
	req.Len(events, 1)
	transferred, ok := events[0].(event.OwnershipTransferred)
	req.True(ok)
	req.Equal("owner-1", transferred.FromUserID)
	req.Equal("bob", transferred.ToUserID)
}

func TestRoom_UpdateSettings_DiffAndNoOp(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t, RoomSettings{MaxMembers: 8, GenreTags: []string{"jazz"}})

	// Only the owner may update settings
	err := room.UpdateSettings(RoomSettings{MaxMembers: 8}, "bob")
	req.ErrorIs(err, errors.Sentinel(errors.CodePermission))

	// An identical settings value emits nothing
	req.NoError(room.UpdateSettings(RoomSettings{MaxMembers: 8, GenreTags: []string{"jazz"}}, "owner-1"))
	req.Empty(room.FlushEvents())

	// A real change records the diff, not just the new value
	req.NoError(room.UpdateSettings(RoomSettings{MaxMembers: 10, IsPrivate: true, GenreTags: []string{"jazz"}}, "owner-1"))
	events := room.FlushEvents()
	req.Len(events, 1)
	updated, ok := events[0].(event.SettingsUpdated)
	req.True(ok)
	req.Len(updated.Diff, 2)

	fields := []string{updated.Diff[0].Field, updated.Diff[1].Field}
	req.Contains(fields, "max_members")
	req.Contains(fields, "is_private")
}

func TestRoom_Pending(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t, RoomSettings{MaxMembers: 8, IsPrivate: true})

	req.NoError(room.AddPending("bob", "Bob"))
	err := room.AddPending("bob", "Bob")
	req.ErrorIs(err, errors.Sentinel(errors.CodeStateConflict))

	req.Len(room.PendingSnapshot(), 1)
	req.True(room.RemovePending("bob"))
	req.False(room.RemovePending("bob"))
	req.Empty(room.PendingSnapshot())
}

func TestRoom_EvictAndRestore_GracePath(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t, RoomSettings{MaxMembers: 8})
	req.NoError(room.AddMember("bob", "Bob", RoleBandMember))
	room.FlushEvents()

	// An unintentional disconnect may evict the owner; OwnerID keeps
	// pointing at the departed user until the grace period resolves.
	snapshot, _ := room.Member("owner-1")
	req.NoError(room.Depart("owner-1", false))
	req.False(room.HasMember("owner-1"))
	req.True(room.IsOwner("owner-1"))

	events := room.FlushEvents()
	req.Len(events, 1)
	left := events[0].(event.MemberLeft)
	req.False(left.Intentional)

	// The rejoin restores the saved record with the OWNER role intact
	req.NoError(room.RestoreMember(snapshot))
	restored, ok := room.Member("owner-1")
	req.True(ok)
	req.Equal(RoleOwner, restored.Role)
}

func TestRoom_RestoreMember_OwnerSeatTakenDuringGrace(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t, RoomSettings{MaxMembers: 2})
	req.NoError(room.AddMember("bob", "Bob", RoleBandMember))

	// The owner drops and a newcomer takes the freed seat
	snapshot, _ := room.Member("owner-1")
	req.NoError(room.Depart("owner-1", false))
	req.NoError(room.AddMember("carol", "Carol", RoleBandMember))
	req.Equal(2, room.MemberCount())

	// The suspended owner's restore must not push past MaxMembers
	err := room.RestoreMember(snapshot)
	req.ErrorIs(err, errors.Sentinel(errors.CodeCapacity))
	req.Equal(2, room.MemberCount())
	req.False(room.HasMember("owner-1"))
}

func TestRoom_CanUserKickMember(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t, RoomSettings{MaxMembers: 8})
	req.NoError(room.AddMember("mod", "Mod", RoleModerator))
	req.NoError(room.AddMember("bob", "Bob", RoleBandMember))
	req.NoError(room.AddMember("carol", "Carol", RoleBandMember))

	// Owners and moderators may remove regular members
	req.True(room.CanUserKickMember("owner-1", "bob"))
	req.True(room.CanUserKickMember("mod", "bob"))

	// Regular members kick nobody
	req.False(room.CanUserKickMember("bob", "carol"))

	// The owner is never a valid target, whoever asks
	req.False(room.CanUserKickMember("mod", "owner-1"))
	req.False(room.CanUserKickMember("owner-1", "owner-1"))

	// A non-member actor has no kick rights
	req.False(room.CanUserKickMember("stranger", "bob"))
}

func TestRoom_PendingSnapshot_StableOrder(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t, RoomSettings{MaxMembers: 8, IsPrivate: true})

	req.NoError(room.AddPending("zoe", "Zoe"))
	req.NoError(room.AddPending("bob", "Bob"))
	req.NoError(room.AddPending("mia", "Mia"))

	want := []string{"bob", "mia", "zoe"}
	for i := 0; i < 10; i++ {
		snapshot := room.PendingSnapshot()
		req.Len(snapshot, 3)
		for j, entry := range snapshot {
			req.Equal(want[j], entry.UserID)
		}
	}
}
