// Package domain contains the core concepts of the jam-room system.
// Aggregates record their changes in an event outbox; no runtime, network,
// or UI logic lives here.
package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"jamlab/domain/event"
	"jamlab/errors"
)

const maxRoomNameLength = 100

// Room is the authoritative in-memory model of one jam room. All mutation
// goes through its methods so the invariants hold:
//   - exactly one member carries RoleOwner while the room exists
//   - member count never exceeds Settings.MaxMembers
//   - audience members exist only when Settings.AllowAudience
//   - the owner is never removed directly; ownership transfers first
type Room struct {
	ID        string
	Name      string
	OwnerID   string
	Settings  RoomSettings
	CreatedAt time.Time

	members map[string]Member
	pending map[string]string // userID -> username awaiting approval
	outbox  []event.DomainEvent
}

// NewRoom creates a room with the owner auto-added as its first member and
// a RoomCreated event in the outbox.
func NewRoom(name, ownerID, ownerName string, settings RoomSettings) (*Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.Validation("room name must not be empty")
	}
	if len([]rune(name)) > maxRoomNameLength {
		return nil, errors.Validation("room name exceeds %d characters", maxRoomNameLength)
	}
	if err := settings.validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	room := &Room{
		ID:        uuid.NewString(),
		Name:      name,
		OwnerID:   ownerID,
		Settings:  settings,
		CreatedAt: now,
		members:   make(map[string]Member),
		pending:   make(map[string]string),
	}
	room.members[ownerID] = Member{
		UserID:   ownerID,
		Name:     ownerName,
		Role:     RoleOwner,
		JoinedAt: now,
	}
	room.record(event.RoomCreated{
		Header:     event.NewHeader(room.ID),
		Name:       name,
		OwnerID:    ownerID,
		Private:    settings.IsPrivate,
		MaxMembers: settings.MaxMembers,
		GenreTags:  settings.GenreTags,
	})
	return room, nil
}

// CanUserJoin reports whether a user may be admitted with the given role.
// Returns nil when admission would succeed.
func (r *Room) CanUserJoin(userID string, role Role) error {
	if _, ok := r.members[userID]; ok {
		return errors.StateConflict("user %s is already a member of room %s", userID, r.ID)
	}
	if len(r.members) >= r.Settings.MaxMembers {
		return errors.Capacity("room %s is full (%d/%d)", r.ID, len(r.members), r.Settings.MaxMembers)
	}
	if role == RoleAudience && !r.Settings.AllowAudience {
		return errors.Capacity("room %s does not allow audience members", r.ID)
	}
	if role == RoleOwner {
		return errors.StateConflict("room %s already has an owner", r.ID)
	}
	return nil
}

// AddMember admits a user and records a MemberJoined event.
func (r *Room) AddMember(userID, name string, role Role) error {
	if err := r.CanUserJoin(userID, role); err != nil {
		return err
	}
	member := Member{UserID: userID, Name: name, Role: role, JoinedAt: time.Now().UTC()}
	r.members[userID] = member
	r.record(event.MemberJoined{Header: event.NewHeader(r.ID), Member: toMemberInfo(member)})
	return nil
}

// RestoreMember re-admits a member with a previously saved record, used by
// the grace-period rejoin path. Capacity still applies: a suspended owner
// bypasses only the one-owner rule, never the member limit, so a seat
// taken during the grace window fails the restore.
func (r *Room) RestoreMember(member Member) error {
	if member.Role == RoleOwner {
		if r.OwnerID != member.UserID {
			return errors.StateConflict("user %s is not the suspended owner of room %s", member.UserID, r.ID)
		}
		if _, ok := r.members[member.UserID]; ok {
			return errors.StateConflict("user %s is already a member of room %s", member.UserID, r.ID)
		}
		if len(r.members) >= r.Settings.MaxMembers {
			return errors.Capacity("room %s is full (%d/%d)", r.ID, len(r.members), r.Settings.MaxMembers)
		}
	} else if err := r.CanUserJoin(member.UserID, member.Role); err != nil {
		return err
	}
	r.members[member.UserID] = member
	r.record(event.MemberJoined{Header: event.NewHeader(r.ID), Member: toMemberInfo(member)})
	return nil
}

// RemoveMember handles an intentional leave or a forced removal. The owner
// cannot be removed directly.
func (r *Room) RemoveMember(userID string) error {
	if _, ok := r.members[userID]; !ok {
		return errors.NotFound("user %s is not a member of room %s", userID, r.ID)
	}
	if userID == r.OwnerID {
		return errors.StateConflict("ownership of room %s must be transferred before removing the owner", r.ID)
	}
	delete(r.members, userID)
	r.record(event.MemberLeft{Header: event.NewHeader(r.ID), UserID: userID, Intentional: true})
	return nil
}

// Depart drops a member as part of the room lifecycle (grace entry, or an
// owner leaving an emptying room). Unlike RemoveMember it applies to the
// owner too: the room enters a suspended-owner state (OwnerID keeps
// pointing at the departed user) until the orchestrator resolves it.
func (r *Room) Depart(userID string, intentional bool) error {
	if _, ok := r.members[userID]; !ok {
		return errors.NotFound("user %s is not a member of room %s", userID, r.ID)
	}
	delete(r.members, userID)
	r.record(event.MemberLeft{Header: event.NewHeader(r.ID), UserID: userID, Intentional: intentional})
	return nil
}

// TransferOwnership hands the room to another current member. Fails with
// NOT_FOUND and mutates nothing when the target is not a member.
func (r *Room) TransferOwnership(newOwnerID string) error {
	if newOwnerID == r.OwnerID {
		return nil
	}
	target, ok := r.members[newOwnerID]
	if !ok {
		return errors.NotFound("user %s is not a member of room %s", newOwnerID, r.ID)
	}
	previousOwnerID := r.OwnerID
	if previous, ok := r.members[previousOwnerID]; ok {
		r.members[previousOwnerID] = previous.WithRole(RoleBandMember)
	}
	r.members[newOwnerID] = target.WithRole(RoleOwner)
	r.OwnerID = newOwnerID
	r.record(event.OwnershipTransferred{
		Header:     event.NewHeader(r.ID),
		FromUserID: previousOwnerID,
		ToUserID:   newOwnerID,
	})
	return nil
}

// UpdateSettings applies new settings and records the diff. An empty diff
// is a no-op and emits nothing.
func (r *Room) UpdateSettings(next RoomSettings, actorID string) error {
	if actorID != r.OwnerID {
		return errors.Permission("user %s is not the owner of room %s", actorID, r.ID)
	}
	if err := next.validate(); err != nil {
		return err
	}
	if next.MaxMembers < len(r.members) {
		return errors.Validation("max members %d is below current member count %d", next.MaxMembers, len(r.members))
	}
	diff := r.Settings.Diff(next)
	if len(diff) == 0 {
		return nil
	}
	r.Settings = next
	r.record(event.SettingsUpdated{Header: event.NewHeader(r.ID), ActorID: actorID, Diff: diff})
	return nil
}

// Close records the room closing. An empty actorID marks a system close
// (last member left or grace expiry on an empty room).
func (r *Room) Close(actorID, reason string) error {
	if actorID != "" && actorID != r.OwnerID {
		return errors.Permission("user %s is not the owner of room %s", actorID, r.ID)
	}
	r.record(event.RoomClosed{Header: event.NewHeader(r.ID), ActorID: actorID, Reason: reason})
	return nil
}

func (r *Room) HasMember(userID string) bool {
	_, ok := r.members[userID]
	return ok
}

func (r *Room) Member(userID string) (Member, bool) {
	m, ok := r.members[userID]
	return m, ok
}

func (r *Room) IsOwner(userID string) bool { return userID == r.OwnerID }

// CanUserKickMember allows owners and moderators to remove anyone but the
// owner; members cannot kick.
func (r *Room) CanUserKickMember(actorID, targetID string) bool {
	actor, ok := r.members[actorID]
	if !ok || targetID == r.OwnerID {
		return false
	}
	return actor.Role == RoleOwner || actor.Role == RoleModerator
}

func (r *Room) MemberCount() int { return len(r.members) }

// MembersSnapshot returns a copy of the membership ordered by join time,
// so callers can never bypass the aggregate's invariant checks.
func (r *Room) MembersSnapshot() []Member {
	members := lo.Values(r.members)
	sortMembers(members)
	return members
}

// MemberIDs returns the current member ids, the suspended owner excluded.
func (r *Room) MemberIDs() []string {
	return lo.Keys(r.members)
}

// SetMemberInstrument replaces the member record with the reported
// instrument profile. Readiness bookkeeping, no event.
func (r *Room) SetMemberInstrument(userID string, profile *InstrumentProfile) {
	if member, ok := r.members[userID]; ok {
		r.members[userID] = member.WithInstrument(profile)
	}
}

// AddPending marks a user as awaiting owner approval.
func (r *Room) AddPending(userID, username string) error {
	if _, ok := r.pending[userID]; ok {
		return errors.StateConflict("user %s already has a pending approval for room %s", userID, r.ID)
	}
	r.pending[userID] = username
	return nil
}

// RemovePending clears a pending approval entry, reporting whether it
// existed.
func (r *Room) RemovePending(userID string) bool {
	_, ok := r.pending[userID]
	delete(r.pending, userID)
	return ok
}

func (r *Room) HasPending(userID string) bool {
	_, ok := r.pending[userID]
	return ok
}

// PendingSnapshot lists users awaiting approval, ordered by user id so
// consecutive room-state broadcasts agree.
func (r *Room) PendingSnapshot() []PendingApproval {
	entries := lo.MapToSlice(r.pending, func(userID, username string) PendingApproval {
		return PendingApproval{UserID: userID, Username: username}
	})
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].UserID < entries[j].UserID
	})
	return entries
}

type PendingApproval struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// FlushEvents drains the outbox. Callers publish the returned slice in
// order.
func (r *Room) FlushEvents() []event.DomainEvent {
	out := r.outbox
	r.outbox = nil
	return out
}

func (r *Room) record(e event.DomainEvent) {
	r.outbox = append(r.outbox, e)
}

func toMemberInfo(m Member) event.MemberInfo {
	return event.MemberInfo{
		UserID:   m.UserID,
		Name:     m.Name,
		Role:     string(m.Role),
		JoinedAt: m.JoinedAt,
	}
}

func sortMembers(members []Member) {
	sort.Slice(members, func(i, j int) bool {
		if members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].UserID < members[j].UserID
		}
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})
}
