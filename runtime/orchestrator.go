package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"jamlab/contract"
	"jamlab/domain"
	"jamlab/domain/event"
	"jamlab/errors"
)

// Orchestrator drives the membership lifecycle: room creation, the four
// join paths, intentional and unintentional leaves, settings updates, and
// ownership transfer. It owns the room table and the single mutex that
// serializes every mutation of per-room state; timer callbacks,
// disconnects, and rejoins all funnel through that lock and re-check state
// before acting.
type Orchestrator struct {
	mu       sync.Mutex
	log      *slog.Logger
	rooms    map[string]*domain.Room
	ready    map[string]Set // roomID -> userIDs ready for playback
	registry *Registry
	bus      *Bus
	timers   *TimerTable
	identity contract.IdentityDirectory
	censor   contract.TextCensor
	approval contract.ApprovalGateway

	gracePeriod time.Duration
}

func NewOrchestrator(
	log *slog.Logger,
	registry *Registry,
	bus *Bus,
	timers *TimerTable,
	identity contract.IdentityDirectory,
	censor contract.TextCensor,
	gracePeriod time.Duration,
) *Orchestrator {
	o := &Orchestrator{
		log:         log,
		rooms:       make(map[string]*domain.Room),
		ready:       make(map[string]Set),
		registry:    registry,
		bus:         bus,
		timers:      timers,
		identity:    identity,
		censor:      censor,
		gracePeriod: gracePeriod,
	}
	bus.Subscribe(event.KindInstrumentsReady, o.onInstrumentsReady)
	bus.Subscribe(event.KindOnboardingCompleted, o.onOnboardingCompleted)
	return o
}

// AttachApproval wires the approval engine in after both components exist.
func (o *Orchestrator) AttachApproval(gateway contract.ApprovalGateway) {
	o.approval = gateway
}

// Room implements contract.RoomDirectory.
func (o *Orchestrator) Room(roomID string) (*domain.Room, bool) {
	room, ok := o.rooms[roomID]
	return room, ok
}

// Locker implements contract.RoomDirectory.
func (o *Orchestrator) Locker() sync.Locker { return &o.mu }

// CreateRoom creates the aggregate with the creator auto-joined as owner,
// opens the room channel (plus the approval channel when private), and
// announces the room to every connection.
func (o *Orchestrator) CreateRoom(ctx context.Context, connID, userID, name string, settings domain.RoomSettings) (RoomState, error) {
	identity, err := o.identity.Lookup(userID)
	if err != nil {
		return RoomState{}, errors.NotFound("user %s is unknown", userID)
	}
	if _, bound := o.registry.BindingFor(connID); bound {
		return RoomState{}, errors.StateConflict("connection %s is already in a room", connID)
	}

	var masked []string
	name, masked = o.censor.Censor(name)
	if len(masked) > 0 {
		o.log.Info("Room name censored", "user", userID, "words", masked)
	}
	settings.Description, _ = o.censor.Censor(settings.Description)

	o.mu.Lock()
	room, err := domain.NewRoom(name, userID, identity.DisplayName, settings)
	if err != nil {
		o.mu.Unlock()
		return RoomState{}, err
	}
	o.rooms[room.ID] = room
	events := room.FlushEvents()
	state := SnapshotRoom(room)
	summary := SummarizeRoom(room)
	o.mu.Unlock()

	if err := o.registry.Bind(connID, room.ID, userID); err != nil {
		o.mu.Lock()
		delete(o.rooms, room.ID)
		o.mu.Unlock()
		return RoomState{}, err
	}
	o.registry.JoinChannel(room.ID, connID)
	if settings.IsPrivate {
		o.registry.OpenApprovalChannel(room.ID)
		o.registry.JoinApprovalChannel(room.ID, connID)
	}

	o.publish(ctx, events)
	o.registry.BroadcastAll(contract.Frame{Action: contract.ActionRoomCreated, Data: summary})
	return state, nil
}

// JoinRoom selects exactly one of four admission paths, in priority
// order: active-member rejoin, grace-period restore, approval redirect,
// direct admission. The second return value reports whether the user was
// admitted; an approval redirect succeeds without admitting.
func (o *Orchestrator) JoinRoom(ctx context.Context, connID, roomID, userID, username string, role domain.Role) (RoomState, bool, error) {
	identity, err := o.identity.Lookup(userID)
	if err != nil {
		return RoomState{}, false, errors.NotFound("user %s is unknown", userID)
	}
	if username == "" {
		username = identity.DisplayName
	}

	// An explicit leave forces this attempt through the regular admission
	// paths: the mark is cleared now and any grace record is discarded.
	if o.registry.WasIntentionalLeave(userID) {
		o.registry.RemoveGracePeriod(userID, roomID)
		o.timers.Cancel(graceTimerKey(roomID, userID))
	}

	o.mu.Lock()
	room, ok := o.rooms[roomID]
	if !ok {
		o.mu.Unlock()
		return RoomState{}, false, errors.NotFound("room %s does not exist", roomID)
	}

	// Path (a): already an active member, rejoin idempotently.
	if room.HasMember(userID) {
		state := SnapshotRoom(room)
		o.mu.Unlock()
		if err := o.registry.Bind(connID, roomID, userID); err != nil {
			return RoomState{}, false, err
		}
		o.registry.JoinChannel(roomID, connID)
		o.registry.SendTo(connID, contract.Frame{Action: contract.ActionRoomState, Data: state})
		o.registry.Broadcast(roomID, contract.Frame{Action: contract.ActionMemberRejoined, Data: map[string]string{"user_id": userID}}, connID)
		o.publish(ctx, []event.DomainEvent{event.MemberRejoined{Header: event.NewHeader(roomID), UserID: userID}})
		return state, true, nil
	}

	// Path (b): unexpired grace snapshot, restore without approval.
	if snapshot, claimed := o.registry.ClaimGracePeriod(userID, roomID); claimed {
		o.timers.Cancel(graceTimerKey(roomID, userID))
		return o.restoreFromGrace(ctx, room, snapshot, connID, userID, role)
	}

	// Path (c): band members knock on private rooms.
	if role == domain.RoleBandMember && room.Settings.IsPrivate {
		o.mu.Unlock()
		if o.approval == nil {
			return RoomState{}, false, errors.StateConflict("room %s requires approval but no approval engine is attached", roomID)
		}
		if err := o.approval.Request(ctx, connID, roomID, userID, username, role); err != nil {
			return RoomState{}, false, err
		}
		return RoomState{}, false, nil
	}

	// Path (d): direct admission.
	if err := room.AddMember(userID, username, role); err != nil {
		o.mu.Unlock()
		return RoomState{}, false, err
	}
	events := room.FlushEvents()
	events = append(events, event.RoomJoined{
		Header:   event.NewHeader(roomID),
		UserID:   userID,
		Username: username,
		Role:     string(role),
	})
	state := SnapshotRoom(room)
	o.mu.Unlock()

	if err := o.registry.Bind(connID, roomID, userID); err != nil {
		return RoomState{}, false, err
	}
	o.registry.JoinChannel(roomID, connID)
	o.publish(ctx, events)
	o.broadcastState(roomID, state)
	return state, true, nil
}

// restoreFromGrace re-admits a member from their grace snapshot. The
// requested role wins over a previously held non-owner role and discards
// the saved instrument; a previously held OWNER role is always preserved
// regardless of the request. Compatibility behavior, kept as specified.
func (o *Orchestrator) restoreFromGrace(ctx context.Context, room *domain.Room, snapshot GraceSnapshot, connID, userID string, role domain.Role) (RoomState, bool, error) {
	member := snapshot.Member
	if member.Role != domain.RoleOwner && role != "" && role != member.Role {
		member = member.WithRole(role).WithInstrument(nil)
		snapshot.Ready = false
	}

	if err := room.RestoreMember(member); err != nil {
		// The claim already disarmed the expiry check, so a suspended
		// owner must be resolved here or the room stays ownerless.
		var events []event.DomainEvent
		if room.IsOwner(userID) && room.MemberCount() > 0 {
			if terr := room.TransferOwnership(o.pickSuccessor(room, userID)); terr != nil {
				o.log.Error("Ownership transfer after failed restore", "room", room.ID, "error", terr)
			}
			events = room.FlushEvents()
		}
		state := SnapshotRoom(room)
		o.mu.Unlock()
		if len(events) > 0 {
			o.publish(ctx, events)
			o.broadcastState(room.ID, state)
		}
		return RoomState{}, false, err
	}
	events := room.FlushEvents()
	if snapshot.Ready {
		o.markReady(room.ID, userID)
	} else {
		events = append(events, event.RoomJoined{
			Header:   event.NewHeader(room.ID),
			UserID:   userID,
			Username: member.Name,
			Role:     string(member.Role),
		})
	}
	state := SnapshotRoom(room)
	o.mu.Unlock()

	if err := o.registry.Bind(connID, room.ID, userID); err != nil {
		return RoomState{}, false, err
	}
	o.registry.JoinChannel(room.ID, connID)
	o.publish(ctx, events)
	o.broadcastState(room.ID, state)
	return state, true, nil
}

// LeaveRoom handles an explicit leave. An owner leaving hands the room to
// any remaining member immediately, or closes it when none remain.
func (o *Orchestrator) LeaveRoom(ctx context.Context, connID string) error {
	binding, ok := o.registry.BindingFor(connID)
	if !ok {
		return errors.NotFound("connection %s is not in a room", connID)
	}

	o.mu.Lock()
	room, ok := o.rooms[binding.RoomID]
	if !ok {
		o.mu.Unlock()
		return errors.NotFound("room %s does not exist", binding.RoomID)
	}
	if !room.HasMember(binding.UserID) {
		o.mu.Unlock()
		return errors.NotFound("user %s is not a member of room %s", binding.UserID, binding.RoomID)
	}

	o.registry.MarkIntentionalLeave(binding.UserID)

	var events []event.DomainEvent
	if room.IsOwner(binding.UserID) && room.MemberCount() > 1 {
		successor := o.pickSuccessor(room, binding.UserID)
		if err := room.TransferOwnership(successor); err != nil {
			o.mu.Unlock()
			return err
		}
		if err := room.RemoveMember(binding.UserID); err != nil {
			o.mu.Unlock()
			return err
		}
	} else if err := room.Depart(binding.UserID, true); err != nil {
		o.mu.Unlock()
		return err
	}
	events = append(events, room.FlushEvents()...)

	closed := room.MemberCount() == 0
	var state RoomState
	if closed {
		room.Close("", "last member left")
		events = append(events, room.FlushEvents()...)
		delete(o.rooms, binding.RoomID)
		o.unmarkRoom(binding.RoomID)
	} else {
		state = SnapshotRoom(room)
	}
	o.mu.Unlock()

	o.registry.Unbind(connID)
	o.registry.LeaveChannel(binding.RoomID, connID)
	o.registry.LeaveApprovalChannel(binding.RoomID, connID)
	o.registry.SendTo(connID, contract.Frame{Action: contract.ActionLeftRoom, Data: map[string]string{"room_id": binding.RoomID}})

	o.publish(ctx, events)
	if closed {
		o.registry.CloseApprovalChannel(binding.RoomID)
		o.registry.BroadcastAll(contract.Frame{Action: contract.ActionRoomClosed, Data: map[string]string{"room_id": binding.RoomID}})
	} else {
		o.broadcastState(binding.RoomID, state)
	}
	return nil
}

// HandleDisconnect processes an abrupt connection loss: the member enters
// a grace period and a delayed check decides between restore, ownership
// transfer, and closure.
func (o *Orchestrator) HandleDisconnect(ctx context.Context, connID string) {
	if o.approval != nil {
		o.approval.HandleDisconnect(ctx, connID)
	}

	binding, bound := o.registry.BindingFor(connID)
	if !bound {
		o.registry.Deregister(connID)
		return
	}

	o.mu.Lock()
	room, ok := o.rooms[binding.RoomID]
	if !ok {
		o.mu.Unlock()
		o.registry.Deregister(connID)
		return
	}
	member, isMember := room.Member(binding.UserID)
	if !isMember {
		o.mu.Unlock()
		o.registry.Deregister(connID)
		return
	}

	snapshot := GraceSnapshot{Member: member, Ready: o.isReady(binding.RoomID, binding.UserID)}
	if err := room.Depart(binding.UserID, false); err != nil {
		o.mu.Unlock()
		o.registry.Deregister(connID)
		return
	}
	o.unmarkReady(binding.RoomID, binding.UserID)
	events := room.FlushEvents()
	state := SnapshotRoom(room)
	empty := room.MemberCount() == 0
	o.mu.Unlock()

	deadline := time.Now().Add(o.gracePeriod)
	o.registry.EnterGracePeriod(binding.UserID, binding.RoomID, snapshot, deadline)
	o.timers.Schedule(graceTimerKey(binding.RoomID, binding.UserID), deadline, func() {
		o.onGraceExpired(context.Background(), binding.RoomID, binding.UserID)
	})

	o.registry.Deregister(connID)
	o.publish(ctx, events)
	if !empty {
		o.broadcastState(binding.RoomID, state)
	}
	o.log.Info("Member entered grace period",
		"room", binding.RoomID, "user", binding.UserID, "deadline", deadline)
}

// onGraceExpired is the delayed check scheduled on an unintentional
// disconnect. The grace record may have been claimed by a rejoin between
// scheduling and firing, so claiming it here is the re-check: no record,
// no action.
func (o *Orchestrator) onGraceExpired(ctx context.Context, roomID, userID string) {
	if _, stillPending := o.registry.RemoveGracePeriod(userID, roomID); !stillPending {
		return
	}

	o.mu.Lock()
	room, ok := o.rooms[roomID]
	if !ok {
		o.mu.Unlock()
		return
	}

	var events []event.DomainEvent
	closed := false
	var state RoomState
	if room.MemberCount() == 0 {
		room.Close("", "grace period expired with no members left")
		events = room.FlushEvents()
		delete(o.rooms, roomID)
		o.unmarkRoom(roomID)
		closed = true
	} else if room.IsOwner(userID) {
		// The departed owner never came back: hand the room to any
		// remaining member.
		successor := o.pickSuccessor(room, userID)
		if err := room.TransferOwnership(successor); err != nil {
			o.log.Error("Delayed ownership transfer failed", "room", roomID, "error", err)
			o.mu.Unlock()
			return
		}
		events = room.FlushEvents()
		state = SnapshotRoom(room)
	} else {
		state = SnapshotRoom(room)
	}
	o.mu.Unlock()

	o.publish(ctx, events)
	if closed {
		o.registry.CloseApprovalChannel(roomID)
		o.registry.BroadcastAll(contract.Frame{Action: contract.ActionRoomClosed, Data: map[string]string{"room_id": roomID}})
	} else {
		o.broadcastState(roomID, state)
	}
}

// UpdateSettings applies a settings change; only the owner may call it.
// Toggling privacy opens or closes the approval channel in step.
func (o *Orchestrator) UpdateSettings(ctx context.Context, connID string, next domain.RoomSettings) error {
	binding, ok := o.registry.BindingFor(connID)
	if !ok {
		return errors.NotFound("connection %s is not in a room", connID)
	}
	next.Description, _ = o.censor.Censor(next.Description)

	o.mu.Lock()
	room, ok := o.rooms[binding.RoomID]
	if !ok {
		o.mu.Unlock()
		return errors.NotFound("room %s does not exist", binding.RoomID)
	}
	wasPrivate := room.Settings.IsPrivate
	if err := room.UpdateSettings(next, binding.UserID); err != nil {
		o.mu.Unlock()
		return err
	}
	events := room.FlushEvents()
	state := SnapshotRoom(room)
	nowPrivate := room.Settings.IsPrivate
	o.mu.Unlock()

	if len(events) == 0 {
		return nil
	}
	if wasPrivate != nowPrivate {
		if nowPrivate {
			o.registry.OpenApprovalChannel(binding.RoomID)
			o.registry.JoinApprovalChannel(binding.RoomID, connID)
		} else {
			o.registry.CloseApprovalChannel(binding.RoomID)
		}
	}
	o.publish(ctx, events)
	o.broadcastState(binding.RoomID, state)
	return nil
}

// TransferOwnership is the explicit owner-initiated transfer.
func (o *Orchestrator) TransferOwnership(ctx context.Context, connID, newOwnerID string) error {
	binding, ok := o.registry.BindingFor(connID)
	if !ok {
		return errors.NotFound("connection %s is not in a room", connID)
	}

	o.mu.Lock()
	room, ok := o.rooms[binding.RoomID]
	if !ok {
		o.mu.Unlock()
		return errors.NotFound("room %s does not exist", binding.RoomID)
	}
	if !room.IsOwner(binding.UserID) {
		o.mu.Unlock()
		return errors.Permission("user %s is not the owner of room %s", binding.UserID, binding.RoomID)
	}
	if err := room.TransferOwnership(newOwnerID); err != nil {
		o.mu.Unlock()
		return err
	}
	events := room.FlushEvents()
	state := SnapshotRoom(room)
	o.mu.Unlock()

	if len(events) == 0 {
		return nil
	}
	o.publish(ctx, events)
	o.broadcastState(binding.RoomID, state)
	return nil
}

// RoomStateFor returns the snapshot of the room a connection is bound to.
func (o *Orchestrator) RoomStateFor(connID string) (RoomState, error) {
	binding, ok := o.registry.BindingFor(connID)
	if !ok {
		return RoomState{}, errors.NotFound("connection %s is not in a room", connID)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	room, ok := o.rooms[binding.RoomID]
	if !ok {
		return RoomState{}, errors.NotFound("room %s does not exist", binding.RoomID)
	}
	return SnapshotRoom(room), nil
}

// onInstrumentsReady records the reported instrument profile on the
// member so grace-period restores preserve it.
func (o *Orchestrator) onInstrumentsReady(_ context.Context, e event.DomainEvent) error {
	ready, ok := e.(event.InstrumentsReady)
	if !ok {
		return nil
	}
	profile := instrumentFromPayload(ready.Payload)

	o.mu.Lock()
	defer o.mu.Unlock()
	if room, ok := o.rooms[ready.Room]; ok {
		room.SetMemberInstrument(ready.UserID, profile)
	}
	return nil
}

// onOnboardingCompleted marks the member playback-ready and tells the
// room.
func (o *Orchestrator) onOnboardingCompleted(_ context.Context, e event.DomainEvent) error {
	completed, ok := e.(event.OnboardingCompleted)
	if !ok {
		return nil
	}

	o.mu.Lock()
	o.markReady(completed.Room, completed.UserID)
	o.mu.Unlock()

	o.registry.Broadcast(completed.Room, contract.Frame{
		Action: contract.ActionMemberReady,
		Data: map[string]any{
			"user_id":    completed.UserID,
			"components": completed.Components,
		},
	}, "")
	return nil
}

func (o *Orchestrator) pickSuccessor(room *domain.Room, departingID string) string {
	for _, member := range room.MembersSnapshot() {
		if member.UserID != departingID {
			return member.UserID
		}
	}
	return ""
}

func (o *Orchestrator) broadcastState(roomID string, state RoomState) {
	o.registry.Broadcast(roomID, contract.Frame{Action: contract.ActionRoomState, Data: state}, "")
}

// publish is deliberately fire-and-forget: a failing downstream handler
// must not abort the membership operation that already happened.
func (o *Orchestrator) publish(ctx context.Context, events []event.DomainEvent) {
	if len(events) == 0 {
		return
	}
	if err := o.bus.PublishAll(ctx, events); err != nil {
		o.log.Warn("Event publication reported a handler failure", "error", err)
	}
}

func (o *Orchestrator) markReady(roomID, userID string) {
	if _, ok := o.ready[roomID]; !ok {
		o.ready[roomID] = make(Set)
	}
	o.ready[roomID][userID] = struct{}{}
}

func (o *Orchestrator) unmarkReady(roomID, userID string) {
	if users, ok := o.ready[roomID]; ok {
		delete(users, userID)
	}
}

func (o *Orchestrator) isReady(roomID, userID string) bool {
	_, ok := o.ready[roomID][userID]
	return ok
}

func (o *Orchestrator) unmarkRoom(roomID string) {
	delete(o.ready, roomID)
}

func instrumentFromPayload(payload map[string]any) *domain.InstrumentProfile {
	if payload == nil {
		return nil
	}
	name, _ := payload["instrument"].(string)
	category, _ := payload["category"].(string)
	if name == "" && category == "" {
		return nil
	}
	return &domain.InstrumentProfile{Name: name, Category: category}
}

func graceTimerKey(roomID, userID string) string {
	return fmt.Sprintf("grace:%s:%s", roomID, userID)
}
