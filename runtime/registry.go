package runtime

import (
	"log/slog"
	"sync"
	"time"

	"jamlab/contract"
	"jamlab/domain"
	"jamlab/errors"
)

type Set map[string]struct{}

// Binding ties one live connection to the room/user pair it acts for.
type Binding struct {
	RoomID string
	UserID string
}

// GraceSnapshot preserves a member's prior state across an unintentional
// disconnect so a rejoin within the window restores it seamlessly.
type GraceSnapshot struct {
	Member domain.Member
	Ready  bool
}

type graceRecord struct {
	snapshot GraceSnapshot
	deadline time.Time
}

type graceKey struct {
	userID string
	roomID string
}

// Registry remembers connection facts: bindings, sinks, per-room fan-out
// channels, the grace-period table, and the intentional-leave set. It has
// no authority of its own; the orchestrator reads it to pick a join path.
type Registry struct {
	mu               sync.RWMutex
	log              *slog.Logger
	sinks            map[string]contract.ConnectionSink // connID -> sink
	bindings         map[string]Binding                 // connID -> (room, user)
	roomChannels     map[string]Set                     // roomID -> connIDs
	approvalChannels map[string]Set                     // roomID -> connIDs, open only while private
	grace            map[graceKey]graceRecord
	intentionalLeave Set
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:              log,
		sinks:            make(map[string]contract.ConnectionSink),
		bindings:         make(map[string]Binding),
		roomChannels:     make(map[string]Set),
		approvalChannels: make(map[string]Set),
		grace:            make(map[graceKey]graceRecord),
		intentionalLeave: make(Set),
	}
}

// Register records a live connection's sink. Must precede any Bind.
func (r *Registry) Register(connID string, sink contract.ConnectionSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[connID] = sink
}

// Deregister forgets a connection entirely: sink, binding, and channel
// membership. Grace records survive; they are keyed by user, not
// connection.
func (r *Registry) Deregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, connID)
	delete(r.bindings, connID)
	for _, members := range r.roomChannels {
		delete(members, connID)
	}
	for _, members := range r.approvalChannels {
		delete(members, connID)
	}
}

// Bind associates a connection with (room, user). Exactly one binding per
// connection.
func (r *Registry) Bind(connID, roomID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.bindings[connID]; ok {
		if existing.RoomID == roomID && existing.UserID == userID {
			return nil
		}
		return errors.StateConflict("connection %s is already bound to room %s", connID, existing.RoomID)
	}
	r.bindings[connID] = Binding{RoomID: roomID, UserID: userID}
	return nil
}

func (r *Registry) Unbind(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bindings, connID)
}

func (r *Registry) BindingFor(connID string) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[connID]
	return b, ok
}

// ConnectionFor finds the connection currently bound to (room, user).
func (r *Registry) ConnectionFor(roomID, userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for connID, b := range r.bindings {
		if b.RoomID == roomID && b.UserID == userID {
			return connID, true
		}
	}
	return "", false
}

func (r *Registry) JoinChannel(roomID, connID string) {
	r.joinChannel(r.roomChannels, roomID, connID)
}

func (r *Registry) LeaveChannel(roomID, connID string) {
	r.leaveChannel(r.roomChannels, roomID, connID, true)
}

// OpenApprovalChannel creates the per-room approval fan-out group. Only
// private rooms carry one.
func (r *Registry) OpenApprovalChannel(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.approvalChannels[roomID]; !ok {
		r.approvalChannels[roomID] = make(Set)
	}
}

func (r *Registry) CloseApprovalChannel(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.approvalChannels, roomID)
}

func (r *Registry) HasApprovalChannel(roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.approvalChannels[roomID]
	return ok
}

func (r *Registry) JoinApprovalChannel(roomID, connID string) {
	r.joinChannel(r.approvalChannels, roomID, connID)
}

func (r *Registry) LeaveApprovalChannel(roomID, connID string) {
	// Approval channels close explicitly with privacy; never pruned here.
	r.leaveChannel(r.approvalChannels, roomID, connID, false)
}

// SendTo delivers a frame to a single connection. Delivery failures are
// logged and dropped; a broken connection is cleaned up by its own
// disconnect path.
func (r *Registry) SendTo(connID string, frame contract.Frame) {
	r.mu.RLock()
	sink, ok := r.sinks[connID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	if err := sink.Send(frame); err != nil {
		r.log.Warn("Frame delivery failed", "conn", connID, "action", frame.Action, "error", err)
	}
}

// Broadcast fans a frame out to the room channel, optionally excluding one
// connection.
func (r *Registry) Broadcast(roomID string, frame contract.Frame, exclude string) {
	r.fanout(r.roomChannels, roomID, frame, exclude)
}

// BroadcastApproval fans a frame out to the room's approval channel.
func (r *Registry) BroadcastApproval(roomID string, frame contract.Frame, exclude string) {
	r.fanout(r.approvalChannels, roomID, frame, exclude)
}

// BroadcastAll delivers a frame to every registered connection, room
// membership regardless.
func (r *Registry) BroadcastAll(frame contract.Frame) {
	r.mu.RLock()
	sinks := make([]contract.ConnectionSink, 0, len(r.sinks))
	for _, sink := range r.sinks {
		sinks = append(sinks, sink)
	}
	r.mu.RUnlock()
	for _, sink := range sinks {
		if err := sink.Send(frame); err != nil {
			r.log.Warn("Broadcast delivery failed", "action", frame.Action, "error", err)
		}
	}
}

// EnterGracePeriod snapshots a member's state after an unintentional
// disconnect. The record lives until a rejoin claims it or the deadline
// check fires.
func (r *Registry) EnterGracePeriod(userID, roomID string, snapshot GraceSnapshot, deadline time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grace[graceKey{userID: userID, roomID: roomID}] = graceRecord{snapshot: snapshot, deadline: deadline}
}

// ClaimGracePeriod removes and returns the unexpired grace record for
// (user, room). Exactly one caller wins: a rejoin claiming it disarms the
// delayed expiry check. A record past its deadline is reported absent and
// left in place for the expiry check; the sweep may simply not have
// reached it yet.
func (r *Registry) ClaimGracePeriod(userID, roomID string) (GraceSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := graceKey{userID: userID, roomID: roomID}
	record, ok := r.grace[key]
	if !ok || time.Now().After(record.deadline) {
		return GraceSnapshot{}, false
	}
	delete(r.grace, key)
	return record.snapshot, true
}

// RemoveGracePeriod removes the grace record, expired or not. The
// expiry check uses it as its claim; the intentional-leave path uses it to
// discard a stale snapshot.
func (r *Registry) RemoveGracePeriod(userID, roomID string) (GraceSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := graceKey{userID: userID, roomID: roomID}
	record, ok := r.grace[key]
	if !ok {
		return GraceSnapshot{}, false
	}
	delete(r.grace, key)
	return record.snapshot, true
}

// HasGracePeriod reports whether an unclaimed grace record exists.
func (r *Registry) HasGracePeriod(userID, roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.grace[graceKey{userID: userID, roomID: roomID}]
	return ok
}

// MarkIntentionalLeave remembers that a user explicitly left, forcing the
// next join attempt through the regular admission paths.
func (r *Registry) MarkIntentionalLeave(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intentionalLeave[userID] = struct{}{}
}

// WasIntentionalLeave reports and clears the intentional-leave mark.
func (r *Registry) WasIntentionalLeave(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.intentionalLeave[userID]
	delete(r.intentionalLeave, userID)
	return ok
}

func (r *Registry) joinChannel(channels map[string]Set, roomID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := channels[roomID]; !ok {
		channels[roomID] = make(Set)
	}
	channels[roomID][connID] = struct{}{}
}

func (r *Registry) leaveChannel(channels map[string]Set, roomID, connID string, pruneEmpty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if members, ok := channels[roomID]; ok {
		delete(members, connID)
		if pruneEmpty && len(members) == 0 {
			delete(channels, roomID)
		}
	}
}

func (r *Registry) fanout(channels map[string]Set, roomID string, frame contract.Frame, exclude string) {
	r.mu.RLock()
	var targets []contract.ConnectionSink
	for connID := range channels[roomID] {
		if connID == exclude {
			continue
		}
		if sink, ok := r.sinks[connID]; ok {
			targets = append(targets, sink)
		}
	}
	r.mu.RUnlock()
	for _, sink := range targets {
		if err := sink.Send(frame); err != nil {
			r.log.Warn("Channel delivery failed", "room", roomID, "action", frame.Action, "error", err)
		}
	}
}
