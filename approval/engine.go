// Package approval gates entry to private rooms: one timed, per-user
// session per pending request, resolved by the room owner or by the
// deadline.
package approval

import (
	"context"
	"log/slog"
	"time"

	"jamlab/contract"
	"jamlab/domain"
	"jamlab/domain/event"
	"jamlab/errors"
	"jamlab/runtime"
)

type State string

const (
	StatePending   State = "PENDING"
	StateApproved  State = "APPROVED"
	StateRejected  State = "REJECTED"
	StateCancelled State = "CANCELLED"
	StateTimedOut  State = "TIMED_OUT"
)

// Session is one pending approval request. A user has at most one active
// session; every terminal transition deletes it and disarms its timer.
type Session struct {
	UserID      string
	RoomID      string
	ConnID      string
	Username    string
	Role        domain.Role
	RequestedAt time.Time
	State       State
}

// Engine owns the approval-session table. All access happens under the
// runtime locker shared with the orchestrator, because approving mutates
// the room aggregate.
type Engine struct {
	log      *slog.Logger
	rooms    contract.RoomDirectory
	registry *runtime.Registry
	timers   contract.Scheduler
	bus      contract.EventPublisher
	timeout  time.Duration
	sessions map[string]*Session // userID -> session
}

func NewEngine(
	log *slog.Logger,
	rooms contract.RoomDirectory,
	registry *runtime.Registry,
	timers contract.Scheduler,
	bus contract.EventPublisher,
	timeout time.Duration,
) *Engine {
	return &Engine{
		log:      log,
		rooms:    rooms,
		registry: registry,
		timers:   timers,
		bus:      bus,
		timeout:  timeout,
		sessions: make(map[string]*Session),
	}
}

// Request opens an approval session for a user knocking on a private
// room.
func (e *Engine) Request(ctx context.Context, connID, roomID, userID, username string, role domain.Role) error {
	locker := e.rooms.Locker()
	locker.Lock()

	room, ok := e.rooms.Room(roomID)
	if !ok {
		locker.Unlock()
		return errors.NotFound("room %s does not exist", roomID)
	}
	if !room.Settings.IsPrivate {
		locker.Unlock()
		return errors.Validation("room %s is not private, join it directly", roomID)
	}
	if room.HasMember(userID) {
		locker.Unlock()
		return errors.StateConflict("user %s is already a member of room %s", userID, roomID)
	}
	if _, exists := e.sessions[userID]; exists {
		locker.Unlock()
		return errors.StateConflict("user %s already has a pending approval request", userID)
	}
	if err := room.AddPending(userID, username); err != nil {
		locker.Unlock()
		return err
	}

	session := &Session{
		UserID:      userID,
		RoomID:      roomID,
		ConnID:      connID,
		Username:    username,
		Role:        role,
		RequestedAt: time.Now().UTC(),
		State:       StatePending,
	}
	e.sessions[userID] = session
	locker.Unlock()

	deadline := session.RequestedAt.Add(e.timeout)
	e.timers.Schedule(timerKey(userID), deadline, func() {
		e.OnTimeout(context.Background(), userID)
	})

	e.registry.JoinApprovalChannel(roomID, connID)
	e.registry.BroadcastApproval(roomID, contract.Frame{
		Action: contract.ActionApprovalRequest,
		Data: map[string]string{
			"room_id":  roomID,
			"user_id":  userID,
			"username": username,
			"role":     string(role),
		},
	}, connID)
	e.registry.SendTo(connID, contract.Frame{
		Action: contract.ActionApprovalPending,
		Data:   map[string]string{"room_id": roomID, "status": string(StatePending)},
	})

	e.publish(ctx, event.ApprovalRequested{
		Header:   event.NewHeader(roomID),
		UserID:   userID,
		Username: username,
		Role:     string(role),
	})
	return nil
}

// Respond resolves a pending session. Only the owner of the room the
// acting connection is bound to may respond.
func (e *Engine) Respond(ctx context.Context, ownerConnID, targetUserID string, approved bool, message string) error {
	binding, bound := e.registry.BindingFor(ownerConnID)
	if !bound {
		return errors.NotFound("connection %s is not in a room", ownerConnID)
	}

	locker := e.rooms.Locker()
	locker.Lock()

	room, ok := e.rooms.Room(binding.RoomID)
	if !ok {
		locker.Unlock()
		return errors.NotFound("room %s does not exist", binding.RoomID)
	}
	if !room.IsOwner(binding.UserID) {
		locker.Unlock()
		return errors.Permission("user %s is not the owner of room %s", binding.UserID, binding.RoomID)
	}
	session, exists := e.sessions[targetUserID]
	if !exists || session.RoomID != room.ID || session.State != StatePending {
		locker.Unlock()
		return errors.StateConflict("no pending approval for user %s in room %s", targetUserID, binding.RoomID)
	}

	// Terminal transition: clear the session and disarm the timer before
	// anything else, so a concurrent timeout fire becomes a no-op.
	delete(e.sessions, targetUserID)
	e.timers.Cancel(timerKey(targetUserID))
	room.RemovePending(targetUserID)

	if approved {
		session.State = StateApproved
		if err := room.AddMember(targetUserID, session.Username, session.Role); err != nil {
			locker.Unlock()
			e.notifyResult(session, false, "admission failed: "+err.Error())
			return err
		}
	} else {
		session.State = StateRejected
	}
	events := room.FlushEvents()
	state := runtime.SnapshotRoom(room)
	locker.Unlock()

	e.registry.LeaveApprovalChannel(session.RoomID, session.ConnID)
	e.notifyResult(session, approved, message)

	if approved {
		if err := e.registry.Bind(session.ConnID, session.RoomID, targetUserID); err != nil {
			e.log.Warn("Approved member could not be bound", "conn", session.ConnID, "error", err)
		}
		e.registry.JoinChannel(session.RoomID, session.ConnID)
		events = append(events, event.RoomJoined{
			Header:   event.NewHeader(session.RoomID),
			UserID:   targetUserID,
			Username: session.Username,
			Role:     string(session.Role),
		})
	}
	events = append(events, event.ApprovalResolved{
		Header:   event.NewHeader(session.RoomID),
		UserID:   targetUserID,
		Approved: approved,
		Message:  message,
	})
	e.publishAll(ctx, events)

	e.registry.Broadcast(session.RoomID, contract.Frame{Action: contract.ActionRoomState, Data: state}, "")
	return nil
}

// Cancel withdraws a pending request. Only the original requester may
// cancel.
func (e *Engine) Cancel(ctx context.Context, connID, userID, roomID string) error {
	locker := e.rooms.Locker()
	locker.Lock()

	session, exists := e.sessions[userID]
	if !exists || session.State != StatePending || session.RoomID != roomID {
		locker.Unlock()
		return errors.StateConflict("no pending approval for user %s in room %s", userID, roomID)
	}
	if session.ConnID != connID {
		locker.Unlock()
		return errors.Permission("only the original requester may cancel an approval request")
	}

	delete(e.sessions, userID)
	e.timers.Cancel(timerKey(userID))
	if room, ok := e.rooms.Room(roomID); ok {
		room.RemovePending(userID)
	}
	session.State = StateCancelled
	locker.Unlock()

	e.registry.BroadcastApproval(roomID, contract.Frame{
		Action: contract.ActionApprovalCancelled,
		Data:   map[string]string{"room_id": roomID, "user_id": userID},
	}, connID)
	e.registry.SendTo(connID, contract.Frame{
		Action: contract.ActionApprovalCancelled,
		Data:   map[string]string{"room_id": roomID, "status": string(StateCancelled)},
	})
	e.registry.LeaveApprovalChannel(roomID, connID)

	e.publish(ctx, event.ApprovalCancelled{Header: event.NewHeader(roomID), UserID: userID})
	return nil
}

// OnTimeout fires from the timer table. The session may have been
// resolved between scheduling and firing; in that case this is a silent
// no-op.
func (e *Engine) OnTimeout(ctx context.Context, userID string) {
	locker := e.rooms.Locker()
	locker.Lock()

	session, exists := e.sessions[userID]
	if !exists || session.State != StatePending {
		locker.Unlock()
		return
	}
	delete(e.sessions, userID)
	if room, ok := e.rooms.Room(session.RoomID); ok {
		room.RemovePending(userID)
	}
	session.State = StateTimedOut
	locker.Unlock()

	e.registry.BroadcastApproval(session.RoomID, contract.Frame{
		Action: contract.ActionApprovalTimeout,
		Data:   map[string]string{"room_id": session.RoomID, "user_id": userID},
	}, session.ConnID)
	e.registry.SendTo(session.ConnID, contract.Frame{
		Action: contract.ActionApprovalTimeout,
		Data:   map[string]string{"room_id": session.RoomID, "status": string(StateTimedOut)},
	})
	e.registry.LeaveApprovalChannel(session.RoomID, session.ConnID)

	e.publish(ctx, event.ApprovalTimedOut{Header: event.NewHeader(session.RoomID), UserID: userID})
}

// HandleDisconnect mirrors Cancel for a dropped requester connection: no
// confirmation is sent and no active request is required.
func (e *Engine) HandleDisconnect(ctx context.Context, connID string) {
	locker := e.rooms.Locker()
	locker.Lock()

	var session *Session
	for _, s := range e.sessions {
		if s.ConnID == connID && s.State == StatePending {
			session = s
			break
		}
	}
	if session == nil {
		locker.Unlock()
		return
	}
	delete(e.sessions, session.UserID)
	e.timers.Cancel(timerKey(session.UserID))
	if room, ok := e.rooms.Room(session.RoomID); ok {
		room.RemovePending(session.UserID)
	}
	session.State = StateCancelled
	locker.Unlock()

	e.registry.BroadcastApproval(session.RoomID, contract.Frame{
		Action: contract.ActionApprovalCancelled,
		Data:   map[string]string{"room_id": session.RoomID, "user_id": session.UserID},
	}, connID)
	e.registry.LeaveApprovalChannel(session.RoomID, connID)

	e.publish(ctx, event.ApprovalCancelled{Header: event.NewHeader(session.RoomID), UserID: session.UserID})
}

// SessionFor reports the active session of a user, if any.
func (e *Engine) SessionFor(userID string) (Session, bool) {
	locker := e.rooms.Locker()
	locker.Lock()
	defer locker.Unlock()
	if session, ok := e.sessions[userID]; ok {
		return *session, true
	}
	return Session{}, false
}

func (e *Engine) notifyResult(session *Session, approved bool, message string) {
	e.registry.SendTo(session.ConnID, contract.Frame{
		Action: contract.ActionApprovalResult,
		Data: map[string]any{
			"room_id":  session.RoomID,
			"approved": approved,
			"message":  message,
		},
	})
}

// Notification publishes are fire-and-forget; a failing listener must not
// fail the approval operation.
func (e *Engine) publish(ctx context.Context, evt event.DomainEvent) {
	if err := e.bus.Publish(ctx, evt); err != nil {
		e.log.Warn("Approval event publication failed", "kind", string(evt.Kind()), "error", err)
	}
}

func (e *Engine) publishAll(ctx context.Context, events []event.DomainEvent) {
	if err := e.bus.PublishAll(ctx, events); err != nil {
		e.log.Warn("Approval event publication failed", "error", err)
	}
}

func timerKey(userID string) string {
	return "approval:" + userID
}
