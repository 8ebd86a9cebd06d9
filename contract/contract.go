//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"sync"
	"time"

	"jamlab/domain"
	"jamlab/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself; the supervisor restarts it after a crash.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// for logging and supervision purposes only.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Frame is one connection-addressed message, inbound or outbound.
type Frame struct {
	Action string `json:"action"`
	Data   any    `json:"data"`
}

// Outbound frame actions.
const (
	ActionError             = "error"
	ActionRoomCreated       = "room_created"
	ActionRoomState         = "room_state"
	ActionRoomClosed        = "room_closed"
	ActionMemberRejoined    = "member_rejoined"
	ActionMemberReady       = "member_ready"
	ActionApprovalRequest   = "approval_request"
	ActionApprovalPending   = "approval_pending"
	ActionApprovalResult    = "approval_result"
	ActionApprovalCancelled = "approval_cancelled"
	ActionApprovalTimeout   = "approval_timeout"
	ActionLeftRoom          = "left_room"
)

// TextCensor masks forbidden words in user-supplied text (room names,
// descriptions) and reports which words matched.
type TextCensor interface {
	Censor(text string) (string, []string)
}

// ConnectionSink delivers frames to a single live connection.
type ConnectionSink interface {
	Send(frame Frame) error
}

// EventPublisher is the bus surface the engines depend on.
type EventPublisher interface {
	Publish(ctx context.Context, e event.DomainEvent) error
	PublishAll(ctx context.Context, events []event.DomainEvent) error
}

// Scheduler is the scheduled-task table: one row per pending timer,
// cancelled by removing the row. A fired callback must re-check the state
// it is about to touch; its row may have been claimed in between.
type Scheduler interface {
	Schedule(key string, deadline time.Time, fn func())
	Cancel(key string) bool
}

// Identity is what the external user-identity collaborator exposes.
type Identity struct {
	UserID      string
	DisplayName string
}

type IdentityDirectory interface {
	Lookup(userID string) (Identity, error)
}

// RoomDirectory gives the approval engine access to room aggregates. All
// mutation of a returned room must happen while holding Locker.
type RoomDirectory interface {
	Room(roomID string) (*domain.Room, bool)
	Locker() sync.Locker
}

// ApprovalGateway is the approval engine surface the orchestrator
// redirects private-room joins to.
type ApprovalGateway interface {
	Request(ctx context.Context, connID, roomID, userID, username string, role domain.Role) error
	HandleDisconnect(ctx context.Context, connID string)
}

// EventJournal is the append-only persistence collaborator. The core never
// reads it back; it exists for downstream replay.
type EventJournal interface {
	Append(e event.DomainEvent) error
}
