// Package event defines the closed set of domain events emitted by the
// session core. Each kind carries its own payload struct; dispatch is done
// by the Kind tag, never by runtime type inspection.
package event

import "time"

type Kind string

const (
	KindRoomCreated          Kind = "room.created"
	KindRoomClosed           Kind = "room.closed"
	KindMemberJoined         Kind = "member.joined"
	KindMemberRejoined       Kind = "member.rejoined"
	KindMemberLeft           Kind = "member.left"
	KindOwnershipTransferred Kind = "ownership.transferred"
	KindSettingsUpdated      Kind = "settings.updated"
	KindRoomJoined           Kind = "room.joined"
	KindApprovalRequested    Kind = "approval.requested"
	KindApprovalResolved     Kind = "approval.resolved"
	KindApprovalCancelled    Kind = "approval.cancelled"
	KindApprovalTimedOut     Kind = "approval.timed_out"
	KindInstrumentsReady     Kind = "onboarding.instruments_ready"
	KindAudioRouteReady      Kind = "onboarding.audio_route_ready"
	KindVoiceReady           Kind = "onboarding.voice_ready"
	KindOnboardingFailed     Kind = "onboarding.failed"
	KindOnboardingCompleted  Kind = "onboarding.completed"
	KindOnboardingTimedOut   Kind = "onboarding.timed_out"
)

// Kinds lists every event kind, for consumers that observe the whole
// stream (journal, metrics).
func Kinds() []Kind {
	return []Kind{
		KindRoomCreated, KindRoomClosed,
		KindMemberJoined, KindMemberRejoined, KindMemberLeft,
		KindOwnershipTransferred, KindSettingsUpdated, KindRoomJoined,
		KindApprovalRequested, KindApprovalResolved, KindApprovalCancelled, KindApprovalTimedOut,
		KindInstrumentsReady, KindAudioRouteReady, KindVoiceReady,
		KindOnboardingFailed, KindOnboardingCompleted, KindOnboardingTimedOut,
	}
}

// DomainEvent is an immutable record of a state change. Events are never
// mutated after creation.
type DomainEvent interface {
	Kind() Kind
	RoomID() string
	OccurredAt() time.Time
}

// Header carries the fields shared by every event kind.
type Header struct {
	Room string    `json:"room"`
	At   time.Time `json:"at"`
}

func (h Header) RoomID() string        { return h.Room }
func (h Header) OccurredAt() time.Time { return h.At }

// NewHeader stamps an event for the given room at the current time.
func NewHeader(roomID string) Header {
	return Header{Room: roomID, At: time.Now().UTC()}
}

// MemberInfo is the event-side projection of a room member.
type MemberInfo struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// FieldChange is one entry of a settings diff.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

type RoomCreated struct {
	Header
	Name       string   `json:"name"`
	OwnerID    string   `json:"owner_id"`
	Private    bool     `json:"private"`
	MaxMembers int      `json:"max_members"`
	GenreTags  []string `json:"genre_tags"`
}

func (RoomCreated) Kind() Kind { return KindRoomCreated }

type RoomClosed struct {
	Header
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason"`
}

func (RoomClosed) Kind() Kind { return KindRoomClosed }

type MemberJoined struct {
	Header
	Member MemberInfo `json:"member"`
}

func (MemberJoined) Kind() Kind { return KindMemberJoined }

type MemberRejoined struct {
	Header
	UserID string `json:"user_id"`
}

func (MemberRejoined) Kind() Kind { return KindMemberRejoined }

type MemberLeft struct {
	Header
	UserID      string `json:"user_id"`
	Intentional bool   `json:"intentional"`
}

func (MemberLeft) Kind() Kind { return KindMemberLeft }

type OwnershipTransferred struct {
	Header
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
}

func (OwnershipTransferred) Kind() Kind { return KindOwnershipTransferred }

type SettingsUpdated struct {
	Header
	ActorID string        `json:"actor_id"`
	Diff    []FieldChange `json:"diff"`
}

func (SettingsUpdated) Kind() Kind { return KindSettingsUpdated }

// RoomJoined is the onboarding trigger, distinct from MemberJoined so the
// saga can be re-pointed without touching membership consumers.
type RoomJoined struct {
	Header
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (RoomJoined) Kind() Kind { return KindRoomJoined }

type ApprovalRequested struct {
	Header
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (ApprovalRequested) Kind() Kind { return KindApprovalRequested }

type ApprovalResolved struct {
	Header
	UserID   string `json:"user_id"`
	Approved bool   `json:"approved"`
	Message  string `json:"message"`
}

func (ApprovalResolved) Kind() Kind { return KindApprovalResolved }

type ApprovalCancelled struct {
	Header
	UserID string `json:"user_id"`
}

func (ApprovalCancelled) Kind() Kind { return KindApprovalCancelled }

type ApprovalTimedOut struct {
	Header
	UserID string `json:"user_id"`
}

func (ApprovalTimedOut) Kind() Kind { return KindApprovalTimedOut }

// Readiness events are published by the gateway on behalf of the external
// instrument/audio/voice services. Payloads are opaque to the saga.
type InstrumentsReady struct {
	Header
	UserID  string         `json:"user_id"`
	Payload map[string]any `json:"payload"`
}

func (InstrumentsReady) Kind() Kind { return KindInstrumentsReady }

type AudioRouteReady struct {
	Header
	UserID  string         `json:"user_id"`
	Payload map[string]any `json:"payload"`
}

func (AudioRouteReady) Kind() Kind { return KindAudioRouteReady }

type VoiceReady struct {
	Header
	UserID  string         `json:"user_id"`
	Payload map[string]any `json:"payload"`
}

func (VoiceReady) Kind() Kind { return KindVoiceReady }

type OnboardingFailed struct {
	Header
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

func (OnboardingFailed) Kind() Kind { return KindOnboardingFailed }

// OnboardingCompleted is the single "ready for playback" outcome.
type OnboardingCompleted struct {
	Header
	UserID     string   `json:"user_id"`
	Components []string `json:"components"`
}

func (OnboardingCompleted) Kind() Kind { return KindOnboardingCompleted }

type OnboardingTimedOut struct {
	Header
	UserID    string   `json:"user_id"`
	Completed []string `json:"completed"`
}

func (OnboardingTimedOut) Kind() Kind { return KindOnboardingTimedOut }
