// Package onboarding runs the post-admission readiness saga: a member is
// announced as ready for playback only once instruments, audio routing,
// and voice have all reported in, within the deadline.
package onboarding

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"jamlab/contract"
	"jamlab/domain/event"
	"jamlab/runtime"
)

const (
	ComponentInstruments = "instruments"
	ComponentAudioRoute  = "audio_route"
	ComponentVoice       = "voice"
)

type sessionKey struct {
	userID string
	roomID string
}

type session struct {
	key       sessionKey
	startedAt time.Time
	ready     map[string]map[string]any // component -> payload
}

func (s *session) completed() []string {
	components := make([]string, 0, len(s.ready))
	for _, c := range []string{ComponentInstruments, ComponentAudioRoute, ComponentVoice} {
		if _, ok := s.ready[c]; ok {
			components = append(components, c)
		}
	}
	return components
}

// Coordinator tracks one onboarding session per admitted member. Presence
// in the table is the activity marker: every terminal outcome deletes the
// session, so a redelivered readiness event after completion finds
// nothing and does nothing.
type Coordinator struct {
	mu       sync.Mutex
	log      *slog.Logger
	bus      *runtime.Bus
	timers   contract.Scheduler
	timeout  time.Duration
	sessions map[sessionKey]*session
}

func NewCoordinator(log *slog.Logger, bus *runtime.Bus, timers contract.Scheduler, timeout time.Duration) *Coordinator {
	c := &Coordinator{
		log:      log,
		bus:      bus,
		timers:   timers,
		timeout:  timeout,
		sessions: make(map[sessionKey]*session),
	}
	bus.Subscribe(event.KindRoomJoined, c.onRoomJoined)
	bus.Subscribe(event.KindInstrumentsReady, c.onReadiness(ComponentInstruments))
	bus.Subscribe(event.KindAudioRouteReady, c.onReadiness(ComponentAudioRoute))
	bus.Subscribe(event.KindVoiceReady, c.onReadiness(ComponentVoice))
	bus.Subscribe(event.KindOnboardingFailed, c.onFailed)
	bus.Subscribe(event.KindMemberLeft, c.onMemberLeft)
	return c
}

// Active reports whether a member's onboarding session is still open.
func (c *Coordinator) Active(userID, roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.sessions[sessionKey{userID: userID, roomID: roomID}]
	return ok
}

func (c *Coordinator) onRoomJoined(ctx context.Context, e event.DomainEvent) error {
	joined, ok := e.(event.RoomJoined)
	if !ok {
		return nil
	}
	key := sessionKey{userID: joined.UserID, roomID: joined.RoomID()}

	c.mu.Lock()
	// A fresh admission replaces any stale session for the same member.
	c.sessions[key] = &session{
		key:       key,
		startedAt: time.Now().UTC(),
		ready:     make(map[string]map[string]any),
	}
	c.mu.Unlock()

	c.timers.Schedule(timerKey(key), time.Now().Add(c.timeout), func() {
		c.onTimeout(context.Background(), key)
	})
	c.log.Debug("Onboarding started", "user", joined.UserID, "room", joined.RoomID())
	return nil
}

func (c *Coordinator) onReadiness(component string) runtime.Handler {
	return func(ctx context.Context, e event.DomainEvent) error {
		userID, payload := readinessFields(e)
		key := sessionKey{userID: userID, roomID: e.RoomID()}

		c.mu.Lock()
		s, ok := c.sessions[key]
		if !ok {
			// No open session: a late or redelivered report, ignore it.
			c.mu.Unlock()
			return nil
		}
		s.ready[component] = payload
		done := len(s.ready) == 3
		var components []string
		if done {
			components = s.completed()
			delete(c.sessions, key)
		}
		c.mu.Unlock()

		if !done {
			return nil
		}
		c.timers.Cancel(timerKey(key))
		c.log.Info("Onboarding completed", "user", userID, "room", e.RoomID())
		return c.bus.Publish(ctx, event.OnboardingCompleted{
			Header:     event.NewHeader(e.RoomID()),
			UserID:     userID,
			Components: components,
		})
	}
}

func (c *Coordinator) onFailed(ctx context.Context, e event.DomainEvent) error {
	failed, ok := e.(event.OnboardingFailed)
	if !ok {
		return nil
	}
	key := sessionKey{userID: failed.UserID, roomID: failed.RoomID()}

	c.mu.Lock()
	_, active := c.sessions[key]
	delete(c.sessions, key)
	c.mu.Unlock()

	if active {
		c.timers.Cancel(timerKey(key))
		c.log.Warn("Onboarding failed", "user", failed.UserID, "room", failed.RoomID(), "reason", failed.Reason)
	}
	return nil
}

// onMemberLeft abandons the session of a member who left or dropped
// before finishing onboarding.
func (c *Coordinator) onMemberLeft(_ context.Context, e event.DomainEvent) error {
	left, ok := e.(event.MemberLeft)
	if !ok {
		return nil
	}
	key := sessionKey{userID: left.UserID, roomID: left.RoomID()}

	c.mu.Lock()
	_, active := c.sessions[key]
	delete(c.sessions, key)
	c.mu.Unlock()

	if active {
		c.timers.Cancel(timerKey(key))
	}
	return nil
}

// onTimeout fires from the timer table. The session may have completed or
// failed between scheduling and firing; then the table lookup misses and
// nothing is published.
func (c *Coordinator) onTimeout(ctx context.Context, key sessionKey) {
	c.mu.Lock()
	s, ok := c.sessions[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	completed := s.completed()
	delete(c.sessions, key)
	c.mu.Unlock()

	c.log.Warn("Onboarding timed out", "user", key.userID, "room", key.roomID, "completed", completed)
	if err := c.bus.Publish(ctx, event.OnboardingTimedOut{
		Header:    event.NewHeader(key.roomID),
		UserID:    key.userID,
		Completed: completed,
	}); err != nil {
		c.log.Warn("Onboarding timeout publication failed", "user", key.userID, "error", err)
	}
}

func readinessFields(e event.DomainEvent) (string, map[string]any) {
	switch evt := e.(type) {
	case event.InstrumentsReady:
		return evt.UserID, evt.Payload
	case event.AudioRouteReady:
		return evt.UserID, evt.Payload
	case event.VoiceReady:
		return evt.UserID, evt.Payload
	default:
		return "", nil
	}
}

func timerKey(key sessionKey) string {
	return "onboarding:" + key.roomID + ":" + key.userID
}
