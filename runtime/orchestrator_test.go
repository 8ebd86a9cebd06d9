package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"jamlab/contract"
	"jamlab/domain"
	"jamlab/errors"
	"jamlab/mocks"
)

const testGracePeriod = 15 * time.Second

type orchestratorFixture struct {
	orchestrator *Orchestrator
	registry     *Registry
	timers       *TimerTable
	bus          *Bus
	approval     *mocks.MockApprovalGateway
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := discardLogger()

	identity := mocks.NewMockIdentityDirectory(ctrl)
	identity.EXPECT().Lookup(gomock.Any()).DoAndReturn(func(userID string) (contract.Identity, error) {
		if userID == "ghost" {
			return contract.Identity{}, errors.NotFound("user %s is unknown", userID)
		}
		return contract.Identity{UserID: userID, DisplayName: userID}, nil
	}).AnyTimes()

	censor := mocks.NewMockTextCensor(ctrl)
	censor.EXPECT().Censor(gomock.Any()).DoAndReturn(func(text string) (string, []string) {
		return text, nil
	}).AnyTimes()

	bus := NewBus(log)
	registry := NewRegistry(log)
	timers := NewTimerTable(log)
	orchestrator := NewOrchestrator(log, registry, bus, timers, identity, censor, testGracePeriod)
	approval := mocks.NewMockApprovalGateway(ctrl)
	approval.EXPECT().HandleDisconnect(gomock.Any(), gomock.Any()).AnyTimes()
	orchestrator.AttachApproval(approval)

	return &orchestratorFixture{
		orchestrator: orchestrator,
		registry:     registry,
		timers:       timers,
		bus:          bus,
		approval:     approval,
	}
}

func (f *orchestratorFixture) connect(connID string) {
	f.registry.Register(connID, &recordingSink{})
}

func (f *orchestratorFixture) createRoom(t *testing.T, connID, userID string, settings domain.RoomSettings) RoomState {
	t.Helper()
	f.connect(connID)
	state, err := f.orchestrator.CreateRoom(context.Background(), connID, userID, "Friday Jam", settings)
	require.NoError(t, err)
	return state
}

func (f *orchestratorFixture) join(t *testing.T, connID, roomID, userID string, role domain.Role) RoomState {
	t.Helper()
	f.connect(connID)
	state, admitted, err := f.orchestrator.JoinRoom(context.Background(), connID, roomID, userID, "", role)
	require.NoError(t, err)
	require.True(t, admitted)
	return state
}

func TestCreateRoom_CreatorBecomesOwner(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)

	state := f.createRoom(t, "conn-alice", "alice", domain.RoomSettings{MaxMembers: 4, IsPrivate: true})

	req.Equal("alice", state.OwnerID)
	req.Len(state.Members, 1)
	req.Equal(domain.RoleOwner, state.Members[0].Role)

	binding, bound := f.registry.BindingFor("conn-alice")
	req.True(bound)
	req.Equal(state.RoomID, binding.RoomID)
	req.True(f.registry.HasApprovalChannel(state.RoomID))
}

func TestCreateRoom_Preconditions(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	f.connect("conn-ghost")
	_, err := f.orchestrator.CreateRoom(ctx, "conn-ghost", "ghost", "Haunted Jam", domain.RoomSettings{MaxMembers: 4})
	req.ErrorIs(err, errors.Sentinel(errors.CodeNotFound))

	f.createRoom(t, "conn-alice", "alice", domain.RoomSettings{MaxMembers: 4})
	_, err = f.orchestrator.CreateRoom(ctx, "conn-alice", "alice", "Second Jam", domain.RoomSettings{MaxMembers: 4})
	req.ErrorIs(err, errors.Sentinel(errors.CodeStateConflict))
}

func TestJoinRoom_CapacityIsEnforced(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)

	state := f.createRoom(t, "conn-alice", "alice", domain.RoomSettings{MaxMembers: 2})
	f.join(t, "conn-bob", state.RoomID, "bob", domain.RoleBandMember)

	f.connect("conn-carol")
	_, _, err := f.orchestrator.JoinRoom(context.Background(), "conn-carol", state.RoomID, "carol", "", domain.RoleBandMember)
	req.ErrorIs(err, errors.Sentinel(errors.CodeCapacity))

	room, ok := f.orchestrator.Room(state.RoomID)
	req.True(ok)
	req.Equal(2, room.MemberCount())
}

func TestJoinRoom_PrivateRoomRedirectsBandMembers(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)

	state := f.createRoom(t, "conn-alice", "alice", domain.RoomSettings{MaxMembers: 4, IsPrivate: true})

	f.connect("conn-bob")
	f.approval.EXPECT().
		Request(gomock.Any(), "conn-bob", state.RoomID, "bob", "bob", domain.RoleBandMember).
		Return(nil)

	_, admitted, err := f.orchestrator.JoinRoom(context.Background(), "conn-bob", state.RoomID, "bob", "", domain.RoleBandMember)
	req.NoError(err)
	req.False(admitted)

	// The redirect admits nobody.
	room, _ := f.orchestrator.Room(state.RoomID)
	req.False(room.HasMember("bob"))
	_, bound := f.registry.BindingFor("conn-bob")
	req.False(bound)
}

func TestDisconnect_RejoinWithinGraceRestoresOwner(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	state := f.createRoom(t, "conn-alice", "alice", domain.RoomSettings{MaxMembers: 4})
	f.join(t, "conn-bob", state.RoomID, "bob", domain.RoleBandMember)

	f.orchestrator.HandleDisconnect(ctx, "conn-alice")

	req.True(f.registry.HasGracePeriod("alice", state.RoomID))
	room, _ := f.orchestrator.Room(state.RoomID)
	req.False(room.HasMember("alice"))
	req.Equal("alice", room.OwnerID)

	// Rejoining claims the snapshot; the held OWNER role beats the
	// requested one.
	restored := f.join(t, "conn-alice-2", state.RoomID, "alice", domain.RoleBandMember)
	req.Equal("alice", restored.OwnerID)
	member, ok := room.Member("alice")
	req.True(ok)
	req.Equal(domain.RoleOwner, member.Role)
	req.False(f.registry.HasGracePeriod("alice", state.RoomID))

	// The disarmed expiry check does nothing.
	req.Equal(0, f.timers.Sweep(time.Now().Add(2*testGracePeriod)))
}

func TestDisconnect_GraceExpiryTransfersOwnership(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)

	state := f.createRoom(t, "conn-alice", "alice", domain.RoomSettings{MaxMembers: 4})
	f.join(t, "conn-bob", state.RoomID, "bob", domain.RoleBandMember)

	f.orchestrator.HandleDisconnect(context.Background(), "conn-alice")
	req.Equal(1, f.timers.Sweep(time.Now().Add(2*testGracePeriod)))

	room, ok := f.orchestrator.Room(state.RoomID)
	req.True(ok)
	req.Equal("bob", room.OwnerID)
	req.False(f.registry.HasGracePeriod("alice", state.RoomID))
}

func TestDisconnect_LastMemberGraceExpiryClosesRoom(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)

	state := f.createRoom(t, "conn-alice", "alice", domain.RoomSettings{MaxMembers: 4})

	f.orchestrator.HandleDisconnect(context.Background(), "conn-alice")
	// The room lingers while the grace clock runs.
	_, ok := f.orchestrator.Room(state.RoomID)
	req.True(ok)

	req.Equal(1, f.timers.Sweep(time.Now().Add(2*testGracePeriod)))
	_, ok = f.orchestrator.Room(state.RoomID)
	req.False(ok)
}

func TestJoinRoom_IntentionalLeaveDiscardsGraceSnapshot(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)

	state := f.createRoom(t, "conn-alice", "alice", domain.RoomSettings{MaxMembers: 4})
	f.join(t, "conn-bob", state.RoomID, "bob", domain.RoleBandMember)

	// The connection drops while an explicit leave is in flight: the grace
	// record exists alongside the intentional-leave mark.
	f.orchestrator.HandleDisconnect(context.Background(), "conn-bob")
	req.True(f.registry.HasGracePeriod("bob", state.RoomID))
	f.registry.MarkIntentionalLeave("bob")

	// The rejoin must take the regular admission path, not a silent
	// restore: the snapshot is discarded and the requested role applies.
	rejoined := f.join(t, "conn-bob-2", state.RoomID, "bob", domain.RoleModerator)
	req.False(f.registry.HasGracePeriod("bob", state.RoomID))
	room, _ := f.orchestrator.Room(state.RoomID)
	member, ok := room.Member("bob")
	req.True(ok)
	req.Equal(domain.RoleModerator, member.Role)
	req.Len(rejoined.Members, 2)

	// The disarmed grace check does nothing.
	req.Equal(0, f.timers.Sweep(time.Now().Add(2*testGracePeriod)))
}

func TestLeaveRoom_OwnerHandsOffImmediately(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	state := f.createRoom(t, "conn-alice", "alice", domain.RoomSettings{MaxMembers: 4})
	f.join(t, "conn-bob", state.RoomID, "bob", domain.RoleBandMember)

	req.NoError(f.orchestrator.LeaveRoom(ctx, "conn-alice"))

	room, ok := f.orchestrator.Room(state.RoomID)
	req.True(ok)
	req.Equal("bob", room.OwnerID)
	req.False(room.HasMember("alice"))
	// An explicit leave never opens a grace window.
	req.False(f.registry.HasGracePeriod("alice", state.RoomID))
	_, bound := f.registry.BindingFor("conn-alice")
	req.False(bound)
}

func TestLeaveRoom_LastMemberClosesRoom(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)

	state := f.createRoom(t, "conn-alice", "alice", domain.RoomSettings{MaxMembers: 4})
	req.NoError(f.orchestrator.LeaveRoom(context.Background(), "conn-alice"))

	_, ok := f.orchestrator.Room(state.RoomID)
	req.False(ok)
}

func TestUpdateSettings_PrivacyToggleTracksApprovalChannel(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	state := f.createRoom(t, "conn-alice", "alice", domain.RoomSettings{MaxMembers: 4})
	req.False(f.registry.HasApprovalChannel(state.RoomID))

	req.NoError(f.orchestrator.UpdateSettings(ctx, "conn-alice", domain.RoomSettings{MaxMembers: 4, IsPrivate: true}))
	req.True(f.registry.HasApprovalChannel(state.RoomID))

	req.NoError(f.orchestrator.UpdateSettings(ctx, "conn-alice", domain.RoomSettings{MaxMembers: 4}))
	req.False(f.registry.HasApprovalChannel(state.RoomID))
}

func TestUpdateSettings_OnlyOwnerMayChange(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)

	state := f.createRoom(t, "conn-alice", "alice", domain.RoomSettings{MaxMembers: 4})
	f.join(t, "conn-bob", state.RoomID, "bob", domain.RoleBandMember)

	err := f.orchestrator.UpdateSettings(context.Background(), "conn-bob", domain.RoomSettings{MaxMembers: 8})
	req.ErrorIs(err, errors.Sentinel(errors.CodePermission))
}

func TestTransferOwnership_Explicit(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	state := f.createRoom(t, "conn-alice", "alice", domain.RoomSettings{MaxMembers: 4})
	f.join(t, "conn-bob", state.RoomID, "bob", domain.RoleBandMember)

	req.ErrorIs(
		f.orchestrator.TransferOwnership(ctx, "conn-bob", "bob"),
		errors.Sentinel(errors.CodePermission),
	)

	req.NoError(f.orchestrator.TransferOwnership(ctx, "conn-alice", "bob"))
	room, _ := f.orchestrator.Room(state.RoomID)
	req.Equal("bob", room.OwnerID)
	// The former owner keeps their seat as a regular member.
	member, ok := room.Member("alice")
	req.True(ok)
	req.Equal(domain.RoleBandMember, member.Role)
}

func TestDisconnect_GraceRestoreFailsWhenSeatIsTaken(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	state := f.createRoom(t, "conn-alice", "alice", domain.RoomSettings{MaxMembers: 2})
	f.join(t, "conn-bob", state.RoomID, "bob", domain.RoleBandMember)

	// The owner drops and a newcomer claims the freed seat.
	f.orchestrator.HandleDisconnect(ctx, "conn-alice")
	f.join(t, "conn-carol", state.RoomID, "carol", domain.RoleBandMember)

	// The owner's rejoin within the grace window must not push the room
	// past its member limit.
	f.connect("conn-alice-2")
	_, admitted, err := f.orchestrator.JoinRoom(ctx, "conn-alice-2", state.RoomID, "alice", "", domain.RoleBandMember)
	req.ErrorIs(err, errors.Sentinel(errors.CodeCapacity))
	req.False(admitted)

	room, ok := f.orchestrator.Room(state.RoomID)
	req.True(ok)
	req.LessOrEqual(room.MemberCount(), room.Settings.MaxMembers)
	req.False(room.HasMember("alice"))

	// The failed restore resolves the suspension: the earliest remaining
	// member now owns the room.
	req.Equal("bob", room.OwnerID)
	req.False(f.registry.HasGracePeriod("alice", state.RoomID))
}
