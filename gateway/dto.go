package gateway

import (
	"github.com/go-playground/validator/v10"

	"jamlab/domain"
	"jamlab/errors"
)

var validate = validator.New()

// Inbound frame actions.
const (
	ActionCreateRoom        = "create_room"
	ActionJoinRoom          = "join_room"
	ActionLeaveRoom         = "leave_room"
	ActionRequestApproval   = "request_approval"
	ActionApprovalResponse  = "approval_response"
	ActionApprovalCancel    = "approval_cancel"
	ActionUpdateSettings    = "update_settings"
	ActionTransferOwnership = "transfer_ownership"
	ActionInstrumentsReady  = "instruments_ready"
	ActionAudioRouteReady   = "audio_route_ready"
	ActionVoiceReady        = "voice_ready"
	ActionOnboardingFailed  = "onboarding_failed"
	ActionListRooms         = "list_rooms"
	ActionRoomStateQuery    = "room_state"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type CreateRoomRequest struct {
	Name     string              `json:"name" validate:"required"`
	Settings domain.RoomSettings `json:"settings"`
}

type JoinRoomRequest struct {
	RoomID string `json:"room_id" validate:"required"`
	Role   string `json:"role" validate:"required"`
}

type RequestApprovalRequest struct {
	RoomID string `json:"room_id" validate:"required"`
	Role   string `json:"role" validate:"required"`
}

type ApprovalResponseRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	Approved bool   `json:"approved"`
	Message  string `json:"message"`
}

type ApprovalCancelRequest struct {
	RoomID string `json:"room_id" validate:"required"`
}

type UpdateSettingsRequest struct {
	Settings domain.RoomSettings `json:"settings"`
}

type TransferOwnershipRequest struct {
	NewOwnerID string `json:"new_owner_id" validate:"required"`
}

type ReadinessReport struct {
	Payload map[string]any `json:"payload"`
}

type OnboardingFailedReport struct {
	Reason string `json:"reason" validate:"required"`
}

func validateDTO(dto any) error {
	if err := validate.Struct(dto); err != nil {
		return errors.Validation("invalid payload: %v", err)
	}
	return nil
}
