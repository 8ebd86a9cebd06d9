package gateway

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"jamlab/auth"
	"jamlab/contract"
	"jamlab/domain"
	"jamlab/domain/event"
	"jamlab/errors"
	"jamlab/observability"
)

const (
	readDeadline = 60 * time.Second
	pingInterval = 30 * time.Second
)

type inboundFrame struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleWebsocket authenticates the token, upgrades the connection, and
// pumps frames until the peer goes away. Every exit path runs the
// disconnect flow so grace periods and approval withdrawals always fire.
func (s *Server) handleWebsocket(c echo.Context) error {
	claims, err := s.authenticate(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
	}

	up := upgrader
	up.CheckOrigin = func(r *http.Request) bool { return s.debug || r.Header.Get("Origin") == "" || r.Host == r.Header.Get("Origin") }
	ws, err := up.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Error("Websocket upgrade failed", "error", err)
		return err
	}
	defer ws.Close()

	connID := uuid.NewString()
	sink := newWSSink(ws)
	s.registry.Register(connID, sink)
	defer s.orchestrator.HandleDisconnect(context.Background(), connID)

	s.log.Info("Connection opened", "conn", connID, "user", claims.UserID)

	if err := ws.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		return err
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readDeadline))
	})

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				sink.mu.Lock()
				err := ws.WriteMessage(websocket.PingMessage, nil)
				sink.mu.Unlock()
				if err != nil {
					return
				}
			case <-c.Request().Context().Done():
				return
			}
		}
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			s.logSocketClose(connID, err)
			return nil
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			s.sendError(connID, errors.Validation("malformed frame"))
			continue
		}

		if err := s.handleFrame(c.Request().Context(), connID, claims, frame); err != nil {
			s.sendError(connID, err)
		}
	}
}

func (s *Server) authenticate(c echo.Context) (*auth.CustomClaims, error) {
	token := c.QueryParam("token")
	if token == "" {
		return nil, errors.Permission("missing token")
	}
	return s.tokens.Validate(token)
}

// handleFrame runs dispatch under latency instrumentation, one sample per
// inbound action.
func (s *Server) handleFrame(ctx context.Context, connID string, claims *auth.CustomClaims, frame inboundFrame) error {
	return observability.Instrument(s.metrics, "ws."+frame.Action, func() error {
		return s.dispatch(ctx, connID, claims, frame)
	})
}

// dispatch routes one inbound frame. Errors bubble up as error frames to
// the sender; they never close the connection.
func (s *Server) dispatch(ctx context.Context, connID string, claims *auth.CustomClaims, frame inboundFrame) error {
	switch frame.Action {
	case ActionCreateRoom:
		var req CreateRoomRequest
		if err := decode(frame.Data, &req); err != nil {
			return err
		}
		state, err := s.orchestrator.CreateRoom(ctx, connID, claims.UserID, req.Name, req.Settings)
		if err != nil {
			return err
		}
		s.registry.SendTo(connID, contract.Frame{Action: contract.ActionRoomState, Data: state})
		return nil

	case ActionJoinRoom:
		var req JoinRoomRequest
		if err := decode(frame.Data, &req); err != nil {
			return err
		}
		role, err := domain.ParseRole(req.Role)
		if err != nil {
			return err
		}
		state, admitted, err := s.orchestrator.JoinRoom(ctx, connID, req.RoomID, claims.UserID, claims.Username, role)
		if err != nil {
			return err
		}
		if admitted {
			s.registry.SendTo(connID, contract.Frame{Action: contract.ActionRoomState, Data: state})
		}
		return nil

	case ActionLeaveRoom:
		return s.orchestrator.LeaveRoom(ctx, connID)

	case ActionRequestApproval:
		var req RequestApprovalRequest
		if err := decode(frame.Data, &req); err != nil {
			return err
		}
		role, err := domain.ParseRole(req.Role)
		if err != nil {
			return err
		}
		return s.approvals.Request(ctx, connID, req.RoomID, claims.UserID, claims.Username, role)

	case ActionApprovalResponse:
		var req ApprovalResponseRequest
		if err := decode(frame.Data, &req); err != nil {
			return err
		}
		return s.approvals.Respond(ctx, connID, req.UserID, req.Approved, req.Message)

	case ActionApprovalCancel:
		var req ApprovalCancelRequest
		if err := decode(frame.Data, &req); err != nil {
			return err
		}
		return s.approvals.Cancel(ctx, connID, claims.UserID, req.RoomID)

	case ActionUpdateSettings:
		var req UpdateSettingsRequest
		if err := decode(frame.Data, &req); err != nil {
			return err
		}
		return s.orchestrator.UpdateSettings(ctx, connID, req.Settings)

	case ActionTransferOwnership:
		var req TransferOwnershipRequest
		if err := decode(frame.Data, &req); err != nil {
			return err
		}
		return s.orchestrator.TransferOwnership(ctx, connID, req.NewOwnerID)

	case ActionInstrumentsReady, ActionAudioRouteReady, ActionVoiceReady:
		var report ReadinessReport
		if err := decode(frame.Data, &report); err != nil {
			return err
		}
		return s.publishReadiness(ctx, connID, claims.UserID, frame.Action, report.Payload)

	case ActionOnboardingFailed:
		var report OnboardingFailedReport
		if err := decode(frame.Data, &report); err != nil {
			return err
		}
		binding, ok := s.registry.BindingFor(connID)
		if !ok {
			return errors.NotFound("connection %s is not in a room", connID)
		}
		return s.bus.Publish(ctx, event.OnboardingFailed{
			Header: event.NewHeader(binding.RoomID),
			UserID: claims.UserID,
			Reason: report.Reason,
		})

	case ActionListRooms:
		s.registry.SendTo(connID, contract.Frame{Action: ActionListRooms, Data: s.lobby.List()})
		return nil

	case ActionRoomStateQuery:
		state, err := s.orchestrator.RoomStateFor(connID)
		if err != nil {
			return err
		}
		s.registry.SendTo(connID, contract.Frame{Action: contract.ActionRoomState, Data: state})
		return nil

	default:
		return errors.Validation("unknown action %q", frame.Action)
	}
}

// publishReadiness re-publishes a client readiness report as the matching
// domain event. The room comes from the connection's binding; a client
// cannot report for a room it is not in.
func (s *Server) publishReadiness(ctx context.Context, connID, userID, action string, payload map[string]any) error {
	binding, ok := s.registry.BindingFor(connID)
	if !ok {
		return errors.NotFound("connection %s is not in a room", connID)
	}
	header := event.NewHeader(binding.RoomID)
	switch action {
	case ActionInstrumentsReady:
		return s.bus.Publish(ctx, event.InstrumentsReady{Header: header, UserID: userID, Payload: payload})
	case ActionAudioRouteReady:
		return s.bus.Publish(ctx, event.AudioRouteReady{Header: header, UserID: userID, Payload: payload})
	default:
		return s.bus.Publish(ctx, event.VoiceReady{Header: header, UserID: userID, Payload: payload})
	}
}

func (s *Server) sendError(connID string, err error) {
	s.registry.SendTo(connID, contract.Frame{
		Action: contract.ActionError,
		Data: map[string]string{
			"code":    string(errors.CodeOf(err)),
			"message": err.Error(),
		},
	})
}

func (s *Server) logSocketClose(connID string, err error) {
	var closeErr *websocket.CloseError
	if stderrors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway:
			s.log.Info("Connection closed", "conn", connID)
			return
		}
	}
	s.log.Warn("Connection dropped", "conn", connID, "error", err)
}

func decode(raw json.RawMessage, dto any) error {
	if err := json.Unmarshal(raw, dto); err != nil {
		return errors.Validation("malformed payload: %v", err)
	}
	return validateDTO(dto)
}
