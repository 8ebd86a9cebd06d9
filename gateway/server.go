// Package gateway is the outer surface: HTTP endpoints for account
// registration and login, and the websocket endpoint every realtime
// action flows through.
package gateway

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"jamlab/auth"
	"jamlab/domain"
	"jamlab/errors"
	"jamlab/observability"
	"jamlab/projection"
	"jamlab/repositories"
	"jamlab/runtime"
)

// ApprovalResponder is the approval engine surface the gateway drives
// directly: explicit knocks, owner responses, and requester cancels.
type ApprovalResponder interface {
	Request(ctx context.Context, connID, roomID, userID, username string, role domain.Role) error
	Respond(ctx context.Context, ownerConnID, targetUserID string, approved bool, message string) error
	Cancel(ctx context.Context, connID, userID, roomID string) error
}

type Server struct {
	log          *slog.Logger
	echo         *echo.Echo
	users        repositories.IUserRepository
	tokens       *auth.TokenManager
	registry     *runtime.Registry
	orchestrator *runtime.Orchestrator
	approvals    ApprovalResponder
	bus          *runtime.Bus
	lobby        *projection.Lobby
	metrics      *observability.Metrics
	debug        bool
}

func NewServer(
	log *slog.Logger,
	users repositories.IUserRepository,
	tokens *auth.TokenManager,
	registry *runtime.Registry,
	orchestrator *runtime.Orchestrator,
	approvals ApprovalResponder,
	bus *runtime.Bus,
	lobby *projection.Lobby,
	metrics *observability.Metrics,
	debug bool,
) *Server {
	s := &Server{
		log:          log,
		echo:         echo.New(),
		users:        users,
		tokens:       tokens,
		registry:     registry,
		orchestrator: orchestrator,
		approvals:    approvals,
		bus:          bus,
		lobby:        lobby,
		metrics:      metrics,
		debug:        debug,
	}

	s.echo.HideBanner = true
	s.echo.Use(middleware.Recover())

	s.echo.POST("/register", s.handleRegister)
	s.echo.POST("/login", s.handleLogin)
	s.echo.GET("/rooms", s.handleListRooms)
	s.echo.GET("/stats", s.handleStats)
	s.echo.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	s.echo.GET("/ws", s.handleWebsocket)

	return s
}

// Run serves until the context ends. Implements contract.Worker.
func (s *Server) Run(ctx context.Context) error {
	addr := s.echo.Server.Addr
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(addr)
	}()
	select {
	case <-ctx.Done():
		_ = s.echo.Shutdown(context.Background())
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// SetAddr fixes the listen address before Run.
func (s *Server) SetAddr(addr string) {
	s.echo.Server.Addr = addr
}

func (s *Server) handleRegister(c echo.Context) error {
	var req auth.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(errors.Validation("invalid request body")))
	}
	if err := auth.ValidateRegister(req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.log.Error("Password hashing failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody(err))
	}

	userID, err := s.users.CreateUser(req.Username, req.Email, hash)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.CodeOf(err) == errors.CodeStateConflict {
			status = http.StatusConflict
		}
		return c.JSON(status, errorBody(err))
	}
	return c.JSON(http.StatusCreated, map[string]string{"user_id": userID})
}

func (s *Server) handleLogin(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(errors.Validation("invalid request body")))
	}
	if err := validateDTO(req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}

	user, err := s.users.GetUserByEmail(req.Email)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	}
	match, err := auth.ComparePassword(req.Password, user.PasswordHash)
	if err != nil || !match {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	}

	token, err := s.tokens.Generate(user.ID, user.Username, user.Roles)
	if err != nil {
		s.log.Error("Token generation failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not create token"})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"token":    token,
		"user_id":  user.ID,
		"username": user.Username,
	})
}

func (s *Server) handleListRooms(c echo.Context) error {
	return c.JSON(http.StatusOK, s.lobby.List())
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.metrics.Snapshot())
}

func errorBody(err error) map[string]string {
	body := map[string]string{"message": err.Error()}
	if code := errors.CodeOf(err); code != "" {
		body["code"] = string(code)
	}
	return body
}
