package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"eventmaster/internal/auth"
	"eventmaster/internal/docstore"
	"eventmaster/internal/invitation"
	"eventmaster/internal/push"
	"eventmaster/internal/session"
)

type Handler struct {
	sessions *session.Manager
	devices  *push.Registry
}

func New(sessions *session.Manager, devices *push.Registry) *Handler {
	return &Handler{
		sessions: sessions,
		devices:  devices,
	}
}

func HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// current returns the caller's session.
func (h *Handler) current(c echo.Context) (*session.Session, error) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return nil, session.ErrNoSession
	}
	return h.sessions.Get(user.ID)
}

func errorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, session.ErrNoSession):
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "No active session"})
	case errors.Is(err, docstore.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	case errors.Is(err, invitation.ErrNotPending):
		return c.JSON(http.StatusConflict, map[string]string{"error": "Invitation is no longer pending"})
	default:
		slog.Error("request failed", "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}
