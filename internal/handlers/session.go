package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"eventmaster/internal/auth"
	"eventmaster/internal/session"
)

type sessionResponse struct {
	UserID  string          `json:"userId"`
	Profile session.Profile `json:"profile"`
}

// StartSession signs the caller in, replacing any session they had.
func (h *Handler) StartSession(c echo.Context) error {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return errorResponse(c, session.ErrNoSession)
	}

	s, err := h.sessions.Start(c.Request().Context(), session.Identity{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.Name,
	})
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusCreated, sessionResponse{UserID: user.ID, Profile: s.Profile()})
}

func (h *Handler) EndSession(c echo.Context) error {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return errorResponse(c, session.ErrNoSession)
	}
	if err := h.sessions.End(user.ID); err != nil {
		return errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
