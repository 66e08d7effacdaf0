package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (h *Handler) ListInvitations(c echo.Context) error {
	s, err := h.current(c)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"invitations": s.Invitations.Invitations(),
	})
}

func (h *Handler) AcceptInvitation(c echo.Context) error {
	s, err := h.current(c)
	if err != nil {
		return errorResponse(c, err)
	}
	if err := s.Accept(c.Request().Context(), c.Param("id")); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) DeclineInvitation(c echo.Context) error {
	s, err := h.current(c)
	if err != nil {
		return errorResponse(c, err)
	}
	if err := s.Decline(c.Request().Context(), c.Param("id")); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
