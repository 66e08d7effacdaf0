package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"eventmaster/internal/auth"
	"eventmaster/internal/docstore"
	"eventmaster/internal/notification"
)

func (h *Handler) ListNotifications(c echo.Context) error {
	s, err := h.current(c)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, s.Notifications.View())
}

func (h *Handler) SendNotification(c echo.Context) error {
	s, err := h.current(c)
	if err != nil {
		return errorResponse(c, err)
	}

	var req notification.NotificationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	if req.Type == "" {
		req.Type = notification.TypeInfo
	}
	if err := auth.Validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	id := s.API.Send(c.Request().Context(), &req)
	return c.JSON(http.StatusAccepted, map[string]string{"id": id})
}

func (h *Handler) MarkAsRead(c echo.Context) error {
	s, err := h.current(c)
	if err != nil {
		return errorResponse(c, err)
	}
	// Only notifications in the caller's own feed may be changed.
	id := c.Param("id")
	if !s.Notifications.View().Has(id) {
		return errorResponse(c, docstore.ErrNotFound)
	}
	s.API.MarkAsRead(c.Request().Context(), id)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) MarkAllAsRead(c echo.Context) error {
	s, err := h.current(c)
	if err != nil {
		return errorResponse(c, err)
	}
	if err := s.API.MarkAllAsRead(c.Request().Context()); err != nil {
		return errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteNotification(c echo.Context) error {
	s, err := h.current(c)
	if err != nil {
		return errorResponse(c, err)
	}
	// Only notifications in the caller's own feed may be changed.
	id := c.Param("id")
	if !s.Notifications.View().Has(id) {
		return errorResponse(c, docstore.ErrNotFound)
	}
	s.API.DeleteNotification(c.Request().Context(), id)
	return c.NoContent(http.StatusNoContent)
}
