package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"eventmaster/internal/auth"
	"eventmaster/internal/push"
)

type deviceRequest struct {
	Token      string `json:"token" validate:"max=4096"`
	Permission string `json:"permission" validate:"required,oneof=default granted denied"`
}

type preferenceRequest struct {
	BrowserPush *bool `json:"browserPush" validate:"required"`
}

// RegisterDevice records the browser's permission state and FCM token.
func (h *Handler) RegisterDevice(c echo.Context) error {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var req deviceRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	if err := auth.Validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}
	permission, err := push.ParsePermission(req.Permission)
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.devices.Register(c.Request().Context(), user.ID, req.Token, permission); err != nil {
		return errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SetPushPreference(c echo.Context) error {
	s, err := h.current(c)
	if err != nil {
		return errorResponse(c, err)
	}

	var req preferenceRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	if err := auth.Validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := s.SetBrowserPush(c.Request().Context(), *req.BrowserPush); err != nil {
		return errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
