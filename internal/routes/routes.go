package routes

import (
	"github.com/labstack/echo/v4"
	limiterpkg "github.com/ulule/limiter/v3"

	"eventmaster/internal/auth"
	"eventmaster/internal/handlers"
)

func SetupRoutes(api *echo.Group, h *handlers.Handler, verifier auth.Verifier, limiter *limiterpkg.Limiter) {
	// Public routes
	api.GET("/health", handlers.HealthCheck)

	// Protected routes
	api.Use(auth.Middleware(verifier), auth.RateLimitMiddleware(limiter))

	api.POST("/session", h.StartSession)
	api.DELETE("/session", h.EndSession)

	notifications := api.Group("/notifications")
	notifications.GET("", h.ListNotifications)
	notifications.POST("", h.SendNotification)
	notifications.POST("/read-all", h.MarkAllAsRead)
	notifications.POST("/:id/read", h.MarkAsRead)
	notifications.DELETE("/:id", h.DeleteNotification)

	invitations := api.Group("/invitations")
	invitations.GET("", h.ListInvitations)
	invitations.POST("/:id/accept", h.AcceptInvitation)
	invitations.POST("/:id/decline", h.DeclineInvitation)

	pushGroup := api.Group("/push")
	pushGroup.PUT("/device", h.RegisterDevice)
	pushGroup.PUT("/preference", h.SetPushPreference)

	api.GET("/stream", h.Stream)
}
