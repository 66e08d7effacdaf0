package push

import (
	"context"
	"fmt"
	"log/slog"
)

// Permission mirrors the browser Notification.permission states.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

func ParsePermission(s string) (Permission, error) {
	switch p := Permission(s); p {
	case PermissionDefault, PermissionGranted, PermissionDenied:
		return p, nil
	default:
		return "", fmt.Errorf("unknown push permission %q", s)
	}
}

// Alert is a single device notification raised for a freshly created
// notification document.
type Alert struct {
	UserID         string `json:"user_id"`
	NotificationID string `json:"notification_id"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	Icon           string `json:"icon,omitempty"`
	Link           string `json:"link,omitempty"`
}

// LogAlerter only records alerts. It is used when no FCM credentials are
// configured.
type LogAlerter struct{}

func (LogAlerter) Alert(ctx context.Context, alert Alert) error {
	slog.Info("push alert",
		"user_id", alert.UserID,
		"notification_id", alert.NotificationID,
		"title", alert.Title)
	return nil
}
