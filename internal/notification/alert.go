package notification

import (
	"context"
	"time"

	"eventmaster/internal/push"
)

// FreshnessWindow separates notifications created just now from the
// history loaded when a subscription opens.
const FreshnessWindow = 30 * time.Second

type Alerter interface {
	Alert(ctx context.Context, alert push.Alert) error
}

type PermissionSource interface {
	Permission(ctx context.Context, userID string) (push.Permission, error)
}

func isFresh(n Notification, observedAt time.Time, window time.Duration) bool {
	if n.CreatedAt.IsZero() {
		return false
	}
	return observedAt.Sub(n.CreatedAt) < window
}

// shouldAlert reports whether an added notification raises a device alert.
func shouldAlert(n Notification, observedAt time.Time, window time.Duration, browserPush bool, permission push.Permission) bool {
	return browserPush && permission == push.PermissionGranted && isFresh(n, observedAt, window)
}

func alertFor(n Notification, icon string) push.Alert {
	alert := push.Alert{
		UserID:         n.UserID,
		NotificationID: n.ID,
		Title:          n.Title,
		Body:           n.Message,
		Icon:           icon,
	}
	if n.Link != nil {
		alert.Link = *n.Link
	}
	return alert
}
