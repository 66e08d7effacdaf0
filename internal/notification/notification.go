package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"

	"eventmaster/internal/docstore"
)

var validate = validator.New()

// ViewSource supplies the in-memory feed state MarkAllAsRead works from.
type ViewSource interface {
	View() View
}

type NotificationService struct {
	db    docstore.Store
	views ViewSource
}

func NewNotificationService(store docstore.Store, views ViewSource) *NotificationService {
	return &NotificationService{
		db:    store,
		views: views,
	}
}

// SendNotification creates a notification document and returns its id.
func (s *NotificationService) SendNotification(ctx context.Context, req *NotificationRequest) (string, error) {
	if req.Type == "" {
		req.Type = TypeInfo
	}
	if err := validate.Struct(req); err != nil {
		return "", fmt.Errorf("invalid notification request: %w", err)
	}

	var link interface{}
	if req.Link != nil && *req.Link != "" {
		link = *req.Link
	}

	id, err := s.db.Create(ctx, Collection, map[string]interface{}{
		"userId":    req.UserID,
		"title":     req.Title,
		"message":   req.Message,
		"type":      string(req.Type),
		"link":      link,
		"read":      false,
		"createdAt": docstore.ServerTimestamp,
	})
	if err != nil {
		return "", fmt.Errorf("failed to send notification: %w", err)
	}

	return id, nil
}

// Send is SendNotification for callers that do not act on failure: errors
// are logged and an empty id is returned.
func (s *NotificationService) Send(ctx context.Context, req *NotificationRequest) string {
	id, err := s.SendNotification(ctx, req)
	if err != nil {
		slog.Error("failed to send notification", "user_id", req.UserID, "error", err)
		return ""
	}
	return id
}

func (s *NotificationService) MarkAsRead(ctx context.Context, notificationID string) {
	if err := s.markAsRead(ctx, notificationID); err != nil {
		slog.Error("failed to mark notification as read", "notification_id", notificationID, "error", err)
	}
}

// MarkAllAsRead updates every unread notification of the current view
// concurrently and waits for all of them. Updates that succeeded stay
// applied when others fail.
func (s *NotificationService) MarkAllAsRead(ctx context.Context) error {
	unread := s.views.View().Unread()
	if len(unread) == 0 {
		return nil
	}

	errs := make([]error, len(unread))
	var wg sync.WaitGroup
	for i, id := range unread {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			if err := s.markAsRead(ctx, id); err != nil {
				errs[i] = fmt.Errorf("notification %s: %w", id, err)
			}
		}(i, id)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		slog.Error("failed to mark all notifications as read", "count", len(unread), "error", err)
		return fmt.Errorf("failed to mark all notifications as read: %w", err)
	}
	return nil
}

func (s *NotificationService) DeleteNotification(ctx context.Context, notificationID string) {
	if err := s.db.Delete(ctx, Collection, notificationID); err != nil {
		slog.Error("failed to delete notification", "notification_id", notificationID, "error", err)
	}
}

func (s *NotificationService) markAsRead(ctx context.Context, notificationID string) error {
	err := s.db.Update(ctx, Collection, notificationID, []docstore.Update{
		{Path: "read", Value: true},
	})
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	return nil
}
