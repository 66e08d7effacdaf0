package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"firebase.google.com/go/v4/messaging"
)

// FCMSender delivers alerts to the user's registered browser through
// Firebase Cloud Messaging.
type FCMSender struct {
	client   *messaging.Client
	registry *Registry
	baseURL  string
}

func NewFCMSender(client *messaging.Client, registry *Registry, baseURL string) *FCMSender {
	return &FCMSender{
		client:   client,
		registry: registry,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

func (s *FCMSender) Alert(ctx context.Context, alert Alert) error {
	token, err := s.registry.Token(ctx, alert.UserID)
	if errors.Is(err, ErrNoDevice) {
		slog.Info("skipping push alert, no granted device", "user_id", alert.UserID)
		return nil
	}
	if err != nil {
		return err
	}

	msg := &messaging.Message{
		Token: token,
		Data: map[string]string{
			"notificationId": alert.NotificationID,
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: alert.Title,
				Body:  alert.Body,
				Icon:  alert.Icon,
				Tag:   alert.NotificationID,
			},
		},
	}
	if link := s.absoluteLink(alert.Link); link != "" {
		msg.Webpush.FCMOptions = &messaging.WebpushFCMOptions{Link: link}
	}

	id, err := s.client.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send push alert: %w", err)
	}

	slog.Info("push alert sent", "user_id", alert.UserID, "message_id", id)
	return nil
}

// absoluteLink turns an in-app path into the https URL FCM requires.
func (s *FCMSender) absoluteLink(link string) string {
	switch {
	case link == "":
		return ""
	case strings.HasPrefix(link, "https://"):
		return link
	case strings.HasPrefix(link, "/") && strings.HasPrefix(s.baseURL, "https://"):
		return s.baseURL + link
	default:
		return ""
	}
}
