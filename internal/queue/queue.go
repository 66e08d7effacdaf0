package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"eventmaster/internal/push"
)

const (
	QueuePush     = "push"
	TypePushAlert = "push:alert"
)

// Client enqueues device alerts for the worker. It satisfies the feed's
// alerter, so raising an alert never waits on FCM.
type Client struct {
	client *asynq.Client
}

func NewClient(redisAddr string) *Client {
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	slog.Info("Successfully initialized task queue", "redis_addr", redisAddr)
	return &Client{client: client}
}

func NewPushAlertTask(alert push.Alert) (*asynq.Task, error) {
	payload, err := json.Marshal(alert)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypePushAlert, payload), nil
}

func (c *Client) Alert(ctx context.Context, alert push.Alert) error {
	task, err := NewPushAlertTask(alert)
	if err != nil {
		return err
	}

	// Alerts for the same notification collapse into one task.
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(QueuePush),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
		asynq.TaskID("alert:"+alert.NotificationID),
		asynq.Retention(time.Hour),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue push alert: %w", err)
	}

	slog.Debug("push alert enqueued", "task_id", info.ID, "user_id", alert.UserID)
	return nil
}

func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
