package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"eventmaster/internal/push"
	"eventmaster/internal/queue"
)

// Sender delivers one alert to the user's device.
type Sender interface {
	Alert(ctx context.Context, alert push.Alert) error
}

type Worker struct {
	server *asynq.Server
	sender Sender
}

func NewWorker(redisAddr string, sender Sender) *Worker {
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				queue.QueuePush: 1,
			},
		},
	)

	return &Worker{
		server: server,
		sender: sender,
	}
}

func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypePushAlert, w.handlePushAlert)
	return mux
}

func (w *Worker) Start(ctx context.Context) error {
	slog.Info("Starting worker", "queues", []string{queue.QueuePush}, "concurrency", 10)

	if err := w.server.Start(w.Mux()); err != nil {
		return err
	}

	slog.Info("Worker started successfully")

	<-ctx.Done()

	w.server.Shutdown()
	slog.Info("Worker stopped")
	return nil
}

func (w *Worker) handlePushAlert(ctx context.Context, t *asynq.Task) error {
	var alert push.Alert
	if err := json.Unmarshal(t.Payload(), &alert); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if alert.UserID == "" {
		return fmt.Errorf("push alert without user: %w", asynq.SkipRetry)
	}

	if err := w.sender.Alert(ctx, alert); err != nil {
		slog.Error("Failed to deliver push alert",
			"error", err,
			"user_id", alert.UserID,
			"notification_id", alert.NotificationID,
		)
		return err
	}
	return nil
}
