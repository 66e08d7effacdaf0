package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"eventmaster/internal/config"
	"eventmaster/internal/docstore"
	"eventmaster/internal/push"
	"eventmaster/internal/security"
	"eventmaster/internal/worker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("worker exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(cfg.Logger())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sender worker.Sender = push.LogAlerter{}
	if cfg.StoreDriver == config.StoreFirestore {
		fb, err := config.InitFirebase(ctx)
		if err != nil {
			return err
		}
		defer fb.Close()

		var cipher push.Cipher = security.Plaintext{}
		if cfg.KMSKeyID != "" {
			kmsClient, err := config.NewKMSClient(ctx)
			if err != nil {
				return err
			}
			cipher = security.NewKMSCipher(kmsClient, cfg.KMSKeyID)
		}

		registry := push.NewRegistry(docstore.NewFirestore(fb.Firestore, 0), cipher)
		sender = push.NewFCMSender(fb.Messaging, registry, cfg.AppBaseURL)
	} else {
		slog.Warn("no Firestore configured, push alerts are only logged")
	}

	return worker.NewWorker(cfg.RedisAddr, sender).Start(ctx)
}
