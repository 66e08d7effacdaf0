package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"eventmaster/internal/auth"
	"eventmaster/internal/config"
	"eventmaster/internal/docstore"
	"eventmaster/internal/handlers"
	"eventmaster/internal/invitation"
	"eventmaster/internal/journal"
	"eventmaster/internal/push"
	"eventmaster/internal/queue"
	"eventmaster/internal/routes"
	"eventmaster/internal/security"
	"eventmaster/internal/session"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
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

	var (
		store    docstore.Store
		verifier auth.Verifier
	)
	switch cfg.StoreDriver {
	case config.StoreFirestore:
		fb, err := config.InitFirebase(ctx)
		if err != nil {
			return err
		}
		defer fb.Close()

		store = docstore.NewFirestore(fb.Firestore, 0)
		if cfg.AuthMode == config.AuthFirebase {
			verifier = auth.NewFirebaseVerifier(fb.Auth)
		}
	default:
		slog.Warn("using in-memory document store, data is lost on exit")
		store = docstore.NewMemory()
	}
	if verifier == nil {
		verifier = auth.NewJWTVerifier(cfg.JWTSecret)
	}

	var cipher push.Cipher = security.Plaintext{}
	if cfg.KMSKeyID != "" {
		kmsClient, err := config.NewKMSClient(ctx)
		if err != nil {
			return err
		}
		cipher = security.NewKMSCipher(kmsClient, cfg.KMSKeyID)
	} else {
		slog.Warn("AWS_KMS_KEY_ID not set, push tokens are stored unencrypted")
	}
	registry := push.NewRegistry(store, cipher)

	alerts := queue.NewClient(cfg.RedisAddr)
	defer alerts.Close()

	var responses invitation.Journal
	if js, err := journal.Connect(cfg.DatabaseURL); err != nil {
		slog.Warn("invitation response journal disabled", "error", err)
	} else {
		defer js.Close()
		responses = js
	}

	sessions := session.NewManager(store, session.Options{
		Alerter:     alerts,
		Permissions: registry,
		Journal:     responses,
		Icon:        cfg.PushIconURL,
		Window:      cfg.PushFreshness,
	})
	defer sessions.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))

	routes.SetupRoutes(
		e.Group("/api"),
		handlers.New(sessions, registry),
		verifier,
		auth.NewRateLimiter(cfg.RateLimitPerMinute),
	)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver, "auth", cfg.AuthMode)
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	slog.Info("shutting down server")
	return e.Shutdown(shutdownCtx)
}
