// Package app wires the features into a running server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/thoriqulumar/kostan-be/internal/config"
	"github.com/thoriqulumar/kostan-be/internal/hub"
	"github.com/thoriqulumar/kostan-be/internal/mailer"
	"github.com/thoriqulumar/kostan-be/internal/notification"
	"github.com/thoriqulumar/kostan-be/internal/payment"
	"github.com/thoriqulumar/kostan-be/internal/reminder"
	"github.com/thoriqulumar/kostan-be/internal/room"
	"github.com/thoriqulumar/kostan-be/internal/storage"
	"github.com/thoriqulumar/kostan-be/internal/user"
	"github.com/thoriqulumar/kostan-be/pkg/middleware"
)

const shutdownTimeout = 10 * time.Second

// App holds the wired services of one server process
type App struct {
	Config        *config.Config
	DB            *sqlx.DB
	Hub           *hub.Hub
	Verifier      *middleware.JWTVerifier
	Users         *user.Service
	Rooms         *room.Service
	Notifications *notification.Service
	Payments      *payment.Service
	Reminders     *reminder.Service
	Scheduler     *reminder.Scheduler
	Router        http.Handler

	logger *slog.Logger
}

// New builds every feature on top of an open database and blob store. The hub
// is built first and handed to the notification service.
func New(cfg *config.Config, db *sqlx.DB, blobs *storage.BlobStore, logger *slog.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		DB:       db,
		Hub:      hub.New(logger),
		Verifier: middleware.NewJWTVerifier(cfg.JWTSecret),
		logger:   logger.With("component", "app"),
	}

	// User feature
	a.Users = user.NewService(user.NewRepository(db))

	// Room feature
	roomRepo := room.NewRepository(db)
	a.Rooms = room.NewService(roomRepo)

	// Notification feature, with email when SMTP is configured
	notificationOpts := []notification.Option{notification.WithLogger(logger)}
	if cfg.SMTP.Enabled() {
		sender := mailer.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password)
		sink, err := mailer.NewEmailSink(sender, a.Users, cfg.SMTP.From, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to configure email: %w", err)
		}
		notificationOpts = append(notificationOpts, notification.WithSinks(sink))
		a.logger.Info("email notifications enabled", "smtp", cfg.SMTP.Addr())
	}
	a.Notifications = notification.NewService(notification.NewRepository(db), a.Hub, notificationOpts...)

	// Payment feature
	a.Payments = payment.NewService(db, a.Notifications, blobs, logger)

	// Reminder feature
	a.Reminders = reminder.NewService(roomRepo, a.Payments, a.Notifications,
		reminder.WithLocation(cfg.Location),
		reminder.WithPolicy(reminder.Policy(cfg.Reminder.ShortMonthPolicy)),
		reminder.WithLogger(logger),
	)
	a.Scheduler = reminder.NewScheduler(a.Reminders, cfg.Reminder.Hour, cfg.Reminder.Minute, cfg.Location, logger)

	a.Router = a.routes()
	return a, nil
}

// Serve runs the HTTP server, the heartbeat and the reminder scheduler until
// ctx is cancelled, then shuts them down and waits for pending email.
func (a *App) Serve(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + a.Config.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Open event streams never go idle on their own; other requests drain normally.
	server.RegisterOnShutdown(a.Hub.Close)

	background, stopBackground := context.WithCancel(ctx)
	defer stopBackground()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.Hub.RunHeartbeat(background, a.Config.Stream.HeartbeatInterval)
	}()
	go func() {
		defer wg.Done()
		a.Scheduler.Start(background)
	}()

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "port", a.Config.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var err error
	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
	case err = <-serveErr:
		if err != nil {
			err = fmt.Errorf("server failed: %w", err)
		}
	}

	stopBackground()
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		a.logger.Error("server shutdown failed", "error", shutdownErr)
	}

	a.Notifications.Wait()
	a.logger.Info("server stopped")
	return err
}
