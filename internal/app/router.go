package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/thoriqulumar/kostan-be/docs"
	"github.com/thoriqulumar/kostan-be/internal/notification"
	"github.com/thoriqulumar/kostan-be/internal/payment"
	"github.com/thoriqulumar/kostan-be/internal/reminder"
	"github.com/thoriqulumar/kostan-be/internal/room"
	"github.com/thoriqulumar/kostan-be/internal/user"
	"github.com/thoriqulumar/kostan-be/pkg/middleware"
	"github.com/thoriqulumar/kostan-be/pkg/response"
)

func (a *App) routes() http.Handler {
	userHandler := user.NewHandler(a.Users)
	roomHandler := room.NewHandler(a.Rooms)
	paymentHandler := payment.NewHandler(a.Payments)
	reminderHandler := reminder.NewHandler(a.Reminders)
	notificationHandler := notification.NewHandler(a.Notifications, a.Hub, a.Verifier, a.Config.Stream.WriteTimeout)

	r := chi.NewRouter()

	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)

	r.Get("/health", a.health)
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// The stream authenticates from its query string, so notifications
		// apply their own auth.
		r.Mount("/notifications", notificationHandler.Routes(reminderHandler.Trigger))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(a.Verifier))

			r.Mount("/users", userHandler.Routes())
			r.Mount("/rooms", roomHandler.Routes())
			r.Mount("/payments", paymentHandler.Routes())
		})
	})

	return r
}

type healthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
}

// health reports whether the database answers
func (a *App) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.DB.PingContext(ctx); err != nil {
		response.Error(w, http.StatusServiceUnavailable, "UNAVAILABLE", "database unreachable")
		return
	}
	response.JSON(w, http.StatusOK, healthResponse{Status: "ok", Connections: a.Hub.TotalLive()})
}
