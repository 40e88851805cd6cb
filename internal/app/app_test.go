package app

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thoriqulumar/kostan-be/internal/config"
	"github.com/thoriqulumar/kostan-be/internal/hub"
	"github.com/thoriqulumar/kostan-be/internal/storage"
	"github.com/thoriqulumar/kostan-be/internal/testutil"
	"github.com/thoriqulumar/kostan-be/pkg/middleware"
)

func newTestApp(t *testing.T) *App {
	t.Helper()

	cfg := &config.Config{
		Port:      "8080",
		JWTSecret: "test-secret",
		Location:  time.UTC,
		Reminder:  config.ReminderConfig{At: "09:00", Hour: 9, ShortMonthPolicy: "skip"},
		Stream:    config.StreamConfig{HeartbeatInterval: time.Second, WriteTimeout: time.Second},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := New(cfg, testutil.NewTestDB(t), storage.NewMemory(), logger)
	require.NoError(t, err)
	return a
}

func (a *App) token(t *testing.T, id uuid.UUID, role string) string {
	t.Helper()
	token, err := a.Verifier.Issue(id, "someone@example.com", role, time.Hour)
	require.NoError(t, err)
	return token
}

func (a *App) do(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	a := newTestApp(t)

	rec := a.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":{"status":"ok","connections":0}}`, rec.Body.String())
}

func TestSwaggerDoc(t *testing.T) {
	a := newTestApp(t)

	rec := a.do(http.MethodGet, "/swagger/doc.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/payments/{id}/approve")
}

func TestRoutes_Authentication(t *testing.T) {
	a := newTestApp(t)
	tenant := testutil.InsertUser(t, a.DB, "tenant@example.com", middleware.RoleUser)
	admin := testutil.InsertUser(t, a.DB, "admin@example.com", middleware.RoleAdmin)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"users without token", http.MethodGet, "/api/v1/users/me", "", http.StatusUnauthorized},
		{"payments without token", http.MethodGet, "/api/v1/payments/my-payments", "", http.StatusUnauthorized},
		{"rooms without token", http.MethodGet, "/api/v1/rooms/mine", "", http.StatusUnauthorized},
		{"notifications without token", http.MethodGet, "/api/v1/notifications", "", http.StatusUnauthorized},
		{"stream without token", http.MethodGet, "/api/v1/notifications/stream", "", http.StatusUnauthorized},
		{"profile", http.MethodGet, "/api/v1/users/me", a.token(t, tenant, middleware.RoleUser), http.StatusOK},
		{"own payments", http.MethodGet, "/api/v1/payments/my-payments", a.token(t, tenant, middleware.RoleUser), http.StatusOK},
		{"pending as tenant", http.MethodGet, "/api/v1/payments/pending", a.token(t, tenant, middleware.RoleUser), http.StatusForbidden},
		{"pending as admin", http.MethodGet, "/api/v1/payments/pending", a.token(t, admin, middleware.RoleAdmin), http.StatusOK},
		{"trigger as tenant", http.MethodPost, "/api/v1/notifications/trigger-payment-reminders", a.token(t, tenant, middleware.RoleUser), http.StatusForbidden},
		{"trigger as admin", http.MethodPost, "/api/v1/notifications/trigger-payment-reminders", a.token(t, admin, middleware.RoleAdmin), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(tt.method, tt.path, tt.token)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestNew_EmailSinkNeedsValidSender(t *testing.T) {
	cfg := &config.Config{
		JWTSecret: "test-secret",
		Location:  time.UTC,
		Reminder:  config.ReminderConfig{ShortMonthPolicy: "skip"},
		SMTP:      config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "not an address"},
	}

	_, err := New(cfg, testutil.NewTestDB(t), storage.NewMemory(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestHubClose_EndsOnlyStreams(t *testing.T) {
	a := newTestApp(t)
	tenant := testutil.InsertUser(t, a.DB, "tenant@example.com", middleware.RoleUser)
	token := a.token(t, tenant, middleware.RoleUser)

	server := httptest.NewServer(a.Router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/v1/notifications/stream?token="+token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event:"+hub.EventConnected+"\n", line)
	require.Eventually(t, func() bool { return a.Hub.LiveCount(tenant) == 1 }, 3*time.Second, 10*time.Millisecond)

	// This is what the server runs on shutdown.
	a.Hub.Close()

	_, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return a.Hub.TotalLive() == 0 }, 3*time.Second, 10*time.Millisecond)

	// Ordinary requests keep being served.
	rec := a.do(http.MethodGet, "/api/v1/users/me", token)
	assert.Equal(t, http.StatusOK, rec.Code)
}
