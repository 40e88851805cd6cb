package notification

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thoriqulumar/kostan-be/internal/hub"
	"github.com/thoriqulumar/kostan-be/internal/testutil"
	"github.com/thoriqulumar/kostan-be/pkg/middleware"
	"github.com/thoriqulumar/kostan-be/pkg/response"
)

const testSecret = "notification-handler-test-secret"

type handlerFixture struct {
	service  *Service
	hub      *hub.Hub
	verifier *middleware.JWTVerifier
	router   chi.Router
	tenant   uuid.UUID
	other    uuid.UUID
	admin    uuid.UUID
}

func newHandlerFixture(t *testing.T, trigger http.HandlerFunc) *handlerFixture {
	t.Helper()

	db := testutil.NewTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := hub.New(logger)
	service := NewService(NewRepository(db), h, WithLogger(logger))
	verifier := middleware.NewJWTVerifier(testSecret)

	return &handlerFixture{
		service:  service,
		hub:      h,
		verifier: verifier,
		router:   NewHandler(service, h, verifier, time.Second).Routes(trigger),
		tenant:   testutil.InsertUser(t, db, "tenant@example.com", middleware.RoleUser),
		other:    testutil.InsertUser(t, db, "other@example.com", middleware.RoleUser),
		admin:    testutil.InsertUser(t, db, "admin@example.com", middleware.RoleAdmin),
	}
}

func (f *handlerFixture) token(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	token, err := f.verifier.Issue(userID, "someone@example.com", role, time.Hour)
	require.NoError(t, err)
	return token
}

func (f *handlerFixture) do(t *testing.T, method, path, token string) (*httptest.ResponseRecorder, response.APIResponse) {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var body response.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestHandler_RequiresToken(t *testing.T) {
	f := newHandlerFixture(t, nil)

	for _, path := range []string{"/", "/unread", "/unread/count"} {
		rec, body := f.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.False(t, body.Success)
	}
}

func TestHandler_SendTestAndList(t *testing.T) {
	f := newHandlerFixture(t, nil)
	token := f.token(t, f.tenant, middleware.RoleUser)

	rec, body := f.do(t, http.MethodPost, "/test", token)
	require.Equal(t, http.StatusCreated, rec.Code)
	data := body.Data.(map[string]any)
	assert.Equal(t, "Test notification sent!", data["message"])
	assert.Equal(t, f.tenant.String(), data["user_id"])
	assert.NotEmpty(t, data["notification_id"])

	rec, body = f.do(t, http.MethodGet, "/unread/count", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"count": float64(1)}, body.Data)

	rec, body = f.do(t, http.MethodGet, "/?page=1&per_page=10", token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, body.Meta)
	assert.Equal(t, 1, body.Meta.Total)
	items := body.Data.([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "payment_reminder", item["type"])
	assert.Equal(t, "Test Notification", item["title"])
	assert.NotContains(t, item, "payment_month")

	// Other tenants see nothing.
	_, body = f.do(t, http.MethodGet, "/unread", f.token(t, f.other, middleware.RoleUser))
	assert.Empty(t, body.Data)
}

func TestHandler_MarkAsRead(t *testing.T) {
	f := newHandlerFixture(t, nil)
	ctx := context.Background()
	token := f.token(t, f.tenant, middleware.RoleUser)

	n, err := f.service.Create(ctx, f.tenant, TestMessage{SentAt: time.Now()})
	require.NoError(t, err)
	_, err = f.service.Create(ctx, f.tenant, TestMessage{SentAt: time.Now()})
	require.NoError(t, err)

	rec, _ := f.do(t, http.MethodPatch, "/not-a-uuid/read", token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPatch, "/"+uuid.NewString()+"/read", token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = f.do(t, http.MethodPatch, "/"+n.ID.String()+"/read", f.token(t, f.other, middleware.RoleUser))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = f.do(t, http.MethodPatch, "/"+n.ID.String()+"/read", token)
	assert.Equal(t, http.StatusOK, rec.Code)

	count, err := f.service.UnreadCount(ctx, f.tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	rec, _ = f.do(t, http.MethodPatch, "/read-all", token)
	assert.Equal(t, http.StatusOK, rec.Code)

	count, err = f.service.UnreadCount(ctx, f.tenant)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestHandler_TriggerRoute(t *testing.T) {
	called := 0
	f := newHandlerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		called++
		response.JSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})

	rec, _ := f.do(t, http.MethodPost, "/trigger-payment-reminders", f.token(t, f.tenant, middleware.RoleUser))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, called)

	rec, _ = f.do(t, http.MethodPost, "/trigger-payment-reminders", f.token(t, f.admin, middleware.RoleAdmin))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, called)
}

func TestHandler_TriggerRouteAbsent(t *testing.T) {
	f := newHandlerFixture(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/trigger-payment-reminders", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, f.admin, middleware.RoleAdmin))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestStream_RejectsBadToken(t *testing.T) {
	f := newHandlerFixture(t, nil)

	for name, path := range map[string]string{
		"missing": "/stream",
		"garbage": "/stream?token=garbage",
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "Unauthorized")
			assert.Zero(t, f.hub.TotalLive())
		})
	}
}

type sseEvent struct {
	name string
	data string
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()

	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSuffix(line, "\n")

		switch {
		case line == "":
			if ev.name != "" {
				return ev
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			ev.name = strings.TrimPrefix(strings.TrimPrefix(line, "event:"), " ")
		case strings.HasPrefix(line, "data:"):
			ev.data = strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
		}
	}
}

func TestStream_DeliversLiveNotifications(t *testing.T) {
	f := newHandlerFixture(t, nil)
	server := httptest.NewServer(f.router)
	defer server.Close()

	_, err := f.service.Create(context.Background(), f.tenant, TestMessage{SentAt: time.Now()})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		server.URL+"/stream?token="+f.token(t, f.tenant, middleware.RoleUser), nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)

	ev := readEvent(t, reader)
	assert.Equal(t, hub.EventConnected, ev.name)
	assert.JSONEq(t, `{"message":"Connected to notifications stream"}`, ev.data)

	ev = readEvent(t, reader)
	assert.Equal(t, hub.EventUnreadCount, ev.name)
	assert.JSONEq(t, `{"count":1}`, ev.data)

	assert.Equal(t, 1, f.hub.LiveCount(f.tenant))

	n, err := f.service.Create(context.Background(), f.tenant, PaymentRejected{Room: "A1", Period: october, Reason: "blurry"})
	require.NoError(t, err)

	ev = readEvent(t, reader)
	require.Equal(t, hub.EventNotification, ev.name)
	var pushed NotificationResponse
	require.NoError(t, json.Unmarshal([]byte(ev.data), &pushed))
	assert.Equal(t, n.ID.String(), pushed.ID)
	assert.Equal(t, KindPaymentRejected, pushed.Type)
	require.NotNil(t, pushed.PaymentMonth)
	assert.Equal(t, 10, *pushed.PaymentMonth)

	ev = readEvent(t, reader)
	assert.Equal(t, hub.EventUnreadCount, ev.name)
	assert.JSONEq(t, `{"count":2}`, ev.data)

	// Notifications for other users never reach this stream.
	_, err = f.service.Create(context.Background(), f.other, TestMessage{SentAt: time.Now()})
	require.NoError(t, err)

	cancel()
	resp.Body.Close()

	require.Eventually(t, func() bool {
		return f.hub.LiveCount(f.tenant) == 0
	}, 3*time.Second, 10*time.Millisecond)
}

func (f *handlerFixture) openStream(t *testing.T, ctx context.Context, baseURL string) (*http.Response, *bufio.Reader) {
	t.Helper()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		baseURL+"/stream?token="+f.token(t, f.tenant, middleware.RoleUser), nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return resp, bufio.NewReader(resp.Body)
}

func TestStream_PushesRacingDisconnects(t *testing.T) {
	f := newHandlerFixture(t, nil)
	server := httptest.NewServer(f.router)
	defer server.Close()

	stop := make(chan struct{})
	var (
		wg       sync.WaitGroup
		stopOnce sync.Once
	)
	stopPushers := func() {
		stopOnce.Do(func() {
			close(stop)
			wg.Wait()
		})
	}
	defer stopPushers()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					f.hub.Push(f.tenant, hub.EventUnreadCount, UnreadCountResponse{Count: 7})
					f.hub.BroadcastHeartbeat()
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		resp, reader := f.openStream(t, ctx, server.URL)

		// connected is always the first event, even while pushes are flowing.
		ev := readEvent(t, reader)
		assert.Equal(t, hub.EventConnected, ev.name)

		cancel()
		resp.Body.Close()
	}

	stopPushers()
	require.Eventually(t, func() bool {
		return f.hub.TotalLive() == 0
	}, 3*time.Second, 10*time.Millisecond)
}

func TestStream_EndsWhenHubCloses(t *testing.T) {
	f := newHandlerFixture(t, nil)
	server := httptest.NewServer(f.router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, reader := f.openStream(t, ctx, server.URL)
	defer resp.Body.Close()

	assert.Equal(t, hub.EventConnected, readEvent(t, reader).name)
	assert.Equal(t, hub.EventUnreadCount, readEvent(t, reader).name)

	f.hub.Close()

	_, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return f.hub.LiveCount(f.tenant) == 0
	}, 3*time.Second, 10*time.Millisecond)
}
