package notification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thoriqulumar/kostan-be/internal/billing"
	"github.com/thoriqulumar/kostan-be/internal/database"
	"github.com/thoriqulumar/kostan-be/internal/hub"
	"github.com/thoriqulumar/kostan-be/internal/testutil"
)

type push struct {
	userID  uuid.UUID
	event   string
	payload any
}

type fakePublisher struct {
	mu     sync.Mutex
	pushes []push
}

func (p *fakePublisher) Push(userID uuid.UUID, event string, payload any) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, push{userID, event, payload})
	return 1
}

func (p *fakePublisher) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	events := make([]string, len(p.pushes))
	for i, ps := range p.pushes {
		events[i] = ps.event
	}
	return events
}

func (p *fakePublisher) Last(event string) any {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.pushes) - 1; i >= 0; i-- {
		if p.pushes[i].event == event {
			return p.pushes[i].payload
		}
	}
	return nil
}

type recordingSink struct {
	mu        sync.Mutex
	delivered []uuid.UUID
	err       error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Deliver(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, n.ID)
	return s.err
}

var october = billing.Period{Month: time.October, Year: 2025}

type fixture struct {
	db        *sqlx.DB
	service   *Service
	publisher *fakePublisher
	clock     *testutil.Clock
	tenant    uuid.UUID
}

func newFixture(t *testing.T, sinks ...Sink) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t)
	publisher := &fakePublisher{}
	clock := testutil.NewClock(time.Date(2025, time.October, 5, 9, 0, 0, 0, time.UTC))
	service := NewService(NewRepository(db), publisher,
		WithSinks(sinks...),
		WithClock(clock.Now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	return &fixture{
		db:        db,
		service:   service,
		publisher: publisher,
		clock:     clock,
		tenant:    testutil.InsertUser(t, db, "tenant@example.com", "user"),
	}
}

func reminder() PaymentReminder {
	return PaymentReminder{Room: "A1", Period: october, Price: decimal.NewFromInt(1500000)}
}

func TestService_CreatePersistsThenPublishes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	n, err := f.service.Create(ctx, f.tenant, reminder())
	require.NoError(t, err)
	assert.Equal(t, KindPaymentReminder, n.Kind)
	require.NotNil(t, n.PaymentMonth)
	assert.Equal(t, 10, *n.PaymentMonth)

	stored, err := f.service.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, n.Title, stored.Title)
	assert.False(t, stored.IsRead)
	period, ok := stored.Period()
	require.True(t, ok)
	assert.Equal(t, october, period)

	assert.Equal(t, []string{hub.EventNotification, hub.EventUnreadCount}, f.publisher.Events())
	assert.Equal(t, UnreadCountResponse{Count: 1}, f.publisher.Last(hub.EventUnreadCount))
	pushed, ok := f.publisher.Last(hub.EventNotification).(*NotificationResponse)
	require.True(t, ok)
	assert.Equal(t, n.ID.String(), pushed.ID)
}

func TestService_DuplicateReminderRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.service.Create(ctx, f.tenant, reminder())
	require.NoError(t, err)

	_, err = f.service.Create(ctx, f.tenant, reminder())
	assert.ErrorIs(t, err, ErrReminderExists)
	assert.Equal(t, 1, testutil.Count(t, f.db, "notifications", ""))

	has, err := f.service.HasReminder(ctx, f.tenant, october)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = f.service.HasReminder(ctx, f.tenant, billing.Period{Month: time.November, Year: 2025})
	require.NoError(t, err)
	assert.False(t, has)

	// Test messages share the reminder kind but carry no period.
	for i := 0; i < 2; i++ {
		_, err = f.service.Create(ctx, f.tenant, TestMessage{SentAt: time.Now()})
		require.NoError(t, err)
	}
}

func TestService_StageIsInvisibleUntilCommit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var staged *Notification
	err := database.WithTx(ctx, f.db, func(tx *sqlx.Tx) error {
		var err error
		staged, err = f.service.Stage(ctx, tx, f.tenant, PaymentRejected{Room: "A1", Period: october, Reason: "blurry"})
		if err != nil {
			return err
		}
		return errors.New("rollback")
	})
	require.Error(t, err)
	require.NotNil(t, staged)
	assert.Zero(t, testutil.Count(t, f.db, "notifications", ""))
	assert.Empty(t, f.publisher.Events())

	err = database.WithTx(ctx, f.db, func(tx *sqlx.Tx) error {
		var err error
		staged, err = f.service.Stage(ctx, tx, f.tenant, PaymentRejected{Room: "A1", Period: october, Reason: "blurry"})
		return err
	})
	require.NoError(t, err)
	f.service.Publish(ctx, staged)

	assert.Equal(t, 1, testutil.Count(t, f.db, "notifications", ""))
	assert.Equal(t, []string{hub.EventNotification, hub.EventUnreadCount}, f.publisher.Events())
}

func TestService_SinksRunAfterPublish(t *testing.T) {
	ctx := context.Background()
	ok := &recordingSink{}
	failing := &recordingSink{err: errors.New("smtp down")}
	f := newFixture(t, ok, failing)

	n, err := f.service.Create(ctx, f.tenant, PaymentApproved{Room: "A1", Period: october, Amount: decimal.NewFromInt(1500000)})
	require.NoError(t, err)
	f.service.Wait()

	assert.Equal(t, []uuid.UUID{n.ID}, ok.delivered)
	assert.Equal(t, []uuid.UUID{n.ID}, failing.delivered)
}

func TestService_ListAndRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		n, err := f.service.Create(ctx, f.tenant, TestMessage{SentAt: time.Now()})
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}

	page, total, err := f.service.List(ctx, f.tenant, 1, 2, false)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID, "newest first")

	require.NoError(t, f.service.MarkAsRead(ctx, ids[0], f.tenant))
	assert.Equal(t, UnreadCountResponse{Count: 2}, f.publisher.Last(hub.EventUnreadCount))

	unread, err := f.service.ListUnread(ctx, f.tenant)
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	_, total, err = f.service.List(ctx, f.tenant, 1, 20, true)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	changed, err := f.service.MarkAllAsRead(ctx, f.tenant)
	require.NoError(t, err)
	assert.EqualValues(t, 2, changed)
	assert.Equal(t, UnreadCountResponse{Count: 0}, f.publisher.Last(hub.EventUnreadCount))

	count, err := f.service.UnreadCount(ctx, f.tenant)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestService_MarkAsReadErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	n, err := f.service.Create(ctx, f.tenant, TestMessage{SentAt: time.Now()})
	require.NoError(t, err)

	assert.ErrorIs(t, f.service.MarkAsRead(ctx, uuid.New(), f.tenant), ErrNotificationNotFound)

	stranger := testutil.InsertUser(t, f.db, "stranger@example.com", "user")
	assert.ErrorIs(t, f.service.MarkAsRead(ctx, n.ID, stranger), ErrNotRecipient)
}

func TestService_PushWithoutLiveConnections(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	tenant := testutil.InsertUser(t, db, "tenant@example.com", "user")
	service := NewService(NewRepository(db), hub.New(slog.New(slog.NewTextHandler(io.Discard, nil))))

	n, err := service.Create(ctx, tenant, reminder())
	require.NoError(t, err)

	unread, err := service.ListUnread(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, n.ID, unread[0].ID)
}
