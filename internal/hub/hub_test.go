package hub

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingConn struct {
	mu     sync.Mutex
	frames []Frame
	fail   atomic.Bool
}

func (c *recordingConn) WriteFrame(f Frame) error {
	if c.fail.Load() {
		return errors.New("broken pipe")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *recordingConn) Frames() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Frame(nil), c.frames...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPush_AllConnectionsOfUser(t *testing.T) {
	h := New(quietLogger())
	alice, bob := uuid.New(), uuid.New()

	phone, laptop, other := &recordingConn{}, &recordingConn{}, &recordingConn{}
	h.Register(alice, phone)
	h.Register(alice, laptop)
	h.Register(bob, other)

	delivered := h.Push(alice, EventUnreadCount, map[string]int{"count": 3})

	assert.Equal(t, 2, delivered)
	for _, c := range []*recordingConn{phone, laptop} {
		frames := c.Frames()
		require.Len(t, frames, 1)
		assert.Equal(t, EventUnreadCount, frames[0].Event)
		assert.JSONEq(t, `{"count":3}`, string(frames[0].Data))
	}
	assert.Empty(t, other.Frames())
}

func TestPush_NoConnectionsIsNoop(t *testing.T) {
	h := New(quietLogger())
	assert.Zero(t, h.Push(uuid.New(), EventNotification, map[string]string{"id": "x"}))
}

func TestPush_FailedConnectionIsPruned(t *testing.T) {
	h := New(quietLogger())
	user := uuid.New()

	healthy, broken := &recordingConn{}, &recordingConn{}
	h.Register(user, healthy)
	brokenHandle := h.Register(user, broken)
	broken.fail.Store(true)

	delivered := h.Push(user, EventNotification, "hello")

	assert.Equal(t, 1, delivered)
	assert.Len(t, healthy.Frames(), 1)
	assert.Equal(t, 1, h.LiveCount(user))

	select {
	case <-brokenHandle.Done():
	default:
		t.Fatal("failed connection should be closed")
	}
}

func TestUnregister_IdempotentAndPrunesUser(t *testing.T) {
	h := New(quietLogger())
	user := uuid.New()

	handle := h.Register(user, &recordingConn{})
	assert.Equal(t, 1, h.TotalLive())

	h.Unregister(handle)
	h.Unregister(handle)
	h.Unregister(nil)

	assert.Zero(t, h.LiveCount(user))
	assert.Zero(t, h.TotalLive())
	h.mu.RLock()
	_, present := h.conns[user]
	h.mu.RUnlock()
	assert.False(t, present)
}

func TestBroadcastHeartbeat(t *testing.T) {
	h := New(quietLogger())

	a, b, dead := &recordingConn{}, &recordingConn{}, &recordingConn{}
	h.Register(uuid.New(), a)
	h.Register(uuid.New(), b)
	h.Register(uuid.New(), dead)
	dead.fail.Store(true)

	alive := h.BroadcastHeartbeat()

	assert.Equal(t, 2, alive)
	assert.Equal(t, 2, h.TotalLive())
	require.Len(t, a.Frames(), 1)
	assert.True(t, a.Frames()[0].IsHeartbeat())
}

func TestRunHeartbeat_StopsWithContext(t *testing.T) {
	h := New(quietLogger())
	conn := &recordingConn{}
	h.Register(uuid.New(), conn)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.RunHeartbeat(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(conn.Frames()) >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunHeartbeat did not return after cancel")
	}
}

func TestHub_ConcurrentUse(t *testing.T) {
	h := New(quietLogger())
	users := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		user := users[i%len(users)]
		go func() {
			defer wg.Done()
			handle := h.Register(user, &recordingConn{})
			h.Push(user, EventNotification, "x")
			h.Unregister(handle)
		}()
		go func() {
			defer wg.Done()
			h.Push(user, EventUnreadCount, map[string]int{"count": 1})
		}()
		go func() {
			defer wg.Done()
			h.BroadcastHeartbeat()
		}()
	}
	wg.Wait()

	assert.Zero(t, h.TotalLive())
}

func TestFrame_Encode(t *testing.T) {
	assert.Equal(t, ":heartbeat\n\n", string(Heartbeat.Encode()))
	assert.Equal(t, "event:unread_count\ndata:{\"count\":2}\n\n",
		string(Frame{Event: EventUnreadCount, Data: []byte(`{"count":2}`)}.Encode()))

	frame, err := NewFrame(EventConnected, map[string]string{"message": "ok"})
	require.NoError(t, err)
	assert.Equal(t, "event:connected\ndata:{\"message\":\"ok\"}\n\n", string(frame.Encode()))

	_, err = NewFrame(EventNotification, make(chan int))
	assert.Error(t, err)
}

func TestSSEConn_WritesEventStream(t *testing.T) {
	rec := httptest.NewRecorder()
	conn := NewSSEConn(rec, time.Second)

	require.NoError(t, conn.WriteFrame(Frame{Event: EventConnected, Data: []byte(`{"message":"ok"}`)}))
	require.NoError(t, conn.WriteFrame(Heartbeat))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "event:connected\ndata:{\"message\":\"ok\"}\n\n:heartbeat\n\n", rec.Body.String())
	assert.True(t, rec.Flushed)
}

func TestSSEConn_ClosedRejectsWrites(t *testing.T) {
	rec := httptest.NewRecorder()
	conn := NewSSEConn(rec, time.Second)

	conn.Close()
	conn.Close()

	err := conn.WriteFrame(Heartbeat)
	assert.ErrorIs(t, err, ErrConnClosed)
	assert.Empty(t, rec.Body.String())

	// A hub push to a closed connection prunes it.
	h := New(quietLogger())
	userID := uuid.New()
	h.Register(userID, conn)
	assert.Zero(t, h.Push(userID, EventUnreadCount, map[string]int{"count": 1}))
	assert.Zero(t, h.LiveCount(userID))
}

func TestHub_Close(t *testing.T) {
	h := New(quietLogger())

	select {
	case <-h.Closing():
		t.Fatal("closing before Close")
	default:
	}

	h.Close()
	h.Close()

	select {
	case <-h.Closing():
	default:
		t.Fatal("Closing not signalled")
	}
}
