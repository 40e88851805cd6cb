package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/google/uuid"
)

// Event names written to live connections
const (
	EventConnected    = "connected"
	EventNotification = "notification"
	EventUnreadCount  = "unread_count"
)

// Frame is a single server-sent event. A frame without an Event name is a
// keepalive comment.
type Frame struct {
	Event string
	Data  []byte
}

// Heartbeat is the keepalive frame
var Heartbeat = Frame{}

// IsHeartbeat reports whether f is a keepalive comment
func (f Frame) IsHeartbeat() bool {
	return f.Event == ""
}

// NewFrame encodes payload as JSON into a frame named event
func NewFrame(event string, payload any) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Data: data}, nil
}

// Encode renders the frame in text/event-stream format
func (f Frame) Encode() []byte {
	if f.IsHeartbeat() {
		return []byte(":heartbeat\n\n")
	}
	var buf bytes.Buffer
	// Data is already JSON; a string keeps sse from encoding it again.
	_ = sse.Encode(&buf, sse.Event{Event: f.Event, Data: string(f.Data)})
	return buf.Bytes()
}

// Conn is a live client transport. Implementations serialize their own writes.
type Conn interface {
	WriteFrame(Frame) error
}

// Handle identifies one registered connection
type Handle struct {
	userID uuid.UUID
	conn   Conn
	done   chan struct{}
	once   sync.Once
}

// UserID returns the owner of the connection
func (h *Handle) UserID() uuid.UUID {
	return h.userID
}

// Done is closed once the connection has been unregistered, either by the
// owner or because a write to it failed
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) close() {
	h.once.Do(func() { close(h.done) })
}

// Hub owns the set of live connections, keyed by user
type Hub struct {
	mu        sync.RWMutex
	conns     map[uuid.UUID]map[*Handle]struct{}
	closing   chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

// New creates an empty hub
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		conns:   make(map[uuid.UUID]map[*Handle]struct{}),
		closing: make(chan struct{}),
		logger:  logger.With("component", "hub"),
	}
}

// Close tells every stream owner to hang up. The hub itself stays usable;
// pushes to connections not yet unregistered still go out.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.closing)
		h.logger.Info("closing live connections", "connections", h.TotalLive())
	})
}

// Closing is closed once Close has been called
func (h *Hub) Closing() <-chan struct{} {
	return h.closing
}

// Register adds conn for userID. There is no per-user limit.
func (h *Hub) Register(userID uuid.UUID, conn Conn) *Handle {
	handle := &Handle{userID: userID, conn: conn, done: make(chan struct{})}

	h.mu.Lock()
	set, ok := h.conns[userID]
	if !ok {
		set = make(map[*Handle]struct{})
		h.conns[userID] = set
	}
	set[handle] = struct{}{}
	n := len(set)
	h.mu.Unlock()

	h.logger.Info("client connected", "user_id", userID, "connections", n)
	return handle
}

// Unregister removes handle. Calling it more than once is harmless.
func (h *Hub) Unregister(handle *Handle) {
	if handle == nil {
		return
	}

	h.mu.Lock()
	removed := false
	if set, ok := h.conns[handle.userID]; ok {
		if _, ok := set[handle]; ok {
			delete(set, handle)
			removed = true
		}
		if len(set) == 0 {
			delete(h.conns, handle.userID)
		}
	}
	h.mu.Unlock()

	handle.close()
	if removed {
		h.logger.Info("client disconnected", "user_id", handle.userID)
	}
}

func (h *Hub) snapshot(userID uuid.UUID) []*Handle {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.conns[userID]
	handles := make([]*Handle, 0, len(set))
	for handle := range set {
		handles = append(handles, handle)
	}
	return handles
}

func (h *Hub) snapshotAll() []*Handle {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var handles []*Handle
	for _, set := range h.conns {
		for handle := range set {
			handles = append(handles, handle)
		}
	}
	return handles
}

func (h *Hub) write(handle *Handle, frame Frame) bool {
	if err := handle.conn.WriteFrame(frame); err != nil {
		level := slog.LevelWarn
		if errors.Is(err, ErrConnClosed) {
			level = slog.LevelDebug
		}
		h.logger.Log(context.Background(), level, "dropping connection after failed write",
			"user_id", handle.userID, "event", frame.Event, "error", err)
		h.Unregister(handle)
		return false
	}
	return true
}

// Push encodes payload once and writes it as event to every live connection
// of userID. It returns the number of connections that accepted the frame. A
// user without connections is not an error.
func (h *Hub) Push(userID uuid.UUID, event string, payload any) int {
	handles := h.snapshot(userID)
	if len(handles) == 0 {
		h.logger.Debug("no live connections", "user_id", userID, "event", event)
		return 0
	}

	frame, err := NewFrame(event, payload)
	if err != nil {
		h.logger.Error("failed to encode event", "event", event, "error", err)
		return 0
	}

	delivered := 0
	for _, handle := range handles {
		if h.write(handle, frame) {
			delivered++
		}
	}
	return delivered
}

// Send writes event to a single connection, unregistering it on failure
func (h *Hub) Send(handle *Handle, event string, payload any) error {
	frame, err := NewFrame(event, payload)
	if err != nil {
		return err
	}
	if err := handle.conn.WriteFrame(frame); err != nil {
		h.Unregister(handle)
		return err
	}
	return nil
}

// BroadcastHeartbeat writes a keepalive to every live connection, pruning
// those that fail. It returns the number of connections still alive.
func (h *Hub) BroadcastHeartbeat() int {
	alive := 0
	for _, handle := range h.snapshotAll() {
		if h.write(handle, Heartbeat) {
			alive++
		}
	}
	if alive > 0 {
		h.logger.Debug("heartbeat sent", "connections", alive)
	}
	return alive
}

// RunHeartbeat broadcasts a heartbeat every interval until ctx is done. Each
// broadcast completes before the next tick is taken.
func (h *Hub) RunHeartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.BroadcastHeartbeat()
		}
	}
}

// LiveCount returns the number of live connections of userID
func (h *Hub) LiveCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// TotalLive returns the number of live connections across all users
func (h *Hub) TotalLive() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, set := range h.conns {
		n += len(set)
	}
	return n
}
