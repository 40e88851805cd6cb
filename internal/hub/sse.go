package hub

import (
	"errors"
	"net/http"
	"sync"
	"time"
)

// ErrConnClosed is returned by writes after Close
var ErrConnClosed = errors.New("connection closed")

// SSEConn writes frames to an http.ResponseWriter as server-sent events. The
// owning handler must Close it before returning; the ResponseWriter is not
// touched afterwards.
type SSEConn struct {
	mu           sync.Mutex
	closed       bool
	w            http.ResponseWriter
	rc           *http.ResponseController
	writeTimeout time.Duration
}

// NewSSEConn sends the event-stream headers and wraps w. Every write is
// bounded by writeTimeout when it is positive.
func NewSSEConn(w http.ResponseWriter, writeTimeout time.Duration) *SSEConn {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	c := &SSEConn{w: w, rc: http.NewResponseController(w), writeTimeout: writeTimeout}
	c.rc.Flush()
	return c
}

// WriteFrame writes and flushes a single frame
func (c *SSEConn) WriteFrame(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}
	if c.writeTimeout > 0 {
		if err := c.rc.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
		defer c.rc.SetWriteDeadline(time.Time{})
	}

	if _, err := c.w.Write(f.Encode()); err != nil {
		return err
	}
	if err := c.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

// Close waits for an in-flight write and rejects every later one. Calling it
// more than once is harmless.
func (c *SSEConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}
