package http

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// StreamableTransport writes SSE frames to a bound GET /mcp response. The
// request handling path in router.go is response-based; the stream carries
// only the open marker and periodic keepalives.
type StreamableTransport struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
	closed  bool
	onClose func()
	once    sync.Once
}

func NewStreamableTransport(w http.ResponseWriter, f http.Flusher, onClose func()) *StreamableTransport {
	return &StreamableTransport{
		writer:  w,
		flusher: f,
		onClose: onClose,
	}
}

// SendComment writes one SSE comment frame (":" prefixed lines). Used for
// the stream-open marker and periodic keepalives.
func (t *StreamableTransport) SendComment(comment string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("transport is closed")
	}

	comment = strings.ReplaceAll(comment, "\r\n", "\n")
	comment = strings.ReplaceAll(comment, "\r", "\n")
	comment = strings.ReplaceAll(comment, "\n", "\n: ")
	frame := fmt.Sprintf(": %s\n\n", comment)
	if err := t.writeLocked(frame); err != nil {
		return fmt.Errorf("failed to write SSE comment: %w", err)
	}
	return nil
}

func (t *StreamableTransport) writeLocked(payload string) error {
	if _, err := t.writer.Write([]byte(payload)); err != nil {
		return err
	}
	t.flusher.Flush()
	return nil
}

// Close marks the transport closed and runs the close hook exactly once.
func (t *StreamableTransport) Close() error {
	t.mu.Lock()
	wasOpen := !t.closed
	t.closed = true
	t.mu.Unlock()

	if wasOpen && t.onClose != nil {
		t.once.Do(t.onClose)
	}
	return nil
}
