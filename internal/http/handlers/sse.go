package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// sseConn adapts one server-sent event stream to the presence connection
// contract. The fanout may deliver from several goroutines, so writes to the
// shared response stream are serialized.
type sseConn struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
}

func newSSEConn(w io.Writer, f http.Flusher) *sseConn {
	return &sseConn{w: w, flusher: f}
}

// Send writes one event frame with a JSON data payload and flushes it.
func (c *sseConn) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintf(c.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("write event frame: %w", err)
	}
	c.flusher.Flush()
	return nil
}
