package realtime

import (
	"errors"
	"net/http"
	"sync"
	"time"
)

// ErrChannelClosed is returned when writing to a closed channel.
var ErrChannelClosed = errors.New("channel closed")

// ErrSlowConsumer is returned when a client does not drain its buffer.
var ErrSlowConsumer = errors.New("slow consumer")

const sseBuffer = 32

// sseChannel buffers events for one Server-Sent Events response.
type sseChannel struct {
	events chan []byte
	done   chan struct{}
	once   sync.Once
}

func newSSEChannel() *sseChannel {
	return &sseChannel{events: make(chan []byte, sseBuffer), done: make(chan struct{})}
}

func (c *sseChannel) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}
	select {
	case c.events <- payload:
		return nil
	default:
		return ErrSlowConsumer
	}
}

func (c *sseChannel) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// ServeSSE streams events to the client until it disconnects or the channel
// is reclaimed. Heartbeat comments keep proxies from closing the stream.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request, heartbeat time.Duration) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ch := newSSEChannel()
	id := h.Register(ch)
	defer h.Unregister(id)

	if _, err := w.Write([]byte("event: connected\ndata: {\"channelId\":\"" + id + "\"}\n\n")); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ch.done:
			return
		case payload := <-ch.events:
			if _, err := w.Write(sseFrame(payload)); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := w.Write([]byte(": heartbeat\n\n")); err != nil {
				return
			}
			flusher.Flush()
			h.Touch(id)
		}
	}
}

func sseFrame(payload []byte) []byte {
	if n := len(payload); n > 0 && payload[n-1] == '\n' {
		payload = payload[:n-1]
	}
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	return append(frame, '\n', '\n')
}
