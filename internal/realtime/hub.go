// Package realtime pushes change notifications to connected dashboards over
// Server-Sent Events and WebSocket channels.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/loan-query-api/internal/models"
)

// Channel is one connected client.
type Channel interface {
	Send(payload []byte) error
	Close() error
}

type channelGauge interface {
	SetRealtimeChannels(n int)
}

type registration struct {
	channel      Channel
	lastActivity time.Time
}

// Hub is the process-wide registry of push channels.
type Hub struct {
	mu       sync.Mutex
	channels map[string]*registration
	gauge    channelGauge
	logger   *zap.Logger
	now      func() time.Time
}

// HubOption configures the hub.
type HubOption func(*Hub)

// WithChannelGauge reports the number of open channels after every change.
func WithChannelGauge(g channelGauge) HubOption {
	return func(h *Hub) { h.gauge = g }
}

// WithHubClock overrides the time source.
func WithHubClock(now func() time.Time) HubOption {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHub constructs an empty hub.
func NewHub(logger *zap.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		channels: make(map[string]*registration),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Register adds a channel and returns its id.
func (h *Hub) Register(ch Channel) string {
	id := uuid.NewString()
	h.mu.Lock()
	h.channels[id] = &registration{channel: ch, lastActivity: h.now()}
	n := len(h.channels)
	h.mu.Unlock()
	h.report(n)
	return id
}

// Unregister removes and closes a channel. Unknown ids are ignored.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	reg, ok := h.channels[id]
	if ok {
		delete(h.channels, id)
	}
	n := len(h.channels)
	h.mu.Unlock()
	if !ok {
		return
	}
	_ = reg.channel.Close()
	h.report(n)
}

// Touch records client activity on a channel.
func (h *Hub) Touch(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if reg, ok := h.channels[id]; ok {
		reg.lastActivity = h.now()
	}
}

// Count returns the number of open channels.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels)
}

// Publish broadcasts an event. It satisfies the service event publisher.
func (h *Hub) Publish(ctx context.Context, event models.Event) {
	h.Broadcast(event)
}

// Broadcast writes the event as one JSON line to every channel. Channels
// whose write fails are removed and closed; there is no retry.
func (h *Hub) Broadcast(event models.Event) int {
	if event.At.IsZero() {
		event.At = h.now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode realtime event", zap.String("type", event.Type), zap.Error(err))
		return 0
	}
	payload = append(payload, '\n')

	h.mu.Lock()
	targets := make(map[string]Channel, len(h.channels))
	for id, reg := range h.channels {
		targets[id] = reg.channel
	}
	h.mu.Unlock()

	delivered := 0
	for id, ch := range targets {
		if err := ch.Send(payload); err != nil {
			h.logger.Debug("dropping realtime channel after failed write", zap.String("channel_id", id), zap.Error(err))
			h.Unregister(id)
			continue
		}
		delivered++
	}
	return delivered
}

// Sweep removes channels idle for longer than idle and returns how many were removed.
func (h *Hub) Sweep(idle time.Duration) int {
	cutoff := h.now().Add(-idle)
	h.mu.Lock()
	stale := make([]string, 0)
	for id, reg := range h.channels {
		if reg.lastActivity.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	h.mu.Unlock()
	for _, id := range stale {
		h.Unregister(id)
	}
	return len(stale)
}

// Run sweeps idle channels every interval until ctx is done, then closes
// every remaining channel.
func (h *Hub) Run(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			if n := h.Sweep(idle); n > 0 {
				h.logger.Info("reclaimed idle realtime channels", zap.Int("count", n))
			}
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	ids := make([]string, 0, len(h.channels))
	for id := range h.channels {
		ids = append(ids, id)
	}
	h.mu.Unlock()
	for _, id := range ids {
		h.Unregister(id)
	}
}

func (h *Hub) report(n int) {
	if h.gauge != nil {
		h.gauge.SetRealtimeChannels(n)
	}
}
