package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/loan-query-api/internal/models"
)

type channelStub struct {
	mu       sync.Mutex
	payloads [][]byte
	fail     bool
	closed   bool
}

func (c *channelStub) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *channelStub) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type gaugeStub struct {
	mu   sync.Mutex
	last int
}

func (g *gaugeStub) SetRealtimeChannels(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = n
}

func TestHubBroadcastWritesOneJSONLine(t *testing.T) {
	hub := NewHub(nil)
	a, b := &channelStub{}, &channelStub{}
	hub.Register(a)
	hub.Register(b)

	delivered := hub.Broadcast(models.Event{Type: models.EventQueryCreated, QueryID: "42"})
	require.Equal(t, 2, delivered)
	require.Len(t, a.payloads, 1)

	line := a.payloads[0]
	assert.True(t, strings.HasSuffix(string(line), "\n"))
	assert.Equal(t, 1, strings.Count(string(line), "\n"))

	var event models.Event
	require.NoError(t, json.Unmarshal(line, &event))
	assert.Equal(t, models.EventQueryCreated, event.Type)
	assert.Equal(t, "42", event.QueryID)
	assert.False(t, event.At.IsZero())
}

func TestHubRemovesChannelOnWriteFailure(t *testing.T) {
	gauge := &gaugeStub{}
	hub := NewHub(nil, WithChannelGauge(gauge))
	healthy, broken := &channelStub{}, &channelStub{fail: true}
	hub.Register(healthy)
	hub.Register(broken)
	require.Equal(t, 2, gauge.last)

	delivered := hub.Broadcast(models.Event{Type: models.EventChatMessage})
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, hub.Count())
	assert.True(t, broken.closed)
	assert.False(t, healthy.closed)
	assert.Equal(t, 1, gauge.last)
}

func TestHubSweepReclaimsIdleChannels(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	hub := NewHub(nil, WithHubClock(func() time.Time { return now }))
	idle, active := &channelStub{}, &channelStub{}
	hub.Register(idle)
	activeID := hub.Register(active)

	now = now.Add(4 * time.Minute)
	hub.Touch(activeID)
	now = now.Add(2 * time.Minute)

	removed := hub.Sweep(5 * time.Minute)
	assert.Equal(t, 1, removed)
	assert.True(t, idle.closed)
	assert.False(t, active.closed)
	assert.Equal(t, 1, hub.Count())
}

func TestHubRunClosesChannelsOnShutdown(t *testing.T) {
	hub := NewHub(nil)
	ch := &channelStub{}
	hub.Register(ch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx, time.Hour, time.Hour)
		close(done)
	}()
	cancel()
	<-done
	assert.True(t, ch.closed)
	assert.Zero(t, hub.Count())
}

func TestServeSSEStreamsEvents(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeSSE(w, r, time.Minute)
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	first, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", first)

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)
	hub.Broadcast(models.Event{Type: models.EventApprovalCreated, QueryID: "7"})

	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: {") && strings.Contains(line, models.EventApprovalCreated) {
			break
		}
	}
}

func TestServeWSDeliversEventsAndUnregistersOnClose(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, WebSocketOptions{Heartbeat: time.Minute})
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)
	hub.Broadcast(models.Event{Type: models.EventChatArchived, QueryID: "9"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var event models.Event
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, models.EventChatArchived, event.Type)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

type recordingPublisher struct {
	events []models.Event
}

func (r *recordingPublisher) Publish(ctx context.Context, event models.Event) {
	r.events = append(r.events, event)
}

func TestMultiSkipsNilAndFansOut(t *testing.T) {
	a, b := &recordingPublisher{}, &recordingPublisher{}
	pub := Multi(a, nil, b, NewKafkaPublisher(nil, "", nil))
	pub.Publish(context.Background(), models.Event{Type: models.EventQueryReassigned})
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}
