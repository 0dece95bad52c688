package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const wsWriteTimeout = 10 * time.Second

// WebSocketOptions configures the upgrade.
type WebSocketOptions struct {
	AllowedOrigins []string
	Heartbeat      time.Duration
}

type wsChannel struct {
	conn *websocket.Conn
	mu   sync.Mutex
	once sync.Once
}

func (c *wsChannel) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsChannel) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

func (c *wsChannel) Close() error {
	var err error
	c.once.Do(func() { err = c.conn.Close() })
	return err
}

func newUpgrader(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowed) == 0 {
				return true
			}
			for _, candidate := range allowed {
				if candidate == "*" || candidate == origin {
					return true
				}
			}
			return false
		},
	}
}

// ServeWS upgrades the request and keeps the channel registered until the
// client goes away. Client messages and pongs count as activity.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, opts WebSocketOptions) {
	upgrader := newUpgrader(opts.AllowedOrigins)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	heartbeat := opts.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}

	ch := &wsChannel{conn: conn}
	id := h.Register(ch)
	defer h.Unregister(id)

	conn.SetPongHandler(func(string) error {
		h.Touch(id)
		return nil
	})

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := ch.ping(); err != nil {
					return
				}
			}
		}
	}()
	defer close(stop)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket closed", zap.String("channel_id", id), zap.Error(err))
			}
			return
		}
		h.Touch(id)
	}
}
