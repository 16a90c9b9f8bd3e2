package events

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"drivelens/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// OriginChecker accepts websocket origins from a configured list. An empty
// list accepts same-host requests only. "*" accepts everything and
// "http://localhost:*" accepts any port.
type OriginChecker struct {
	allowed []string
}

func NewOriginChecker(allowed []string) *OriginChecker {
	return &OriginChecker{allowed: allowed}
}

func (o *OriginChecker) Check(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(o.allowed) == 0 {
		return strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://") == r.Host
	}
	for _, a := range o.allowed {
		a = strings.TrimSpace(a)
		if a == "*" || a == origin {
			return true
		}
		if strings.HasSuffix(a, ":*") {
			prefix := strings.TrimSuffix(a, "*")
			if rest := strings.TrimPrefix(origin, prefix); rest != origin && rest != "" && isNumeric(rest) {
				return true
			}
		}
	}
	return false
}

func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Serve upgrades the request and streams broker events as JSON text frames
// until either side goes away.
func Serve(w http.ResponseWriter, r *http.Request, broker *Broker, origins *OriginChecker) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     origins.Check,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.WithContext(r.Context()).Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	events, unsubscribe := broker.Subscribe()
	c := &client{conn: conn, events: events, unsubscribe: unsubscribe}
	go c.readPump()
	c.writePump()
}

type client struct {
	conn        *websocket.Conn
	events      <-chan Event
	unsubscribe func()
}

// readPump drains client frames so pongs and close frames are processed.
func (c *client) readPump() {
	defer func() {
		c.unsubscribe()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.unsubscribe()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.events:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
