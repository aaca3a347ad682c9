package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/config"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/coordinator"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/domain"
	"github.com/weiawesome/wes-io-live/overlay-service/pkg/log"
)

// Client is one websocket connection following a session. It is a
// coordinator.Subscriber.
type Client struct {
	id      string
	Hub     *Hub
	Conn    *websocket.Conn
	Send    chan []byte
	Session *coordinator.Coordinator
	config  config.WebSocketConfig

	mu     sync.Mutex
	closed bool
}

func NewClient(id string, hub *Hub, conn *websocket.Conn, session *coordinator.Coordinator, cfg config.WebSocketConfig) *Client {
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = 16
	}
	return &Client{
		id:      id,
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, buffer),
		Session: session,
		config:  cfg,
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) SessionID() string {
	if c.Session == nil {
		return ""
	}
	return c.Session.SessionID()
}

// Deliver queues snap for writing. A client that cannot keep up is
// disconnected; it receives a fresh snapshot when it reconnects.
func (c *Client) Deliver(snap domain.Snapshot) bool {
	data, err := json.Marshal(NewSnapshotMessage(snap))
	if err != nil {
		return false
	}
	if c.enqueue(data) {
		return true
	}
	if c.Hub != nil {
		go c.Hub.Unregister(c)
	}
	return false
}

// Closed disconnects the client once its session stops. The browser
// reconnects and is greeted by whichever coordinator owns the session then.
func (c *Client) Closed() {
	if c.Hub != nil {
		go c.Hub.Unregister(c)
		return
	}
	c.close()
}

func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// close stops further sends and lets WritePump finish.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := log.L()
				l.Warn().Err(err).Str(log.FieldSubscriber, c.id).Msg("websocket read error")
			}
			break
		}
		handler(c, message)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage queues an arbitrary message, dropping it when the buffer is full.
func (c *Client) SendMessage(message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	c.enqueue(data)
	return nil
}

// HandleMessage answers the small client protocol: ping and request_state.
func HandleMessage(c *Client, message []byte) {
	var base BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		c.SendMessage(NewErrorMessage("BAD_REQUEST", "invalid message format"))
		return
	}

	switch base.Type {
	case MsgTypePing:
		c.SendMessage(BaseMessage{Type: MsgTypePong})

	case MsgTypeRequestState:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		snap, err := c.Session.GetState(ctx)
		if err != nil {
			c.SendMessage(NewErrorMessage("UNAVAILABLE", err.Error()))
			return
		}
		c.SendMessage(NewSnapshotMessage(snap))

	default:
		c.SendMessage(NewErrorMessage("BAD_REQUEST", "unknown message type"))
	}
}

var (
	_ coordinator.Subscriber = (*Client)(nil)
	_ coordinator.Closer     = (*Client)(nil)
)
