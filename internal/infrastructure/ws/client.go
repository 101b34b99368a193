package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/namimod25/toko-online/internal/infrastructure/logging"
)

type ClientConfig struct {
	SendBufferSize int
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	ReadLimit      int64
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		SendBufferSize: 64,
		PingInterval:   50 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		ReadLimit:      4096,
	}
}

// Client is the server side of one WebSocket connection. Outbound frames queue on
// a single buffered channel drained by WritePump, so frames reach the peer in the
// order Send accepted them.
type Client struct {
	ID string

	conn   *connWrapper
	cfg    ClientConfig
	logger logging.Logger

	mu     sync.RWMutex // protects closed and the send channel close
	closed bool
	send   chan []byte
}

func NewClient(conn *websocket.Conn, id string, cfg ClientConfig, logger logging.Logger) *Client {
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = DefaultClientConfig().SendBufferSize
	}

	return &Client{
		ID:     id,
		conn:   newConnWrapper(conn),
		cfg:    cfg,
		logger: logger,
		send:   make(chan []byte, cfg.SendBufferSize),
	}
}

// Send queues a frame. It fails instead of blocking when the buffer is full.
func (c *Client) Send(frame []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close stops accepting frames. WritePump flushes what is queued, sends a close
// frame and closes the socket.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
	return nil
}

// ReadPump delivers inbound text frames to handle until the peer goes away or
// stops answering pings.
func (c *Client) ReadPump(handle func(raw []byte)) {
	defer func() {
		_ = c.conn.Close()
	}()

	conn := c.conn.conn
	if c.cfg.ReadLimit > 0 {
		conn.SetReadLimit(c.cfg.ReadLimit)
	}
	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn(logging.Realtime, logging.Connection, "ws read error", map[logging.ExtraKey]any{
					logging.ConnectionID: c.ID,
					logging.ErrorMessage: err.Error(),
				})
			}
			return
		}

		handle(raw)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), c.cfg.WriteWait)
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame, c.cfg.WriteWait); err != nil {
				c.logger.Warn(logging.Realtime, logging.Delivery, "ws write error", map[logging.ExtraKey]any{
					logging.ConnectionID: c.ID,
					logging.ErrorMessage: err.Error(),
				})
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, c.cfg.WriteWait); err != nil {
				return
			}
		}
	}
}
