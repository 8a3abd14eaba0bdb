package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 90 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// Client adapts a gorilla connection to the registry's Conn interface.
// All data frames go through the buffered send channel and a single
// writer goroutine; pings and closes use WriteControl, which is safe
// alongside the writer.
type Client struct {
	conn *websocket.Conn
	send chan any
	done chan struct{}
	once sync.Once
	log  *zap.Logger
}

func NewClient(conn *websocket.Conn, log *zap.Logger) *Client {
	return &Client{
		conn: conn,
		send: make(chan any, sendBuffer),
		done: make(chan struct{}),
		log:  log.Named("ws.client"),
	}
}

func (c *Client) Enqueue(v any) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- v:
		return true
	default:
		c.log.Warn("send buffer full, dropping event")
		return false
	}
}

func (c *Client) Ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *Client) Close(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = c.conn.Close()
	c.signalDone()
}

func (c *Client) Terminate() {
	_ = c.conn.Close()
	c.signalDone()
}

// signalDone releases the write pump. Close, Terminate and the read
// loop can all race to signal; only the first one counts.
func (c *Client) signalDone() {
	c.once.Do(func() { close(c.done) })
}

// WritePump drains the send channel onto the wire. It exits when the
// connection dies or the read side signals completion.
func (c *Client) WritePump() {
	defer func() { _ = c.conn.Close() }()

	for {
		select {
		case <-c.done:
			return
		case v := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(v); err != nil {
				return
			}
		}
	}
}

// ReadLoop feeds inbound text frames to handle until the connection
// closes. onPong fires whenever the peer answers a heartbeat.
func (c *Client) ReadLoop(handle func(raw []byte), onPong func()) {
	defer c.signalDone()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		onPong()
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("unexpected close", zap.Error(err))
			}
			return
		}
		handle(raw)
	}
}
