package channel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/linanwx/nagopanel/logger"
	"github.com/linanwx/nagopanel/message"
)

const (
	wsMessageBufferSize = 32
	wsReadLimit         = 16 << 20
	wsWriteTimeout      = 10 * time.Second
	wsMaxBackoff        = 30 * time.Second
)

// WebSocketChannel dials the host over a websocket and redials with
// exponential backoff when the connection drops. Each text frame is one
// JSON message.
type WebSocketChannel struct {
	url     string
	backoff time.Duration

	mu   sync.Mutex
	conn *websocket.Conn

	messages chan message.Inbound
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewWebSocketChannel creates a channel for url. reconnect is the initial
// redial delay; it doubles on each failure up to 30s.
func NewWebSocketChannel(url string, reconnect time.Duration) *WebSocketChannel {
	if reconnect <= 0 {
		reconnect = time.Second
	}
	return &WebSocketChannel{
		url:      url,
		backoff:  reconnect,
		messages: make(chan message.Inbound, wsMessageBufferSize),
	}
}

func (c *WebSocketChannel) Name() string {
	return "websocket"
}

func (c *WebSocketChannel) Start(ctx context.Context) error {
	if c.url == "" {
		return fmt.Errorf("websocket channel: empty host url")
	}
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go c.run(ctx)

	logger.Info("websocket channel started", "url", c.url)
	return nil
}

func (c *WebSocketChannel) Stop() error {
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		if conn := c.current(); conn != nil {
			conn.Close(websocket.StatusNormalClosure, "panel stopping")
		}
		c.wg.Wait()
		close(c.messages)
		logger.Info("websocket channel stopped")
	})
	return nil
}

// Send writes msg on the live connection. It returns ErrNotConnected while
// the channel is redialing.
func (c *WebSocketChannel) Send(ctx context.Context, msg message.Outbound) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}
	data, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}

	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write %s: %w", msg.Type, err)
	}
	return nil
}

func (c *WebSocketChannel) Messages() <-chan message.Inbound {
	return c.messages
}

func (c *WebSocketChannel) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *WebSocketChannel) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *WebSocketChannel) run(ctx context.Context) {
	defer c.wg.Done()

	delay := c.backoff
	for {
		conn, _, err := websocket.Dial(ctx, c.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("websocket dial failed", "url", c.url, "retryIn", delay, "err", err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
			delay = min(delay*2, wsMaxBackoff)
			continue
		}

		delay = c.backoff
		conn.SetReadLimit(wsReadLimit)
		c.setConn(conn)
		logger.Info("websocket connected", "url", c.url)

		err = c.readLoop(ctx, conn)
		c.setConn(nil)
		conn.CloseNow()
		if ctx.Err() != nil {
			return
		}
		logger.Warn("websocket disconnected", "url", c.url, "err", err)
	}
}

func (c *WebSocketChannel) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			logger.Debug("websocket: ignoring binary frame", "bytes", len(data))
			continue
		}
		msg, ok := message.DecodeInbound(data)
		if !ok {
			logger.Warn("websocket: ignoring malformed frame", "bytes", len(data))
			continue
		}
		select {
		case c.messages <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
