package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/HMasataka/hubsim/internal/logging"
	"github.com/HMasataka/hubsim/pkg/errors"
	"github.com/gorilla/websocket"
)

var (
	// ErrConnectionClosed is returned when sending on a closed socket
	ErrConnectionClosed = errors.New(errors.ErrorTypeConnection, "CONNECTION_CLOSED", "connection closed")

	// ErrSendBufferFull is returned when the write pump cannot keep up
	ErrSendBufferFull = errors.New(errors.ErrorTypeTimeout, "SEND_BUFFER_FULL", "send buffer is full")
)

// MessageHandler handles one inbound socket message
type MessageHandler func(message []byte) error

// ConnOptions represents websocket connection options
type ConnOptions struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

// DefaultConnOptions returns default connection options
func DefaultConnOptions() ConnOptions {
	return ConnOptions{
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 64 * 1024,
		SendBuffer:     256,
	}
}

// Conn pumps frames between a browser socket and a session
type Conn struct {
	id       string
	conn     *websocket.Conn
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *logging.Logger
	options  ConnOptions
	sendChan chan []byte
	handler  MessageHandler
	mu       sync.RWMutex
	closed   bool
	wg       sync.WaitGroup
}

// NewConn wraps an upgraded websocket connection
func NewConn(id string, conn *websocket.Conn, logger *logging.Logger, options ConnOptions) *Conn {
	ctx, cancel := context.WithCancel(context.Background())

	return &Conn{
		id:       id,
		conn:     conn,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.WithFields(map[string]any{"session_id": id}),
		options:  options,
		sendChan: make(chan []byte, options.SendBuffer),
	}
}

// ID returns the session id the connection was created for
func (c *Conn) ID() string {
	return c.id
}

// Send queues a message for the write pump. It never blocks on the socket.
func (c *Conn) Send(ctx context.Context, message []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.sendChan <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrSendBufferFull
	}
}

// OnMessage sets the inbound message handler. Call before Start.
func (c *Conn) OnMessage(handler MessageHandler) {
	c.handler = handler
}

// Done is closed once the connection has shut down
func (c *Conn) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Start starts the read and write pumps
func (c *Conn) Start() {
	c.wg.Add(2)
	go c.readPump()
	go c.writePump()
}

// Close shuts the connection down and waits for both pumps to exit
func (c *Conn) Close() error {
	c.shutdown()
	c.wg.Wait()
	return nil
}

func (c *Conn) shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.logger.Debug("closing socket")
	c.cancel()

	if err := c.conn.Close(); err != nil {
		c.logger.Debug("error closing websocket connection", "error", err)
	}
}

func (c *Conn) readPump() {
	defer c.wg.Done()
	defer c.shutdown()

	c.conn.SetReadLimit(c.options.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.options.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.options.ReadTimeout))
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		if c.handler != nil {
			if err := c.handler(message); err != nil {
				c.logger.Warn("message handler error", "error", err)
			}
		}
	}
}

func (c *Conn) writePump() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.options.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return

		case message := <-c.sendChan:
			c.conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("websocket write error", "error", err)
				c.shutdown()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}
		}
	}
}
