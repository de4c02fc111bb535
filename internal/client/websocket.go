// ABOUTME: WebSocket client for the karaoke server notification channel
// ABOUTME: Handles connection, greeting, keep-alive, and inbound message routing
package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 5 * time.Second
)

// ChannelError reports a notification channel failure
type ChannelError struct {
	Op  string
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %s: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// Config holds client configuration
type Config struct {
	Addr         string // host:port
	Subprotocol  string
	Greeting     string
	PingInterval time.Duration // 0 disables keep-alive pings
}

// Client is a notification channel connection
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex
	// gorilla/websocket allows one concurrent writer of data messages
	writeMu sync.Mutex

	onMessage func(text string)

	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new channel client
func NewClient(config Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}
}

// OnMessage registers the handler for inbound text messages.
// Must be called before Connect.
func (c *Client) OnMessage(fn func(text string)) {
	c.onMessage = fn
}

// Connect dials the server with the configured sub-protocol and sends
// the greeting
func (c *Client) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.config.Addr, Path: "/"}
	log.Printf("Channel: connecting to %s (%s)", u.String(), c.config.Subprotocol)

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		Subprotocols:     []string{c.config.Subprotocol},
	}

	conn, _, err := dialer.DialContext(c.ctx, u.String(), nil)
	if err != nil {
		return &ChannelError{Op: "dial", Err: err}
	}

	if conn.Subprotocol() != c.config.Subprotocol {
		conn.Close()
		return &ChannelError{Op: "handshake", Err: fmt.Errorf("server selected sub-protocol %q", conn.Subprotocol())}
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if c.config.Greeting != "" {
		if err := c.SendText(c.config.Greeting); err != nil {
			c.Close()
			return err
		}
	}

	log.Printf("Channel: connected")

	go c.readMessages()
	if c.config.PingInterval > 0 {
		go c.pingLoop()
	}

	return nil
}

// SendText sends a text message
func (c *Client) SendText(text string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return &ChannelError{Op: "write", Err: errors.New("not connected")}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return &ChannelError{Op: "write", Err: err}
	}
	return nil
}

// readMessages logs inbound messages and hands text to the handler
func (c *Client) readMessages() {
	defer c.Close()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
				return
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Channel: closed by server: %v", err)
			} else {
				log.Printf("Channel: %v", &ChannelError{Op: "read", Err: err})
			}
			return
		}

		if messageType != websocket.TextMessage {
			log.Printf("Channel: ignoring %d-byte binary message", len(data))
			continue
		}

		text := string(data)
		log.Printf("Channel: message from server: %s", text)
		if c.onMessage != nil {
			c.onMessage(text)
		}
	}
}

// pingLoop keeps the connection alive
func (c *Client) pingLoop() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			conn, connected := c.conn, c.connected
			c.mu.RUnlock()
			if !connected {
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				log.Printf("Channel: %v", &ChannelError{Op: "ping", Err: err})
				return
			}
		}
	}
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancel()
	if c.connected {
		c.connected = false
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.conn.Close()
		log.Printf("Channel: connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
