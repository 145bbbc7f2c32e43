package shade

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/powerview-ble/internal/link"
	"github.com/muurk/powerview-ble/internal/logging"
	"github.com/muurk/powerview-ble/internal/protocol"
)

// Connection manages the link session to one shade and routes its
// notifications to the response waiter.
type Connection struct {
	link   link.Link
	name   string
	cipher *protocol.Cipher
	waiter *responseWaiter
	logger *zap.Logger

	// connectMu serializes handshakes; mu only guards the fields below
	connectMu sync.Mutex

	mu          sync.Mutex
	session     link.Session
	connectTime time.Duration
	handshakes  int
}

func newConnection(l link.Link, name string, cipher *protocol.Cipher, waiter *responseWaiter, logger *zap.Logger) *Connection {
	return &Connection{
		link:   l,
		name:   name,
		cipher: cipher,
		waiter: waiter,
		logger: logger,
	}
}

// Connect opens a session unless one is already up
func (c *Connection) Connect(ctx context.Context) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	if c.Connected() {
		c.logger.Debug("Already connected")
		return nil
	}

	c.logger.Debug("Connecting")
	start := time.Now()

	session, err := c.link.Connect(ctx)
	if err != nil {
		return newError(ErrTypeTransport, c.name, "connect", err)
	}
	if err := session.Subscribe(c.onNotify); err != nil {
		if derr := session.Disconnect(); derr != nil {
			c.logger.Debug("Disconnect after failed subscribe", zap.Error(derr))
		}
		return newError(ErrTypeTransport, c.name, "subscribe", err)
	}

	took := time.Since(start)
	c.mu.Lock()
	c.session = session
	c.handshakes++
	c.connectTime = took
	c.mu.Unlock()
	logging.LogConnection(c.name, "connected", zap.Duration("took", took))

	go c.watch(session)
	return nil
}

// Disconnect closes the session. Errors are logged, never returned.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.mu.Unlock()

	if session == nil || !session.Connected() {
		return
	}

	c.logger.Debug("Disconnecting")
	c.waiter.Clear()
	if err := session.Disconnect(); err != nil {
		c.logger.Warn("Disconnect failed", zap.Error(err))
	}
}

// Connected reports whether a live session exists
func (c *Connection) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil && c.session.Connected()
}

// ConnectDuration returns how long the most recent handshake took
func (c *Connection) ConnectDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectTime
}

// Write sends a frame over the current session
func (c *Connection) Write(ctx context.Context, data []byte) error {
	session := c.current()
	if session == nil {
		return newError(ErrTypeTransport, c.name, "write", link.ErrNotConnected)
	}
	if err := session.Write(ctx, data); err != nil {
		return newError(ErrTypeTransport, c.name, "write", err)
	}
	return nil
}

// Read reads a characteristic over the current session
func (c *Connection) Read(ctx context.Context, uuid string) ([]byte, error) {
	session := c.current()
	if session == nil {
		return nil, link.ErrNotConnected
	}
	return session.Read(ctx, uuid)
}

func (c *Connection) current() link.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Connection) onNotify(data []byte) {
	logging.LogFrame(c.name, "rx", data)
	if c.cipher != nil {
		data = c.cipher.Decrypt(data)
		logging.LogFrame(c.name, "rx_decrypted", data)
	}
	c.waiter.Put(data)
}

// watch logs the end of a session. Link loss does not trigger a reconnect;
// the next command does.
func (c *Connection) watch(session link.Session) {
	<-session.Done()

	c.mu.Lock()
	lost := c.session == session
	if lost {
		c.session = nil
	}
	c.mu.Unlock()

	if lost {
		logging.LogConnection(c.name, "link_lost")
		return
	}
	c.logger.Debug("Disconnected")
}
