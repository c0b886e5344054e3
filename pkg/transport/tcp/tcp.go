// Package tcp implements the TCP client transport for devices exposed over
// an IP-to-serial bridge.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/commatea/Radiance-Link/pkg/logger"
	"github.com/commatea/Radiance-Link/pkg/transport"
)

const (
	defaultBufferSize  = 4096
	defaultReadTimeout = 100 * time.Millisecond
	defaultDialTimeout = 10 * time.Second
)

var (
	// ErrNotConnected is returned when an operation requires an open socket.
	ErrNotConnected = errors.New("tcp transport not connected")
	// ErrAlreadyConnected is returned when Connect is called twice.
	ErrAlreadyConnected = errors.New("tcp transport already connected")
)

// Transport is a TCP client transport.
type Transport struct {
	config transport.Config
	log    *logger.Logger

	mu          sync.RWMutex
	conn        net.Conn
	connected   bool
	connectedAt *time.Time
	lastError   error
	stats       transport.Statistics
	handler     transport.EventHandler

	readBuf []byte
}

// New creates a TCP transport from the given config.
func New(config transport.Config) *Transport {
	size := config.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	return &Transport{
		config:  config,
		log:     logger.Global().Named("tcp"),
		readBuf: make([]byte, size),
	}
}

// Connect dials the device.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.connected {
		return ErrAlreadyConnected
	}

	t.log.Info("Dialing device", "address", t.config.Address)

	dialer := net.Dialer{Timeout: defaultDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.config.Address)
	if err != nil {
		t.lastError = err
		t.stats.Errors++
		return fmt.Errorf("dial %s: %w", t.config.Address, err)
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetKeepAlive(true)
		tc.SetKeepAlivePeriod(30 * time.Second)
		tc.SetNoDelay(true)
	}

	now := time.Now()
	t.conn = conn
	t.connected = true
	t.connectedAt = &now
	t.lastError = nil

	t.emit(transport.Event{Type: transport.EventConnected, Transport: t, Timestamp: now})
	return nil
}

// Close closes the socket.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return nil
	}

	err := t.conn.Close()
	t.conn = nil
	t.connected = false
	t.connectedAt = nil

	t.emit(transport.Event{Type: transport.EventDisconnected, Transport: t, Timestamp: time.Now()})

	if err != nil {
		return fmt.Errorf("close tcp connection: %w", err)
	}
	return nil
}

// IsConnected reports whether the socket is open.
func (t *Transport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// Send writes data to the socket.
func (t *Transport) Send(ctx context.Context, data []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return 0, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		t.conn.SetWriteDeadline(deadline)
	} else {
		t.conn.SetWriteDeadline(time.Time{})
	}

	n, err := t.conn.Write(data)
	if err != nil {
		t.lastError = err
		t.stats.Errors++
		t.emit(transport.Event{Type: transport.EventError, Transport: t, Error: err, Timestamp: time.Now()})
		return n, fmt.Errorf("tcp write: %w", err)
	}

	t.stats.BytesSent += uint64(n)
	t.stats.FramesSent++
	return n, nil
}

// Receive reads available bytes from the socket. The read deadline bounds
// the call; an expired deadline with no data yields (nil, nil).
func (t *Transport) Receive(ctx context.Context) ([]byte, error) {
	t.mu.RLock()
	conn := t.conn
	connected := t.connected
	t.mu.RUnlock()

	if !connected {
		return nil, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := t.config.ReadTimeout
	if timeout <= 0 {
		timeout = defaultReadTimeout
	}
	conn.SetReadDeadline(time.Now().Add(timeout))

	n, err := conn.Read(t.readBuf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, nil
		}
		t.mu.Lock()
		t.lastError = err
		t.stats.Errors++
		t.mu.Unlock()
		t.emit(transport.Event{Type: transport.EventError, Transport: t, Error: err, Timestamp: time.Now()})
		return nil, fmt.Errorf("tcp read: %w", err)
	}

	t.mu.Lock()
	t.stats.BytesReceived += uint64(n)
	t.mu.Unlock()

	data := make([]byte, n)
	copy(data, t.readBuf[:n])
	return data, nil
}

// Info returns runtime information about the transport.
func (t *Transport) Info() transport.Info {
	t.mu.RLock()
	defer t.mu.RUnlock()

	info := transport.Info{
		ID:          t.config.Address,
		Type:        "tcp",
		Address:     t.config.Address,
		State:       transport.StateDisconnected,
		Statistics:  t.stats,
		ConnectedAt: t.connectedAt,
	}
	if t.connected {
		info.State = transport.StateConnected
	}
	if t.lastError != nil {
		info.LastError = t.lastError.Error()
	}
	return info
}

// SetEventHandler sets the transport event handler.
func (t *Transport) SetEventHandler(handler transport.EventHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
}

func (t *Transport) emit(event transport.Event) {
	if t.handler != nil {
		t.handler.OnEvent(event)
	}
}

// Factory creates TCP transports.
type Factory struct{}

// Type returns "tcp".
func (f *Factory) Type() string { return "tcp" }

// Create creates a TCP transport.
func (f *Factory) Create(config transport.Config) (transport.Transport, error) {
	return New(config), nil
}

// Validate checks the TCP configuration.
func (f *Factory) Validate(config transport.Config) error {
	if config.Address == "" {
		return errors.New("tcp transport requires host:port address")
	}
	if _, _, err := net.SplitHostPort(config.Address); err != nil {
		return fmt.Errorf("invalid tcp address %q: %w", config.Address, err)
	}
	return nil
}
