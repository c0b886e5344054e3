// Package serial implements the serial port transport using go.bug.st/serial.
package serial

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goserial "go.bug.st/serial"

	"github.com/commatea/Radiance-Link/pkg/logger"
	"github.com/commatea/Radiance-Link/pkg/transport"
)

const (
	defaultBaudRate    = 9600
	defaultDataBits    = 8
	defaultBufferSize  = 4096
	defaultReadTimeout = 100 * time.Millisecond
)

var (
	// ErrNotConnected is returned when an operation requires an open port.
	ErrNotConnected = errors.New("serial transport not connected")
	// ErrAlreadyConnected is returned when Connect is called twice.
	ErrAlreadyConnected = errors.New("serial transport already connected")
)

// Transport is a serial port transport.
type Transport struct {
	config transport.Config
	log    *logger.Logger

	mu          sync.RWMutex
	port        goserial.Port
	connected   bool
	connectedAt *time.Time
	lastError   error
	stats       transport.Statistics
	handler     transport.EventHandler

	readBuf []byte
}

// New creates a serial transport from the given config.
func New(config transport.Config) *Transport {
	size := config.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	return &Transport{
		config:  config,
		log:     logger.Global().Named("serial"),
		readBuf: make([]byte, size),
	}
}

// Connect opens the serial port.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.connected {
		return ErrAlreadyConnected
	}

	mode := &goserial.Mode{
		BaudRate: intOption(t.config.Options, "baudrate", defaultBaudRate),
		DataBits: intOption(t.config.Options, "databits", defaultDataBits),
		Parity:   parityOption(t.config.Options),
		StopBits: stopBitsOption(t.config.Options),
	}

	t.log.Info("Opening serial port",
		"port", t.config.Address,
		"baudrate", mode.BaudRate)

	port, err := goserial.Open(t.config.Address, mode)
	if err != nil {
		t.lastError = err
		t.stats.Errors++
		return fmt.Errorf("open serial port %s: %w", t.config.Address, err)
	}

	timeout := t.config.ReadTimeout
	if timeout <= 0 {
		timeout = defaultReadTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		t.lastError = err
		return fmt.Errorf("set read timeout: %w", err)
	}

	now := time.Now()
	t.port = port
	t.connected = true
	t.connectedAt = &now
	t.lastError = nil

	t.emit(transport.Event{Type: transport.EventConnected, Transport: t, Timestamp: now})
	return nil
}

// Close closes the serial port.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return nil
	}

	err := t.port.Close()
	t.port = nil
	t.connected = false
	t.connectedAt = nil

	t.emit(transport.Event{Type: transport.EventDisconnected, Transport: t, Timestamp: time.Now()})

	if err != nil {
		return fmt.Errorf("close serial port: %w", err)
	}
	return nil
}

// IsConnected reports whether the port is open.
func (t *Transport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// Send writes data to the serial port.
func (t *Transport) Send(ctx context.Context, data []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return 0, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n, err := t.port.Write(data)
	if err != nil {
		t.lastError = err
		t.stats.Errors++
		t.emit(transport.Event{Type: transport.EventError, Transport: t, Error: err, Timestamp: time.Now()})
		return n, fmt.Errorf("serial write: %w", err)
	}

	t.stats.BytesSent += uint64(n)
	t.stats.FramesSent++
	return n, nil
}

// Receive reads available bytes from the port. The port's read timeout
// bounds the call; an expired timeout yields (nil, nil).
func (t *Transport) Receive(ctx context.Context) ([]byte, error) {
	t.mu.RLock()
	port := t.port
	connected := t.connected
	t.mu.RUnlock()

	if !connected {
		return nil, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n, err := port.Read(t.readBuf)
	if err != nil {
		t.mu.Lock()
		t.lastError = err
		t.stats.Errors++
		t.mu.Unlock()
		t.emit(transport.Event{Type: transport.EventError, Transport: t, Error: err, Timestamp: time.Now()})
		return nil, fmt.Errorf("serial read: %w", err)
	}
	if n == 0 {
		// Read timeout with no data.
		return nil, nil
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
		Type:        "serial",
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

func intOption(options map[string]interface{}, key string, def int) int {
	if options == nil {
		return def
	}
	switch v := options[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

func parityOption(options map[string]interface{}) goserial.Parity {
	if options == nil {
		return goserial.NoParity
	}
	switch options["parity"] {
	case "even":
		return goserial.EvenParity
	case "odd":
		return goserial.OddParity
	default:
		return goserial.NoParity
	}
}

func stopBitsOption(options map[string]interface{}) goserial.StopBits {
	if options == nil {
		return goserial.OneStopBit
	}
	switch options["stopbits"] {
	case 2, float64(2):
		return goserial.TwoStopBits
	default:
		return goserial.OneStopBit
	}
}

// Factory creates serial transports.
type Factory struct{}

// Type returns "serial".
func (f *Factory) Type() string { return "serial" }

// Create creates a serial transport.
func (f *Factory) Create(config transport.Config) (transport.Transport, error) {
	return New(config), nil
}

// Validate checks the serial configuration.
func (f *Factory) Validate(config transport.Config) error {
	if config.Address == "" {
		return errors.New("serial transport requires a device path")
	}
	if baud := intOption(config.Options, "baudrate", defaultBaudRate); baud <= 0 {
		return fmt.Errorf("invalid baudrate: %d", baud)
	}
	return nil
}
