// Package transport defines the abstract interface for the byte channels
// the driver speaks over: a serial port or a TCP socket. Implementations
// deliver raw bytes to the stream framer and report unsolicited loss through
// an event handler.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ConnectionState represents the current state of a transport connection.
type ConnectionState int

const (
	// StateDisconnected indicates the transport is not connected.
	StateDisconnected ConnectionState = iota
	// StateConnecting indicates a connection attempt is in progress.
	StateConnecting
	// StateConnected indicates the transport is connected and ready.
	StateConnected
	// StateError indicates the transport is in an error state.
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Transport is the core interface for the driver's communication channels.
// Implementations must be safe for concurrent use.
type Transport interface {
	// Connect establishes a connection to the device.
	Connect(ctx context.Context) error

	// Close gracefully closes the connection and releases resources.
	Close() error

	// IsConnected returns true if the transport is currently connected.
	IsConnected() bool

	// Send transmits a wire frame. It returns the number of bytes sent.
	Send(ctx context.Context, data []byte) (int, error)

	// Receive reads whatever bytes are currently available, blocking at
	// most for the transport's short read timeout. A nil slice with a nil
	// error means no data arrived within the timeout.
	Receive(ctx context.Context) ([]byte, error)

	// Info returns runtime information about the transport.
	Info() Info

	// SetEventHandler sets the handler notified of connect/disconnect.
	SetEventHandler(handler EventHandler)
}

// Config holds the configuration for a transport.
type Config struct {
	// Type is the transport type ("serial" or "tcp").
	Type string `yaml:"type" json:"type" validate:"omitempty,oneof=serial tcp"`

	// Address is the connection address: a device path for serial
	// ("/dev/ttyUSB0"), "host:port" for tcp.
	Address string `yaml:"address" json:"address"`

	// Options contains transport-specific options (baudrate, keepalive...).
	Options map[string]interface{} `yaml:"options" json:"options"`

	// BufferSize is the size of the read buffer.
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`

	// ReadTimeout bounds a single Receive call. Short timeouts let the
	// framer coalesce whatever bytes are available without stalling.
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`
}

// Info contains runtime information about a transport.
type Info struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Address     string          `json:"address"`
	State       ConnectionState `json:"state"`
	Statistics  Statistics      `json:"statistics"`
	ConnectedAt *time.Time      `json:"connected_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
}

// Statistics contains transport counters.
type Statistics struct {
	BytesSent     uint64 `json:"bytes_sent"`
	BytesReceived uint64 `json:"bytes_received"`
	FramesSent    uint64 `json:"frames_sent"`
	Errors        uint64 `json:"errors"`
}

// EventType represents the type of transport event.
type EventType int

const (
	// EventConnected is emitted when the connection is established.
	EventConnected EventType = iota
	// EventDisconnected is emitted when the connection is lost or closed.
	EventDisconnected
	// EventError is emitted when an I/O error occurs.
	EventError
)

// Event represents a transport event.
type Event struct {
	Type      EventType
	Transport Transport
	Error     error
	Timestamp time.Time
}

// EventHandler handles transport events.
type EventHandler interface {
	OnEvent(event Event)
}

// EventHandlerFunc is a function adapter for EventHandler.
type EventHandlerFunc func(event Event)

// OnEvent implements EventHandler.
func (f EventHandlerFunc) OnEvent(event Event) {
	f(event)
}

// Factory creates transport instances.
type Factory interface {
	// Type returns the transport type this factory creates.
	Type() string

	// Create creates a new transport instance with the given config.
	Create(config Config) (Transport, error)

	// Validate validates the configuration for this transport type.
	Validate(config Config) error
}

// Registry errors.
var (
	ErrUnknownType    = errors.New("unknown transport type")
	ErrTypeRegistered = errors.New("transport type already registered")
)

// Registry manages transport factories keyed by type.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory to the registry.
func (r *Registry) Register(factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[factory.Type()]; ok {
		return fmt.Errorf("%w: %s", ErrTypeRegistered, factory.Type())
	}
	r.factories[factory.Type()] = factory
	return nil
}

// Get retrieves a factory by type.
func (r *Registry) Get(transportType string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[transportType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, transportType)
	}
	return f, nil
}

// List returns all registered transport types.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	return types
}

// Create validates the config and creates a transport with the matching
// factory.
func (r *Registry) Create(config Config) (Transport, error) {
	f, err := r.Get(config.Type)
	if err != nil {
		return nil, err
	}
	if err := f.Validate(config); err != nil {
		return nil, err
	}
	return f.Create(config)
}
