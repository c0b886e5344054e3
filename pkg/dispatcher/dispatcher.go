// Package dispatcher provides typed publish/subscribe plumbing between the
// transport/connection layer and its consumers. Producers invoke events;
// listeners registered for an event kind observe the same immutable payload.
package dispatcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/commatea/Radiance-Link/pkg/protocol"
	"github.com/commatea/Radiance-Link/pkg/transport"
)

// Kind identifies an event type.
type Kind int

const (
	// ConnectionState is emitted when the logical connection is established
	// or lost.
	ConnectionState Kind = iota
	// DataReceived is emitted for every decoded inbound message.
	DataReceived
)

func (k Kind) String() string {
	switch k {
	case ConnectionState:
		return "connection_state"
	case DataReceived:
		return "data_received"
	default:
		return "unknown"
	}
}

// Event is the immutable payload delivered to listeners.
type Event struct {
	Kind Kind

	// State and Message are set for ConnectionState events.
	State   transport.ConnectionState
	Message string

	// Response is set for DataReceived events.
	Response protocol.Response

	Timestamp time.Time
}

// Listener handles one dispatched event.
type Listener func(ctx context.Context, event Event) error

type registration struct {
	id    int
	fn    Listener
	async bool
}

// Dispatcher routes events to registered listeners. Synchronous listeners
// run in registration order before any asynchronous listener is awaited;
// asynchronous listeners run concurrently. Invoke returns only after every
// listener has finished.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners map[Kind][]registration
	nextID    int
}

// New creates an empty dispatcher.
func New() *Dispatcher {
	return &Dispatcher{
		listeners: make(map[Kind][]registration),
	}
}

// RegisterListener registers a synchronous listener and returns its token.
func (d *Dispatcher) RegisterListener(kind Kind, fn Listener) int {
	return d.register(kind, fn, false)
}

// RegisterAsyncListener registers a listener that runs concurrently with
// other asynchronous listeners of the same event.
func (d *Dispatcher) RegisterAsyncListener(kind Kind, fn Listener) int {
	return d.register(kind, fn, true)
}

func (d *Dispatcher) register(kind Kind, fn Listener, async bool) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.listeners[kind] = append(d.listeners[kind], registration{id: d.nextID, fn: fn, async: async})
	return d.nextID
}

// RemoveListener removes the listener registered under token.
func (d *Dispatcher) RemoveListener(kind Kind, token int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	regs := d.listeners[kind]
	for i, r := range regs {
		if r.id == token {
			d.listeners[kind] = append(regs[:i], regs[i+1:]...)
			break
		}
	}
	if len(d.listeners[kind]) == 0 {
		delete(d.listeners, kind)
	}
}

// ClearListeners removes all listeners for a kind.
func (d *Dispatcher) ClearListeners(kind Kind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.listeners, kind)
}

// ClearAll removes every listener.
func (d *Dispatcher) ClearAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = make(map[Kind][]registration)
}

// Invoke delivers the event to every listener and waits for all of them to
// finish. Listener errors are joined and returned; a failing listener never
// prevents the others from running.
func (d *Dispatcher) Invoke(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	d.mu.RLock()
	regs := make([]registration, len(d.listeners[event.Kind]))
	copy(regs, d.listeners[event.Kind])
	d.mu.RUnlock()

	var errs []error
	var wg sync.WaitGroup
	var asyncMu sync.Mutex

	for _, r := range regs {
		if r.async {
			continue
		}
		if err := r.fn(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	for _, r := range regs {
		if !r.async {
			continue
		}
		wg.Add(1)
		go func(fn Listener) {
			defer wg.Done()
			if err := fn(ctx, event); err != nil {
				asyncMu.Lock()
				errs = append(errs, err)
				asyncMu.Unlock()
			}
		}(r.fn)
	}
	wg.Wait()

	return errors.Join(errs...)
}
