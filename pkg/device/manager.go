// Package device owns the high-level device lifecycle: startup
// synchronization, liveness probing, periodic health checks, disconnection
// handling with bounded reconnection, and the cached system state.
package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/commatea/Radiance-Link/pkg/connection"
	"github.com/commatea/Radiance-Link/pkg/dispatcher"
	"github.com/commatea/Radiance-Link/pkg/logger"
	"github.com/commatea/Radiance-Link/pkg/metrics"
	"github.com/commatea/Radiance-Link/pkg/protocol"
	"github.com/commatea/Radiance-Link/pkg/tasks"
	"github.com/commatea/Radiance-Link/pkg/transport"
)

// Task names registered by the manager.
const (
	TaskRunOnceAtStartup   = "run_once_at_startup"
	TaskPeriodicAliveCheck = "periodic_alive_check"
	TaskRetryAliveCheck    = "retry_alive_check"
	TaskReconnectLoop      = "reconnect_loop"
	TaskHandleDataReceived = "handle_data_received"
)

const (
	// DefaultHealthCheckInterval is the period between liveness probes.
	DefaultHealthCheckInterval = 30 * time.Second

	// DefaultAliveTimeout bounds the wait for a probe response.
	DefaultAliveTimeout = 5 * time.Second

	// DefaultIPPort is the factory port of the device's IP-to-serial bridge.
	DefaultIPPort = 4999

	reconnectDelay      = 30 * time.Second
	startupPollInterval = 500 * time.Millisecond
)

// maxReconnectAttempts bounds the reconnect loop to roughly one day.
var maxReconnectAttempts = int((24 * time.Hour) / reconnectDelay)

// ErrUnsupportedConnectionType is returned for connection types other than
// "serial" and "ip".
var ErrUnsupportedConnectionType = errors.New("unsupported connection type")

// OpenOptions carries the connection parameters for Open.
type OpenOptions struct {
	// Serial parameters.
	Port     string
	Baudrate int

	// IP parameters. TCPPort defaults to DefaultIPPort.
	Host    string
	TCPPort int
}

// Manager owns the device's connection, state, and command execution.
type Manager struct {
	connectionType string
	log            *logger.Logger

	dispatcher *dispatcher.Dispatcher
	tasks      *tasks.Registry
	state      *SystemState

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu               sync.Mutex
	handler          *connection.Handler
	executor         *CommandExecutor
	status           transport.ConnectionState
	statusKnown      bool
	closing          bool
	reconnectEnabled bool
	openOptions      OpenOptions
	lastDataReceived time.Time
	journal          connection.FailureJournal

	aliveSignal  *Signal
	deviceSignal *Signal
	handleSeq    atomic.Uint64

	labelsMu   sync.Mutex
	labels     map[string]string
	sourceList []string
	cmsList    []string
	styleList  []string

	infoCallbacksMu sync.Mutex
	infoCallbacks   []func(DeviceInfo)
}

// NewManager creates a device manager for the given connection type
// ("serial" or "ip"). The startup synchronizer starts immediately and waits
// for the first successful liveness probe.
func NewManager(ctx context.Context, connectionType string, reconnect bool, log *logger.Logger) (*Manager, error) {
	connectionType = strings.ToLower(connectionType)
	if connectionType != "serial" && connectionType != "ip" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedConnectionType, connectionType)
	}

	if log == nil {
		log = logger.Global()
	}

	baseCtx, cancel := context.WithCancel(ctx)

	m := &Manager{
		connectionType:   connectionType,
		log:              log,
		dispatcher:       dispatcher.New(),
		tasks:            tasks.NewRegistry(log),
		state:            NewSystemState(log),
		baseCtx:          baseCtx,
		baseCancel:       cancel,
		reconnectEnabled: reconnect,
		aliveSignal:      NewSignal(),
		deviceSignal:     NewSignal(),
		labels:           make(map[string]string),
	}

	m.state.SetUpdateCallback(m.deviceInfoCallback)
	m.dispatcher.RegisterListener(dispatcher.ConnectionState, m.onEvent)
	m.dispatcher.RegisterListener(dispatcher.DataReceived, m.onEvent)

	m.tasks.Add(baseCtx, TaskRunOnceAtStartup, m.runOnceAtStartup)

	return m, nil
}

// Dispatcher exposes the manager's event dispatcher.
func (m *Manager) Dispatcher() *dispatcher.Dispatcher { return m.dispatcher }

// State exposes the cached system state.
func (m *Manager) State() *SystemState { return m.state }

// Executor returns the command executor. It is nil until Open succeeds.
func (m *Manager) Executor() *CommandExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.executor
}

// Labels returns a copy of the received input labels.
func (m *Manager) Labels() map[string]string {
	m.labelsMu.Lock()
	defer m.labelsMu.Unlock()
	labels := make(map[string]string, len(m.labels))
	for k, v := range m.labels {
		labels[k] = v
	}
	return labels
}

// SourceList returns the label names of the physical inputs.
func (m *Manager) SourceList() []string {
	m.labelsMu.Lock()
	defer m.labelsMu.Unlock()
	return append([]string(nil), m.sourceList...)
}

// CMSList returns the label names of the CMS memories.
func (m *Manager) CMSList() []string {
	m.labelsMu.Lock()
	defer m.labelsMu.Unlock()
	return append([]string(nil), m.cmsList...)
}

// StyleList returns the label names of the style memories.
func (m *Manager) StyleList() []string {
	m.labelsMu.Lock()
	defer m.labelsMu.Unlock()
	return append([]string(nil), m.styleList...)
}

// IsConnected reports whether the logical connection is established.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status == transport.StateConnected
}

// IsAlive reports whether the device responded to the last liveness probe.
func (m *Manager) IsAlive() bool {
	return m.state.Operational().IsAlive
}

// DeviceStatus returns the device's power status. It is empty until the
// first power report arrives.
func (m *Manager) DeviceStatus() protocol.DeviceStatus {
	return m.state.Operational().DeviceStatus
}

// DeviceInfo returns the merged state snapshot.
func (m *Manager) DeviceInfo() DeviceInfo {
	return m.state.Snapshot()
}

// OnDeviceInfoChange registers a callback fired whenever the merged state
// snapshot changes.
func (m *Manager) OnDeviceInfoChange(callback func(DeviceInfo)) {
	m.infoCallbacksMu.Lock()
	defer m.infoCallbacksMu.Unlock()
	m.infoCallbacks = append(m.infoCallbacks, callback)
}

// SetJournal installs a journal for commands that fail to send. It applies
// to connections opened afterwards.
func (m *Manager) SetJournal(journal connection.FailureJournal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.journal = journal
}

// EnableReconnect enables or disables automatic reconnection.
func (m *Manager) EnableReconnect(enable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reconnectEnabled == enable {
		m.log.Debug("Auto-reconnect setting unchanged", "enabled", enable)
		return
	}
	m.reconnectEnabled = enable
	m.log.Info("Auto-reconnect setting changed", "enabled", enable)
}

// Open establishes the connection using the configured connection type.
func (m *Manager) Open(ctx context.Context, opts OpenOptions) error {
	m.mu.Lock()
	m.openOptions = opts
	journal := m.journal
	m.mu.Unlock()

	var (
		handler *connection.Handler
		err     error
	)

	switch m.connectionType {
	case "serial":
		if opts.Port == "" {
			return errors.New("port must be provided for serial connection")
		}
		if opts.Baudrate <= 0 {
			return errors.New("baudrate must be a positive integer")
		}
		m.log.Info("Opening serial connection", "port", opts.Port, "baudrate", opts.Baudrate)
		handler, err = connection.OpenSerial(ctx, opts.Port, opts.Baudrate, m.dispatcher, m.log)
	case "ip":
		if opts.Host == "" {
			return errors.New("host must be provided for ip connection")
		}
		port := opts.TCPPort
		if port == 0 {
			port = DefaultIPPort
		}
		m.log.Info("Opening IP connection", "host", opts.Host, "port", port)
		handler, err = connection.OpenIP(ctx, opts.Host, port, m.dispatcher, m.log)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedConnectionType, m.connectionType)
	}

	if err != nil {
		m.log.Error("Failed to open connection", "error", err)
		return err
	}

	if journal != nil {
		handler.SetJournal(journal)
	}

	m.mu.Lock()
	m.handler = handler
	m.executor = NewCommandExecutor(handler, m)
	m.mu.Unlock()

	m.log.Info("Connection opened successfully")
	return nil
}

// Close closes the connection and cancels all managed tasks.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		m.log.Warn("Close operation already in progress")
		return nil
	}
	m.closing = true
	handler := m.handler
	m.handler = nil
	m.mu.Unlock()

	m.log.Info("Closing device connection")

	var err error
	if handler != nil {
		if closeErr := handler.Close(); closeErr != nil {
			m.log.Error("Error while closing connection handler", "error", closeErr)
			err = closeErr
		}
	}

	m.baseCancel()
	if cancelErr := m.tasks.CancelAll(); cancelErr != nil && !errors.Is(cancelErr, context.Canceled) {
		err = errors.Join(err, cancelErr)
	}

	m.mu.Lock()
	m.status = transport.StateDisconnected
	m.statusKnown = true
	m.mu.Unlock()
	metrics.Connected.Set(0)

	m.state.Reset()
	return err
}

// SendCommand queues one or more raw commands on the active connection.
func (m *Manager) SendCommand(ctx context.Context, commands ...string) error {
	m.mu.Lock()
	handler := m.handler
	m.mu.Unlock()

	if handler == nil {
		return connection.ErrNoValidCommands
	}
	return handler.QueueCommand(ctx, commands...)
}

// runOnceAtStartup waits for the first successful liveness probe and power
// report, then requests the full system state if the device is active.
func (m *Manager) runOnceAtStartup(ctx context.Context) error {
	ticker := time.NewTicker(startupPollInterval)
	defer ticker.Stop()

	for !m.IsAlive() || m.DeviceStatus() == "" {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	if m.DeviceStatus() == protocol.DeviceActive {
		if executor := m.Executor(); executor != nil {
			return executor.GetAll(ctx, false)
		}
	}
	return nil
}

// healthCheck probes the device at the configured interval, skipping a probe
// when inbound traffic arrived more recently than the interval. Debug logs
// are suppressed for the duration of each probe.
func (m *Manager) healthCheck(ctx context.Context) error {
	interval := DefaultHealthCheckInterval

	for m.IsConnected() && m.IsAlive() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		m.mu.Lock()
		last := m.lastDataReceived
		m.mu.Unlock()
		if !last.IsZero() && time.Since(last) < interval {
			continue
		}

		restore := m.log.Quiet()
		alive := m.checkAlive(ctx, DefaultAliveTimeout)
		restore()

		if !alive {
			m.handleDisconnection(ctx)
			return nil
		}
	}
	return nil
}

// checkAlive performs one liveness probe: clear the liveness signal, send
// the probe command, and wait for the response. The first successful probe
// after the device identity is lost also queries identity and power and
// starts the periodic health check.
func (m *Manager) checkAlive(ctx context.Context, timeout time.Duration) bool {
	if !m.IsConnected() {
		m.log.Error("No active connection to perform alive check")
		return false
	}

	m.aliveSignal.Clear()

	if err := m.SendCommand(ctx, protocol.CmdDevicePrefix+protocol.StatusAliveOp); err != nil {
		m.log.Error("Failed to send alive message", "error", err)
		metrics.AliveCheckFailures.Inc()
		m.handleDisconnection(ctx)
		return false
	}

	if err := m.aliveSignal.Wait(ctx, timeout); err != nil {
		m.log.Error("Alive check timed out, device may be disconnected")
		metrics.AliveCheckFailures.Inc()
		return false
	}
	m.log.Debug("Device responded to alive check")

	if m.state.DeviceID().ModelName == nil {
		if err := m.SendCommand(ctx,
			protocol.CmdDevicePrefix+protocol.StatusPowerOp,
			protocol.CmdDevicePrefix+protocol.StatusIDOp,
		); err != nil {
			m.log.Error("Failed to query device identity", "error", err)
		}
		m.tasks.Add(m.baseCtx, TaskPeriodicAliveCheck, m.healthCheck)
	}

	return m.IsAlive()
}

// handleDisconnection closes the handler and announces the disconnection.
// It is idempotent: a second call while already disconnected is a no-op.
func (m *Manager) handleDisconnection(ctx context.Context) {
	if !m.IsConnected() {
		m.log.Info("Device is already disconnected, skipping redundant cleanup")
		return
	}

	m.log.Warn("Handling disconnection")

	m.mu.Lock()
	handler := m.handler
	m.handler = nil
	m.mu.Unlock()

	if handler != nil {
		m.log.Info("Closing connection handler")
		if err := handler.Close(); err != nil {
			m.log.Error("Error while closing handler", "error", err)
		}
	}

	if err := m.dispatcher.Invoke(ctx, dispatcher.Event{
		Kind:    dispatcher.ConnectionState,
		State:   transport.StateDisconnected,
		Message: "Connection lost",
	}); err != nil {
		m.log.Error("Disconnection listener failed", "error", err)
	}
}

// retryAliveCheck repeats the liveness probe until it succeeds or the
// connection is lost.
func (m *Manager) retryAliveCheck(ctx context.Context) error {
	for !m.IsAlive() {
		if !m.IsConnected() {
			m.log.Warn("Connection lost during retry loop")
			return nil
		}

		if m.checkAlive(ctx, DefaultAliveTimeout) {
			return nil
		}

		m.log.Warn("Device is not responding, retrying alive check",
			"interval", DefaultHealthCheckInterval)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(DefaultHealthCheckInterval):
		}
	}
	return nil
}

// reconnectLoop attempts to reconnect periodically using the parameters of
// the last successful Open. The loop is bounded to roughly a day of
// attempts and aborts when reconnection is disabled or the manager closes.
func (m *Manager) reconnectLoop(ctx context.Context) error {
	attempts := 0

	for !m.IsConnected() && attempts < maxReconnectAttempts {
		m.mu.Lock()
		closing := m.closing
		enabled := m.reconnectEnabled
		opts := m.openOptions
		m.mu.Unlock()

		if closing {
			m.log.Info("Reconnection disabled due to manual close")
			return nil
		}
		if !enabled {
			m.log.Info("Reconnection is disabled, not attempting reconnect")
			return nil
		}

		m.log.Warn("Attempting to reconnect",
			"delay", reconnectDelay,
			"attempt", attempts+1,
			"max_attempts", maxReconnectAttempts)

		metrics.ReconnectAttempts.Inc()

		err := m.Open(ctx, opts)
		switch {
		case err == nil:
			if m.IsConnected() {
				m.log.Info("Reconnection successful")
				return nil
			}
		case errors.Is(err, context.Canceled):
			m.log.Info("Reconnect loop cancelled")
			return err
		case errors.Is(err, context.DeadlineExceeded):
			m.log.Error("Reconnection attempt timed out, retrying")
		default:
			var errnoErr syscall.Errno
			if errors.As(err, &errnoErr) {
				m.log.Error("Reconnection failed due to network error",
					"errno", int(errnoErr),
					"error", errnoErr.Error())
			} else {
				m.log.Error("Reconnection failed", "error", err)
			}
		}

		if !m.IsConnected() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(reconnectDelay):
			}
		}

		attempts++
	}

	if attempts >= maxReconnectAttempts {
		m.log.Error("Max reconnection attempts reached, stopping retries",
			"max_attempts", maxReconnectAttempts)
	}
	return nil
}

// onEvent is the dispatcher listener gluing connection events to the
// lifecycle state machine.
func (m *Manager) onEvent(ctx context.Context, event dispatcher.Event) error {
	switch event.Kind {
	case dispatcher.ConnectionState:
		m.log.Debug("Received connection state event", "message", event.Message)
		m.updateConnectionState(event.State)

	case dispatcher.DataReceived:
		m.log.Debug("Data received", "message", event.Message)
		if event.Response == nil {
			m.log.Error("Data received event carried no response")
			return nil
		}

		m.mu.Lock()
		m.lastDataReceived = time.Now()
		m.mu.Unlock()

		// Responses can arrive faster than a handler task completes, so each
		// event gets a uniquely named task instead of the deduplicated name.
		response := event.Response
		name := fmt.Sprintf("%s_%d", TaskHandleDataReceived, m.handleSeq.Add(1))
		m.tasks.Add(m.baseCtx, name, func(ctx context.Context) error {
			return m.handleDataReceived(ctx, response)
		})
	}
	return nil
}

func (m *Manager) updateConnectionState(state transport.ConnectionState) {
	m.mu.Lock()
	m.status = state
	m.statusKnown = true
	enabled := m.reconnectEnabled
	m.mu.Unlock()

	m.log.Info("Updated connection status", "status", state.String())

	switch state {
	case transport.StateConnected:
		metrics.Connected.Set(1)
		m.log.Info("Device connected, performing initial alive check")
		m.tasks.Cancel(TaskReconnectLoop)
		m.tasks.Add(m.baseCtx, TaskRetryAliveCheck, m.retryAliveCheck)

	case transport.StateDisconnected:
		metrics.Connected.Set(0)
		metrics.DeviceAlive.Set(0)

		m.mu.Lock()
		m.handler = nil
		m.mu.Unlock()

		// Cached device info is stale once the link drops; the next
		// successful probe re-queries identity and state from scratch.
		m.state.Reset()
		m.log.Warn("Connection lost")

		if enabled {
			m.tasks.Add(m.baseCtx, TaskReconnectLoop, m.reconnectLoop)
		}
	}
}

// deviceInfoCallback forwards merged-state changes to registered observers.
func (m *Manager) deviceInfoCallback(info DeviceInfo) {
	m.log.Info("Device info updated")

	m.infoCallbacksMu.Lock()
	callbacks := make([]func(DeviceInfo), len(m.infoCallbacks))
	copy(callbacks, m.infoCallbacks)
	m.infoCallbacksMu.Unlock()

	for _, callback := range callbacks {
		callback(info)
	}
}
