// Package connection owns the per-connection read and write paths: the
// stream framer that turns raw transport bytes into decoded responses, and
// the FIFO command queue with its single sender task.
package connection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/commatea/Radiance-Link/pkg/dispatcher"
	"github.com/commatea/Radiance-Link/pkg/logger"
	"github.com/commatea/Radiance-Link/pkg/metrics"
	"github.com/commatea/Radiance-Link/pkg/protocol"
	"github.com/commatea/Radiance-Link/pkg/tasks"
	"github.com/commatea/Radiance-Link/pkg/transport"
)

// Task names registered by the handler.
const (
	TaskProcessNextCommand = "process_next_command"
	TaskProcessStream      = "process_stream"
	TaskInvokeEvent        = "invoke_event"
)

// ErrNoValidCommands is returned when every submitted command was empty.
var ErrNoValidCommands = errors.New("no valid commands to queue")

// FailureJournal records commands that could not be sent so a caller can
// replay them after the connection recovers. Sends are never retried
// automatically.
type FailureJournal interface {
	RecordFailure(ctx context.Context, command string, cause error) error
}

// State tracks the mutable per-connection queue state. The sender loop holds
// the mutex only across pop-and-frame, never across a transport send.
type State struct {
	mu             sync.Mutex
	queue          []string
	currentCommand string
	sendingCommand bool
}

// PendingCommands returns the number of queued commands.
func (s *State) PendingCommands() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// CurrentCommand returns the most recently popped command.
func (s *State) CurrentCommand() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentCommand
}

// Handler manages one device connection: it frames outbound commands,
// decodes the inbound stream, and publishes both connection-state changes
// and decoded responses through the dispatcher.
type Handler struct {
	tr      transport.Transport
	disp    *dispatcher.Dispatcher
	tasks   *tasks.Registry
	log     *logger.Logger
	state   *State
	journal FailureJournal
}

// NewHandler creates a handler bound to an unopened transport. The handler
// owns its task registry; closing it cancels only handler tasks, never tasks
// of the caller.
func NewHandler(tr transport.Transport, disp *dispatcher.Dispatcher, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Global()
	}
	return &Handler{
		tr:    tr,
		disp:  disp,
		tasks: tasks.NewRegistry(log),
		log:   log,
		state: &State{},
	}
}

// SetJournal installs an optional journal for commands that failed to send.
func (h *Handler) SetJournal(journal FailureJournal) {
	h.journal = journal
}

// State exposes the connection state for inspection.
func (h *Handler) State() *State { return h.state }

// Transport returns the underlying transport.
func (h *Handler) Transport() transport.Transport { return h.tr }

// Open connects the transport, announces the connection, and starts the
// stream framer task.
func (h *Handler) Open(ctx context.Context) error {
	if err := h.tr.Connect(ctx); err != nil {
		return fmt.Errorf("open connection: %w", err)
	}

	info := h.tr.Info()
	h.log.Info("Connection established", "type", info.Type, "address", info.Address)

	h.tasks.Add(ctx, TaskInvokeEvent, func(ctx context.Context) error {
		return h.disp.Invoke(ctx, dispatcher.Event{
			Kind:    dispatcher.ConnectionState,
			State:   transport.StateConnected,
			Message: fmt.Sprintf("Connected to %s", info.Address),
		})
	})

	h.tasks.Add(ctx, TaskProcessStream, h.processStream)
	return nil
}

// Close cancels the handler's tasks and closes the transport.
func (h *Handler) Close() error {
	err := h.tasks.CancelAll()
	if closeErr := h.tr.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	h.log.Info("All tasks cancelled and connection closed")
	return err
}

// QueueCommand queues one or more commands to be sent over the active
// connection. Entries are trimmed; empty entries are dropped.
func (h *Handler) QueueCommand(ctx context.Context, commands ...string) error {
	valid := make([]string, 0, len(commands))
	for _, cmd := range commands {
		if trimmed := strings.TrimSpace(cmd); trimmed != "" {
			valid = append(valid, trimmed)
		}
	}
	if len(valid) == 0 {
		h.log.Error("No valid commands to queue")
		return ErrNoValidCommands
	}

	h.state.mu.Lock()
	h.state.queue = append(h.state.queue, valid...)
	remaining := len(h.state.queue)
	h.state.mu.Unlock()

	h.log.Debug("Queued commands", "count", len(valid), "remaining", remaining)

	h.ProcessNextCommand(ctx)
	return nil
}

// ProcessNextCommand ensures exactly one sender task is running. A trigger
// while the sender is active is a no-op.
func (h *Handler) ProcessNextCommand(ctx context.Context) {
	if h.tasks.Get(TaskProcessNextCommand) == nil {
		h.tasks.Add(ctx, TaskProcessNextCommand, h.drainQueue)
	}
}

// drainQueue pops and sends queued commands until the queue empties or a
// send fails. Failed sends are journaled, never retried.
func (h *Handler) drainQueue(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		h.state.mu.Lock()
		if h.state.sendingCommand {
			h.state.mu.Unlock()
			return nil
		}
		if len(h.state.queue) == 0 {
			h.state.currentCommand = ""
			h.state.mu.Unlock()
			h.log.Debug("No more commands in the queue, exiting loop")
			return nil
		}
		command := h.state.queue[0]
		h.state.queue = h.state.queue[1:]
		h.state.currentCommand = command
		remaining := len(h.state.queue)
		h.state.mu.Unlock()

		h.log.Debug("Commands remaining in queue", "count", remaining)

		frame := make([]byte, 0, len(protocol.CmdStart)+len(command)+len(protocol.CmdTerminator))
		frame = append(frame, protocol.CmdStart...)
		frame = append(frame, command...)
		frame = append(frame, protocol.CmdTerminator...)

		if _, err := h.tr.Send(ctx, frame); err != nil {
			metrics.CommandErrors.Inc()
			h.log.Error("Failed to send command", "command", command, "error", err)
			if h.journal != nil {
				if jerr := h.journal.RecordFailure(ctx, command, err); jerr != nil {
					h.log.Error("Failed to journal command", "command", command, "error", jerr)
				}
			}
			return fmt.Errorf("send command %q: %w", command, err)
		}
		metrics.CommandsSent.Inc()
		h.log.Debug("Command sent", "data", string(frame))
	}
}

// processStream runs the inbound framer loop until the context is cancelled
// or the transport fails.
func (h *Handler) processStream(ctx context.Context) error {
	bm := protocol.NewBufferManager(protocol.Terminator, protocol.IgnoredPrefixes)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := h.tr.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			h.log.Warn("Stream ended unexpectedly", "error", err)
			h.disp.Invoke(ctx, dispatcher.Event{
				Kind:    dispatcher.ConnectionState,
				State:   transport.StateDisconnected,
				Message: err.Error(),
			})
			return fmt.Errorf("process stream: %w", err)
		}
		if len(data) == 0 {
			continue
		}

		bm.Append(string(data))
		h.processBuffer(ctx, bm)
	}
}

// processBuffer applies the framing rules to the accumulated buffer.
func (h *Handler) processBuffer(ctx context.Context, bm *protocol.BufferManager) {
	if bm.IsEmpty() {
		bm.Clear()
		return
	}

	h.log.Debug("Buffer updated", "buffer", bm.Buffer())

	bm.Adjust(protocol.SyncKeywords)

	if bm.StartsWith(bm.IgnoredPrefixes()...) {
		bm.Clear()
		h.processMessage(ctx, bm)
		return
	}

	if bm.StartsWith("power", "#", "!") && bm.EndsWithTerminator() {
		h.processMessage(ctx, bm)
		return
	}

	// A terminated buffer with no recognized sentinel is unparseable noise.
	if bm.EndsWithTerminator() {
		bm.Clear()
		return
	}

	if _, entry, isKeypress, ok := protocol.MatchKeystroke(bm.Buffer()); ok {
		if isKeypress {
			h.log.Debug("Received keypress command", "description", entry.Desc)
		} else {
			h.log.Debug("Received remote command", "description", entry.Desc)
		}
		bm.Clear()
	}

	h.processMessage(ctx, bm)
}

// processMessage extracts one complete message, decodes and dispatches it,
// then always re-triggers the sender so a response cycle releases the next
// queued command.
func (h *Handler) processMessage(ctx context.Context, bm *protocol.BufferManager) {
	message := bm.ExtractMessage()
	if message != "" {
		h.log.Debug("Processing message", "message", message)
		response, err := protocol.DecodeMessage(message)
		if err != nil {
			metrics.DecodeErrors.Inc()
			h.log.Error("Failed to decode message", "message", message, "error", err)
		} else {
			metrics.MessagesReceived.WithLabelValues(response.Name()).Inc()
			if err := h.disp.Invoke(ctx, dispatcher.Event{
				Kind:     dispatcher.DataReceived,
				Response: response,
				Message:  response.Name(),
			}); err != nil {
				h.log.Error("Listener failed", "message", response.Name(), "error", err)
			}
		}
	}
	h.ProcessNextCommand(ctx)
}
