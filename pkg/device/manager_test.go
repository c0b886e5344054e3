package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/commatea/Radiance-Link/pkg/connection"
	"github.com/commatea/Radiance-Link/pkg/dispatcher"
	"github.com/commatea/Radiance-Link/pkg/protocol"
	"github.com/commatea/Radiance-Link/pkg/transport"
)

type fakeTransport struct {
	mu        sync.Mutex
	sent      []string
	connected bool
	recv      chan []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{connected: true, recv: make(chan []byte, 16)}
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Send(ctx context.Context, data []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, string(data))
	return len(data), nil
}

func (f *fakeTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data := <-f.recv:
		return data, nil
	case <-time.After(5 * time.Millisecond):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeTransport) Info() transport.Info {
	return transport.Info{Type: "fake", Address: "fake"}
}

func (f *fakeTransport) SetEventHandler(handler transport.EventHandler) {}

func (f *fakeTransport) sentFrames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// newTestManager wires a manager to a fake transport without going through
// the transport factories.
func newTestManager(t *testing.T) (*Manager, *fakeTransport) {
	t.Helper()

	m, err := NewManager(context.Background(), "ip", false, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	ft := newFakeTransport()
	handler := connection.NewHandler(ft, m.dispatcher, m.log)

	m.mu.Lock()
	m.handler = handler
	m.executor = NewCommandExecutor(handler, m)
	m.mu.Unlock()

	return m, ft
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("condition not met within deadline")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestNewManagerRejectsUnknownType(t *testing.T) {
	_, err := NewManager(context.Background(), "carrier-pigeon", false, nil)
	if !errors.Is(err, ErrUnsupportedConnectionType) {
		t.Errorf("NewManager error = %v, want ErrUnsupportedConnectionType", err)
	}
}

func TestHandleAliveResponse(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	resp, err := protocol.DecodeMessage("!S00,Ok")
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if err := m.handleDataReceived(ctx, resp); err != nil {
		t.Fatalf("handleDataReceived: %v", err)
	}

	if !m.aliveSignal.IsSet() {
		t.Error("alive signal not set by alive response")
	}
	if !m.IsAlive() {
		t.Error("IsAlive = false after alive response")
	}
}

func TestHandlePowerResponse(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	resp, err := protocol.DecodeMessage("!S02,1")
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if err := m.handleDataReceived(ctx, resp); err != nil {
		t.Fatalf("handleDataReceived: %v", err)
	}

	if got := m.DeviceStatus(); got != protocol.DeviceActive {
		t.Errorf("DeviceStatus = %v, want active", got)
	}
}

func TestLabelCategorization(t *testing.T) {
	m, _ := newTestManager(t)

	for _, x := range "ABCD" {
		for y := 0; y <= 9; y++ {
			key := fmt.Sprintf("%c%d", x, y)
			m.handleLabelQuery(protocol.LabelQuery{Index: key, Label: "Input " + key})
		}
	}
	for x := 1; x <= 3; x++ {
		for y := 0; y <= 7; y++ {
			key := fmt.Sprintf("%d%d", x, y)
			m.handleLabelQuery(protocol.LabelQuery{Index: key, Label: "Mem " + key})
		}
	}

	if got := len(m.Labels()); got != labelCount {
		t.Fatalf("stored labels = %d, want %d", got, labelCount)
	}

	sources := m.SourceList()
	if len(sources) != 10 || sources[0] != "Input A0" || sources[9] != "Input A9" {
		t.Errorf("SourceList = %v, want Input A0..A9", sources)
	}
	if cms := m.CMSList(); len(cms) != 8 || cms[0] != "Mem 20" {
		t.Errorf("CMSList = %v, want Mem 20..27", cms)
	}
	if styles := m.StyleList(); len(styles) != 8 || styles[7] != "Mem 37" {
		t.Errorf("StyleList = %v, want Mem 30..37", styles)
	}
}

func TestCheckAliveTimesOutWithoutResponse(t *testing.T) {
	m, ft := newTestManager(t)
	ctx := context.Background()

	m.mu.Lock()
	m.status = transport.StateConnected
	m.mu.Unlock()

	if m.checkAlive(ctx, 20*time.Millisecond) {
		t.Error("checkAlive should fail when no response arrives")
	}

	waitFor(t, func() bool { return len(ft.sentFrames()) >= 1 })
	if frames := ft.sentFrames(); frames[0] != "#ZQS00{" {
		t.Errorf("probe frame = %q, want #ZQS00{", frames[0])
	}
}

func TestCheckAliveQueriesIdentityOnFirstSuccess(t *testing.T) {
	m, ft := newTestManager(t)
	ctx := context.Background()

	m.mu.Lock()
	m.status = transport.StateConnected
	m.mu.Unlock()

	go func() {
		// Answer the probe as the device would.
		for len(ft.sentFrames()) == 0 {
			time.Sleep(time.Millisecond)
		}
		m.state.SetAlive(true)
		m.aliveSignal.Set()
	}()

	if !m.checkAlive(ctx, time.Second) {
		t.Fatal("checkAlive should succeed once the signal fires")
	}

	// Unknown identity triggers power and identity queries plus the
	// periodic health check.
	waitFor(t, func() bool { return len(ft.sentFrames()) >= 3 })
	frames := ft.sentFrames()
	if frames[1] != "#ZQS02{" || frames[2] != "#ZQS01{" {
		t.Errorf("identity frames = %v, want #ZQS02{ then #ZQS01{", frames[1:])
	}
	if m.tasks.Get(TaskPeriodicAliveCheck) == nil {
		t.Error("periodic health check not started")
	}
}

func TestCheckAliveRequiresConnection(t *testing.T) {
	m, _ := newTestManager(t)

	if m.checkAlive(context.Background(), time.Second) {
		t.Error("checkAlive should fail while disconnected")
	}
}

func TestHandleDisconnectionIdempotent(t *testing.T) {
	m, ft := newTestManager(t)
	ctx := context.Background()

	// Already disconnected: nothing should be torn down.
	m.handleDisconnection(ctx)
	if m.Executor() == nil {
		t.Fatal("executor should survive a redundant disconnection")
	}
	if !ft.IsConnected() {
		t.Fatal("transport should stay open on a redundant disconnection")
	}

	m.mu.Lock()
	m.status = transport.StateConnected
	m.mu.Unlock()
	m.state.SetAlive(true)

	m.handleDisconnection(ctx)

	if m.IsConnected() {
		t.Error("manager still connected after disconnection")
	}
	if m.IsAlive() {
		t.Error("liveness flag not cleared on disconnection")
	}
	if ft.IsConnected() {
		t.Error("transport not closed on disconnection")
	}

	m.mu.Lock()
	handler := m.handler
	m.mu.Unlock()
	if handler != nil {
		t.Error("handler not released on disconnection")
	}
}

func TestDisconnectionFromLifecycleTaskSettles(t *testing.T) {
	m, ft := newTestManager(t)

	m.mu.Lock()
	m.status = transport.StateConnected
	m.mu.Unlock()

	// The health check runs as a registry task and funnels probe failures
	// through handleDisconnection, which closes the connection handler.
	// That close must never wait on the lifecycle task performing it.
	task := m.tasks.Add(context.Background(), TaskPeriodicAliveCheck, func(ctx context.Context) error {
		m.handleDisconnection(ctx)
		return nil
	})

	select {
	case <-task.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("disconnection handling never settled")
	}

	if m.IsConnected() {
		t.Error("manager still connected after disconnection")
	}
	if ft.IsConnected() {
		t.Error("transport not closed on disconnection")
	}
}

func TestDisconnectClearsCachedInfo(t *testing.T) {
	m, _ := newTestManager(t)

	m.state.SetAlive(true)
	m.state.SetDeviceStatus(protocol.DeviceActive)
	model := "RadiancePro"
	m.state.UpdateDeviceID(protocol.StatusID{ModelName: &model})

	m.updateConnectionState(transport.StateDisconnected)

	info := m.DeviceInfo()
	if info.OperationalState.IsAlive || info.OperationalState.DeviceStatus != "" {
		t.Errorf("operational state = %+v, want cleared", info.OperationalState)
	}
	if info.DeviceID.ModelName != nil {
		t.Error("device identity survived the disconnect")
	}
	if m.DeviceStatus() != "" {
		t.Errorf("DeviceStatus = %q, want empty after disconnect", m.DeviceStatus())
	}
}

func TestFlappingDisconnectsStartOneReconnectLoop(t *testing.T) {
	m, _ := newTestManager(t)
	m.EnableReconnect(true)
	ctx := context.Background()

	event := dispatcher.Event{
		Kind:    dispatcher.ConnectionState,
		State:   transport.StateDisconnected,
		Message: "Connection lost",
	}

	if err := m.dispatcher.Invoke(ctx, event); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	first := m.tasks.Get(TaskReconnectLoop)
	if first == nil {
		t.Fatal("reconnect loop not started on disconnect")
	}

	if err := m.dispatcher.Invoke(ctx, event); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got := m.tasks.Get(TaskReconnectLoop); got != first {
		t.Error("overlapping disconnect started a second reconnect loop")
	}
}

func TestDeviceInfoObserversNotified(t *testing.T) {
	m, _ := newTestManager(t)

	var mu sync.Mutex
	var got []DeviceInfo
	m.OnDeviceInfoChange(func(info DeviceInfo) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, info)
	})

	m.state.SetAlive(true)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || !got[0].OperationalState.IsAlive {
		t.Errorf("observer saw %v, want one alive snapshot", got)
	}
}

func TestConnectedStateStartsAliveRetry(t *testing.T) {
	m, ft := newTestManager(t)

	m.updateConnectionState(transport.StateConnected)

	if !m.IsConnected() {
		t.Fatal("manager should report connected")
	}
	if m.tasks.Get(TaskRetryAliveCheck) == nil {
		t.Error("retry alive check task not started")
	}

	// The retry loop issues the first probe.
	waitFor(t, func() bool { return len(ft.sentFrames()) >= 1 })
}
