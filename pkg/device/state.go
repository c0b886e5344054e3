package device

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/commatea/Radiance-Link/pkg/logger"
	"github.com/commatea/Radiance-Link/pkg/protocol"
)

// Signal is an edge-triggered flag. Clear arms it, Set fires it, Wait blocks
// until the next Set. A Set before Clear is not remembered across the Clear.
type Signal struct {
	mu  sync.Mutex
	ch  chan struct{}
	set bool
}

// NewSignal creates a cleared signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Set fires the signal. Subsequent Sets are no-ops until Clear.
func (s *Signal) Set() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		s.set = true
		close(s.ch)
	}
}

// Clear re-arms the signal.
func (s *Signal) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set {
		s.set = false
		s.ch = make(chan struct{})
	}
}

// IsSet reports whether the signal has fired since the last Clear.
func (s *Signal) IsSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set
}

// Wait blocks until the signal fires, the timeout elapses, or ctx is
// cancelled.
func (s *Signal) Wait(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	ch := s.ch
	if s.set {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return nil
	case <-timer.C:
		return context.DeadlineExceeded
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OperationalState groups the single-field status toggles reported by the
// device.
type OperationalState struct {
	IsAlive           bool                  `json:"is_alive"`
	DeviceStatus      protocol.DeviceStatus `json:"device_status,omitempty"`
	AutoAspect        protocol.StateStatus  `json:"auto_aspect,omitempty"`
	GameMode          protocol.StateStatus  `json:"game_mode,omitempty"`
	OutputColorFormat string                `json:"output_color_format,omitempty"`
}

// DeviceID identifies the connected device.
type DeviceID struct {
	ModelName        *string `json:"model_name,omitempty"`
	SoftwareRevision *int    `json:"software_revision,omitempty"`
	ModelNumber      *int    `json:"model_number,omitempty"`
	SerialNumber     *int    `json:"serial_number,omitempty"`
}

// DeviceInfo is the merged snapshot of every cached state section. It is the
// value handed to change callbacks and exposed over the status API.
type DeviceInfo struct {
	DeviceID         DeviceID                 `json:"device_id"`
	OperationalState OperationalState         `json:"operational_state"`
	BasicInputInfo   protocol.InputBasicInfo  `json:"basic_input_info"`
	InputVideo       protocol.InputVideo      `json:"input_video"`
	FullInfo         protocol.FullInfo        `json:"full_info"`
	BasicOutputInfo  protocol.OutputBasicInfo `json:"basic_output_info"`
	OutputMode       protocol.OutputModeInfo  `json:"output_mode"`
}

// SystemState caches every state section reported by the device and detects
// redundant updates. Each section setter reports whether the stored value
// actually changed; any change refreshes the merged DeviceInfo snapshot and
// fires the update callback.
type SystemState struct {
	mu  sync.Mutex
	log *logger.Logger

	deviceID    DeviceID
	operational OperationalState
	basicInput  protocol.InputBasicInfo
	inputVideo  protocol.InputVideo
	fullInfo    protocol.FullInfo
	basicOutput protocol.OutputBasicInfo
	outputMode  protocol.OutputModeInfo

	info     DeviceInfo
	callback func(DeviceInfo)
}

// NewSystemState creates an empty state cache.
func NewSystemState(log *logger.Logger) *SystemState {
	if log == nil {
		log = logger.Global()
	}
	return &SystemState{log: log}
}

// SetUpdateCallback sets the function called whenever the merged DeviceInfo
// snapshot changes. The callback runs after the state lock is released and
// may read back through SystemState.
func (s *SystemState) SetUpdateCallback(callback func(DeviceInfo)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = callback
}

// Reset restores every section to its zero value.
func (s *SystemState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Info("Resetting system state to default values")

	s.deviceID = DeviceID{}
	s.operational = OperationalState{}
	s.basicInput = protocol.InputBasicInfo{}
	s.inputVideo = protocol.InputVideo{}
	s.fullInfo = protocol.FullInfo{}
	s.basicOutput = protocol.OutputBasicInfo{}
	s.outputMode = protocol.OutputModeInfo{}
	s.info = DeviceInfo{}
}

// Snapshot returns the current merged DeviceInfo.
func (s *SystemState) Snapshot() DeviceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// DeviceID returns the cached device identity.
func (s *SystemState) DeviceID() DeviceID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceID
}

// Operational returns the cached operational state.
func (s *SystemState) Operational() OperationalState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.operational
}

// SetAlive records the liveness flag.
func (s *SystemState) SetAlive(alive bool) bool {
	return s.updateOperational(func(o *OperationalState) { o.IsAlive = alive })
}

// SetDeviceStatus records the power status.
func (s *SystemState) SetDeviceStatus(status protocol.DeviceStatus) bool {
	return s.updateOperational(func(o *OperationalState) { o.DeviceStatus = status })
}

// SetAutoAspect records the auto-aspect toggle.
func (s *SystemState) SetAutoAspect(status protocol.StateStatus) bool {
	return s.updateOperational(func(o *OperationalState) { o.AutoAspect = status })
}

// SetGameMode records the game-mode toggle.
func (s *SystemState) SetGameMode(status protocol.StateStatus) bool {
	return s.updateOperational(func(o *OperationalState) { o.GameMode = status })
}

// SetOutputColorFormat records the output color format.
func (s *SystemState) SetOutputColorFormat(format string) bool {
	return s.updateOperational(func(o *OperationalState) { o.OutputColorFormat = format })
}

func (s *SystemState) updateOperational(apply func(*OperationalState)) bool {
	s.mu.Lock()
	updated := s.operational
	apply(&updated)
	if updated == s.operational {
		s.mu.Unlock()
		return false
	}
	s.operational = updated
	notify := s.refreshInfo()
	s.mu.Unlock()

	notify()
	return true
}

// UpdateDeviceID stores the device identity from a status response.
func (s *SystemState) UpdateDeviceID(r protocol.StatusID) bool {
	s.mu.Lock()
	updated := DeviceID{
		ModelName:        r.ModelName,
		SoftwareRevision: r.SoftwareRevision,
		ModelNumber:      r.ModelNumber,
		SerialNumber:     r.SerialNumber,
	}
	if reflect.DeepEqual(updated, s.deviceID) {
		s.mu.Unlock()
		return false
	}
	s.deviceID = updated
	notify := s.refreshInfo()
	s.mu.Unlock()

	notify()
	return true
}

// UpdateBasicInput stores the basic input section.
func (s *SystemState) UpdateBasicInput(r protocol.InputBasicInfo) bool {
	s.mu.Lock()
	if reflect.DeepEqual(r, s.basicInput) {
		s.mu.Unlock()
		return false
	}
	s.basicInput = r
	notify := s.refreshInfo()
	s.mu.Unlock()

	notify()
	return true
}

// UpdateInputVideo stores the input video section.
func (s *SystemState) UpdateInputVideo(r protocol.InputVideo) bool {
	s.mu.Lock()
	if reflect.DeepEqual(r, s.inputVideo) {
		s.mu.Unlock()
		return false
	}
	s.inputVideo = r
	notify := s.refreshInfo()
	s.mu.Unlock()

	notify()
	return true
}

// UpdateBasicOutput stores the basic output section.
func (s *SystemState) UpdateBasicOutput(r protocol.OutputBasicInfo) bool {
	s.mu.Lock()
	if reflect.DeepEqual(r, s.basicOutput) {
		s.mu.Unlock()
		return false
	}
	s.basicOutput = r
	notify := s.refreshInfo()
	s.mu.Unlock()

	notify()
	return true
}

// UpdateOutputMode stores the output mode section.
func (s *SystemState) UpdateOutputMode(r protocol.OutputModeInfo) bool {
	s.mu.Lock()
	if reflect.DeepEqual(r, s.outputMode) {
		s.mu.Unlock()
		return false
	}
	s.outputMode = r
	notify := s.refreshInfo()
	s.mu.Unlock()

	notify()
	return true
}

// UpdateFullInfo merges the populated fields of a full-info report onto the
// cached section. Reports of different versions carry different subsets, so
// unset fields never erase previously reported values.
func (s *SystemState) UpdateFullInfo(r protocol.FullInfo) bool {
	s.mu.Lock()
	merged := s.fullInfo
	mergeNonNil(&merged, &r)
	if r.Version != "" {
		merged.Version = r.Version
	}
	if r.OutputOn != nil {
		merged.OutputOn = r.OutputOn
	}

	if reflect.DeepEqual(merged, s.fullInfo) {
		s.mu.Unlock()
		return false
	}
	s.fullInfo = merged
	notify := s.refreshInfo()
	s.mu.Unlock()

	notify()
	return true
}

// mergeNonNil copies every non-nil pointer field of src onto dst.
func mergeNonNil(dst, src *protocol.FullInfo) {
	dv := reflect.ValueOf(dst).Elem()
	sv := reflect.ValueOf(src).Elem()
	for i := 0; i < sv.NumField(); i++ {
		f := sv.Field(i)
		if f.Kind() != reflect.Ptr || f.IsNil() {
			continue
		}
		dv.Field(i).Set(f)
	}
}

// refreshInfo rebuilds the merged snapshot and, if it changed, returns a
// deferred callback invocation to run once s.mu is released. Callers must
// hold s.mu and must call the returned function after unlocking.
func (s *SystemState) refreshInfo() func() {
	updated := DeviceInfo{
		DeviceID:         s.deviceID,
		OperationalState: s.operational,
		BasicInputInfo:   s.basicInput,
		InputVideo:       s.inputVideo,
		FullInfo:         s.fullInfo,
		BasicOutputInfo:  s.basicOutput,
		OutputMode:       s.outputMode,
	}
	if reflect.DeepEqual(updated, s.info) {
		return func() {}
	}
	s.info = updated

	callback := s.callback
	if callback == nil {
		return func() {}
	}
	return func() { callback(updated) }
}
