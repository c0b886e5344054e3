package device

import (
	"context"
	"fmt"
	"sort"

	"github.com/commatea/Radiance-Link/pkg/metrics"
	"github.com/commatea/Radiance-Link/pkg/protocol"
)

// labelCount is the number of input labels the device reports: 40 input
// memories (A0-D9) plus 24 CMS/style memories (10-37).
const labelCount = 64

// handleDataReceived routes a decoded response to the matching state
// section.
func (m *Manager) handleDataReceived(ctx context.Context, response protocol.Response) error {
	m.log.Debug("Handling received response", "type", fmt.Sprintf("%T", response))

	switch r := response.(type) {
	case protocol.StatusAlive:
		m.aliveSignal.Set()
		metrics.DeviceAlive.Set(1)
		if m.state.SetAlive(r.IsAlive) {
			m.log.Debug("Operational state updated", "is_alive", r.IsAlive)
		}

	case protocol.PowerState:
		if m.state.SetDeviceStatus(r.Status) {
			m.log.Debug("Operational state updated", "device_status", r.Status)
		}

	case protocol.AutoAspect:
		if m.state.SetAutoAspect(r.Status) {
			m.log.Debug("Operational state updated", "auto_aspect", r.Status)
		}

	case protocol.GameMode:
		if m.state.SetGameMode(r.Status) {
			m.log.Debug("Operational state updated", "game_mode", r.Status)
		}

	case protocol.OutputColorFormat:
		if m.state.SetOutputColorFormat(r.Format) {
			m.log.Debug("Operational state updated", "output_color_format", r.Format)
		}

	case protocol.StatusID:
		if m.state.UpdateDeviceID(r) {
			m.log.Debug("Device id updated")
		}

	case protocol.InputBasicInfo:
		if m.state.UpdateBasicInput(r) {
			m.log.Debug("Basic input info updated")
		}

	case protocol.InputVideo:
		if m.state.UpdateInputVideo(r) {
			m.log.Debug("Input video updated")
		}

	case protocol.OutputBasicInfo:
		if m.state.UpdateBasicOutput(r) {
			m.log.Debug("Basic output info updated")
		}

	case protocol.OutputModeInfo:
		if m.state.UpdateOutputMode(r) {
			m.log.Debug("Output mode updated")
		}

	case protocol.FullInfo:
		return m.handleFullInfo(ctx, r)

	case protocol.LabelQuery:
		m.handleLabelQuery(r)

	default:
		m.log.Warn("No handler found for response type", "type", fmt.Sprintf("%T", response))
	}
	return nil
}

// handleFullInfo merges a full-info report into the cache. A changed report
// that was not caused by our own full refresh triggers a partial state
// refresh while the device is active.
func (m *Manager) handleFullInfo(ctx context.Context, r protocol.FullInfo) error {
	if !m.state.UpdateFullInfo(r) {
		m.log.Debug("Full info unchanged, no update needed")
		return nil
	}

	m.log.Info("Full info updated", "version", r.Version)

	if m.deviceSignal.IsSet() {
		m.log.Debug("Clearing device event flag")
		m.deviceSignal.Clear()
		return nil
	}

	if m.DeviceStatus() == protocol.DeviceActive {
		m.log.Debug("Triggering full system state refresh")
		if executor := m.Executor(); executor != nil {
			if err := executor.GetAll(ctx, true); err != nil {
				m.log.Error("System state refresh failed", "error", err)
			}
		}
	}
	return nil
}

// handleLabelQuery records one input label. Once all labels have arrived
// they are categorized into the source, CMS, and style lists.
func (m *Manager) handleLabelQuery(r protocol.LabelQuery) {
	if r.Index == "" || r.Label == "" {
		m.log.Warn("Invalid label data in response", "index", r.Index, "label", r.Label)
		return
	}

	m.labelsMu.Lock()
	m.labels[r.Index] = r.Label
	count := len(m.labels)
	m.labelsMu.Unlock()

	m.log.Debug("Label updated", "index", r.Index, "label", r.Label)

	if count == labelCount {
		m.log.Debug("All labels received, categorizing")
		m.categorizeLabels()
	}
}

// categorizeLabels sorts the labels (letters before digits) and splits them
// into the source list (A prefix), CMS list (2 prefix), and style list
// (3 prefix).
func (m *Manager) categorizeLabels() {
	m.labelsMu.Lock()
	defer m.labelsMu.Unlock()

	keys := make([]string, 0, len(m.labels))
	for k := range m.labels {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		di, dj := keys[i][0] >= '0' && keys[i][0] <= '9', keys[j][0] >= '0' && keys[j][0] <= '9'
		if di != dj {
			return !di
		}
		return keys[i] < keys[j]
	})

	m.sourceList = m.sourceList[:0]
	m.cmsList = m.cmsList[:0]
	m.styleList = m.styleList[:0]
	for _, k := range keys {
		switch k[0] {
		case 'A':
			m.sourceList = append(m.sourceList, m.labels[k])
		case '2':
			m.cmsList = append(m.cmsList, m.labels[k])
		case '3':
			m.styleList = append(m.styleList, m.labels[k])
		}
	}

	m.log.Info("Labels categorized",
		"sources", len(m.sourceList),
		"cms", len(m.cmsList),
		"styles", len(m.styleList))
}
