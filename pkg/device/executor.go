package device

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/commatea/Radiance-Link/pkg/connection"
	"github.com/commatea/Radiance-Link/pkg/logger"
	"github.com/commatea/Radiance-Link/pkg/protocol"
)

// Executor errors.
var (
	ErrInvalidTimeout  = errors.New("timeout must be between 0 and 9")
	ErrEmptyMessage    = errors.New("message must be a non-empty string")
	ErrDeviceNotActive = errors.New("device is not in active mode")
	ErrInvalidFanSpeed = errors.New("fan speed must be between 1 and 10")
	ErrInvalidHotplug  = errors.New("hdmi input must be '0'-'9' or 'A'")
	ErrInvalidInput    = errors.New("input index must be non-negative")
	ErrUnknownRemote   = errors.New("unknown remote command")
)

// CommandSender queues raw commands and remote keystrokes on the connection.
type CommandSender struct {
	handler *connection.Handler
	log     *logger.Logger
}

// SendCommand queues one or more raw commands.
func (s *CommandSender) SendCommand(ctx context.Context, commands ...string) error {
	return s.handler.QueueCommand(ctx, commands...)
}

// SendRemoteCommand resolves a remote-command name to its keystroke and
// queues it.
func (s *CommandSender) SendRemoteCommand(ctx context.Context, value string) error {
	return s.sendRemoteBy(ctx, value, "remote")
}

// SendRemoteCommandByDesc resolves a keystroke by its description instead of
// its remote-command name.
func (s *CommandSender) SendRemoteCommandByDesc(ctx context.Context, value string) error {
	return s.sendRemoteBy(ctx, value, "desc")
}

func (s *CommandSender) sendRemoteBy(ctx context.Context, value, key string) error {
	keystroke, ok := protocol.LookupRemote(value, key)
	if !ok {
		s.log.Warn("Command not found for value", "value", value, "key", key)
		return fmt.Errorf("%w: %s", ErrUnknownRemote, value)
	}
	s.log.Debug("Sending remote command", "keystroke", keystroke, "value", value)
	return s.SendCommand(ctx, keystroke)
}

// PowerControl handles power state transitions.
type PowerControl struct {
	sender *CommandSender
}

// Standby puts the device in standby mode.
func (c *PowerControl) Standby(ctx context.Context) error {
	return c.sender.SendRemoteCommand(ctx, "STBY")
}

// PowerOn turns the device on.
func (c *PowerControl) PowerOn(ctx context.Context) error {
	return c.sender.SendRemoteCommand(ctx, "ON")
}

// NavigationControl handles menu navigation keys.
type NavigationControl struct {
	sender *CommandSender
}

// Down sends the DOWN key.
func (c *NavigationControl) Down(ctx context.Context) error {
	return c.sender.SendRemoteCommand(ctx, "v")
}

// Exit sends the EXIT key.
func (c *NavigationControl) Exit(ctx context.Context) error {
	return c.sender.SendRemoteCommand(ctx, "EXIT")
}

// Left sends the LEFT key.
func (c *NavigationControl) Left(ctx context.Context) error {
	return c.sender.SendRemoteCommand(ctx, "<")
}

// Menu sends the MENU key.
func (c *NavigationControl) Menu(ctx context.Context) error {
	return c.sender.SendRemoteCommand(ctx, "MENU")
}

// OK sends the accept key.
func (c *NavigationControl) OK(ctx context.Context) error {
	return c.sender.SendRemoteCommandByDesc(ctx, "Accept command")
}

// Right sends the RIGHT key.
func (c *NavigationControl) Right(ctx context.Context) error {
	return c.sender.SendRemoteCommand(ctx, ">")
}

// Up sends the UP key.
func (c *NavigationControl) Up(ctx context.Context) error {
	return c.sender.SendRemoteCommand(ctx, "^")
}

// AspectControl handles source aspect ratio commands.
type AspectControl struct {
	sender *CommandSender
}

// SourceAspect4x3 selects the 4:3 source aspect.
func (c *AspectControl) SourceAspect4x3(ctx context.Context) error {
	return c.sender.SendRemoteCommand(ctx, "4:3")
}

// SourceAspect16x9 selects the 16:9 source aspect.
func (c *AspectControl) SourceAspect16x9(ctx context.Context) error {
	return c.sender.SendRemoteCommand(ctx, "16:9")
}

// SourceAspect185 selects the 1.85 source aspect.
func (c *AspectControl) SourceAspect185(ctx context.Context) error {
	return c.sender.SendRemoteCommand(ctx, "1.85")
}

// SourceAspect190 selects the 1.90 source aspect.
func (c *AspectControl) SourceAspect190(ctx context.Context) error {
	return c.sender.SendRemoteCommand(ctx, "1.90")
}

// SourceAspect200 selects the 2.00 source aspect.
func (c *AspectControl) SourceAspect200(ctx context.Context) error {
	return c.sender.SendRemoteCommand(ctx, "2.00")
}

// SourceAspect220 selects the 2.20 source aspect.
func (c *AspectControl) SourceAspect220(ctx context.Context) error {
	return c.sender.SendRemoteCommand(ctx, "2.20")
}

// SourceAspect235 selects the 2.35 source aspect.
func (c *AspectControl) SourceAspect235(ctx context.Context) error {
	return c.sender.SendRemoteCommand(ctx, "2.35")
}

// SourceAspect240 selects the 2.40 source aspect.
func (c *AspectControl) SourceAspect240(ctx context.Context) error {
	return c.sender.SendRemoteCommand(ctx, "2.40")
}

// SourceAspectLbox selects the letterbox source aspect.
func (c *AspectControl) SourceAspectLbox(ctx context.Context) error {
	return c.sender.SendRemoteCommand(ctx, "LBOX")
}

// labelKeyPattern matches valid label indexes: input memories A0-D9 and
// CMS/style memories 10-37.
var labelKeyPattern = regexp.MustCompile(`^[ABCD][0-9]$|^[123][0-7]$`)

// LabelControl handles input label querying and setting.
type LabelControl struct {
	sender *CommandSender
	m      *Manager
}

// GetLabels queries all 64 input labels. The letter rows are queried with
// the digit counting down, matching the device's reply ordering quirk.
func (c *LabelControl) GetLabels(ctx context.Context) error {
	c.m.labelsMu.Lock()
	c.m.labels = make(map[string]string)
	c.m.labelsMu.Unlock()

	commands := make([]string, 0, labelCount)
	for x := 'A'; x <= 'D'; x++ {
		for y := 9; y >= 0; y-- {
			commands = append(commands, fmt.Sprintf("%s%s%c%d",
				protocol.CmdDevicePrefix, protocol.LabelQueryOp, x, y))
		}
	}
	for x := 1; x <= 3; x++ {
		for y := 0; y <= 7; y++ {
			commands = append(commands, fmt.Sprintf("%s%s%d%d",
				protocol.CmdDevicePrefix, protocol.LabelQueryOp, x, y))
		}
	}

	c.sender.log.Info("Sending label queries", "count", len(commands))
	return c.sender.SendCommand(ctx, commands...)
}

// SetLabels writes input labels from the given index-to-name map. A nil map
// applies the factory "HDMI <index>" naming. Labels are truncated to the
// per-row limit and invalid indexes are skipped.
func (c *LabelControl) SetLabels(ctx context.Context, portConfig map[string]string) error {
	if portConfig == nil {
		portConfig = make(map[string]string, 40)
		for _, x := range "ABCD" {
			for y := 0; y <= 9; y++ {
				key := fmt.Sprintf("%c%d", x, y)
				portConfig[key] = "HDMI " + key
			}
		}
	}

	commands := make([]string, 0, len(portConfig))
	for key, label := range portConfig {
		if !labelKeyPattern.MatchString(key) {
			continue
		}
		maxLen := 8
		switch key[0] {
		case 'A', 'B', 'C', 'D':
			maxLen = 10
		case '1':
			maxLen = 7
		}
		if len(label) > maxLen {
			label = label[:maxLen]
		}
		commands = append(commands, protocol.SetLabelOp+key+label)
	}

	if len(commands) == 0 {
		c.sender.log.Warn("No valid label commands generated")
		return nil
	}

	c.sender.log.Info("Sending label commands", "count", len(commands))
	return c.sender.SendCommand(ctx, commands...)
}

// MessageControl handles on-screen display messages.
type MessageControl struct {
	sender *CommandSender
	m      *Manager
}

// DisplayMessage shows a message on screen. A timeout of 9 keeps the
// message displayed until it is cleared. Characters outside the printable
// ASCII range 0x20-0x7A are stripped.
func (c *MessageControl) DisplayMessage(ctx context.Context, timeout int, message string) error {
	if timeout < 0 || timeout > 9 {
		return fmt.Errorf("%w: %d", ErrInvalidTimeout, timeout)
	}
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}

	var sanitized strings.Builder
	for _, ch := range message {
		if ch >= 0x20 && ch <= 0x7A {
			sanitized.WriteRune(ch)
		}
	}
	if sanitized.Len() == 0 {
		c.sender.log.Warn("Filtered message is empty after character sanitization")
		return nil
	}

	if c.m.DeviceStatus() != protocol.DeviceActive {
		c.sender.log.Warn("Cannot display message, device is not in active mode")
		return ErrDeviceNotActive
	}

	c.sender.log.Info("Sending show message command",
		"message", sanitized.String(), "timeout", timeout)
	return c.sender.SendCommand(ctx, fmt.Sprintf("%s%d%s",
		protocol.DisplayMessageOp, timeout, sanitized.String()))
}

// ClearMessage removes the on-screen message.
func (c *MessageControl) ClearMessage(ctx context.Context) error {
	if c.m.DeviceStatus() != protocol.DeviceActive {
		c.sender.log.Warn("Cannot clear message, device is not in active mode")
		return ErrDeviceNotActive
	}
	return c.sender.SendCommand(ctx, protocol.DisplayClearOp)
}

// RemoteControl handles the remaining remote keys and direct commands.
type RemoteControl struct {
	sender *CommandSender
	m      *Manager
}

// Alt sends the ALT key.
func (c *RemoteControl) Alt(ctx context.Context) error {
	return c.sender.SendRemoteCommand(ctx, "ALT")
}

// AutoAspectDisable disables automatic aspect detection.
func (c *RemoteControl) AutoAspectDisable(ctx context.Context) error {
	return c.sender.SendRemoteCommand(ctx, "AAD")
}

// AutoAspectEnable enables automatic aspect detection.
func (c *RemoteControl) AutoAspectEnable(ctx context.Context) error {
	return c.sender.SendRemoteCommand(ctx, "AAE")
}

// Clear sends the CLEAR key. The device must be active.
func (c *RemoteControl) Clear(ctx context.Context) error {
	if c.m.DeviceStatus() != protocol.DeviceActive {
		c.sender.log.Warn("Cannot send clear command, device is not in active mode")
		return ErrDeviceNotActive
	}
	return c.sender.SendRemoteCommand(ctx, "CLR")
}

// DisplayInputAspect shows the current input aspect on screen.
func (c *RemoteControl) DisplayInputAspect(ctx context.Context) error {
	return c.sender.SendCommand(ctx, protocol.DisplayInputAspectOp)
}

// FanSpeed sets the fan speed. Speeds 1-10 are translated to the device's
// 0-9 range. The device must be active.
func (c *RemoteControl) FanSpeed(ctx context.Context, speed int) error {
	if c.m.DeviceStatus() != protocol.DeviceActive {
		c.sender.log.Warn("Cannot send fan speed command, device is not in active mode")
		return ErrDeviceNotActive
	}
	if speed < 1 || speed > 10 {
		return fmt.Errorf("%w: %d", ErrInvalidFanSpeed, speed)
	}
	return c.sender.SendCommand(ctx, fmt.Sprintf("%s%d", protocol.FanSpeedOp, speed-1))
}

// Hotplug toggles an HDMI input's hotplug signal: '0'-'9' for HDMI 1-10,
// 'A' for all inputs. The device must be active.
func (c *RemoteControl) Hotplug(ctx context.Context, input string) error {
	if c.m.DeviceStatus() != protocol.DeviceActive {
		c.sender.log.Warn("Cannot send hotplug command, device is not in active mode")
		return ErrDeviceNotActive
	}
	if len(input) != 1 || !(input == "A" || (input[0] >= '0' && input[0] <= '9')) {
		return fmt.Errorf("%w: %q", ErrInvalidHotplug, input)
	}
	return c.sender.SendCommand(ctx, protocol.HotplugOp+input)
}

// Help shows the on-screen help for the highlighted menu item.
func (c *RemoteControl) Help(ctx context.Context) error {
	return c.sender.SendRemoteCommand(ctx, "HELP")
}

// Input selects an input by index.
func (c *RemoteControl) Input(ctx context.Context, index int) error {
	if index < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidInput, index)
	}
	return c.sender.SendCommand(ctx, fmt.Sprintf("i%d", index))
}

// MemA selects input memory A.
func (c *RemoteControl) MemA(ctx context.Context) error {
	return c.sender.SendRemoteCommand(ctx, "MEMA")
}

// MemB selects input memory B.
func (c *RemoteControl) MemB(ctx context.Context) error {
	return c.sender.SendRemoteCommand(ctx, "MEMB")
}

// MemC selects input memory C.
func (c *RemoteControl) MemC(ctx context.Context) error {
	return c.sender.SendRemoteCommand(ctx, "MEMC")
}

// MemD selects input memory D.
func (c *RemoteControl) MemD(ctx context.Context) error {
	return c.sender.SendRemoteCommand(ctx, "MEMD")
}

// NLS toggles non-linear stretch.
func (c *RemoteControl) NLS(ctx context.Context) error {
	return c.sender.SendRemoteCommand(ctx, "NLS")
}

// CommandExecutor groups the device's command surface into explicit
// per-concern controls.
type CommandExecutor struct {
	sender *CommandSender

	Power      *PowerControl
	Navigation *NavigationControl
	Aspect     *AspectControl
	Label      *LabelControl
	Message    *MessageControl
	Remote     *RemoteControl

	m *Manager
}

// NewCommandExecutor creates an executor bound to an open connection.
func NewCommandExecutor(handler *connection.Handler, m *Manager) *CommandExecutor {
	sender := &CommandSender{handler: handler, log: m.log}
	return &CommandExecutor{
		sender:     sender,
		Power:      &PowerControl{sender: sender},
		Navigation: &NavigationControl{sender: sender},
		Aspect:     &AspectControl{sender: sender},
		Label:      &LabelControl{sender: sender, m: m},
		Message:    &MessageControl{sender: sender, m: m},
		Remote:     &RemoteControl{sender: sender, m: m},
		m:          m,
	}
}

// SendCommand queues one or more raw commands.
func (e *CommandExecutor) SendCommand(ctx context.Context, commands ...string) error {
	return e.sender.SendCommand(ctx, commands...)
}

// SendRemoteCommand resolves a remote-command name and queues its keystroke.
func (e *CommandExecutor) SendRemoteCommand(ctx context.Context, value string) error {
	return e.sender.SendRemoteCommand(ctx, value)
}

// GetAll queries the full system state. With excludeStatus the identity,
// power, and full-info queries are skipped and the full-refresh flag is
// cleared instead of set, so the resulting reports do not re-trigger a
// refresh.
func (e *CommandExecutor) GetAll(ctx context.Context, excludeStatus bool) error {
	opcodes := []string{
		protocol.StatusIDOp,
		protocol.StatusPowerOp,
		protocol.InputBasicInfoOp,
		protocol.InputVideoOp,
		protocol.FullInfoV4Op,
		protocol.OutputBasicInfoOp,
		protocol.OutputModeOp,
		protocol.OutputColorFormatOp,
		protocol.AutoAspectQueryOp,
		protocol.GameModeQueryOp,
	}

	if excludeStatus {
		filtered := opcodes[:0]
		for _, op := range opcodes {
			if op == protocol.StatusIDOp || op == protocol.StatusPowerOp || op == protocol.FullInfoV4Op {
				continue
			}
			filtered = append(filtered, op)
		}
		opcodes = filtered
	}

	commands := make([]string, len(opcodes))
	for i, op := range opcodes {
		commands[i] = protocol.CmdDevicePrefix + op
	}

	e.sender.log.Info("Sending commands", "commands", commands)
	if err := e.sender.SendCommand(ctx, commands...); err != nil {
		return err
	}

	if excludeStatus {
		e.sender.log.Debug("Device event cleared after excluding status commands")
		e.m.deviceSignal.Clear()
	} else {
		e.sender.log.Debug("Device event set after sending all commands")
		e.m.deviceSignal.Set()
	}
	return nil
}
