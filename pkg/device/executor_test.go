package device

import (
	"context"
	"errors"
	"testing"

	"github.com/commatea/Radiance-Link/pkg/protocol"
)

func TestGetAllCommandOrder(t *testing.T) {
	m, ft := newTestManager(t)
	ctx := context.Background()

	if err := m.Executor().GetAll(ctx, false); err != nil {
		t.Fatalf("GetAll: %v", err)
	}

	want := []string{
		"#ZQS01{", "#ZQS02{", "#ZQI00{", "#ZQI01{", "#ZQI24{",
		"#ZQO00{", "#ZQO01{", "#ZQO18{", "#ZQI54{", "#ZQI53{",
	}
	waitFor(t, func() bool { return len(ft.sentFrames()) == len(want) })

	got := ft.sentFrames()
	for i, frame := range want {
		if got[i] != frame {
			t.Errorf("frame %d = %q, want %q", i, got[i], frame)
		}
	}

	if !m.deviceSignal.IsSet() {
		t.Error("full refresh should set the device event flag")
	}
}

func TestGetAllExcludeStatus(t *testing.T) {
	m, ft := newTestManager(t)
	ctx := context.Background()

	m.deviceSignal.Set()
	if err := m.Executor().GetAll(ctx, true); err != nil {
		t.Fatalf("GetAll: %v", err)
	}

	waitFor(t, func() bool { return len(ft.sentFrames()) == 7 })

	for _, frame := range ft.sentFrames() {
		switch frame {
		case "#ZQS01{", "#ZQS02{", "#ZQI24{":
			t.Errorf("status query %q sent despite exclusion", frame)
		}
	}

	if m.deviceSignal.IsSet() {
		t.Error("partial refresh should clear the device event flag")
	}
}

func TestGetLabelsQueryOrder(t *testing.T) {
	m, ft := newTestManager(t)
	ctx := context.Background()

	if err := m.Executor().Label.GetLabels(ctx); err != nil {
		t.Fatalf("GetLabels: %v", err)
	}

	waitFor(t, func() bool { return len(ft.sentFrames()) == labelCount })

	frames := ft.sentFrames()
	// Letter rows count the digit down, memory rows count up.
	if frames[0] != "#ZQS1A9{" {
		t.Errorf("first frame = %q, want #ZQS1A9{", frames[0])
	}
	if frames[9] != "#ZQS1A0{" {
		t.Errorf("frame 9 = %q, want #ZQS1A0{", frames[9])
	}
	if frames[40] != "#ZQS110{" {
		t.Errorf("frame 40 = %q, want #ZQS110{", frames[40])
	}
	if frames[labelCount-1] != "#ZQS137{" {
		t.Errorf("last frame = %q, want #ZQS137{", frames[labelCount-1])
	}
}

func TestSetLabelsTruncatesAndFilters(t *testing.T) {
	m, ft := newTestManager(t)
	ctx := context.Background()

	err := m.Executor().Label.SetLabels(ctx, map[string]string{
		"A0": "ABCDEFGHIJKLM", // input memory, truncated to 10
		"10": "ABCDEFGHIJ",    // CMS row 1, truncated to 7
		"20": "ABCDEFGHIJ",    // CMS row 2, truncated to 8
		"Z9": "Invalid",
		"48": "Invalid",
	})
	if err != nil {
		t.Fatalf("SetLabels: %v", err)
	}

	waitFor(t, func() bool { return len(ft.sentFrames()) == 3 })

	want := map[string]bool{
		"#ZY524A0ABCDEFGHIJ{": false,
		"#ZY52410ABCDEFG{":    false,
		"#ZY52420ABCDEFGH{":   false,
	}
	for _, frame := range ft.sentFrames() {
		if _, ok := want[frame]; !ok {
			t.Errorf("unexpected frame %q", frame)
			continue
		}
		want[frame] = true
	}
	for frame, seen := range want {
		if !seen {
			t.Errorf("missing frame %q", frame)
		}
	}
}

func TestSetLabelsDefaultsToFactoryNames(t *testing.T) {
	m, ft := newTestManager(t)

	if err := m.Executor().Label.SetLabels(context.Background(), nil); err != nil {
		t.Fatalf("SetLabels: %v", err)
	}

	// 40 input memories get the factory HDMI naming.
	waitFor(t, func() bool { return len(ft.sentFrames()) == 40 })
}

func TestDisplayMessageValidation(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	msg := m.Executor().Message

	if err := msg.DisplayMessage(ctx, 10, "hello"); !errors.Is(err, ErrInvalidTimeout) {
		t.Errorf("timeout 10 error = %v, want ErrInvalidTimeout", err)
	}
	if err := msg.DisplayMessage(ctx, 5, "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("blank message error = %v, want ErrEmptyMessage", err)
	}
	if err := msg.DisplayMessage(ctx, 5, "hello"); !errors.Is(err, ErrDeviceNotActive) {
		t.Errorf("standby display error = %v, want ErrDeviceNotActive", err)
	}
}

func TestDisplayMessageSanitizesAndFrames(t *testing.T) {
	m, ft := newTestManager(t)
	ctx := context.Background()

	m.state.SetDeviceStatus(protocol.DeviceActive)

	if err := m.Executor().Message.DisplayMessage(ctx, 5, "Hi ~there\x19"); err != nil {
		t.Fatalf("DisplayMessage: %v", err)
	}

	waitFor(t, func() bool { return len(ft.sentFrames()) == 1 })
	if frame := ft.sentFrames()[0]; frame != "#ZT5Hi there{" {
		t.Errorf("frame = %q, want #ZT5Hi there{", frame)
	}
}

func TestClearMessageRequiresActive(t *testing.T) {
	m, _ := newTestManager(t)

	if err := m.Executor().Message.ClearMessage(context.Background()); !errors.Is(err, ErrDeviceNotActive) {
		t.Errorf("ClearMessage error = %v, want ErrDeviceNotActive", err)
	}
}

func TestFanSpeedTranslatesRange(t *testing.T) {
	m, ft := newTestManager(t)
	ctx := context.Background()

	remote := m.Executor().Remote

	if err := remote.FanSpeed(ctx, 5); !errors.Is(err, ErrDeviceNotActive) {
		t.Errorf("standby fan speed error = %v, want ErrDeviceNotActive", err)
	}

	m.state.SetDeviceStatus(protocol.DeviceActive)

	if err := remote.FanSpeed(ctx, 0); !errors.Is(err, ErrInvalidFanSpeed) {
		t.Errorf("fan speed 0 error = %v, want ErrInvalidFanSpeed", err)
	}
	if err := remote.FanSpeed(ctx, 10); err != nil {
		t.Fatalf("FanSpeed(10): %v", err)
	}

	waitFor(t, func() bool { return len(ft.sentFrames()) == 1 })
	if frame := ft.sentFrames()[0]; frame != "#ZY5229{" {
		t.Errorf("frame = %q, want #ZY5229{", frame)
	}
}

func TestHotplugValidatesInput(t *testing.T) {
	m, ft := newTestManager(t)
	ctx := context.Background()

	m.state.SetDeviceStatus(protocol.DeviceActive)
	remote := m.Executor().Remote

	if err := remote.Hotplug(ctx, "x"); !errors.Is(err, ErrInvalidHotplug) {
		t.Errorf("hotplug x error = %v, want ErrInvalidHotplug", err)
	}
	if err := remote.Hotplug(ctx, "A"); err != nil {
		t.Fatalf("Hotplug(A): %v", err)
	}

	waitFor(t, func() bool { return len(ft.sentFrames()) == 1 })
	if frame := ft.sentFrames()[0]; frame != "#ZY520A{" {
		t.Errorf("frame = %q, want #ZY520A{", frame)
	}
}

func TestSendRemoteCommandUnknown(t *testing.T) {
	m, _ := newTestManager(t)

	err := m.Executor().SendRemoteCommand(context.Background(), "NO_SUCH_KEY")
	if !errors.Is(err, ErrUnknownRemote) {
		t.Errorf("error = %v, want ErrUnknownRemote", err)
	}
}

func TestRemoteMethodsResolveToKeystrokes(t *testing.T) {
	m, ft := newTestManager(t)
	ctx := context.Background()

	e := m.Executor()
	calls := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"power on", e.Power.PowerOn},
		{"standby", e.Power.Standby},
		{"down", e.Navigation.Down},
		{"exit", e.Navigation.Exit},
		{"left", e.Navigation.Left},
		{"menu", e.Navigation.Menu},
		{"ok", e.Navigation.OK},
		{"right", e.Navigation.Right},
		{"up", e.Navigation.Up},
		{"alt", e.Remote.Alt},
		{"auto aspect disable", e.Remote.AutoAspectDisable},
		{"auto aspect enable", e.Remote.AutoAspectEnable},
		{"help", e.Remote.Help},
		{"mem a", e.Remote.MemA},
		{"mem b", e.Remote.MemB},
		{"mem c", e.Remote.MemC},
		{"mem d", e.Remote.MemD},
		{"nls", e.Remote.NLS},
	}

	for _, call := range calls {
		if err := call.fn(ctx); err != nil {
			t.Errorf("%s: %v", call.name, err)
		}
	}

	waitFor(t, func() bool { return len(ft.sentFrames()) == len(calls) })
}

func TestPowerAndNavigationKeystrokes(t *testing.T) {
	m, ft := newTestManager(t)
	ctx := context.Background()

	e := m.Executor()
	if err := e.Power.Standby(ctx); err != nil {
		t.Fatalf("Standby: %v", err)
	}
	if err := e.Navigation.Menu(ctx); err != nil {
		t.Fatalf("Menu: %v", err)
	}

	waitFor(t, func() bool { return len(ft.sentFrames()) == 2 })

	frames := ft.sentFrames()
	for i, frame := range frames {
		if len(frame) < 3 || frame[0] != '#' || frame[len(frame)-1] != '{' {
			t.Errorf("frame %d = %q, want #<keystroke>{ framing", i, frame)
		}
	}
}
