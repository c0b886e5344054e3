package transport

import (
	"context"
	"errors"
	"testing"
)

type stubTransport struct{ Transport }

type stubFactory struct {
	typeName    string
	validateErr error
}

func (f *stubFactory) Type() string { return f.typeName }

func (f *stubFactory) Create(config Config) (Transport, error) {
	return &stubTransport{}, nil
}

func (f *stubFactory) Validate(config Config) error { return f.validateErr }

func TestRegistryRegisterAndCreate(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(&stubFactory{typeName: "stub"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&stubFactory{typeName: "stub"}); !errors.Is(err, ErrTypeRegistered) {
		t.Errorf("duplicate Register error = %v, want ErrTypeRegistered", err)
	}

	tr, err := r.Create(Config{Type: "stub"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tr == nil {
		t.Fatal("Create returned nil transport")
	}
}

func TestRegistryUnknownType(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Get("missing"); !errors.Is(err, ErrUnknownType) {
		t.Errorf("Get error = %v, want ErrUnknownType", err)
	}
	if _, err := r.Create(Config{Type: "missing"}); !errors.Is(err, ErrUnknownType) {
		t.Errorf("Create error = %v, want ErrUnknownType", err)
	}
}

func TestRegistryCreateValidates(t *testing.T) {
	r := NewRegistry()

	wantErr := errors.New("bad address")
	if err := r.Register(&stubFactory{typeName: "strict", validateErr: wantErr}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := r.Create(Config{Type: "strict"}); !errors.Is(err, wantErr) {
		t.Errorf("Create error = %v, want validation error", err)
	}
}

func TestConnectionStateString(t *testing.T) {
	tests := []struct {
		state ConnectionState
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateError, "error"},
		{ConnectionState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestEventHandlerFunc(t *testing.T) {
	var got Event
	h := EventHandlerFunc(func(e Event) { got = e })

	h.OnEvent(Event{Type: EventDisconnected, Error: context.Canceled})

	if got.Type != EventDisconnected || !errors.Is(got.Error, context.Canceled) {
		t.Errorf("handler received %+v", got)
	}
}
