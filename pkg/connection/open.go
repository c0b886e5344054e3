package connection

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/commatea/Radiance-Link/pkg/dispatcher"
	"github.com/commatea/Radiance-Link/pkg/logger"
	"github.com/commatea/Radiance-Link/pkg/transport"
	serialtransport "github.com/commatea/Radiance-Link/pkg/transport/serial"
	tcptransport "github.com/commatea/Radiance-Link/pkg/transport/tcp"
)

// OpenSerial opens a serial connection to the device and returns a handler
// with the stream framer already running.
func OpenSerial(ctx context.Context, port string, baudrate int, disp *dispatcher.Dispatcher, log *logger.Logger) (*Handler, error) {
	config := transport.Config{
		Type:    "serial",
		Address: port,
		Options: map[string]interface{}{"baudrate": baudrate},
	}

	factory := &serialtransport.Factory{}
	if err := factory.Validate(config); err != nil {
		return nil, fmt.Errorf("serial config: %w", err)
	}
	tr, err := factory.Create(config)
	if err != nil {
		return nil, err
	}

	h := NewHandler(tr, disp, log)
	if err := h.Open(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

// OpenIP opens a TCP connection to the device and returns a handler with the
// stream framer already running.
func OpenIP(ctx context.Context, host string, port int, disp *dispatcher.Dispatcher, log *logger.Logger) (*Handler, error) {
	config := transport.Config{
		Type:    "tcp",
		Address: net.JoinHostPort(host, strconv.Itoa(port)),
	}

	factory := &tcptransport.Factory{}
	if err := factory.Validate(config); err != nil {
		return nil, fmt.Errorf("tcp config: %w", err)
	}
	tr, err := factory.Create(config)
	if err != nil {
		return nil, err
	}

	h := NewHandler(tr, disp, log)
	if err := h.Open(ctx); err != nil {
		return nil, err
	}
	return h, nil
}
