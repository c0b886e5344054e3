// Package metrics exposes Prometheus instrumentation for the driver.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommandsSent counts wire frames successfully written.
	CommandsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radiance_commands_sent_total",
		Help: "Total number of commands sent to the device",
	})

	// CommandErrors counts commands that failed to send.
	CommandErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radiance_command_errors_total",
		Help: "Total number of commands that failed to send",
	})

	// MessagesReceived counts decoded inbound messages by opcode.
	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiance_messages_received_total",
		Help: "Total number of decoded inbound messages",
	}, []string{"opcode"})

	// DecodeErrors counts inbound messages that failed to decode.
	DecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radiance_decode_errors_total",
		Help: "Total number of inbound messages that failed to decode",
	})

	// ReconnectAttempts counts reconnection attempts.
	ReconnectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radiance_reconnect_attempts_total",
		Help: "Total number of reconnection attempts",
	})

	// Connected reports whether a transport connection is established.
	Connected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "radiance_connected",
		Help: "Whether the transport connection is established (1 or 0)",
	})

	// DeviceAlive reports whether the device responded to the last probe.
	DeviceAlive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "radiance_device_alive",
		Help: "Whether the device is responding to liveness probes (1 or 0)",
	})

	// AliveCheckFailures counts liveness probes that timed out or failed.
	AliveCheckFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radiance_alive_check_failures_total",
		Help: "Total number of failed liveness probes",
	})
)
