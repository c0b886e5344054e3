// Package mqtt publishes device-state snapshots to an MQTT broker whenever
// the cached state changes.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/commatea/Radiance-Link/pkg/device"
	"github.com/commatea/Radiance-Link/pkg/logger"
)

const (
	defaultTopic          = "radiance/state"
	connectTimeout        = 10 * time.Second
	publishTimeout        = 5 * time.Second
	disconnectQuiesceMs   = 250
	defaultKeepAlive      = 30 * time.Second
	defaultPingTimeout    = 10 * time.Second
	defaultConnectRetryIv = 10 * time.Second
)

// Config configures the publisher.
type Config struct {
	Broker   string
	ClientID string
	Topic    string
	Username string
	Password string
}

// Publisher forwards DeviceInfo snapshots to an MQTT topic.
type Publisher struct {
	client pahomqtt.Client
	topic  string
	log    *logger.Logger
}

// NewPublisher connects to the broker and returns a ready publisher.
func NewPublisher(cfg Config, log *logger.Logger) (*Publisher, error) {
	if log == nil {
		log = logger.Global()
	}
	log = log.Named("mqtt")

	topic := cfg.Topic
	if topic == "" {
		topic = defaultTopic
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetKeepAlive(defaultKeepAlive).
		SetPingTimeout(defaultPingTimeout).
		SetAutoReconnect(true).
		SetConnectRetryInterval(defaultConnectRetryIv)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetOnConnectHandler(func(pahomqtt.Client) {
		log.Info("Connected to MQTT broker", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		log.Warn("MQTT connection lost", "error", err)
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to mqtt broker %s: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", cfg.Broker, err)
	}

	return &Publisher{client: client, topic: topic, log: log}, nil
}

// Publish sends one state snapshot as retained JSON. It is shaped to be
// registered directly as a device info change callback.
func (p *Publisher) Publish(info device.DeviceInfo) {
	payload, err := json.Marshal(info)
	if err != nil {
		p.log.Error("Failed to marshal device info", "error", err)
		return
	}

	token := p.client.Publish(p.topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.log.Warn("MQTT publish timed out", "topic", p.topic)
		return
	}
	if err := token.Error(); err != nil {
		p.log.Error("MQTT publish failed", "topic", p.topic, "error", err)
		return
	}
	p.log.Debug("Published device state", "topic", p.topic, "bytes", len(payload))
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(disconnectQuiesceMs)
}
