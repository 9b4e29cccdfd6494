// AngelaMos | 2026
// mqtt.go

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/carterperez-dev/roadwatch/internal/config"
)

const (
	connectTimeout    = 10 * time.Second
	disconnectQuiesce = 250
)

// MQTTPublisher emits status changes on
// <prefix>/signalements/<id>/status for mobile clients and dashboards.
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
	qos    byte
	logger *slog.Logger
}

func NewMQTTPublisher(cfg config.MQTTConfig, logger *slog.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	client := mqtt.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect mqtt broker %s: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect mqtt broker %s: %w", cfg.Broker, err)
	}

	return &MQTTPublisher{
		client: client,
		prefix: cfg.TopicPrefix,
		qos:    byte(cfg.QoS), //nolint:gosec // validated to 0..2 in config
		logger: logger,
	}, nil
}

func (p *MQTTPublisher) PublishStatusChange(
	ctx context.Context,
	change StatusChange,
) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal status change: %w", err)
	}

	topic := StatusTopic(p.prefix, change.SignalementID)
	token := p.client.Publish(topic, p.qos, false, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", topic, ctx.Err())
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	return nil
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(disconnectQuiesce)
}

func StatusTopic(prefix, id string) string {
	return fmt.Sprintf("%s/signalements/%s/status", prefix, id)
}
