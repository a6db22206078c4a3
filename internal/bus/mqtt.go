package bus

import (
	"github.com/nerrad567/gray-logic-sim/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sim/internal/infrastructure/mqtt"
)

// MQTTConnector opens one broker connection per simulated node.
type MQTTConnector struct {
	cfg    config.MQTTConfig
	logger Logger
}

// NewMQTTConnector returns a connector dialling the broker in cfg.
func NewMQTTConnector(cfg config.MQTTConfig, logger Logger) *MQTTConnector {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTTConnector{cfg: cfg, logger: logger}
}

// Connect dials the broker as clientID.
func (c *MQTTConnector) Connect(clientID string) (Session, error) {
	client, err := mqtt.Connect(c.cfg, clientID)
	if err != nil {
		return nil, err
	}
	client.SetLogger(c.logger)
	return &mqttSession{client: client}, nil
}

type mqttSession struct {
	client *mqtt.Client
}

func (s *mqttSession) Publish(t string, payload []byte) error {
	return s.client.Publish(t, payload)
}

func (s *mqttSession) Subscribe(filter string, h Handler) error {
	return s.client.Subscribe(filter, mqtt.MessageHandler(h))
}

func (s *mqttSession) Unsubscribe(filter string) error {
	return s.client.Unsubscribe(filter)
}

func (s *mqttSession) Close() error {
	return s.client.Close()
}
