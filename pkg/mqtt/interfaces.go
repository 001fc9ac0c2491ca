package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
)

// Client is the broker connection used by the planner agent
type Client interface {
	Connect(ctx context.Context) error
	Disconnect()

	// Subscribe registers handler for topic; the subscription survives
	// reconnects
	Subscribe(topic string, qos byte, handler MessageHandler) error

	Publish(topic string, qos byte, retained bool, payload []byte) error
	IsConnected() bool
}

// MessageHandler is a callback function for handling incoming MQTT messages
type MessageHandler func(Message)

// Message is one received publication
type Message interface {
	Topic() string
	Payload() []byte

	// Ack acknowledges the message (for QoS > 0)
	Ack()
}

// PublishJSON encodes v and publishes it on topic
func PublishJSON(c Client, topic string, qos byte, retained bool, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", topic, err)
	}
	return c.Publish(topic, qos, retained, data)
}
