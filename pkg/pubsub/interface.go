package pubsub

import (
	"context"
	"encoding/json"
	"time"
)

// Message is an envelope carried on the bus.
type Message struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(msgType, sessionID string, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      msgType,
		SessionID: sessionID,
		Payload:   data,
		Timestamp: time.Now(),
	}, nil
}

// UnmarshalPayload decodes the payload into v.
func (m *Message) UnmarshalPayload(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// Publisher publishes messages to the bus.
type Publisher interface {
	Publish(ctx context.Context, channel string, msg *Message) error
}

// Subscriber receives messages from the bus. Returned channels are closed
// when the subscription ends.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan *Message, error)
	SubscribePattern(ctx context.Context, pattern string) (<-chan *Message, error)
	Unsubscribe(ctx context.Context, channel string) error
}

// PubSub combines Publisher and Subscriber.
type PubSub interface {
	Publisher
	Subscriber
	Close() error
}
