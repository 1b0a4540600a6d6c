package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gastosbot/internal/core"
)

// InboundEventMessage carries one user message from the webhook gateway
// to a worker.
type InboundEventMessage struct {
	ID         string            `json:"id"`
	Event      core.InboundEvent `json:"event"`
	ReceivedAt time.Time         `json:"received_at"`
}

func NewInboundEventMessage(ev core.InboundEvent) *InboundEventMessage {
	return &InboundEventMessage{
		ID:         uuid.NewString(),
		Event:      ev,
		ReceivedAt: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *InboundEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InboundEventMessageFromJSON decodes a message and checks it can be routed.
func InboundEventMessageFromJSON(data []byte) (*InboundEventMessage, error) {
	var msg InboundEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Event.Validate(); err != nil {
		return nil, fmt.Errorf("invalid inbound event: %w", err)
	}
	return &msg, nil
}
