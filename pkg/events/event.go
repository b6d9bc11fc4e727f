package events

import (
	"encoding/json"
	"time"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "DOCUMENT_INGESTED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// New builds an event whose payload is the JSON object form of data.
func New(eventType string, data interface{}, occurredAt time.Time) (BaseEvent, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return BaseEvent{}, err
	}
	payload := map[string]interface{}{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return BaseEvent{}, err
	}
	return BaseEvent{Type: eventType, Data: payload, OccurredAt: occurredAt}, nil
}

// DecodePayload fills out from the event payload.
func DecodePayload(e Event, out interface{}) error {
	raw, err := json.Marshal(e.Payload())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

type envelope struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Marshal encodes an event for transport on the in-process bus.
func Marshal(e Event) ([]byte, error) {
	return json.Marshal(envelope{
		Type:       e.EventType(),
		Data:       e.Payload(),
		OccurredAt: e.Timestamp(),
	})
}

func Unmarshal(data []byte) (BaseEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return BaseEvent{}, err
	}
	return BaseEvent{Type: env.Type, Data: env.Data, OccurredAt: env.OccurredAt}, nil
}
