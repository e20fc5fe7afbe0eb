package channel

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	Version = 1

	// EventOrder is pushed by the server for every new delivery job.
	EventOrder = "order"
	// EventAcceptOrder is sent once per connection to announce the driver is
	// available for orders.
	EventAcceptOrder = "acceptOrder"
)

// Envelope is one frame on the channel.
type Envelope struct {
	V       int             `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	TS      time.Time       `json:"ts"`
	Payload json.RawMessage `json:"payload"`
}

// Validate checks the fields every frame must carry.
func (e Envelope) Validate() error {
	if e.V != Version {
		return fmt.Errorf("invalid protocol version: got=%d want=%d", e.V, Version)
	}
	if e.Type == "" {
		return errors.New("missing type")
	}
	if e.ID == "" {
		return errors.New("missing id")
	}
	if e.Payload == nil {
		return errors.New("missing payload")
	}
	return nil
}

// NewEnvelope wraps payload as an event frame with a fresh ULID id.
func NewEnvelope(event string, payload any, now time.Time) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope id: %w", err)
	}
	return Envelope{
		V:       Version,
		Type:    event,
		ID:      id.String(),
		TS:      now.UTC(),
		Payload: raw,
	}, nil
}
