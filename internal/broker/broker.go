package broker

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// Envelope is a room delivery travelling between API nodes.
type Envelope struct {
	Origin  string          `json:"origin"`
	Room    string          `json:"room"`
	Exclude uuid.UUID       `json:"exclude"`
	Name    string          `json:"name"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Broker moves envelopes between nodes.
type Broker interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe returns once the subscription is active. The channel closes
	// when ctx is cancelled or the broker is closed.
	Subscribe(ctx context.Context) (<-chan Envelope, error)
	Close() error
}
