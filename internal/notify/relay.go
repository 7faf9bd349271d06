package notify

import (
	"context"
	"encoding/json"

	"github.com/Baaaki/agora/internal/broker"
	"github.com/Baaaki/agora/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BrokerFanout publishes deliveries through a broker so that every API node
// reaches its own sockets. Run Relay on each node to consume them.
type BrokerFanout struct {
	broker broker.Broker
	nodeID string
	local  *Hub
}

func NewBrokerFanout(b broker.Broker, local *Hub) *BrokerFanout {
	return &BrokerFanout{broker: b, nodeID: uuid.NewString(), local: local}
}

func (f *BrokerFanout) DeliverToUser(ctx context.Context, userID uuid.UUID, ev Event) {
	f.DeliverToRoom(ctx, UserRoom(userID), ev, uuid.Nil)
}

func (f *BrokerFanout) DeliverToRoom(ctx context.Context, room string, ev Event, exclude uuid.UUID) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		logger.Log.Error("Failed to encode event", zap.String("event", ev.Name), zap.Error(err))
		return
	}

	// Local sockets are served directly; other nodes get it from the broker.
	f.local.DeliverToRoom(ctx, room, ev, exclude)

	env := broker.Envelope{Origin: f.nodeID, Room: room, Exclude: exclude, Name: ev.Name, Data: data}
	if err := f.broker.Publish(context.WithoutCancel(ctx), env); err != nil {
		logger.Log.Warn("Failed to publish event", zap.String("room", room), zap.Error(err))
	}
}

// Relay delivers envelopes published by other nodes to the local hub until
// ctx is cancelled.
func (f *BrokerFanout) Relay(ctx context.Context) error {
	envelopes, err := f.broker.Subscribe(ctx)
	if err != nil {
		return err
	}

	go func() {
		for env := range envelopes {
			if env.Origin == f.nodeID {
				continue
			}
			f.local.DeliverToRoom(ctx, env.Room, Event{Name: env.Name, Data: env.Data}, env.Exclude)
		}
		logger.Log.Info("Notification relay stopped")
	}()
	return nil
}
