package services

import (
	"context"

	redisclient "github.com/kubeasy-dev/kubeasy-backend/internal/clients/redis"
	"github.com/kubeasy-dev/kubeasy-backend/internal/logger"
	"github.com/kubeasy-dev/kubeasy-backend/internal/realtime"
)

// Emitter decouples publishers from the delivery strategy: a single-instance
// deployment broadcasts straight into the local hub, a multi-instance one
// publishes to the Redis bus and lets every instance's forwarder rebroadcast.
type Emitter interface {
	Emit(ctx context.Context, msg realtime.Message)
}

type HubEmitter struct {
	Hub *realtime.Hub
}

func (e *HubEmitter) Emit(ctx context.Context, msg realtime.Message) {
	e.Hub.Broadcast(msg)
}

type BusEmitter struct {
	Bus redisclient.Bus
	Log *logger.Logger
}

func (e *BusEmitter) Emit(ctx context.Context, msg realtime.Message) {
	if err := e.Bus.Publish(ctx, msg); err != nil && e.Log != nil {
		// Publishing never fails the request that triggered it.
		e.Log.Warn("realtime publish failed", "channel", msg.Channel, "event", msg.Event, "error", err)
	}
}
