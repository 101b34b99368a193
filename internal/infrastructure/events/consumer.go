package events

import (
	"context"

	"github.com/namimod25/toko-online/internal/domain"
	"github.com/namimod25/toko-online/internal/infrastructure/logging"
	"github.com/namimod25/toko-online/internal/infrastructure/messaging"
)

// RelayObserver counts relay traffic.
type RelayObserver interface {
	Relayed(direction, outcome string)
}

// RelayConsumer feeds events taken off the relay bus into the local emitter.
type RelayConsumer struct {
	bus      messaging.Bus
	emitter  Enqueuer
	logger   logging.Logger
	observer RelayObserver
}

func NewRelayConsumer(bus messaging.Bus, emitter Enqueuer, logger logging.Logger, observer RelayObserver) *RelayConsumer {
	return &RelayConsumer{
		bus:      bus,
		emitter:  emitter,
		logger:   logger,
		observer: observer,
	}
}

// Listen blocks until ctx is done or the bus goes away.
func (c *RelayConsumer) Listen(ctx context.Context) error {
	c.logger.Info(logging.Realtime, logging.Relay, "relay consumer started", nil)

	return c.bus.Subscribe(ctx, func(_ context.Context, body []byte) {
		evt, err := domain.UnmarshalEvent(body)
		if err != nil {
			c.record("in", "invalid")
			c.logger.Warn(logging.Realtime, logging.Relay, "failed to decode relayed event", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
			return
		}

		if !c.emitter.Enqueue(evt) {
			c.record("in", "dropped")
			return
		}
		c.record("in", "ok")
	})
}

func (c *RelayConsumer) record(direction, outcome string) {
	if c.observer != nil {
		c.observer.Relayed(direction, outcome)
	}
}
