package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/namimod25/toko-online/internal/domain"
	"github.com/namimod25/toko-online/internal/infrastructure/messaging"
)

var ErrQueueFull = errors.New("event queue full")

// Publisher hands a committed catalog event to the real-time feed.
type Publisher interface {
	Publish(ctx context.Context, evt domain.CatalogEvent) error
}

// Enqueuer is the emitter side of a LocalPublisher.
type Enqueuer interface {
	Enqueue(evt domain.CatalogEvent) bool
}

// LocalPublisher feeds the emitter of this process directly.
type LocalPublisher struct {
	emitter Enqueuer
}

func NewLocalPublisher(emitter Enqueuer) *LocalPublisher {
	return &LocalPublisher{emitter: emitter}
}

func (p *LocalPublisher) Publish(_ context.Context, evt domain.CatalogEvent) error {
	if !p.emitter.Enqueue(evt) {
		return ErrQueueFull
	}
	return nil
}

// RelayPublisher sends events over the relay bus. Every instance, this one
// included, picks them up through a RelayConsumer.
type RelayPublisher struct {
	bus      messaging.Bus
	observer RelayObserver
}

func NewRelayPublisher(bus messaging.Bus, observer RelayObserver) *RelayPublisher {
	return &RelayPublisher{bus: bus, observer: observer}
}

func (p *RelayPublisher) Publish(ctx context.Context, evt domain.CatalogEvent) error {
	body, err := domain.MarshalEvent(evt)
	if err != nil {
		p.record("invalid")
		return err
	}

	if err := p.bus.Publish(ctx, body); err != nil {
		p.record("error")
		return fmt.Errorf("publish %s event for %s: %w", evt.Kind(), evt.EntityID(), err)
	}
	p.record("ok")
	return nil
}

func (p *RelayPublisher) record(outcome string) {
	if p.observer != nil {
		p.observer.Relayed("out", outcome)
	}
}
