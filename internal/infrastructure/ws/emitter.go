package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/namimod25/toko-online/internal/domain"
	"github.com/namimod25/toko-online/internal/infrastructure/logging"
	"github.com/namimod25/toko-online/internal/infrastructure/tracing"
	"github.com/namimod25/toko-online/pkg/catalog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultQueueSize = 1024

// EmitResult counts what one Emit call did.
type EmitResult struct {
	Rooms     int
	Delivered int
	Failed    int
}

// Emitter fans committed catalog events out to the connections in each target
// room. Events queued with Enqueue are dispatched by a single Run loop in the
// order they were queued, which keeps every connection's view in commit order.
type Emitter struct {
	registry *Registry
	queue    chan domain.CatalogEvent
	logger   logging.Logger
	observer Observer
	tracer   trace.Tracer
}

type EmitterOption func(*Emitter)

func WithQueueSize(n int) EmitterOption {
	return func(e *Emitter) {
		if n > 0 {
			e.queue = make(chan domain.CatalogEvent, n)
		}
	}
}

func WithObserver(o Observer) EmitterOption {
	return func(e *Emitter) {
		if o != nil {
			e.observer = o
		}
	}
}

func NewEmitter(registry *Registry, logger logging.Logger, opts ...EmitterOption) *Emitter {
	e := &Emitter{
		registry: registry,
		queue:    make(chan domain.CatalogEvent, DefaultQueueSize),
		logger:   logger,
		observer: nopObserver{},
		tracer:   tracing.GetTracer("github.com/namimod25/toko-online/internal/infrastructure/ws"),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Enqueue hands an event to the dispatch loop without blocking. It reports false
// and drops the event when the queue is full.
func (e *Emitter) Enqueue(evt domain.CatalogEvent) bool {
	select {
	case e.queue <- evt:
		return true
	default:
		e.observer.EventDropped()
		e.logger.Error(logging.Realtime, logging.Emission, "emitter queue full, event dropped", map[logging.ExtraKey]any{
			logging.EventKind: string(evt.Kind()),
			logging.ProductID: evt.EntityID(),
		})
		return false
	}
}

// Run dispatches queued events until ctx is cancelled, then emits whatever is
// still queued and returns.
func (e *Emitter) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-e.queue:
			e.Emit(ctx, evt)
		case <-ctx.Done():
			e.drain()
			return nil
		}
	}
}

func (e *Emitter) drain() {
	for {
		select {
		case evt := <-e.queue:
			e.Emit(context.Background(), evt)
		default:
			return
		}
	}
}

// Emit delivers evt to every member of every room it routes to. A failed send to
// one connection is logged and counted and never stops delivery to the rest.
func (e *Emitter) Emit(ctx context.Context, evt domain.CatalogEvent) EmitResult {
	start := time.Now()

	_, span := e.tracer.Start(ctx, "catalog.emit", trace.WithAttributes(
		attribute.String("catalog.event.kind", string(evt.Kind())),
		attribute.String("catalog.entity.id", evt.EntityID()),
	))
	defer span.End()

	rooms := Resolve(RouteOf(evt))
	if len(rooms) == 0 {
		panic(fmt.Sprintf("ws: %s event for %q resolved to no rooms", evt.Kind(), evt.EntityID()))
	}

	result := EmitResult{Rooms: len(rooms)}
	for _, room := range rooms {
		frame, scope, err := encodeFrame(evt, room)
		if err != nil {
			span.RecordError(err)
			e.logger.Error(logging.Realtime, logging.Emission, "failed to encode event", map[logging.ExtraKey]any{
				logging.EventKind:    string(evt.Kind()),
				logging.Room:         room,
				logging.ErrorMessage: err.Error(),
			})
			continue
		}

		for _, id := range e.registry.MembersOf(room) {
			err := e.registry.Deliver(id, frame)
			if errors.Is(err, ErrConnectionNotFound) {
				// Unregistered after the snapshot.
				e.logger.Debug(logging.Realtime, logging.Delivery, "skipped departed connection", map[logging.ExtraKey]any{
					logging.ConnectionID: id,
					logging.Room:         room,
				})
				continue
			}
			if err != nil {
				result.Failed++
				e.observer.SendFailed(failureReason(err))
				e.logger.Warn(logging.Realtime, logging.Delivery, "failed to deliver event", map[logging.ExtraKey]any{
					logging.ConnectionID: id,
					logging.Room:         room,
					logging.EventKind:    string(evt.Kind()),
					logging.ErrorMessage: err.Error(),
				})
				continue
			}
			result.Delivered++
			e.observer.Delivered(string(scope))
		}
	}

	span.SetAttributes(
		attribute.Int("catalog.recipients", result.Delivered),
		attribute.Int("catalog.failures", result.Failed),
	)
	if result.Failed > 0 {
		span.SetStatus(codes.Error, "some deliveries failed")
	}

	e.observer.EventEmitted(string(evt.Kind()), time.Since(start).Seconds())
	e.logger.Debug(logging.Realtime, logging.Emission, "event emitted", map[logging.ExtraKey]any{
		logging.EventKind:  string(evt.Kind()),
		logging.ProductID:  evt.EntityID(),
		logging.Recipients: result.Delivered,
	})

	return result
}

// encodeFrame builds the wire frame for one room once; every member of the room
// receives the same bytes.
func encodeFrame(evt domain.CatalogEvent, room string) ([]byte, catalog.Scope, error) {
	scope, _, err := catalog.ParseRoom(room)
	if err != nil {
		return nil, "", err
	}

	msg, err := catalog.NewMessage(catalog.ChannelName(room, evt.Kind()), room, evt.Payload(scope))
	if err != nil {
		return nil, "", err
	}

	frame, err := json.Marshal(msg)
	if err != nil {
		return nil, "", err
	}

	return frame, scope, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrSendBufferFull):
		return "buffer_full"
	case errors.Is(err, ErrConnectionClosed):
		return "closed"
	}
	return "other"
}

// Pending reports how many events wait in the queue.
func (e *Emitter) Pending() int {
	return len(e.queue)
}
