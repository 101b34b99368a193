package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/namimod25/toko-online/internal/domain"
	"github.com/namimod25/toko-online/internal/infrastructure/logging"
	"github.com/namimod25/toko-online/internal/infrastructure/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type relayCounts struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *relayCounts) Relayed(direction, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	c.counts[direction+"/"+outcome]++
}

func (c *relayCounts) get(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []domain.CatalogEvent
	full   bool
}

func (r *recordingEmitter) Enqueue(evt domain.CatalogEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return false
	}
	r.events = append(r.events, evt)
	return true
}

func (r *recordingEmitter) snapshot() []domain.CatalogEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.CatalogEvent(nil), r.events...)
}

func TestLocalPublisher(t *testing.T) {
	em := &recordingEmitter{}
	pub := NewLocalPublisher(em)

	require.NoError(t, pub.Publish(context.Background(), domain.NewProductDeleted("7")))
	assert.Len(t, em.snapshot(), 1)

	em.full = true
	assert.ErrorIs(t, pub.Publish(context.Background(), domain.NewProductDeleted("8")), ErrQueueFull)
}

func TestRelayRoundTrip(t *testing.T) {
	bus := messaging.NewMemory(16)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	counts := &relayCounts{}

	// Two instances share the bus; both must see the event.
	instances := []*recordingEmitter{{}, {}}
	for _, em := range instances {
		consumer := NewRelayConsumer(bus, em, logging.NewNopLogger(), counts)
		go func() { _ = consumer.Listen(ctx) }()
	}
	require.Eventually(t, func() bool { return bus.Subscribers() == 2 }, 2*time.Second, 5*time.Millisecond)

	sent := domain.StockChanged{ID: "42", Previous: 10, Stock: 7, At: time.Now().UTC().Truncate(time.Millisecond)}
	require.NoError(t, NewRelayPublisher(bus, counts).Publish(ctx, sent))
	require.NoError(t, bus.Publish(ctx, []byte("not json")))

	for _, em := range instances {
		require.Eventually(t, func() bool { return len(em.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)

		got, ok := em.snapshot()[0].(domain.StockChanged)
		require.True(t, ok)
		assert.Equal(t, sent.ID, got.ID)
		assert.Equal(t, sent.Previous, got.Previous)
		assert.Equal(t, sent.Stock, got.Stock)
		assert.True(t, sent.At.Equal(got.At))
	}

	assert.Equal(t, 1, counts.get("out/ok"))
	require.Eventually(t, func() bool { return counts.get("in/invalid") == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, counts.get("in/ok"))
}

func TestRelayConsumerCountsDrops(t *testing.T) {
	bus := messaging.NewMemory(16)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	counts := &relayCounts{}
	consumer := NewRelayConsumer(bus, &recordingEmitter{full: true}, logging.NewNopLogger(), counts)
	go func() { _ = consumer.Listen(ctx) }()
	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, NewRelayPublisher(bus, nil).Publish(ctx, domain.NewProductDeleted("9")))
	require.Eventually(t, func() bool { return counts.get("in/dropped") == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestRelayConsumerRejectsUnroutableEvents(t *testing.T) {
	bus := messaging.NewMemory(16)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	counts := &relayCounts{}
	em := &recordingEmitter{}
	consumer := NewRelayConsumer(bus, em, logging.NewNopLogger(), counts)
	go func() { _ = consumer.Listen(ctx) }()
	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)

	for _, raw := range []string{
		`{"kind":"updated","entityId":"42","data":{"name":"no id"}}`,
		`{"kind":"deleted","entityId":"a b"}`,
		`{"kind":"deleted","entityId":"x:y"}`,
	} {
		require.NoError(t, bus.Publish(ctx, []byte(raw)))
	}
	require.NoError(t, NewRelayPublisher(bus, nil).Publish(ctx, domain.NewProductDeleted("42")))

	require.Eventually(t, func() bool { return counts.get("in/ok") == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, counts.get("in/invalid"))

	got := em.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "42", got[0].EntityID())
}
