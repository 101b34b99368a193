package ws

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/namimod25/toko-online/pkg/catalog"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	fail   error
}

func (f *fakeSender) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != nil {
		return f.fail
	}
	if f.closed {
		return ErrConnectionClosed
	}
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeSender) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSender) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSender) messages(t *testing.T) []catalog.Message {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	msgs := make([]catalog.Message, 0, len(f.frames))
	for _, frame := range f.frames {
		var msg catalog.Message
		require.NoError(t, json.Unmarshal(frame, &msg))
		msgs = append(msgs, msg)
	}
	return msgs
}

func (f *fakeSender) channels(t *testing.T) []string {
	t.Helper()

	var out []string
	for _, msg := range f.messages(t) {
		out = append(out, msg.Channel)
	}
	return out
}

type countingObserver struct {
	mu       sync.Mutex
	opened   int
	closed   int
	emitted  int
	sent     int
	failures map[string]int
	dropped  int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{failures: make(map[string]int)}
}

func (o *countingObserver) ConnectionOpened() { o.mu.Lock(); o.opened++; o.mu.Unlock() }
func (o *countingObserver) ConnectionClosed() { o.mu.Lock(); o.closed++; o.mu.Unlock() }
func (o *countingObserver) EventEmitted(string, float64) {
	o.mu.Lock()
	o.emitted++
	o.mu.Unlock()
}
func (o *countingObserver) Delivered(string) { o.mu.Lock(); o.sent++; o.mu.Unlock() }
func (o *countingObserver) SendFailed(reason string) {
	o.mu.Lock()
	o.failures[reason]++
	o.mu.Unlock()
}
func (o *countingObserver) EventDropped() { o.mu.Lock(); o.dropped++; o.mu.Unlock() }

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline: %s", msg)
}
