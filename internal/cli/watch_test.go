package cli

import (
	"bytes"
	"context"
	stdjson "encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/namimod25/toko-online/internal/domain"
	"github.com/namimod25/toko-online/internal/infrastructure/json"
	"github.com/namimod25/toko-online/internal/infrastructure/logging"
	"github.com/namimod25/toko-online/internal/infrastructure/ratelimiter"
	"github.com/namimod25/toko-online/internal/infrastructure/ws"
	"github.com/namimod25/toko-online/internal/presentation/handler/realtime"
	"github.com/namimod25/toko-online/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchPrintsFeedAndView(t *testing.T) {
	logger := logging.NewNopLogger()
	registry := ws.NewRegistry(logger, nil)
	emitter := ws.NewEmitter(registry, logger)
	limiter := ratelimiter.New(ratelimiter.Options{MaxRatePerSecond: 1000, MaxBurst: 1000})

	seed := catalog.Product{ID: "p1", Name: "Kopi", Price: 10, Stock: 10}

	r := chi.NewRouter()
	r.Get("/api/products", func(w http.ResponseWriter, r *http.Request) {
		json.Write(w, http.StatusOK, map[string]any{"products": []catalog.Product{seed}, "count": 1})
	})
	r.Get("/api/realtime", realtime.NewHandler(registry, ws.NewUpgrader(nil), ws.DefaultClientConfig(), limiter, logger).ServeWS)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		registry.Close()
		srv.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- runWatch(ctx, out, watchOptions{
			url:         "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/realtime",
			productsURL: srv.URL + "/api/products",
			products:    []string{"p1"},
			admin:       true,
		})
	}()

	require.Eventually(t, func() bool {
		return len(registry.MembersOf(catalog.ProductRoom("p1"))) == 1 &&
			len(registry.MembersOf(catalog.AdminRoom)) == 1
	}, 3*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), `"stock":10`)
	}, 3*time.Second, 5*time.Millisecond)

	res := emitter.Emit(context.Background(), domain.NewStockChanged("p1", 10, 3))
	assert.Equal(t, 3, res.Delivered)

	require.Eventually(t, func() bool {
		s := out.String()
		return strings.Contains(s, `"channel":"product-p1-stock"`) &&
			strings.Contains(s, `"channel":"admin-stock-updated"`) &&
			strings.Contains(s, `"stock":3`)
	}, 3*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
}

func TestWatchKeepsEventsDeliveredDuringFetch(t *testing.T) {
	logger := logging.NewNopLogger()
	registry := ws.NewRegistry(logger, nil)
	emitter := ws.NewEmitter(registry, logger)
	limiter := ratelimiter.New(ratelimiter.Options{MaxRatePerSecond: 1000, MaxBurst: 1000})
	out := &syncBuffer{}

	// The snapshot is read before the stock change commits but reaches the
	// client after the change was delivered.
	r := chi.NewRouter()
	r.Get("/api/products", func(w http.ResponseWriter, r *http.Request) {
		stale := []catalog.Product{{ID: "p1", Name: "Kopi", Price: 10, Stock: 10}}

		deadline := time.Now().Add(3 * time.Second)
		for len(registry.MembersOf(catalog.ProductRoom("p1"))) == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		emitter.Emit(context.Background(), domain.NewStockChanged("p1", 10, 3))
		for !strings.Contains(out.String(), `"channel":"product-p1-stock"`) && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}

		json.Write(w, http.StatusOK, map[string]any{"products": stale, "count": 1})
	})
	r.Get("/api/realtime", realtime.NewHandler(registry, ws.NewUpgrader(nil), ws.DefaultClientConfig(), limiter, logger).ServeWS)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		registry.Close()
		srv.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = runWatch(ctx, out, watchOptions{
			url:         "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/realtime",
			productsURL: srv.URL + "/api/products",
			products:    []string{"p1"},
		})
	}()

	var view []catalog.Product
	require.Eventually(t, func() bool {
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		last := lines[len(lines)-1]
		if !strings.HasPrefix(last, "[") {
			return false
		}
		view = nil
		return stdjson.Unmarshal([]byte(last), &view) == nil
	}, 5*time.Second, 5*time.Millisecond)

	require.Len(t, view, 1)
	assert.Equal(t, int64(3), view[0].Stock)
}

func TestFetchProductsRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.WriteInternalError(w, nil)
	}))
	defer srv.Close()

	_, err := fetchProducts(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "unexpected status 500")
}
