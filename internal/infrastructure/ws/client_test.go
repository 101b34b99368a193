package ws

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/namimod25/toko-online/internal/infrastructure/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendNeverBlocks(t *testing.T) {
	cfg := DefaultClientConfig()
	cfg.SendBufferSize = 2
	c := NewClient(nil, "c1", cfg, logging.NewNopLogger())

	require.NoError(t, c.Send([]byte("1")))
	require.NoError(t, c.Send([]byte("2")))
	assert.ErrorIs(t, c.Send([]byte("3")), ErrSendBufferFull)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Send([]byte("4")), ErrConnectionClosed)

	var queued []string
	for frame := range c.send {
		queued = append(queued, string(frame))
	}
	assert.Equal(t, []string{"1", "2"}, queued, "queued frames survive close in order")
}

func TestUpgraderOrigins(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/api/realtime", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	open := NewUpgrader([]string{"*"})
	assert.True(t, open.CheckOrigin(req("https://evil.example")))

	strict := NewUpgrader([]string{"https://toko.example", "admin.toko.example"})
	assert.True(t, strict.CheckOrigin(req("https://toko.example")))
	assert.True(t, strict.CheckOrigin(req("https://admin.toko.example")))
	assert.True(t, strict.CheckOrigin(req("")), "non-browser clients send no origin")
	assert.False(t, strict.CheckOrigin(req("https://evil.example")))
}
