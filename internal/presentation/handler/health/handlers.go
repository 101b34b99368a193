package health

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/namimod25/toko-online/internal/infrastructure/json"
)

// ConnectionCounter reports open real-time connections.
type ConnectionCounter interface {
	Count() int
}

// Backlog reports events accepted but not yet fanned out.
type Backlog interface {
	Pending() int
}

type Handler struct {
	startTime   time.Time
	healthy     atomic.Bool
	connections ConnectionCounter
	backlog     Backlog
}

func NewHandler(connections ConnectionCounter, backlog Backlog) *Handler {
	h := &Handler{
		startTime:   time.Now(),
		connections: connections,
		backlog:     backlog,
	}
	h.healthy.Store(true)
	return h
}

// SetHealthy flips the reported status. main clears it when shutdown starts.
func (h *Handler) SetHealthy(ok bool) {
	h.healthy.Store(ok)
}

// GetHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API, including uptime, open real-time connections and the event backlog
// @Tags         health
// @Produce      json
// @Success      200 {object} healthResponse "Service is healthy"
// @Failure      503 {object} healthResponse "Service is unhealthy"
// @Router       /health [get]
// @Router       /healthz [get]
// @Router       /ready [get]
// @Router       /live [get]
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
	if h.connections != nil {
		resp.Connections = h.connections.Count()
	}
	if h.backlog != nil {
		resp.PendingEvents = h.backlog.Pending()
	}

	if !h.healthy.Load() {
		resp.Status = "unhealthy"
		json.Write(w, http.StatusServiceUnavailable, resp)
		return
	}

	json.Write(w, http.StatusOK, resp)
}
