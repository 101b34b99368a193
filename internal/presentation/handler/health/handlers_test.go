package health

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fixedCount int

func (c fixedCount) Count() int   { return int(c) }
func (c fixedCount) Pending() int { return int(c) * 2 }

func TestGetHealth(t *testing.T) {
	h := NewHandler(fixedCount(3), fixedCount(3))

	rec := httptest.NewRecorder()
	h.GetHealth(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"connections":3`)
	assert.Contains(t, rec.Body.String(), `"pendingEvents":6`)

	h.SetHealthy(false)
	rec = httptest.NewRecorder()
	h.GetHealth(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"unhealthy"`)
}

func TestGetHealthWithoutFeed(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(nil, nil).GetHealth(rec, httptest.NewRequest(http.MethodGet, "/api/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"connections":0`)
}
