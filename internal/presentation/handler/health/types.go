package health

// healthResponse reports liveness plus the state of the real-time feed.
type healthResponse struct {
	Status        string `json:"status" example:"ok" enum:"ok,unhealthy"`
	Timestamp     string `json:"timestamp" example:"2024-01-01T12:00:00Z"`
	Uptime        string `json:"uptime" example:"2h30m45s"`
	Connections   int    `json:"connections" example:"42"`  // Open WebSocket connections
	PendingEvents int    `json:"pendingEvents" example:"0"` // Events waiting for fan-out
}
