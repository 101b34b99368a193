package ws

import (
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/gorilla/websocket"
)

// NewUpgrader accepts handshakes from the given origins. "*" or an empty list
// allows any origin.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
				return true
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			u, err := url.Parse(origin)
			if err != nil {
				return false
			}

			return slices.ContainsFunc(allowedOrigins, func(allowed string) bool {
				return strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, u.Host)
			})
		},
	}
}
