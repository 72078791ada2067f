// Package introspect exposes a read-only WebSocket feed of event-bus
// signals, so an external tool can watch property changes and frame-show
// notifications as they happen instead of polling. Grounded on the
// teacher's pkg/web/routes.go Logs handler (upgrade, subscribe, forward
// until the connection or context ends).
package introspect

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"mlt/pkg/event"
)

// wireSignal is the JSON shape written to the socket for every event.Signal.
type wireSignal struct {
	Name string      `json:"name"`
	Data interface{} `json:"data"`
}

// Server forwards a single event.Bus's signals to any number of connected
// WebSocket clients.
type Server struct {
	bus      *event.Bus
	upgrader websocket.Upgrader
}

// NewServer returns a Server forwarding bus's signals.
func NewServer(bus *event.Bus) *Server {
	return &Server{bus: bus}
}

// Handler upgrades the request to a WebSocket and streams every signal fired
// on the bus until the client disconnects.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer conn.Close()

		feed, cancel := s.bus.Subscribe()
		defer cancel()

		for sig := range feed {
			payload, err := json.Marshal(wireSignal{Name: sig.Name, Data: sig.Data})
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	})
}
