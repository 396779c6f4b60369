package api

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024 * 16,
	WriteBufferSize: 1024 * 16,
	CheckOrigin: func(r *http.Request) bool {
		return true // local tool; the server binds to loopback
	},
}

// wsStatusMsg is pushed to every client on connect and after each
// successful mutation.
type wsStatusMsg struct {
	Type string         `json:"type"`
	Data statusResponse `json:"data"`
}

// handleWebSocket streams status snapshots. The client does not send
// messages; reads only detect disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade", "err", err)
		return
	}
	defer conn.Close()

	// Mutation notifications arrive on a buffered channel so a slow
	// client cannot block the engine; coalescing drops is fine since
	// every push carries the full snapshot.
	updates := make(chan struct{}, 1)
	unsubscribe := s.session.OnChange(func() {
		select {
		case updates <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func() error {
		return conn.WriteJSON(wsStatusMsg{Type: "status", Data: s.statusSnapshot()})
	}
	if err := send(); err != nil {
		return
	}

	for {
		select {
		case <-updates:
			if err := send(); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
