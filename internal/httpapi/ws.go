package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"yaoundeconnect.org/internal/obs"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || isLocalOrigin(origin)
	},
}

const wsWriteTimeout = 10 * time.Second

// WebSocket streams directory events over a WebSocket connection. Clients
// that stop reading are disconnected instead of blocking the fan-out.
func (a *API) WebSocket(w http.ResponseWriter, r *http.Request) {
	if a.stream == nil {
		http.Error(w, "streaming disabled", http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		obs.LogError("ws.upgrade", err, nil)
		return
	}
	defer conn.Close()

	ch := a.stream.Subscribe(r.Context())

	// Discard inbound frames; the socket is publish-only. The read loop also
	// notices client disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for event := range ch {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(event); err != nil {
			return
		}
	}
}
