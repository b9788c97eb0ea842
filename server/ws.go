package server

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

// hub fans published payloads out to connected websocket clients.
type hub struct {
	mu      sync.Mutex
	conns   map[*websocket.Conn]chan []byte
	closing bool
}

func newHub() *hub {
	return &hub{conns: make(map[*websocket.Conn]chan []byte)}
}

// serve registers the connection, sends the latest payload if one exists,
// and blocks until the client goes away.
func (h *hub) serve(conn *websocket.Conn, latest []byte, ready bool) {
	defer conn.Close()

	// Buffered one deep: a slow client drops intermediate snapshots
	// instead of stalling the broadcast.
	ch := make(chan []byte, 1)

	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		return
	}
	h.conns[conn] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
	}()

	if ready {
		if err := writePayload(conn, latest); err != nil {
			return
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case payload := <-ch:
			if err := writePayload(conn, payload); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *hub) broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.conns {
		select {
		case ch <- payload:
		default:
			// Drop for clients that have not drained the previous push.
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closing = true
	for conn := range h.conns {
		_ = conn.Close()
	}
}

func writePayload(conn *websocket.Conn, payload []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}
