// /status/stream pushes a live JSON feed of connect/disconnect/stream-
// complete events over a websocket. Events are fed in via
// Server.Publish, which the caller wires to the node's Filters hooks
// (OnPeerConnected/OnPeerDisconnected) and consumer callbacks.
package statusapi

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Event is one lifecycle notification pushed to /status/stream
// subscribers.
type Event struct {
	Type   string `json:"type"` // "peer_connected", "peer_disconnected", "stream_complete"
	PeerID string `json:"peer_id"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan Event
}

// hub fans Event values out to every connected websocket subscriber:
// one buffered send channel per subscriber, written by a dedicated
// writer goroutine so a slow client never blocks Publish.
type hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[*subscriber]struct{})}
}

func (h *hub) add(s *subscriber) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
	close(s.send)
}

func (h *hub) broadcast(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs {
		select {
		case s.send <- e:
		default:
			// Slow subscriber: drop the event rather than block Publish.
		}
	}
}

// Publish fans e out to every currently connected /status/stream
// subscriber. Safe to call from any goroutine, including the node's
// Filters hooks.
func (s *Server) Publish(e Event) {
	s.hub.broadcast(e)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	sub := &subscriber{conn: conn, send: make(chan Event, 32)}
	s.hub.add(sub)
	defer s.hub.remove(sub)

	for e := range sub.send {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
