package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/ascendant/internal/eventlog"
)

// frame is one WS push (spec §6's "tick" and one-shot control frames).
type frame struct {
	Type string `json:"type"`

	Year       int              `json:"year,omitempty"`
	Month      int              `json:"month,omitempty"`
	Events     []eventlog.Event `json:"events,omitempty"`
	Diffs      []avatarDiff     `json:"diffs,omitempty"`
	Phenomenon any              `json:"phenomenon,omitempty"`
	Gatherings []string         `json:"active_gatherings,omitempty"`

	Error string `json:"error,omitempty"`
}

// avatarDiff is a minimal per-tick change record for the UI to apply without
// re-fetching the whole state.
type avatarDiff struct {
	ID     string         `json:"id"`
	Pos    map[string]int `json:"pos"`
	Action string         `json:"action,omitempty"`
	Died   bool           `json:"died,omitempty"`
	Born   bool           `json:"born,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// hub fans a frame out to every connected WS client, grounded on the
// teacher's single-writer SSE broadcast loop in internal/api/server.go's
// handleStream, adapted from an SSE byte stream to framed JSON messages.
type hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan frame
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan frame)}
}

func (h *hub) add(conn *websocket.Conn) chan frame {
	ch := make(chan frame, 8)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(f frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- f:
		default:
			// Slow client: drop the frame rather than block the tick loop.
			go h.remove(conn)
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ch := s.hub.add(conn)
	defer s.hub.remove(conn)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Drain (and discard) client reads so control frames / ping-pong keep the
	// connection alive; this feed is one-directional from the server's side.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case f, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// tickFrame builds the periodic "tick" frame from a Step's returned events.
func (s *Server) tickFrame(evs []eventlog.Event) frame {
	diffs := make([]avatarDiff, 0, len(s.Sim.Store.Living()))
	for _, av := range s.Sim.Store.Living() {
		d := avatarDiff{ID: av.ID, Pos: map[string]int{"x": av.Position.X, "y": av.Position.Y}}
		if av.CurrentAction != nil {
			d.Action = av.CurrentAction.Name()
		}
		diffs = append(diffs, d)
	}
	for _, id := range s.Sim.Store.PopNewlyDead() {
		diffs = append(diffs, avatarDiff{ID: id, Died: true})
	}
	for _, id := range s.Sim.Store.PopNewlyBorn() {
		diffs = append(diffs, avatarDiff{ID: id, Born: true})
	}

	return frame{
		Type:       "tick",
		Year:       s.Sim.Now.Year(),
		Month:      s.Sim.Now.Month(),
		Events:     evs,
		Diffs:      diffs,
		Phenomenon: s.Sim.Phenomenon,
	}
}
