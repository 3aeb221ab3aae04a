package prefhttp

import (
	"sync"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// hub fans changes out to the connections watching each key.
type hub struct {
	mu    sync.RWMutex
	conns map[string]map[*websocket.Conn]*sync.Mutex
}

func newHub() *hub {
	return &hub{conns: make(map[string]map[*websocket.Conn]*sync.Mutex)}
}

func (h *hub) add(key string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.conns[key]
	if !ok {
		set = make(map[*websocket.Conn]*sync.Mutex)
		h.conns[key] = set
	}
	set[conn] = &sync.Mutex{}
}

func (h *hub) drop(key string, conn *websocket.Conn) {
	h.mu.Lock()
	if set, ok := h.conns[key]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.conns, key)
		}
	}
	h.mu.Unlock()
	conn.Close()
}

func (h *hub) publish(c Change) {
	data, err := json.Marshal(c)
	if err != nil {
		return
	}

	type target struct {
		conn *websocket.Conn
		mu   *sync.Mutex
	}
	h.mu.RLock()
	targets := make([]target, 0, len(h.conns[c.Key]))
	for conn, mu := range h.conns[c.Key] {
		targets = append(targets, target{conn, mu})
	}
	h.mu.RUnlock()

	for _, t := range targets {
		t.mu.Lock()
		err := t.conn.WriteMessage(websocket.TextMessage, data)
		t.mu.Unlock()
		if err != nil {
			h.drop(c.Key, t.conn)
		}
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, set := range h.conns {
		n += len(set)
	}
	return n
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for key, set := range h.conns {
		for conn := range set {
			conn.Close()
		}
		delete(h.conns, key)
	}
}
