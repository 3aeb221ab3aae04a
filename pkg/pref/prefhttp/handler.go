// Package prefhttp serves preference envelopes over HTTP and pushes changes
// to watchers over WebSocket.
//
// Routes, relative to where the handler is mounted:
//
//	GET    /{key}        stored envelope, 404 when absent
//	PUT    /{key}        store envelope (validated)
//	DELETE /{key}        remove envelope
//	GET    /{key}/watch  WebSocket feed of Change messages
//
// store.HTTP is the matching client and Watch feeds a pref.Controller.
package prefhttp

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/datatable/pkg/pref"
)

// maxEnvelopeSize bounds PUT bodies.
const maxEnvelopeSize = 1 << 20

// Change is pushed to watchers after every successful write.
type Change struct {
	Key     string          `json:"key"`
	Removed bool            `json:"removed,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Handler serves a RawStorage.
type Handler struct {
	raw      pref.RawStorage
	hub      *hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
	router   chi.Router
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

// WithCheckOrigin sets the WebSocket origin check. Default: same host only.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Handler) {
		h.upgrader.CheckOrigin = fn
	}
}

// NewHandler creates a handler over raw.
func NewHandler(raw pref.RawStorage, opts ...Option) *Handler {
	h := &Handler{
		raw:    raw,
		hub:    newHub(),
		logger: slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Get("/{key}", h.get)
	r.Put("/{key}", h.put)
	r.Delete("/{key}", h.remove)
	r.Get("/{key}/watch", h.watch)
	h.router = r
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Close disconnects all watchers.
func (h *Handler) Close() {
	h.hub.close()
}

// Watchers returns the number of connected watchers.
func (h *Handler) Watchers() int {
	return h.hub.count()
}

func keyParam(r *http.Request) (string, bool) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(r)
	if !ok {
		http.Error(w, "invalid key", http.StatusBadRequest)
		return
	}
	data, err := h.raw.Get(r.Context(), key)
	if err != nil {
		h.logger.Warn("preference read failed", slog.String("key", key), slog.Any("error", err))
		http.Error(w, "read failed", http.StatusInternalServerError)
		return
	}
	if data == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (h *Handler) put(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(r)
	if !ok {
		http.Error(w, "invalid key", http.StatusBadRequest)
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxEnvelopeSize+1))
	if err != nil {
		http.Error(w, "read body failed", http.StatusBadRequest)
		return
	}
	if len(data) > maxEnvelopeSize {
		http.Error(w, "envelope too large", http.StatusRequestEntityTooLarge)
		return
	}
	env, err := pref.DecodeEnvelope[json.RawMessage](key, data)
	if err != nil || env == nil {
		http.Error(w, "invalid envelope", http.StatusBadRequest)
		return
	}
	if err := h.raw.Set(r.Context(), key, data); err != nil {
		h.logger.Warn("preference write failed", slog.String("key", key), slog.Any("error", err))
		http.Error(w, "write failed", http.StatusInternalServerError)
		return
	}
	h.hub.publish(Change{Key: key, Data: data})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(r)
	if !ok {
		http.Error(w, "invalid key", http.StatusBadRequest)
		return
	}
	if err := h.raw.Remove(r.Context(), key); err != nil {
		h.logger.Warn("preference remove failed", slog.String("key", key), slog.Any("error", err))
		http.Error(w, "remove failed", http.StatusInternalServerError)
		return
	}
	h.hub.publish(Change{Key: key, Removed: true})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) watch(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(r)
	if !ok {
		http.Error(w, "invalid key", http.StatusBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	h.hub.add(key, conn)
	defer h.hub.drop(key, conn)

	// Watchers only listen; reading detects the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
