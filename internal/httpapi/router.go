package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ugaemi/duel-arena-server/internal/metrics"
	"github.com/ugaemi/duel-arena-server/internal/room"
	"github.com/ugaemi/duel-arena-server/internal/ws"
)

// RoomLister is the part of room.Manager the API reads.
type RoomLister interface {
	List() []room.Info
	RoomCount() int
}

// RouterConfig holds the router's dependencies.
type RouterConfig struct {
	Hub   *ws.Hub
	Rooms RoomLister
	// AllowedOrigins are matched with path.Match, so "https://*.example.com"
	// works. Empty allows every origin.
	AllowedOrigins []string
	DisableLogging bool
}

// NewRouter builds the HTTP router. It starts no goroutines, so it can be
// served from httptest.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	h := &handlers{cfg: cfg}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	r.Get("/health", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/rooms", h.handleListRooms)
	})
	r.Get("/ws", h.handleWebSocket)
	r.Handle("/metrics", metrics.Handler())

	return r
}

type handlers struct {
	cfg      RouterConfig
	upgrader websocket.Upgrader
}

type healthResponse struct {
	Status      string `json:"status"`
	Rooms       int    `json:"rooms"`
	Connections int    `json:"connections"`
}

func (h *handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h.cfg.Rooms != nil {
		resp.Rooms = h.cfg.Rooms.RoomCount()
	}
	if h.cfg.Hub != nil {
		resp.Connections = h.cfg.Hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) handleListRooms(w http.ResponseWriter, _ *http.Request) {
	rooms := []room.Info{}
	if h.cfg.Rooms != nil {
		rooms = append(rooms, h.cfg.Rooms.List()...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

func (h *handlers) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Hub == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "websocket unavailable"})
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		metrics.RecordConnectionRejected("upgrade")
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := ws.NewClient(uuid.NewString(), h.cfg.Hub, conn)
	h.cfg.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

// checkOrigin allows requests without an Origin header; native clients do
// not send one.
func (h *handlers) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || isAllowedOrigin(h.cfg.AllowedOrigins, origin) {
		return true
	}
	slog.Warn("websocket connection rejected", "origin", origin)
	metrics.RecordConnectionRejected("origin")
	return false
}

func isAllowedOrigin(allowed []string, origin string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, pattern := range allowed {
		if pattern == "*" || pattern == origin {
			return true
		}
		if ok, err := path.Match(pattern, origin); err == nil && ok {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
