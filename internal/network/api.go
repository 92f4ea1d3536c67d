package network

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/AshuferMorningstar/Mafia/internal/engine"
	"github.com/AshuferMorningstar/Mafia/internal/platform/logger"
	"github.com/AshuferMorningstar/Mafia/internal/platform/metrics"
	"github.com/AshuferMorningstar/Mafia/internal/registry"
)

// HistoryReader serves persisted chat history to the HTTP surface.
type HistoryReader interface {
	Recent(ctx context.Context, room string, limit int) ([]engine.ChatRecord, error)
}

// API is the HTTP surface: room creation, chat history, roster lookups,
// the websocket upgrade and the metrics endpoint.
type API struct {
	rooms   *registry.Rooms
	hub     *Hub
	router  *Router
	history HistoryReader
	logger  *logger.Logger
	metrics *metrics.Collector

	eventRate  float64
	eventBurst int
	upgrader   websocket.Upgrader
}

func NewAPI(rooms *registry.Rooms, hub *Hub, router *Router, history HistoryReader,
	log *logger.Logger, m *metrics.Collector, eventRate float64, eventBurst int) *API {
	return &API{
		rooms:      rooms,
		hub:        hub,
		router:     router,
		history:    history,
		logger:     log,
		metrics:    m,
		eventRate:  eventRate,
		eventBurst: eventBurst,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// CORS is open for development; same policy here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Routes assembles the router.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/", a.handleHealth)
	r.Post("/create-game", a.handleCreateGame)
	r.Get("/rooms/{roomID}/messages", a.handleMessages)
	r.Get("/rooms/{roomID}/players", a.handlePlayers)
	r.Get("/ws", a.handleWS)
	r.Handle("/metrics", a.metrics.Handler())
	return r
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "mafia-server",
	})
}

func (a *API) handleCreateGame(w http.ResponseWriter, _ *http.Request) {
	room, err := a.rooms.Create()
	if err != nil {
		a.logger.Error("room creation failed", "err", err)
		a.writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "error": "could not create room"})
		return
	}
	a.writeJSON(w, http.StatusCreated, map[string]any{"success": true, "room_code": room.Engine.Code()})
}

func (a *API) handleMessages(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "roomID"))

	room := code
	switch r.URL.Query().Get("scope") {
	case "", engine.ScopePublic:
	case engine.ScopeKillers:
		room = engine.KillerScope(code)
	case engine.ScopeDoctors:
		room = engine.DoctorScope(code)
	default:
		a.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown scope"})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := a.history.Recent(r.Context(), room, limit)
	if err != nil {
		a.logger.Error("history query failed", "room", room, "err", err)
		a.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load messages"})
		return
	}

	type message struct {
		ID         string `json:"id"`
		SenderID   string `json:"sender_id"`
		SenderName string `json:"sender_name"`
		Text       string `json:"text"`
		TS         int64  `json:"ts"`
	}
	msgs := make([]message, 0, len(recs))
	for _, rec := range recs {
		msgs = append(msgs, message{
			ID:         rec.ID,
			SenderID:   rec.SenderID,
			SenderName: rec.SenderName,
			Text:       rec.Text,
			TS:         rec.TS,
		})
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (a *API) handlePlayers(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "roomID"))
	room, ok := a.rooms.Get(code)
	if !ok {
		a.writeJSON(w, http.StatusNotFound, map[string]string{"error": "room not found"})
		return
	}
	players, hostID := room.Engine.Roster()
	a.writeJSON(w, http.StatusOK, map[string]any{
		"players": players,
		"host_id": hostID,
	})
}

func (a *API) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	client := NewClient(a.hub, a.router, conn, a.eventRate, a.eventBurst)
	a.hub.Add(client)
	go client.WritePump()
	go client.ReadPump()
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("failed to write response", "err", err)
	}
}
