package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/gorilla/mux"
	"github.com/wricardo/shooter-relay/game/relay"
	"github.com/wricardo/shooter-relay/game/session"
	"github.com/wricardo/shooter-relay/protocol"
)

// maxBodyBytes bounds a polling client's state snapshot
const maxBodyBytes = 64 << 10

// Relay is the part of the event relay the REST API serves
type Relay interface {
	PublishState(update relay.StateUpdate) (session.Session, error)
	Players() []session.Session
	Player(id string) (session.Session, error)
	Kick(id string) error
	Stats() relay.Stats
}

// Server represents the REST API server
type Server struct {
	relay  Relay
	ws     http.Handler
	router *mux.Router
}

// NewServer creates a new API server. ws serves /ws when non-nil.
func NewServer(r Relay, ws http.Handler) *Server {
	s := &Server{
		relay:  r,
		ws:     ws,
		router: mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Polling transport
	s.router.HandleFunc("/state", s.handlePublishState).Methods("POST")
	s.router.HandleFunc("/players", s.handleListPlayers).Methods("GET")

	// Aliases used by the browser polling client
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/update", s.handlePublishState).Methods("POST")
	api.HandleFunc("/players", s.handleListPlayers).Methods("GET")

	// Administration
	s.router.HandleFunc("/players/{id}", s.handleGetPlayer).Methods("GET")
	s.router.HandleFunc("/players/{id}", s.handleKickPlayer).Methods("DELETE")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/stats", s.handleStats).Methods("GET")

	// WebSocket
	if s.ws != nil {
		s.router.Handle("/ws", s.ws)
	}
}

// ServeStatic serves the browser client from dir for every GET the API
// does not handle. Call it after NewServer so the API routes match first.
func (s *Server) ServeStatic(dir string) {
	s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(dir))).Methods("GET", "HEAD")
}

// ServeHTTP implements http.Handler. Every response allows cross-origin
// requests and preflight requests are answered directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Polling Handlers

func (s *Server) handlePublishState(w http.ResponseWriter, r *http.Request) {
	var update relay.StateUpdate

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if update.ID == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	if _, err := s.relay.PublishState(update); err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidSessionID), errors.Is(err, protocol.ErrMalformedPayload):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	players := s.relay.Players()
	sort.Slice(players, func(i, j int) bool {
		return players[i].ID < players[j].ID
	})

	respondJSON(w, http.StatusOK, players)
}

// Administration Handlers

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	player, err := s.relay.Player(id)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, player)
}

func (s *Server) handleKickPlayer(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.relay.Kick(id); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.relay.Stats())
}
