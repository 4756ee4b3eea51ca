// Package server exposes the leasing assistant over HTTP: the chat
// endpoint, memory administration, and health probes.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"renterchat/internal/agent"
	"renterchat/internal/config"
	"renterchat/internal/logging"
	"renterchat/internal/memory"
)

// Server is the HTTP front end over the turn coordinator and memory store.
type Server struct {
	cfg    config.Config
	coord  *agent.Coordinator
	memory *memory.Store
	http   *http.Server
}

// New builds the server with its routes registered.
func New(cfg config.Config, coord *agent.Coordinator, mem *memory.Store) *Server {
	s := &Server{cfg: cfg, coord: coord, memory: mem}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/reply", s.handleReply)
	mux.HandleFunc("GET /api/memory/stats", s.handleMemoryStats)
	mux.HandleFunc("GET /api/memory/{clientID}", s.handleTranscript)
	mux.HandleFunc("DELETE /api/memory/{clientID}", s.handleClearMemory)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	s.http = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           requestLogger(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the wrapped handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe blocks serving requests until Shutdown or failure.
func (s *Server) ListenAndServe() error {
	logging.Server("listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Server("shutting down")
	return s.http.Shutdown(ctx)
}

// ChatRequest is the inbound chat payload.
type ChatRequest struct {
	Lead struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"lead"`
	Message     string                   `json:"message"`
	Preferences *agent.StatedPreferences `json:"preferences,omitempty"`
	CommunityID string                   `json:"community_id"`
	ClientID    string                   `json:"client_id,omitempty"`
}

// clientID resolves which memory profile the request addresses. Explicit
// client IDs win; otherwise the lead's email identifies them across turns.
func (r ChatRequest) clientID() string {
	if r.ClientID != "" {
		return r.ClientID
	}
	if r.Lead.Email != "" {
		return r.Lead.Email
	}
	return uuid.NewString()
}

func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Message == "" || req.CommunityID == "" {
		writeError(w, http.StatusBadRequest, "message and community_id are required")
		return
	}

	logging.APIDebug("chat request: lead=%s community=%s", req.Lead.Name, req.CommunityID)

	resp := s.coord.ProcessTurn(r.Context(), agent.TurnRequest{
		ClientID:    req.clientID(),
		Lead:        memory.Lead{Name: req.Lead.Name, Email: req.Lead.Email},
		Message:     req.Message,
		Stated:      req.Preferences,
		CommunityID: req.CommunityID,
	})

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMemoryStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.memory.Stats())
}

// transcriptEntry is the wire form of one transcript message.
type transcriptEntry struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("clientID")

	transcript := s.memory.Transcript(clientID)
	entries := make([]transcriptEntry, 0, len(transcript))
	for _, m := range transcript {
		entries = append(entries, transcriptEntry{Role: string(m.Role), Text: m.Content})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"client_id":  clientID,
		"transcript": entries,
	})
}

func (s *Server) handleClearMemory(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("clientID")
	cleared := s.memory.Clear(clientID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"client_id": clientID,
		"cleared":   cleared,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("%s is running", s.cfg.Name),
		"version": s.cfg.Version,
	})
}

// requestLogger tags every request with an ID and logs method, path,
// status, and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logging.API("request %s: %s %s -> %d (%s)",
			requestID, r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.APIError("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
