// Package server exposes a small JSON status surface for operators.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"scoreboard-bot/internal/notifier"
	"scoreboard-bot/internal/repository"

	"github.com/rs/zerolog"
)

type StatusServer struct {
	notifier    *notifier.Service
	subscribers *repository.SubscriberRepository
	logger      zerolog.Logger
}

func NewStatusServer(svc *notifier.Service, subscribers *repository.SubscriberRepository, logger zerolog.Logger) *StatusServer {
	return &StatusServer{notifier: svc, subscribers: subscribers, logger: logger}
}

type statusResponse struct {
	Contest     string     `json:"contest,omitempty"`
	Status      string     `json:"status,omitempty"`
	Teams       int        `json:"teams"`
	LastFetchAt *time.Time `json:"last_fetch_at,omitempty"`
	Subscribers int        `json:"subscribers"`
}

func (s *StatusServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	return mux
}

func (s *StatusServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	var resp statusResponse

	if contest := s.notifier.CurrentContest(); contest != nil {
		resp.Contest = contest.Name
		resp.Status = string(contest.ScoreboardStatus)
	}
	if snapshot := s.notifier.CurrentSnapshot(); snapshot != nil {
		resp.Teams = len(snapshot.Teams)
		fetchedAt := snapshot.FetchedAt
		resp.LastFetchAt = &fetchedAt
	}

	count, err := s.subscribers.CountSubscribers(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to count subscribers")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	resp.Subscribers = count

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
