package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/me/mise/pkg/model"
)

type healthResponse struct {
	Status          string             `json:"status"`
	Version         string             `json:"version"`
	GoVersion       string             `json:"go_version"`
	Uptime          string             `json:"uptime"`
	ActiveSolves    int64              `json:"active_solves"`
	CompletedSolves int64              `json:"completed_solves"`
	MaxSolves       int64              `json:"max_concurrent_solves"`
	Exclusive       []model.ActionType `json:"exclusive"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, healthResponse{
		Status:          "healthy",
		Version:         "0.1.0",
		GoVersion:       runtime.Version(),
		Uptime:          time.Since(s.startTime).Round(time.Second).String(),
		ActiveSolves:    s.active.Load(),
		CompletedSolves: s.completed.Load(),
		MaxSolves:       s.config.MaxConcurrentSolves,
		Exclusive:       s.config.Solver.Exclusive,
	})
}
