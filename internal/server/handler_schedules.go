package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/me/mise/internal/config"
	"github.com/me/mise/internal/scheduler"
	"github.com/me/mise/pkg/model"
)

// decodeScheduleRequest reads a size-limited body. It returns the raw bytes
// too, since byte-identical requests share one solve.
func (s *Server) decodeScheduleRequest(w http.ResponseWriter, r *http.Request) (*model.ScheduleRequest, []byte, *model.APIError, int) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, &model.APIError{
				Code:    model.ErrValidation,
				Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			}, http.StatusRequestEntityTooLarge
		}
		return nil, nil, &model.APIError{Code: model.ErrValidation, Message: "read body: " + err.Error()}, http.StatusBadRequest
	}

	var req model.ScheduleRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, nil, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		}, http.StatusBadRequest
	}
	return &req, body, nil, 0
}

// solverConfig applies the per-request overrides to the server's solver
// configuration. A request may only lower the time limit.
func (s *Server) solverConfig(req *model.ScheduleRequest) (config.SolverConfig, *model.APIError) {
	cfg := s.config.Solver
	if len(req.Exclusive) > 0 {
		cfg = cfg.WithExclusive(req.Exclusive)
	}
	if req.TimeLimit != "" {
		d, err := time.ParseDuration(req.TimeLimit)
		if err != nil || d <= 0 {
			return cfg, model.NewValidationError("invalid time limit",
				model.FieldError{Field: "time_limit", Message: "time_limit must be a positive duration such as \"5s\""})
		}
		if cfg.TimeLimit == 0 || d < cfg.TimeLimit {
			cfg.TimeLimit = d
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, model.NewValidationError("invalid solver options",
			model.FieldError{Field: "exclusive", Message: err.Error()})
	}
	return cfg, nil
}

func (s *Server) pipeline(cfg config.SolverConfig, req *model.ScheduleRequest) *scheduler.Pipeline {
	if len(req.Exclusive) == 0 && req.TimeLimit == "" {
		return s.scheduler
	}
	return scheduler.New(cfg, s.logger)
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	req, body, apiErr, status := s.decodeScheduleRequest(w, r)
	if apiErr != nil {
		respondError(w, reqID, status, apiErr)
		return
	}
	cfg, apiErr := s.solverConfig(req)
	if apiErr != nil {
		respondError(w, reqID, http.StatusBadRequest, apiErr)
		return
	}
	p := s.pipeline(cfg, req)

	sum := sha256.Sum256(body)
	key := hex.EncodeToString(sum[:])

	// The shared solve must not die with the first caller's connection; it is
	// bounded by the solver time limit instead.
	ctx := context.WithoutCancel(r.Context())
	v, err, shared := s.solves.Do(key, func() (any, error) {
		if err := s.solveSlots.Acquire(ctx, 1); err != nil {
			return nil, &model.SolverError{Err: err}
		}
		defer s.solveSlots.Release(1)

		s.active.Add(1)
		defer s.active.Add(-1)
		defer s.completed.Add(1)
		return p.Solve(ctx, req.Tasks)
	})
	if shared {
		w.Header().Set("X-Solve-Shared", "true")
	}
	if err != nil {
		s.logger.Debug("schedule request failed", "request_id", reqID, "error", err)
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, v.(*model.Schedule))
}

func (s *Server) handleValidateSchedule(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	req, _, apiErr, status := s.decodeScheduleRequest(w, r)
	if apiErr != nil {
		respondError(w, reqID, status, apiErr)
		return
	}
	cfg, apiErr := s.solverConfig(req)
	if apiErr != nil {
		respondError(w, reqID, http.StatusBadRequest, apiErr)
		return
	}
	respondOK(w, reqID, s.pipeline(cfg, req).Validate(req.Tasks))
}
