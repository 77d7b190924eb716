// Package scheduler runs the scheduling pipeline: validate the task list,
// discretize the horizon, build the model, search it and extract the
// schedule.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/me/mise/internal/config"
	"github.com/me/mise/internal/formulation"
	"github.com/me/mise/internal/logging"
	"github.com/me/mise/internal/registry"
	"github.com/me/mise/internal/schedule"
	"github.com/me/mise/internal/solver"
	"github.com/me/mise/internal/timeline"
	"github.com/me/mise/pkg/model"
)

// Scheduler turns task lists into schedules.
type Scheduler interface {
	// Solve returns an optimal schedule for tasks. It fails with
	// *model.ValidationError, *model.InfeasibleScheduleError or
	// *model.SolverError.
	Solve(ctx context.Context, tasks []model.Task) (*model.Schedule, error)

	// Validate checks tasks without solving.
	Validate(tasks []model.Task) *model.ValidationReport
}

// Pipeline implements Scheduler. Every call builds its own registry, model
// and search, so a Pipeline may be shared between goroutines.
type Pipeline struct {
	cfg       config.SolverConfig
	validator *registry.Validator
	logger    *slog.Logger
}

// New creates a Pipeline for cfg.
func New(cfg config.SolverConfig, logger *slog.Logger) *Pipeline {
	logger = logging.OrDiscard(logger)
	return &Pipeline{
		cfg:       cfg,
		validator: registry.NewValidator(cfg, logger),
		logger:    logger.With("component", "scheduler"),
	}
}

// Solve schedules tasks with the default configuration.
func Solve(ctx context.Context, tasks []model.Task) (*model.Schedule, error) {
	return New(config.DefaultSolverConfig(), nil).Solve(ctx, tasks)
}

// Model validates tasks and returns the model that Solve would search.
// Building stops with ctx.Err() once ctx is done.
func (p *Pipeline) Model(ctx context.Context, tasks []model.Task) (*formulation.Model, error) {
	reg, err := p.validator.Build(tasks)
	if err != nil {
		return nil, err
	}
	tl, err := timeline.New(reg, p.cfg.Horizon)
	if err != nil {
		return nil, &model.ValidationError{Fields: []model.FieldError{{Field: "horizon", Message: err.Error()}}}
	}
	return formulation.Build(ctx, reg, tl)
}

// Solve implements Scheduler. The time limit covers model construction as
// well as the search.
func (p *Pipeline) Solve(ctx context.Context, tasks []model.Task) (*model.Schedule, error) {
	started := time.Now()
	runID := "run_" + uuid.New().String()
	logger := logging.WithRun(p.logger, runID)

	buildCtx := ctx
	if p.cfg.TimeLimit > 0 {
		var cancel context.CancelFunc
		buildCtx, cancel = context.WithTimeout(ctx, p.cfg.TimeLimit)
		defer cancel()
	}
	m, err := p.Model(buildCtx, tasks)
	if err != nil {
		err = budgetError(ctx, err)
		logger.Info("task list rejected", "error", err)
		return nil, err
	}
	logger.Debug("model built",
		"tasks", len(m.Groups), "horizon", m.Horizon, "big_m", m.BigM,
		"variables", m.Variables(), "rows", len(m.Rows))

	limit := p.cfg.TimeLimit
	if limit > 0 {
		limit = max(limit-time.Since(started), time.Nanosecond)
	}
	res, err := solver.Drive(ctx, m, solver.Options{
		TimeLimit:      limit,
		NodeLimit:      p.cfg.NodeLimit,
		AcceptFeasible: p.cfg.AcceptFeasible,
		Backend:        solver.Backend(p.cfg.Backend),
		Logger:         logger,
	})
	if err != nil {
		logger.Warn("solve failed", "error", err)
		return nil, err
	}

	s, err := schedule.Extract(m, res)
	if err != nil {
		logger.Error("extraction failed", "error", err)
		return nil, err
	}
	s.RunID = runID
	logger.Info("schedule solved",
		"status", s.Status, "makespan", s.Makespan,
		"nodes", s.Stats.Nodes, "duration", s.Stats.DurationStr)
	return s, nil
}

// budgetError maps a model construction stopped by the clock or by ctx onto
// a SolverError. Other errors pass through.
func budgetError(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return &model.SolverError{Status: model.SolveStatusCancelled, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &model.SolverError{Status: model.SolveStatusTimeLimit}
	}
	return err
}

// Validate implements Scheduler.
func (p *Pipeline) Validate(tasks []model.Task) *model.ValidationReport {
	report := &model.ValidationReport{Tasks: len(tasks), Errors: []model.FieldError{}}
	reg, err := p.validator.Build(tasks)
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		report.Errors = verr.Fields
		return report
	}
	tl, err := timeline.New(reg, p.cfg.Horizon)
	if err != nil {
		report.Errors = append(report.Errors, model.FieldError{Field: "horizon", Message: err.Error()})
		return report
	}
	report.Valid = true
	report.Dishes = len(reg.Dishes())
	report.Horizon = tl.Horizon
	report.LowerBound = tl.ChainBound()
	exclusive := 0
	for _, i := range reg.Exclusive() {
		exclusive += reg.Task(i).Duration
	}
	report.LowerBound = max(report.LowerBound, exclusive)
	return report
}
