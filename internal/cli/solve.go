package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/me/mise/internal/config"
	"github.com/me/mise/internal/logging"
	"github.com/me/mise/internal/scheduler"
	"github.com/me/mise/internal/tasksfile"
	"github.com/me/mise/pkg/model"
)

// budget is the search allowance of one attempt.
type budget struct {
	TimeLimit time.Duration
	NodeLimit int64
}

// doubled returns the budget for the next attempt. Unlimited stays unlimited.
func (b budget) doubled() budget {
	return budget{TimeLimit: 2 * b.TimeLimit, NodeLimit: 2 * b.NodeLimit}
}

// solveFunc runs one attempt under the given budget.
type solveFunc func(ctx context.Context, b budget) (*model.Schedule, error)

func newSolveCmd() *cobra.Command {
	var (
		demo    bool
		asJSON  bool
		watch   bool
		retries int
		output  string
	)

	cmd := &cobra.Command{
		Use:   "solve [tasks.yaml]",
		Short: "Compute the minimum-makespan schedule for a task file",
		Long: "Solve reads a YAML or JSON task file and prints the optimal schedule. " +
			"With --server the solve runs remotely. A run that exhausts its budget can be " +
			"retried with --retries; each retry doubles the time and node limits.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if demo == (len(args) == 1) {
				return fmt.Errorf("give a task file or --demo")
			}
			if watch && demo {
				return fmt.Errorf("--watch needs a task file")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			once := func() error {
				f, err := loadTasks(args, demo)
				if err != nil {
					return err
				}
				run, start, err := solver(f)
				if err != nil {
					return err
				}
				s, err := solveWithRetry(ctx, run, start, retries)
				if err != nil {
					return err
				}
				if output != "" {
					if err := writeSolved(output, f, s); err != nil {
						return err
					}
				}
				if asJSON {
					return printJSON(out, s)
				}
				printSchedule(out, s)
				return nil
			}

			if !watch {
				return once()
			}
			report := func() {
				if err := once(); err != nil {
					fmt.Fprintln(out, red("error:"), err)
				}
			}
			report()
			return watchFile(ctx, args[0], report)
		},
	}

	cmd.Flags().BoolVar(&demo, "demo", false, "Solve the built-in four-dish menu")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the schedule as JSON")
	cmd.Flags().BoolVar(&watch, "watch", false, "Re-solve whenever the task file changes")
	cmd.Flags().IntVar(&retries, "retries", 0, "Retries with a doubled budget after a time or node limit")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Also write the task file with start and end times filled in")
	return cmd
}

// writeSolved writes f to path with every task's start and end time taken
// from s. The result is itself a valid task file.
func writeSolved(path string, f *tasksfile.File, s *model.Schedule) error {
	solved := *f
	solved.Tasks = s.Apply(f.Tasks)
	data, err := tasksfile.Marshal(&solved)
	if err != nil {
		return fmt.Errorf("render solved tasks: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func loadTasks(args []string, demo bool) (*tasksfile.File, error) {
	if demo {
		return tasksfile.Demo(), nil
	}
	return tasksfile.Load(args[0])
}

// fileConfig applies a task file's overrides to the solver configuration.
func fileConfig(f *tasksfile.File) (config.SolverConfig, error) {
	cfg := solverCfg
	if len(f.Exclusive) > 0 {
		cfg = cfg.WithExclusive(f.Exclusive)
	}
	if f.TimeLimit != "" {
		d, err := time.ParseDuration(f.TimeLimit)
		if err != nil {
			return cfg, fmt.Errorf("time_limit: %w", err)
		}
		cfg.TimeLimit = d
	}
	return cfg, cfg.Validate()
}

// solver returns the attempt function for f, remote when --server is set,
// and the budget of the first attempt.
func solver(f *tasksfile.File) (solveFunc, budget, error) {
	cfg, err := fileConfig(f)
	if err != nil {
		return nil, budget{}, err
	}
	start := budget{TimeLimit: cfg.TimeLimit, NodeLimit: cfg.NodeLimit}

	if client != nil {
		return func(ctx context.Context, b budget) (*model.Schedule, error) {
			req := f.Request()
			if b.TimeLimit > 0 {
				req.TimeLimit = b.TimeLimit.String()
			}
			return client.Solve(ctx, req)
		}, start, nil
	}

	return func(ctx context.Context, b budget) (*model.Schedule, error) {
		c := cfg
		c.TimeLimit, c.NodeLimit = b.TimeLimit, b.NodeLimit
		return scheduler.New(c, logger).Solve(ctx, f.Tasks)
	}, start, nil
}

// retryable reports whether a larger budget might let the solve succeed.
func retryable(err error) bool {
	var serr *model.SolverError
	if errors.As(err, &serr) {
		return serr.Retryable()
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == model.ErrSolver
	}
	return false
}

// solveWithRetry runs attempts with exponential backoff, doubling the budget
// after each retryable failure. Validation and infeasibility fail at once.
func solveWithRetry(ctx context.Context, run solveFunc, start budget, retries int) (*model.Schedule, error) {
	var s *model.Schedule
	b := start
	attempt := 0
	op := func() error {
		attempt++
		var err error
		s, err = run(ctx, b)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		if attempt <= retries {
			logging.OrDiscard(logger).Warn("solve budget exhausted, retrying with a larger budget",
				"attempt", attempt, "time_limit", b.doubled().TimeLimit, "node_limit", b.doubled().NodeLimit)
		}
		b = b.doubled()
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 100 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return s, nil
}

// watchFile calls fn after every write to path until ctx is done. Bursts of
// events, as editors produce when saving, are collapsed into one call.
func watchFile(ctx context.Context, path string, fn func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	// Watch the directory so editors that replace the file are still seen.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	log := logging.OrDiscard(logger)
	log.Info("watching task file", "path", abs)

	const settle = 150 * time.Millisecond
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				pending = time.After(settle)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", "error", err)
		case <-pending:
			pending = nil
			fn()
		}
	}
}
