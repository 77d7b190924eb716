package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/me/mise/internal/config"
	"github.com/me/mise/internal/logging"
	"github.com/me/mise/internal/server"
)

func main() {
	defaults := config.DefaultServerConfig()

	configFile := flag.String("config", "", "Path to YAML config file")
	addr := flag.String("addr", defaults.Addr, "Listen address")
	logLevel := flag.String("log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", defaults.LogFormat, "Log format (text, json)")
	maxSolves := flag.Int64("max-solves", defaults.MaxConcurrentSolves, "Maximum concurrent solves")
	timeLimit := flag.Duration("time-limit", defaults.Solver.TimeLimit, "Solver time limit per request (0 = unlimited)")
	nodeLimit := flag.Int64("node-limit", defaults.Solver.NodeLimit, "Solver node limit per request (0 = unlimited)")
	acceptFeasible := flag.Bool("accept-feasible", false, "Return the best schedule found when a budget runs out")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")

	flag.Parse()

	cfg, err := config.LoadServerConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// Flags given on the command line win over the file and the environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		case "max-solves":
			cfg.MaxConcurrentSolves = *maxSolves
		case "time-limit":
			cfg.Solver.TimeLimit = *timeLimit
		case "node-limit":
			cfg.Solver.NodeLimit = *nodeLimit
		case "accept-feasible":
			cfg.Solver.AcceptFeasible = *acceptFeasible
		}
	})
	if *debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Solver.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	srv := server.New(cfg, logger)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting",
			"addr", cfg.Addr,
			"exclusive", cfg.Solver.Exclusive,
			"time_limit", cfg.Solver.TimeLimit,
			"max_concurrent_solves", cfg.MaxConcurrentSolves)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Running solves stop at their time limit; give them that long to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Solver.TimeLimit+5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
