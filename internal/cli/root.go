package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/mise/internal/config"
	"github.com/me/mise/internal/logging"
)

var (
	flagServer    string
	flagConfig    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string
	flagTimeLimit time.Duration
	flagNodeLimit int64
	flagBackend   string

	logger    *slog.Logger
	client    *Client
	solverCfg config.SolverConfig
)

// defaultServer returns the server URL from MISE_SERVER. Empty means solve
// in-process.
func defaultServer() string {
	return os.Getenv("MISE_SERVER")
}

// NewRootCmd creates the root cobra command for the mise CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mise",
		Short: "mise: kitchen task scheduler",
		Long:  "mise finds the shortest schedule for preparing several dishes in one kitchen.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(flagLogLevel), flagLogFormat, cmd.ErrOrStderr())

			cfg, err := config.LoadServerConfig(flagConfig)
			if err != nil {
				return err
			}
			solverCfg = cfg.Solver
			if cmd.Flags().Changed("time-limit") {
				solverCfg.TimeLimit = flagTimeLimit
			}
			if cmd.Flags().Changed("node-limit") {
				solverCfg.NodeLimit = flagNodeLimit
			}
			if cmd.Flags().Changed("backend") {
				solverCfg.Backend = flagBackend
			}
			if err := solverCfg.Validate(); err != nil {
				return fmt.Errorf("invalid solver flags: %w", err)
			}

			client = nil
			if flagServer != "" {
				client = NewClient(flagServer, logger)
			}
			return nil
		},
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flagServer, "server", defaultServer(), "mise server URL; solves locally when empty (or MISE_SERVER env)")
	pf.StringVar(&flagConfig, "config", "", "YAML config file (solver section is used)")
	pf.BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	pf.StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	pf.StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")
	pf.DurationVar(&flagTimeLimit, "time-limit", 0, "Solver time limit per attempt (0 = unlimited)")
	pf.Int64Var(&flagNodeLimit, "node-limit", 0, "Solver node limit per attempt (0 = unlimited)")
	pf.StringVar(&flagBackend, "backend", "search", "Local solver backend (search, pb)")

	root.AddCommand(
		newSolveCmd(),
		newValidateCmd(),
		newModelCmd(),
	)

	return root
}
