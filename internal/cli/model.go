package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/mise/internal/scheduler"
	"github.com/me/mise/internal/tasksfile"
)

func newModelCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "model <tasks.yaml>",
		Short: "Export the scheduling model in CPLEX LP format",
		Long: "Model writes the time-indexed model that solve searches, in CPLEX LP format, " +
			"so it can be cross-checked with an external MIP solver.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := tasksfile.Load(args[0])
			if err != nil {
				return err
			}
			cfg, err := fileConfig(f)
			if err != nil {
				return err
			}
			m, err := scheduler.New(cfg, logger).Model(cmd.Context(), f.Tasks)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer file.Close()
				w = file
			}
			if err := m.WriteLP(w); err != nil {
				return fmt.Errorf("write model: %w", err)
			}
			logger.Info("model written",
				"variables", m.Variables(), "rows", len(m.Rows), "horizon", m.Horizon)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}
