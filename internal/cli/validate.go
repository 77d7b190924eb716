package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/mise/internal/scheduler"
	"github.com/me/mise/internal/tasksfile"
	"github.com/me/mise/pkg/model"
)

// errInvalid is returned after an invalid report has been printed.
var errInvalid = errors.New("task list is invalid")

func newValidateCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate <tasks.yaml>",
		Short: "Check a task file without solving it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := tasksfile.Load(args[0])
			if err != nil {
				return err
			}

			var report *model.ValidationReport
			if client != nil {
				report, err = client.Validate(cmd.Context(), f.Request())
				if err != nil {
					return fmt.Errorf("validate: %w", err)
				}
			} else {
				cfg, err := fileConfig(f)
				if err != nil {
					return err
				}
				report = scheduler.New(cfg, logger).Validate(f.Tasks)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if err := printJSON(out, report); err != nil {
					return err
				}
			} else {
				printReport(out, report)
			}
			if !report.Valid {
				return errInvalid
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}
