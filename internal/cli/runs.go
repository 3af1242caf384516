package cli

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/mlprep/pkg/errors"
	"github.com/YuminosukeSato/mlprep/report"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	var pipelineName string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs recorded in the --store ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rootOpts.StorePath == "" {
				return errors.NewValidationError("store", "runs needs --store", "")
			}
			store, err := report.Open(rootOpts.StorePath)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), pipelineName)
			if err != nil {
				return err
			}
			return report.WriteRunsTable(cmd.OutOrStdout(), runs)
		},
	}

	cmd.Flags().StringVar(&pipelineName, "pipeline", "", "only list runs of this pipeline")
	return cmd
}
