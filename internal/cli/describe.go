package cli

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/mlprep/config"
	"github.com/YuminosukeSato/mlprep/dataset"
	"github.com/YuminosukeSato/mlprep/pkg/log"
	"github.com/YuminosukeSato/mlprep/preprocessing"
	"github.com/YuminosukeSato/mlprep/report"
)

// NewDescribeCommand creates the describe command.
func NewDescribeCommand(rootOpts *RootOptions) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Summarise the columns of a CSV file",
		Long: `Summarise every column of a CSV file after name normalization and
numeric coercion. Missing counts include cells that failed to parse.
No imputation is applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts, config.PipelineBuoy)
			if err != nil {
				return err
			}
			raw, err := dataset.ReadCSV(cmd.Context(), data, dataset.CSVOptions{
				Logger: log.GetLoggerWithName("describe"),
			})
			if err != nil {
				return err
			}
			tbl, _, err := preprocessing.NormalizeColumnNames(raw)
			if err != nil {
				return err
			}
			tbl, _ = preprocessing.CoerceNumeric(tbl, cfg.Cleaning.Numeric)
			return report.WriteSummaryTable(cmd.OutOrStdout(), tbl.Describe())
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "CSV file")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}
