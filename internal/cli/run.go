package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/mlprep/config"
	"github.com/YuminosukeSato/mlprep/pipeline"
	"github.com/YuminosukeSato/mlprep/report"
)

// NewBuoyCommand creates the buoy command.
func NewBuoyCommand(rootOpts *RootOptions) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "buoy",
		Short: "Run the buoy regression pipeline over a CSV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts, config.PipelineBuoy)
			if err != nil {
				return err
			}
			opts, closeStore, err := pipelineOptions(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			trainer, err := pipeline.NewTrainer(cfg.Model)
			if err != nil {
				return err
			}
			res, err := pipeline.Buoy(cmd.Context(), cfg, data, trainer, opts...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s: %d train, %d test, features %v\n\n",
				res.RunID, len(res.Partition.Train), len(res.Partition.Test), res.Features)
			if err := report.WriteRegressionTable(out, res.Report); err != nil {
				return err
			}
			return writePlots(cmd, res.Plots)
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "buoy CSV file")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

// NewDigitsCommand creates the digits command.
func NewDigitsCommand(rootOpts *RootOptions) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "digits",
		Short: "Run the digit classification pipeline over an IDX archive directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts, config.PipelineDigits)
			if err != nil {
				return err
			}
			opts, closeStore, err := pipelineOptions(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			trainer, err := pipeline.NewTrainer(cfg.Model)
			if err != nil {
				return err
			}
			res, err := pipeline.Digits(cmd.Context(), cfg, data, trainer, opts...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s: %d train, %d test, loss %.4f\n\n",
				res.RunID, res.Train.Len(), res.Test.Len(), res.Evaluation.Loss)
			if err := report.WriteClassificationTable(out, res.Report); err != nil {
				return err
			}
			return writePlots(cmd, res.Plots)
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "directory holding the train and t10k IDX files")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func pipelineOptions(cfg config.Config) ([]pipeline.Option, func(), error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, func() {}, nil
	}
	return []pipeline.Option{pipeline.WithStore(store)}, func() { store.Close() }, nil
}

func writePlots(cmd *cobra.Command, plots []string) error {
	if len(plots) == 0 {
		return nil
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	for _, p := range plots {
		if _, err := fmt.Fprintf(out, "plot %s\n", p); err != nil {
			return err
		}
	}
	return nil
}
