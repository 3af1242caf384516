// Package cli wires the preparation pipelines to the mlprep command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/mlprep/config"
	"github.com/YuminosukeSato/mlprep/pkg/errors"
	"github.com/YuminosukeSato/mlprep/pkg/log"
	"github.com/YuminosukeSato/mlprep/report"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	PlotDir    string
	StorePath  string
	ModelOut   string
}

// NewRootCommand creates the root command for the mlprep CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "mlprep",
		Short: "Data preparation pipelines for buoy regression and digit classification",
		Long: `mlprep ingests raw data, cleans and encodes it, partitions it, fits a
model capability and reports evaluation metrics.

The buoy pipeline reads tabular CSV sensor data and fits a regressor.
The digits pipeline reads IDX image archives and fits a classifier.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return log.SetupLogger(opts.LogLevel, opts.LogFormat)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "", "YAML file overlaid on the pipeline defaults")
	flags.StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	flags.StringVar(&opts.LogFormat, "log-format", "console", "log format (console|json)")
	flags.StringVar(&opts.PlotDir, "plots", "", "directory for rendered plots")
	flags.StringVar(&opts.StorePath, "store", "", "SQLite file recording runs")
	flags.StringVar(&opts.ModelOut, "model-out", "", "file the fitted model is saved to")

	cmd.AddCommand(NewBuoyCommand(opts))
	cmd.AddCommand(NewDigitsCommand(opts))
	cmd.AddCommand(NewDescribeCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))

	return cmd
}

// loadConfig builds the configuration of the named pipeline: defaults, then
// the --config overlay, then the output flags.
func loadConfig(opts *RootOptions, pipeline string) (config.Config, error) {
	base, err := config.Default(pipeline)
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(opts.ConfigPath, base)
	if err != nil {
		return config.Config{}, err
	}
	if cfg.Pipeline != pipeline {
		return config.Config{}, errors.NewValidationError("pipeline",
			"config file is for a different pipeline than the command", cfg.Pipeline)
	}
	if opts.PlotDir != "" {
		cfg.Output.PlotDir = opts.PlotDir
	}
	if opts.StorePath != "" {
		cfg.Output.Store = opts.StorePath
	}
	if opts.ModelOut != "" {
		cfg.Output.ModelOut = opts.ModelOut
	}
	return cfg, nil
}

// openStore opens the run ledger named by cfg. It returns nil when none is
// configured.
func openStore(cfg config.Config) (*report.RunStore, error) {
	if cfg.Output.Store == "" {
		return nil, nil
	}
	return report.Open(cfg.Output.Store)
}
