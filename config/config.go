// Package config holds the run configuration shared by every pipeline stage.
//
// A Config is built once, from a default plus an optional YAML overlay, and
// then passed by value. Stages never modify it.
package config

import (
	"bytes"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/mlprep/core/model"
	"github.com/YuminosukeSato/mlprep/pkg/errors"
)

// MissingColumnPolicy decides what cleaning does when a nominated column is
// absent from the source.
type MissingColumnPolicy string

const (
	// FailFast aborts cleaning with a CleaningError.
	FailFast MissingColumnPolicy = "fail_fast"
	// SkipWithReport records the column in the clean report, logs a warning
	// and carries on without it.
	SkipWithReport MissingColumnPolicy = "skip_with_report"
)

// ImputeStrategy is how missing values in a column are resolved.
type ImputeStrategy string

const (
	// ImputeInterpolate fills gaps linearly across row order. Leading and
	// trailing gaps take the nearest observed value.
	ImputeInterpolate ImputeStrategy = "interpolate"
	// ImputeMean fills gaps with the mean of the observed values.
	ImputeMean ImputeStrategy = "mean"
	// ImputeNone leaves gaps in place.
	ImputeNone ImputeStrategy = "none"
)

// Pipeline names.
const (
	PipelineBuoy   = "buoy"
	PipelineDigits = "digits"
)

// Capability names accepted in Config.Model.
const (
	ModelLinear  = "linear"
	ModelSoftmax = "softmax"
)

// DateConfig derives a date column from year, month and day columns.
type DateConfig struct {
	Year  string `yaml:"year" json:"year"`
	Month string `yaml:"month" json:"month"`
	Day   string `yaml:"day" json:"day"`
	Name  string `yaml:"name" json:"name"`
}

// CleaningConfig drives the tabular cleaning stage.
type CleaningConfig struct {
	// Numeric lists the columns coerced to float. Unparseable cells become
	// missing.
	Numeric []string `yaml:"numeric" json:"numeric"`

	// Exclude lists columns dropped after coercion.
	Exclude []string `yaml:"exclude" json:"exclude"`

	// Impute overrides DefaultImpute per column.
	Impute map[string]ImputeStrategy `yaml:"impute" json:"impute"`

	DefaultImpute  ImputeStrategy      `yaml:"default_impute" json:"default_impute"`
	MissingColumns MissingColumnPolicy `yaml:"missing_columns" json:"missing_columns"`

	// Date is optional.
	Date *DateConfig `yaml:"date,omitempty" json:"date,omitempty"`
}

// StrategyFor returns the imputation strategy for column.
func (c CleaningConfig) StrategyFor(column string) ImputeStrategy {
	if s, ok := c.Impute[column]; ok {
		return s
	}
	if c.DefaultImpute == "" {
		return ImputeNone
	}
	return c.DefaultImpute
}

// ScalingConfig selects the feature scaler: "standard", "minmax" or "none".
type ScalingConfig struct {
	Method string `yaml:"method" json:"method"`
}

// ImageConfig drives pixel normalization and label encoding.
type ImageConfig struct {
	MaxValue float64 `yaml:"max_value" json:"max_value"`
	Classes  int     `yaml:"classes" json:"classes"`
}

// OutputConfig names optional sinks. Empty values disable the sink.
type OutputConfig struct {
	PlotDir  string `yaml:"plot_dir" json:"plot_dir"`
	Store    string `yaml:"store" json:"store"`
	ModelOut string `yaml:"model_out" json:"model_out"`
}

// Config is the full run configuration.
type Config struct {
	Pipeline string  `yaml:"pipeline" json:"pipeline"`
	Seed     int64   `yaml:"seed" json:"seed"`
	Holdout  float64 `yaml:"holdout" json:"holdout"`

	Cleaning CleaningConfig `yaml:"cleaning" json:"cleaning"`
	Features []string       `yaml:"features" json:"features"`
	Target   string         `yaml:"target" json:"target"`
	Scaling  ScalingConfig  `yaml:"scaling" json:"scaling"`
	Images   ImageConfig    `yaml:"images" json:"images"`

	Model  string            `yaml:"model" json:"model"`
	Train  model.TrainConfig `yaml:"train" json:"train"`
	Search model.HyperSpace  `yaml:"search" json:"search"`

	Output OutputConfig `yaml:"output" json:"output"`
}

// DefaultBuoy returns the configuration of the buoy regression pipeline.
func DefaultBuoy() Config {
	return Config{
		Pipeline: PipelineBuoy,
		Seed:     42,
		Holdout:  0.2,
		Cleaning: CleaningConfig{
			Numeric: []string{
				"Latitude", "Longitude",
				"Zonal Winds", "Meridional Winds", "Humidity", "Air Temp", "Sea Surface Temp",
			},
			Exclude:        []string{"Humidity"},
			Impute:         map[string]ImputeStrategy{},
			DefaultImpute:  ImputeMean,
			MissingColumns: SkipWithReport,
			Date:           &DateConfig{Year: "Year", Month: "Month", Day: "Day", Name: "Date"},
		},
		Features: []string{"Latitude", "Longitude", "Zonal Winds", "Meridional Winds", "Air Temp"},
		Target:   "Sea Surface Temp",
		Scaling:  ScalingConfig{Method: "standard"},
		Model:    ModelLinear,
		// linear.Regressor reads none of these. BatchSize and Epochs stay
		// positive so an iterative capability selected via Model is valid.
		Train: model.TrainConfig{
			BatchSize: 32,
			Epochs:    1000,
			Seed:      42,
		},
	}
}

// DefaultDigits returns the configuration of the digit classification
// pipeline.
func DefaultDigits() Config {
	return Config{
		Pipeline: PipelineDigits,
		Seed:     42,
		Holdout:  0,
		Scaling:  ScalingConfig{Method: "none"},
		Images:   ImageConfig{MaxValue: 255, Classes: 10},
		Model:    ModelSoftmax,
		Train: model.TrainConfig{
			Hidden:          []int{128},
			Dropout:         0.5,
			L2:              1e-4,
			Optimizer:       "sgd",
			LearningRate:    0.1,
			BatchSize:       128,
			Epochs:          10,
			ValidationSplit: 0.1,
			Seed:            42,
		},
		Search: model.HyperSpace{
			Floats:    []model.FloatRange{{Name: "dropout", Min: 0.1, Max: 0.5, Step: 0.1}},
			Ints:      []model.IntRange{{Name: "units", Min: 32, Max: 512, Step: 32}},
			MaxTrials: 7,
			Objective: "val_accuracy",
		},
	}
}

// Default returns the default configuration for the named pipeline.
func Default(pipeline string) (Config, error) {
	switch pipeline {
	case PipelineBuoy:
		return DefaultBuoy(), nil
	case PipelineDigits:
		return DefaultDigits(), nil
	default:
		return Config{}, errors.NewValidationError("pipeline", "must be buoy or digits", pipeline)
	}
}

// Load overlays the YAML file at path on base and validates the result.
// Keys absent from the file keep their base value. An empty path returns base
// after validation.
func Load(path string, base Config) (Config, error) {
	if path == "" {
		return base, Validate(base)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	return Parse(data, base)
}

// Parse overlays YAML data on base and validates the result.
func Parse(data []byte, base Config) (Config, error) {
	cfg := base.clone()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// clone deep-copies the slices and maps so an overlay never writes through
// to the defaults.
func (c Config) clone() Config {
	out := c
	out.Cleaning.Numeric = append([]string(nil), c.Cleaning.Numeric...)
	out.Cleaning.Exclude = append([]string(nil), c.Cleaning.Exclude...)
	out.Cleaning.Impute = make(map[string]ImputeStrategy, len(c.Cleaning.Impute))
	for k, v := range c.Cleaning.Impute {
		out.Cleaning.Impute[k] = v
	}
	if c.Cleaning.Date != nil {
		d := *c.Cleaning.Date
		out.Cleaning.Date = &d
	}
	out.Features = append([]string(nil), c.Features...)
	out.Train.Hidden = append([]int(nil), c.Train.Hidden...)
	out.Search.Floats = append([]model.FloatRange(nil), c.Search.Floats...)
	out.Search.Ints = append([]model.IntRange(nil), c.Search.Ints...)
	return out
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "encode config")
	}
	return out, nil
}
