// Package model defines the contract between the preparation pipelines and
// the model capability that fits them.
//
// The pipelines never look inside a trained model. They hand a Trainer
// features and targets, get back an opaque Artifact, and ask the Trainer to
// predict and evaluate with it. Any backend that satisfies Trainer can be
// swapped in through configuration alone.
package model

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// Artifact is the opaque state produced by Trainer.Fit.
type Artifact interface {
	// Name identifies the capability that produced the artifact.
	Name() string
}

// TrainConfig is everything a capability accepts when fitting.
type TrainConfig struct {
	// Hidden is the layer topology as units per hidden layer. Capabilities
	// without hidden layers ignore it.
	Hidden []int `yaml:"hidden" json:"hidden"`

	// Dropout is the dropout rate applied after each hidden layer.
	Dropout float64 `yaml:"dropout" json:"dropout"`

	// L2 is the weight-decay regularization rate.
	L2 float64 `yaml:"l2" json:"l2"`

	Optimizer       string  `yaml:"optimizer" json:"optimizer"`
	LearningRate    float64 `yaml:"learning_rate" json:"learning_rate"`
	BatchSize       int     `yaml:"batch_size" json:"batch_size"`
	Epochs          int     `yaml:"epochs" json:"epochs"`
	ValidationSplit float64 `yaml:"validation_split" json:"validation_split"`
	Seed            int64   `yaml:"seed" json:"seed"`
}

// Evaluation is the result of Trainer.Evaluate.
type Evaluation struct {
	Loss    float64
	Metrics map[string]float64
}

// History holds per-epoch training curves. Validation slices are empty when
// no validation split was used.
type History struct {
	Loss        []float64
	Accuracy    []float64
	ValLoss     []float64
	ValAccuracy []float64
}

// HistoryProvider is implemented by artifacts that record training curves.
type HistoryProvider interface {
	History() History
}

// Attribution splits each prediction into per-feature contributions.
// Row i satisfies Base + Σ_j Values[i, j] = prediction i.
type Attribution struct {
	Values *mat.Dense
	Base   float64
}

// Explainer is implemented by artifacts that can attribute their predictions
// to input features relative to a background sample, usually the training
// rows.
type Explainer interface {
	Explain(X, background mat.Matrix) (Attribution, error)
}

// Trainer is the model capability consumed by the pipelines.
type Trainer interface {
	// Fit trains on X (n×features) and Y (n×targets) and returns the artifact.
	Fit(ctx context.Context, X, Y mat.Matrix, cfg TrainConfig) (Artifact, error)

	// Predict returns one row of outputs per row of X.
	Predict(ctx context.Context, a Artifact, X mat.Matrix) (mat.Matrix, error)

	// Evaluate scores the artifact against known targets.
	Evaluate(ctx context.Context, a Artifact, X, Y mat.Matrix) (Evaluation, error)
}
