// Package linear provides an ordinary least squares Trainer solved by the
// normal equation.
package linear

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlprep/core/model"
	"github.com/YuminosukeSato/mlprep/core/parallel"
	"github.com/YuminosukeSato/mlprep/metrics"
	"github.com/YuminosukeSato/mlprep/pkg/errors"
)

// Name identifies artifacts produced by Regressor.
const Name = "linear"

// rows at or below this count are copied sequentially
const parallelThreshold = 1000

// Regressor fits y = Xw + b. It ignores every TrainConfig field; there is
// nothing to tune.
type Regressor struct{}

// NewRegressor returns a Regressor.
func NewRegressor() *Regressor {
	return &Regressor{}
}

// Artifact is a fitted linear model. Its fields are exported so it can be
// persisted with model.SaveModel.
type Artifact struct {
	model.BaseEstimator
	Weights   []float64
	Intercept float64
	NFeatures int
}

// Name implements model.Artifact.
func (a *Artifact) Name() string { return Name }

// Fit solves the normal equation w = (XᵀX)⁻¹Xᵀy over X augmented with a
// column of ones. Y must be a single column.
func (Regressor) Fit(ctx context.Context, X, Y mat.Matrix, _ model.TrainConfig) (model.Artifact, error) {
	r, c := X.Dims()
	ry, cy := Y.Dims()

	if r == 0 || c == 0 {
		return nil, errors.NewModelError("linear.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return nil, errors.NewDimensionError("linear.Fit", r, ry, 0)
	}
	if cy != 1 {
		return nil, errors.NewValueError("linear.Fit", "y must be a column vector")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// [1, X]
	design := mat.NewDense(r, c+1, nil)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			design.Set(i, 0, 1.0)
			for j := 0; j < c; j++ {
				design.Set(i, j+1, X.At(i, j))
			}
		}
	})

	var xtx mat.Dense
	xtx.Mul(design.T(), design)

	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return nil, errors.NewModelError("linear.Fit", "singular matrix", errors.ErrSingularMatrix)
	}

	y := mat.NewVecDense(r, mat.Col(nil, 0, Y))
	var xty mat.VecDense
	xty.MulVec(design.T(), y)

	w := mat.NewVecDense(c+1, nil)
	w.MulVec(&inv, &xty)
	if err := errors.CheckMatrix("linear.Fit", w, c+1, 1, 0); err != nil {
		return nil, err
	}

	a := &Artifact{
		Intercept: w.AtVec(0),
		Weights:   make([]float64, c),
		NFeatures: c,
	}
	for j := 0; j < c; j++ {
		a.Weights[j] = w.AtVec(j + 1)
	}
	a.SetFitted()
	return a, nil
}

// Predict returns an n×1 matrix of predictions.
func (Regressor) Predict(ctx context.Context, art model.Artifact, X mat.Matrix) (mat.Matrix, error) {
	a, err := fitted(art, "Predict")
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	if r == 0 {
		return nil, errors.NewModelError("linear.Predict", "empty data", errors.ErrEmptyData)
	}
	if c != a.NFeatures {
		return nil, errors.NewDimensionError("linear.Predict", a.NFeatures, c, 1)
	}

	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		pred := a.Intercept
		for j := 0; j < c; j++ {
			pred += X.At(i, j) * a.Weights[j]
		}
		out.Set(i, 0, pred)
	}
	return out, nil
}

// Evaluate reports MSE as the loss plus mse, rmse, mae and r2.
func (reg Regressor) Evaluate(ctx context.Context, art model.Artifact, X, Y mat.Matrix) (model.Evaluation, error) {
	pred, err := reg.Predict(ctx, art, X)
	if err != nil {
		return model.Evaluation{}, err
	}
	yTrue, err := asVector(Y)
	if err != nil {
		return model.Evaluation{}, err
	}
	rep, err := metrics.NewRegressionReport(yTrue, mat.NewVecDense(yTrue.Len(), mat.Col(nil, 0, pred)))
	if err != nil {
		return model.Evaluation{}, err
	}
	return model.Evaluation{Loss: rep.MSE, Metrics: rep.Map()}, nil
}

func fitted(art model.Artifact, method string) (*Artifact, error) {
	a, ok := art.(*Artifact)
	if !ok || a == nil {
		return nil, errors.NewValueError("linear."+method, "artifact was not produced by linear.Regressor")
	}
	if !a.IsFitted() {
		return nil, errors.NewNotFittedError("linear.Regressor", method)
	}
	return a, nil
}

func asVector(Y mat.Matrix) (*mat.VecDense, error) {
	r, c := Y.Dims()
	if c != 1 {
		return nil, errors.NewValueError("linear.Evaluate", "y must be a column vector")
	}
	return mat.NewVecDense(r, mat.Col(nil, 0, Y)), nil
}
