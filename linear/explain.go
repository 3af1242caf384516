package linear

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mlprep/core/model"
	"github.com/YuminosukeSato/mlprep/pkg/errors"
)

// Attributions returns the exact additive attribution of a linear model:
// feature j contributes w_j·(x_ij − mean_j(background)) to row i, and the
// base value is the prediction at the background mean.
func Attributions(a *Artifact, X, background mat.Matrix) (model.Attribution, error) {
	if a == nil || !a.IsFitted() {
		return model.Attribution{}, errors.NewNotFittedError("linear.Regressor", "Attributions")
	}
	r, c := X.Dims()
	br, bc := background.Dims()
	switch {
	case r == 0 || br == 0:
		return model.Attribution{}, errors.NewModelError("linear.Attributions", "empty data", errors.ErrEmptyData)
	case c != a.NFeatures:
		return model.Attribution{}, errors.NewDimensionError("linear.Attributions", a.NFeatures, c, 1)
	case bc != a.NFeatures:
		return model.Attribution{}, errors.NewDimensionError("linear.Attributions", a.NFeatures, bc, 1)
	}

	means := make([]float64, c)
	col := make([]float64, br)
	base := a.Intercept
	for j := range means {
		mat.Col(col, j, background)
		means[j] = stat.Mean(col, nil)
		base += a.Weights[j] * means[j]
	}

	values := mat.NewDense(r, c, nil)
	values.Apply(func(i, j int, _ float64) float64 {
		return a.Weights[j] * (X.At(i, j) - means[j])
	}, values)
	return model.Attribution{Values: values, Base: base}, nil
}

// Explain implements model.Explainer.
func (a *Artifact) Explain(X, background mat.Matrix) (model.Attribution, error) {
	return Attributions(a, X, background)
}
