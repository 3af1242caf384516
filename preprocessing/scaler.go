package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mlprep/core/model"
	"github.com/YuminosukeSato/mlprep/pkg/errors"
)

// Scaler is a fitted feature transformation. Fit learns statistics from the
// training rows only; Transform applies them without changing them.
type Scaler interface {
	model.InverseTransformer
}

// NewScaler returns the scaler for a ScalingConfig method name. "none" and ""
// return nil.
func NewScaler(method string) (Scaler, error) {
	switch method {
	case "standard":
		return NewStandardScalerDefault(), nil
	case "minmax":
		return NewMinMaxScalerDefault(), nil
	case "none", "":
		return nil, nil
	default:
		return nil, errors.NewValidationError("scaling.method", "must be standard, minmax or none", method)
	}
}

// StandardScaler centres each feature on its training mean and divides by its
// training standard deviation (population form, ddof=0).
type StandardScaler struct {
	model.BaseEstimator

	Mean      []float64
	Scale     []float64
	NFeatures int

	WithMean bool
	WithStd  bool
}

// NewStandardScaler creates a StandardScaler.
//
//	scaler := preprocessing.NewStandardScalerDefault()
//	if err := scaler.Fit(XTrain); err != nil { ... }
//	XTest, err := scaler.Transform(XTest)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{WithMean: withMean, WithStd: withStd}
}

// NewStandardScalerDefault centres and scales.
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit learns per-column mean and standard deviation. A zero-variance column
// gets scale 1.
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	if err := errors.CheckMatrix("StandardScaler.Fit", X, r, c, 0); err != nil {
		return err
	}

	s.NFeatures = c
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, variance := stat.PopMeanVariance(col, nil)
		if s.WithMean {
			s.Mean[j] = mean
		}
		s.Scale[j] = 1
		if s.WithStd {
			if std := math.Sqrt(variance); std >= 1e-8 {
				s.Scale[j] = std
			}
		}
	}

	s.SetFitted()
	return nil
}

// Transform standardizes X with the fitted statistics.
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := ready(&s.BaseEstimator, "StandardScaler", "Transform", s.NFeatures, X); err != nil {
		return nil, err
	}
	return perColumn(X, func(j int, v float64) float64 { return (v - s.Mean[j]) / s.Scale[j] }), nil
}

// FitTransform fits on X and transforms it.
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	return fitThenTransform(s, X)
}

// InverseTransform maps standardized values back to the original scale.
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := ready(&s.BaseEstimator, "StandardScaler", "InverseTransform", s.NFeatures, X); err != nil {
		return nil, err
	}
	return perColumn(X, func(j int, v float64) float64 { return v*s.Scale[j] + s.Mean[j] }), nil
}

func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.WithMean, s.WithStd, s.NFeatures)
}

// MinMaxScaler maps each feature linearly onto FeatureRange using the training
// minimum and maximum.
type MinMaxScaler struct {
	model.BaseEstimator

	DataMin   []float64
	DataMax   []float64
	Scale     []float64 // DataMax - DataMin, or 1 for constant columns
	NFeatures int

	FeatureRange [2]float64
}

// NewMinMaxScaler creates a MinMaxScaler targeting featureRange.
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{FeatureRange: featureRange}
}

// NewMinMaxScalerDefault targets [0, 1].
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0, 1})
}

// Fit learns per-column minimum and maximum.
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("MinMaxScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	if m.FeatureRange[1] <= m.FeatureRange[0] {
		return errors.NewValidationError("feature_range", "max must exceed min", m.FeatureRange)
	}

	m.NFeatures = c
	m.DataMin = make([]float64, c)
	m.DataMax = make([]float64, c)
	m.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		m.DataMin[j] = floats.Min(col)
		m.DataMax[j] = floats.Max(col)
		m.Scale[j] = m.DataMax[j] - m.DataMin[j]
		if math.Abs(m.Scale[j]) < 1e-8 {
			m.Scale[j] = 1
		}
	}

	m.SetFitted()
	return nil
}

// Transform rescales X with the fitted bounds. Values outside the training
// range map outside FeatureRange.
func (m *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := ready(&m.BaseEstimator, "MinMaxScaler", "Transform", m.NFeatures, X); err != nil {
		return nil, err
	}
	lo, width := m.FeatureRange[0], m.FeatureRange[1]-m.FeatureRange[0]
	return perColumn(X, func(j int, v float64) float64 { return (v-m.DataMin[j])/m.Scale[j]*width + lo }), nil
}

// FitTransform fits on X and transforms it.
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	return fitThenTransform(m, X)
}

// InverseTransform maps scaled values back to the original range.
func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := ready(&m.BaseEstimator, "MinMaxScaler", "InverseTransform", m.NFeatures, X); err != nil {
		return nil, err
	}
	lo, width := m.FeatureRange[0], m.FeatureRange[1]-m.FeatureRange[0]
	return perColumn(X, func(j int, v float64) float64 { return (v-lo)/width*m.Scale[j] + m.DataMin[j] }), nil
}

func (m *MinMaxScaler) String() string {
	if !m.IsFitted() {
		return fmt.Sprintf("MinMaxScaler(feature_range=[%g, %g])", m.FeatureRange[0], m.FeatureRange[1])
	}
	return fmt.Sprintf("MinMaxScaler(feature_range=[%g, %g], n_features=%d)",
		m.FeatureRange[0], m.FeatureRange[1], m.NFeatures)
}

// ready rejects an unfitted scaler or a matrix with the wrong feature count.
func ready(est *model.BaseEstimator, scaler, method string, nFeatures int, X mat.Matrix) error {
	if !est.IsFitted() {
		return errors.NewNotFittedError(scaler, method)
	}
	if _, c := X.Dims(); c != nFeatures {
		return errors.NewDimensionError(scaler+"."+method, nFeatures, c, 1)
	}
	return nil
}

// perColumn returns a copy of X with f applied to every cell.
func perColumn(X mat.Matrix, f func(j int, v float64) float64) *mat.Dense {
	out := mat.DenseCopyOf(X)
	out.Apply(func(_, j int, v float64) float64 { return f(j, v) }, out)
	return out
}

func fitThenTransform(t model.Transformer, X mat.Matrix) (mat.Matrix, error) {
	if err := t.Fit(X); err != nil {
		return nil, err
	}
	return t.Transform(X)
}
