// Package metrics scores predictions against known targets. Every function
// is pure: no I/O, and inputs are never modified.
package metrics

import (
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mlprep/pkg/errors"
)

func checkPair(op string, yTrue, yPred mat.Vector) (int, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// MSE is the mean squared error.
func MSE(yTrue, yPred mat.Vector) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += d * d
	}
	return sum / float64(n), nil
}

// MSEMatrix is MSE over n×1 matrices, the shape a Trainer predicts in.
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, err := column("MSEMatrix", yTrue)
	if err != nil {
		return 0, err
	}
	p, err := column("MSEMatrix", yPred)
	if err != nil {
		return 0, err
	}
	return MSE(t, p)
}

// column views an n×1 matrix as a vector.
func column(op string, m mat.Matrix) (mat.Vector, error) {
	if v, ok := m.(mat.Vector); ok {
		return v, nil
	}
	r, c := m.Dims()
	if c != 1 {
		return nil, errors.NewDimensionError(op, 1, c, 1)
	}
	return mat.NewVecDense(r, mat.Col(nil, 0, m)), nil
}

// RMSE is the square root of MSE.
func RMSE(yTrue, yPred mat.Vector) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE is the mean absolute error.
func MAE(yTrue, yPred mat.Vector) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score is the coefficient of determination. When yTrue has no variance
// the score is undefined: it is reported as 1 for a perfect prediction and 0
// otherwise, with an UndefinedMetricWarning.
func R2Score(yTrue, yPred mat.Vector) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	truth := mat.Col(nil, 0, yTrue)
	mean := stat.Mean(truth, nil)

	var tss, rss float64
	for i := 0; i < n; i++ {
		tss += (truth[i] - mean) * (truth[i] - mean)
		d := truth[i] - yPred.AtVec(i)
		rss += d * d
	}
	if tss == 0 {
		score := 0.0
		if rss == 0 {
			score = 1
		}
		errors.Warn(errors.NewUndefinedMetricWarning("r2_score", "y_true has zero variance", score))
		return score, nil
	}
	return 1 - rss/tss, nil
}

// MAPE is the mean absolute percentage error over samples with a non-zero
// target.
func MAPE(yTrue, yPred mat.Vector) (float64, error) {
	n, err := checkPair("MAPE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	valid := 0
	for i := 0; i < n; i++ {
		t := yTrue.AtVec(i)
		if t == 0 {
			continue
		}
		sum += math.Abs(t-yPred.AtVec(i)) / math.Abs(t)
		valid++
	}
	if valid == 0 {
		return 0, errors.NewValueError("MAPE", "all targets are zero")
	}
	return sum / float64(valid) * 100, nil
}

// RegressionReport is the summary of a regression evaluation.
type RegressionReport struct {
	MSE  float64
	RMSE float64
	MAE  float64
	R2   float64
	N    int
}

// NewRegressionReport scores yPred against yTrue.
func NewRegressionReport(yTrue, yPred mat.Vector) (RegressionReport, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return RegressionReport{}, err
	}
	mae, err := MAE(yTrue, yPred)
	if err != nil {
		return RegressionReport{}, err
	}
	r2, err := R2Score(yTrue, yPred)
	if err != nil {
		return RegressionReport{}, err
	}
	if err := errors.CheckNumericalStability("metrics.NewRegressionReport", []float64{mse, mae, r2}, 0); err != nil {
		return RegressionReport{}, err
	}
	return RegressionReport{MSE: mse, RMSE: math.Sqrt(mse), MAE: mae, R2: r2, N: yTrue.Len()}, nil
}

// Map returns the scores keyed by metric name.
func (r RegressionReport) Map() map[string]float64 {
	return map[string]float64{
		"mse":  r.MSE,
		"rmse": r.RMSE,
		"mae":  r.MAE,
		"r2":   r.R2,
	}
}

// MarshalZerologObject adds the scores to a zerolog event.
func (r RegressionReport) MarshalZerologObject(e *zerolog.Event) {
	e.Float64("mse", r.MSE).
		Float64("rmse", r.RMSE).
		Float64("mae", r.MAE).
		Float64("r2", r.R2).
		Int("n", r.N)
}
