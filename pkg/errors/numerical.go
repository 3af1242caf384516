package errors

import "math"

// logFloor bounds the argument of StabilizeLog away from zero.
const logFloor = 1e-10

// maxReported caps how many non-finite cells a NumericalInstabilityError
// carries.
const maxReported = 10

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CheckNumericalStability fails when any of values is NaN or ±Inf. The whole
// slice is attached to the error so the caller can see which score diverged.
func CheckNumericalStability(operation string, values []float64, iteration int) error {
	for _, v := range values {
		if !finite(v) {
			return NewNumericalInstabilityError(operation, values, iteration)
		}
	}
	return nil
}

// CheckScalar is CheckNumericalStability for a single score.
func CheckScalar(operation string, value float64, iteration int) error {
	if finite(value) {
		return nil
	}
	return NewNumericalInstabilityError(operation, []float64{value}, iteration)
}

// CheckMatrix scans a rows×cols matrix and reports the non-finite cells of
// the first row that holds any.
func CheckMatrix(operation string, m interface{ At(int, int) float64 }, rows, cols, iteration int) error {
	for i := 0; i < rows; i++ {
		var bad []float64
		for j := 0; j < cols && len(bad) < maxReported; j++ {
			if v := m.At(i, j); !finite(v) {
				bad = append(bad, v)
			}
		}
		if bad != nil {
			return NewNumericalInstabilityError(operation, bad, iteration)
		}
	}
	return nil
}

// StabilizeLog is math.Log with its argument floored at 1e-10, so a zero
// probability contributes a large but finite cross-entropy term.
func StabilizeLog(p float64) float64 {
	return math.Log(math.Max(p, logFloor))
}
