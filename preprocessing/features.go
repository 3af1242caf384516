package preprocessing

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlprep/dataset"
	"github.com/YuminosukeSato/mlprep/pkg/errors"
)

// Matrix gathers the named numeric columns, in order, into a new rows×len(columns)
// matrix.
func Matrix(t *dataset.Table, columns []string) (*mat.Dense, error) {
	if len(columns) == 0 {
		return nil, errors.NewValidationError("features", "at least one column is required", columns)
	}
	rows, _ := t.Shape()
	if rows == 0 {
		return nil, errors.NewModelError("preprocessing.Matrix", "empty data", errors.ErrEmptyData)
	}
	out := mat.NewDense(rows, len(columns), nil)
	for j, name := range columns {
		col, ok := t.Column(name)
		if !ok {
			return nil, errors.NewCleaningError(name, "column not found")
		}
		if col.Kind != dataset.Numeric {
			return nil, errors.NewCleaningError(name, "column is not numeric")
		}
		out.SetCol(j, col.Floats)
	}
	return out, nil
}

// SplitFeatures returns the feature matrix, in the requested column order, and
// the target vector. Both are copies; the table is not aliased.
func SplitFeatures(t *dataset.Table, features []string, target string) (*mat.Dense, *mat.VecDense, error) {
	for _, f := range features {
		if f == target {
			return nil, nil, errors.NewValidationError("features", "target must not also be a feature", target)
		}
	}
	X, err := Matrix(t, features)
	if err != nil {
		return nil, nil, err
	}
	col, ok := t.Column(target)
	if !ok {
		return nil, nil, errors.NewCleaningError(target, "target column not found")
	}
	if col.Kind != dataset.Numeric {
		return nil, nil, errors.NewCleaningError(target, "target column is not numeric")
	}
	y := mat.NewVecDense(len(col.Floats), append([]float64(nil), col.Floats...))
	return X, y, nil
}
