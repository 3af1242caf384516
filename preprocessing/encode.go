package preprocessing

import (
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlprep/pkg/errors"
)

// OneHot encodes labels as an N×k indicator matrix with exactly one 1 per
// row. Labels must lie in [0, k).
func OneHot(labels []int, k int) (*mat.Dense, error) {
	if k < 2 {
		return nil, errors.NewValidationError("classes", "must be at least 2", k)
	}
	if len(labels) == 0 {
		return nil, errors.NewModelError("OneHot", "empty data", errors.ErrEmptyData)
	}
	out := mat.NewDense(len(labels), k, nil)
	for i, l := range labels {
		if l < 0 || l >= k {
			return nil, errors.NewValidationError("label", "out of range [0,"+itoa(k)+") at row "+itoa(i), l)
		}
		out.Set(i, l, 1)
	}
	return out, nil
}

// Argmax returns the column index of the largest value in each row. Ties go
// to the lowest index. It accepts one-hot and probability rows alike.
func Argmax(m mat.Matrix) []int {
	r, c := m.Dims()
	out := make([]int, r)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, m)
		out[i] = floats.MaxIdx(row)
	}
	return out
}

// DecodeOneHot inverts OneHot. Rows that are not strict indicator rows are
// rejected; use Argmax for scores.
func DecodeOneHot(m mat.Matrix) ([]int, error) {
	r, c := m.Dims()
	out := make([]int, r)
	for i := 0; i < r; i++ {
		hot := -1
		for j := 0; j < c; j++ {
			switch v := m.At(i, j); v {
			case 0:
			case 1:
				if hot >= 0 {
					return nil, errors.NewValueError("DecodeOneHot", "row "+itoa(i)+" has more than one hot column")
				}
				hot = j
			default:
				return nil, errors.NewValueError("DecodeOneHot", "row "+itoa(i)+" is not an indicator row")
			}
		}
		if hot < 0 {
			return nil, errors.NewValueError("DecodeOneHot", "row "+itoa(i)+" has no hot column")
		}
		out[i] = hot
	}
	return out, nil
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
