// Package model_selection partitions samples into train, test and validation
// index sets.
package model_selection

import (
	"math"
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlprep/pkg/errors"
)

// Partition is a disjoint split of [0, n) into train and test indices, each
// sorted ascending.
type Partition struct {
	Train []int
	Test  []int
}

// N returns the number of samples the partition covers.
func (p Partition) N() int {
	return len(p.Train) + len(p.Test)
}

// TrainTestSplit holds out round(n*holdout) samples for testing. The choice
// depends only on (n, holdout, seed).
func TrainTestSplit(n int, holdout float64, seed int64) (Partition, error) {
	if n <= 0 {
		return Partition{}, errors.NewModelError("TrainTestSplit", "empty data", errors.ErrEmptyData)
	}
	if holdout < 0 || holdout >= 1 || math.IsNaN(holdout) {
		return Partition{}, errors.NewValidationError("holdout", "must be in [0, 1)", holdout)
	}

	nTest := int(math.Round(float64(n) * holdout))
	if nTest >= n {
		return Partition{}, errors.NewValidationError("holdout", "leaves no training samples", holdout)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	p := Partition{
		Train: append([]int(nil), perm[nTest:]...),
		Test:  append([]int(nil), perm[:nTest]...),
	}
	slices.Sort(p.Train)
	slices.Sort(p.Test)
	return p, nil
}

// ValidationSplit reserves the last round(n*fraction) samples for validation
// without shuffling.
func ValidationSplit(n int, fraction float64) (Partition, error) {
	if fraction < 0 || fraction >= 1 || math.IsNaN(fraction) {
		return Partition{}, errors.NewValidationError("validation_split", "must be in [0, 1)", fraction)
	}
	nVal := int(math.Round(float64(n) * fraction))
	cut := n - nVal
	p := Partition{Train: make([]int, cut), Test: make([]int, nVal)}
	for i := range p.Train {
		p.Train[i] = i
	}
	for i := range p.Test {
		p.Test[i] = cut + i
	}
	return p, nil
}

// Split holds the gathered rows of a Partition.
type Split struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest *mat.Dense
}

// Apply gathers the train and test rows of X and Y into new matrices. Y may be
// a *mat.VecDense.
func (p Partition) Apply(X, Y mat.Matrix) (Split, error) {
	xr, _ := X.Dims()
	yr, _ := Y.Dims()
	if xr != p.N() {
		return Split{}, errors.NewDimensionError("Partition.Apply", p.N(), xr, 0)
	}
	if yr != xr {
		return Split{}, errors.NewDimensionError("Partition.Apply", xr, yr, 0)
	}
	return Split{
		XTrain: Rows(X, p.Train),
		XTest:  Rows(X, p.Test),
		YTrain: Rows(Y, p.Train),
		YTest:  Rows(Y, p.Test),
	}, nil
}

// ApplyVec gathers the train and test entries of y.
func (p Partition) ApplyVec(y mat.Vector) (train, test *mat.VecDense, err error) {
	if y.Len() != p.N() {
		return nil, nil, errors.NewDimensionError("Partition.ApplyVec", p.N(), y.Len(), 0)
	}
	gather := func(idx []int) *mat.VecDense {
		out := make([]float64, len(idx))
		for i, j := range idx {
			out[i] = y.AtVec(j)
		}
		if len(out) == 0 {
			return &mat.VecDense{}
		}
		return mat.NewVecDense(len(out), out)
	}
	return gather(p.Train), gather(p.Test), nil
}

// Rows copies the rows of m at idx into a new matrix. An empty idx yields an
// empty matrix.
func Rows(m mat.Matrix, idx []int) *mat.Dense {
	_, c := m.Dims()
	if len(idx) == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(len(idx), c, nil)
	for i, j := range idx {
		for k := 0; k < c; k++ {
			out.Set(i, k, m.At(j, k))
		}
	}
	return out
}
