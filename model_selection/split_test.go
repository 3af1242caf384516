package model_selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlprep/pkg/errors"
)

func TestTrainTestSplitSizes(t *testing.T) {
	tests := []struct {
		n       int
		holdout float64
		test    int
	}{
		{10, 0.2, 2},
		{11, 0.2, 2},
		{13, 0.2, 3},
		{5, 0, 0},
		{100, 0.25, 25},
	}
	for _, tt := range tests {
		p, err := TrainTestSplit(tt.n, tt.holdout, 42)
		require.NoError(t, err)
		assert.Len(t, p.Test, tt.test, "n=%d holdout=%v", tt.n, tt.holdout)
		assert.Len(t, p.Train, tt.n-tt.test)
	}
}

func TestTrainTestSplitDisjointExhaustiveDeterministic(t *testing.T) {
	p1, err := TrainTestSplit(50, 0.2, 42)
	require.NoError(t, err)
	p2, err := TrainTestSplit(50, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, p1, p2, "same seed must give the same partition")

	seen := make(map[int]int)
	for _, i := range p1.Train {
		seen[i]++
	}
	for _, i := range p1.Test {
		seen[i]++
	}
	assert.Len(t, seen, 50)
	for i := 0; i < 50; i++ {
		assert.Equal(t, 1, seen[i], "index %d", i)
	}
	assert.IsNonDecreasing(t, p1.Train)
	assert.IsNonDecreasing(t, p1.Test)

	p3, err := TrainTestSplit(50, 0.2, 7)
	require.NoError(t, err)
	assert.NotEqual(t, p1.Test, p3.Test)
}

func TestTrainTestSplitErrors(t *testing.T) {
	_, err := TrainTestSplit(0, 0.2, 1)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	for _, h := range []float64{-0.1, 1, 1.5} {
		_, err := TrainTestSplit(10, h, 1)
		var vErr *errors.ValidationError
		assert.True(t, errors.As(err, &vErr), "holdout %v", h)
	}

	_, err = TrainTestSplit(1, 0.6, 1)
	assert.Error(t, err, "round(0.6) leaves nothing to train on")
}

func TestValidationSplit(t *testing.T) {
	p, err := ValidationSplit(10, 0.1)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8}, p.Train)
	assert.Equal(t, []int{9}, p.Test)

	p, err = ValidationSplit(4, 0)
	require.NoError(t, err)
	assert.Len(t, p.Train, 4)
	assert.Empty(t, p.Test)

	_, err = ValidationSplit(4, 1)
	assert.Error(t, err)
}

func TestPartitionApply(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		0, 0,
		1, 10,
		2, 20,
		3, 30,
	})
	y := mat.NewVecDense(4, []float64{0, 1, 2, 3})
	p := Partition{Train: []int{0, 2, 3}, Test: []int{1}}

	s, err := p.Apply(X, y)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 20}, mat.Row(nil, 1, s.XTrain))
	assert.Equal(t, []float64{1, 10}, mat.Row(nil, 0, s.XTest))
	assert.Equal(t, 3.0, s.YTrain.At(2, 0))

	s.XTrain.Set(0, 0, 99)
	assert.Equal(t, 0.0, X.At(0, 0), "Apply must not alias its input")

	train, test, err := p.ApplyVec(y)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2, 3}, train.RawVector().Data)
	assert.Equal(t, []float64{1}, test.RawVector().Data)

	_, err = p.Apply(mat.NewDense(3, 2, nil), y)
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
	_, _, err = p.ApplyVec(mat.NewVecDense(2, nil))
	assert.Error(t, err)
}
