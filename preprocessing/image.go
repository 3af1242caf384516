package preprocessing

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlprep/core/parallel"
	"github.com/YuminosukeSato/mlprep/dataset"
	"github.com/YuminosukeSato/mlprep/pkg/errors"
)

// pixelParallelThreshold is the sample count above which normalization is
// split across cores.
const pixelParallelThreshold = 2048

// ImageTensor is a batch of single-channel images scaled to [0, 1], stored
// sample-major as N×Height×Width×Channels.
type ImageTensor struct {
	Data     []float64
	N        int
	Height   int
	Width    int
	Channels int
}

// SampleSize is Height*Width*Channels.
func (t ImageTensor) SampleSize() int {
	return t.Height * t.Width * t.Channels
}

// At returns the value at sample i, row y, column x, channel 0.
func (t ImageTensor) At(i, y, x int) float64 {
	return t.Data[i*t.SampleSize()+(y*t.Width+x)*t.Channels]
}

// Sample returns a view of sample i.
func (t ImageTensor) Sample(i int) []float64 {
	n := t.SampleSize()
	return t.Data[i*n : (i+1)*n]
}

// Flatten returns an N×(Height·Width·Channels) matrix holding a copy of the
// data, for capabilities that take flat features.
func (t ImageTensor) Flatten() *mat.Dense {
	if t.N == 0 {
		return &mat.Dense{}
	}
	return mat.NewDense(t.N, t.SampleSize(), append([]float64(nil), t.Data...))
}

// NormalizePixels divides every intensity by maxValue and reshapes each
// sample to (Rows, Cols, 1). Intensities above maxValue are rejected.
func NormalizePixels(set *dataset.ImageSet, maxValue float64) (ImageTensor, error) {
	if maxValue <= 0 {
		return ImageTensor{}, errors.NewValidationError("images.max_value", "must be positive", maxValue)
	}
	if set == nil || set.Len() == 0 {
		return ImageTensor{}, errors.NewModelError("NormalizePixels", "empty data", errors.ErrEmptyData)
	}
	size := set.Rows * set.Cols
	for i, img := range set.Images {
		if len(img) != size {
			return ImageTensor{}, errors.NewDimensionError("NormalizePixels", size, len(img), 1)
		}
		for _, p := range img {
			if float64(p) > maxValue {
				return ImageTensor{}, errors.NewValidationError("images.max_value",
					"pixel intensity exceeds the declared maximum in sample "+itoa(i), float64(p))
			}
		}
	}

	out := ImageTensor{
		Data:     make([]float64, set.Len()*size),
		N:        set.Len(),
		Height:   set.Rows,
		Width:    set.Cols,
		Channels: 1,
	}
	parallel.ParallelizeWithThreshold(set.Len(), pixelParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			dst := out.Data[i*size : (i+1)*size]
			for j, p := range set.Images[i] {
				dst[j] = float64(p) / maxValue
			}
		}
	})
	return out, nil
}
