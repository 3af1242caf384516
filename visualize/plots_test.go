package visualize

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlprep/core/model"
	"github.com/YuminosukeSato/mlprep/metrics"
	"github.com/YuminosukeSato/mlprep/pkg/errors"
)

func assertWritten(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0), path)
}

func TestRenderers(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(1998, 1, 1, 0, 0, 0, 0, time.UTC)
	ts := make([]time.Time, 20)
	ys := make([]float64, 20)
	xs := make([]float64, 20)
	for i := range ts {
		ts[i] = start.AddDate(0, 0, i)
		xs[i] = float64(i)
		ys[i] = 27 + math.Sin(float64(i)/3)
	}
	ys[5] = math.NaN()

	cm := mat.NewDense(3, 3, []float64{
		5, 1, 0,
		0, 6, 2,
		1, 0, 7,
	})
	scores, err := metrics.PrecisionRecallF1(cm)
	require.NoError(t, err)

	hist := model.History{
		Loss:        []float64{1.2, 0.8, 0.6},
		Accuracy:    []float64{0.5, 0.7, 0.8},
		ValLoss:     []float64{1.3, 0.9, 0.7},
		ValAccuracy: []float64{0.45, 0.65, 0.75},
	}

	tests := []struct {
		name   string
		file   string
		render func(path string) error
	}{
		{"time series", "sst.png", func(p string) error { return TimeSeries(p, "Sea surface temperature", "°C", ts, ys) }},
		{"histogram", "hist.svg", func(p string) error { return Histogram(p, "Air temp", ys, 8) }},
		{"scatter", "scatter.pdf", func(p string) error { return Scatter(p, "x vs y", "x", "y", xs, ys) }},
		{"geo scatter", "geo.png", func(p string) error { return GeoScatter(p, "Buoys", xs, ys, ys) }},
		{"confusion", "cm.png", func(p string) error { return ConfusionHeatmap(p, cm) }},
		{"class scores", "scores.svg", func(p string) error { return ClassScoresBar(p, scores) }},
		{"history", "history.png", func(p string) error { return TrainingHistory(p, hist) }},
		{"actual vs predicted", "avp.png", func(p string) error { return ActualVsPredicted(p, ys, xs) }},
		{"attribution summary", "impact.png", func(p string) error {
			return AttributionSummary(p, []string{"Zonal Winds", "Air Temp"}, mat.NewDense(2, 2, []float64{-0.4, 1.2, 0.2, -0.8}))
		}},
		{"metrics bar", "test_scores.png", func(p string) error {
			return MetricsBar(p, "Test scores", map[string]float64{"accuracy": 0.97, "loss": 0.11})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			require.NoError(t, tt.render(path))
			assertWritten(t, path)
		})
	}
}

func TestTrainingHistoryWithoutValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.png")
	require.NoError(t, TrainingHistory(path, model.History{Loss: []float64{1, 0.5}, Accuracy: []float64{0.4, 0.6}}))
	assertWritten(t, path)
}

func TestRendererErrors(t *testing.T) {
	dir := t.TempDir()

	err := Scatter(filepath.Join(dir, "s.bmp"), "", "", "", []float64{1}, []float64{1})
	var vErr *errors.ValidationError
	assert.True(t, errors.As(err, &vErr), "unsupported extension")

	err = Scatter(filepath.Join(dir, "s.png"), "", "", "", []float64{1, 2}, []float64{1})
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	err = Histogram(filepath.Join(dir, "h.png"), "", []float64{math.NaN()}, 4)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	err = Histogram(filepath.Join(dir, "h.png"), "", []float64{1}, 0)
	assert.True(t, errors.As(err, &vErr))

	err = ConfusionHeatmap(filepath.Join(dir, "c.png"), mat.NewDense(2, 3, nil))
	assert.True(t, errors.As(err, &dimErr))

	err = TrainingHistory(filepath.Join(dir, "t.png"), model.History{})
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	err = GeoScatter(filepath.Join(dir, "g.png"), "", []float64{1}, []float64{1, 2}, []float64{1})
	assert.True(t, errors.As(err, &dimErr))

	err = AttributionSummary(filepath.Join(dir, "a.png"), []string{"Air Temp"}, mat.NewDense(2, 2, nil))
	assert.True(t, errors.As(err, &dimErr))

	err = AttributionSummary(filepath.Join(dir, "a.png"), nil, &mat.Dense{})
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	err = MetricsBar(filepath.Join(dir, "m.png"), "", nil)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}
