package report

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlprep/dataset"
	"github.com/YuminosukeSato/mlprep/metrics"
	"github.com/YuminosukeSato/mlprep/pkg/errors"
)

func golden(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestWriteRegressionTable(t *testing.T) {
	rep, err := metrics.NewRegressionReport(
		mat.NewVecDense(4, []float64{1, 2, 3, 4}),
		mat.NewVecDense(4, []float64{1.5, 2.5, 2.5, 3.5}),
	)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteRegressionTable(&buf, rep))
	golden(t).Assert(t, "regression_table", buf.Bytes())
}

func TestWriteClassificationTable(t *testing.T) {
	rep, err := metrics.NewClassificationReport(
		[]int{0, 0, 0, 0, 1, 1, 1, 1, 1, 1},
		[]int{0, 0, 0, 1, 1, 1, 1, 1, 0, 0},
		2,
	)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteClassificationTable(&buf, rep))
	golden(t).Assert(t, "classification_table", buf.Bytes())
}

func TestWriteSummaryTable(t *testing.T) {
	tbl, err := dataset.NewTable("buoy.csv",
		dataset.NewNumericColumn("Air Temp", []float64{1, 2, math.NaN(), 3}),
		dataset.NewStringColumn("Date", []string{"1993-05-01", "", "1993-05-03", "1993-05-04"}),
	)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteSummaryTable(&buf, tbl.Describe()))
	golden(t).Assert(t, "summary_table", buf.Bytes())
}

func TestWriteRunsTable(t *testing.T) {
	runs := []Run{
		{
			ID:        "0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b",
			Pipeline:  "buoy",
			Model:     "linear",
			Metrics:   map[string]float64{"r2": 0.9, "mse": 0.25},
			CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			ID:        "0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5c",
			Pipeline:  "digits",
			Model:     "softmax",
			Metrics:   map[string]float64{"accuracy": 0.975},
			CreatedAt: time.Date(2024, 5, 2, 8, 30, 15, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRunsTable(&buf, runs))
	golden(t).Assert(t, "runs_table", buf.Bytes())
}

func openStore(t *testing.T) (*RunStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestRunStoreRecordAndList(t *testing.T) {
	s, path := openStore(t)
	ctx := context.Background()

	_, err := os.Stat(path)
	require.NoError(t, err, "database file is created")

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	first, err := s.Record(ctx, Run{
		Pipeline:  "buoy",
		Model:     "linear",
		Seed:      42,
		Holdout:   0.2,
		Samples:   100,
		Metrics:   map[string]float64{"mse": 0.25, "r2": 0.8},
		CreatedAt: base,
	})
	require.NoError(t, err)

	id, err := uuid.Parse(first.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())

	_, err = s.Record(ctx, Run{Pipeline: "digits", Seed: 42, CreatedAt: base.Add(time.Second)})
	require.NoError(t, err)
	second, err := s.Record(ctx, Run{Pipeline: "buoy", Seed: 7, Holdout: 0.3, CreatedAt: base.Add(2 * time.Second)})
	require.NoError(t, err)

	buoy, err := s.List(ctx, "buoy")
	require.NoError(t, err)
	require.Len(t, buoy, 2)
	assert.Equal(t, first.ID, buoy[0].ID)
	assert.Equal(t, second.ID, buoy[1].ID)
	assert.Equal(t, map[string]float64{"mse": 0.25, "r2": 0.8}, buoy[0].Metrics)
	assert.Equal(t, "linear", buoy[0].Model)
	assert.Equal(t, 100, buoy[0].Samples)
	assert.True(t, base.Equal(buoy[0].CreatedAt))
	assert.Empty(t, buoy[1].Metrics)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "digits", all[1].Pipeline)
}

func TestRunStoreReopen(t *testing.T) {
	s, path := openStore(t)
	ctx := context.Background()
	_, err := s.Record(ctx, Run{Pipeline: "buoy"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	again, err := Open(path)
	require.NoError(t, err)
	defer again.Close()

	runs, err := again.List(ctx, "buoy")
	require.NoError(t, err)
	assert.Len(t, runs, 1)
	assert.False(t, runs[0].CreatedAt.IsZero())
}

func TestRunStoreRejects(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	_, err := s.Record(ctx, Run{})
	var vErr *errors.ValidationError
	assert.True(t, errors.As(err, &vErr))

	r, err := s.Record(ctx, Run{ID: "fixed", Pipeline: "buoy"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", r.ID)
	_, err = s.Record(ctx, Run{ID: "fixed", Pipeline: "buoy"})
	assert.Error(t, err, "ids are unique")
}
