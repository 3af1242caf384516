package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlprep/config"
	"github.com/YuminosukeSato/mlprep/dataset"
	"github.com/YuminosukeSato/mlprep/pkg/errors"
	"github.com/YuminosukeSato/mlprep/pkg/log"
)

// captureWarnings collects warnings emitted through errors.Warn for the
// duration of the test.
func captureWarnings(t *testing.T) *[]error {
	t.Helper()
	var got []error
	errors.SetZerologWarnFunc(nil)
	errors.SetWarningHandler(func(w error) { got = append(got, w) })
	t.Cleanup(func() { errors.SetWarningHandler(nil) })
	return &got
}

func rawTable(t *testing.T, cols map[string][]string, order ...string) *dataset.Table {
	t.Helper()
	var columns []dataset.Column
	for _, name := range order {
		columns = append(columns, dataset.NewStringColumn(name, cols[name]))
	}
	tbl, err := dataset.NewTable("test", columns...)
	require.NoError(t, err)
	return tbl
}

func TestNormalizeColumnNames(t *testing.T) {
	tbl := rawTable(t, map[string][]string{
		" Air Temp ":   {"1"},
		"Zonal Winds ": {"2"},
		"Cafe\u0301":   {"3"},
	}, " Air Temp ", "Zonal Winds ", "Cafe\u0301")

	out, renamed, err := NormalizeColumnNames(tbl)
	require.NoError(t, err)
	assert.Equal(t, []string{"Air Temp", "Zonal Winds", "Caf\u00e9"}, out.Names())
	assert.Equal(t, "Air Temp", renamed[" Air Temp "])
	assert.Len(t, renamed, 3)
	assert.Equal(t, " Air Temp ", tbl.Names()[0], "input must not change")

	again, renamedAgain, err := NormalizeColumnNames(out)
	require.NoError(t, err)
	assert.Equal(t, out.Names(), again.Names())
	assert.Empty(t, renamedAgain)

	dup := rawTable(t, map[string][]string{"a": {"1"}, " a": {"2"}}, "a", " a")
	_, _, err = NormalizeColumnNames(dup)
	var cErr *errors.CleaningError
	assert.True(t, errors.As(err, &cErr))
}

func TestCoerceNumeric(t *testing.T) {
	warnings := captureWarnings(t)
	tbl := rawTable(t, map[string][]string{
		"x": {"1.5", ".", "", "NA", " 2 ", "inf"},
		"s": {"a", "b", "c", "d", "e", "f"},
	}, "x", "s")

	out, counts := CoerceNumeric(tbl, []string{"x", "missing"})
	col, _ := out.Column("x")
	require.Equal(t, dataset.Numeric, col.Kind)
	assert.Equal(t, 1.5, col.Floats[0])
	assert.Equal(t, 2.0, col.Floats[4])
	for _, i := range []int{1, 2, 3, 5} {
		assert.True(t, math.IsNaN(col.Floats[i]), "row %d", i)
	}
	assert.Equal(t, map[string]int{"x": 4}, counts)

	s, _ := out.Column("s")
	assert.Equal(t, dataset.String, s.Kind)
	orig, _ := tbl.Column("x")
	assert.Equal(t, dataset.String, orig.Kind)

	require.Len(t, *warnings, 1)
	var dcw *errors.DataConversionWarning
	require.True(t, errors.As((*warnings)[0], &dcw))
	assert.Equal(t, "x", dcw.Column)
	assert.Equal(t, 4, dcw.Count)

	// idempotent: already-numeric columns are untouched
	again, counts := CoerceNumeric(out, []string{"x"})
	assert.Empty(t, counts)
	c2, _ := again.Column("x")
	assert.Equal(t, col.Floats[0], c2.Floats[0])
}

func TestPrune(t *testing.T) {
	tbl := rawTable(t, map[string][]string{"a": {"1"}, "Humidity": {"."}}, "a", "Humidity")
	out, dropped := Prune(tbl, []string{"Humidity", "Nope"})
	assert.Equal(t, []string{"a"}, out.Names())
	assert.Equal(t, []string{"Humidity"}, dropped)
	assert.Equal(t, 2, len(tbl.Names()))
}

func TestImpute(t *testing.T) {
	nan := math.NaN()
	tbl, err := dataset.NewTable("t",
		dataset.NewNumericColumn("mean", []float64{1, nan, 3, nan}),
		dataset.NewNumericColumn("interp", []float64{nan, 2, nan, nan, 8, nan}[:4]),
		dataset.NewNumericColumn("none", []float64{nan, 1, 1, 1}),
		dataset.NewNumericColumn("empty", []float64{nan, nan, nan, nan}),
	)
	require.NoError(t, err)

	out, counts, err := Impute(tbl, map[string]config.ImputeStrategy{
		"mean":   config.ImputeMean,
		"interp": config.ImputeInterpolate,
		"none":   config.ImputeNone,
		"empty":  config.ImputeMean,
	})
	require.NoError(t, err)

	m, _ := out.Column("mean")
	assert.Equal(t, []float64{1, 2, 3, 2}, m.Floats)
	assert.Equal(t, 2, counts["mean"])

	i, _ := out.Column("interp")
	assert.Equal(t, []float64{2, 2, 2, 2}, i.Floats)
	assert.Equal(t, 3, counts["interp"])

	n, _ := out.Column("none")
	assert.True(t, math.IsNaN(n.Floats[0]))

	e, _ := out.Column("empty")
	assert.Equal(t, 4, e.MissingCount())

	orig, _ := tbl.Column("mean")
	assert.True(t, math.IsNaN(orig.Floats[1]), "input must not change")

	_, _, err = Impute(tbl, map[string]config.ImputeStrategy{"mean": "median"})
	assert.Error(t, err)
}

func TestImputeInterpolateInterior(t *testing.T) {
	nan := math.NaN()
	xs := []float64{nan, 0, nan, nan, 3, nan}
	filled := imputeInterpolate(xs)
	assert.Equal(t, 4, filled)
	assert.Equal(t, []float64{0, 0, 1, 2, 3, 3}, xs)
}

// Four rows where one cell holds the "." placeholder: after cleaning the cell
// carries the mean of the other three rows.
func TestCleanPlaceholderMeanFill(t *testing.T) {
	captureWarnings(t)
	tbl := rawTable(t, map[string][]string{
		"Air Temp":         {"26.0", ".", "27.0", "28.0"},
		"Sea Surface Temp": {"25", "26", "27", "28"},
	}, "Air Temp", "Sea Surface Temp")

	cfg := config.CleaningConfig{
		Numeric:        []string{"Air Temp", "Sea Surface Temp"},
		DefaultImpute:  config.ImputeMean,
		MissingColumns: config.SkipWithReport,
	}
	logger := log.NewTestLogger(log.LevelDebug)
	out, report, err := NewCleaner(cfg, WithLogger(logger), WithRequired("Air Temp", "Sea Surface Temp")).Clean(tbl)
	require.NoError(t, err)

	col, _ := out.Column("Air Temp")
	assert.InDelta(t, 27.0, col.Floats[1], 1e-12)
	assert.Equal(t, 1, report.Coerced["Air Temp"])
	assert.Equal(t, 1, report.Imputed["Air Temp"])
	assert.Equal(t, 4, report.Rows)
	assert.True(t, logger.ContainsMessage("column imputed"))
	assert.True(t, logger.ContainsField(log.ColumnKey, "Air Temp"))
}

func buoyLikeTable(t *testing.T) *dataset.Table {
	return rawTable(t, map[string][]string{
		" Year":             {"80", "80", "80"},
		" Month":            {"3", "3", "3"},
		" Day":              {"7", "8", "9"},
		" Latitude":         {"-0.02", "-0.02", "-0.02"},
		" Zonal Winds":      {"-6.8", ".", "-4.5"},
		" Humidity":         {".", ".", "."},
		" Sea Surface Temp": {"26.24", "25.97", "."},
	}, " Year", " Month", " Day", " Latitude", " Zonal Winds", " Humidity", " Sea Surface Temp")
}

func buoyCleaning(policy config.MissingColumnPolicy) config.CleaningConfig {
	cfg := config.DefaultBuoy().Cleaning
	cfg.MissingColumns = policy
	return cfg
}

func TestCleanSkipWithReport(t *testing.T) {
	warnings := captureWarnings(t)
	logger := log.NewTestLogger(log.LevelDebug)
	features := []string{"Latitude", "Longitude", "Zonal Winds", "Meridional Winds", "Air Temp"}
	c := NewCleaner(buoyCleaning(config.SkipWithReport),
		WithLogger(logger), WithRequired(append(features, "Sea Surface Temp")...))

	out, report, err := c.Clean(buoyLikeTable(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"Longitude", "Meridional Winds", "Air Temp"}, report.Skipped)
	assert.Equal(t, []string{"Humidity"}, report.Dropped)
	assert.False(t, out.Has("Humidity"))

	date, ok := out.Column("Date")
	require.True(t, ok)
	assert.Equal(t, []string{"1980-03-07", "1980-03-08", "1980-03-09"}, date.Values)

	for _, name := range []string{"Latitude", "Zonal Winds", "Sea Surface Temp"} {
		col, ok := out.Column(name)
		require.True(t, ok, name)
		assert.Zero(t, col.MissingCount(), name)
	}
	zw, _ := out.Column("Zonal Winds")
	assert.InDelta(t, -5.65, zw.Floats[1], 1e-12)

	var missing int
	for _, w := range *warnings {
		var mcw *errors.MissingColumnWarning
		if errors.As(w, &mcw) {
			missing++
		}
	}
	assert.Equal(t, 3, missing)
	assert.True(t, logger.ContainsMessage("feature set narrowed"))
}

func TestCleanFailFast(t *testing.T) {
	captureWarnings(t)
	c := NewCleaner(buoyCleaning(config.FailFast), WithLogger(log.NewTestLogger(log.LevelError)))
	_, _, err := c.Clean(buoyLikeTable(t))
	var cErr *errors.CleaningError
	require.True(t, errors.As(err, &cErr))
	assert.Equal(t, "Longitude", cErr.Column)
}

func TestCleanRejectsUnimputedRequiredColumn(t *testing.T) {
	captureWarnings(t)
	tbl := rawTable(t, map[string][]string{"x": {"1", "."}, "s": {"a", "b"}}, "x", "s")

	cfg := config.CleaningConfig{Numeric: []string{"x"}, DefaultImpute: config.ImputeNone}
	_, _, err := NewCleaner(cfg, WithLogger(log.NewTestLogger(log.LevelError)), WithRequired("x")).Clean(tbl)
	var cErr *errors.CleaningError
	require.True(t, errors.As(err, &cErr))
	assert.Equal(t, "x", cErr.Column)

	cfg.DefaultImpute = config.ImputeMean
	_, _, err = NewCleaner(cfg, WithLogger(log.NewTestLogger(log.LevelError)), WithRequired("s")).Clean(tbl)
	require.True(t, errors.As(err, &cErr))
	assert.Equal(t, "s", cErr.Column)
}

func TestNormalizePixels(t *testing.T) {
	set := &dataset.ImageSet{
		Images: [][]uint8{{0, 255, 51, 102}, {255, 255, 0, 0}},
		Labels: []int{1, 2},
		Rows:   2,
		Cols:   2,
	}
	tensor, err := NormalizePixels(set, 255)
	require.NoError(t, err)
	assert.Equal(t, 2, tensor.N)
	assert.Equal(t, 1, tensor.Channels)
	assert.Equal(t, 1.0, tensor.At(0, 0, 1))
	assert.InDelta(t, 0.2, tensor.At(0, 1, 0), 1e-12)
	assert.Equal(t, 0.0, tensor.At(1, 1, 1))
	for _, v := range tensor.Data {
		assert.True(t, v >= 0 && v <= 1)
	}

	flat := tensor.Flatten()
	r, c := flat.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 4, c)
	flat.Set(0, 0, 9)
	assert.Equal(t, 0.0, tensor.Data[0], "Flatten must copy")

	_, err = NormalizePixels(set, 100)
	assert.Error(t, err)
	_, err = NormalizePixels(set, 0)
	assert.Error(t, err)
	_, err = NormalizePixels(&dataset.ImageSet{}, 255)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}

func TestNormalizePixelsParallelMatchesSequential(t *testing.T) {
	n := pixelParallelThreshold + 17
	set := &dataset.ImageSet{Rows: 1, Cols: 3, Images: make([][]uint8, n), Labels: make([]int, n)}
	for i := range set.Images {
		set.Images[i] = []uint8{uint8(i % 256), uint8((i * 7) % 256), 255}
	}
	tensor, err := NormalizePixels(set, 255)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		assert.Equal(t, float64(i%256)/255, tensor.At(i, 0, 0))
	}
}

func TestOneHotRoundTrip(t *testing.T) {
	labels := []int{0, 3, 9, 3, 1}
	Y, err := OneHot(labels, 10)
	require.NoError(t, err)

	r, c := Y.Dims()
	assert.Equal(t, 5, r)
	assert.Equal(t, 10, c)
	for i := 0; i < r; i++ {
		assert.Equal(t, 1.0, mat.Sum(Y.RowView(i)))
	}
	assert.Equal(t, labels, Argmax(Y))

	decoded, err := DecodeOneHot(Y)
	require.NoError(t, err)
	assert.Equal(t, labels, decoded)

	_, err = OneHot([]int{10}, 10)
	var vErr *errors.ValidationError
	assert.True(t, errors.As(err, &vErr))
	_, err = OneHot([]int{-1}, 10)
	assert.Error(t, err)
	_, err = OneHot([]int{0}, 1)
	assert.Error(t, err)
}

func TestArgmaxProbabilities(t *testing.T) {
	P := mat.NewDense(2, 3, []float64{0.1, 0.7, 0.2, 0.4, 0.4, 0.2})
	assert.Equal(t, []int{1, 0}, Argmax(P))

	_, err := DecodeOneHot(P)
	assert.Error(t, err)
	_, err = DecodeOneHot(mat.NewDense(1, 2, []float64{1, 1}))
	assert.Error(t, err)
	_, err = DecodeOneHot(mat.NewDense(1, 2, []float64{0, 0}))
	assert.Error(t, err)
}

func TestSplitFeatures(t *testing.T) {
	tbl, err := dataset.NewTable("t",
		dataset.NewNumericColumn("a", []float64{1, 2}),
		dataset.NewNumericColumn("b", []float64{3, 4}),
		dataset.NewNumericColumn("y", []float64{5, 6}),
		dataset.NewStringColumn("s", []string{"x", "y"}),
	)
	require.NoError(t, err)

	X, y, err := SplitFeatures(tbl, []string{"b", "a"}, "y")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1}, mat.Row(nil, 0, X))
	assert.Equal(t, 2, y.Len())
	assert.Equal(t, 6.0, y.AtVec(1))

	X.Set(0, 0, 100)
	b, _ := tbl.Column("b")
	assert.Equal(t, 3.0, b.Floats[0], "features must be copied")

	_, _, err = SplitFeatures(tbl, []string{"a", "s"}, "y")
	assert.Error(t, err)
	_, _, err = SplitFeatures(tbl, []string{"a", "missing"}, "y")
	assert.Error(t, err)
	_, _, err = SplitFeatures(tbl, []string{"a"}, "s")
	assert.Error(t, err)
	_, _, err = SplitFeatures(tbl, []string{"a", "y"}, "y")
	assert.Error(t, err)
}

func TestStandardScalerFitOnTrainOnly(t *testing.T) {
	train := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})
	test := mat.NewDense(2, 2, []float64{100, 10, -100, 10})

	s := NewStandardScalerDefault()
	require.NoError(t, s.Fit(train))
	mean := append([]float64(nil), s.Mean...)
	scale := append([]float64(nil), s.Scale...)
	assert.Equal(t, []float64{2.5, 10}, mean)
	assert.InDelta(t, math.Sqrt(1.25), scale[0], 1e-12)
	assert.Equal(t, 1.0, scale[1], "zero variance column gets scale 1")

	out, err := s.Transform(test)
	require.NoError(t, err)
	assert.Equal(t, mean, s.Mean, "Transform must not refit")
	assert.Equal(t, scale, s.Scale)
	assert.InDelta(t, (100-2.5)/math.Sqrt(1.25), out.At(0, 0), 1e-9)
	assert.Equal(t, 0.0, out.At(0, 1))
	assert.Equal(t, 100.0, test.At(0, 0), "input must not change")

	back, err := s.InverseTransform(out)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(back, test, 1e-9))

	_, err = NewStandardScalerDefault().Transform(test)
	var nfErr *errors.NotFittedError
	assert.True(t, errors.As(err, &nfErr))

	_, err = s.Transform(mat.NewDense(1, 3, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	bad := mat.NewDense(2, 1, []float64{1, math.NaN()})
	assert.Error(t, NewStandardScalerDefault().Fit(bad))
}

func TestMinMaxScaler(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{0, 5, 5, 5, 10, 5})
	s := NewMinMaxScalerDefault()
	out, err := s.FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 1}, mat.Col(nil, 0, out))
	assert.Equal(t, []float64{0, 0, 0}, mat.Col(nil, 1, out))

	back, err := s.InverseTransform(out)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(back, X, 1e-12))

	assert.Error(t, NewMinMaxScaler([2]float64{1, 1}).Fit(X))
}

func TestNewScaler(t *testing.T) {
	s, err := NewScaler("standard")
	require.NoError(t, err)
	assert.IsType(t, &StandardScaler{}, s)

	s, err = NewScaler("minmax")
	require.NoError(t, err)
	assert.IsType(t, &MinMaxScaler{}, s)

	s, err = NewScaler("none")
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = NewScaler("robust")
	assert.Error(t, err)
}
