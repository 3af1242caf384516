package dataset

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlprep/pkg/errors"
	"github.com/YuminosukeSato/mlprep/pkg/log"
)

const buoyCSV = "\ufeffObservation, Year, Month, Day, Date, Latitude, Longitude, Zonal Winds, Meridional Winds, Humidity, Air Temp, Sea Surface Temp\n" +
	"1,80,3,7,800307,-0.02,-109.46,-6.8,0.7,.,26.14,26.24\n" +
	"2,80,3,8,800308,-0.02,-109.46,-4.9,1.1,.,25.66,25.97\n" +
	"3,80,3,9,800309,-0.02,-109.46,-4.5,2.2,.,25.69,25.28\n"

func TestReadCSVFrom(t *testing.T) {
	logger := log.NewTestLogger(log.LevelDebug)
	tbl, err := ReadCSVFrom(context.Background(), strings.NewReader(buoyCSV), "buoy.csv",
		CSVOptions{Logger: logger})
	require.NoError(t, err)

	rows, cols := tbl.Shape()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 12, cols)
	assert.Equal(t, "Observation", tbl.Names()[0], "BOM must be stripped")
	assert.Equal(t, " Zonal Winds", tbl.Names()[7], "names are left raw until cleaning")

	c, ok := tbl.Column(" Humidity")
	require.True(t, ok)
	assert.Equal(t, []string{".", ".", "."}, c.Values)

	assert.True(t, logger.ContainsMessage("table loaded"))
	assert.True(t, logger.ContainsField(log.SamplesKey, 3.0))
}

func TestReadCSVFromErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"ragged", "a,b\n1,2\n3\n"},
		{"duplicate header", "a, a\n1,2\n"},
		{"blank header", "a,,c\n1,2,3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSVFrom(context.Background(), strings.NewReader(tt.input), tt.name,
				CSVOptions{Logger: log.NewTestLogger(log.LevelError)})
			require.Error(t, err)
			var dsErr *errors.DataSourceError
			assert.True(t, errors.As(err, &dsErr), "got %T", err)
			assert.Equal(t, tt.name, dsErr.Source)
		})
	}
}

func TestReadCSVMissingFile(t *testing.T) {
	_, err := ReadCSV(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), CSVOptions{})
	var dsErr *errors.DataSourceError
	require.True(t, errors.As(err, &dsErr))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestReadCSVHeaderOnly(t *testing.T) {
	tbl, err := ReadCSVFrom(context.Background(), strings.NewReader("a,b\n"), "h.csv",
		CSVOptions{Logger: log.NewTestLogger(log.LevelError)})
	require.NoError(t, err)
	rows, cols := tbl.Shape()
	assert.Equal(t, 0, rows)
	assert.Equal(t, 2, cols)
}

func TestTableCopyOnWrite(t *testing.T) {
	tbl, err := NewTable("t",
		NewStringColumn("a", []string{"1", "2"}),
		NewNumericColumn("b", []float64{1, 2}),
	)
	require.NoError(t, err)

	dropped := tbl.Drop("a")
	assert.Equal(t, []string{"b"}, dropped.Names())
	assert.Equal(t, []string{"a", "b"}, tbl.Names())

	replaced, err := tbl.WithColumn(NewNumericColumn("b", []float64{9, 9}))
	require.NoError(t, err)
	orig, _ := tbl.Column("b")
	assert.Equal(t, []float64{1, 2}, orig.Floats)
	got, _ := replaced.Column("b")
	assert.Equal(t, []float64{9, 9}, got.Floats)

	_, err = tbl.WithColumn(NewNumericColumn("c", []float64{1}))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	_, err = NewTable("bad", NewStringColumn("a", []string{"1"}), NewStringColumn("b", nil))
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	tbl, err := NewTable("t",
		NewNumericColumn("x", []float64{1, 2, 3, math.NaN()}),
		NewStringColumn("s", []string{"a", "", "b", "c"}),
	)
	require.NoError(t, err)

	sum := tbl.Describe()
	require.Len(t, sum, 2)
	assert.Equal(t, 3, sum[0].Count)
	assert.Equal(t, 1, sum[0].Missing)
	assert.InDelta(t, 2.0, sum[0].Mean, 1e-12)
	assert.InDelta(t, 1.0, sum[0].Std, 1e-12)
	assert.Equal(t, 1.0, sum[0].Min)
	assert.Equal(t, 3.0, sum[0].Max)

	assert.Equal(t, 1, sum[1].Missing)
	assert.True(t, math.IsNaN(sum[1].Mean))
}

func TestDeriveDate(t *testing.T) {
	tbl, err := NewTable("t",
		NewStringColumn("Year", []string{"80", "1998", "97", "x"}),
		NewStringColumn("Month", []string{"3", "2", "2", "1"}),
		NewNumericColumn("Day", []float64{7, 30, 28, 1}),
	)
	require.NoError(t, err)

	out, err := tbl.DeriveDate("Year", "Month", "Day", "Date")
	require.NoError(t, err)
	c, ok := out.Column("Date")
	require.True(t, ok)
	assert.Equal(t, []string{"1980-03-07", "", "1997-02-28", ""}, c.Values)
	assert.False(t, tbl.Has("Date"))

	_, err = tbl.DeriveDate("Year", "Month", "Nope", "Date")
	var cErr *errors.CleaningError
	assert.True(t, errors.As(err, &cErr))
}

func writeIDX(t *testing.T, path string, magic uint32, dims []uint32, payload []byte) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, append([]uint32{magic}, dims...)))
	buf.Write(payload)

	data := buf.Bytes()
	if strings.HasSuffix(path, ".gz") {
		var gz bytes.Buffer
		w := gzip.NewWriter(&gz)
		_, err := w.Write(data)
		require.NoError(t, err)
		require.NoError(t, w.Close())
		data = gz.Bytes()
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestLoadIDX(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "img.gz")
	lbl := filepath.Join(dir, "lbl")
	writeIDX(t, img, idxImageMagic, []uint32{2, 2, 2}, []byte{0, 255, 10, 20, 1, 2, 3, 4})
	writeIDX(t, lbl, idxLabelMagic, []uint32{2}, []byte{7, 3})

	set, err := LoadIDX(img, lbl)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, 2, set.Rows)
	assert.Equal(t, 2, set.Cols)
	assert.Equal(t, []uint8{0, 255, 10, 20}, set.Images[0])
	assert.Equal(t, []int{7, 3}, set.Labels)

	sub := set.Subset([]int{1})
	assert.Equal(t, []int{3}, sub.Labels)
	sub.Images[0][0] = 99
	assert.Equal(t, uint8(1), set.Images[1][0])
}

func TestLoadIDXErrors(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "img")
	lbl := filepath.Join(dir, "lbl")
	badMagic := filepath.Join(dir, "bad")
	short := filepath.Join(dir, "short")
	writeIDX(t, img, idxImageMagic, []uint32{2, 1, 1}, []byte{1, 2})
	writeIDX(t, lbl, idxLabelMagic, []uint32{3}, []byte{1, 2, 3})
	writeIDX(t, badMagic, 0x1234, []uint32{2, 1, 1}, []byte{1, 2})
	writeIDX(t, short, idxImageMagic, []uint32{5, 1, 1}, []byte{1})
	huge := filepath.Join(dir, "huge")
	writeIDX(t, huge, idxImageMagic, []uint32{0xFFFFFFFF, 28, 28}, nil)
	wide := filepath.Join(dir, "wide")
	writeIDX(t, wide, idxImageMagic, []uint32{1, 0xFFFFFFFF, 0xFFFFFFFF}, nil)
	hugeGz := filepath.Join(dir, "huge.gz")
	writeIDX(t, hugeGz, idxImageMagic, []uint32{0xFFFFFFFF, 28, 28}, []byte{1, 2, 3})
	wideGz := filepath.Join(dir, "wide.gz")
	writeIDX(t, wideGz, idxImageMagic, []uint32{1, 0xFFFFFFFF, 0xFFFFFFFF}, nil)
	oneLabel := filepath.Join(dir, "one")
	writeIDX(t, oneLabel, idxLabelMagic, []uint32{1}, []byte{4})
	okImage := filepath.Join(dir, "ok")
	writeIDX(t, okImage, idxImageMagic, []uint32{1, 1, 1}, []byte{9})
	manyLabels := filepath.Join(dir, "many")
	writeIDX(t, manyLabels, idxLabelMagic, []uint32{0xFFFFFFFF}, []byte{4})
	manyLabelsGz := filepath.Join(dir, "many.gz")
	writeIDX(t, manyLabelsGz, idxLabelMagic, []uint32{0xFFFFFFFF}, []byte{4})

	tests := []struct {
		name        string
		images, lbl string
	}{
		{"count mismatch", img, lbl},
		{"bad magic", badMagic, lbl},
		{"truncated", short, lbl},
		{"missing", filepath.Join(dir, "none"), lbl},
		{"image count beyond file size", huge, oneLabel},
		{"image size beyond file size", wide, oneLabel},
		{"compressed image count beyond stream", hugeGz, oneLabel},
		{"compressed image size unbounded", wideGz, oneLabel},
		{"label count beyond file size", okImage, manyLabels},
		{"compressed label count beyond stream", okImage, manyLabelsGz},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadIDX(tt.images, tt.lbl)
			var dsErr *errors.DataSourceError
			assert.True(t, errors.As(err, &dsErr), "got %v", err)
		})
	}
}

func TestLoadIDXOversizedHeaderMessage(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "img")
	lbl := filepath.Join(dir, "lbl")
	writeIDX(t, img, idxImageMagic, []uint32{0xFFFFFFFF, 28, 28}, nil)
	writeIDX(t, lbl, idxLabelMagic, []uint32{1}, []byte{4})

	_, err := LoadIDX(img, lbl)
	var dsErr *errors.DataSourceError
	require.True(t, errors.As(err, &dsErr))
	assert.Equal(t, img, dsErr.Source)
	assert.Equal(t, "header declares more data than the file holds", dsErr.Reason)
}

func TestLoadMNIST(t *testing.T) {
	dir := t.TempDir()
	writeIDX(t, filepath.Join(dir, "train-images-idx3-ubyte.gz"), idxImageMagic, []uint32{1, 1, 2}, []byte{1, 2})
	writeIDX(t, filepath.Join(dir, "train-labels-idx1-ubyte.gz"), idxLabelMagic, []uint32{1}, []byte{4})
	writeIDX(t, filepath.Join(dir, "t10k-images-idx3-ubyte"), idxImageMagic, []uint32{1, 1, 2}, []byte{3, 4})
	writeIDX(t, filepath.Join(dir, "t10k-labels-idx1-ubyte"), idxLabelMagic, []uint32{1}, []byte{9})

	train, test, err := LoadMNIST(dir)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, train.Labels)
	assert.Equal(t, []int{9}, test.Labels)

	_, _, err = LoadMNIST(t.TempDir())
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
