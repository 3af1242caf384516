// Package visualize renders already computed results to image files with
// gonum/plot. The output format follows the path extension: .png, .svg,
// .pdf, .jpg, .eps or .tif.
package visualize

import (
	"image/color"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/mlprep/core/model"
	"github.com/YuminosukeSato/mlprep/metrics"
	"github.com/YuminosukeSato/mlprep/pkg/errors"
)

// Size of every rendered figure.
var (
	Width  = 6 * vg.Inch
	Height = 4 * vg.Inch
)

var formats = map[string]bool{
	".png": true, ".svg": true, ".pdf": true,
	".jpg": true, ".jpeg": true, ".eps": true, ".tif": true, ".tiff": true,
}

func save(p *plot.Plot, path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !formats[ext] {
		return errors.NewValidationError("path", "unsupported image extension", ext)
	}
	if err := p.Save(Width, Height, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	return nil
}

func newPlot(title, x, y string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = x
	p.Y.Label.Text = y
	p.Add(plotter.NewGrid())
	return p
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// pairs zips xs and ys, dropping pairs with a missing value.
func pairs(op string, xs, ys []float64) (plotter.XYs, error) {
	if len(xs) != len(ys) {
		return nil, errors.NewDimensionError(op, len(xs), len(ys), 0)
	}
	pts := make(plotter.XYs, 0, len(xs))
	for i := range xs {
		if finite(xs[i]) && finite(ys[i]) {
			pts = append(pts, plotter.XY{X: xs[i], Y: ys[i]})
		}
	}
	if len(pts) == 0 {
		return nil, errors.NewModelError(op, "no finite points", errors.ErrEmptyData)
	}
	return pts, nil
}

// TimeSeries plots ys against timestamps as a line.
func TimeSeries(path, title, yLabel string, ts []time.Time, ys []float64) error {
	xs := make([]float64, len(ts))
	for i, t := range ts {
		xs[i] = float64(t.Unix())
		if t.IsZero() {
			xs[i] = math.NaN()
		}
	}
	pts, err := pairs("TimeSeries", xs, ys)
	if err != nil {
		return err
	}
	p := newPlot(title, "Date", yLabel)
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return errors.Wrap(err, "time series line")
	}
	line.Color = plotutil.Color(0)
	p.Add(line)
	return save(p, path)
}

// Histogram plots the distribution of the finite values in bins buckets.
func Histogram(path, title string, values []float64, bins int) error {
	if bins < 1 {
		return errors.NewValidationError("bins", "must be positive", bins)
	}
	vs := make(plotter.Values, 0, len(values))
	for _, v := range values {
		if finite(v) {
			vs = append(vs, v)
		}
	}
	if len(vs) == 0 {
		return errors.NewModelError("Histogram", "no finite values", errors.ErrEmptyData)
	}
	p := newPlot(title, "", "Count")
	h, err := plotter.NewHist(vs, bins)
	if err != nil {
		return errors.Wrap(err, "histogram")
	}
	h.FillColor = plotutil.Color(0)
	p.Add(h)
	return save(p, path)
}

// Scatter plots ys against xs.
func Scatter(path, title, xLabel, yLabel string, xs, ys []float64) error {
	pts, err := pairs("Scatter", xs, ys)
	if err != nil {
		return err
	}
	p := newPlot(title, xLabel, yLabel)
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "scatter")
	}
	s.GlyphStyle.Color = plotutil.Color(0)
	s.GlyphStyle.Radius = vg.Points(2)
	p.Add(s)
	return save(p, path)
}

// GeoScatter plots positions by longitude and latitude, each point coloured
// by its value on a blue to red scale.
func GeoScatter(path, title string, lat, lon, values []float64) error {
	if len(values) != len(lat) {
		return errors.NewDimensionError("GeoScatter", len(lat), len(values), 0)
	}
	if len(lon) != len(lat) {
		return errors.NewDimensionError("GeoScatter", len(lat), len(lon), 0)
	}
	var (
		pts  plotter.XYs
		vals []float64
	)
	for i := range lat {
		if finite(lat[i]) && finite(lon[i]) && finite(values[i]) {
			pts = append(pts, plotter.XY{X: lon[i], Y: lat[i]})
			vals = append(vals, values[i])
		}
	}
	if len(pts) == 0 {
		return errors.NewModelError("GeoScatter", "no finite points", errors.ErrEmptyData)
	}

	cmap := moreland.SmoothBlueRed()
	lo, hi := minMax(vals)
	if lo == hi {
		hi = lo + 1
	}
	cmap.SetMin(lo)
	cmap.SetMax(hi)

	p := newPlot(title, "Longitude", "Latitude")
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "geo scatter")
	}
	s.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		c, err := cmap.At(vals[i])
		if err != nil {
			c = color.Gray{Y: 128}
		}
		return draw.GlyphStyle{Color: c, Radius: vg.Points(2.5), Shape: draw.CircleGlyph{}}
	}
	p.Add(s)
	return save(p, path)
}

func minMax(xs []float64) (lo, hi float64) {
	lo, hi = xs[0], xs[0]
	for _, x := range xs[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi
}

// confusionGrid adapts a confusion matrix to plotter.GridXYZ. Column c is the
// predicted class; row r is the true class, drawn top to bottom.
type confusionGrid struct {
	m mat.Matrix
}

func (g confusionGrid) Dims() (c, r int) {
	rows, cols := g.m.Dims()
	return cols, rows
}

func (g confusionGrid) Z(c, r int) float64 {
	rows, _ := g.m.Dims()
	return g.m.At(rows-1-r, c)
}

func (g confusionGrid) X(c int) float64 { return float64(c) }

func (g confusionGrid) Y(r int) float64 { return float64(r) }

// ConfusionHeatmap draws cm as a heat map with the count in every cell.
func ConfusionHeatmap(path string, cm mat.Matrix) error {
	rows, cols := cm.Dims()
	if rows == 0 || rows != cols {
		return errors.NewDimensionError("ConfusionHeatmap", rows, cols, 1)
	}
	grid := confusionGrid{m: cm}

	p := newPlot("Confusion matrix", "Predicted", "True")
	hm := plotter.NewHeatMap(grid, moreland.SmoothBlueRed().Palette(255))
	p.Add(hm)

	var cells plotter.XYLabels
	names := make([]string, rows)
	for i := 0; i < rows; i++ {
		names[i] = strconv.Itoa(i)
		for j := 0; j < cols; j++ {
			cells.XYs = append(cells.XYs, plotter.XY{X: float64(j), Y: float64(rows - 1 - i)})
			cells.Labels = append(cells.Labels, strconv.Itoa(int(cm.At(i, j))))
		}
	}
	labels, err := plotter.NewLabels(cells)
	if err != nil {
		return errors.Wrap(err, "heat map labels")
	}
	p.Add(labels)

	p.X.Tick.Marker = classTicks(names, false)
	p.Y.Tick.Marker = classTicks(names, true)
	return save(p, path)
}

// classTicks labels integer positions with class names, optionally in
// reverse so class 0 sits at the top of the y axis.
func classTicks(names []string, reverse bool) plot.ConstantTicks {
	ticks := make(plot.ConstantTicks, len(names))
	for i, n := range names {
		pos := i
		if reverse {
			pos = len(names) - 1 - i
		}
		ticks[i] = plot.Tick{Value: float64(pos), Label: n}
	}
	return ticks
}

// ClassScoresBar draws grouped precision, recall and F1 bars per class.
func ClassScoresBar(path string, scores []metrics.ClassScores) error {
	if len(scores) == 0 {
		return errors.NewModelError("ClassScoresBar", "no classes", errors.ErrEmptyData)
	}
	prec := make(plotter.Values, len(scores))
	rec := make(plotter.Values, len(scores))
	f1 := make(plotter.Values, len(scores))
	names := make([]string, len(scores))
	for i, s := range scores {
		prec[i], rec[i], f1[i] = s.Precision, s.Recall, s.F1
		names[i] = strconv.Itoa(s.Class)
	}

	p := newPlot("Per-class scores", "Class", "Score")
	p.Y.Min, p.Y.Max = 0, 1.05
	w := vg.Points(8)
	for i, series := range []struct {
		name string
		vals plotter.Values
	}{
		{"precision", prec},
		{"recall", rec},
		{"f1", f1},
	} {
		bars, err := plotter.NewBarChart(series.vals, w)
		if err != nil {
			return errors.Wrapf(err, "%s bars", series.name)
		}
		bars.Color = plotutil.Color(i)
		bars.LineStyle.Width = 0
		bars.Offset = vg.Length(i-1) * w
		p.Add(bars)
		p.Legend.Add(series.name, bars)
	}
	p.Legend.Top = true
	p.NominalX(names...)
	return save(p, path)
}

// AttributionSummary draws the mean absolute attribution of each feature as
// a bar, largest first.
func AttributionSummary(path string, features []string, values mat.Matrix) error {
	r, c := values.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("AttributionSummary", "no attributions", errors.ErrEmptyData)
	}
	if len(features) != c {
		return errors.NewDimensionError("AttributionSummary", c, len(features), 1)
	}

	type impact struct {
		name string
		mean float64
	}
	impacts := make([]impact, c)
	for j := range impacts {
		var sum float64
		for i := 0; i < r; i++ {
			sum += math.Abs(values.At(i, j))
		}
		impacts[j] = impact{features[j], sum / float64(r)}
	}
	sort.SliceStable(impacts, func(a, b int) bool { return impacts[a].mean > impacts[b].mean })

	vals := make(plotter.Values, c)
	names := make([]string, c)
	for j, im := range impacts {
		vals[j], names[j] = im.mean, im.name
	}
	return bars(path, "Feature impact", "mean |attribution|", names, vals)
}

// MetricsBar draws one bar per named score, in key order.
func MetricsBar(path, title string, scores map[string]float64) error {
	if len(scores) == 0 {
		return errors.NewModelError("MetricsBar", "no scores", errors.ErrEmptyData)
	}
	names := make([]string, 0, len(scores))
	for k := range scores {
		names = append(names, k)
	}
	sort.Strings(names)
	vals := make(plotter.Values, len(names))
	for i, k := range names {
		vals[i] = scores[k]
	}
	return bars(path, title, "", names, vals)
}

func bars(path, title, yLabel string, names []string, vals plotter.Values) error {
	p := newPlot(title, "", yLabel)
	b, err := plotter.NewBarChart(vals, vg.Points(20))
	if err != nil {
		return errors.Wrapf(err, "%s bars", title)
	}
	b.Color = plotutil.Color(0)
	b.LineStyle.Width = 0
	p.Add(b)
	p.NominalX(names...)
	return save(p, path)
}

// TrainingHistory plots per-epoch loss and accuracy, with the validation
// curves when present.
func TrainingHistory(path string, h model.History) error {
	if len(h.Loss) == 0 {
		return errors.NewModelError("TrainingHistory", "no epochs", errors.ErrEmptyData)
	}
	p := newPlot("Training history", "Epoch", "")

	var lines []interface{}
	for _, curve := range []struct {
		name string
		vals []float64
	}{
		{"loss", h.Loss},
		{"val_loss", h.ValLoss},
		{"accuracy", h.Accuracy},
		{"val_accuracy", h.ValAccuracy},
	} {
		if len(curve.vals) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(curve.vals))
		for i, v := range curve.vals {
			pts[i] = plotter.XY{X: float64(i + 1), Y: v}
		}
		lines = append(lines, curve.name, pts)
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return errors.Wrap(err, "history lines")
	}
	p.Legend.Top = true
	return save(p, path)
}

// ActualVsPredicted scatters predictions against targets with the y = x
// reference line.
func ActualVsPredicted(path string, yTrue, yPred []float64) error {
	pts, err := pairs("ActualVsPredicted", yTrue, yPred)
	if err != nil {
		return err
	}
	p := newPlot("Actual vs predicted", "Actual", "Predicted")
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "actual vs predicted")
	}
	s.GlyphStyle.Color = plotutil.Color(0)
	s.GlyphStyle.Radius = vg.Points(2)

	ref := plotter.NewFunction(func(x float64) float64 { return x })
	ref.Color = plotutil.Color(1)
	ref.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(s, ref)
	p.Legend.Add("samples", s)
	p.Legend.Add("y = x", ref)
	p.Legend.Top = true
	return save(p, path)
}
