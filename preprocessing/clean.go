// Package preprocessing turns raw tables and image sets into finite model
// inputs: cleaning, imputation, encoding, feature selection and scaling.
package preprocessing

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mlprep/config"
	"github.com/YuminosukeSato/mlprep/dataset"
	"github.com/YuminosukeSato/mlprep/pkg/errors"
	"github.com/YuminosukeSato/mlprep/pkg/log"
)

// CleanReport records what cleaning changed.
type CleanReport struct {
	// Renamed maps raw column names to their normalized form. Unchanged names
	// are omitted.
	Renamed map[string]string
	// Coerced counts, per column, the cells replaced by the missing marker.
	Coerced map[string]int
	// Dropped lists the excluded columns that were present and removed.
	Dropped []string
	// Skipped lists nominated columns absent from the source.
	Skipped []string
	// Imputed counts, per column, the cells filled by imputation.
	Imputed map[string]int
	Rows    int
}

func newCleanReport() *CleanReport {
	return &CleanReport{
		Renamed: map[string]string{},
		Coerced: map[string]int{},
		Imputed: map[string]int{},
	}
}

// MarshalZerologObject adds the report to a zerolog event.
func (r *CleanReport) MarshalZerologObject(e *zerolog.Event) {
	e.Int("rows", r.Rows).
		Strs("dropped", r.Dropped).
		Strs("skipped", r.Skipped).
		Int("coerced_total", sumCounts(r.Coerced)).
		Int("imputed_total", sumCounts(r.Imputed))
}

func sumCounts(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

// IsSkipped reports whether column was skipped as missing.
func (r *CleanReport) IsSkipped(column string) bool {
	return slices.Contains(r.Skipped, column)
}

// Cleaner runs the tabular cleaning stage.
type Cleaner struct {
	cfg      config.CleaningConfig
	required []string
	logger   log.Logger
}

// CleanerOption configures a Cleaner.
type CleanerOption func(*Cleaner)

// WithLogger sets the logger.
func WithLogger(l log.Logger) CleanerOption {
	return func(c *Cleaner) { c.logger = l }
}

// WithRequired nominates columns that must come out of cleaning numeric and
// finite, typically the features and the target.
func WithRequired(columns ...string) CleanerOption {
	return func(c *Cleaner) { c.required = append(c.required, columns...) }
}

// NewCleaner creates a Cleaner for cfg.
func NewCleaner(cfg config.CleaningConfig, opts ...CleanerOption) *Cleaner {
	c := &Cleaner{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.GetLoggerWithName("preprocessing")
	}
	c.logger = c.logger.With(log.OperationKey, log.OperationClean)
	return c
}

// Clean normalizes names, derives the optional date column, resolves missing
// nominated columns, coerces, prunes and imputes, then verifies that every
// surviving required column is numeric and finite. The input is not modified.
func (c *Cleaner) Clean(t *dataset.Table) (*dataset.Table, *CleanReport, error) {
	report := newCleanReport()

	out, renamed, err := NormalizeColumnNames(t)
	if err != nil {
		return nil, nil, err
	}
	report.Renamed = renamed

	if d := c.cfg.Date; d != nil {
		if out.Has(d.Year) && out.Has(d.Month) && out.Has(d.Day) {
			if out, err = out.DeriveDate(d.Year, d.Month, d.Day, d.Name); err != nil {
				return nil, nil, err
			}
		} else {
			c.logger.Debug("date parts not present, date not derived", log.ColumnKey, d.Name)
		}
	}

	if err := c.resolveMissing(out, report); err != nil {
		return nil, nil, err
	}

	out, report.Coerced = CoerceNumeric(out, c.cfg.Numeric)
	for _, col := range sortedKeys(report.Coerced) {
		if n := report.Coerced[col]; n > 0 {
			c.logger.Info("column coerced", log.ColumnKey, col, log.CoercedKey, n)
		}
	}

	out, report.Dropped = Prune(out, c.cfg.Exclude)
	if len(report.Dropped) > 0 {
		c.logger.Info("columns pruned", log.DroppedKey, report.Dropped)
	}

	policies := make(map[string]config.ImputeStrategy)
	for _, col := range out.Columns {
		if col.Kind == dataset.Numeric {
			policies[col.Name] = c.cfg.StrategyFor(col.Name)
		}
	}
	if out, report.Imputed, err = Impute(out, policies); err != nil {
		return nil, nil, err
	}
	for _, col := range sortedKeys(report.Imputed) {
		if n := report.Imputed[col]; n > 0 {
			c.logger.Info("column imputed",
				log.ColumnKey, col,
				log.ImputedKey, n,
				log.StrategyKey, string(policies[col]),
			)
		}
	}

	if err := c.verify(out, report); err != nil {
		return nil, nil, err
	}

	report.Rows, _ = out.Shape()
	c.logger.Info("cleaning complete", "report", report)
	return out, report, nil
}

func (c *Cleaner) resolveMissing(t *dataset.Table, report *CleanReport) error {
	nominated := append(append([]string(nil), c.cfg.Numeric...), c.required...)
	for _, col := range nominated {
		if t.Has(col) || slices.Contains(report.Skipped, col) {
			continue
		}
		if c.cfg.MissingColumns == config.FailFast {
			return errors.NewCleaningError(col, "column not found in source")
		}
		report.Skipped = append(report.Skipped, col)
		c.logger.Warn("nominated column not found, skipping", log.ColumnKey, col)
		errors.Warn(errors.NewMissingColumnWarning(col, "clean"))
	}
	if len(report.Skipped) > 0 {
		c.logger.Warn("feature set narrowed", log.SkippedKey, report.Skipped)
	}
	return nil
}

func (c *Cleaner) verify(t *dataset.Table, report *CleanReport) error {
	var cols []string
	for _, name := range c.required {
		if report.IsSkipped(name) || slices.Contains(cols, name) {
			continue
		}
		col, ok := t.Column(name)
		if !ok {
			return errors.NewCleaningError(name, "required column was pruned")
		}
		if col.Kind != dataset.Numeric {
			return errors.NewCleaningError(name, "required column is not numeric; add it to cleaning.numeric")
		}
		if n := col.MissingCount(); n > 0 {
			return errors.NewCleaningError(name, strconv.Itoa(n)+" missing values remain after imputation")
		}
		cols = append(cols, name)
	}
	if len(cols) == 0 {
		return nil
	}
	m, err := Matrix(t, cols)
	if err != nil {
		return err
	}
	r, k := m.Dims()
	return errors.CheckMatrix("preprocessing.Clean", m, r, k, 0)
}

// NormalizeColumnNames returns a copy whose column names are NFC-normalized
// and stripped of surrounding white space, plus a map of the names that
// changed. Two raw names collapsing onto the same name is an error.
func NormalizeColumnNames(t *dataset.Table) (*dataset.Table, map[string]string, error) {
	renamed := make(map[string]string)
	seen := make(map[string]bool, len(t.Columns))
	out := t.Rename(func(raw string) string {
		name := strings.TrimFunc(norm.NFC.String(raw), unicode.IsSpace)
		if name != raw {
			renamed[raw] = name
		}
		return name
	})
	for _, name := range out.Names() {
		if seen[name] {
			return nil, nil, errors.NewCleaningError(name, "duplicate column name after normalization")
		}
		seen[name] = true
	}
	return out, renamed, nil
}

// CoerceNumeric returns a copy in which each listed column is parsed as
// float64. Cells that do not parse to a finite number, including placeholders
// such as ".", "" and "NA", become NaN. Absent and already-numeric columns are
// left alone. It returns the number of cells replaced per column and emits a
// DataConversionWarning for each column with replacements.
func CoerceNumeric(t *dataset.Table, columns []string) (*dataset.Table, map[string]int) {
	out := t.Clone()
	counts := make(map[string]int)
	for _, name := range columns {
		i := out.Index(name)
		if i < 0 || out.Columns[i].Kind == dataset.Numeric {
			continue
		}
		raw := out.Columns[i].Values
		values := make([]float64, len(raw))
		bad := 0
		for r, s := range raw {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				v = math.NaN()
				bad++
			}
			values[r] = v
		}
		out.Columns[i] = dataset.NewNumericColumn(name, values)
		counts[name] = bad
		if bad > 0 {
			errors.Warn(errors.NewDataConversionWarning(name, "string", "float64", bad,
				"unparseable values replaced by NaN"))
		}
	}
	return out, counts
}

// Prune returns a copy without the excluded columns, and the names that were
// actually removed.
func Prune(t *dataset.Table, exclude []string) (*dataset.Table, []string) {
	var dropped []string
	for _, name := range exclude {
		if t.Has(name) && !slices.Contains(dropped, name) {
			dropped = append(dropped, name)
		}
	}
	return t.Drop(dropped...), dropped
}

// Impute returns a copy in which the missing values of each column in
// policies are resolved by its strategy, plus the number of cells filled per
// column. Columns not in policies, and string columns, are left alone. A
// column with no observed values cannot be imputed and is returned unchanged.
func Impute(t *dataset.Table, policies map[string]config.ImputeStrategy) (*dataset.Table, map[string]int, error) {
	out := t.Clone()
	counts := make(map[string]int)
	for i, col := range out.Columns {
		strategy, ok := policies[col.Name]
		if !ok || col.Kind != dataset.Numeric {
			continue
		}
		var filled int
		switch strategy {
		case config.ImputeMean:
			filled = imputeMean(col.Floats)
		case config.ImputeInterpolate:
			filled = imputeInterpolate(col.Floats)
		case config.ImputeNone, "":
		default:
			return nil, nil, errors.NewValidationError("cleaning.impute."+col.Name, "unknown imputation strategy", string(strategy))
		}
		out.Columns[i].Floats = col.Floats
		counts[col.Name] = filled
	}
	return out, counts, nil
}

func imputeMean(xs []float64) int {
	observed := dataset.Observed(xs)
	if len(observed) == 0 || len(observed) == len(xs) {
		return 0
	}
	mean := stat.Mean(observed, nil)
	filled := 0
	for i, v := range xs {
		if math.IsNaN(v) {
			xs[i] = mean
			filled++
		}
	}
	return filled
}

// imputeInterpolate fills interior gaps linearly by row position and edge
// gaps with the nearest observed value.
func imputeInterpolate(xs []float64) int {
	prev := -1
	filled := 0
	for i := 0; i <= len(xs); i++ {
		if i < len(xs) && math.IsNaN(xs[i]) {
			continue
		}
		// xs[prev+1:i] is a gap bounded by prev and i (either may be out of range).
		for g := prev + 1; g < i; g++ {
			switch {
			case prev < 0 && i >= len(xs):
				// no observed values at all
				return 0
			case prev < 0:
				xs[g] = xs[i]
			case i >= len(xs):
				xs[g] = xs[prev]
			default:
				frac := float64(g-prev) / float64(i-prev)
				xs[g] = xs[prev] + frac*(xs[i]-xs[prev])
			}
			filled++
		}
		prev = i
	}
	return filled
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
