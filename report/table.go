// Package report renders evaluation summaries and records pipeline runs.
package report

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/YuminosukeSato/mlprep/dataset"
	"github.com/YuminosukeSato/mlprep/metrics"
	"github.com/YuminosukeSato/mlprep/pkg/errors"
)

// WriteRegressionTable writes one metric per line.
//
//	metric          value
//	MSE            0.2500
func WriteRegressionTable(w io.Writer, rep metrics.RegressionReport) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%-8s %12s\n", "metric", "value")
	for _, row := range []struct {
		name  string
		value float64
	}{
		{"MSE", rep.MSE},
		{"RMSE", rep.RMSE},
		{"MAE", rep.MAE},
		{"R2", rep.R2},
	} {
		fmt.Fprintf(bw, "%-8s %12.4f\n", row.name, row.value)
	}
	fmt.Fprintf(bw, "%-8s %12d\n", "samples", rep.N)
	return errors.Wrap(bw.Flush(), "write regression table")
}

// WriteClassificationTable writes per-class precision, recall, F1 and
// support, then accuracy, the macro and weighted averages, and the confusion
// matrix with true classes as rows.
func WriteClassificationTable(w io.Writer, rep metrics.ClassificationReport) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%12s %10s %10s %10s %10s\n", "class", "precision", "recall", "f1-score", "support")
	for _, s := range rep.Classes {
		fmt.Fprintf(bw, "%12d %10.4f %10.4f %10.4f %10d\n", s.Class, s.Precision, s.Recall, s.F1, s.Support)
	}
	fmt.Fprintln(bw)
	fmt.Fprintf(bw, "%12s %10s %10s %10.4f %10d\n", "accuracy", "", "", rep.Accuracy, rep.Total)
	for _, avg := range []struct {
		name string
		s    metrics.ClassScores
	}{
		{"macro avg", rep.MacroAvg},
		{"weighted avg", rep.WeightedAvg},
	} {
		fmt.Fprintf(bw, "%12s %10.4f %10.4f %10.4f %10d\n", avg.name, avg.s.Precision, avg.s.Recall, avg.s.F1, avg.s.Support)
	}

	if rep.Confusion != nil {
		r, c := rep.Confusion.Dims()
		fmt.Fprintln(bw)
		fmt.Fprintf(bw, "%9s", "confusion")
		for j := 0; j < c; j++ {
			fmt.Fprintf(bw, " %5d", j)
		}
		fmt.Fprintln(bw)
		for i := 0; i < r; i++ {
			fmt.Fprintf(bw, "%9d", i)
			for j := 0; j < c; j++ {
				fmt.Fprintf(bw, " %5d", int(rep.Confusion.At(i, j)))
			}
			fmt.Fprintln(bw)
		}
	}
	return errors.Wrap(bw.Flush(), "write classification table")
}

// WriteSummaryTable writes one row per column of a Describe result.
// Statistics of string columns print as NaN.
func WriteSummaryTable(w io.Writer, summaries []dataset.Summary) error {
	width := len("column")
	for _, s := range summaries {
		width = max(width, len(s.Name))
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%-*s %-8s %6s %7s %10s %10s %10s %10s\n",
		width, "column", "kind", "count", "missing", "mean", "std", "min", "max")
	for _, s := range summaries {
		fmt.Fprintf(bw, "%-*s %-8s %6d %7d %10.4f %10.4f %10.4f %10.4f\n",
			width, s.Name, s.Kind, s.Count, s.Missing, s.Mean, s.Std, s.Min, s.Max)
	}
	return errors.Wrap(bw.Flush(), "write summary table")
}

// WriteRunsTable writes one row per recorded run with its metrics sorted by
// name.
func WriteRunsTable(w io.Writer, runs []Run) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%-36s %-8s %-8s %-20s %s\n", "id", "pipeline", "model", "created", "metrics")
	for _, r := range runs {
		names := make([]string, 0, len(r.Metrics))
		for k := range r.Metrics {
			names = append(names, k)
		}
		sort.Strings(names)
		scores := make([]string, len(names))
		for i, k := range names {
			scores[i] = fmt.Sprintf("%s=%.4f", k, r.Metrics[k])
		}
		fmt.Fprintf(bw, "%-36s %-8s %-8s %-20s %s\n",
			r.ID, r.Pipeline, r.Model, r.CreatedAt.UTC().Format(time.DateTime), strings.Join(scores, " "))
	}
	return errors.Wrap(bw.Flush(), "write runs table")
}
