package dataset

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/YuminosukeSato/mlprep/pkg/errors"
	"github.com/YuminosukeSato/mlprep/pkg/log"
)

// CSVOptions controls delimited-file parsing.
type CSVOptions struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune
	// Comment, if set, marks lines to skip.
	Comment rune
	// TrimLeadingSpace trims leading white space in fields.
	TrimLeadingSpace bool
	// Logger receives ingestion progress. Nil uses the default logger.
	Logger log.Logger
}

// ReadCSV reads a delimited file with a header row into a string-typed Table.
func ReadCSV(ctx context.Context, path string, opts CSVOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewDataSourceError(path, "cannot open", err)
	}
	defer f.Close()

	return ReadCSVFrom(ctx, bufio.NewReader(f), path, opts)
}

// ReadCSVFrom reads a delimited stream with a header row. source names the
// stream in errors and logs.
func ReadCSVFrom(ctx context.Context, r io.Reader, source string, opts CSVOptions) (*Table, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.GetLoggerWithName("dataset")
	}

	reader := csv.NewReader(r)
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}
	reader.Comment = opts.Comment
	reader.TrimLeadingSpace = opts.TrimLeadingSpace
	// Ragged rows are checked against the header below so the error names the line.
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewDataSourceError(source, "empty file", nil)
	}
	if err != nil {
		return nil, errors.NewDataSourceError(source, "malformed header", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	if err := checkHeader(source, header); err != nil {
		return nil, err
	}

	cells := make([][]string, len(header))
	line := 1
	for {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrap(err, "read csv")
			}
		}
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.NewDataSourceError(source, "malformed record", err)
		}
		if len(rec) == 1 && rec[0] == "" {
			continue
		}
		if len(rec) != len(header) {
			return nil, errors.NewDataSourceError(source,
				"record has wrong number of fields",
				errors.Newf("line %d: expected %d fields, got %d", line, len(header), len(rec)))
		}
		for j, v := range rec {
			cells[j] = append(cells[j], v)
		}
	}

	cols := make([]Column, len(header))
	for j, name := range header {
		vals := cells[j]
		if vals == nil {
			vals = []string{}
		}
		cols[j] = NewStringColumn(name, vals)
	}
	t, err := NewTable(source, cols...)
	if err != nil {
		return nil, errors.NewDataSourceError(source, "inconsistent columns", err)
	}

	rows, ncols := t.Shape()
	logger.Info("table loaded",
		log.OperationKey, log.OperationIngest,
		log.SourceKey, source,
		log.SamplesKey, rows,
		log.FeaturesKey, ncols,
	)
	return t, nil
}

func checkHeader(source string, header []string) error {
	seen := make(map[string]bool, len(header))
	for _, h := range header {
		key := strings.TrimSpace(h)
		if key == "" {
			return errors.NewDataSourceError(source, "header contains an empty column name", nil)
		}
		if seen[key] {
			return errors.NewDataSourceError(source, "duplicate column name '"+key+"'", nil)
		}
		seen[key] = true
	}
	return nil
}
