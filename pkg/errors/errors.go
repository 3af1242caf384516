// Package errors provides the error taxonomy and warning system shared by every
// mlprep stage.
//
// Fatal conditions are typed errors carrying a stack trace from
// cockroachdb/errors. Recoverable conditions (a coerced cell, a skipped column,
// an undefined metric) are warnings routed through Warn, so callers decide
// whether they end up in a structured log, a report or nowhere.
package errors

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("mlprep-warning: %v\n", w)
	}
	// set by pkg/log to avoid an import cycle
	zerologWarnFunc func(warning error)
)

// SetWarningHandler replaces the process-wide warning handler.
//
//	errors.SetWarningHandler(func(w error) {
//	    // drop warnings
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	warningHandler = handler
	warningMutex.Unlock()
}

// SetZerologWarnFunc installs the structured warning sink. Passing nil restores
// the plain handler.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	zerologWarnFunc = warnFunc
	warningMutex.Unlock()
}

// Warn emits a warning. The zerolog sink wins when one is installed. The
// sink runs without the lock held, so it may itself call Warn.
func Warn(w error) {
	warningMutex.Lock()
	sink := zerologWarnFunc
	if sink == nil {
		sink = warningHandler
	}
	warningMutex.Unlock()

	if sink != nil {
		sink(w)
	}
}

// ConvergenceWarning is raised when an iterative capability stops at its
// epoch budget while the loss is still moving.
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message != "" {
		return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations. Consider increasing epochs or adjusting the learning rate.", w.Algorithm, w.Iterations)
}

// MarshalZerologObject adds the warning fields to a zerolog event.
func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning creates a ConvergenceWarning.
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// DataConversionWarning reports cells of a column that could not be parsed
// into the target type and were replaced by the missing marker.
type DataConversionWarning struct {
	Column   string
	FromType string
	ToType   string
	Count    int
	Reason   string
}

func (w *DataConversionWarning) Error() string {
	if w.Column != "" {
		return fmt.Sprintf("column '%s': %d value(s) converted from %s to %s. Reason: %s", w.Column, w.Count, w.FromType, w.ToType, w.Reason)
	}
	return fmt.Sprintf("data converted from %s to %s. Reason: %s", w.FromType, w.ToType, w.Reason)
}

// MarshalZerologObject adds the warning fields to a zerolog event.
func (w *DataConversionWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("column", w.Column).
		Str("from_type", w.FromType).
		Str("to_type", w.ToType).
		Int("count", w.Count).
		Str("reason", w.Reason).
		Str("type", "DataConversionWarning")
}

// NewDataConversionWarning creates a DataConversionWarning for a column.
func NewDataConversionWarning(column, from, to string, count int, reason string) *DataConversionWarning {
	return &DataConversionWarning{Column: column, FromType: from, ToType: to, Count: count, Reason: reason}
}

// MissingColumnWarning is the skip-with-report counterpart of CleaningError:
// a nominated column was absent and the feature set was narrowed.
type MissingColumnWarning struct {
	Column string
	Stage  string
}

func (w *MissingColumnWarning) Error() string {
	return fmt.Sprintf("column '%s' not found during %s; continuing without it", w.Column, w.Stage)
}

// MarshalZerologObject adds the warning fields to a zerolog event.
func (w *MissingColumnWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("column", w.Column).
		Str("stage", w.Stage).
		Str("type", "MissingColumnWarning")
}

// NewMissingColumnWarning creates a MissingColumnWarning.
func NewMissingColumnWarning(column, stage string) *MissingColumnWarning {
	return &MissingColumnWarning{Column: column, Stage: stage}
}

// UndefinedMetricWarning is raised when a metric has a zero denominator, e.g.
// precision for a class that was never predicted.
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64 // value returned under this condition
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// MarshalZerologObject adds the warning fields to a zerolog event.
func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result).
		Str("type", "UndefinedMetricWarning")
}

// NewUndefinedMetricWarning creates an UndefinedMetricWarning.
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// DataSourceError means the input could not be read or is malformed. It is
// fatal: the run aborts.
type DataSourceError struct {
	Source string
	Reason string
	Err    error
}

func (e *DataSourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mlprep: data source '%s': %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("mlprep: data source '%s': %s", e.Source, e.Reason)
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *DataSourceError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("source", e.Source).
		Str("reason", e.Reason).
		Str("type", "DataSourceError")
}

// NewDataSourceError creates a DataSourceError with a stack trace.
func NewDataSourceError(source, reason string, err error) error {
	return errors.WithStack(&DataSourceError{Source: source, Reason: reason, Err: err})
}

// CleaningError means a column required by the cleaning stage is absent or
// unusable.
type CleaningError struct {
	Column string
	Reason string
}

func (e *CleaningError) Error() string {
	return fmt.Sprintf("mlprep: cleaning column '%s': %s", e.Column, e.Reason)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *CleaningError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("column", e.Column).
		Str("reason", e.Reason).
		Str("type", "CleaningError")
}

// NewCleaningError creates a CleaningError with a stack trace.
func NewCleaningError(column, reason string) error {
	return errors.WithStack(&CleaningError{Column: column, Reason: reason})
}

// NotFittedError is returned when Transform or Predict runs before Fit.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("mlprep: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with a stack trace.
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError reports a shape mismatch on one axis.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("mlprep: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, e.axisName(), e.Expected, e.Got)
}

func (e *DimensionError) axisName() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "features"
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", e.axisName()).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError reports a parameter or configuration value outside its
// accepted domain.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("mlprep: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError creates a ValidationError with a stack trace.
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError is returned when an argument has the right type but an
// unusable value, such as an empty vector.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("mlprep: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace.
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError wraps a failure raised by a model capability.
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mlprep: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("mlprep: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError creates a ModelError with a stack trace.
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// NumericalInstabilityError reports NaN or Inf where finite values are
// required.
type NumericalInstabilityError struct {
	Operation string
	Values    []float64
	Iteration int
}

func (e *NumericalInstabilityError) Error() string {
	const shown = 5
	parts := make([]string, 0, shown+1)
	for i, v := range e.Values {
		if i == shown {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, strconv.FormatFloat(v, 'g', 6, 64))
	}
	return fmt.Sprintf("mlprep: %s produced non-finite values at iteration %d: [%s]",
		e.Operation, e.Iteration, strings.Join(parts, ", "))
}

// NewNumericalInstabilityError creates a NumericalInstabilityError with a
// stack trace.
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	return errors.WithStack(&NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Iteration: iteration,
	})
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap annotates err with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf annotates err with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates an error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

var (
	// ErrEmptyData is returned when an operation receives no rows.
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix is returned when a normal-equation solve is impossible.
	ErrSingularMatrix = New("singular matrix")
)
