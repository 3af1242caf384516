package log

// Attribute keys follow a "<group>.<name>" convention so entries can be
// filtered by group.

// Operation context.
const (
	// ModelNameKey identifies a model or transformer, e.g. "StandardScaler".
	ModelNameKey = "model.name"

	// RunIDKey identifies a single pipeline run.
	RunIDKey = "run.id"

	// PipelineKey names the pipeline ("buoy", "digits").
	PipelineKey = "run.pipeline"

	// OperationKey is the operation in progress. See the Operation* values.
	OperationKey = "ml.operation"

	// ComponentKey names the package emitting the entry.
	ComponentKey = "ml.component"

	// PhaseKey is the lifecycle phase. See the Phase* values.
	PhaseKey = "ml.phase"

	// StageKey names the pipeline stage.
	StageKey = "ml.stage"
)

// Data shape.
const (
	SamplesKey   = "data.samples"
	FeaturesKey  = "data.features"
	TargetsKey   = "data.targets"
	ClassesKey   = "data.classes"
	SourceKey    = "data.source"
	BatchSizeKey = "data.batch_size"
)

// Cleaning.
const (
	// ColumnKey is the column a cleaning entry refers to.
	ColumnKey = "clean.column"

	// CoercedKey counts cells replaced by the missing marker.
	CoercedKey = "clean.coerced"

	// ImputedKey counts cells filled by imputation.
	ImputedKey = "clean.imputed"

	// StrategyKey is the imputation strategy.
	StrategyKey = "clean.strategy"

	// DroppedKey lists pruned columns.
	DroppedKey = "clean.dropped"

	// SkippedKey lists nominated columns absent from the source.
	SkippedKey = "clean.skipped"
)

// Performance and quality.
const (
	DurationMsKey = "perf.duration_ms"
	AccuracyKey   = "metrics.accuracy"
	LossKey       = "metrics.loss"
	MSEKey        = "metrics.mse"
	RMSEKey       = "metrics.rmse"
	R2ScoreKey    = "metrics.r2_score"
	EpochKey      = "training.epoch"
)

// Errors.
const (
	ErrorCodeKey  = "error.code"
	ErrorTypeKey  = "error.type"
	SuggestionKey = "error.suggestion"
)

// Configuration.
const (
	RandomSeedKey = "config.random_seed"
	HoldoutKey    = "config.holdout"
)

// Standard values.
const (
	OperationIngest    = "ingest"
	OperationClean     = "clean"
	OperationSplit     = "split"
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationEvaluate  = "evaluate"
	OperationReport    = "report"

	PhasePreprocessing = "preprocessing"
	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorDataSource        = "DATA_SOURCE"
	ErrorCleaning          = "CLEANING"
)
