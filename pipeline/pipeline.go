// Package pipeline runs the two end-to-end preparation flows: buoy
// regression over tabular CSV data and digit classification over IDX image
// archives.
//
// Stages run one after another on the calling goroutine. Each stage returns a
// new artifact, the context is checked between stages, and every artifact is
// kept on the returned result.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlprep/config"
	"github.com/YuminosukeSato/mlprep/core/model"
	"github.com/YuminosukeSato/mlprep/linear"
	"github.com/YuminosukeSato/mlprep/linear_model"
	"github.com/YuminosukeSato/mlprep/pkg/errors"
	"github.com/YuminosukeSato/mlprep/pkg/log"
	"github.com/YuminosukeSato/mlprep/report"
)

// NewTrainer returns the capability registered under name.
func NewTrainer(name string) (model.Trainer, error) {
	switch name {
	case config.ModelLinear:
		return linear.NewRegressor(), nil
	case config.ModelSoftmax:
		return linear_model.NewSoftmaxClassifier(), nil
	default:
		return nil, errors.NewValidationError("model", "unknown capability", name)
	}
}

// Option configures a pipeline run.
type Option func(*runner)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(r *runner) { r.logger = l }
}

// WithStore records the finished run in s.
func WithStore(s *report.RunStore) Option {
	return func(r *runner) { r.store = s }
}

// runner carries per-run state shared by the stages.
type runner struct {
	id     string
	cfg    config.Config
	logger log.Logger
	store  *report.RunStore
	plots  []string
}

func newRunner(cfg config.Config, opts ...Option) (*runner, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Wrap(err, "generate run id")
	}
	r := &runner{id: id.String(), cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.GetLoggerWithName("pipeline")
	}
	r.logger = r.logger.With(log.PipelineKey, cfg.Pipeline, log.RunIDKey, r.id)
	return r, nil
}

// stage runs fn after checking ctx and logs its duration.
func (r *runner) stage(ctx context.Context, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "before %s", name)
	}
	start := time.Now()
	if err := fn(); err != nil {
		r.logger.Error("stage failed", err, log.StageKey, name)
		return err
	}
	r.logger.Debug("stage complete",
		log.StageKey, name,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// fit calls the capability with panics converted to errors.
func (r *runner) fit(ctx context.Context, trainer model.Trainer, X, Y mat.Matrix) (model.Artifact, error) {
	var art model.Artifact
	err := errors.SafeExecute("trainer.Fit", func() error {
		var err error
		art, err = trainer.Fit(ctx, X, Y, r.cfg.Train)
		return err
	})
	if err != nil {
		return nil, err
	}
	if art == nil {
		return nil, errors.NewModelError("trainer.Fit", "capability returned no artifact", nil)
	}
	return art, nil
}

func (r *runner) predict(ctx context.Context, trainer model.Trainer, art model.Artifact, X mat.Matrix) (mat.Matrix, error) {
	var out mat.Matrix
	err := errors.SafeExecute("trainer.Predict", func() error {
		var err error
		out, err = trainer.Predict(ctx, art, X)
		return err
	})
	return out, err
}

func (r *runner) evaluate(ctx context.Context, trainer model.Trainer, art model.Artifact, X, Y mat.Matrix) (model.Evaluation, error) {
	var ev model.Evaluation
	err := errors.SafeExecute("trainer.Evaluate", func() error {
		var err error
		ev, err = trainer.Evaluate(ctx, art, X, Y)
		return err
	})
	return ev, err
}

// explain attributes predictions on X when the artifact supports it. It
// returns nil without error for artifacts that do not.
func (r *runner) explain(art model.Artifact, X, background mat.Matrix) (*model.Attribution, error) {
	ex, ok := art.(model.Explainer)
	if !ok {
		return nil, nil
	}
	var attr model.Attribution
	err := errors.SafeExecute("artifact.Explain", func() error {
		var err error
		attr, err = ex.Explain(X, background)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &attr, nil
}

// plot renders into the configured plot directory. Without one it does
// nothing. Rendering failures are logged, not returned.
func (r *runner) plot(name string, render func(path string) error) {
	dir := r.cfg.Output.PlotDir
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.logger.Warn("plot directory unavailable", err, "dir", dir)
		return
	}
	path := filepath.Join(dir, name)
	if err := render(path); err != nil {
		r.logger.Warn("plot skipped", err, "plot", name)
		return
	}
	r.plots = append(r.plots, path)
}

// saveArtifact persists art when an output path is configured.
func (r *runner) saveArtifact(art model.Artifact) error {
	path := r.cfg.Output.ModelOut
	if path == "" {
		return nil
	}
	if err := model.SaveModel(art, path); err != nil {
		return err
	}
	r.logger.Info("model saved", log.ModelNameKey, art.Name(), "path", path)
	return nil
}

// record writes the run to the store when one is attached.
func (r *runner) record(ctx context.Context, modelName string, samples int, scores map[string]float64) error {
	if r.store == nil {
		return nil
	}
	_, err := r.store.Record(ctx, report.Run{
		ID:       r.id,
		Pipeline: r.cfg.Pipeline,
		Model:    modelName,
		Seed:     r.cfg.Seed,
		Holdout:  r.cfg.Holdout,
		Samples:  samples,
		Metrics:  scores,
	})
	return err
}
