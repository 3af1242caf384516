package pipeline

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlprep/config"
	"github.com/YuminosukeSato/mlprep/core/model"
	"github.com/YuminosukeSato/mlprep/dataset"
	"github.com/YuminosukeSato/mlprep/metrics"
	"github.com/YuminosukeSato/mlprep/pkg/errors"
	"github.com/YuminosukeSato/mlprep/pkg/log"
	"github.com/YuminosukeSato/mlprep/preprocessing"
	"github.com/YuminosukeSato/mlprep/visualize"
)

// DigitsResult holds every artifact of a digits run.
type DigitsResult struct {
	RunID string

	Train, Test             *dataset.ImageSet
	TrainImages, TestImages preprocessing.ImageTensor
	TrainTargets            *mat.Dense
	TestTargets             *mat.Dense

	// Scaler is nil when scaling is disabled.
	Scaler preprocessing.Scaler

	Artifact   model.Artifact
	History    model.History
	Evaluation model.Evaluation
	Predicted  []int
	Report     metrics.ClassificationReport

	Plots []string
}

// Digits runs the classification pipeline over the IDX archive in dataDir:
// load, normalize pixels, one-hot encode, fit with the configured validation
// split, evaluate on the archive's test set and score.
func Digits(ctx context.Context, cfg config.Config, dataDir string, trainer model.Trainer, opts ...Option) (*DigitsResult, error) {
	if trainer == nil {
		return nil, errors.NewValidationError("trainer", "must not be nil", nil)
	}
	r, err := newRunner(cfg, opts...)
	if err != nil {
		return nil, err
	}
	res := &DigitsResult{RunID: r.id}
	k := cfg.Images.Classes
	r.logger.Info("pipeline started", log.SourceKey, dataDir, log.ClassesKey, k)

	err = r.stage(ctx, "ingest", func() error {
		if res.Train, res.Test, err = dataset.LoadMNIST(dataDir); err != nil {
			return err
		}
		r.logger.Info("archive loaded",
			log.OperationKey, log.OperationIngest,
			"train", res.Train.Len(),
			"test", res.Test.Len(),
			"rows", res.Train.Rows,
			"cols", res.Train.Cols,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, "normalize", func() error {
		if res.TrainImages, err = preprocessing.NormalizePixels(res.Train, cfg.Images.MaxValue); err != nil {
			return err
		}
		res.TestImages, err = preprocessing.NormalizePixels(res.Test, cfg.Images.MaxValue)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, "encode", func() error {
		if res.TrainTargets, err = preprocessing.OneHot(res.Train.Labels, k); err != nil {
			return err
		}
		res.TestTargets, err = preprocessing.OneHot(res.Test.Labels, k)
		return err
	})
	if err != nil {
		return nil, err
	}

	var xTrain, xTest mat.Matrix = res.TrainImages.Flatten(), res.TestImages.Flatten()
	err = r.stage(ctx, "scale", func() error {
		if res.Scaler, err = preprocessing.NewScaler(cfg.Scaling.Method); err != nil || res.Scaler == nil {
			return err
		}
		if xTrain, err = res.Scaler.FitTransform(xTrain); err != nil {
			return err
		}
		xTest, err = res.Scaler.Transform(xTest)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, "fit", func() error {
		if res.Artifact, err = r.fit(ctx, trainer, xTrain, res.TrainTargets); err != nil {
			return err
		}
		if hp, ok := res.Artifact.(model.HistoryProvider); ok {
			res.History = hp.History()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, "evaluate", func() error {
		if res.Evaluation, err = r.evaluate(ctx, trainer, res.Artifact, xTest, res.TestTargets); err != nil {
			return err
		}
		probs, err := r.predict(ctx, trainer, res.Artifact, xTest)
		if err != nil {
			return err
		}
		if _, c := probs.Dims(); c != k {
			return errors.NewDimensionError("Digits.evaluate", k, c, 1)
		}
		res.Predicted = preprocessing.Argmax(probs)
		if res.Report, err = metrics.NewClassificationReport(res.Test.Labels, res.Predicted, k); err != nil {
			return err
		}
		r.logger.Info("model evaluated",
			log.OperationKey, log.OperationEvaluate,
			log.ModelNameKey, res.Artifact.Name(),
			log.LossKey, res.Evaluation.Loss,
			log.AccuracyKey, res.Report.Accuracy,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.plot("confusion_matrix.png", func(p string) error {
		return visualize.ConfusionHeatmap(p, res.Report.Confusion)
	})
	r.plot("class_scores.png", func(p string) error {
		return visualize.ClassScoresBar(p, res.Report.Classes)
	})
	r.plot("test_scores.png", func(p string) error {
		return visualize.MetricsBar(p, "Test scores", map[string]float64{
			"accuracy": res.Report.Accuracy,
			"loss":     res.Evaluation.Loss,
		})
	})
	if len(res.History.Loss) > 0 {
		r.plot("training_history.png", func(p string) error {
			return visualize.TrainingHistory(p, res.History)
		})
	}

	err = r.stage(ctx, "output", func() error {
		if err := r.saveArtifact(res.Artifact); err != nil {
			return err
		}
		scores := res.Report.Map()
		scores["loss"] = res.Evaluation.Loss
		return r.record(ctx, res.Artifact.Name(), res.Train.Len(), scores)
	})
	if err != nil {
		return nil, err
	}

	res.Plots = r.plots
	r.logger.Info("pipeline complete", "report", res.Report)
	return res, nil
}
