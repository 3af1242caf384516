package pipeline

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlprep/config"
	"github.com/YuminosukeSato/mlprep/core/model"
	"github.com/YuminosukeSato/mlprep/dataset"
	"github.com/YuminosukeSato/mlprep/metrics"
	"github.com/YuminosukeSato/mlprep/model_selection"
	"github.com/YuminosukeSato/mlprep/pkg/errors"
	"github.com/YuminosukeSato/mlprep/pkg/log"
	"github.com/YuminosukeSato/mlprep/preprocessing"
	"github.com/YuminosukeSato/mlprep/visualize"
)

// BuoyResult holds every artifact of a buoy run.
type BuoyResult struct {
	RunID string

	Raw         *dataset.Table
	Clean       *dataset.Table
	CleanReport *preprocessing.CleanReport

	// Features are the configured features that survived cleaning, in
	// configured order.
	Features  []string
	Partition model_selection.Partition
	Split     model_selection.Split

	// Scaler is nil when scaling is disabled.
	Scaler preprocessing.Scaler

	Artifact    model.Artifact
	Predictions *mat.VecDense
	Evaluation  model.Evaluation
	Report      metrics.RegressionReport

	// Attribution splits each test prediction by feature, relative to the
	// training rows. It is nil when the artifact is not a model.Explainer.
	Attribution *model.Attribution

	Plots []string
}

// Buoy runs the regression pipeline over the CSV at dataPath: ingest, clean,
// select features, partition, scale on the training rows only, fit, predict
// and score.
func Buoy(ctx context.Context, cfg config.Config, dataPath string, trainer model.Trainer, opts ...Option) (*BuoyResult, error) {
	if trainer == nil {
		return nil, errors.NewValidationError("trainer", "must not be nil", nil)
	}
	r, err := newRunner(cfg, opts...)
	if err != nil {
		return nil, err
	}
	res := &BuoyResult{RunID: r.id}
	r.logger.Info("pipeline started", log.SourceKey, dataPath, log.RandomSeedKey, cfg.Seed, log.HoldoutKey, cfg.Holdout)

	err = r.stage(ctx, "ingest", func() error {
		res.Raw, err = dataset.ReadCSV(ctx, dataPath, dataset.CSVOptions{Logger: r.logger})
		return err
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, "clean", func() error {
		cleaner := preprocessing.NewCleaner(cfg.Cleaning,
			preprocessing.WithLogger(r.logger),
			preprocessing.WithRequired(append(append([]string(nil), cfg.Features...), cfg.Target)...),
		)
		res.Clean, res.CleanReport, err = cleaner.Clean(res.Raw)
		return err
	})
	if err != nil {
		return nil, err
	}

	var (
		X *mat.Dense
		y *mat.VecDense
	)
	err = r.stage(ctx, "features", func() error {
		if res.CleanReport.IsSkipped(cfg.Target) {
			return errors.NewCleaningError(cfg.Target, "target column not present in source")
		}
		for _, f := range cfg.Features {
			if !res.CleanReport.IsSkipped(f) {
				res.Features = append(res.Features, f)
			}
		}
		if len(res.Features) == 0 {
			return errors.NewCleaningError(cfg.Target, "no feature columns present in source")
		}
		X, y, err = preprocessing.SplitFeatures(res.Clean, res.Features, cfg.Target)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, "split", func() error {
		n, _ := X.Dims()
		if res.Partition, err = model_selection.TrainTestSplit(n, cfg.Holdout, cfg.Seed); err != nil {
			return err
		}
		if len(res.Partition.Test) == 0 {
			return errors.NewValidationError("holdout", "leaves no test samples", cfg.Holdout)
		}
		res.Split, err = res.Partition.Apply(X, y)
		if err != nil {
			return err
		}
		r.logger.Info("data partitioned",
			log.OperationKey, log.OperationSplit,
			"train", len(res.Partition.Train),
			"test", len(res.Partition.Test),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	xTrain, xTest := mat.Matrix(res.Split.XTrain), mat.Matrix(res.Split.XTest)
	err = r.stage(ctx, "scale", func() error {
		if res.Scaler, err = preprocessing.NewScaler(cfg.Scaling.Method); err != nil || res.Scaler == nil {
			return err
		}
		if xTrain, err = res.Scaler.FitTransform(res.Split.XTrain); err != nil {
			return err
		}
		xTest, err = res.Scaler.Transform(res.Split.XTest)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, "fit", func() error {
		res.Artifact, err = r.fit(ctx, trainer, xTrain, res.Split.YTrain)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, "evaluate", func() error {
		pred, err := r.predict(ctx, trainer, res.Artifact, xTest)
		if err != nil {
			return err
		}
		rows, _ := pred.Dims()
		res.Predictions = mat.NewVecDense(rows, mat.Col(nil, 0, pred))
		yTest := mat.NewVecDense(len(res.Partition.Test), mat.Col(nil, 0, res.Split.YTest))

		if res.Report, err = metrics.NewRegressionReport(yTest, res.Predictions); err != nil {
			return err
		}
		if res.Evaluation, err = r.evaluate(ctx, trainer, res.Artifact, xTest, res.Split.YTest); err != nil {
			return err
		}
		r.logger.Info("model evaluated",
			log.OperationKey, log.OperationEvaluate,
			log.ModelNameKey, res.Artifact.Name(),
			log.MSEKey, res.Report.MSE,
			log.RMSEKey, res.Report.RMSE,
			log.R2ScoreKey, res.Report.R2,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, "explain", func() error {
		if res.Attribution, err = r.explain(res.Artifact, xTest, xTrain); err != nil || res.Attribution == nil {
			return err
		}
		r.logger.Info("predictions attributed",
			log.ModelNameKey, res.Artifact.Name(),
			"base", res.Attribution.Base,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.buoyPlots(res, cfg.Target)

	err = r.stage(ctx, "output", func() error {
		if err := r.saveArtifact(res.Artifact); err != nil {
			return err
		}
		return r.record(ctx, res.Artifact.Name(), len(res.Partition.Train), res.Report.Map())
	})
	if err != nil {
		return nil, err
	}

	res.Plots = r.plots
	r.logger.Info("pipeline complete", "report", res.Report)
	return res, nil
}

func (r *runner) buoyPlots(res *BuoyResult, target string) {
	tgt, _ := res.Clean.Column(target)

	if d := r.cfg.Cleaning.Date; d != nil {
		if dates, ok := res.Clean.Column(d.Name); ok {
			ts := make([]time.Time, len(dates.Values))
			for i, s := range dates.Values {
				ts[i], _ = time.Parse(time.DateOnly, s)
			}
			r.plot("target_over_time.png", func(p string) error {
				return visualize.TimeSeries(p, target+" over time", target, ts, tgt.Floats)
			})
		}
	}

	r.plot("target_histogram.png", func(p string) error {
		return visualize.Histogram(p, target+" distribution", tgt.Floats, 30)
	})
	if air, ok := numericColumn(res.Clean, "Air Temp"); ok && target != "Air Temp" {
		r.plot("air_temp_histogram.png", func(p string) error {
			return visualize.Histogram(p, "Air Temp distribution", air, 30)
		})
	}
	zonal, okZ := numericColumn(res.Clean, "Zonal Winds")
	merid, okM := numericColumn(res.Clean, "Meridional Winds")
	if okZ && okM {
		r.plot("zonal_vs_meridional.png", func(p string) error {
			return visualize.Scatter(p, "Zonal vs Meridional Winds", "Zonal Winds", "Meridional Winds", zonal, merid)
		})
	}

	lat, okLat := numericColumn(res.Clean, "Latitude")
	lon, okLon := numericColumn(res.Clean, "Longitude")
	if okLat && okLon {
		r.plot("target_by_position.png", func(p string) error {
			return visualize.GeoScatter(p, target+" by position", lat, lon, tgt.Floats)
		})
	}

	for _, f := range res.Features {
		col, _ := res.Clean.Column(f)
		r.plot("scatter_"+fileSafe(f)+".png", func(p string) error {
			return visualize.Scatter(p, f+" vs "+target, f, target, col.Floats, tgt.Floats)
		})
	}

	r.plot("actual_vs_predicted.png", func(p string) error {
		return visualize.ActualVsPredicted(p,
			mat.Col(nil, 0, res.Split.YTest),
			res.Predictions.RawVector().Data,
		)
	})

	if res.Attribution != nil {
		r.plot("feature_impact.png", func(p string) error {
			return visualize.AttributionSummary(p, res.Features, res.Attribution.Values)
		})
	}
}

func numericColumn(t *dataset.Table, name string) ([]float64, bool) {
	c, ok := t.Column(name)
	if !ok || c.Kind != dataset.Numeric {
		return nil, false
	}
	return c.Floats, true
}

func fileSafe(name string) string {
	out := []rune(name)
	for i, c := range out {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
