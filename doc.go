// Package mlprep prepares raw data for supervised learning and scores the
// models fitted on it.
//
// Two pipelines are provided. The buoy pipeline reads tabular sensor data
// from CSV, cleans and imputes it, partitions it into training and test
// rows, scales features on the training rows only, fits a regressor and
// reports MSE, RMSE, MAE and R². The digits pipeline reads IDX image
// archives, normalizes pixel intensities, one-hot encodes labels, fits a
// classifier with a validation split and reports accuracy, per-class
// precision/recall/F1 and the confusion matrix.
//
// # Installation
//
//	go install github.com/YuminosukeSato/mlprep/cmd/mlprep@latest
//
// # Quick Start
//
//	mlprep buoy --data elnino.csv --plots out/ --store runs.db
//	mlprep digits --data mnist/ --model-out digits.gob
//	mlprep runs --store runs.db
//
// From Go:
//
//	cfg := config.DefaultBuoy()
//	trainer, err := pipeline.NewTrainer(cfg.Model)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := pipeline.Buoy(ctx, cfg, "elnino.csv", trainer)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("R²: %.4f\n", res.Report.R2)
//
// # Packages
//
//   - dataset: CSV and IDX ingestion into tables and image sets
//   - preprocessing: cleaning, imputation, encoding, feature selection, scaling
//   - model_selection: seeded train/test and validation partitions
//   - core/model: the Trainer contract, training config and persistence
//   - core/parallel: parallel processing utilities
//   - linear: ordinary least squares Trainer
//   - linear_model: softmax regression Trainer
//   - metrics: regression and classification scores
//   - report: metric tables and the SQLite run ledger
//   - visualize: exploratory and evaluation plots
//   - pipeline: the buoy and digits flows
//   - config: defaults, YAML overlay and CUE validation
//
// # Model capabilities
//
// The pipelines never look inside a trained model. Anything implementing
// model.Trainer can be passed to pipeline.Buoy or pipeline.Digits:
//
//	type Trainer interface {
//	    Fit(ctx context.Context, X, Y mat.Matrix, cfg TrainConfig) (Artifact, error)
//	    Predict(ctx context.Context, a Artifact, X mat.Matrix) (mat.Matrix, error)
//	    Evaluate(ctx context.Context, a Artifact, X, Y mat.Matrix) (Evaluation, error)
//	}
//
// # Performance
//
// Design-matrix construction and pixel normalization split across CPU cores
// above a row threshold. Every stage still completes before the next begins.
package mlprep
