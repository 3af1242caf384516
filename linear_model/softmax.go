// Package linear_model provides a multinomial logistic regression Trainer
// fitted by mini-batch gradient descent.
package linear_model

import (
	"context"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlprep/core/model"
	"github.com/YuminosukeSato/mlprep/metrics"
	"github.com/YuminosukeSato/mlprep/model_selection"
	"github.com/YuminosukeSato/mlprep/pkg/errors"
	"github.com/YuminosukeSato/mlprep/pkg/log"
	"github.com/YuminosukeSato/mlprep/preprocessing"
)

// Name identifies artifacts produced by SoftmaxClassifier.
const Name = "softmax"

// OptimizerSGD is the only optimizer SoftmaxClassifier implements.
const OptimizerSGD = "sgd"

// SoftmaxClassifier is a single-layer softmax model. It reads Optimizer,
// LearningRate, BatchSize, Epochs, L2, ValidationSplit and Seed from
// TrainConfig. Hidden and Dropout describe deeper networks and are ignored.
type SoftmaxClassifier struct {
	logger log.Logger
}

// Option configures a SoftmaxClassifier.
type Option func(*SoftmaxClassifier)

// WithLogger replaces the package logger.
func WithLogger(l log.Logger) Option {
	return func(c *SoftmaxClassifier) {
		c.logger = l
	}
}

// NewSoftmaxClassifier returns a classifier that logs per-epoch progress at
// debug level.
func NewSoftmaxClassifier(opts ...Option) *SoftmaxClassifier {
	c := &SoftmaxClassifier{logger: log.GetLoggerWithName("linear_model.softmax")}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SoftmaxArtifact is a fitted softmax model. W is row-major
// NFeatures×NClasses.
type SoftmaxArtifact struct {
	model.BaseEstimator
	W         []float64
	B         []float64
	NFeatures int
	NClasses  int
	Curves    model.History
}

// Name implements model.Artifact.
func (a *SoftmaxArtifact) Name() string { return Name }

// History implements model.HistoryProvider.
func (a *SoftmaxArtifact) History() model.History { return a.Curves }

func (a *SoftmaxArtifact) weights() *mat.Dense {
	return mat.NewDense(a.NFeatures, a.NClasses, a.W)
}

// probabilities returns softmax(XW + b) row by row.
func (a *SoftmaxArtifact) probabilities(X mat.Matrix) *mat.Dense {
	var z mat.Dense
	z.Mul(X, a.weights())
	r, _ := z.Dims()
	for i := 0; i < r; i++ {
		row := z.RawRowView(i)
		floats.Add(row, a.B)
		softmax(row)
	}
	return &z
}

func softmax(row []float64) {
	top := floats.Max(row)
	var sum float64
	for j, v := range row {
		row[j] = math.Exp(v - top)
		sum += row[j]
	}
	floats.Scale(1/sum, row)
}

func validate(cfg model.TrainConfig) error {
	if cfg.Optimizer != "" && cfg.Optimizer != OptimizerSGD {
		return errors.NewValidationError("optimizer", "softmax supports only sgd", cfg.Optimizer)
	}
	if cfg.LearningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be positive", cfg.LearningRate)
	}
	if cfg.BatchSize <= 0 {
		return errors.NewValidationError("batch_size", "must be positive", cfg.BatchSize)
	}
	if cfg.Epochs <= 0 {
		return errors.NewValidationError("epochs", "must be positive", cfg.Epochs)
	}
	if cfg.L2 < 0 {
		return errors.NewValidationError("l2", "must be non-negative", cfg.L2)
	}
	return nil
}

// Fit trains on X (n×features) against one-hot Y (n×classes). The last
// ValidationSplit fraction of rows is held back and scored after every epoch.
// Training rows are reshuffled each epoch from a generator seeded with
// cfg.Seed.
func (c *SoftmaxClassifier) Fit(ctx context.Context, X, Y mat.Matrix, cfg model.TrainConfig) (model.Artifact, error) {
	n, d := X.Dims()
	ny, k := Y.Dims()
	if n == 0 || d == 0 {
		return nil, errors.NewModelError("softmax.Fit", "empty data", errors.ErrEmptyData)
	}
	if ny != n {
		return nil, errors.NewDimensionError("softmax.Fit", n, ny, 0)
	}
	if k < 2 {
		return nil, errors.NewValidationError("classes", "must be at least 2", k)
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	split, err := model_selection.ValidationSplit(n, cfg.ValidationSplit)
	if err != nil {
		return nil, err
	}
	if len(split.Train) == 0 {
		return nil, errors.NewValidationError("validation_split", "leaves no training samples", cfg.ValidationSplit)
	}
	parts, err := split.Apply(X, Y)
	if err != nil {
		return nil, err
	}
	xTrain, yTrain := parts.XTrain, parts.YTrain
	nTrain := len(split.Train)

	rng := rand.New(rand.NewSource(cfg.Seed))
	a := &SoftmaxArtifact{
		W:         make([]float64, d*k),
		B:         make([]float64, k),
		NFeatures: d,
		NClasses:  k,
	}
	for i := range a.W {
		a.W[i] = rng.NormFloat64() * 0.01
	}
	W := a.weights()

	logger := c.loggerOrDefault().With(log.OperationKey, log.OperationFit, log.ModelNameKey, Name)
	logger.Info("training started",
		log.SamplesKey, nTrain,
		log.FeaturesKey, d,
		log.ClassesKey, k,
		log.EpochKey, cfg.Epochs,
	)

	grad := mat.NewDense(d, k, nil)
	gradB := make([]float64, k)
	order := make([]int, nTrain)
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rng.Shuffle(nTrain, func(i, j int) { order[i], order[j] = order[j], order[i] })

		for start := 0; start < nTrain; start += cfg.BatchSize {
			end := min(start+cfg.BatchSize, nTrain)
			batch := order[start:end]
			xb := model_selection.Rows(xTrain, batch)
			yb := model_selection.Rows(yTrain, batch)

			// P - Y is the cross-entropy gradient w.r.t. the logits
			delta := a.probabilities(xb)
			delta.Sub(delta, yb)

			m := float64(len(batch))
			grad.Mul(xb.T(), delta)
			grad.Scale(1/m, grad)
			if cfg.L2 > 0 {
				grad.Add(grad, scaled(cfg.L2, W))
			}
			for j := 0; j < k; j++ {
				gradB[j] = floats.Sum(mat.Col(nil, j, delta)) / m
			}

			grad.Scale(cfg.LearningRate, grad)
			W.Sub(W, grad)
			floats.AddScaled(a.B, -cfg.LearningRate, gradB)
		}

		if err := errors.CheckMatrix("softmax.Fit", W, d, k, epoch); err != nil {
			return nil, err
		}

		loss, acc, err := score(a, xTrain, yTrain)
		if err != nil {
			return nil, err
		}
		a.Curves.Loss = append(a.Curves.Loss, loss)
		a.Curves.Accuracy = append(a.Curves.Accuracy, acc)
		fields := []any{log.EpochKey, epoch + 1, log.LossKey, loss, log.AccuracyKey, acc}

		if len(split.Test) > 0 {
			vLoss, vAcc, err := score(a, parts.XTest, parts.YTest)
			if err != nil {
				return nil, err
			}
			a.Curves.ValLoss = append(a.Curves.ValLoss, vLoss)
			a.Curves.ValAccuracy = append(a.Curves.ValAccuracy, vAcc)
			fields = append(fields, "val_loss", vLoss, "val_accuracy", vAcc)
		}
		logger.Debug("epoch complete", fields...)
	}

	if first, last := a.Curves.Loss[0], a.Curves.Loss[len(a.Curves.Loss)-1]; last > first {
		errors.Warn(errors.NewConvergenceWarning("softmax", cfg.Epochs,
			"training loss rose; lower learning_rate"))
	}

	a.SetFitted()
	logger.Info("training complete",
		log.LossKey, a.Curves.Loss[len(a.Curves.Loss)-1],
		log.AccuracyKey, a.Curves.Accuracy[len(a.Curves.Accuracy)-1],
	)
	return a, nil
}

func (c *SoftmaxClassifier) loggerOrDefault() log.Logger {
	if c == nil || c.logger == nil {
		return log.GetLoggerWithName("linear_model.softmax")
	}
	return c.logger
}

func scaled(f float64, m mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Scale(f, m)
	return &out
}

func score(a *SoftmaxArtifact, X, Y mat.Matrix) (loss, acc float64, err error) {
	P := a.probabilities(X)
	loss, err = metrics.LogLoss(Y, P)
	if err != nil {
		return 0, 0, err
	}
	acc, err = metrics.Accuracy(preprocessing.Argmax(Y), preprocessing.Argmax(P))
	return loss, acc, err
}

// Predict returns an n×classes matrix of class probabilities.
func (c *SoftmaxClassifier) Predict(ctx context.Context, art model.Artifact, X mat.Matrix) (mat.Matrix, error) {
	a, err := fitted(art, "Predict")
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, d := X.Dims()
	if r == 0 {
		return nil, errors.NewModelError("softmax.Predict", "empty data", errors.ErrEmptyData)
	}
	if d != a.NFeatures {
		return nil, errors.NewDimensionError("softmax.Predict", a.NFeatures, d, 1)
	}
	return a.probabilities(X), nil
}

// Evaluate reports categorical cross-entropy as the loss and accuracy as the
// only metric.
func (c *SoftmaxClassifier) Evaluate(ctx context.Context, art model.Artifact, X, Y mat.Matrix) (model.Evaluation, error) {
	a, err := fitted(art, "Evaluate")
	if err != nil {
		return model.Evaluation{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.Evaluation{}, err
	}
	r, d := X.Dims()
	if r == 0 {
		return model.Evaluation{}, errors.NewModelError("softmax.Evaluate", "empty data", errors.ErrEmptyData)
	}
	if d != a.NFeatures {
		return model.Evaluation{}, errors.NewDimensionError("softmax.Evaluate", a.NFeatures, d, 1)
	}
	if _, k := Y.Dims(); k != a.NClasses {
		return model.Evaluation{}, errors.NewDimensionError("softmax.Evaluate", a.NClasses, k, 1)
	}
	loss, acc, err := score(a, X, Y)
	if err != nil {
		return model.Evaluation{}, err
	}
	return model.Evaluation{Loss: loss, Metrics: map[string]float64{"accuracy": acc}}, nil
}

func fitted(art model.Artifact, method string) (*SoftmaxArtifact, error) {
	a, ok := art.(*SoftmaxArtifact)
	if !ok || a == nil {
		return nil, errors.NewValueError("softmax."+method, "artifact was not produced by SoftmaxClassifier")
	}
	if !a.IsFitted() {
		return nil, errors.NewNotFittedError("SoftmaxClassifier", method)
	}
	return a, nil
}
