package metrics

import (
	"strconv"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlprep/pkg/errors"
)

func checkLabels(op string, yTrue, yPred []int) error {
	if len(yTrue) == 0 {
		return errors.NewValueError(op, "empty label slice")
	}
	if len(yPred) != len(yTrue) {
		return errors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	return nil
}

// Accuracy is the fraction of positions where yPred equals yTrue.
func Accuracy(yTrue, yPred []int) (float64, error) {
	if err := checkLabels("Accuracy", yTrue, yPred); err != nil {
		return 0, err
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}

// ConfusionMatrix returns the k×k count matrix whose cell (i, j) is the number
// of samples of true class i predicted as class j. Row i sums to the support
// of class i.
func ConfusionMatrix(yTrue, yPred []int, k int) (*mat.Dense, error) {
	if k < 1 {
		return nil, errors.NewValidationError("classes", "must be positive", k)
	}
	if err := checkLabels("ConfusionMatrix", yTrue, yPred); err != nil {
		return nil, err
	}
	cm := mat.NewDense(k, k, nil)
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if t < 0 || t >= k || p < 0 || p >= k {
			return nil, errors.NewValidationError("label", "outside [0, classes)", [2]int{t, p})
		}
		cm.Set(t, p, cm.At(t, p)+1)
	}
	return cm, nil
}

// ClassScores holds per-class or averaged precision, recall and F1.
type ClassScores struct {
	Class     int // -1 for averages
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// PrecisionRecallF1 derives per-class scores from a confusion matrix. A ratio
// with a zero denominator is reported as 0 with an UndefinedMetricWarning.
func PrecisionRecallF1(cm mat.Matrix) ([]ClassScores, error) {
	r, c := cm.Dims()
	if r != c || r == 0 {
		return nil, errors.NewDimensionError("PrecisionRecallF1", r, c, 1)
	}
	out := make([]ClassScores, r)
	for k := 0; k < r; k++ {
		tp := cm.At(k, k)
		var predicted, actual float64
		for i := 0; i < r; i++ {
			predicted += cm.At(i, k)
			actual += cm.At(k, i)
		}
		s := ClassScores{Class: k, Support: int(actual)}
		s.Precision = ratio("precision", k, tp, predicted)
		s.Recall = ratio("recall", k, tp, actual)
		if s.Precision+s.Recall > 0 {
			s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
		}
		out[k] = s
	}
	return out, nil
}

func ratio(metric string, class int, num, den float64) float64 {
	if den == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(metric,
			"no samples for class "+strconv.Itoa(class), 0))
		return 0
	}
	return num / den
}

// ClassificationReport is the summary of a classification evaluation.
type ClassificationReport struct {
	Classes     []ClassScores
	Accuracy    float64
	MacroAvg    ClassScores
	WeightedAvg ClassScores
	Total       int
	Confusion   *mat.Dense
}

// NewClassificationReport builds the confusion matrix, per-class scores and
// macro and support-weighted averages.
func NewClassificationReport(yTrue, yPred []int, k int) (ClassificationReport, error) {
	cm, err := ConfusionMatrix(yTrue, yPred, k)
	if err != nil {
		return ClassificationReport{}, err
	}
	scores, err := PrecisionRecallF1(cm)
	if err != nil {
		return ClassificationReport{}, err
	}

	rep := ClassificationReport{
		Classes:     scores,
		Total:       len(yTrue),
		Confusion:   cm,
		MacroAvg:    ClassScores{Class: -1, Support: len(yTrue)},
		WeightedAvg: ClassScores{Class: -1, Support: len(yTrue)},
	}
	rep.Accuracy = mat.Trace(cm) / float64(rep.Total)

	n := float64(len(scores))
	for _, s := range scores {
		w := float64(s.Support) / float64(rep.Total)
		rep.MacroAvg.Precision += s.Precision / n
		rep.MacroAvg.Recall += s.Recall / n
		rep.MacroAvg.F1 += s.F1 / n
		rep.WeightedAvg.Precision += s.Precision * w
		rep.WeightedAvg.Recall += s.Recall * w
		rep.WeightedAvg.F1 += s.F1 * w
	}
	return rep, nil
}

// Map returns the headline scores keyed by metric name.
func (r ClassificationReport) Map() map[string]float64 {
	return map[string]float64{
		"accuracy":           r.Accuracy,
		"macro_precision":    r.MacroAvg.Precision,
		"macro_recall":       r.MacroAvg.Recall,
		"macro_f1":           r.MacroAvg.F1,
		"weighted_precision": r.WeightedAvg.Precision,
		"weighted_recall":    r.WeightedAvg.Recall,
		"weighted_f1":        r.WeightedAvg.F1,
	}
}

// MarshalZerologObject adds the headline scores to a zerolog event.
func (r ClassificationReport) MarshalZerologObject(e *zerolog.Event) {
	e.Float64("accuracy", r.Accuracy).
		Float64("macro_f1", r.MacroAvg.F1).
		Float64("weighted_f1", r.WeightedAvg.F1).
		Int("support", r.Total)
}

// LogLoss is the mean categorical cross-entropy between one-hot targets Y and
// predicted class probabilities P. Probabilities are floored at 1e-10.
func LogLoss(Y, P mat.Matrix) (float64, error) {
	r, c := Y.Dims()
	pr, pc := P.Dims()
	if r == 0 {
		return 0, errors.NewValueError("LogLoss", "empty matrix")
	}
	if pr != r {
		return 0, errors.NewDimensionError("LogLoss", r, pr, 0)
	}
	if pc != c {
		return 0, errors.NewDimensionError("LogLoss", c, pc, 1)
	}
	var sum float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if y := Y.At(i, j); y != 0 {
				sum -= y * errors.StabilizeLog(P.At(i, j))
			}
		}
	}
	loss := sum / float64(r)
	if err := errors.CheckScalar("metrics.LogLoss", loss, 0); err != nil {
		return 0, err
	}
	return loss, nil
}
