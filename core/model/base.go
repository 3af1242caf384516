package model

// EstimatorState records whether a scaler, encoder or artifact has learned
// its parameters.
type EstimatorState int

const (
	NotFitted EstimatorState = iota
	Fitted
)

func (s EstimatorState) String() string {
	if s == Fitted {
		return "fitted"
	}
	return "not fitted"
}

// BaseEstimator is embedded by every type that must refuse Transform or
// Predict before Fit. State is exported so gob carries it through
// SaveModel and LoadModel.
type BaseEstimator struct {
	State EstimatorState
}

func (e *BaseEstimator) IsFitted() bool { return e.State == Fitted }

// SetFitted is called once Fit has stored its parameters.
func (e *BaseEstimator) SetFitted() { e.State = Fitted }

// Reset forgets the fitted state so the value can be fitted again.
func (e *BaseEstimator) Reset() { e.State = NotFitted }
