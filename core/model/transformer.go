package model

import "gonum.org/v1/gonum/mat"

// Transformer is a feature transformation whose statistics come from the
// training partition. Transform must leave those statistics untouched so
// test rows are scaled with what was learned on training rows.
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	// FitTransform is shorthand for Fit then Transform on the same rows.
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// InverseTransformer can map scaled features back to their original units.
type InverseTransformer interface {
	Transformer
	InverseTransform(X mat.Matrix) (mat.Matrix, error)
}
