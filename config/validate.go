package config

import (
	_ "embed"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/YuminosukeSato/mlprep/pkg/errors"
)

//go:embed schema.cue
var schemaSource string

// Validate checks cfg against the embedded CUE schema and then checks the
// search space.
func Validate(cfg Config) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return errors.Wrap(err, "compile config schema")
	}

	value := ctx.Encode(cfg)
	if err := value.Err(); err != nil {
		return errors.Wrap(err, "encode config for validation")
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return errors.NewValidationError("config", cueerrors.Details(err, nil), cfg.Pipeline)
	}

	if len(cfg.Search.Floats) > 0 || len(cfg.Search.Ints) > 0 {
		if err := cfg.Search.Validate(); err != nil {
			return err
		}
	}
	return nil
}
