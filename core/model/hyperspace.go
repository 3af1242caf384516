package model

import (
	"math"

	"github.com/YuminosukeSato/mlprep/pkg/errors"
)

// FloatRange is an inclusive stepped float range, e.g. dropout 0.1..0.5 step 0.1.
type FloatRange struct {
	Name string  `yaml:"name" json:"name"`
	Min  float64 `yaml:"min" json:"min"`
	Max  float64 `yaml:"max" json:"max"`
	Step float64 `yaml:"step" json:"step"`
}

// Values enumerates the range. Rounding keeps 0.1-step ranges from
// accumulating error.
func (r FloatRange) Values() []float64 {
	if r.Step <= 0 || r.Max < r.Min {
		return nil
	}
	n := int(math.Floor((r.Max-r.Min)/r.Step+1e-9)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Round((r.Min+float64(i)*r.Step)*1e9) / 1e9
	}
	return out
}

// IntRange is an inclusive stepped integer range, e.g. units 32..512 step 32.
type IntRange struct {
	Name string `yaml:"name" json:"name"`
	Min  int    `yaml:"min" json:"min"`
	Max  int    `yaml:"max" json:"max"`
	Step int    `yaml:"step" json:"step"`
}

// Values enumerates the range.
func (r IntRange) Values() []int {
	if r.Step <= 0 || r.Max < r.Min {
		return nil
	}
	out := make([]int, 0, (r.Max-r.Min)/r.Step+1)
	for v := r.Min; v <= r.Max; v += r.Step {
		out = append(out, v)
	}
	return out
}

// HyperSpace is the bounded search space handed to an external tuner.
type HyperSpace struct {
	Floats    []FloatRange `yaml:"floats" json:"floats"`
	Ints      []IntRange   `yaml:"ints" json:"ints"`
	MaxTrials int          `yaml:"max_trials" json:"max_trials"`
	Objective string       `yaml:"objective" json:"objective"`
}

// Size is the number of distinct points in the space.
func (h HyperSpace) Size() int {
	if len(h.Floats) == 0 && len(h.Ints) == 0 {
		return 0
	}
	size := 1
	for _, f := range h.Floats {
		size *= len(f.Values())
	}
	for _, i := range h.Ints {
		size *= len(i.Values())
	}
	return size
}

// Validate checks that every range is non-empty and names are unique.
func (h HyperSpace) Validate() error {
	seen := make(map[string]bool)
	check := func(name string, n int) error {
		if name == "" {
			return errors.NewValidationError("search.name", "range name must not be empty", name)
		}
		if seen[name] {
			return errors.NewValidationError("search.name", "duplicate range name", name)
		}
		seen[name] = true
		if n == 0 {
			return errors.NewValidationError("search."+name, "range is empty (check min, max and step)", n)
		}
		return nil
	}
	for _, f := range h.Floats {
		if err := check(f.Name, len(f.Values())); err != nil {
			return err
		}
	}
	for _, i := range h.Ints {
		if err := check(i.Name, len(i.Values())); err != nil {
			return err
		}
	}
	if h.MaxTrials < 0 {
		return errors.NewValidationError("search.max_trials", "must not be negative", h.MaxTrials)
	}
	return nil
}
