// Package scorer turns a feature vector into a probability and a planet or false positive decision
package scorer

import (
	"errors"
	"fmt"
	"math"

	"exoseek/internal/core/artifact"
	"exoseek/internal/core/features"
	"exoseek/internal/core/row"
)

// Labels returned to callers
const (
	LabelPlanet        = "Likely Planet"
	LabelFalsePositive = "False Positive"
)

const (
	// DecisionThreshold is the serving cut; a probability must exceed it
	DecisionThreshold = 0.5
	// TrainingThreshold is the cut used when evaluating the model offline; inclusive
	TrainingThreshold = 0.50
)

// ErrNoModel means scoring was asked for while no artifact is loaded
var ErrNoModel = errors.New("scorer: model not loaded")

// InferenceError reports a failure inside the artifact for a concrete feature list
type InferenceError struct {
	Features []features.Name
	Err      error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed: %v", e.Err)
}

// Unwrap exposes the underlying cause
func (e *InferenceError) Unwrap() error { return e.Err }

// Result is one scored candidate
type Result struct {
	Probability float64         // rounded to 3 decimals
	Raw         float64         // unrounded; used for the decision
	Label       string
	Features    []features.Name // list the vector was built from
}

// Planet reports whether the result was classified as a planet
func (r Result) Planet() bool { return r.Label == LabelPlanet }

// Scorer applies a fixed serving threshold
// the zero value uses DecisionThreshold
type Scorer struct {
	Threshold float64
}

// New returns a scorer with threshold t; non finite or out of range values fall back to the default
func New(t float64) Scorer {
	if math.IsNaN(t) || t < 0 || t > 1 {
		t = DecisionThreshold
	}
	return Scorer{Threshold: t}
}

// Cutoff returns the effective serving threshold
func (s Scorer) Cutoff() float64 {
	if s.Threshold == 0 {
		return DecisionThreshold
	}
	return s.Threshold
}

// Score runs m on v and applies the decision rule
// artifact failures, panics included, come back as *InferenceError
func (s Scorer) Score(m artifact.Model, v row.Vector) (res Result, err error) {
	names := v.Names()
	if m == nil {
		return Result{Features: names}, ErrNoModel
	}

	defer func() {
		if r := recover(); r != nil {
			res = Result{Features: names}
			err = &InferenceError{Features: names, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	p, perr := m.PredictProba(v.Values())
	if perr != nil {
		return Result{Features: names}, &InferenceError{Features: names, Err: perr}
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return Result{Features: names}, &InferenceError{Features: names, Err: fmt.Errorf("probability %v outside [0,1]", p)}
	}

	return Result{
		Probability: Round3(p),
		Raw:         p,
		Label:       s.Label(p),
		Features:    names,
	}, nil
}

// Label maps an unrounded probability to a label with a strict comparison
func (s Scorer) Label(p float64) string {
	if p > s.Cutoff() {
		return LabelPlanet
	}
	return LabelFalsePositive
}

// TrainingDecision is the inclusive rule used by offline evaluation
func TrainingDecision(p float64) bool { return p >= TrainingThreshold }

// Round3 rounds to 3 decimals, ties to even: 0.0625 is 0.062
func Round3(p float64) float64 { return math.RoundToEven(p*1000) / 1000 }
