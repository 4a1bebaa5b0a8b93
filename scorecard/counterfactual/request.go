// Copyright 2010-2024 Google LLC
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package counterfactual

import (
	"math"
	"sort"
	"time"

	"github.com/gtnx/optbinning/scorecard"
)

// ConstraintKind is one of the hard constraints a request may activate.
type ConstraintKind int

const (
	// MinOutcome requires the outcome to be at least the target.
	MinOutcome ConstraintKind = iota
	// MaxOutcome requires the outcome to be at most the target.
	MaxOutcome
	// MaxChanges bounds the number of changed features.
	MaxChanges
	// DiversityFeatures requires the sets of changed features to differ pairwise.
	DiversityFeatures
	// DiversityValues requires the bin assignments to differ pairwise.
	DiversityValues

	numConstraintKinds
)

var constraintNames = [numConstraintKinds]string{
	MinOutcome:        "min_outcome",
	MaxOutcome:        "max_outcome",
	MaxChanges:        "max_changes",
	DiversityFeatures: "diversity_features",
	DiversityValues:   "diversity_values",
}

func (k ConstraintKind) String() string {
	if k < 0 || k >= numConstraintKinds {
		return "unknown"
	}
	return constraintNames[k]
}

// ParseConstraintKind returns the constraint named `name`.
func ParseConstraintKind(name string) (ConstraintKind, bool) {
	for k, n := range constraintNames {
		if n == name {
			return ConstraintKind(k), true
		}
	}
	return 0, false
}

// ConstraintNames returns the names of all the hard constraints.
func ConstraintNames() []string {
	return append([]string(nil), constraintNames[:]...)
}

// ProximityMetric is the distance between a bin and the current bin of a feature.
type ProximityMetric string

const (
	// ProximityUniform costs the feature weight for every changed feature.
	ProximityUniform ProximityMetric = "uniform"
	// ProximityMagnitude costs the feature weight times the distance between bin centers,
	// normalized by the feature range.
	ProximityMagnitude ProximityMetric = "magnitude"
)

// ClosenessPenalty is the shape of the outcome-distance term of the objective.
type ClosenessPenalty string

const (
	// ClosenessHinge is zero once the score is on the target side of the threshold.
	ClosenessHinge ClosenessPenalty = "hinge"
	// ClosenessAbsolute is the distance between the score and the threshold.
	ClosenessAbsolute ClosenessPenalty = "absolute"
)

// Strategy selects how several counterfactuals are produced.
type Strategy string

const (
	// StrategyIterative solves once per counterfactual, excluding the solutions already found.
	StrategyIterative Strategy = "iterative"
	// StrategySimultaneous solves one model holding all the counterfactuals. A solve stopped at
	// the time limit hands the rest of the budget to StrategyIterative.
	StrategySimultaneous Strategy = "simultaneous"
)

// Direction restricts the bins a numerical feature may move to.
type Direction string

const (
	// DirectionAny lets the feature move to any allowed bin.
	DirectionAny Direction = "any"
	// DirectionIncrease only allows bins at or above the current one.
	DirectionIncrease Direction = "increase"
	// DirectionDecrease only allows bins at or below the current one.
	DirectionDecrease Direction = "decrease"
)

// Weights of the objective terms. Both zero means 1 and 1.
type Weights struct {
	Proximity float64
	Closeness float64
	// Features holds per-feature proximity weights, 1 when absent.
	Features map[string]float64
}

// Request holds the parameters of one Generate call.
type Request struct {
	Target float64
	// Outcome is "binary" or "continuous" and must match the model.
	Outcome         string
	NumCF           int
	MaxChanges      int
	HardConstraints []string
	// TimeLimit is the solver budget of the whole call, none when 0.
	TimeLimit time.Duration
	Weights   Weights

	// Proximity defaults to ProximityUniform.
	Proximity ProximityMetric
	// Closeness defaults to ClosenessHinge.
	Closeness ClosenessPenalty
	// Strategy defaults to StrategyIterative.
	Strategy Strategy
	// ActionableFeatures lists the features that may change, all when nil.
	ActionableFeatures []string
	Directions         map[string]Direction
	// AllowSpecial lets features move to their missing and special bins.
	AllowSpecial bool
}

// settings is a validated Request.
type settings struct {
	target      float64
	numCF       int
	maxChanges  int
	active      [numConstraintKinds]bool
	timeLimit   time.Duration
	alpha, beta float64
	weights     []float64
	proximity   ProximityMetric
	closeness   ClosenessPenalty
	strategy    Strategy
	actionable  []bool
	directions  []Direction
	allowSpec   bool
}

func (s *settings) has(k ConstraintKind) bool { return s.active[k] }

func (s *settings) kinds() []ConstraintKind {
	var out []ConstraintKind
	for k, on := range s.active {
		if on {
			out = append(out, ConstraintKind(k))
		}
	}
	return out
}

func validWeight(w float64) bool {
	return w >= 0 && !math.IsInf(w, 0)
}

// validate checks the request against the encoded model.
func (r Request) validate(enc *Encoding) (*settings, error) {
	kind, err := scorecard.ParseOutcomeKind(r.Outcome)
	if err != nil {
		return nil, &InvalidRequestError{Field: "outcome", Reason: "unrecognized outcome kind", Err: err}
	}
	if kind != enc.OutcomeKind() {
		return nil, invalidf("outcome", "%s request on a %s model", kind, enc.OutcomeKind())
	}
	if math.IsNaN(r.Target) || math.IsInf(r.Target, 0) {
		return nil, invalidf("target", "must be finite, got %v", r.Target)
	}
	if kind == scorecard.Binary && (r.Target < 0 || r.Target > 1) {
		return nil, invalidf("target", "binary target must be in [0, 1], got %v", r.Target)
	}
	if r.NumCF < 1 {
		return nil, invalidf("num_cf", "must be positive, got %d", r.NumCF)
	}
	nf := enc.NumFeatures()
	if r.MaxChanges < 0 || r.MaxChanges > nf {
		return nil, invalidf("max_changes", "must be in [0, %d], got %d", nf, r.MaxChanges)
	}
	if r.TimeLimit < 0 {
		return nil, invalidf("time_limit", "must not be negative, got %v", r.TimeLimit)
	}

	s := &settings{
		target:     r.Target,
		numCF:      r.NumCF,
		maxChanges: r.MaxChanges,
		timeLimit:  r.TimeLimit,
		alpha:      r.Weights.Proximity,
		beta:       r.Weights.Closeness,
		proximity:  r.Proximity,
		closeness:  r.Closeness,
		strategy:   r.Strategy,
		weights:    make([]float64, nf),
		actionable: make([]bool, nf),
		directions: make([]Direction, nf),
		allowSpec:  r.AllowSpecial,
	}
	for _, name := range r.HardConstraints {
		k, ok := ParseConstraintKind(name)
		if !ok {
			return nil, invalidf("hard_constraints", "unknown constraint %q, want one of %v", name, ConstraintNames())
		}
		s.active[k] = true
	}

	if !validWeight(s.alpha) || !validWeight(s.beta) {
		return nil, invalidf("weights", "proximity and closeness weights must be non-negative, got %v and %v", s.alpha, s.beta)
	}
	if s.alpha == 0 && s.beta == 0 {
		s.alpha, s.beta = 1, 1
	}
	for i := range s.weights {
		s.weights[i] = 1
		s.actionable[i] = r.ActionableFeatures == nil
		s.directions[i] = DirectionAny
	}
	for _, name := range sortedKeys(r.Weights.Features) {
		i, ok := enc.FeatureIndex(name)
		if !ok {
			return nil, invalidf("weights", "unknown feature %q", name)
		}
		w := r.Weights.Features[name]
		if !validWeight(w) {
			return nil, invalidf("weights", "feature %q weight must be non-negative, got %v", name, w)
		}
		s.weights[i] = w
	}
	for _, name := range r.ActionableFeatures {
		i, ok := enc.FeatureIndex(name)
		if !ok {
			return nil, invalidf("actionable_features", "unknown feature %q", name)
		}
		s.actionable[i] = true
	}
	for _, name := range sortedKeys(r.Directions) {
		i, ok := enc.FeatureIndex(name)
		if !ok {
			return nil, invalidf("directions", "unknown feature %q", name)
		}
		d := r.Directions[name]
		switch d {
		case "", DirectionAny:
			d = DirectionAny
		case DirectionIncrease, DirectionDecrease:
			if enc.Features()[i].Type != scorecard.Numerical {
				return nil, invalidf("directions", "feature %q is not numerical", name)
			}
		default:
			return nil, invalidf("directions", "feature %q: unknown direction %q", name, d)
		}
		s.directions[i] = d
	}

	switch s.proximity {
	case "":
		s.proximity = ProximityUniform
	case ProximityUniform, ProximityMagnitude:
	default:
		return nil, invalidf("proximity", "unknown metric %q", s.proximity)
	}
	switch s.closeness {
	case "":
		s.closeness = ClosenessHinge
	case ClosenessHinge, ClosenessAbsolute:
	default:
		return nil, invalidf("closeness", "unknown penalty %q", s.closeness)
	}
	switch s.strategy {
	case "":
		s.strategy = StrategyIterative
	case StrategyIterative, StrategySimultaneous:
	default:
		return nil, invalidf("strategy", "unknown strategy %q", s.strategy)
	}
	return s, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
