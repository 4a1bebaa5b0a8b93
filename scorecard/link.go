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

package scorecard

import (
	"fmt"
	"math"
)

// Link maps the raw additive score of a scorecard to its outcome. Implementations are strictly
// increasing, so that Inverse(Apply(s)) == s up to rounding.
type Link interface {
	Name() string
	Apply(score float64) float64
	// Inverse returns the score whose outcome is `outcome`. It may return an infinite value when
	// the outcome is at the edge of the link range.
	Inverse(outcome float64) float64
}

// Identity is the link of continuous scorecards predicting the raw score.
type Identity struct{}

// Name returns "identity".
func (Identity) Name() string { return "identity" }

// Apply returns score.
func (Identity) Apply(score float64) float64 { return score }

// Inverse returns outcome.
func (Identity) Inverse(outcome float64) float64 { return outcome }

// Logistic is the link of binary scorecards: the score is the log-odds of the event.
type Logistic struct{}

// Name returns "logistic".
func (Logistic) Name() string { return "logistic" }

// Apply returns 1 / (1 + exp(-score)).
func (Logistic) Apply(score float64) float64 {
	return 1 / (1 + math.Exp(-score))
}

// Inverse returns log(p / (1 - p)), -Inf for p <= 0 and +Inf for p >= 1.
func (Logistic) Inverse(p float64) float64 {
	switch {
	case p <= 0:
		return math.Inf(-1)
	case p >= 1:
		return math.Inf(1)
	}
	return math.Log(p / (1 - p))
}

// Affine maps the score to `Slope*score + Offset`, as in scaled points scorecards.
type Affine struct {
	Slope  float64
	Offset float64
}

// Name returns "affine".
func (Affine) Name() string { return "affine" }

// Apply returns Slope*score + Offset.
func (a Affine) Apply(score float64) float64 {
	return a.Slope*score + a.Offset
}

// Inverse returns (outcome - Offset) / Slope.
func (a Affine) Inverse(outcome float64) float64 {
	return (outcome - a.Offset) / a.Slope
}

func (a Affine) String() string {
	return fmt.Sprintf("affine(%g, %g)", a.Slope, a.Offset)
}

// ParseLink returns the link named `name`. Affine links take their slope and offset from
// `params` and default to the identity mapping.
func ParseLink(name string, params ...float64) (Link, error) {
	switch name {
	case "", "identity":
		return Identity{}, nil
	case "logistic", "logit", "sigmoid":
		return Logistic{}, nil
	case "affine", "scaled":
		a := Affine{Slope: 1}
		if len(params) > 0 {
			a.Slope = params[0]
		}
		if len(params) > 1 {
			a.Offset = params[1]
		}
		if !(a.Slope > 0) || math.IsInf(a.Slope, 0) {
			return nil, fmt.Errorf("affine link slope must be positive and finite, got %v", a.Slope)
		}
		return a, nil
	}
	return nil, fmt.Errorf("unknown link %q", name)
}
