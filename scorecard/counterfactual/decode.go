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
	"fmt"
	"math"

	log "github.com/golang/glog"

	"github.com/gtnx/optbinning/sat/cpmodel"
)

// Unchanged marks a feature that keeps the query value.
const Unchanged = "-"

// outcomeTolerance absorbs the rounding of the link function when checking outcome bounds.
const outcomeTolerance = 1e-9

// Change is the suggested value of one feature.
type Change struct {
	Feature string
	Changed bool
	// Bin is the index of the selected bin in the encoded feature.
	Bin   int
	Label string
	// Lower and Upper bound regular numerical bins, NaN otherwise.
	Lower      float64
	Upper      float64
	Categories []string
}

// Value returns the bin label of a changed feature and Unchanged otherwise.
func (c Change) Value() string {
	if !c.Changed {
		return Unchanged
	}
	return c.Label
}

// Solution is one counterfactual.
type Solution struct {
	// Changes has one entry per feature, in model order.
	Changes []Change
	Score   float64
	// Outcome is the model outcome of the assignment, recomputed from the bin scores.
	Outcome    float64
	NumChanges int
	Proximity  float64
	// Closeness is in score units: log-odds for binary outcomes.
	Closeness float64
	Objective float64
}

// Bins returns the selected bin of every feature.
func (s Solution) Bins() []int {
	bins := make([]int, len(s.Changes))
	for i, c := range s.Changes {
		bins[i] = c.Bin
	}
	return bins
}

// ChangedFeatures returns the names of the changed features.
func (s Solution) ChangedFeatures() []string {
	var names []string
	for _, c := range s.Changes {
		if c.Changed {
			names = append(names, c.Feature)
		}
	}
	return names
}

// decode returns the bin of every feature selected by replica `r` in `resp`.
func (f *formulation) decode(p *Problem, resp *cpmodel.CpSolverResponse, r int) ([]int, error) {
	rep := f.replicas[r]
	bins := make([]int, len(rep.x))
	for i, xs := range rep.x {
		selected := 0
		for b, x := range xs {
			if cpmodel.SolutionBooleanValue(resp, x) {
				bins[i] = b
				selected++
			}
		}
		if selected != 1 {
			return nil, fmt.Errorf("feature %q has %d selected bins: %w", p.enc.Features()[i].Name, selected, ErrOneHot)
		}
	}
	return bins, nil
}

// solution evaluates a bin assignment with the exact bin scores.
func (p *Problem) solution(bins []int) Solution {
	var s Solution
	for i, f := range p.enc.Features() {
		b := f.Bins[bins[i]]
		c := Change{
			Feature:    f.Name,
			Changed:    bins[i] != p.current[i],
			Bin:        bins[i],
			Label:      b.Label,
			Lower:      b.Lower,
			Upper:      b.Upper,
			Categories: b.Categories,
		}
		if c.Changed {
			s.NumChanges++
		}
		s.Proximity += p.distances[i][bins[i]]
		s.Changes = append(s.Changes, c)
	}
	s.Score = p.enc.Score(bins)
	s.Outcome = p.enc.Link().Apply(s.Score)
	s.Closeness = p.closeness(s.Score)
	s.Objective = p.set.alpha*s.Proximity + p.set.beta*s.Closeness
	return s
}

// violation returns why `s` breaks an active hard constraint, or "" if it does not.
func (p *Problem) violation(s Solution) string {
	tol := outcomeTolerance * math.Max(1, math.Abs(p.set.target))
	switch {
	case p.set.has(MinOutcome) && s.Outcome < p.set.target-tol:
		return fmt.Sprintf("outcome %v below target %v", s.Outcome, p.set.target)
	case p.set.has(MaxOutcome) && s.Outcome > p.set.target+tol:
		return fmt.Sprintf("outcome %v above target %v", s.Outcome, p.set.target)
	case p.set.has(MaxChanges) && s.NumChanges > p.set.maxChanges:
		return fmt.Sprintf("%d changes, at most %d allowed", s.NumChanges, p.set.maxChanges)
	}
	return ""
}

// postProcess evaluates the assignments of a run, dropping the ones breaking a hard constraint.
func (p *Problem) postProcess(assignments [][]int) []Solution {
	var out []Solution
	for k, bins := range assignments {
		s := p.solution(bins)
		if why := p.violation(s); why != "" {
			log.Warningf("counterfactual: dropping solution %d: %s", k, why)
			continue
		}
		out = append(out, s)
	}
	return out
}
