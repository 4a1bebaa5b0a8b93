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

	"github.com/gtnx/optbinning/sat/cpmodel"
)

// fragment adds the constraints of one ConstraintKind to a model. `solution` applies to every
// counterfactual, `pair` to every pair of counterfactuals of a batch.
type fragment struct {
	solution func(p *Problem, b *cpmodel.Builder, r *replica)
	pair     func(p *Problem, b *cpmodel.Builder, r1, r2 *replica)
}

var fragments = [numConstraintKinds]fragment{
	MinOutcome:        {solution: minOutcome},
	MaxOutcome:        {solution: maxOutcome},
	MaxChanges:        {solution: maxChanges},
	DiversityFeatures: {pair: distinctChangedFeatures},
	DiversityValues:   {pair: distinctValues},
}

// scaledScore returns the scaled score of the replica minus the intercept, each bin score rounded
// with `round`.
func (p *Problem) scaledScore(r *replica, round func(float64) float64) *cpmodel.LinearExpr {
	le := cpmodel.NewLinearExpr()
	for i, f := range p.enc.Features() {
		for b, bin := range f.Bins {
			le.AddTerm(r.x[i][b], int64(round(bin.Score*p.scale)))
		}
	}
	return le
}

// minOutcome requires score >= threshold. Bin scores are rounded down and the bound up, so every
// feasible assignment satisfies the bound on the exact scores.
func minOutcome(p *Problem, b *cpmodel.Builder, r *replica) {
	bound := int64(math.Ceil((p.threshold - p.enc.Intercept()) * p.scale))
	b.AddGreaterOrEqual(p.scaledScore(r, math.Floor), cpmodel.NewConstant(bound)).WithName("min_outcome")
}

// maxOutcome requires score <= threshold, rounding the other way.
func maxOutcome(p *Problem, b *cpmodel.Builder, r *replica) {
	bound := int64(math.Floor((p.threshold - p.enc.Intercept()) * p.scale))
	b.AddLessOrEqual(p.scaledScore(r, math.Ceil), cpmodel.NewConstant(bound)).WithName("max_outcome")
}

func maxChanges(p *Problem, b *cpmodel.Builder, r *replica) {
	changes := cpmodel.NewLinearExpr()
	for _, c := range r.changed {
		changes.Add(c)
	}
	b.AddLessOrEqual(changes, cpmodel.NewConstant(int64(p.set.maxChanges))).WithName("max_changes")
}

// distinctValues requires some feature to take a bin in r1 that it does not take in r2.
func distinctValues(p *Problem, b *cpmodel.Builder, r1, r2 *replica) {
	var witnesses []cpmodel.BoolVar
	for i, xs := range r1.x {
		for j := range xs {
			if !p.allowed[i][j] {
				continue
			}
			e := b.NewBoolVar()
			b.AddImplication(e, r1.x[i][j])
			b.AddImplication(e, r2.x[i][j].Not())
			witnesses = append(witnesses, e)
		}
	}
	b.AddBoolOr(witnesses...).WithName("diversity_values")
}

// distinctChangedFeatures requires some feature to be changed in exactly one of r1 and r2.
func distinctChangedFeatures(p *Problem, b *cpmodel.Builder, r1, r2 *replica) {
	var witnesses []cpmodel.BoolVar
	for i := range r1.changed {
		if !p.set.actionable[i] {
			continue
		}
		e := b.NewBoolVar().WithName(fmt.Sprintf("differs[%d]", i))
		b.AddBoolOr(r1.changed[i], r2.changed[i]).OnlyEnforceIf(e)
		b.AddBoolOr(r1.changed[i].Not(), r2.changed[i].Not()).OnlyEnforceIf(e)
		witnesses = append(witnesses, e)
	}
	b.AddBoolOr(witnesses...).WithName("diversity_features")
}
