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
	"github.com/gtnx/optbinning/scorecard"
)

const (
	// ScoreScale is the number of integer units per score unit in the solver model.
	ScoreScale = 1e6
	// Scaled coefficients stay below this magnitude.
	maxScaled = 1e12
	// Smallest distance of a changed bin under the magnitude metric, relative to the feature
	// weight.
	minMagnitude = 0.01
	// Largest assignment number used to order the counterfactuals of a batch.
	maxOrder = int64(1) << 40
)

// gapSide tells which side of the threshold the closeness penalty measures.
type gapSide int

const (
	// Penalize scores below the threshold.
	gapBelow gapSide = iota
	// Penalize scores above the threshold.
	gapAbove
	gapBoth
)

// Problem is the optimization problem of one query and request. It is immutable once built.
type Problem struct {
	enc     *Encoding
	set     *settings
	current []int
	// threshold is the raw score matching the target, clamped to the reachable range.
	threshold float64
	scale     float64
	side      gapSide
	distances [][]float64
	allowed   [][]bool
}

// Build validates `req` and builds the problem of moving `query` to the target.
func Build(enc *Encoding, query scorecard.Row, req Request) (*Problem, error) {
	set, err := req.validate(enc)
	if err != nil {
		return nil, err
	}
	current, err := enc.CurrentBins(query)
	if err != nil {
		return nil, err
	}

	p := &Problem{
		enc:     enc,
		set:     set,
		current: current,
		scale:   ScoreScale,
	}
	lo, hi := enc.ScoreRange()
	p.threshold = math.Max(lo-1, math.Min(hi+1, enc.Link().Inverse(set.target)))

	maxAbs := math.Abs(p.threshold - enc.Intercept())
	for _, f := range enc.Features() {
		for _, b := range f.Bins {
			maxAbs = math.Max(maxAbs, math.Abs(b.Score))
		}
	}
	maxAbs *= float64(enc.NumFeatures() + 1)
	if maxAbs*p.scale > maxScaled {
		p.scale = maxScaled / maxAbs
	}

	switch {
	case set.closeness == ClosenessAbsolute:
		p.side = gapBoth
	case set.has(MinOutcome):
		p.side = gapBelow
	case set.has(MaxOutcome):
		p.side = gapAbove
	case enc.Score(current) <= p.threshold:
		p.side = gapBelow
	default:
		p.side = gapAbove
	}

	for i, f := range enc.Features() {
		p.distances = append(p.distances, p.featureDistances(i, f))
		p.allowed = append(p.allowed, p.allowedBins(i, f))
	}
	log.V(1).Infof("counterfactual: problem with %d features, threshold %v, constraints %v", enc.NumFeatures(), p.threshold, set.kinds())
	return p, nil
}

func (p *Problem) featureDistances(i int, f EncodedFeature) []float64 {
	w := p.set.weights[i]
	cur := f.Bins[p.current[i]]
	d := make([]float64, len(f.Bins))
	for b, bin := range f.Bins {
		switch {
		case b == p.current[i]:
			d[b] = 0
		case p.set.proximity == ProximityMagnitude && f.Type == scorecard.Numerical &&
			bin.Kind == scorecard.BinRegular && cur.Kind == scorecard.BinRegular:
			d[b] = w * math.Max(minMagnitude, math.Abs(bin.Center-cur.Center)/f.Range)
		default:
			d[b] = w
		}
	}
	return d
}

func (p *Problem) allowedBins(i int, f EncodedFeature) []bool {
	cur := p.current[i]
	curBin := f.Bins[cur]
	ok := make([]bool, len(f.Bins))
	for b, bin := range f.Bins {
		switch {
		case b == cur:
			ok[b] = true
		case !p.set.actionable[i]:
		case (bin.Kind == scorecard.BinMissing || bin.Kind == scorecard.BinSpecial) && !p.set.allowSpec:
		case p.set.directions[i] == DirectionIncrease && bin.Kind == scorecard.BinRegular &&
			curBin.Kind == scorecard.BinRegular && bin.Lower < curBin.Lower:
		case p.set.directions[i] == DirectionDecrease && bin.Kind == scorecard.BinRegular &&
			curBin.Kind == scorecard.BinRegular && bin.Lower > curBin.Lower:
		default:
			ok[b] = true
		}
	}
	return ok
}

// Current returns the bin of the query for every feature.
func (p *Problem) Current() []int { return p.current }

// Threshold returns the raw score the outcome constraints compare to.
func (p *Problem) Threshold() float64 { return p.threshold }

// Constraints returns the active hard constraints.
func (p *Problem) Constraints() []ConstraintKind { return p.set.kinds() }

// Allowed reports whether feature `f` may take bin `b`.
func (p *Problem) Allowed(f, b int) bool { return p.allowed[f][b] }

// replica holds the variables of one counterfactual in the solver model.
type replica struct {
	// x[f][b] is true when feature f takes bin b.
	x [][]cpmodel.BoolVar
	// changed[f] is the negation of the current bin of feature f.
	changed []cpmodel.BoolVar
	// gap bounds the scaled closeness penalty.
	gap cpmodel.IntVar
}

// formulation is the solver model of a problem for a number of counterfactuals.
type formulation struct {
	builder  *cpmodel.Builder
	replicas []*replica
}

// formulate builds the solver model for `n` counterfactuals, excluding the assignments held by
// `ex` (which may be nil).
func (p *Problem) formulate(n int, ex *exclusions) (*formulation, *cpmodel.CpModel, error) {
	f := &formulation{builder: cpmodel.NewCpModelBuilder().WithName("counterfactual")}
	for r := 0; r < n; r++ {
		f.replicas = append(f.replicas, p.newReplica(f.builder, r))
	}
	if n > 1 {
		p.orderReplicas(f.builder, f.replicas)
	}

	kinds := p.set.kinds()
	for _, rep := range f.replicas {
		for _, k := range kinds {
			if frag := fragments[k].solution; frag != nil {
				frag(p, f.builder, rep)
			}
		}
		ex.apply(f.builder, rep)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a, b := f.replicas[i], f.replicas[j]
			for _, k := range kinds {
				if frag := fragments[k].pair; frag != nil {
					frag(p, f.builder, a, b)
				}
			}
			if !p.set.has(DiversityValues) {
				// Two counterfactuals of a batch are never the same assignment.
				distinctValues(p, f.builder, a, b)
			}
		}
	}

	obj := cpmodel.NewFloatLinearExpr()
	hint := &cpmodel.Hint{Bools: make(map[cpmodel.BoolVar]bool)}
	for _, rep := range f.replicas {
		for i, xs := range rep.x {
			for b, x := range xs {
				if d := p.distances[i][b]; d != 0 {
					obj.AddTerm(x, p.set.alpha*d)
				}
			}
			hint.Bools[xs[p.current[i]]] = true
		}
		obj.AddTerm(rep.gap, p.set.beta/p.scale)
	}
	f.builder.MinimizeFloat(obj)
	f.builder.SetHint(hint)

	m, err := f.builder.Model()
	if err != nil {
		return nil, nil, fmt.Errorf("building model: %w", err)
	}
	return f, m, nil
}

func (p *Problem) newReplica(b *cpmodel.Builder, r int) *replica {
	rep := &replica{}
	var forbidden []cpmodel.BoolVar
	score := cpmodel.NewLinearExpr()
	for i, f := range p.enc.Features() {
		xs := make([]cpmodel.BoolVar, len(f.Bins))
		for j := range f.Bins {
			xs[j] = b.NewBoolVar().WithName(fmt.Sprintf("x%d[%s,%d]", r, f.Name, j))
			if !p.allowed[i][j] {
				forbidden = append(forbidden, xs[j].Not())
			}
			score.AddTerm(xs[j], int64(math.Round(f.Bins[j].Score*p.scale)))
		}
		b.AddExactlyOne(xs...).WithName(fmt.Sprintf("one_hot%d[%s]", r, f.Name))
		rep.x = append(rep.x, xs)
		rep.changed = append(rep.changed, xs[p.current[i]].Not())
	}
	if len(forbidden) > 0 {
		b.AddBoolAnd(forbidden...).WithName(fmt.Sprintf("forbidden%d", r))
	}

	lo, hi := p.enc.ScoreRange()
	rep.gap = b.NewIntVar(0, int64(math.Ceil((hi-lo+1)*p.scale))+int64(len(rep.x))+2).WithName(fmt.Sprintf("gap%d", r))
	target := cpmodel.NewConstant(int64(math.Round((p.threshold - p.enc.Intercept()) * p.scale)))
	if p.side != gapAbove {
		// gap >= target - score
		b.AddGreaterOrEqual(cpmodel.NewLinearExpr().Add(rep.gap).Add(score), target)
	}
	if p.side != gapBelow {
		// gap >= score - target
		b.AddGreaterOrEqual(cpmodel.NewLinearExpr().Add(rep.gap).Add(target), score)
	}
	return rep
}

// orderReplicas numbers the assignment of every replica in the mixed radix of the allowed bins,
// the first features being the most significant, and sorts the replicas by that number. The
// replicas of a batch are pairwise distinct, so the order is strict when the number covers
// every feature with a choice; otherwise only a prefix of the features is ordered.
func (p *Problem) orderReplicas(b *cpmodel.Builder, reps []*replica) {
	var feats []int
	var radix []int64
	size := int64(1)
	strict := true
	for i, allowed := range p.allowed {
		k := int64(0)
		for _, ok := range allowed {
			if ok {
				k++
			}
		}
		if k <= 1 {
			continue
		}
		if size > maxOrder/k {
			strict = false
			break
		}
		size *= k
		feats = append(feats, i)
		radix = append(radix, k)
	}
	if len(feats) == 0 {
		return
	}
	mult := make([]int64, len(feats))
	m := int64(1)
	for k := len(feats) - 1; k >= 0; k-- {
		mult[k] = m
		m *= radix[k]
	}

	var prev cpmodel.IntVar
	for r, rep := range reps {
		order := b.NewIntVar(0, size-1).WithName(fmt.Sprintf("order%d", r))
		number := cpmodel.NewLinearExpr()
		for k, i := range feats {
			digit := int64(0)
			for j, ok := range p.allowed[i] {
				if !ok {
					continue
				}
				if digit > 0 {
					number.AddTerm(rep.x[i][j], digit*mult[k])
				}
				digit++
			}
		}
		b.AddEquality(number, order).WithName(fmt.Sprintf("order%d", r))
		if r > 0 {
			if strict {
				b.AddLessThan(prev, order).WithName("symmetry")
			} else {
				b.AddLessOrEqual(prev, order).WithName("symmetry")
			}
		}
		prev = order
	}
}

// closeness returns the closeness penalty of a raw score, in score units.
func (p *Problem) closeness(score float64) float64 {
	switch p.side {
	case gapBelow:
		return math.Max(0, p.threshold-score)
	case gapAbove:
		return math.Max(0, score-p.threshold)
	}
	return math.Abs(score - p.threshold)
}
