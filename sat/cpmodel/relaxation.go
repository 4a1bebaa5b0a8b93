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

package cpmodel

import (
	"math"
	"slices"
)

// relaxation is the Lagrangian relaxation of the objective over one linear constraint
// `sum(a[i] * x[i]) >= lo`, keeping the exactly one groups of the model. For every multiplier
// `lambda >= 0`,
//
//	min(obj(x) + lambda * (lo - a.x))
//
// over the current bounds and groups is a lower bound of the objective. The relaxed function
// is concave in lambda, so its maximum is searched among its breakpoints.
type relaxation struct {
	lo float64
	// Groups touched by the constraint and the coefficient of each of their literals.
	groups []int32
	groupA [][]float64
	// Variables outside groups with a non-zero coefficient.
	free  []int32
	freeA []float64
	// Sorted candidate multipliers, 0 first.
	lambdas []float64
}

// buildRelaxations detects the exactly one groups of Boolean variables and compiles the one
// sided linear constraints into relaxations.
func (s *search) buildRelaxations() {
	nv := len(s.domains)
	s.objCoef = make([]float64, nv)
	for i, v := range s.objVars {
		s.objCoef[v] += s.objCoeffs[i]
	}
	s.groupOf = make([]int32, nv)
	for i := range s.groupOf {
		s.groupOf[i] = -1
	}
	for _, p := range s.props {
		if p.kind != ctExactlyOne || len(p.enforcement) > 0 || len(p.lits) == 0 {
			continue
		}
		ok := true
		seen := make(map[int32]bool, len(p.lits))
		for _, l := range p.lits {
			if l < 0 || s.groupOf[l] >= 0 || seen[l] {
				ok = false
				break
			}
			seen[l] = true
		}
		if !ok {
			continue
		}
		g := int32(len(s.groups))
		for _, l := range p.lits {
			s.groupOf[l] = g
		}
		s.groups = append(s.groups, p.lits)
	}
	s.groupMin = make([]float64, len(s.groups))
	for v := range s.domains {
		if s.groupOf[v] < 0 && s.objCoef[v] != 0 {
			s.freeObj = append(s.freeObj, int32(v))
		}
	}

	for _, p := range s.props {
		if p.kind != ctLinear || len(p.enforcement) > 0 {
			continue
		}
		switch {
		case p.lo != math.MinInt64 && p.hi == math.MaxInt64:
			s.addRelaxation(p, 1, float64(p.lo))
		case p.lo == math.MinInt64 && p.hi != math.MaxInt64:
			s.addRelaxation(p, -1, -float64(p.hi))
		}
	}
}

func (s *search) addRelaxation(p *propagator, sign, lo float64) {
	coef := make(map[int32]float64, len(p.vars))
	for i, v := range p.vars {
		coef[v] += sign * float64(p.coeffs[i])
	}
	r := &relaxation{lo: lo}
	lambdas := []float64{0}
	touched := make(map[int32]bool)
	seen := make(map[int32]bool, len(p.vars))
	for _, v := range p.vars {
		if seen[v] {
			continue
		}
		seen[v] = true
		a := coef[v]
		if a == 0 {
			continue
		}
		if g := s.groupOf[v]; g >= 0 {
			if !touched[g] {
				touched[g] = true
				r.groups = append(r.groups, g)
			}
			continue
		}
		r.free = append(r.free, v)
		r.freeA = append(r.freeA, a)
		if l := s.objCoef[v] / a; l > 0 {
			lambdas = append(lambdas, l)
		}
	}
	for _, g := range r.groups {
		lits := s.groups[g]
		as := make([]float64, len(lits))
		for i, v := range lits {
			as[i] = coef[v]
		}
		for i := range lits {
			for j := i + 1; j < len(lits); j++ {
				if da := as[i] - as[j]; da != 0 {
					if l := (s.objCoef[lits[i]] - s.objCoef[lits[j]]) / da; l > 0 {
						lambdas = append(lambdas, l)
					}
				}
			}
		}
		r.groupA = append(r.groupA, as)
	}
	if len(lambdas) == 1 {
		// Only lambda = 0, which is the plain bound.
		return
	}
	slices.Sort(lambdas)
	r.lambdas = slices.Compact(lambdas)
	s.relax = append(s.relax, r)
}

func termMin(c float64, lb, ub int64) float64 {
	return math.Min(c*float64(lb), c*float64(ub))
}

// relaxedBound returns the best lower bound of the objective the relaxations give at `st`, or
// -Inf when the model has none. The bound is +Inf when some group has no literal left.
func (s *search) relaxedBound(st *state) float64 {
	if len(s.relax) == 0 {
		return math.Inf(-1)
	}
	base := s.objOffset
	for g, lits := range s.groups {
		m := math.Inf(1)
		for _, v := range lits {
			if st.ub[v] == 1 {
				m = math.Min(m, s.objCoef[v])
			}
		}
		s.groupMin[g] = m
		base += m
	}
	if math.IsInf(base, 1) {
		return base
	}
	for _, v := range s.freeObj {
		base += termMin(s.objCoef[v], st.lb[v], st.ub[v])
	}
	best := base
	for _, r := range s.relax {
		best = math.Max(best, r.bound(s, st, base))
	}
	return best
}

// bound returns the maximum of the relaxed function over the candidate multipliers.
func (r *relaxation) bound(s *search, st *state, base float64) float64 {
	lo, hi := 0, len(r.lambdas)-1
	for lo < hi {
		m := (lo + hi) / 2
		if r.eval(s, st, base, r.lambdas[m]) < r.eval(s, st, base, r.lambdas[m+1]) {
			lo = m + 1
		} else {
			hi = m
		}
	}
	return r.eval(s, st, base, r.lambdas[lo])
}

// eval returns the relaxed function at `lambda`. `base` is its value at 0.
func (r *relaxation) eval(s *search, st *state, base, lambda float64) float64 {
	val := base + lambda*r.lo
	for k, g := range r.groups {
		m := math.Inf(1)
		for i, v := range s.groups[g] {
			if st.ub[v] == 1 {
				m = math.Min(m, s.objCoef[v]-lambda*r.groupA[k][i])
			}
		}
		val += m - s.groupMin[g]
	}
	for i, v := range r.free {
		c := s.objCoef[v]
		val += termMin(c-lambda*r.freeA[i], st.lb[v], st.ub[v]) - termMin(c, st.lb[v], st.ub[v])
	}
	return val
}
