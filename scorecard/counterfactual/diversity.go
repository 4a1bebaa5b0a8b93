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
	"context"
	"time"

	log "github.com/golang/glog"

	"github.com/gtnx/optbinning/sat/cpmodel"
)

// exclusions accumulates the solutions already returned by an iterative generation. It is owned
// by the generation loop and grows with every accepted solution.
type exclusions struct {
	// Excluded bin assignments.
	assignments [][]int
	// Excluded sets of changed features, when diversity_features is active.
	changedSets [][]bool
}

func (e *exclusions) accept(bins, current []int, features bool) {
	e.assignments = append(e.assignments, append([]int(nil), bins...))
	if features {
		changed := make([]bool, len(bins))
		for i := range bins {
			changed[i] = bins[i] != current[i]
		}
		e.changedSets = append(e.changedSets, changed)
	}
}

// apply adds to the replica one clause per excluded assignment and changed-feature set.
func (e *exclusions) apply(b *cpmodel.Builder, r *replica) {
	if e == nil {
		return
	}
	for _, a := range e.assignments {
		lits := make([]cpmodel.BoolVar, len(a))
		for i, bin := range a {
			lits[i] = r.x[i][bin].Not()
		}
		b.AddBoolOr(lits...).WithName("exclude_assignment")
	}
	for _, set := range e.changedSets {
		lits := make([]cpmodel.BoolVar, len(set))
		for i, changed := range set {
			if changed {
				lits[i] = r.changed[i].Not()
			} else {
				lits[i] = r.changed[i]
			}
		}
		b.AddBoolOr(lits...).WithName("exclude_changed_features")
	}
}

// run is the raw outcome of a diversity strategy.
type run struct {
	status    Status
	solutions [][]int
	note      string
	stats     Statistics
	build     time.Duration
	solve     time.Duration
}

func (r *run) record(stats cpmodel.ModelStats, res solveResult) {
	r.stats.NumSolves++
	r.stats.LastStatus = res.status
	r.stats.NumVariables = max(r.stats.NumVariables, stats.NumVariables)
	r.stats.NumConstraints = max(r.stats.NumConstraints, stats.NumConstraints)
	r.solve += res.wallTime
	if resp := res.response; resp != nil {
		r.stats.NumBranches += resp.NumBranches
		r.stats.NumConflicts += resp.NumConflicts
		r.stats.ObjectiveValue = resp.ObjectiveValue
		r.stats.BestObjectiveBound = resp.BestObjectiveBound
		r.stats.SolverInfo = resp.SolutionInfo
	}
	if res.err != nil {
		r.stats.SolverError = res.err.Error()
	}
}

// stoppedEarly reports whether the solver stopped at a limit before answering, as opposed to
// failing.
func stoppedEarly(res solveResult) bool {
	return res.err != nil && res.response != nil && res.response.GetStatus() == cpmodel.StatusUnknown
}

// budget returns the solver time left before `deadline`, zero meaning no limit, and false once
// the deadline has passed.
func budget(deadline time.Time) (time.Duration, bool) {
	if deadline.IsZero() {
		return 0, true
	}
	left := time.Until(deadline)
	return left, left > 0
}

// diversify produces up to NumCF counterfactuals with the requested strategy. The note
// "search exhausted" is only set when the last solve proved that no further counterfactual
// exists.
func (p *Problem) diversify(ctx context.Context) *run {
	var deadline time.Time
	if p.set.timeLimit > 0 {
		deadline = time.Now().Add(p.set.timeLimit)
	}
	r := &run{status: StatusError}
	if p.set.strategy == StrategySimultaneous {
		p.simultaneous(ctx, deadline, r)
	} else {
		p.iterative(ctx, deadline, r)
	}
	if len(r.solutions) < p.set.numCF && r.note == "" {
		r.note = "search exhausted"
	}
	return r
}

// iterative solves once per counterfactual. Solves are sequential: each one excludes the
// solutions of the previous ones.
func (p *Problem) iterative(ctx context.Context, deadline time.Time, r *run) {
	ex := &exclusions{}
	for len(r.solutions) < p.set.numCF {
		limit, ok := budget(deadline)
		if !ok {
			if len(r.solutions) > 0 {
				r.status = StatusFeasible
			}
			r.note = "time limit reached"
			return
		}
		start := time.Now()
		f, m, err := p.formulate(1, ex)
		r.build += time.Since(start)
		if err != nil {
			log.Errorf("counterfactual: %v", err)
			r.status, r.note = StatusError, err.Error()
			return
		}
		res := solve(ctx, m, limit)
		r.record(f.builder.Stats(), res)
		if !res.status.HasSolution() {
			switch {
			case res.status == StatusInfeasible:
				if len(r.solutions) == 0 {
					r.status = StatusInfeasible
				}
			case len(r.solutions) == 0:
				r.status = res.status
				r.note = "search stopped: " + res.status.String()
			default:
				// Stopped before the remaining solutions were proven not to exist.
				r.status = StatusFeasible
				r.note = "search stopped: " + res.status.String()
			}
			return
		}
		// One solution found at the time limit makes the whole set FEASIBLE.
		if res.status == StatusFeasible || r.status == StatusFeasible {
			r.status = StatusFeasible
		} else {
			r.status = StatusOptimal
		}
		bins, err := f.decode(p, res.response, 0)
		if err != nil {
			log.Errorf("counterfactual: %v", err)
			r.status, r.note = StatusError, err.Error()
			r.solutions = nil
			return
		}
		r.solutions = append(r.solutions, bins)
		ex.accept(bins, p.current, p.set.has(DiversityFeatures))
	}
}

// simultaneous solves one model holding all the counterfactuals, dropping one at a time while
// the model is proven infeasible. When a solve with several counterfactuals stops at the time
// limit, the rest of the budget goes to the iterative strategy.
func (p *Problem) simultaneous(ctx context.Context, deadline time.Time, r *run) {
	for n := p.set.numCF; n >= 1; n-- {
		limit, ok := budget(deadline)
		if !ok {
			r.note = "time limit reached"
			return
		}
		if n > 1 {
			// Half of the budget is kept for the iterative fallback.
			limit /= 2
		}
		start := time.Now()
		f, m, err := p.formulate(n, nil)
		r.build += time.Since(start)
		if err != nil {
			log.Errorf("counterfactual: %v", err)
			r.status, r.note = StatusError, err.Error()
			return
		}
		res := solve(ctx, m, limit)
		r.record(f.builder.Stats(), res)
		r.status = res.status
		switch {
		case res.status == StatusInfeasible:
			log.V(1).Infof("counterfactual: %d simultaneous counterfactuals infeasible", n)
			continue
		case n > 1 && stoppedEarly(res) && ctx.Err() == nil:
			log.V(1).Infof("counterfactual: %d simultaneous counterfactuals stopped, solving iteratively", n)
			r.status = StatusError
			p.iterative(ctx, deadline, r)
			return
		case !res.status.HasSolution():
			r.note = "search stopped: " + res.status.String()
			return
		}
		for i := range f.replicas {
			bins, err := f.decode(p, res.response, i)
			if err != nil {
				log.Errorf("counterfactual: %v", err)
				r.status, r.note = StatusError, err.Error()
				r.solutions = nil
				return
			}
			r.solutions = append(r.solutions, bins)
		}
		return
	}
}
