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
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gtnx/optbinning/sat/cpmodel"
	"github.com/gtnx/optbinning/scorecard"
)

func mustGenerate(t *testing.T, enc *Encoding, query scorecard.Row, req Request) *ResultSet {
	t.Helper()
	rs, err := Generate(context.Background(), enc, query, req)
	if err != nil {
		t.Fatalf("Generate() returned with unexpected error %v", err)
	}
	return rs
}

// checkSolutions verifies the properties every returned solution has, whatever the request.
func checkSolutions(t *testing.T, enc *Encoding, query scorecard.Row, req Request, rs *ResultSet) {
	t.Helper()
	current, err := enc.CurrentBins(query)
	if err != nil {
		t.Fatalf("CurrentBins() returned with unexpected error %v", err)
	}
	tol := 1e-9 * math.Max(1, math.Abs(req.Target))
	for k, s := range rs.Solutions {
		if len(s.Changes) != enc.NumFeatures() {
			t.Fatalf("solution %d has %d features, want %d", k, len(s.Changes), enc.NumFeatures())
		}
		changes := 0
		for i, c := range s.Changes {
			if c.Bin < 0 || c.Bin >= len(enc.Features()[i].Bins) {
				t.Errorf("solution %d, feature %s: bin %d out of range", k, c.Feature, c.Bin)
			}
			if c.Changed != (c.Bin != current[i]) {
				t.Errorf("solution %d, feature %s: Changed = %v for bin %d, query bin %d", k, c.Feature, c.Changed, c.Bin, current[i])
			}
			if c.Changed {
				changes++
			} else if c.Value() != Unchanged {
				t.Errorf("solution %d, feature %s: Value() = %q, want %q", k, c.Feature, c.Value(), Unchanged)
			}
		}
		if s.NumChanges != changes {
			t.Errorf("solution %d: NumChanges = %d, want %d", k, s.NumChanges, changes)
		}
		if got := enc.Outcome(s.Bins()); math.Abs(got-s.Outcome) > 1e-12 {
			t.Errorf("solution %d: Outcome = %v, recomputed %v", k, s.Outcome, got)
		}
		for _, name := range req.HardConstraints {
			switch name {
			case "min_outcome":
				if s.Outcome < req.Target-tol {
					t.Errorf("solution %d: outcome %v below target %v", k, s.Outcome, req.Target)
				}
			case "max_outcome":
				if s.Outcome > req.Target+tol {
					t.Errorf("solution %d: outcome %v above target %v", k, s.Outcome, req.Target)
				}
			case "max_changes":
				if s.NumChanges > req.MaxChanges {
					t.Errorf("solution %d: %d changes, want at most %d", k, s.NumChanges, req.MaxChanges)
				}
			}
		}
	}
}

func TestGenerate_ContinuousScenario(t *testing.T) {
	enc := mustSensor(t)
	req := Request{
		Target:          4.5,
		Outcome:         "continuous",
		NumCF:           1,
		MaxChanges:      3,
		HardConstraints: []string{"min_outcome"},
	}
	rs := mustGenerate(t, enc, sensorQuery, req)

	if rs.Status != StatusOptimal {
		t.Fatalf("Generate() status = %v, want OPTIMAL (%s)", rs.Status, rs.Note)
	}
	if math.Abs(rs.Query.Outcome-4.30) > 1e-9 {
		t.Errorf("query outcome = %v, want 4.30", rs.Query.Outcome)
	}
	if len(rs.Solutions) != 1 {
		t.Fatalf("Generate() returned %d solutions, want 1", len(rs.Solutions))
	}
	s := rs.Solutions[0]
	if s.NumChanges > 3 {
		t.Errorf("solution has %d changes, want at most 3", s.NumChanges)
	}
	if s.Outcome < 4.5 {
		t.Errorf("solution outcome = %v, want >= 4.5", s.Outcome)
	}
	// A single move of x6, x7 or x8 to their top bin is enough.
	if s.Proximity != 1 {
		t.Errorf("solution proximity = %v, want 1", s.Proximity)
	}
	if rs.Exhausted || rs.ID == "" {
		t.Errorf("Generate() returned Exhausted = %v, ID = %q", rs.Exhausted, rs.ID)
	}
	if diff := cmp.Diff([]string{"min_outcome"}, rs.Statistics.Constraints); diff != "" {
		t.Errorf("Generate() returned with unexpected constraints (-want+got): %v", diff)
	}
	checkSolutions(t, enc, sensorQuery, req, rs)
}

func TestGenerate_InfeasibleScenario(t *testing.T) {
	enc := mustSensor(t)
	req := Request{
		Target:          100,
		Outcome:         "continuous",
		NumCF:           1,
		MaxChanges:      1,
		HardConstraints: []string{"min_outcome"},
	}
	rs := mustGenerate(t, enc, sensorQuery, req)

	if rs.Status != StatusInfeasible {
		t.Errorf("Generate() status = %v, want INFEASIBLE", rs.Status)
	}
	if len(rs.Solutions) != 0 {
		t.Errorf("Generate() returned %d solutions, want none", len(rs.Solutions))
	}
	if !rs.Exhausted || rs.Note != "search exhausted" {
		t.Errorf("Generate() returned Exhausted = %v, Note = %q", rs.Exhausted, rs.Note)
	}
}

func TestGenerate_UnchangedBaseline(t *testing.T) {
	enc := mustSensor(t)
	req := Request{Target: 4.30, Outcome: "continuous", NumCF: 1}
	rs := mustGenerate(t, enc, sensorQuery, req)

	if rs.Status != StatusOptimal || len(rs.Solutions) != 1 {
		t.Fatalf("Generate() = %v with %d solutions, want OPTIMAL with 1", rs.Status, len(rs.Solutions))
	}
	s := rs.Solutions[0]
	if diff := cmp.Diff(rs.Query.Bins(), s.Bins()); diff != "" {
		t.Errorf("solution differs from the query (-want+got): %v", diff)
	}
	if s.Proximity != 0 || s.NumChanges != 0 || len(s.ChangedFeatures()) != 0 {
		t.Errorf("solution = %+v, want no change", s)
	}
	checkSolutions(t, enc, sensorQuery, req, rs)
}

func TestGenerate_MaxChangesBound(t *testing.T) {
	enc := mustCredit(t)
	for _, mc := range []int{1, 2, 3} {
		req := Request{
			Target:          probability(-1.5),
			Outcome:         "binary",
			NumCF:           3,
			MaxChanges:      mc,
			HardConstraints: []string{"min_outcome", "max_changes"},
		}
		rs := mustGenerate(t, enc, lowRisk, req)
		if !rs.Status.HasSolution() {
			t.Fatalf("Generate(max_changes=%d) status = %v, want a solution", mc, rs.Status)
		}
		checkSolutions(t, enc, lowRisk, req, rs)
	}
}

func TestGenerate_OutcomeDirection(t *testing.T) {
	enc := mustCredit(t)
	testCases := []struct {
		name       string
		query      scorecard.Row
		constraint string
	}{
		{"MinOutcome", lowRisk, "min_outcome"},
		{"MaxOutcome", highRisk, "max_outcome"},
	}
	for _, test := range testCases {
		for _, strategy := range []Strategy{StrategyIterative, StrategySimultaneous} {
			t.Run(test.name+"/"+string(strategy), func(t *testing.T) {
				req := Request{
					Target:          0.5,
					Outcome:         "binary",
					NumCF:           2,
					HardConstraints: []string{test.constraint},
					Strategy:        strategy,
				}
				rs := mustGenerate(t, enc, test.query, req)
				if rs.Status != StatusOptimal || len(rs.Solutions) != 2 {
					t.Fatalf("Generate() = %v with %d solutions, want OPTIMAL with 2 (%s)", rs.Status, len(rs.Solutions), rs.Note)
				}
				checkSolutions(t, enc, test.query, req, rs)
			})
		}
	}
}

func TestGenerate_BothOutcomeBounds(t *testing.T) {
	enc := mustCredit(t)
	req := Request{
		Target:          probability(0.05),
		Outcome:         "binary",
		NumCF:           1,
		HardConstraints: []string{"min_outcome", "max_outcome"},
	}
	rs := mustGenerate(t, enc, lowRisk, req)
	// Scores are multiples of 0.1: none equals 0.05.
	if rs.Status != StatusInfeasible {
		t.Errorf("Generate() status = %v, want INFEASIBLE", rs.Status)
	}
}

func changedSet(s Solution) string {
	return strings.Join(s.ChangedFeatures(), ",")
}

func TestGenerate_Diversity(t *testing.T) {
	enc := mustCredit(t)
	for _, strategy := range []Strategy{StrategyIterative, StrategySimultaneous} {
		for _, constraint := range []string{"diversity_features", "diversity_values"} {
			t.Run(string(strategy)+"/"+constraint, func(t *testing.T) {
				req := Request{
					Target:          0.5,
					Outcome:         "binary",
					NumCF:           3,
					HardConstraints: []string{"min_outcome", constraint},
					Strategy:        strategy,
				}
				rs := mustGenerate(t, enc, lowRisk, req)
				if rs.Status != StatusOptimal || len(rs.Solutions) != 3 {
					t.Fatalf("Generate() = %v with %d solutions, want OPTIMAL with 3 (%s)", rs.Status, len(rs.Solutions), rs.Note)
				}
				checkSolutions(t, enc, lowRisk, req, rs)
				for i := range rs.Solutions {
					for j := i + 1; j < len(rs.Solutions); j++ {
						a, b := rs.Solutions[i], rs.Solutions[j]
						if cmp.Equal(a.Bins(), b.Bins()) {
							t.Errorf("solutions %d and %d have the same assignment %v", i, j, a.Bins())
						}
						if constraint == "diversity_features" && changedSet(a) == changedSet(b) {
							t.Errorf("solutions %d and %d change the same features %q", i, j, changedSet(a))
						}
					}
				}
			})
		}
	}
}

func TestGenerate_IterativeOrder(t *testing.T) {
	enc := mustCredit(t)
	req := Request{
		Target:          0.5,
		Outcome:         "binary",
		NumCF:           4,
		HardConstraints: []string{"min_outcome", "diversity_features"},
	}
	rs := mustGenerate(t, enc, lowRisk, req)
	for k := 1; k < len(rs.Solutions); k++ {
		if rs.Solutions[k].Objective < rs.Solutions[k-1].Objective-1e-9 {
			t.Errorf("solution %d objective %v below solution %d objective %v", k, rs.Solutions[k].Objective, k-1, rs.Solutions[k-1].Objective)
		}
	}
}

func TestGenerate_Exhausted(t *testing.T) {
	enc := mustCredit(t)
	// Only single moves of age, income or debt to their best bin reach a score of -2.
	req := Request{
		Target:          probability(-2),
		Outcome:         "binary",
		NumCF:           5,
		MaxChanges:      1,
		HardConstraints: []string{"min_outcome", "max_changes", "diversity_features"},
	}
	// The iterative search ends on the infeasible fourth solve, the simultaneous one on the
	// optimal solve with three counterfactuals.
	lastStatus := map[Strategy]Status{
		StrategyIterative:    StatusInfeasible,
		StrategySimultaneous: StatusOptimal,
	}
	for _, strategy := range []Strategy{StrategyIterative, StrategySimultaneous} {
		t.Run(string(strategy), func(t *testing.T) {
			req.Strategy = strategy
			rs := mustGenerate(t, enc, lowRisk, req)
			if rs.Status != StatusOptimal {
				t.Errorf("Generate() status = %v, want OPTIMAL", rs.Status)
			}
			if got, want := rs.Statistics.LastStatus, lastStatus[strategy]; got != want {
				t.Errorf("Generate() last solve status = %v, want %v", got, want)
			}
			if len(rs.Solutions) != 3 {
				t.Errorf("Generate() returned %d solutions, want 3", len(rs.Solutions))
			}
			if !rs.Exhausted || rs.Note != "search exhausted" {
				t.Errorf("Generate() returned Exhausted = %v, Note = %q", rs.Exhausted, rs.Note)
			}
			got := map[string]bool{}
			for _, s := range rs.Solutions {
				got[changedSet(s)] = true
			}
			want := map[string]bool{"age": true, "income": true, "debt": true}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Generate() returned with unexpected changed features (-want+got): %v", diff)
			}
			checkSolutions(t, enc, lowRisk, req, rs)
		})
	}
}

func TestGenerate_FewerSolutionsThanRequested(t *testing.T) {
	enc := mustSensor(t)
	// Three features with three bins each: 27 distinct assignments.
	req := Request{
		Target:             4.85,
		Outcome:            "continuous",
		NumCF:              30,
		HardConstraints:    []string{"diversity_values"},
		ActionableFeatures: []string{"x1", "x2", "x3"},
		TimeLimit:          10 * time.Second,
	}
	lastStatus := map[Strategy]Status{
		StrategyIterative:    StatusInfeasible,
		StrategySimultaneous: StatusOptimal,
	}
	for _, strategy := range []Strategy{StrategyIterative, StrategySimultaneous} {
		t.Run(string(strategy), func(t *testing.T) {
			req.Strategy = strategy
			rs := mustGenerate(t, enc, sensorQuery, req)
			if rs.Status != StatusOptimal || len(rs.Solutions) != 27 {
				t.Fatalf("Generate() = %v with %d solutions, want OPTIMAL with 27 (%s)", rs.Status, len(rs.Solutions), rs.Note)
			}
			if got, want := rs.Statistics.LastStatus, lastStatus[strategy]; got != want {
				t.Errorf("Generate() last solve status = %v, want %v", got, want)
			}
			if !rs.Exhausted || rs.Note != "search exhausted" {
				t.Errorf("Generate() returned Exhausted = %v, Note = %q", rs.Exhausted, rs.Note)
			}
			seen := map[string]bool{}
			for k, s := range rs.Solutions {
				key := fmt.Sprint(s.Bins())
				if seen[key] {
					t.Errorf("solution %d repeats the assignment %s", k, key)
				}
				seen[key] = true
				// A batch holds its counterfactuals sorted by assignment.
				if strategy == StrategySimultaneous && k > 0 && slices.Compare(rs.Solutions[k-1].Bins(), s.Bins()) >= 0 {
					t.Errorf("solution %d %v does not follow solution %d %v", k, s.Bins(), k-1, rs.Solutions[k-1].Bins())
				}
			}
			checkSolutions(t, enc, sensorQuery, req, rs)
		})
	}
}

func TestGenerate_SimultaneousFallsBackToIterative(t *testing.T) {
	calls := 0
	withSolver(t, func(m *cpmodel.CpModel, p *cpmodel.SatParameters, interrupt <-chan struct{}) (*cpmodel.CpSolverResponse, error) {
		calls++
		if calls == 1 {
			// The model with both counterfactuals runs out of time.
			return &cpmodel.CpSolverResponse{Status: cpmodel.StatusUnknown}, nil
		}
		return cpmodel.SolveCpModelInterruptibleWithParameters(m, p, interrupt)
	})
	enc := mustCredit(t)
	req := Request{
		Target:          0.5,
		Outcome:         "binary",
		NumCF:           2,
		HardConstraints: []string{"min_outcome", "diversity_features"},
		Strategy:        StrategySimultaneous,
		TimeLimit:       time.Minute,
	}
	rs := mustGenerate(t, enc, lowRisk, req)
	if rs.Status != StatusOptimal || len(rs.Solutions) != 2 {
		t.Fatalf("Generate() = %v with %d solutions, want OPTIMAL with 2 (%s)", rs.Status, len(rs.Solutions), rs.Note)
	}
	if rs.Exhausted || rs.Note != "" {
		t.Errorf("Generate() returned Exhausted = %v, Note = %q", rs.Exhausted, rs.Note)
	}
	if calls != 3 || rs.Statistics.NumSolves != 3 {
		t.Errorf("Generate() made %d solves (%d counted), want 3", calls, rs.Statistics.NumSolves)
	}
	checkSolutions(t, enc, lowRisk, req, rs)
}

func TestGenerate_StoppedIsNotExhausted(t *testing.T) {
	withSolver(t, func(*cpmodel.CpModel, *cpmodel.SatParameters, <-chan struct{}) (*cpmodel.CpSolverResponse, error) {
		return &cpmodel.CpSolverResponse{Status: cpmodel.StatusUnknown}, nil
	})
	enc := mustCredit(t)
	for _, strategy := range []Strategy{StrategyIterative, StrategySimultaneous} {
		t.Run(string(strategy), func(t *testing.T) {
			rs := mustGenerate(t, enc, lowRisk, Request{
				Target:   0.5,
				Outcome:  "binary",
				NumCF:    1,
				Strategy: strategy,
			})
			if rs.Status != StatusError || rs.Note != "search stopped: ERROR" {
				t.Errorf("Generate() = %v (%q), want ERROR (search stopped: ERROR)", rs.Status, rs.Note)
			}
			if rs.Statistics.LastStatus != StatusError {
				t.Errorf("Generate() last solve status = %v, want ERROR", rs.Statistics.LastStatus)
			}
		})
	}
}

func TestGenerate_MonotonicTightening(t *testing.T) {
	enc := mustSensor(t)
	prev := 0.0
	for mc := enc.NumFeatures(); mc >= 1; mc-- {
		rs := mustGenerate(t, enc, sensorQuery, Request{
			Target:          4.85,
			Outcome:         "continuous",
			NumCF:           1,
			MaxChanges:      mc,
			HardConstraints: []string{"min_outcome", "max_changes"},
		})
		cost := math.Inf(1)
		if rs.Status == StatusOptimal {
			cost = rs.Solutions[0].Proximity
		} else if rs.Status != StatusInfeasible {
			t.Fatalf("Generate(max_changes=%d) status = %v", mc, rs.Status)
		}
		if cost < prev {
			t.Errorf("Generate(max_changes=%d) proximity %v below %v with more changes allowed", mc, cost, prev)
		}
		want := 2.0
		if mc == 1 {
			want = math.Inf(1)
		}
		if cost != want {
			t.Errorf("Generate(max_changes=%d) proximity = %v, want %v", mc, cost, want)
		}
		prev = cost
	}
}

func TestGenerate_ProximityMagnitude(t *testing.T) {
	enc := mustCredit(t)
	// income moves from 800 to 2000 or 5000 over a range of 4200.
	rs := mustGenerate(t, enc, lowRisk, Request{
		Target:             probability(-2.4),
		Outcome:            "binary",
		NumCF:              1,
		HardConstraints:    []string{"min_outcome"},
		Proximity:          ProximityMagnitude,
		ActionableFeatures: []string{"income"},
	})
	if rs.Status != StatusOptimal || len(rs.Solutions) != 1 {
		t.Fatalf("Generate() = %v with %d solutions, want OPTIMAL with 1", rs.Status, len(rs.Solutions))
	}
	s := rs.Solutions[0]
	if got := s.Changes[1].Label; got != "[1000, 3000)" {
		t.Errorf("income moved to %q, want [1000, 3000)", got)
	}
	if want := 1200.0 / 4200; math.Abs(s.Proximity-want) > 1e-9 {
		t.Errorf("solution proximity = %v, want %v", s.Proximity, want)
	}
}

func TestGenerate_InvalidRequest(t *testing.T) {
	enc := mustCredit(t)
	rs, err := Generate(context.Background(), enc, lowRisk, Request{Target: 0.5, Outcome: "binary", NumCF: 1, MaxChanges: 9})
	if rs != nil || !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Generate() = %v, %v, want nil, ErrInvalidRequest", rs, err)
	}
}

// withSolver replaces the solver backend for the duration of the test.
func withSolver(t *testing.T, fn func(*cpmodel.CpModel, *cpmodel.SatParameters, <-chan struct{}) (*cpmodel.CpSolverResponse, error)) {
	t.Helper()
	saved := solveModel
	solveModel = fn
	t.Cleanup(func() { solveModel = saved })
}

func TestGenerate_SolverFaults(t *testing.T) {
	req := Request{Target: 0.5, Outcome: "binary", NumCF: 2, HardConstraints: []string{"min_outcome"}}
	testCases := []struct {
		name  string
		solve func(*cpmodel.CpModel, *cpmodel.SatParameters, <-chan struct{}) (*cpmodel.CpSolverResponse, error)
	}{
		{
			name: "BackendError",
			solve: func(*cpmodel.CpModel, *cpmodel.SatParameters, <-chan struct{}) (*cpmodel.CpSolverResponse, error) {
				return nil, errors.New("backend unavailable")
			},
		},
		{
			name: "Panic",
			solve: func(*cpmodel.CpModel, *cpmodel.SatParameters, <-chan struct{}) (*cpmodel.CpSolverResponse, error) {
				panic("corrupted state")
			},
		},
		{
			name: "ModelInvalid",
			solve: func(*cpmodel.CpModel, *cpmodel.SatParameters, <-chan struct{}) (*cpmodel.CpSolverResponse, error) {
				return &cpmodel.CpSolverResponse{Status: cpmodel.StatusModelInvalid, SolutionInfo: "bad"}, nil
			},
		},
		{
			name: "ShortSolution",
			solve: func(*cpmodel.CpModel, *cpmodel.SatParameters, <-chan struct{}) (*cpmodel.CpSolverResponse, error) {
				return &cpmodel.CpSolverResponse{Status: cpmodel.StatusOptimal, Solution: []int64{1}}, nil
			},
		},
		{
			name: "NoBinSelected",
			solve: func(m *cpmodel.CpModel, _ *cpmodel.SatParameters, _ <-chan struct{}) (*cpmodel.CpSolverResponse, error) {
				return &cpmodel.CpSolverResponse{Status: cpmodel.StatusOptimal, Solution: make([]int64, len(m.GetVariables()))}, nil
			},
		},
	}
	enc := mustCredit(t)
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			withSolver(t, test.solve)
			rs, err := Generate(context.Background(), enc, lowRisk, req)
			if err != nil {
				t.Fatalf("Generate() returned with unexpected error %v", err)
			}
			if rs.Status != StatusError {
				t.Errorf("Generate() status = %v, want ERROR", rs.Status)
			}
			if len(rs.Solutions) != 0 {
				t.Errorf("Generate() returned %d solutions, want none", len(rs.Solutions))
			}
			if rs.Statistics.NumSolves != 1 {
				t.Errorf("Generate() made %d solves, want 1", rs.Statistics.NumSolves)
			}
		})
	}
}

func TestGenerate_Cancelled(t *testing.T) {
	var params *cpmodel.SatParameters
	withSolver(t, func(_ *cpmodel.CpModel, p *cpmodel.SatParameters, interrupt <-chan struct{}) (*cpmodel.CpSolverResponse, error) {
		params = p
		<-interrupt
		return &cpmodel.CpSolverResponse{Status: cpmodel.StatusUnknown}, nil
	})
	enc := mustCredit(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rs, err := Generate(ctx, enc, lowRisk, Request{Target: 0.5, Outcome: "binary", NumCF: 1, TimeLimit: time.Minute})
	if err != nil {
		t.Fatalf("Generate() returned with unexpected error %v", err)
	}
	if rs.Status != StatusError {
		t.Errorf("Generate() status = %v, want ERROR", rs.Status)
	}
	if got := params.GetMaxTimeInSeconds(); got <= 0 || got > 60 {
		t.Errorf("solver time limit = %v, want in (0, 60]", got)
	}
}

func TestGenerate_TimeLimitReached(t *testing.T) {
	calls := 0
	withSolver(t, func(m *cpmodel.CpModel, _ *cpmodel.SatParameters, _ <-chan struct{}) (*cpmodel.CpSolverResponse, error) {
		calls++
		resp, err := cpmodel.SolveCpModel(m)
		time.Sleep(50 * time.Millisecond)
		return resp, err
	})
	enc := mustCredit(t)
	rs := mustGenerate(t, enc, lowRisk, Request{
		Target:          0.5,
		Outcome:         "binary",
		NumCF:           50,
		HardConstraints: []string{"min_outcome"},
		TimeLimit:       20 * time.Millisecond,
	})
	if calls != 1 || len(rs.Solutions) != 1 {
		t.Fatalf("Generate() made %d solves for %d solutions, want 1 and 1", calls, len(rs.Solutions))
	}
	if rs.Status != StatusFeasible || rs.Note != "time limit reached" {
		t.Errorf("Generate() = %v (%q), want FEASIBLE (time limit reached)", rs.Status, rs.Note)
	}
}

func TestFormulation_DecodeOneHot(t *testing.T) {
	enc := mustCredit(t)
	p, err := Build(enc, lowRisk, Request{Target: 0.5, Outcome: "binary", NumCF: 1})
	if err != nil {
		t.Fatalf("Build() returned with unexpected error %v", err)
	}
	f, m, err := p.formulate(1, nil)
	if err != nil {
		t.Fatalf("formulate() returned with unexpected error %v", err)
	}
	values := make([]int64, len(m.GetVariables()))
	set := func(x cpmodel.BoolVar) { values[x.Index()] = 1 }
	for i, xs := range f.replicas[0].x {
		set(xs[p.Current()[i]])
	}
	resp := &cpmodel.CpSolverResponse{Status: cpmodel.StatusOptimal, Solution: values}

	bins, err := f.decode(p, resp, 0)
	if err != nil {
		t.Fatalf("decode() returned with unexpected error %v", err)
	}
	if diff := cmp.Diff(p.Current(), bins); diff != "" {
		t.Errorf("decode() returned with unexpected bins (-want+got): %v", diff)
	}

	set(f.replicas[0].x[2][1])
	if _, err := f.decode(p, resp, 0); !errors.Is(err, ErrOneHot) {
		t.Errorf("decode() with two housing bins returned with error %v, want ErrOneHot", err)
	}
}

func TestProblem_PostProcess(t *testing.T) {
	enc := mustCredit(t)
	p, err := Build(enc, lowRisk, Request{Target: 0.5, Outcome: "binary", NumCF: 2, MaxChanges: 2, HardConstraints: []string{"min_outcome", "max_changes"}})
	if err != nil {
		t.Fatalf("Build() returned with unexpected error %v", err)
	}
	good := []int{0, 2, 0, 0}
	got := p.postProcess([][]int{
		p.Current(),  // below the target
		{2, 2, 1, 0}, // too many changes
		good,
	})
	if len(got) != 1 {
		t.Fatalf("postProcess() kept %d solutions, want 1", len(got))
	}
	s := got[0]
	if diff := cmp.Diff(good, s.Bins()); diff != "" {
		t.Errorf("postProcess() kept unexpected solution (-want+got): %v", diff)
	}
	if diff := cmp.Diff([]string{"income", "debt"}, s.ChangedFeatures()); diff != "" {
		t.Errorf("ChangedFeatures() returned with unexpected value (-want+got): %v", diff)
	}
	// Score 0.2 is above the 0 threshold: the hinge penalty vanishes.
	if math.Abs(s.Score-0.2) > 1e-9 || s.Closeness != 0 || s.Proximity != 2 || s.Objective != 2 {
		t.Errorf("postProcess() = %+v, want score 0.2, closeness 0, proximity 2, objective 2", s)
	}
}
