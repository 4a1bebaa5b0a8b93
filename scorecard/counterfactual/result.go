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
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// Statistics aggregates the solver calls of a generation.
type Statistics struct {
	NumSolves int
	// LastStatus is the status of the last solve. It differs from ResultSet.Status when the last
	// solve proved that no further counterfactual exists.
	LastStatus Status
	// Size of the largest model solved.
	NumVariables   int
	NumConstraints int
	NumBranches    int64
	NumConflicts   int64
	// Objective value and bound of the last solve.
	ObjectiveValue     float64
	BestObjectiveBound float64
	SolverInfo         string
	SolverError        string
	Constraints        []string
	Strategy           string
}

// Timing splits the duration of a generation by phase.
type Timing struct {
	Fit         time.Duration
	Build       time.Duration
	Solve       time.Duration
	PostProcess time.Duration
}

// Total returns the sum of the phases.
func (t Timing) Total() time.Duration {
	return t.Fit + t.Build + t.Solve + t.PostProcess
}

// Share returns `d` as a percentage of the total.
func (t Timing) Share(d time.Duration) float64 {
	total := t.Total()
	if total <= 0 {
		return 0
	}
	return 100 * float64(d) / float64(total)
}

// ResultSet is the outcome of one Generate call. It is not modified once returned.
type ResultSet struct {
	// ID identifies the generation in logs.
	ID     string
	Status Status
	Target float64
	// Features holds the feature names, in the order of Solution.Changes.
	Features []string
	// Query is the query itself, evaluated as a solution with no change.
	Query     Solution
	Solutions []Solution
	// Exhausted is set when fewer solutions than requested were found. Note tells why.
	Exhausted  bool
	Note       string
	Statistics Statistics
	Timing     Timing
}

// Display writes the solutions as a table, one row per solution and one column per feature.
// Unchanged features show Unchanged. With `onlyChanges`, features no solution changes are left
// out; with `showOutcome`, the recomputed outcome is added.
func (rs *ResultSet) Display(w io.Writer, onlyChanges, showOutcome bool) error {
	var cols []int
	for i := range rs.Features {
		if !onlyChanges || rs.changedInSome(i) {
			cols = append(cols, i)
		}
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := []string{""}
	for _, i := range cols {
		header = append(header, rs.Features[i])
	}
	if showOutcome {
		header = append(header, "outcome")
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	row := func(name string, s Solution, query bool) {
		cells := []string{name}
		for _, i := range cols {
			if i >= len(s.Changes) {
				cells = append(cells, "")
				continue
			}
			if query {
				cells = append(cells, s.Changes[i].Label)
			} else {
				cells = append(cells, s.Changes[i].Value())
			}
		}
		if showOutcome {
			cells = append(cells, strconv.FormatFloat(s.Outcome, 'f', 6, 64))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	row("query", rs.Query, true)
	for k, s := range rs.Solutions {
		row(strconv.Itoa(k), s, false)
	}
	return tw.Flush()
}

func (rs *ResultSet) changedInSome(i int) bool {
	for _, s := range rs.Solutions {
		if i < len(s.Changes) && s.Changes[i].Changed {
			return true
		}
	}
	return false
}

func seconds(d time.Duration) float64 {
	return d.Seconds()
}

// Information writes the status, solver statistics and timing of the generation.
func (rs *ResultSet) Information(w io.Writer) error {
	st := rs.Statistics
	t := rs.Timing
	var sb strings.Builder
	fmt.Fprintf(&sb, "counterfactual %s\n\n", rs.ID)
	fmt.Fprintf(&sb, "  Status                 : %v\n", rs.Status)
	fmt.Fprintf(&sb, "  Solutions              : %d\n", len(rs.Solutions))
	if rs.Note != "" {
		fmt.Fprintf(&sb, "  Note                   : %s\n", rs.Note)
	}
	fmt.Fprintf(&sb, "  Strategy               : %s\n", st.Strategy)
	fmt.Fprintf(&sb, "  Hard constraints       : %s\n", strings.Join(st.Constraints, ", "))
	sb.WriteString("\n  Solver statistics\n")
	fmt.Fprintf(&sb, "    Solves               : %d\n", st.NumSolves)
	fmt.Fprintf(&sb, "    Last solve status    : %v\n", st.LastStatus)
	fmt.Fprintf(&sb, "    Variables            : %d\n", st.NumVariables)
	fmt.Fprintf(&sb, "    Constraints          : %d\n", st.NumConstraints)
	fmt.Fprintf(&sb, "    Branches             : %d\n", st.NumBranches)
	fmt.Fprintf(&sb, "    Conflicts            : %d\n", st.NumConflicts)
	fmt.Fprintf(&sb, "    Objective value      : %.6f\n", st.ObjectiveValue)
	fmt.Fprintf(&sb, "    Best objective bound : %.6f\n", st.BestObjectiveBound)
	if st.SolverError != "" {
		fmt.Fprintf(&sb, "    Error                : %s\n", st.SolverError)
	}
	if len(rs.Solutions) > 0 {
		sb.WriteString("\n  Objective\n")
		for k, s := range rs.Solutions {
			fmt.Fprintf(&sb, "    #%-3d proximity %.6f  closeness %.6f  objective %.6f\n", k, s.Proximity, s.Closeness, s.Objective)
		}
	}
	sb.WriteString("\n  Timing\n")
	fmt.Fprintf(&sb, "    Total time           : %10.4f sec\n", seconds(t.Total()))
	fmt.Fprintf(&sb, "    Fit                  : %10.4f sec   (%6.2f%%)\n", seconds(t.Fit), t.Share(t.Fit))
	fmt.Fprintf(&sb, "    Build                : %10.4f sec   (%6.2f%%)\n", seconds(t.Build), t.Share(t.Build))
	fmt.Fprintf(&sb, "    Solver               : %10.4f sec   (%6.2f%%)\n", seconds(t.Solve), t.Share(t.Solve))
	fmt.Fprintf(&sb, "    Post-processing      : %10.4f sec   (%6.2f%%)\n", seconds(t.PostProcess), t.Share(t.PostProcess))
	_, err := io.WriteString(w, sb.String())
	return err
}

// finite replaces the infinite bounds of open bins, which structpb cannot hold, by strings.
func finite(v float64) any {
	switch {
	case math.IsNaN(v):
		return nil
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return v
}

func solutionMap(s Solution, withBins bool) map[string]any {
	changes := make(map[string]any)
	for _, c := range s.Changes {
		if !c.Changed && !withBins {
			changes[c.Feature] = Unchanged
			continue
		}
		m := map[string]any{"bin": c.Bin, "label": c.Label, "changed": c.Changed}
		if c.Categories != nil {
			cats := make([]any, len(c.Categories))
			for i, cat := range c.Categories {
				cats[i] = cat
			}
			m["categories"] = cats
		} else if !math.IsNaN(c.Lower) {
			m["lower"] = finite(c.Lower)
			m["upper"] = finite(c.Upper)
		}
		changes[c.Feature] = m
	}
	return map[string]any{
		"changes":     changes,
		"score":       s.Score,
		"outcome":     s.Outcome,
		"num_changes": s.NumChanges,
		"proximity":   s.Proximity,
		"closeness":   s.Closeness,
		"objective":   s.Objective,
	}
}

// Proto returns the result set as a structpb.Struct, ready for protojson.
func (rs *ResultSet) Proto() (*structpb.Struct, error) {
	solutions := make([]any, len(rs.Solutions))
	for i, s := range rs.Solutions {
		solutions[i] = solutionMap(s, false)
	}
	constraints := make([]any, len(rs.Statistics.Constraints))
	for i, c := range rs.Statistics.Constraints {
		constraints[i] = c
	}
	st := rs.Statistics
	return structpb.NewStruct(map[string]any{
		"id":        rs.ID,
		"status":    rs.Status.String(),
		"target":    rs.Target,
		"note":      rs.Note,
		"exhausted": rs.Exhausted,
		"query":     solutionMap(rs.Query, true),
		"solutions": solutions,
		"statistics": map[string]any{
			"num_solves":           st.NumSolves,
			"last_status":          st.LastStatus.String(),
			"num_variables":        st.NumVariables,
			"num_constraints":      st.NumConstraints,
			"num_branches":         st.NumBranches,
			"num_conflicts":        st.NumConflicts,
			"objective_value":      finite(st.ObjectiveValue),
			"best_objective_bound": finite(st.BestObjectiveBound),
			"constraints":          constraints,
			"strategy":             st.Strategy,
		},
		"timing": map[string]any{
			"fit_seconds":          seconds(rs.Timing.Fit),
			"build_seconds":        seconds(rs.Timing.Build),
			"solve_seconds":        seconds(rs.Timing.Solve),
			"post_process_seconds": seconds(rs.Timing.PostProcess),
			"total_seconds":        seconds(rs.Timing.Total()),
		},
	})
}
