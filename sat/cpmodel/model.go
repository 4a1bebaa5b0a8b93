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

import "math"

// CpSolverStatus is the outcome of a call to the solver.
type CpSolverStatus int32

const (
	// StatusUnknown means the search stopped (time limit or interrupt) before a solution was
	// found or infeasibility was proven.
	StatusUnknown CpSolverStatus = iota
	// StatusModelInvalid means the model or the parameters failed validation.
	StatusModelInvalid
	// StatusFeasible means a solution was found but optimality was not proven.
	StatusFeasible
	// StatusInfeasible means the search proved that no solution exists.
	StatusInfeasible
	// StatusOptimal means the best solution was found and proven optimal. For models without an
	// objective, any solution is optimal.
	StatusOptimal
)

var statusNames = map[CpSolverStatus]string{
	StatusUnknown:      "UNKNOWN",
	StatusModelInvalid: "MODEL_INVALID",
	StatusFeasible:     "FEASIBLE",
	StatusInfeasible:   "INFEASIBLE",
	StatusOptimal:      "OPTIMAL",
}

func (s CpSolverStatus) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// IntegerVariable holds the name and the flattened domain of a variable.
type IntegerVariable struct {
	Name   string
	Domain []int64
}

// GetName returns the name of the variable.
func (v *IntegerVariable) GetName() string {
	if v == nil {
		return ""
	}
	return v.Name
}

// GetDomain returns the flattened domain of the variable.
func (v *IntegerVariable) GetDomain() []int64 {
	if v == nil {
		return nil
	}
	return v.Domain
}

// BoolArgument holds the literals of a Boolean constraint. A negative literal `l` refers to the
// negation of the variable at index `-l-1`.
type BoolArgument struct {
	Literals []int32
}

// LinearConstraint enforces `sum(Coeffs[i] * Vars[i])` to be in the flattened `Domain`.
type LinearConstraint struct {
	Vars   []int32
	Coeffs []int64
	Domain []int64
}

// CpConstraint is one constraint of the model. Exactly one of the constraint fields is set.
type CpConstraint struct {
	Name string
	// The constraint is only enforced when all these literals are true.
	EnforcementLiteral []int32

	BoolOr     *BoolArgument
	BoolAnd    *BoolArgument
	AtMostOne  *BoolArgument
	ExactlyOne *BoolArgument
	Linear     *LinearConstraint
}

// FloatObjective is a minimization objective with real coefficients. The reported objective value
// is `ScalingFactor * (sum(Coeffs[i] * Vars[i]) + Offset)`, a zero ScalingFactor meaning 1.
type FloatObjective struct {
	Vars          []int32
	Coeffs        []float64
	Offset        float64
	ScalingFactor float64
}

func (o *FloatObjective) scaling() float64 {
	if o == nil || o.ScalingFactor == 0 {
		return 1
	}
	return o.ScalingFactor
}

// PartialVariableAssignment is a solution hint.
type PartialVariableAssignment struct {
	Vars   []int32
	Values []int64
}

// CpModel is the complete description of a model, as produced by Builder.Model().
type CpModel struct {
	Name         string
	Variables    []*IntegerVariable
	Constraints  []*CpConstraint
	Objective    *FloatObjective
	SolutionHint *PartialVariableAssignment
}

// GetVariables returns the variables of the model.
func (m *CpModel) GetVariables() []*IntegerVariable {
	if m == nil {
		return nil
	}
	return m.Variables
}

// GetConstraints returns the constraints of the model.
func (m *CpModel) GetConstraints() []*CpConstraint {
	if m == nil {
		return nil
	}
	return m.Constraints
}

// SatParameters holds the solver parameters. Unset fields take their default value; use
// proto.Float64 and proto.Bool to set them.
type SatParameters struct {
	// Wall clock limit of the search. Unset means no limit.
	MaxTimeInSeconds *float64
	// Stop as soon as (best - bound) / max(1, |best|) is below this value. Defaults to 0.
	RelativeGapLimit *float64
	// Log every improving solution at info level.
	LogSearchProgress *bool
}

// GetMaxTimeInSeconds returns the time limit, +Inf when unset.
func (p *SatParameters) GetMaxTimeInSeconds() float64 {
	if p == nil || p.MaxTimeInSeconds == nil {
		return math.Inf(1)
	}
	return *p.MaxTimeInSeconds
}

// GetRelativeGapLimit returns the relative gap limit, 0 when unset.
func (p *SatParameters) GetRelativeGapLimit() float64 {
	if p == nil || p.RelativeGapLimit == nil {
		return 0
	}
	return *p.RelativeGapLimit
}

// GetLogSearchProgress reports whether search progress is logged.
func (p *SatParameters) GetLogSearchProgress() bool {
	return p != nil && p.LogSearchProgress != nil && *p.LogSearchProgress
}

// CpSolverResponse is the result of a solve.
type CpSolverResponse struct {
	Status CpSolverStatus
	// Value of every variable of the model in the best solution found, empty if none.
	Solution           []int64
	ObjectiveValue     float64
	BestObjectiveBound float64
	NumBranches        int64
	NumConflicts       int64
	NumSolutions       int64
	WallTime           float64
	SolutionInfo       string
}

// GetStatus returns the status of the solve.
func (r *CpSolverResponse) GetStatus() CpSolverStatus {
	if r == nil {
		return StatusUnknown
	}
	return r.Status
}

// GetSolution returns the variable values of the best solution.
func (r *CpSolverResponse) GetSolution() []int64 {
	if r == nil {
		return nil
	}
	return r.Solution
}

// GetObjectiveValue returns the objective value of the best solution.
func (r *CpSolverResponse) GetObjectiveValue() float64 {
	if r == nil {
		return 0
	}
	return r.ObjectiveValue
}

// GetWallTime returns the solve duration in seconds.
func (r *CpSolverResponse) GetWallTime() float64 {
	if r == nil {
		return 0
	}
	return r.WallTime
}

// HasSolution reports whether the response carries a solution.
func (r *CpSolverResponse) HasSolution() bool {
	s := r.GetStatus()
	return (s == StatusOptimal || s == StatusFeasible) && len(r.GetSolution()) > 0
}
