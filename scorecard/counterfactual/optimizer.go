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
	"fmt"
	"time"

	log "github.com/golang/glog"
	"google.golang.org/protobuf/proto"

	"github.com/gtnx/optbinning/sat/cpmodel"
)

// Status is the outcome of a generation. It is a result, not an error: callers inspect it.
type Status int

const (
	// StatusError covers solver faults, invalid solver models and searches stopped without a
	// solution.
	StatusError Status = iota
	// StatusOptimal means the solutions are proven optimal.
	StatusOptimal
	// StatusFeasible means the time limit was reached with a solution.
	StatusFeasible
	// StatusInfeasible means no assignment satisfies the hard constraints.
	StatusInfeasible
	// StatusUnbounded is never produced on finite bin domains and is kept for completeness.
	StatusUnbounded
)

var statusNames = map[Status]string{
	StatusError:      "ERROR",
	StatusOptimal:    "OPTIMAL",
	StatusFeasible:   "FEASIBLE",
	StatusInfeasible: "INFEASIBLE",
	StatusUnbounded:  "UNBOUNDED",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// HasSolution reports whether the status comes with a solution.
func (s Status) HasSolution() bool {
	return s == StatusOptimal || s == StatusFeasible
}

func statusOf(s cpmodel.CpSolverStatus) Status {
	switch s {
	case cpmodel.StatusOptimal:
		return StatusOptimal
	case cpmodel.StatusFeasible:
		return StatusFeasible
	case cpmodel.StatusInfeasible:
		return StatusInfeasible
	}
	return StatusError
}

// solveModel is the solver backend.
var solveModel = cpmodel.SolveCpModelInterruptibleWithParameters

type solveResult struct {
	status   Status
	response *cpmodel.CpSolverResponse
	wallTime time.Duration
	err      error
}

// solve runs the solver on `m` for at most `timeLimit` (no limit when zero). Cancelling `ctx`
// interrupts the search. Backend errors and panics are reported as StatusError.
func solve(ctx context.Context, m *cpmodel.CpModel, timeLimit time.Duration) (res solveResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("counterfactual: solver panic: %v", r)
			res = solveResult{status: StatusError, err: fmt.Errorf("solver panic: %v", r)}
		}
		res.wallTime = time.Since(start)
	}()

	params := &cpmodel.SatParameters{LogSearchProgress: proto.Bool(bool(log.V(3)))}
	if timeLimit > 0 {
		params.MaxTimeInSeconds = proto.Float64(timeLimit.Seconds())
	}

	interrupt := make(chan struct{})
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			close(interrupt)
		case <-done:
		}
	}()

	resp, err := solveModel(m, params, interrupt)
	if err != nil {
		log.Errorf("counterfactual: solver failed: %v", err)
		return solveResult{status: StatusError, err: err}
	}
	res = solveResult{status: statusOf(resp.GetStatus()), response: resp}
	if res.status == StatusError {
		res.err = fmt.Errorf("solver returned %v: %s", resp.GetStatus(), resp.SolutionInfo)
	}
	if res.status.HasSolution() && len(resp.GetSolution()) != len(m.GetVariables()) {
		res = solveResult{status: StatusError, err: fmt.Errorf("solver returned %d values for %d variables", len(resp.GetSolution()), len(m.GetVariables()))}
	}
	log.V(1).Infof("counterfactual: solve %v in %v, %d branches", resp.GetStatus(), time.Since(start), resp.NumBranches)
	return res
}
