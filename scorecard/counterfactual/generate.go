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

// Package counterfactual generates counterfactual explanations of additive scorecards: bin
// assignments close to a query that the scorecard scores at or beyond a target.
//
// Fit encodes a fitted scorecard once. Generate then builds, for every query, a Boolean model
// with one variable per feature bin, solves it with the cpmodel solver and decodes the solutions:
//
//	enc, err := counterfactual.Fit(card, reference)
//	...
//	rs, err := counterfactual.Generate(ctx, enc, query, counterfactual.Request{
//		Target:          0.5,
//		Outcome:         "binary",
//		NumCF:           3,
//		MaxChanges:      2,
//		HardConstraints: []string{"min_outcome", "max_changes", "diversity_features"},
//	})
//
// Solver outcomes are reported by ResultSet.Status. Errors are only returned for invalid
// requests.
package counterfactual

import (
	"context"
	"time"

	log "github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/gtnx/optbinning/scorecard"
)

// Generate returns the counterfactuals of `query` for `req`. The returned error is an
// InvalidRequestError; solver failures are reported in the result set status.
func Generate(ctx context.Context, enc *Encoding, query scorecard.Row, req Request) (*ResultSet, error) {
	start := time.Now()
	p, err := Build(enc, query, req)
	if err != nil {
		return nil, err
	}
	rs := &ResultSet{
		ID:       uuid.NewString(),
		Target:   req.Target,
		Features: make([]string, enc.NumFeatures()),
	}
	for i, f := range enc.Features() {
		rs.Features[i] = f.Name
	}
	rs.Timing.Fit = enc.FitTime()
	rs.Timing.Build = time.Since(start)

	r := p.diversify(ctx)
	rs.Timing.Build += r.build
	rs.Timing.Solve = r.solve

	postStart := time.Now()
	rs.Query = p.solution(p.current)
	rs.Solutions = p.postProcess(r.solutions)
	rs.Status = r.status
	rs.Note = r.note
	if rs.Status.HasSolution() && len(rs.Solutions) == 0 {
		rs.Status = StatusError
		rs.Note = "no solution satisfies the hard constraints"
	}
	rs.Exhausted = len(rs.Solutions) < p.set.numCF
	if rs.Exhausted && rs.Note == "" {
		rs.Note = "search exhausted"
	}
	rs.Statistics = r.stats
	for _, k := range p.Constraints() {
		rs.Statistics.Constraints = append(rs.Statistics.Constraints, k.String())
	}
	rs.Statistics.Strategy = string(p.set.strategy)
	rs.Timing.PostProcess = time.Since(postStart)

	log.V(1).Infof("counterfactual: %s: %v with %d solutions in %v", rs.ID, rs.Status, len(rs.Solutions), rs.Timing.Total())
	return rs, nil
}
