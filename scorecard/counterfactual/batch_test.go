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
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gtnx/optbinning/scorecard"
)

func TestGenerateBatch_Order(t *testing.T) {
	enc := mustCredit(t)
	queries := []scorecard.Row{lowRisk, highRisk, creditReference[1], creditReference[2]}
	req := Request{Target: 0.5, Outcome: "binary", NumCF: 1}

	for _, parallelism := range []int{0, 1, 2} {
		results, err := GenerateBatch(context.Background(), enc, queries, req, parallelism)
		if err != nil {
			t.Fatalf("GenerateBatch(parallelism=%d) returned with unexpected error %v", parallelism, err)
		}
		if len(results) != len(queries) {
			t.Fatalf("GenerateBatch(parallelism=%d) returned %d results, want %d", parallelism, len(results), len(queries))
		}
		for i, rs := range results {
			want, err := enc.CurrentBins(queries[i])
			if err != nil {
				t.Fatalf("CurrentBins() returned with unexpected error %v", err)
			}
			if diff := cmp.Diff(want, rs.Query.Bins()); diff != "" {
				t.Errorf("GenerateBatch(parallelism=%d) result %d is for another query (-want+got): %v", parallelism, i, diff)
			}
			if rs.Status != StatusOptimal {
				t.Errorf("GenerateBatch(parallelism=%d) result %d status = %v, want OPTIMAL", parallelism, i, rs.Status)
			}
		}
	}
}

func TestGenerateBatch_InvalidQuery(t *testing.T) {
	enc := mustCredit(t)
	queries := []scorecard.Row{lowRisk, {"age": "old", "income": 800.0, "housing": "rent", "debt": 0.7}}
	results, err := GenerateBatch(context.Background(), enc, queries, Request{Target: 0.5, Outcome: "binary", NumCF: 1}, 2)
	if results != nil || !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("GenerateBatch() = %v, %v, want nil, ErrInvalidRequest", results, err)
	}
}
