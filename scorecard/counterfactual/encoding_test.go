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
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/gtnx/optbinning/scorecard"
)

// stubModel is a Model whose prediction is not necessarily the additive score.
type stubModel struct {
	features  []scorecard.Feature
	intercept float64
	link      scorecard.Link
	predict   func(scorecard.Row) (float64, error)
}

func (m *stubModel) Features() []scorecard.Feature { return m.features }
func (m *stubModel) Intercept() float64 { return m.intercept }
func (m *stubModel) Link() scorecard.Link { return m.link }
func (m *stubModel) OutcomeKind() scorecard.OutcomeKind { return scorecard.Continuous }
func (m *stubModel) Predict(row scorecard.Row) (float64, error) { return m.predict(row) }

func additive(features []scorecard.Feature, intercept float64) func(scorecard.Row) (float64, error) {
	return func(row scorecard.Row) (float64, error) {
		score := intercept
		for _, f := range features {
			b, err := f.BinIndex(row[f.Name])
			if err != nil {
				return 0, err
			}
			score += f.Bins[b].Score
		}
		return score, nil
	}
}

func TestFit_Centers(t *testing.T) {
	enc := mustCredit(t)

	type summary struct {
		Centers []float64
		Counts  []int
		Range   float64
	}
	var got []summary
	for _, f := range enc.Features() {
		var s summary
		for _, b := range f.Bins {
			s.Centers = append(s.Centers, b.Center)
			s.Counts = append(s.Counts, b.Count)
		}
		s.Range = f.Range
		got = append(got, s)
	}
	want := []summary{
		{Centers: []float64{22, 32.5, 45, 3}, Counts: []int{1, 2, 1, 1}, Range: 23},
		{Centers: []float64{800, 2000, 5000, 3}, Counts: []int{1, 1, 2, 1}, Range: 4200},
		{Centers: []float64{0, 1, 2}, Counts: []int{1, 3, 1}, Range: 1},
		{Centers: []float64{0.1, 0.45, 0.7}, Counts: []int{2, 2, 1}, Range: 0.6},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Fit() returned with unexpected centers (-want+got): %v", diff)
	}
}

func TestFit_Accessors(t *testing.T) {
	enc := mustCredit(t)

	if got := enc.NumFeatures(); got != 4 {
		t.Errorf("NumFeatures() = %v, want 4", got)
	}
	if i, ok := enc.FeatureIndex("housing"); !ok || i != 2 {
		t.Errorf("FeatureIndex(housing) = %v, %v, want 2, true", i, ok)
	}
	if _, ok := enc.FeatureIndex("zip"); ok {
		t.Errorf("FeatureIndex(zip) = _, true, want false")
	}
	if enc.OutcomeKind() != scorecard.Binary {
		t.Errorf("OutcomeKind() = %v, want binary", enc.OutcomeKind())
	}
	lo, hi := enc.ScoreRange()
	if diff := cmp.Diff([]float64{-3.3, 2.5}, []float64{lo, hi}, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("ScoreRange() returned with unexpected value (-want+got): %v", diff)
	}

	bins, err := enc.CurrentBins(lowRisk)
	if err != nil {
		t.Fatalf("CurrentBins() returned with unexpected error %v", err)
	}
	if diff := cmp.Diff([]int{0, 0, 0, 2}, bins); diff != "" {
		t.Errorf("CurrentBins() returned with unexpected value (-want+got): %v", diff)
	}
	if got := enc.Score(bins); math.Abs(got+3.3) > 1e-9 {
		t.Errorf("Score() = %v, want -3.3", got)
	}
	if got, want := enc.Outcome(bins), probability(-3.3); math.Abs(got-want) > 1e-9 {
		t.Errorf("Outcome() = %v, want %v", got, want)
	}

	labels := []string{}
	for _, b := range enc.Features()[1].Bins {
		labels = append(labels, b.Label)
	}
	wantLabels := []string{"(-inf, 1000)", "[1000, 3000)", "[3000, inf)", "Special [-999]"}
	if diff := cmp.Diff(wantLabels, labels); diff != "" {
		t.Errorf("Fit() returned with unexpected labels (-want+got): %v", diff)
	}
}

func TestEncoding_CurrentBinsUnbinnable(t *testing.T) {
	enc := mustCredit(t)
	_, err := enc.CurrentBins(scorecard.Row{"age": 30.0, "income": "lots", "housing": "own", "debt": 0.1})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("CurrentBins() returned with error %v, want ErrInvalidRequest", err)
	}
	var ire *InvalidRequestError
	if !errors.As(err, &ire) || ire.Field != "query" {
		t.Errorf("CurrentBins() returned with error %#v, want field query", err)
	}
	if !errors.Is(err, scorecard.ErrUnbinnable) {
		t.Errorf("CurrentBins() returned with error %v, want it to wrap ErrUnbinnable", err)
	}
}

func TestFit_Errors(t *testing.T) {
	features := creditFeatures()[:2]
	noBins := []scorecard.Feature{features[0], {Name: "empty", Type: scorecard.Numerical}}
	dup := []scorecard.Feature{features[0], features[0]}
	rows := []scorecard.Row{{"age": 30.0, "income": 2000.0}}

	testCases := []struct {
		name        string
		model       scorecard.Model
		reference   []scorecard.Row
		wantFeature string
		wantErr     error
	}{
		{
			name:      "NoFeatures",
			model:     &stubModel{link: scorecard.Identity{}, predict: additive(nil, 0)},
			reference: rows,
		},
		{
			name:      "EmptyReference",
			model:     &stubModel{features: features, link: scorecard.Identity{}, predict: additive(features, 0)},
			reference: nil,
		},
		{
			name:      "NilLink",
			model:     &stubModel{features: features, predict: additive(features, 0)},
			reference: rows,
		},
		{
			name:        "NoBins",
			model:       &stubModel{features: noBins, link: scorecard.Identity{}, predict: additive(features, 0)},
			reference:   rows,
			wantFeature: "empty",
		},
		{
			name:        "DuplicateFeature",
			model:       &stubModel{features: dup, link: scorecard.Identity{}, predict: additive(dup, 0)},
			reference:   rows,
			wantFeature: "age",
		},
		{
			name:        "UnbinnableReference",
			model:       &stubModel{features: features, link: scorecard.Identity{}, predict: additive(features, 0)},
			reference:   []scorecard.Row{{"age": 30.0, "income": "n/a"}},
			wantFeature: "income",
			wantErr:     scorecard.ErrUnbinnable,
		},
		{
			name: "PredictFails",
			model: &stubModel{features: features, link: scorecard.Identity{}, predict: func(scorecard.Row) (float64, error) {
				return 0, errors.New("boom")
			}},
			reference: rows,
		},
		{
			name: "NotAdditive",
			model: &stubModel{features: features, link: scorecard.Identity{}, predict: func(row scorecard.Row) (float64, error) {
				s, err := additive(features, 0)(row)
				return s * 2, err
			}},
			reference: rows,
		},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			_, err := Fit(test.model, test.reference)
			if !errors.Is(err, ErrEncoding) {
				t.Fatalf("Fit() returned with error %v, want ErrEncoding", err)
			}
			var ee *EncodingError
			if !errors.As(err, &ee) {
				t.Fatalf("Fit() returned with error %T, want *EncodingError", err)
			}
			if ee.Feature != test.wantFeature {
				t.Errorf("Fit() error feature = %q, want %q", ee.Feature, test.wantFeature)
			}
			if test.wantErr != nil && !errors.Is(err, test.wantErr) {
				t.Errorf("Fit() returned with error %v, want it to wrap %v", err, test.wantErr)
			}
		})
	}
}
