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
	"testing"

	"github.com/gtnx/optbinning/scorecard"
)

var inf = math.Inf(1)

// creditFeatures returns a small binary scorecard:
//
//	age      (-inf, 25) -0.8  [25, 40) -0.1  [40, inf) 0.6  Missing -0.3
//	income   (-inf, 1000) -1  [1000, 3000) 0.2  [3000, inf) 0.9  Special [-999] -0.5
//	housing  [rent] -0.4  [own, mortgage] 0.5  Others 0
//	debt     (-inf, 0.3) 0.7  [0.3, 0.6) 0  [0.6, inf) -0.9
func creditFeatures() []scorecard.Feature {
	return []scorecard.Feature{
		{
			Name: "age",
			Type: scorecard.Numerical,
			Bins: []scorecard.Bin{
				{Lower: -inf, Upper: 25, Score: -0.8},
				{Lower: 25, Upper: 40, Score: -0.1},
				{Lower: 40, Upper: inf, Score: 0.6},
				{Kind: scorecard.BinMissing, Score: -0.3},
			},
		},
		{
			Name: "income",
			Type: scorecard.Numerical,
			Bins: []scorecard.Bin{
				{Lower: -inf, Upper: 1000, Score: -1},
				{Lower: 1000, Upper: 3000, Score: 0.2},
				{Lower: 3000, Upper: inf, Score: 0.9},
				{Kind: scorecard.BinSpecial, Specials: []float64{-999}, Score: -0.5},
			},
		},
		{
			Name: "housing",
			Type: scorecard.Categorical,
			Bins: []scorecard.Bin{
				{Categories: []string{"rent"}, Score: -0.4},
				{Categories: []string{"own", "mortgage"}, Score: 0.5},
				{Kind: scorecard.BinOther, Score: 0},
			},
		},
		{
			Name: "debt",
			Type: scorecard.Numerical,
			Bins: []scorecard.Bin{
				{Lower: -inf, Upper: 0.3, Score: 0.7},
				{Lower: 0.3, Upper: 0.6, Score: 0},
				{Lower: 0.6, Upper: inf, Score: -0.9},
			},
		},
	}
}

const creditIntercept = -0.2

// Scores -3.3.
var lowRisk = scorecard.Row{"age": 22.0, "income": 800.0, "housing": "rent", "debt": 0.7}

// Scores 2.5.
var highRisk = scorecard.Row{"age": 45.0, "income": 5000.0, "housing": "own", "debt": 0.1}

var creditReference = []scorecard.Row{
	lowRisk,
	{"age": 30.0, "income": 2000.0, "housing": "own", "debt": 0.4},
	{"age": 35.0, "income": 5000.0, "housing": "mortgage", "debt": 0.1},
	highRisk,
	{"age": nil, "income": -999.0, "housing": "boat", "debt": 0.5},
}

func mustCredit(t *testing.T) *Encoding {
	t.Helper()
	card, err := scorecard.New(scorecard.Binary, creditFeatures(), creditIntercept, scorecard.Logistic{})
	if err != nil {
		t.Fatalf("scorecard.New() returned with unexpected error %v", err)
	}
	enc, err := Fit(card, creditReference)
	if err != nil {
		t.Fatalf("Fit() returned with unexpected error %v", err)
	}
	return enc
}

// sensorFeatures returns 8 numerical features x1..x8 with bins (-inf, 1), [1, 2) and [2, inf)
// scoring 0, 0.02*i and 0.04*i.
func sensorFeatures() []scorecard.Feature {
	var fs []scorecard.Feature
	for i := 1; i <= 8; i++ {
		fs = append(fs, scorecard.Feature{
			Name: fmt.Sprintf("x%d", i),
			Type: scorecard.Numerical,
			Bins: []scorecard.Bin{
				{Lower: -inf, Upper: 1, Score: 0},
				{Lower: 1, Upper: 2, Score: 0.02 * float64(i)},
				{Lower: 2, Upper: inf, Score: 0.04 * float64(i)},
			},
		})
	}
	return fs
}

func sensorRow(v float64) scorecard.Row {
	row := scorecard.Row{}
	for i := 1; i <= 8; i++ {
		row[fmt.Sprintf("x%d", i)] = v
	}
	return row
}

// sensorQuery is predicted 4.30.
var sensorQuery = sensorRow(0.5)

func mustSensor(t *testing.T) *Encoding {
	t.Helper()
	card, err := scorecard.New(scorecard.Continuous, sensorFeatures(), 4.30, scorecard.Identity{})
	if err != nil {
		t.Fatalf("scorecard.New() returned with unexpected error %v", err)
	}
	enc, err := Fit(card, []scorecard.Row{sensorQuery, sensorRow(1.5), sensorRow(2.5)})
	if err != nil {
		t.Fatalf("Fit() returned with unexpected error %v", err)
	}
	return enc
}

// probability returns the binary outcome of log-odds `score`.
func probability(score float64) float64 {
	return scorecard.Logistic{}.Apply(score)
}
