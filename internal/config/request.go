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

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/gtnx/optbinning/scorecard"
	"github.com/gtnx/optbinning/scorecard/counterfactual"
)

// DefaultTimeLimit is the solver budget of a request whose model file sets none. A request
// body may still lift it with a zero time_limit.
const DefaultTimeLimit = time.Minute

// WeightsSpec are the objective weights of a request.
type WeightsSpec struct {
	Proximity float64            `yaml:"proximity,omitempty"`
	Closeness float64            `yaml:"closeness,omitempty"`
	Features  map[string]float64 `yaml:"features,omitempty"`
}

// RequestSpec holds the request defaults of a model file. An unset time limit is
// DefaultTimeLimit.
type RequestSpec struct {
	// Target defaults to 0.5 on binary models and 0 otherwise.
	Target             *float64          `yaml:"target,omitempty"`
	NumCF              int               `yaml:"n_cf,omitempty"`
	MaxChanges         int               `yaml:"max_changes,omitempty"`
	HardConstraints    []string          `yaml:"hard_constraints,omitempty"`
	TimeLimit          time.Duration     `yaml:"time_limit,omitempty"`
	Weights            WeightsSpec       `yaml:"weights,omitempty"`
	Proximity          string            `yaml:"proximity,omitempty"`
	Closeness          string            `yaml:"closeness,omitempty"`
	Strategy           string            `yaml:"strategy,omitempty"`
	ActionableFeatures []string          `yaml:"actionable_features,omitempty"`
	Directions         map[string]string `yaml:"directions,omitempty"`
	AllowSpecial       bool              `yaml:"allow_special,omitempty"`
}

// Request returns the request defaults for a model of the given kind.
func (s RequestSpec) Request(kind scorecard.OutcomeKind) counterfactual.Request {
	req := counterfactual.Request{
		Outcome:         string(kind),
		NumCF:           s.NumCF,
		MaxChanges:      s.MaxChanges,
		HardConstraints: s.HardConstraints,
		TimeLimit:       s.TimeLimit,
		Weights: counterfactual.Weights{
			Proximity: s.Weights.Proximity,
			Closeness: s.Weights.Closeness,
			Features:  s.Weights.Features,
		},
		Proximity:          counterfactual.ProximityMetric(s.Proximity),
		Closeness:          counterfactual.ClosenessPenalty(s.Closeness),
		Strategy:           counterfactual.Strategy(s.Strategy),
		ActionableFeatures: s.ActionableFeatures,
		AllowSpecial:       s.AllowSpecial,
	}
	switch {
	case s.Target != nil:
		req.Target = *s.Target
	case kind == scorecard.Binary:
		req.Target = 0.5
	}
	if req.NumCF == 0 {
		req.NumCF = 1
	}
	if req.TimeLimit == 0 {
		req.TimeLimit = DefaultTimeLimit
	}
	if len(s.Directions) > 0 {
		req.Directions = make(map[string]counterfactual.Direction, len(s.Directions))
		for f, d := range s.Directions {
			req.Directions[f] = counterfactual.Direction(d)
		}
	}
	return req
}

// ApplyJSON overrides the fields of `req` present in the JSON object `body`. Keys follow
// the model file names, `time_limit` is a duration string or a number of seconds.
//
// The query row of the body, if any, is returned.
func ApplyJSON(req *counterfactual.Request, body string) (scorecard.Row, error) {
	if !gjson.Valid(body) {
		return nil, errors.New("request body is not valid JSON")
	}
	r := gjson.Parse(body)
	if !r.IsObject() {
		return nil, errors.New("request body is not a JSON object")
	}

	if v := r.Get("target"); v.Exists() {
		req.Target = v.Float()
	}
	if v := r.Get("outcome"); v.Exists() {
		req.Outcome = v.String()
	}
	if v := r.Get("n_cf"); v.Exists() {
		req.NumCF = int(v.Int())
	}
	if v := r.Get("max_changes"); v.Exists() {
		req.MaxChanges = int(v.Int())
	}
	if v := r.Get("hard_constraints"); v.Exists() {
		req.HardConstraints = stringArray(v)
	}
	if v := r.Get("time_limit"); v.Exists() {
		if v.Type == gjson.Number {
			req.TimeLimit = time.Duration(v.Float() * float64(time.Second))
		} else {
			d, err := time.ParseDuration(v.String())
			if err != nil {
				return nil, fmt.Errorf("time_limit: %w", err)
			}
			req.TimeLimit = d
		}
	}
	if v := r.Get("weights.proximity"); v.Exists() {
		req.Weights.Proximity = v.Float()
	}
	if v := r.Get("weights.closeness"); v.Exists() {
		req.Weights.Closeness = v.Float()
	}
	if v := r.Get("weights.features"); v.Exists() {
		req.Weights.Features = map[string]float64{}
		v.ForEach(func(k, w gjson.Result) bool {
			req.Weights.Features[k.String()] = w.Float()
			return true
		})
	}
	if v := r.Get("proximity"); v.Exists() {
		req.Proximity = counterfactual.ProximityMetric(v.String())
	}
	if v := r.Get("closeness"); v.Exists() {
		req.Closeness = counterfactual.ClosenessPenalty(v.String())
	}
	if v := r.Get("strategy"); v.Exists() {
		req.Strategy = counterfactual.Strategy(v.String())
	}
	if v := r.Get("actionable_features"); v.Exists() {
		req.ActionableFeatures = stringArray(v)
	}
	if v := r.Get("directions"); v.Exists() {
		req.Directions = map[string]counterfactual.Direction{}
		v.ForEach(func(k, d gjson.Result) bool {
			req.Directions[k.String()] = counterfactual.Direction(d.String())
			return true
		})
	}
	if v := r.Get("allow_special"); v.Exists() {
		req.AllowSpecial = v.Bool()
	}

	q := r.Get("query")
	if !q.Exists() {
		return nil, nil
	}
	row, err := ParseRow(q.Raw)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return row, nil
}

func stringArray(v gjson.Result) []string {
	var out []string
	for _, s := range v.Array() {
		out = append(out, s.String())
	}
	return out
}
