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

// Package config loads scorecards, reference data and request defaults from YAML model files.
//
// A model file looks like:
//
//	name: credit
//	outcome: binary
//	link: logistic
//	intercept: -0.2
//	features:
//	  - name: age
//	    type: numerical
//	    bins:
//	      - {upper: 25, score: -0.8}
//	      - {lower: 25, score: 0.6}
//	      - {kind: missing, score: -0.3}
//	reference_file: reference.json
//	request:
//	  target: 0.5
//	  n_cf: 3
//	  hard_constraints: [min_outcome, diversity_features]
//
// Missing interval bounds are infinite. Reference rows are given inline under `reference` or
// as a JSON file (array or JSON lines) relative to the model file.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	log "github.com/golang/glog"
	"gopkg.in/yaml.v3"

	"github.com/gtnx/optbinning/scorecard"
	"github.com/gtnx/optbinning/scorecard/counterfactual"
)

// LinkSpec is a link function, given either as a name or as `{name, params}`.
type LinkSpec struct {
	Name   string    `yaml:"name"`
	Params []float64 `yaml:"params,omitempty"`
}

// UnmarshalYAML accepts a bare link name.
func (l *LinkSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		l.Name = node.Value
		l.Params = nil
		return nil
	}
	type plain LinkSpec
	return node.Decode((*plain)(l))
}

// BinSpec is one bin of a feature.
type BinSpec struct {
	Kind       string    `yaml:"kind,omitempty"`
	Lower      *float64  `yaml:"lower,omitempty"`
	Upper      *float64  `yaml:"upper,omitempty"`
	Categories []string  `yaml:"categories,omitempty"`
	Specials   []float64 `yaml:"specials,omitempty"`
	Score      float64   `yaml:"score"`
}

// FeatureSpec is one feature of a model file.
type FeatureSpec struct {
	Name string    `yaml:"name"`
	Type string    `yaml:"type"`
	Bins []BinSpec `yaml:"bins"`
}

// ModelSpec is the content of a model file.
type ModelSpec struct {
	Name          string           `yaml:"name"`
	Outcome       string           `yaml:"outcome"`
	Link          LinkSpec         `yaml:"link"`
	Intercept     float64          `yaml:"intercept"`
	Features      []FeatureSpec    `yaml:"features"`
	Reference     []map[string]any `yaml:"reference,omitempty"`
	ReferenceFile string           `yaml:"reference_file,omitempty"`
	Request       RequestSpec      `yaml:"request"`
}

// Model is a loaded model file.
type Model struct {
	Name      string
	Scorecard *scorecard.Scorecard
	Reference []scorecard.Row
	// Request holds the defaults of the model file, flags and request bodies override them.
	Request counterfactual.Request
}

// Encode fits the counterfactual encoding of the model on its reference data.
func (m *Model) Encode() (*counterfactual.Encoding, error) {
	return counterfactual.Fit(m.Scorecard, m.Reference)
}

// LoadModel reads the model file at `path`.
func LoadModel(path string) (*Model, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model file: %w", err)
	}
	var mf ModelSpec
	if err := yaml.Unmarshal(b, &mf); err != nil {
		return nil, fmt.Errorf("parsing model file %s: %w", path, err)
	}
	if mf.ReferenceFile != "" && !filepath.IsAbs(mf.ReferenceFile) {
		mf.ReferenceFile = filepath.Join(filepath.Dir(path), mf.ReferenceFile)
	}
	m, err := mf.Model()
	if err != nil {
		return nil, fmt.Errorf("model file %s: %w", path, err)
	}
	log.V(1).Infof("config: loaded model %q with %d features and %d reference rows", m.Name, len(m.Scorecard.Features()), len(m.Reference))
	return m, nil
}

// ParseModel parses the content of a model file. A relative reference file is resolved
// against the working directory.
func ParseModel(b []byte) (*Model, error) {
	var mf ModelSpec
	if err := yaml.Unmarshal(b, &mf); err != nil {
		return nil, fmt.Errorf("parsing model: %w", err)
	}
	return mf.Model()
}

// Model builds the scorecard, the reference data and the request defaults of a model file.
func (s *ModelSpec) Model() (*Model, error) {
	kind, err := scorecard.ParseOutcomeKind(s.Outcome)
	if err != nil {
		return nil, err
	}
	linkName := s.Link.Name
	if linkName == "" && kind == scorecard.Binary {
		linkName = "logistic"
	}
	link, err := scorecard.ParseLink(linkName, s.Link.Params...)
	if err != nil {
		return nil, err
	}

	var features []scorecard.Feature
	for _, fs := range s.Features {
		f, err := fs.feature()
		if err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	card, err := scorecard.New(kind, features, s.Intercept, link)
	if err != nil {
		return nil, err
	}

	var reference []scorecard.Row
	for _, r := range s.Reference {
		reference = append(reference, scorecard.Row(r))
	}
	if s.ReferenceFile != "" {
		rows, err := LoadRows(s.ReferenceFile)
		if err != nil {
			return nil, err
		}
		reference = append(reference, rows...)
	}
	if len(reference) == 0 {
		return nil, errors.New("no reference rows")
	}

	return &Model{
		Name:      s.Name,
		Scorecard: card,
		Reference: reference,
		Request:   s.Request.Request(kind),
	}, nil
}

func (fs FeatureSpec) feature() (scorecard.Feature, error) {
	f := scorecard.Feature{Name: fs.Name, Type: scorecard.FeatureType(fs.Type)}
	if f.Type == "" {
		f.Type = scorecard.Numerical
	}
	for i, bs := range fs.Bins {
		kind, err := scorecard.ParseBinKind(bs.Kind)
		if err != nil {
			return f, fmt.Errorf("feature %q, bin %d: %w", fs.Name, i, err)
		}
		b := scorecard.Bin{
			Kind:       kind,
			Lower:      math.Inf(-1),
			Upper:      math.Inf(1),
			Categories: bs.Categories,
			Specials:   bs.Specials,
			Score:      bs.Score,
		}
		if bs.Lower != nil {
			b.Lower = *bs.Lower
		}
		if bs.Upper != nil {
			b.Upper = *bs.Upper
		}
		f.Bins = append(f.Bins, b)
	}
	return f, nil
}
