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
	"time"

	log "github.com/golang/glog"

	"github.com/gtnx/optbinning/scorecard"
)

// predictTolerance is the largest relative difference allowed between the model prediction and
// the additive recomputation of a reference row.
const predictTolerance = 1e-6

// EncodedBin is one bin of an encoded feature.
type EncodedBin struct {
	Label string
	Kind  scorecard.BinKind
	Score float64
	// Lower and Upper are the bounds of regular numerical bins, NaN otherwise.
	Lower      float64
	Upper      float64
	Categories []string
	// Center is the mean of the reference values in the bin. Bins without numerical reference
	// values use their midpoint or their position.
	Center float64
	// Count is the number of reference rows in the bin.
	Count int
}

// EncodedFeature is the bin table of one feature.
type EncodedFeature struct {
	Name string
	Type scorecard.FeatureType
	Bins []EncodedBin
	// Range is the spread of the regular bin centers, 1 when degenerate.
	Range float64

	source scorecard.Feature
}

// Encoding is the optimization-ready view of a fitted scorecard. It is immutable and may be
// shared by concurrent Generate calls; build a new one with Fit when the model is refit.
type Encoding struct {
	features  []EncodedFeature
	index     map[string]int
	intercept float64
	link      scorecard.Link
	kind      scorecard.OutcomeKind
	minScore  float64
	maxScore  float64
	fitTime   time.Duration
}

// Fit encodes `model`, using `reference` to locate bin centers and to verify that the model
// prediction is the additive score the optimizer works with.
func Fit(model scorecard.Model, reference []scorecard.Row) (*Encoding, error) {
	start := time.Now()
	features := model.Features()
	if len(features) == 0 {
		return nil, &EncodingError{Reason: "model has no features"}
	}
	if len(reference) == 0 {
		return nil, &EncodingError{Reason: "reference data is empty"}
	}
	link := model.Link()
	if link == nil {
		return nil, &EncodingError{Reason: "model has no link"}
	}

	enc := &Encoding{
		index:     make(map[string]int, len(features)),
		intercept: model.Intercept(),
		link:      link,
		kind:      model.OutcomeKind(),
	}
	sums := make([][]float64, len(features))
	for i, f := range features {
		if len(f.Bins) == 0 {
			return nil, &EncodingError{Feature: f.Name, Reason: "feature has no bins"}
		}
		if _, ok := enc.index[f.Name]; ok {
			return nil, &EncodingError{Feature: f.Name, Reason: "duplicate feature"}
		}
		enc.index[f.Name] = i
		enc.features = append(enc.features, encodeFeature(f))
		sums[i] = make([]float64, len(f.Bins))
	}

	for r, row := range reference {
		bins, err := enc.binRow(row)
		if err != nil {
			return nil, &EncodingError{Feature: err.feature, Reason: fmt.Sprintf("reference row %d cannot be binned", r), Err: err.err}
		}
		for i, b := range bins {
			ef := &enc.features[i]
			ef.Bins[b].Count++
			if x, ok := numericValue(row[ef.Name]); ok && ef.Type == scorecard.Numerical {
				sums[i][b] += x
			}
		}
		want, err2 := model.Predict(row)
		if err2 != nil {
			return nil, &EncodingError{Reason: fmt.Sprintf("predict failed on reference row %d", r), Err: err2}
		}
		got := enc.Outcome(bins)
		if math.Abs(got-want) > predictTolerance*math.Max(1, math.Abs(want)) {
			return nil, &EncodingError{Reason: fmt.Sprintf("model is not additive: reference row %d predicts %v, bin scores give %v", r, want, got)}
		}
	}

	enc.minScore, enc.maxScore = enc.intercept, enc.intercept
	for i := range enc.features {
		ef := &enc.features[i]
		ef.locateCenters(sums[i])
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, b := range ef.Bins {
			lo = math.Min(lo, b.Score)
			hi = math.Max(hi, b.Score)
		}
		enc.minScore += lo
		enc.maxScore += hi
	}
	enc.fitTime = time.Since(start)
	log.V(1).Infof("counterfactual: encoded %d features from %d reference rows in %v", len(enc.features), len(reference), enc.fitTime)
	return enc, nil
}

func encodeFeature(f scorecard.Feature) EncodedFeature {
	ef := EncodedFeature{Name: f.Name, Type: f.Type, source: f}
	for _, b := range f.Bins {
		eb := EncodedBin{
			Label:      b.Label(),
			Kind:       b.Kind,
			Score:      b.Score,
			Lower:      math.NaN(),
			Upper:      math.NaN(),
			Categories: b.Categories,
		}
		if f.Type == scorecard.Numerical && b.Kind == scorecard.BinRegular {
			eb.Lower, eb.Upper = b.Lower, b.Upper
		}
		ef.Bins = append(ef.Bins, eb)
	}
	return ef
}

func numericValue(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x)
	case float32:
		return float64(x), !math.IsNaN(float64(x))
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	}
	return 0, false
}

// locateCenters sets the bin centers from the sums of the reference values and the feature range
// from the regular centers.
func (ef *EncodedFeature) locateCenters(sums []float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range ef.Bins {
		b := &ef.Bins[i]
		switch {
		case ef.Type != scorecard.Numerical || b.Kind != scorecard.BinRegular:
			b.Center = float64(i)
		case b.Count > 0:
			b.Center = sums[i] / float64(b.Count)
		case !math.IsInf(b.Lower, 0) && !math.IsInf(b.Upper, 0):
			b.Center = (b.Lower + b.Upper) / 2
		case !math.IsInf(b.Lower, 0):
			b.Center = b.Lower
		case !math.IsInf(b.Upper, 0):
			b.Center = b.Upper
		default:
			b.Center = 0
		}
		if b.Kind == scorecard.BinRegular {
			lo = math.Min(lo, b.Center)
			hi = math.Max(hi, b.Center)
		}
	}
	ef.Range = hi - lo
	if !(ef.Range > 0) {
		ef.Range = 1
	}
}

type binError struct {
	feature string
	err     error
}

func (enc *Encoding) binRow(row scorecard.Row) ([]int, *binError) {
	bins := make([]int, len(enc.features))
	for i, ef := range enc.features {
		b, err := ef.source.BinIndex(row[ef.Name])
		if err != nil {
			return nil, &binError{feature: ef.Name, err: err}
		}
		bins[i] = b
	}
	return bins, nil
}

// Features returns the encoded features, in model order.
func (enc *Encoding) Features() []EncodedFeature { return enc.features }

// NumFeatures returns the number of features.
func (enc *Encoding) NumFeatures() int { return len(enc.features) }

// FeatureIndex returns the position of the feature named `name`.
func (enc *Encoding) FeatureIndex(name string) (int, bool) {
	i, ok := enc.index[name]
	return i, ok
}

// Intercept returns the constant part of the score.
func (enc *Encoding) Intercept() float64 { return enc.intercept }

// Link returns the link of the encoded model.
func (enc *Encoding) Link() scorecard.Link { return enc.link }

// OutcomeKind returns the kind of outcome of the encoded model.
func (enc *Encoding) OutcomeKind() scorecard.OutcomeKind { return enc.kind }

// ScoreRange returns the smallest and largest scores reachable by any bin assignment.
func (enc *Encoding) ScoreRange() (float64, float64) { return enc.minScore, enc.maxScore }

// FitTime returns the duration of Fit.
func (enc *Encoding) FitTime() time.Duration { return enc.fitTime }

// CurrentBins returns the bin of every feature `query` falls in.
func (enc *Encoding) CurrentBins(query scorecard.Row) ([]int, error) {
	for name := range query {
		if _, ok := enc.index[name]; !ok {
			log.V(2).Infof("counterfactual: ignoring query column %q", name)
		}
	}
	bins, err := enc.binRow(query)
	if err != nil {
		return nil, &InvalidRequestError{Field: "query", Reason: fmt.Sprintf("feature %q cannot be binned", err.feature), Err: err.err}
	}
	return bins, nil
}

// Score returns the raw score of a bin assignment.
func (enc *Encoding) Score(bins []int) float64 {
	score := enc.intercept
	for i, b := range bins {
		score += enc.features[i].Bins[b].Score
	}
	return score
}

// Outcome returns the model outcome of a bin assignment.
func (enc *Encoding) Outcome(bins []int) float64 {
	return enc.link.Apply(enc.Score(bins))
}
