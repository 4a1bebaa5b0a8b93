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

// Package scorecard defines fitted additive scorecards: every feature is discretized into bins,
// each bin carries a score, and the prediction is a link function applied to the intercept plus
// the scores of the bins a row falls in.
package scorecard

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrUnbinnable is returned when a value does not fall in any bin of a feature.
var ErrUnbinnable = errors.New("value does not fall in any bin")

// OutcomeKind is the kind of target a scorecard predicts.
type OutcomeKind string

const (
	// Binary scorecards predict the probability of an event.
	Binary OutcomeKind = "binary"
	// Continuous scorecards predict a real value.
	Continuous OutcomeKind = "continuous"
)

// ParseOutcomeKind returns the outcome kind named `s`.
func ParseOutcomeKind(s string) (OutcomeKind, error) {
	switch k := OutcomeKind(strings.ToLower(s)); k {
	case Binary, Continuous:
		return k, nil
	}
	return "", fmt.Errorf("unknown outcome kind %q", s)
}

// FeatureType tells how the values of a feature are binned.
type FeatureType string

const (
	// Numerical features are binned by contiguous intervals.
	Numerical FeatureType = "numerical"
	// Categorical features are binned by groups of categories.
	Categorical FeatureType = "categorical"
)

// BinKind distinguishes the regular bins of a feature from its special ones.
type BinKind int

const (
	// BinRegular is an interval or a category group.
	BinRegular BinKind = iota
	// BinMissing holds missing values.
	BinMissing
	// BinSpecial holds the special codes listed in the bin.
	BinSpecial
	// BinOther holds the categories that belong to no regular group.
	BinOther
)

var binKindNames = map[BinKind]string{
	BinRegular: "regular",
	BinMissing: "missing",
	BinSpecial: "special",
	BinOther:   "other",
}

func (k BinKind) String() string {
	return binKindNames[k]
}

// ParseBinKind returns the bin kind named `s`, regular when empty.
func ParseBinKind(s string) (BinKind, error) {
	if s == "" {
		return BinRegular, nil
	}
	for k, n := range binKindNames {
		if n == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown bin kind %q", s)
}

// Bin is one bin of a feature.
//
// Regular numerical bins hold the values in `[Lower, Upper)`, with infinite bounds for the
// outer bins. Regular categorical bins hold `Categories`. Special bins hold the codes in
// `Specials` (numerical) or `Categories` (categorical).
type Bin struct {
	Kind       BinKind
	Lower      float64
	Upper      float64
	Categories []string
	Specials   []float64
	Score      float64
}

// Label returns the human readable boundaries of the bin.
func (b Bin) Label() string {
	switch b.Kind {
	case BinMissing:
		return "Missing"
	case BinOther:
		return "Others"
	case BinSpecial:
		var codes []string
		for _, s := range b.Specials {
			codes = append(codes, formatFloat(s))
		}
		codes = append(codes, b.Categories...)
		return "Special [" + strings.Join(codes, ", ") + "]"
	}
	if b.Categories != nil {
		return "[" + strings.Join(b.Categories, ", ") + "]"
	}
	left := "["
	if math.IsInf(b.Lower, -1) {
		left = "("
	}
	return left + formatFloat(b.Lower) + ", " + formatFloat(b.Upper) + ")"
}

func formatFloat(v float64) string {
	switch {
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsInf(v, 1):
		return "inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Contains reports whether the bin holds `v`. Other bins never report a match: they only catch
// what the regular bins of their feature do not.
func (b Bin) Contains(v any) bool {
	if isMissing(v) {
		return b.Kind == BinMissing
	}
	switch b.Kind {
	case BinMissing, BinOther:
		return false
	case BinSpecial:
		if x, ok := toFloat(v); ok {
			for _, s := range b.Specials {
				if s == x {
					return true
				}
			}
		}
		return containsString(b.Categories, toString(v))
	}
	if b.Categories != nil {
		return containsString(b.Categories, toString(v))
	}
	x, ok := toFloat(v)
	return ok && b.Lower <= x && x < b.Upper
}

func containsString(s []string, v string) bool {
	for _, c := range s {
		if c == v {
			return true
		}
	}
	return false
}

func isMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	case string:
		return x == ""
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return formatFloat(x)
	}
	return fmt.Sprint(v)
}

// Feature is a binned input of the scorecard.
type Feature struct {
	Name string
	Type FeatureType
	Bins []Bin
}

// BinIndex returns the index of the bin holding `v`. Missing values go to the missing bin,
// special codes to their special bin and unknown categories to the other bin.
func (f Feature) BinIndex(v any) (int, error) {
	other := -1
	for i, b := range f.Bins {
		if b.Kind == BinOther {
			other = i
		}
		if b.Kind != BinRegular && b.Contains(v) {
			return i, nil
		}
	}
	if !isMissing(v) {
		for i, b := range f.Bins {
			if b.Kind == BinRegular && b.Contains(v) {
				return i, nil
			}
		}
		if f.Type == Categorical && other >= 0 {
			return other, nil
		}
	}
	return -1, fmt.Errorf("feature %q, value %v: %w", f.Name, v, ErrUnbinnable)
}

// Row holds the values of one observation, by feature name. Absent features are missing.
type Row map[string]any

// Model is a fitted additive scorecard as seen by its consumers.
type Model interface {
	Features() []Feature
	Intercept() float64
	Link() Link
	OutcomeKind() OutcomeKind
	Predict(row Row) (float64, error)
}

// Scorecard is the concrete Model.
type Scorecard struct {
	features  []Feature
	intercept float64
	link      Link
	kind      OutcomeKind
}

// New returns a scorecard after checking that the bins of every feature partition its domain.
func New(kind OutcomeKind, features []Feature, intercept float64, link Link) (*Scorecard, error) {
	if _, err := ParseOutcomeKind(string(kind)); err != nil {
		return nil, err
	}
	if link == nil {
		return nil, errors.New("nil link")
	}
	if _, ok := link.(Logistic); ok != (kind == Binary) {
		return nil, fmt.Errorf("%s scorecard cannot use the %s link", kind, link.Name())
	}
	if a, ok := link.(Affine); ok && !(a.Slope > 0) {
		return nil, fmt.Errorf("affine link slope must be positive, got %v", a.Slope)
	}
	if math.IsNaN(intercept) || math.IsInf(intercept, 0) {
		return nil, fmt.Errorf("intercept must be finite, got %v", intercept)
	}
	seen := make(map[string]bool)
	for _, f := range features {
		if f.Name == "" {
			return nil, errors.New("feature with an empty name")
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("duplicate feature %q", f.Name)
		}
		seen[f.Name] = true
		if err := validateFeature(f); err != nil {
			return nil, fmt.Errorf("feature %q: %w", f.Name, err)
		}
	}
	return &Scorecard{
		features:  features,
		intercept: intercept,
		link:      link,
		kind:      kind,
	}, nil
}

func validateFeature(f Feature) error {
	if len(f.Bins) == 0 {
		return errors.New("no bins")
	}
	var regular []Bin
	count := make(map[BinKind]int)
	for _, b := range f.Bins {
		if math.IsNaN(b.Score) || math.IsInf(b.Score, 0) {
			return fmt.Errorf("bin %s: score must be finite", b.Label())
		}
		count[b.Kind]++
		if b.Kind == BinRegular {
			regular = append(regular, b)
		}
	}
	if count[BinMissing] > 1 || count[BinOther] > 1 {
		return errors.New("at most one missing and one other bin")
	}
	switch f.Type {
	case Numerical:
		if count[BinOther] > 0 {
			return errors.New("numerical feature with an other bin")
		}
		return validateIntervals(regular)
	case Categorical:
		return validateGroups(regular)
	}
	return fmt.Errorf("unknown feature type %q", f.Type)
}

// validateIntervals checks that the regular bins cover the real line without overlap.
func validateIntervals(bins []Bin) error {
	if len(bins) == 0 {
		return nil
	}
	sorted := append([]Bin(nil), bins...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Lower < sorted[j].Lower })
	if !math.IsInf(sorted[0].Lower, -1) {
		return fmt.Errorf("first bin starts at %v, want -inf", sorted[0].Lower)
	}
	for i, b := range sorted {
		if b.Categories != nil {
			return errors.New("numerical bin with categories")
		}
		if !(b.Lower < b.Upper) {
			return fmt.Errorf("empty bin %s", b.Label())
		}
		if i > 0 && sorted[i-1].Upper != b.Lower {
			return fmt.Errorf("bins %s and %s are not contiguous", sorted[i-1].Label(), b.Label())
		}
	}
	if last := sorted[len(sorted)-1]; !math.IsInf(last.Upper, 1) {
		return fmt.Errorf("last bin ends at %v, want inf", last.Upper)
	}
	return nil
}

func validateGroups(bins []Bin) error {
	seen := make(map[string]bool)
	for _, b := range bins {
		if len(b.Categories) == 0 {
			return errors.New("categorical bin without categories")
		}
		for _, c := range b.Categories {
			if seen[c] {
				return fmt.Errorf("category %q in several bins", c)
			}
			seen[c] = true
		}
	}
	return nil
}

// Features returns the features of the scorecard.
func (s *Scorecard) Features() []Feature { return s.features }

// Intercept returns the constant part of the score.
func (s *Scorecard) Intercept() float64 { return s.intercept }

// Link returns the link from the score to the outcome.
func (s *Scorecard) Link() Link { return s.link }

// OutcomeKind returns the kind of outcome predicted.
func (s *Scorecard) OutcomeKind() OutcomeKind { return s.kind }

// Score returns the intercept plus the scores of the bins `row` falls in.
func (s *Scorecard) Score(row Row) (float64, error) {
	score := s.intercept
	for _, f := range s.features {
		i, err := f.BinIndex(row[f.Name])
		if err != nil {
			return 0, err
		}
		score += f.Bins[i].Score
	}
	return score, nil
}

// Predict returns the outcome of `row`.
func (s *Scorecard) Predict(row Row) (float64, error) {
	score, err := s.Score(row)
	if err != nil {
		return 0, err
	}
	return s.link.Apply(score), nil
}
