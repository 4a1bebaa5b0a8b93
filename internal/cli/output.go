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

package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	urfave "github.com/urfave/cli/v3"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"

	"github.com/gtnx/optbinning/scorecard"
	"github.com/gtnx/optbinning/scorecard/counterfactual"
)

func (a *app) writeResults(cmd *urfave.Command, results []*counterfactual.ResultSet) error {
	w := cmd.Root().Writer
	if a.format == formatTable {
		for i, rs := range results {
			if i > 0 {
				fmt.Fprintln(w)
			}
			if len(results) > 1 {
				fmt.Fprintf(w, "# query %d: %v\n", i, rs.Status)
			}
			if err := rs.Display(w, cmd.Bool(onlyChangesFlag), cmd.Bool(showOutcomeFlag)); err != nil {
				return err
			}
			if rs.Note != "" {
				fmt.Fprintf(w, "note: %s\n", rs.Note)
			}
			if cmd.Bool(infoFlag) {
				fmt.Fprintln(w)
				if err := rs.Information(w); err != nil {
					return err
				}
			}
		}
		return nil
	}

	var values []any
	for _, rs := range results {
		s, err := rs.Proto()
		if err != nil {
			return fmt.Errorf("encoding result %s: %w", rs.ID, err)
		}
		values = append(values, s.AsMap())
	}
	if len(values) == 1 {
		return a.encode(w, values[0])
	}
	return a.encode(w, values)
}

func (a *app) writeEncoding(cmd *urfave.Command) error {
	w := cmd.Root().Writer
	enc := a.enc
	if a.format == formatTable {
		lo, hi := enc.ScoreRange()
		fmt.Fprintf(w, "model %s: %s, %d features, intercept %g, link %s, score range [%g, %g]\n\n",
			a.model.Name, enc.OutcomeKind(), enc.NumFeatures(), enc.Intercept(), linkName(enc.Link()), lo, hi)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "feature\tbin\tlabel\tkind\tscore\tcenter\tcount")
		for _, f := range enc.Features() {
			for b, bin := range f.Bins {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%v\t%s\t%s\t%d\n", f.Name, b, bin.Label, bin.Kind,
					strconv.FormatFloat(bin.Score, 'f', -1, 64), strconv.FormatFloat(bin.Center, 'g', 6, 64), bin.Count)
			}
		}
		return tw.Flush()
	}

	var features []any
	for _, f := range enc.Features() {
		var bins []any
		for _, bin := range f.Bins {
			bins = append(bins, map[string]any{
				"label":  bin.Label,
				"kind":   bin.Kind.String(),
				"score":  bin.Score,
				"center": bin.Center,
				"count":  bin.Count,
			})
		}
		features = append(features, map[string]any{
			"name":  f.Name,
			"type":  string(f.Type),
			"range": f.Range,
			"bins":  bins,
		})
	}
	lo, hi := enc.ScoreRange()
	return a.encode(w, map[string]any{
		"name":      a.model.Name,
		"outcome":   string(enc.OutcomeKind()),
		"link":      linkName(enc.Link()),
		"intercept": enc.Intercept(),
		"min_score": lo,
		"max_score": hi,
		"features":  features,
	})
}

func linkName(l scorecard.Link) string {
	if s, ok := l.(fmt.Stringer); ok {
		return s.String()
	}
	return l.Name()
}

// encode writes `v` as indented protojson or as YAML. `v` only holds the types structpb
// accepts.
func (a *app) encode(w io.Writer, v any) error {
	if a.format == formatYAML {
		e := yaml.NewEncoder(w)
		e.SetIndent(2)
		if err := e.Encode(v); err != nil {
			return err
		}
		return e.Close()
	}
	pv, err := structpb.NewValue(v)
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(pv)
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	_, err = io.WriteString(w, strings.TrimSpace(string(b))+"\n")
	return err
}
