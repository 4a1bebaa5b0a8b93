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
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"github.com/gtnx/optbinning/scorecard"
)

// ParseRow parses a JSON object into a row. Numbers become float64, strings and booleans
// become strings and null is a missing value.
func ParseRow(s string) (scorecard.Row, error) {
	if !gjson.Valid(s) {
		return nil, errors.New("row is not valid JSON")
	}
	return row(gjson.Parse(s))
}

func row(r gjson.Result) (scorecard.Row, error) {
	if !r.IsObject() {
		return nil, fmt.Errorf("row %s is not a JSON object", r.Raw)
	}
	out := scorecard.Row{}
	var err error
	r.ForEach(func(k, v gjson.Result) bool {
		switch v.Type {
		case gjson.Null:
			out[k.String()] = nil
		case gjson.Number:
			out[k.String()] = v.Float()
		case gjson.String, gjson.True, gjson.False:
			out[k.String()] = v.String()
		default:
			err = fmt.Errorf("column %q: unsupported value %s", k.String(), v.Raw)
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ParseRows parses a JSON array of objects, or one object per line.
func ParseRows(b []byte) ([]scorecard.Row, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, nil
	}
	var rows []scorecard.Row
	var err error
	add := func(r gjson.Result) bool {
		var rw scorecard.Row
		if rw, err = row(r); err != nil {
			err = fmt.Errorf("row %d: %w", len(rows), err)
			return false
		}
		rows = append(rows, rw)
		return true
	}

	if b[0] == '[' {
		if !gjson.ValidBytes(b) {
			return nil, errors.New("rows are not valid JSON")
		}
		gjson.ParseBytes(b).ForEach(func(_, r gjson.Result) bool { return add(r) })
	} else {
		gjson.ForEachLine(string(b), func(r gjson.Result) bool {
			if !gjson.Valid(r.Raw) {
				err = fmt.Errorf("row %d is not valid JSON", len(rows))
				return false
			}
			return add(r)
		})
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// LoadRows reads the rows of a JSON file.
func LoadRows(path string) ([]scorecard.Row, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	rows, err := ParseRows(b)
	if err != nil {
		return nil, fmt.Errorf("parsing rows of %s: %w", path, err)
	}
	return rows, nil
}
