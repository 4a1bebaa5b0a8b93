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
	"fmt"
)

var (
	// ErrEncoding matches every EncodingError.
	ErrEncoding = errors.New("encoding error")
	// ErrInvalidRequest matches every InvalidRequestError.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrOneHot is reported when a solver assignment selects zero or several bins of a feature.
	ErrOneHot = errors.New("one-hot violation")
)

// EncodingError reports a degenerate model or reference data set. Fit aborts on it.
type EncodingError struct {
	// Feature is empty when the error is not specific to a feature.
	Feature string
	Reason  string
	Err     error
}

func (e *EncodingError) Error() string {
	msg := "encoding: "
	if e.Feature != "" {
		msg += fmt.Sprintf("feature %q: ", e.Feature)
	}
	msg += e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrEncoding) true.
func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }

func (e *EncodingError) Unwrap() error { return e.Err }

// InvalidRequestError reports malformed generation parameters. No problem is built.
type InvalidRequestError struct {
	Field  string
	Reason string
	Err    error
}

func (e *InvalidRequestError) Error() string {
	msg := fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrInvalidRequest) true.
func (e *InvalidRequestError) Is(target error) bool { return target == ErrInvalidRequest }

func (e *InvalidRequestError) Unwrap() error { return e.Err }

func invalidf(field, format string, a ...any) error {
	return &InvalidRequestError{Field: field, Reason: fmt.Sprintf(format, a...)}
}
