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

package lambdafn

import (
	"context"
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const body = `{"query": {"age": 22, "income": 800, "housing": "rent", "debt": 0.7}, "n_cf": 1}`

func handler(t *testing.T) *Handler {
	t.Helper()
	h, err := Load("../config/testdata/credit.yaml")
	require.NoError(t, err)
	return h
}

func TestHandle(t *testing.T) {
	h := handler(t)
	for _, event := range []events.LambdaFunctionURLRequest{
		{Body: body},
		{Body: base64.StdEncoding.EncodeToString([]byte(body)), IsBase64Encoded: true},
	} {
		resp, err := h.Handle(context.Background(), event)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)
		assert.Equal(t, "application/json", resp.Headers["Content-Type"])
		assert.Equal(t, "OPTIMAL", gjson.Get(resp.Body, "status").String())
		assert.Equal(t, int64(1), gjson.Get(resp.Body, "solutions.#").Int())
		assert.GreaterOrEqual(t, gjson.Get(resp.Body, "solutions.0.outcome").Float(), 0.5)
	}
}

func TestHandle_BadRequest(t *testing.T) {
	h := handler(t)
	testCases := []struct {
		name  string
		event events.LambdaFunctionURLRequest
		want  string
	}{
		{"BadBase64", events.LambdaFunctionURLRequest{Body: "%%", IsBase64Encoded: true}, "invalid base64 body"},
		{"BadJSON", events.LambdaFunctionURLRequest{Body: "{"}, "not valid JSON"},
		{"NoQuery", events.LambdaFunctionURLRequest{Body: `{"n_cf": 2}`}, "missing query field"},
		{"InvalidRequest", events.LambdaFunctionURLRequest{Body: `{"query": {"age": 22, "income": 800, "housing": "rent", "debt": 0.7}, "n_cf": 0}`}, "num_cf"},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			resp, err := h.Handle(context.Background(), test.event)
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, gjson.Get(resp.Body, "error").String(), test.want)
		})
	}
}
