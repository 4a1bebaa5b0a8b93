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

// Package lambdafn serves counterfactual requests behind an AWS Lambda function URL.
//
// The request body is a JSON object holding the query row under `query` and any request
// field of the model file, e.g.
//
//	{"query": {"age": 22, "income": 800}, "target": 0.6, "n_cf": 3}
//
// The response is the protojson encoding of the result set.
package lambdafn

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	log "github.com/golang/glog"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/gtnx/optbinning/internal/config"
	"github.com/gtnx/optbinning/scorecard/counterfactual"
)

var jsonHeader = map[string]string{
	"Content-Type": "application/json",
}

// Handler generates counterfactuals for one model. It is safe for concurrent use.
type Handler struct {
	model *config.Model
	enc   *counterfactual.Encoding
}

// New fits the encoding of `model`.
func New(model *config.Model) (*Handler, error) {
	enc, err := model.Encode()
	if err != nil {
		return nil, err
	}
	return &Handler{model: model, enc: enc}, nil
}

// Load reads the model file at `path`.
func Load(path string) (*Handler, error) {
	m, err := config.LoadModel(path)
	if err != nil {
		return nil, err
	}
	return New(m)
}

// Handle answers one function URL invocation. Errors are reported in the response.
func (h *Handler) Handle(ctx context.Context, event events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	body := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return errResp(http.StatusBadRequest, "invalid base64 body")
		}
		body = string(decoded)
	}

	req := h.model.Request
	query, err := config.ApplyJSON(&req, body)
	if err != nil {
		return errResp(http.StatusBadRequest, err.Error())
	}
	if query == nil {
		return errResp(http.StatusBadRequest, "missing query field")
	}

	rs, err := counterfactual.Generate(ctx, h.enc, query, req)
	if errors.Is(err, counterfactual.ErrInvalidRequest) {
		return errResp(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		log.Errorf("lambdafn: %v", err)
		return errResp(http.StatusInternalServerError, err.Error())
	}
	log.Infof("lambdafn: %s %v, %d solutions in %v", rs.ID, rs.Status, len(rs.Solutions), rs.Timing.Total())

	s, err := rs.Proto()
	if err != nil {
		log.Errorf("lambdafn: encoding %s: %v", rs.ID, err)
		return errResp(http.StatusInternalServerError, "encoding result")
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		log.Errorf("lambdafn: encoding %s: %v", rs.ID, err)
		return errResp(http.StatusInternalServerError, "encoding result")
	}
	return events.LambdaFunctionURLResponse{StatusCode: http.StatusOK, Headers: jsonHeader, Body: string(b)}, nil
}

func errResp(code int, msg string) (events.LambdaFunctionURLResponse, error) {
	b, _ := protojson.Marshal(&structpb.Struct{Fields: map[string]*structpb.Value{
		"error": structpb.NewStringValue(msg),
	}})
	return events.LambdaFunctionURLResponse{StatusCode: code, Headers: jsonHeader, Body: string(b)}, nil
}
