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

//go:build lambda

// The cfgen-lambda command serves counterfactual requests behind an AWS Lambda function URL.
// The model file is read from $CFGEN_MODEL at cold start.
//
//	GOOS=linux GOARCH=arm64 go build -tags lambda -o bootstrap ./cmd/cfgen-lambda
package main

import (
	"flag"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	log "github.com/golang/glog"

	"github.com/gtnx/optbinning/internal/lambdafn"
)

func main() {
	flag.Set("logtostderr", "true")
	flag.Parse()

	path := os.Getenv("CFGEN_MODEL")
	if path == "" {
		log.Exit("CFGEN_MODEL is not set")
	}
	h, err := lambdafn.Load(path)
	if err != nil {
		log.Exitf("loading %s: %v", path, err)
	}
	lambda.Start(h.Handle)
}
