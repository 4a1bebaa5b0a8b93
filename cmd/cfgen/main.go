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

// The cfgen command generates counterfactual explanations for the scorecard of a model file.
//
//	cfgen --model credit.yaml generate --query '{"age": 22, "income": 800}' --n-cf 3
//	cfgen --model credit.yaml --format json batch --queries queries.jsonl --parallel 4
//	cfgen --model credit.yaml inspect
package main

import "github.com/gtnx/optbinning/internal/cli"

func main() {
	cli.Execute()
}
