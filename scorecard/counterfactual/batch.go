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
	"context"
	"fmt"

	log "github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/gtnx/optbinning/scorecard"
)

// GenerateBatch runs Generate on every query with at most `parallelism` queries in flight, all
// when it is not positive. Results are in query order. The first invalid query cancels the
// others and its error is returned.
func GenerateBatch(ctx context.Context, enc *Encoding, queries []scorecard.Row, req Request, parallelism int) ([]*ResultSet, error) {
	results := make([]*ResultSet, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			rs, err := Generate(gctx, enc, q, req)
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			results[i] = rs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.V(1).Infof("counterfactual: batch of %d queries done", len(queries))
	return results, nil
}
