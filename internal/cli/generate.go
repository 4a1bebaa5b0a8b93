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
	"context"
	"errors"
	"fmt"
	"slices"

	log "github.com/golang/glog"
	urfave "github.com/urfave/cli/v3"

	"github.com/gtnx/optbinning/internal/config"
	"github.com/gtnx/optbinning/scorecard"
	"github.com/gtnx/optbinning/scorecard/counterfactual"
)

const (
	requestFlag      = "request"
	targetFlag       = "target"
	numCFFlag        = "n-cf"
	maxChangesFlag   = "max-changes"
	constraintFlag   = "constraint"
	timeLimitFlag    = "time-limit"
	strategyFlag     = "strategy"
	proximityFlag    = "proximity"
	closenessFlag    = "closeness"
	actionableFlag   = "actionable"
	allowSpecialFlag = "allow-special"
	onlyChangesFlag  = "only-changes"
	showOutcomeFlag  = "show-outcome"
	infoFlag         = "info"
	queryFlag        = "query"
	queriesFlag      = "queries"
	parallelFlag     = "parallel"
)

// requestFlags are the flags of the commands that generate counterfactuals. Flags keep their
// parsed state, so every command gets its own.
func requestFlags() []urfave.Flag {
	return []urfave.Flag{
		&urfave.StringFlag{
			Name:  requestFlag,
			Usage: "JSON request overriding the model defaults, may hold the query",
		},
		&urfave.FloatFlag{
			Name:  targetFlag,
			Usage: "Target outcome, a probability for binary models",
		},
		&urfave.IntFlag{
			Name:  numCFFlag,
			Usage: "Number of counterfactuals",
		},
		&urfave.IntFlag{
			Name:  maxChangesFlag,
			Usage: "Largest number of changed features, adds the max_changes constraint",
		},
		&urfave.StringSliceFlag{
			Name:  constraintFlag,
			Usage: "Hard constraint, repeatable",
		},
		&urfave.DurationFlag{
			Name:  timeLimitFlag,
			Usage: "Solver budget of each query",
		},
		&urfave.StringFlag{
			Name:  strategyFlag,
			Usage: "Diversity strategy [iterative, simultaneous]",
		},
		&urfave.StringFlag{
			Name:  proximityFlag,
			Usage: "Proximity metric [uniform, magnitude]",
		},
		&urfave.StringFlag{
			Name:  closenessFlag,
			Usage: "Closeness penalty [hinge, absolute]",
		},
		&urfave.StringSliceFlag{
			Name:  actionableFlag,
			Usage: "Feature allowed to change, repeatable, all when absent",
		},
		&urfave.BoolFlag{
			Name:  allowSpecialFlag,
			Usage: "Let features move to their missing and special bins",
		},
		&urfave.BoolFlag{
			Name:  onlyChangesFlag,
			Usage: "Only show the features changed by some counterfactual",
		},
		&urfave.BoolFlag{
			Name:  showOutcomeFlag,
			Usage: "Add the outcome column to the table",
		},
		&urfave.BoolFlag{
			Name:  infoFlag,
			Usage: "Print the solver statistics after the table",
		},
	}
}

// request merges the model defaults, the --request body and the flags, in that order.
func (a *app) request(cmd *urfave.Command) (counterfactual.Request, scorecard.Row, error) {
	req := a.model.Request
	var query scorecard.Row
	if body := cmd.String(requestFlag); body != "" {
		q, err := config.ApplyJSON(&req, body)
		if err != nil {
			return req, nil, fmt.Errorf("--%s: %w", requestFlag, err)
		}
		query = q
	}

	if cmd.IsSet(targetFlag) {
		req.Target = float64(cmd.Float(targetFlag))
	}
	if cmd.IsSet(numCFFlag) {
		req.NumCF = int(cmd.Int(numCFFlag))
	}
	if cmd.IsSet(constraintFlag) {
		req.HardConstraints = cmd.StringSlice(constraintFlag)
	}
	if cmd.IsSet(maxChangesFlag) {
		req.MaxChanges = int(cmd.Int(maxChangesFlag))
		name := counterfactual.MaxChanges.String()
		if !slices.Contains(req.HardConstraints, name) {
			req.HardConstraints = append(slices.Clone(req.HardConstraints), name)
		}
	}
	if cmd.IsSet(timeLimitFlag) {
		req.TimeLimit = cmd.Duration(timeLimitFlag)
	}
	if cmd.IsSet(strategyFlag) {
		req.Strategy = counterfactual.Strategy(cmd.String(strategyFlag))
	}
	if cmd.IsSet(proximityFlag) {
		req.Proximity = counterfactual.ProximityMetric(cmd.String(proximityFlag))
	}
	if cmd.IsSet(closenessFlag) {
		req.Closeness = counterfactual.ClosenessPenalty(cmd.String(closenessFlag))
	}
	if cmd.IsSet(actionableFlag) {
		req.ActionableFeatures = cmd.StringSlice(actionableFlag)
	}
	if cmd.IsSet(allowSpecialFlag) {
		req.AllowSpecial = cmd.Bool(allowSpecialFlag)
	}
	return req, query, nil
}

func (a *app) generateCmd() *urfave.Command {
	return &urfave.Command{
		Name:      "generate",
		Usage:     "Generate the counterfactuals of one query",
		ArgsUsage: "[query JSON]",
		Flags: append(requestFlags(), &urfave.StringFlag{
			Name:  queryFlag,
			Usage: "Query row as a JSON object",
		}),
		Action: func(ctx context.Context, cmd *urfave.Command) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			req, query, err := a.request(cmd)
			if err != nil {
				return err
			}
			s := cmd.String(queryFlag)
			if s == "" {
				s = cmd.Args().First()
			}
			if s != "" {
				if query, err = config.ParseRow(s); err != nil {
					return fmt.Errorf("query: %w", err)
				}
			}
			if query == nil {
				return errors.New("no query, use --query or the query field of --request")
			}

			rs, err := counterfactual.Generate(ctx, a.enc, query, req)
			if err != nil {
				return err
			}
			return a.writeResults(cmd, []*counterfactual.ResultSet{rs})
		},
	}
}

func (a *app) batchCmd() *urfave.Command {
	return &urfave.Command{
		Name:  "batch",
		Usage: "Generate the counterfactuals of every query of a file",
		Flags: append(requestFlags(),
			&urfave.StringFlag{
				Name:     queriesFlag,
				Usage:    "File of query rows, a JSON array or one object per line",
				Required: true,
			},
			&urfave.IntFlag{
				Name:  parallelFlag,
				Usage: "Largest number of queries solved at once, unbounded when 0",
				Value: 1,
			},
		),
		Action: func(ctx context.Context, cmd *urfave.Command) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			req, _, err := a.request(cmd)
			if err != nil {
				return err
			}
			queries, err := config.LoadRows(cmd.String(queriesFlag))
			if err != nil {
				return err
			}
			log.V(1).Infof("cfgen: %d queries", len(queries))

			results, err := counterfactual.GenerateBatch(ctx, a.enc, queries, req, int(cmd.Int(parallelFlag)))
			if err != nil {
				return err
			}
			return a.writeResults(cmd, results)
		},
	}
}

func (a *app) inspectCmd() *urfave.Command {
	return &urfave.Command{
		Name:  "inspect",
		Usage: "Print the bin table the optimizer works with",
		Action: func(_ context.Context, cmd *urfave.Command) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			return a.writeEncoding(cmd)
		},
	}
}
