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

// Package cli implements the cfgen command line.
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	log "github.com/golang/glog"
	urfave "github.com/urfave/cli/v3"

	"github.com/gtnx/optbinning/internal/config"
	"github.com/gtnx/optbinning/scorecard/counterfactual"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

const (
	verboseFlag = "verbose"
	modelFlag   = "model"
	formatFlag  = "format"
)

var version = "v0.0.1-default"

// Execute creates and runs the CLI application.
func Execute() {
	defer log.Flush()
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Errorf("cfgen: %v", err)
		fmt.Fprintf(os.Stderr, "cfgen: %v\n", err)
		os.Exit(1)
	}
}

// app is the state shared by the commands once the global flags are parsed.
type app struct {
	model  *config.Model
	enc    *counterfactual.Encoding
	format string
}

func newApp() *urfave.Command {
	a := &app{}
	return &urfave.Command{
		Name:    "cfgen",
		Version: version,
		Usage:   "Counterfactual explanations for scorecard models",
		Flags: []urfave.Flag{
			&urfave.IntFlag{
				Name:  verboseFlag,
				Usage: "glog verbosity level, logs go to stderr when positive",
			},
			&urfave.StringFlag{
				Name:    modelFlag,
				Aliases: []string{"m"},
				Usage:   "Path to the YAML model file",
				Sources: urfave.EnvVars("CFGEN_MODEL"),
			},
			&urfave.StringFlag{
				Name:  formatFlag,
				Usage: "Output format [table, json, yaml]",
				Value: formatTable,
			},
		},
		Commands: []*urfave.Command{
			a.generateCmd(),
			a.batchCmd(),
			a.inspectCmd(),
		},
		Before: func(ctx context.Context, cmd *urfave.Command) (context.Context, error) {
			if v := int(cmd.Int(verboseFlag)); v > 0 {
				if err := flag.Set("v", strconv.Itoa(v)); err != nil {
					return ctx, fmt.Errorf("setting verbosity: %w", err)
				}
				if err := flag.Set("logtostderr", "true"); err != nil {
					return ctx, fmt.Errorf("setting verbosity: %w", err)
				}
			}

			switch f := cmd.String(formatFlag); f {
			case formatTable, formatJSON:
				a.format = f
			case formatYAML, "yml":
				a.format = formatYAML
			default:
				return ctx, fmt.Errorf("unknown format %q", f)
			}
			return ctx, nil
		},
	}
}

// load reads the model file and fits its encoding.
func (a *app) load(cmd *urfave.Command) error {
	path := cmd.String(modelFlag)
	if path == "" {
		return fmt.Errorf("--%s is required", modelFlag)
	}
	m, err := config.LoadModel(path)
	if err != nil {
		return err
	}
	enc, err := m.Encode()
	if err != nil {
		return fmt.Errorf("encoding model %q: %w", m.Name, err)
	}
	a.model = m
	a.enc = enc
	return nil
}
