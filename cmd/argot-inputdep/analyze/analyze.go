// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package analyze implements the front-end of the input dependency analysis.
package analyze

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/awslabs/argot-inputdep/analysis"
	"github.com/awslabs/argot-inputdep/analysis/config"
	"github.com/awslabs/argot-inputdep/analysis/inputdep"
	"github.com/awslabs/argot-inputdep/analysis/summaries"
	"github.com/awslabs/argot-inputdep/cmd/argot-inputdep/tools"
	"github.com/awslabs/argot-inputdep/internal/formatutil"
	"golang.org/x/tools/go/ssa"
)

const usage = ` Compute which instructions of your packages depend on the program input.
Usage:
  argot-inputdep analyze [options] <package path(s)>
Examples:
  % argot-inputdep analyze -config config.yaml ./...
  % argot-inputdep analyze -format json -callgraph vta main.go
`

// Flags represents the parsed flags of the analyze sub-command.
type Flags struct {
	tools.CommonFlags
	format    string
	callgraph string
	report    bool
}

// NewFlags returns the parsed flags of the analyze sub-command with args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("analyze")
	format := flags.FlagSet.String("format", "", "output format: text, json, yaml or msgpack (overrides the config)")
	cg := flags.FlagSet.String("callgraph", "", "call graph: pointer, static, cha, rta or vta (overrides the config)")
	report := flags.FlagSet.Bool("report", false, "also write the coverage report in the reports directory")
	tools.SetUsage(flags.FlagSet, usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	return Flags{
		CommonFlags: common,
		format:      *format,
		callgraph:   *cg,
		report:      *report,
	}, nil
}

// Result is the outcome of the analysis of the packages named on the command line.
type Result struct {
	Program  analysis.LoadedProgram
	Config   *config.Config
	Logger   *config.LogGroup
	Registry *inputdep.Registry
}

// Analyze loads the packages named in flags and analyzes them with cfg.
func Analyze(flags tools.CommonFlags, cfg *config.Config) (Result, error) {
	logger := config.NewLogGroup(cfg)
	logger.Infof(formatutil.Faint("argot-inputdep " + analysis.Version))
	logger.Infof(formatutil.Faint("Reading sources") + "\n")

	program, err := analysis.LoadProgram(tools.PackagesConfig(flags.WithTest), "", ssa.InstantiateGenerics,
		flags.FlagSet.Args())
	if err != nil {
		return Result{}, fmt.Errorf("could not load program: %v", err)
	}

	library, err := summaries.LoadTable(cfg, program)
	if err != nil {
		return Result{}, fmt.Errorf("could not load library summaries: %w", err)
	}
	logger.Debugf("%d library summaries loaded\n", library.Len())

	state, err := inputdep.NewState(program, cfg, library)
	if err != nil {
		return Result{}, err
	}
	state.Logger = logger

	start := time.Now()
	reg, err := inputdep.AnalyzeProgram(state)
	if err != nil {
		return Result{}, fmt.Errorf("analysis failed: %w", err)
	}
	logger.Infof("analysis of %d functions took %3.4f s\n", reg.Len(), time.Since(start).Seconds())
	return Result{Program: program, Config: cfg, Logger: logger, Registry: reg}, nil
}

// Run runs the input dependency analysis with flags and prints the coverage report on standard output.
func Run(flags Flags) error {
	cfg, err := tools.LoadConfig(flags.ConfigPath, flags.Verbose)
	if err != nil {
		return err
	}
	if flags.format != "" {
		cfg.ReportFormat = flags.format
	}
	if flags.callgraph != "" {
		cfg.InputDependency.Callgraph = flags.callgraph
	}

	result, err := Analyze(flags.CommonFlags, cfg)
	if err != nil {
		return err
	}

	report := inputdep.NewReport(result.Registry)
	if err := report.Encode(os.Stdout, cfg.ReportFormat); err != nil {
		return err
	}
	summarize(result.Logger, report)

	if flags.report || cfg.ReportCoverage {
		name, err := inputdep.WriteReport(report, cfg)
		if err != nil {
			return err
		}
		result.Logger.Infof("coverage report written in %s\n", name)
	}
	return nil
}

func summarize(logger *config.LogGroup, report inputdep.Report) {
	dependent := 0
	for _, f := range report.Functions {
		if f.Stats.InputDepInstructions > 0 {
			dependent++
		}
	}
	logger.Infof(strings.Repeat("*", 80))
	if dependent == 0 {
		logger.Infof("RESULT:\n\t\t%s", formatutil.Green("No input dependent function ✓"))
	} else {
		logger.Infof("RESULT:\n\t\t%s", formatutil.Yellow(fmt.Sprintf("%d of %d functions depend on input",
			dependent, len(report.Functions))))
	}
}
