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

// Package stats implements the front-end for the SSA statistics of the analyzed packages.
package stats

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/awslabs/argot-inputdep/analysis"
	"github.com/awslabs/argot-inputdep/analysis/summaries"
	"github.com/awslabs/argot-inputdep/cmd/argot-inputdep/tools"
	"github.com/awslabs/argot-inputdep/internal/formatutil"
	"golang.org/x/tools/go/ssa"
)

const usage = `Compute SSA statistics for a Go program.

Usage:
  argot-inputdep stats package...
  argot-inputdep stats source.go

Use the -help flag to display the options.

Examples:
% argot-inputdep stats -json hello.go
`

// Flags represents the flags for the stats sub-command.
type Flags struct {
	tools.CommonFlags
	outputJSON bool
	all        bool
}

// NewFlags returns parsed flags for stats.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("stats")
	outputJSON := flags.FlagSet.Bool("json", false, "output results as JSON")
	all := flags.FlagSet.Bool("all", false, "include the functions of the standard library")
	tools.SetUsage(flags.FlagSet, usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	return Flags{CommonFlags: common, outputJSON: *outputJSON, all: *all}, nil
}

// Run prints the SSA statistics of the initial packages named in flags.
func Run(flags Flags) error {
	fmt.Fprintf(os.Stderr, formatutil.Faint("Reading sources")+"\n")

	program, err := analysis.LoadProgram(tools.PackagesConfig(flags.WithTest), "", ssa.InstantiateGenerics,
		flags.FlagSet.Args())
	if err != nil {
		return fmt.Errorf("could not load program: %v", err)
	}

	var filter func(*ssa.Function) bool
	if !flags.all {
		filter = summaries.IsUserDefinedFunction
	}
	result := analysis.SSAStatistics(program.InitialFunctions(), filter)
	if flags.outputJSON {
		buf, err := json.Marshal(result)
		if err != nil {
			return err
		}
		fmt.Println(string(buf))
		return nil
	}
	fmt.Printf("Number of functions: %d\n", result.NumberOfFunctions)
	fmt.Printf("Number of nonempty functions: %d\n", result.NumberOfNonemptyFunctions)
	fmt.Printf("Number of blocks: %d\n", result.NumberOfBlocks)
	fmt.Printf("Number of instructions: %d\n", result.NumberOfInstructions)
	fmt.Printf("Number of calls: %d\n", result.NumberOfCalls)
	fmt.Printf("Number of memory writes: %d\n", result.NumberOfMemoryWrites)
	return nil
}
