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

// Package annotate implements the front-end that writes the verdicts of the input dependency analysis in the
// analyzed sources.
package annotate

import (
	"fmt"
	"os"

	"github.com/awslabs/argot-inputdep/analysis/annotate"
	"github.com/awslabs/argot-inputdep/cmd/argot-inputdep/analyze"
	"github.com/awslabs/argot-inputdep/cmd/argot-inputdep/tools"
)

const usage = ` Annotate the functions of your packages with their input dependency.
Usage:
  argot-inputdep annotate [options] <package path(s)>
Without -write, the annotated files are printed on standard output.
Examples:
  % argot-inputdep annotate -write ./...
`

// Flags represents the parsed flags of the annotate sub-command.
type Flags struct {
	tools.CommonFlags
	write bool
}

// NewFlags returns the parsed flags of the annotate sub-command with args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("annotate")
	write := flags.FlagSet.Bool("write", false, "overwrite the source files")
	tools.SetUsage(flags.FlagSet, usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	return Flags{CommonFlags: common, write: *write}, nil
}

// Run analyzes the packages named in flags and annotates their function declarations.
func Run(flags Flags) error {
	cfg, err := tools.LoadConfig(flags.ConfigPath, flags.Verbose)
	if err != nil {
		return err
	}
	result, err := analyze.Analyze(flags.CommonFlags, cfg)
	if err != nil {
		return err
	}

	pkgs, err := annotate.Load(tools.PackagesConfig(flags.WithTest), flags.FlagSet.Args()...)
	if err != nil {
		return err
	}
	verdicts := annotate.NewVerdicts(result.Program.Program, result.Registry)
	changes := annotate.Annotate(pkgs, verdicts)
	result.Logger.Infof("%d function verdicts, %d files annotated\n", len(verdicts), len(changes))

	if flags.write {
		return annotate.Save(changes)
	}
	for _, c := range changes {
		fmt.Printf("// %s\n", c.Filename)
		if err := c.Fprint(os.Stdout); err != nil {
			return err
		}
	}
	return nil
}
