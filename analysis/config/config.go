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

package config

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/awslabs/argot-inputdep/internal/funcutil"
	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// Config contains the options of the input dependency analysis.
// To add elements to a config file, add fields to this struct.
// If some field is not defined in the config file, it will be empty/zero in the struct.
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options

	sourceFile string

	// if the PkgFilter is specified
	pkgFilterRegex *regexp.Regexp

	// InputDependency contains the options specific to the input dependency analysis
	InputDependency InputDependencyOptions `yaml:"input-dependency"`
}

// InputDependencyOptions are the options of the input dependency analysis
type InputDependencyOptions struct {
	// LibrarySummaries is a list of yaml files containing library function summaries. Paths are relative to the
	// config file.
	LibrarySummaries []string `yaml:"library-summaries"`

	// Callgraph is the call graph algorithm used to order functions and resolve invoke sites. One of
	// pointer, static, cha, rta or vta.
	Callgraph string `yaml:"callgraph"`

	// UsePointerAlias makes the analysis use the pointer analysis to decide which writes may reach a memory location.
	// When false, a type-based approximation is used.
	UsePointerAlias bool `yaml:"use-pointer-alias"`

	// InputSources identifies additional functions whose results are input dependent
	InputSources []CodeIdentifier `yaml:"input-sources"`

	// InputGlobals identifies additional global variables whose content is input dependent
	InputGlobals []CodeIdentifier `yaml:"input-globals"`

	// EntryPointsInput specifies whether the arguments of functions that have no analyzed caller are input
	// dependent. Setting it to false makes the analysis consider them input independent, which is unsound for
	// library code.
	EntryPointsInput bool `yaml:"entry-points-input"`

	// MaxFixpointIterations bounds the number of passes over the blocks of a function. A function that does not
	// stabilize within that bound is conservatively classified as input dependent. If <= 0, the default is used.
	MaxFixpointIterations int `yaml:"max-fixpoint-iterations"`
}

// Options are the general options of the tools
type Options struct {
	// ReportsDir is the directory where all the reports will be stored. If the yaml config file this config struct has
	// been loaded does not specify a ReportsDir but sets ReportCoverage to true, then ReportsDir will be created
	// next to the config file.
	ReportsDir string `yaml:"reports-dir"`

	// PkgFilter is a filter for the packages whose functions are analyzed. Functions in other packages are treated as
	// library functions.
	PkgFilter string `yaml:"pkg-filter"`

	// ReportCoverage specifies whether the coverage report should be written. If true, then a file named
	// inputdep-*.<format> will be created in the reports directory.
	ReportCoverage bool `yaml:"report-coverage"`

	// ReportFormat is the encoding of the coverage report: text, json, yaml or msgpack
	ReportFormat string `yaml:"report-format"`

	// Loglevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`

	// Suppress warnings
	SilenceWarn bool `yaml:"silence-warn"`
}

// NewDefault returns a default config.
func NewDefault() *Config {
	return &Config{
		sourceFile: "",
		InputDependency: InputDependencyOptions{
			LibrarySummaries:      []string{},
			Callgraph:             DefaultCallgraph,
			UsePointerAlias:       false,
			EntryPointsInput:      true,
			MaxFixpointIterations: DefaultMaxFixpointIterations,
		},
		Options: Options{
			ReportsDir:     "",
			PkgFilter:      "",
			ReportCoverage: false,
			ReportFormat:   DefaultReportFormat,
			LogLevel:       int(InfoLevel),
			SilenceWarn:    false,
		},
	}
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	return Parse(filename, b)
}

// Parse reads a configuration from the content of a file. The filename is used to compute paths relative to the
// config file.
func Parse(filename string, b []byte) (*Config, error) {
	cfg := NewDefault()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}

	cfg.sourceFile = filename

	if cfg.ReportCoverage {
		if err := setReportsDir(cfg, filename); err != nil {
			return nil, err
		}
	}

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}

	if cfg.InputDependency.MaxFixpointIterations <= 0 {
		cfg.InputDependency.MaxFixpointIterations = DefaultMaxFixpointIterations
	}

	if cfg.InputDependency.Callgraph == "" {
		cfg.InputDependency.Callgraph = DefaultCallgraph
	}
	if !funcutil.Contains(CallgraphKinds, cfg.InputDependency.Callgraph) {
		return nil, fmt.Errorf("unknown callgraph %q, expected one of %s", cfg.InputDependency.Callgraph,
			strings.Join(CallgraphKinds, ", "))
	}

	if cfg.ReportFormat == "" {
		cfg.ReportFormat = DefaultReportFormat
	}
	if !funcutil.Contains(ReportFormats, cfg.ReportFormat) {
		return nil, fmt.Errorf("unknown report format %q, expected one of %s", cfg.ReportFormat,
			strings.Join(ReportFormats, ", "))
	}

	if cfg.PkgFilter != "" {
		r, err := regexp.Compile(cfg.PkgFilter)
		if err == nil {
			cfg.pkgFilterRegex = r
		}
	}

	funcutil.MapInPlace(cfg.InputDependency.InputSources, CompileRegexes)
	funcutil.MapInPlace(cfg.InputDependency.InputGlobals, CompileRegexes)

	return cfg, nil
}

func setReportsDir(c *Config, filename string) error {
	if c.ReportsDir == "" {
		tmpdir, err := os.MkdirTemp(path.Dir(filename), "*-report")
		if err != nil {
			return fmt.Errorf("could not create temp dir for reports")
		}
		c.ReportsDir = tmpdir
	} else {
		err := os.Mkdir(c.ReportsDir, 0750)
		if err != nil {
			if !os.IsExist(err) {
				return fmt.Errorf("could not create directory %s", c.ReportsDir)
			}
		}
	}
	return nil
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// LibrarySummaryFiles returns the paths of the library summary files, relative to the config file
func (c Config) LibrarySummaryFiles() []string {
	return funcutil.Map(c.InputDependency.LibrarySummaries, c.RelPath)
}

// MatchPkgFilter returns true if the package name pkgname matches the package filter set in the config file. If no
// package filter has been set in the config file, the regex will match anything and return true. This function safely
// considers the case where a filter has been specified by the user, but it could not be compiled to a regex. The safe
// case is to check whether the package filter string is a prefix of the pkgname
func (c Config) MatchPkgFilter(pkgname string) bool {
	if c.pkgFilterRegex != nil {
		return c.pkgFilterRegex.MatchString(pkgname)
	} else if c.PkgFilter != "" {
		return strings.HasPrefix(pkgname, c.PkgFilter)
	} else {
		return true
	}
}

// IsInputSource returns true if the code identifier matches one of the input sources of the config
func (c Config) IsInputSource(cid CodeIdentifier) bool {
	return ExistsCid(c.InputDependency.InputSources, cid.equalOnNonEmptyFields)
}

// IsInputGlobal returns true if the code identifier matches one of the input globals of the config
func (c Config) IsInputGlobal(cid CodeIdentifier) bool {
	return ExistsCid(c.InputDependency.InputGlobals, cid.equalOnNonEmptyFields)
}

// Verbose returns true is the configuration verbosity setting is larger than Info (i.e. Debug or Trace)
func (c Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}
