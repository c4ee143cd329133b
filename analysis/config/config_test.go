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
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

//go:embed testdata
var testfsys embed.FS

func checkEqualOnNonEmptyFields(t *testing.T, cid1 CodeIdentifier, cid2 CodeIdentifier) {
	cid2c := CompileRegexes(cid2)
	if !cid1.equalOnNonEmptyFields(cid2c) {
		t.Errorf("%v should be equal modulo empty fields to %v", cid1, cid2)
	}
}

func checkNotEqualOnNonEmptyFields(t *testing.T, cid1 CodeIdentifier, cid2 CodeIdentifier) {
	cid2c := CompileRegexes(cid2)
	if cid1.equalOnNonEmptyFields(cid2c) {
		t.Errorf("%v should not be equal modulo empty fields to %v", cid1, cid2)
	}
}

func TestCodeIdentifier_equalOnNonEmptyFields_selfEquals(t *testing.T) {
	cid1 := CodeIdentifier{Package: "a", Method: "b"}
	checkEqualOnNonEmptyFields(t, cid1, cid1)
}

func TestCodeIdentifier_equalOnNonEmptyFields_emptyMatchesAny(t *testing.T) {
	cid1 := CodeIdentifier{Package: "a", Method: "b", Receiver: "c", Global: "d", Type: "e"}
	cid2 := CodeIdentifier{Package: "de", Method: "234jbn", Receiver: "ef", Global: "23kjb", Type: "d"}
	cidEmpty := CodeIdentifier{}
	checkEqualOnNonEmptyFields(t, cid1, cidEmpty)
	checkEqualOnNonEmptyFields(t, cid2, cidEmpty)
}

func TestCodeIdentifier_equalOnNonEmptyFields_oneDiff(t *testing.T) {
	cid1 := CodeIdentifier{Package: "a", Method: "b"}
	cid2 := CodeIdentifier{Package: "a"}
	checkEqualOnNonEmptyFields(t, cid1, cid2)
	checkNotEqualOnNonEmptyFields(t, cid2, cid1)
}

func TestCodeIdentifier_equalOnNonEmptyFields_regexes(t *testing.T) {
	cid1 := CodeIdentifier{Package: "main", Method: "b"}
	cid1bis := CodeIdentifier{Package: "command-line-arguments", Method: "b"}
	cid2 := CodeIdentifier{Package: "(main)|(command-line-arguments)$"}
	checkEqualOnNonEmptyFields(t, cid1, cid2)
	checkEqualOnNonEmptyFields(t, cid1bis, cid2)
}

func TestExistsCidSkipsEmptyIdentifiers(t *testing.T) {
	cid := CodeIdentifier{Package: "os", Global: "Args"}
	if ExistsCid([]CodeIdentifier{{}}, cid.equalOnNonEmptyFields) {
		t.Errorf("an empty identifier in a list should not match anything")
	}
	if !ExistsCid([]CodeIdentifier{{}, {Package: "os"}}, cid.equalOnNonEmptyFields) {
		t.Errorf("os.Args should match package os")
	}
}

func loadFromTestDir(filename string) (string, *Config, error) {
	filename = filepath.Join("testdata", filename)
	b, err := testfsys.ReadFile(filename)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read file %v: %v", filename, err)
	}
	config, err := Parse(filename, b)
	if err != nil {
		return filename, nil, fmt.Errorf("failed to load file %v: %v", filename, err)
	}
	return filename, config, err
}

func TestNewDefault(t *testing.T) {
	c := NewDefault()
	if c.PkgFilter != "" {
		t.Errorf("Default for PkgFilter should be empty")
	}
	if !c.InputDependency.EntryPointsInput {
		t.Errorf("Default should make entry points arguments input dependent")
	}
	if c.InputDependency.Callgraph != DefaultCallgraph {
		t.Errorf("Default callgraph should be %q", DefaultCallgraph)
	}
	if !c.MatchPkgFilter("any/package") {
		t.Errorf("Default config should match any package")
	}
}

func TestLoadNonExistentFileReturnsError(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "does-not-exist.yaml"))
	if c != nil || err == nil {
		t.Errorf("Expected error and nil value when trying to load non existent file.")
	}
}

func TestLoadBadFormatFileReturnsError(t *testing.T) {
	_, config, err := loadFromTestDir("bad_format.yaml")
	if config != nil || err == nil {
		t.Errorf("Expected error and nil value when trying to load a badly formatted file.")
	}
}

func TestLoadUnknownCallgraphReturnsError(t *testing.T) {
	_, config, err := loadFromTestDir("bad_callgraph.yaml")
	if config != nil || err == nil {
		t.Errorf("Expected error and nil value when the callgraph is unknown.")
	}
}

func TestLoadWithReports(t *testing.T) {
	fileName, config, err := loadFromTestDir("config_with_reports.yaml")
	if err != nil {
		t.Fatalf("Could not load %q: %v", fileName, err)
	}
	defer os.Remove("example-report")
	if config.ReportsDir != "example-report" {
		t.Errorf("Expected reports-dir to be example-report, got %q", config.ReportsDir)
	}
	if config.ReportFormat != "json" {
		t.Errorf("Expected report-format json, got %q", config.ReportFormat)
	}
}

func TestLoadMinimalConfigKeepsDefaults(t *testing.T) {
	fileName, config, err := loadFromTestDir("config.yaml")
	if err != nil {
		t.Fatalf("Could not load %q: %v", fileName, err)
	}
	expected := NewDefault()
	expected.PkgFilter = "a"
	expected.InputDependency.InputSources = []CodeIdentifier{{Package: "x", Method: "a"}}
	c1, err1 := yaml.Marshal(config)
	c2, err2 := yaml.Marshal(expected)
	if err1 != nil || err2 != nil {
		t.Fatalf("Error marshalling configs: %v, %v", err1, err2)
	}
	if string(c1) != string(c2) {
		t.Errorf("Error in %q:\n%q is not\n%q\n", fileName, c1, c2)
	}
}

func TestLoadFullConfig(t *testing.T) {
	fileName, config, err := loadFromTestDir("full-config.yaml")
	if config == nil || err != nil {
		t.Fatalf("Could not load %s: %v", fileName, err)
	}
	if config.LogLevel != int(TraceLevel) {
		t.Error("full config should have set trace")
	}
	if !config.SilenceWarn {
		t.Error("full config should have silence-warn set to true")
	}
	if config.ReportFormat != "msgpack" {
		t.Error("full config should set the report format to msgpack")
	}
	if !config.MatchPkgFilter("argot/analysis/inputdep") {
		t.Error("full config pkg filter should match packages in analysis")
	}
	if config.MatchPkgFilter("fmt") {
		t.Error("full config pkg filter should not match fmt")
	}
	opts := config.InputDependency
	if opts.Callgraph != "vta" {
		t.Errorf("full config should use vta, got %q", opts.Callgraph)
	}
	if !opts.UsePointerAlias {
		t.Error("full config should set use-pointer-alias")
	}
	if opts.EntryPointsInput {
		t.Error("full config should set entry-points-input to false")
	}
	if opts.MaxFixpointIterations != 42 {
		t.Error("full config should set max-fixpoint-iterations to 42")
	}
	files := config.LibrarySummaryFiles()
	if len(files) != 2 || files[0] != "testdata/summaries/net.yaml" {
		t.Errorf("library summaries should be relative to the config file, got %v", files)
	}
	if !config.IsInputSource(CodeIdentifier{Package: "github.com/example/io", Method: "ReadAll"}) {
		t.Error("full config should have an input source matching ReadAll")
	}
	if config.IsInputSource(CodeIdentifier{Package: "github.com/example/io", Method: "Write"}) {
		t.Error("Write should not be an input source")
	}
	if !config.IsInputGlobal(CodeIdentifier{Package: "flag", Global: "CommandLine"}) {
		t.Error("full config should have flag.CommandLine as input global")
	}
}

func TestNewLogGroupSilencesWarnings(t *testing.T) {
	c := NewDefault()
	c.LogLevel = int(DebugLevel)
	c.SilenceWarn = true
	l := NewLogGroup(c)
	if l.LevelEnabled(WarnLevel) {
		t.Errorf("silence-warn should disable warnings")
	}
	if !l.LevelEnabled(ErrLevel) {
		t.Errorf("errors should always be logged")
	}
}
