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

package inputdep

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/awslabs/argot-inputdep/analysis/config"
	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"
)

// FunctionReport is the coverage of one function
type FunctionReport struct {
	Name             string  `json:"name" yaml:"name" msgpack:"name"`
	Stats            Stats   `json:"stats" yaml:"stats" msgpack:"stats"`
	InputDepFunction bool    `json:"input-dep-function" yaml:"input-dep-function" msgpack:"input-dep-function"`
	Extracted        bool    `json:"extracted,omitempty" yaml:"extracted,omitempty" msgpack:"extracted,omitempty"`
	Iterations       int     `json:"iterations,omitempty" yaml:"iterations,omitempty" msgpack:"iterations,omitempty"`
	InputDepRatio    float64 `json:"input-dep-ratio" yaml:"input-dep-ratio" msgpack:"input-dep-ratio"`
}

// Report is the coverage report of the analysis of a program
type Report struct {
	Functions []FunctionReport `json:"functions" yaml:"functions" msgpack:"functions"`
	Total     Stats            `json:"total" yaml:"total" msgpack:"total"`
	// MeanInputDepRatio and StdDevInputDepRatio are computed over the functions with reachable instructions
	MeanInputDepRatio   float64 `json:"mean-input-dep-ratio" yaml:"mean-input-dep-ratio" msgpack:"mean-input-dep-ratio"`
	StdDevInputDepRatio float64 `json:"stddev-input-dep-ratio" yaml:"stddev-input-dep-ratio" msgpack:"stddev-input-dep-ratio"`
}

// NewReport computes the coverage report of the results in reg
func NewReport(reg *Registry) Report {
	var report Report
	var ratios []float64
	for _, f := range reg.Functions() {
		r, _ := reg.Lookup(f)
		s := r.Stats()
		fr := FunctionReport{
			Name:             f.String(),
			Stats:            s,
			InputDepFunction: r.IsInputDepFunction(),
			Extracted:        r.IsExtractedFunction(),
		}
		if ar, ok := r.(*FunctionAnalysisResult); ok {
			fr.Iterations = ar.Iterations()
		}
		if n := s.Instructions(); n > 0 {
			fr.InputDepRatio = float64(s.InputDepInstructions) / float64(n)
			ratios = append(ratios, fr.InputDepRatio)
		}
		report.Total.Add(s)
		report.Functions = append(report.Functions, fr)
	}
	if len(ratios) > 0 {
		report.MeanInputDepRatio = stat.Mean(ratios, nil)
	}
	if len(ratios) > 1 {
		report.StdDevInputDepRatio = stat.StdDev(ratios, nil)
	}
	return report
}

// Encode writes the report to w in format, one of text, json, yaml or msgpack
func (r Report) Encode(w io.Writer, format string) error {
	switch format {
	case "", "text":
		return r.writeText(w)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(r)
	case "msgpack":
		return msgpack.NewEncoder(w).Encode(r)
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

func (r Report) writeText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "function\tdep\tindep\tunknown\tdep blocks\tindep blocks\tunreachable\tratio")
	for _, f := range r.Functions {
		s := f.Stats
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%.2f\n", f.Name, s.InputDepInstructions,
			s.InputIndepInstructions, s.UnknownInstructions, s.InputDepBlocks, s.InputIndepBlocks,
			s.UnreachableBlocks, f.InputDepRatio)
	}
	s := r.Total
	fmt.Fprintf(tw, "total\t%d\t%d\t%d\t%d\t%d\t%d\t\n", s.InputDepInstructions, s.InputIndepInstructions,
		s.UnknownInstructions, s.InputDepBlocks, s.InputIndepBlocks, s.UnreachableBlocks)
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "input dependent ratio: mean %.3f, standard deviation %.3f\n", r.MeanInputDepRatio,
		r.StdDevInputDepRatio)
	return err
}

// WriteReport writes the report in a new file of the reports directory of cfg, in the configured format. Returns
// the name of the file.
func WriteReport(r Report, cfg *config.Config) (string, error) {
	ext := cfg.ReportFormat
	if ext == "" {
		ext = config.DefaultReportFormat
	}
	f, err := os.CreateTemp(cfg.ReportsDir, "inputdep-*."+ext)
	if err != nil {
		return "", fmt.Errorf("could not create report file: %w", err)
	}
	defer f.Close()
	if err := r.Encode(f, ext); err != nil {
		return f.Name(), fmt.Errorf("could not write report: %w", err)
	}
	return f.Name(), nil
}
