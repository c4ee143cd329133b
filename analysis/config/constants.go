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

const (
	// DefaultMaxFixpointIterations is the default bound on the number of passes over the blocks of one function
	DefaultMaxFixpointIterations = 200
	// DefaultCallgraph is the call graph algorithm used when none is specified
	DefaultCallgraph = "cha"
	// DefaultReportFormat is the encoding of reports when none is specified
	DefaultReportFormat = "text"
)

// CallgraphKinds are the accepted values of the callgraph option
var CallgraphKinds = []string{"pointer", "static", "cha", "rta", "vta"}

// ReportFormats are the accepted values of the report-format option
var ReportFormats = []string{"text", "json", "yaml", "msgpack"}
