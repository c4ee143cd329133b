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

/*
Package config provides a simple way to manage configuration files.

Use [Load](filename) to load a configuration from a specific filename, or [Parse] to load it from bytes.

Use [SetGlobalConfig](filename) to set filename as the global config, and then [LoadGlobal]() to load the global config.

A config file should be in yaml format. The top-level fields can be any of the fields defined in the Config
struct type. The other fields are defined by the types of the fields of [Config] and nested struct types.
For example, a valid config file is as follows:

	options:
	  log-level: 4
	  pkg-filter: "github.com/example/.*"
	input-dependency:
	  callgraph: vta
	  library-summaries:
	    - summaries.yaml
	  input-sources:
	    - package: "github.com/example/io"
	      method: "Read.*"

# Identifying code elements

The config uses [CodeIdentifier] to identify specific code entities. For example, input sources are CodeIdentifiers
which identify specific functions in specific packages, and input globals identify package level variables.
An important feature of the code identifiers is that the string specifications are seen as regexes if they can be
compiled to regexes, otherwise they are strings.

# Unsound options

Setting entry-points-input to false makes the arguments of the functions without callers input independent. This is
only sound when the analyzed program is a closed program whose entry points receive no input through arguments.
*/
package config
