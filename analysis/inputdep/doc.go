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
Package inputdep implements the input dependency analysis. It classifies every instruction of the analyzed functions
as input dependent, when its result may vary with the input of the program, or input independent, when it can be
computed from constants and the structure of the program alone.

Dependencies are [DepInfo] values. While a function is analyzed, a dependency may refer to formal arguments of the
function (it is then argument dependent) or be pending on other values of the function, typically values defined
later in a loop. [AnalyzeFunction] analyzes the blocks of a function in reverse postorder until the memory state at
the entry of each block is stable, then resolves the pending values ("reflection"). Dependencies on globals stay
pending until the whole program has been analyzed.

Calls are summarized: functions that are not analyzed get their summary from a [LibraryTable] of [LibFunctionInfo],
analyzed functions from their [FunctionResult]. [AnalyzeProgram] analyzes the functions of a program callees first,
iterates on recursive functions, and finalizes the results by binding arguments and globals to concrete
dependencies. The results are published in a [Registry].

Internal inconsistencies panic with an [*InvariantError]; [AnalyzeProgram] returns them as errors. Missing
information never fails the analysis: the affected values are input dependent.
*/
package inputdep
