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

package summaries

import "github.com/awslabs/argot-inputdep/analysis/inputdep"

// otherSummaries are the summaries of common third-party packages
var otherSummaries = []FunctionSummary{
	readsArgs("gopkg.in/yaml.v2.Marshal"),
	readsArgs("gopkg.in/yaml.v2.Unmarshal"),
	readsArgs("gopkg.in/yaml.v3.Marshal"),
	readsArgs("gopkg.in/yaml.v3.Unmarshal"),
	readsArgs("github.com/aws/aws-sdk-go/aws.Bool"),
	readsArgs("github.com/aws/aws-sdk-go/aws.Int64"),
	readsArgs("github.com/aws/aws-sdk-go/aws.String"),
	readsArgs("github.com/aws/aws-sdk-go/aws.StringValue"),
	{Name: "golang.org/x/crypto/bcrypt.GenerateFromPassword", Return: inputDep()},
}

func inputDep() inputdep.LibArgDepInfo { return inputdep.LibArgDepInfo{Dependency: inputdep.InputDep} }
