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

package main

import (
	"fmt"
	"os"
	"strings"
)

//inputdep:input
func readConfig() string { return "fixed" }

func shout(s string) string { return strings.ToUpper(s) + "!" }

//inputdep:independent
func trim(s string) string { return strings.TrimSpace(s) }

func main() {
	name := os.Getenv("NAME")
	fmt.Println(shout(name))
	fmt.Println(shout("constant"))
	fmt.Println(trim(name))
	cfg := readConfig()
	fmt.Println(len(cfg))
}
