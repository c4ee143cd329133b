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

import "regexp"

// CodeIdentifier identifies a code element that is treated specially by the analysis: a function whose result is
// input, or a global variable holding input. Empty fields match anything. Every non-empty field is interpreted as a
// regex if it compiles to one.
type CodeIdentifier struct {
	Package  string
	Method   string
	Receiver string
	Global   string
	Type     string
	// This will not be part of the yaml config
	computedRegexs *CodeIdentifierRegex
}

// CodeIdentifierRegex contains the compiled regexes of a CodeIdentifier
type CodeIdentifierRegex struct {
	packageRegex  *regexp.Regexp
	methodRegex   *regexp.Regexp
	receiverRegex *regexp.Regexp
	globalRegex   *regexp.Regexp
	typeRegex     *regexp.Regexp
}

// CompileRegexes compiles the strings in the code identifier into regexes. It compiles all identifiers into regexes
// or none.
func CompileRegexes(cid CodeIdentifier) CodeIdentifier {
	packageRegex, err := regexp.Compile(cid.Package)
	if err != nil {
		return cid
	}
	methodRegex, err := regexp.Compile(cid.Method)
	if err != nil {
		return cid
	}
	receiverRegex, err := regexp.Compile(cid.Receiver)
	if err != nil {
		return cid
	}
	globalRegex, err := regexp.Compile(cid.Global)
	if err != nil {
		return cid
	}
	typeRegex, err := regexp.Compile(cid.Type)
	if err != nil {
		return cid
	}
	cid.computedRegexs = &CodeIdentifierRegex{
		packageRegex,
		methodRegex,
		receiverRegex,
		globalRegex,
		typeRegex,
	}
	return cid
}

// equalOnNonEmptyFields returns true if each of the receiver's fields are either equal to the corresponding
// argument's field, or the argument's field is empty
func (cid *CodeIdentifier) equalOnNonEmptyFields(cidRef CodeIdentifier) bool {
	if cidRef.computedRegexs != nil {
		return (cidRef.computedRegexs.packageRegex.MatchString(cid.Package) || cidRef.Package == "") &&
			(cidRef.computedRegexs.methodRegex.MatchString(cid.Method) || cidRef.Method == "") &&
			(cidRef.computedRegexs.receiverRegex.MatchString(cid.Receiver) || cidRef.Receiver == "") &&
			(cidRef.computedRegexs.globalRegex.MatchString(cid.Global) || cidRef.Global == "") &&
			(cidRef.computedRegexs.typeRegex.MatchString(cid.Type) || cidRef.Type == "")
	}
	return (cid.Package == cidRef.Package || cidRef.Package == "") &&
		(cid.Method == cidRef.Method || cidRef.Method == "") &&
		(cid.Receiver == cidRef.Receiver || cidRef.Receiver == "") &&
		(cid.Global == cidRef.Global || cidRef.Global == "") &&
		(cid.Type == cidRef.Type || cidRef.Type == "")
}

// IsEmpty returns true if no field of the code identifier is set. An empty identifier matches everything.
func (cid CodeIdentifier) IsEmpty() bool {
	return cid.Package == "" && cid.Method == "" && cid.Receiver == "" && cid.Global == "" && cid.Type == ""
}

// ExistsCid is true if there is some x in a such that f(x) is true.
// O(len(a))
func ExistsCid(a []CodeIdentifier, f func(identifier CodeIdentifier) bool) bool {
	for _, x := range a {
		if x.IsEmpty() {
			continue
		}
		if f(x) {
			return true
		}
	}
	return false
}
