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

import "fmt"

// InvariantError is the value of the panics raised when an internal invariant of the analysis is violated. Those are
// logic errors: the analysis of the program cannot continue. AnalyzeProgram recovers them and returns them as errors.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return "input dependency invariant violated: " + e.Msg
}

// violation panics with an *InvariantError
func violation(format string, args ...any) {
	panic(&InvariantError{Msg: fmt.Sprintf(format, args...)})
}

// recoverInvariant converts a panic with an *InvariantError into an error stored in err. Other panics are propagated.
func recoverInvariant(err *error) {
	if r := recover(); r != nil {
		if ie, ok := r.(*InvariantError); ok {
			*err = ie
			return
		}
		panic(r)
	}
}
