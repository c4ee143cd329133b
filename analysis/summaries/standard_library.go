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

// stdPackages is the set of the standard library packages
var stdPackages = map[string]bool{
	"archive/tar":              true,
	"archive/zip":              true,
	"bufio":                    true,
	"builtin":                  true,
	"bytes":                    true,
	"compress/bzip2":           true,
	"compress/flate":           true,
	"compress/gzip":            true,
	"compress/lzw":             true,
	"compress/zlib":            true,
	"container":                true,
	"container/heap":           true,
	"container/list":           true,
	"context":                  true,
	"crypto":                   true,
	"crypto/aes":               true,
	"crypto/cipher":            true,
	"crypto/internal":          true,
	"crypto/tls":               true,
	"crypto/x509":              true,
	"database":                 true,
	"debug":                    true,
	"embed":                    true,
	"encoding":                 true,
	"encoding/asn1":            true,
	"encoding/gob":             true,
	"encoding/json":            true,
	"encoding/xml":             true,
	"errors":                   true,
	"expvar":                   true,
	"flag":                     true,
	"fmt":                      true,
	"go":                       true,
	"hash":                     true,
	"html":                     true,
	"image":                    true,
	"image/color":              true,
	"index":                    true,
	"io":                       true,
	"io/fs":                    true,
	"log":                      true,
	"math":                     true,
	"math/big":                 true,
	"math/bits":                true,
	"math/cmplx":               true,
	"math/rand":                true,
	"mime":                     true,
	"net":                      true,
	"net/http":                 true,
	"net/netip":                true,
	"net/textproto":            true,
	"os":                       true,
	"os/exec":                  true,
	"path":                     true,
	"path/filepath":            true,
	"plugin":                   true,
	"reflect":                  true,
	"regexp":                   true,
	"regexp/syntax":            true,
	"runtime":                  true,
	"sort":                     true,
	"strconv":                  true,
	"strings":                  true,
	"sync":                     true,
	"sync/atomic":              true,
	"syscall":                  true,
	"syscall/js":               true,
	"testing":                  true,
	"text":                     true,
	"time":                     true,
	"unicode":                  true,
	"unicode/utf8":             true,
	"unsafe":                   true,
	"internal":                 true,
	"internal/abi":             true,
	"internal/buildcfg":        true,
	"internal/bytealg":         true,
	"internal/cfg":             true,
	"internal/cpu":             true,
	"internal/diff":            true,
	"internal/fmtsort":         true,
	"internal/fuzz":            true,
	"internal/goarch":          true,
	"internal/godebug":         true,
	"internal/goexperiment":    true,
	"internal/goos":            true,
	"internal/goroot":          true,
	"internal/intern":          true,
	"internal/itoa":            true,
	"internal/lazyregexp":      true,
	"internal/lazytemplate":    true,
	"internal/nettrace":        true,
	"internal/obscuretestdata": true,
	"internal/oserror":         true,
	"internal/poll":            true,
	"internal/race":            true,
	"internal/reflectlite":     true,
	"internal/syscall":         true,
	"internal/syscall/execenv": true,
	"internal/syscall/unix":    true,
	"internal/syscall/windows": true,
	"internal/testlog":         true,
	"internal/unsafeheader":    true,
}

func indep() inputdep.LibArgDepInfo { return inputdep.LibArgDepInfo{Dependency: inputdep.InputIndep} }

func argDep(args ...int) inputdep.LibArgDepInfo {
	return inputdep.LibArgDepInfo{Dependency: inputdep.InputArgumentDep, Args: args}
}

func allArgs() inputdep.LibArgDepInfo { return argDep(inputdep.AllArguments) }

// writesReceiver summarizes methods that update their receiver with their arguments and return a result computed from
// both
func writesReceiver(name string) FunctionSummary {
	return FunctionSummary{Name: name, Args: map[int]inputdep.LibArgDepInfo{0: allArgs()}, Return: allArgs()}
}

func readsArgs(name string) FunctionSummary { return FunctionSummary{Name: name, Return: allArgs()} }

func independent(name string) FunctionSummary { return FunctionSummary{Name: name, Return: indep()} }

// stdPurePackages are the packages whose package-level functions only compute their results from their arguments
var stdPurePackages = []string{
	"bytes",
	"encoding/hex",
	"html",
	"math",
	"math/bits",
	"math/cmplx",
	"path",
	"strconv",
	"strings",
	"unicode",
	"unicode/utf16",
	"unicode/utf8",
}

// stdInputFunctions are the functions of the standard library that read the environment of the program
var stdInputFunctions = []string{
	"(*bufio.Reader).ReadByte",
	"(*bufio.Reader).ReadBytes",
	"(*bufio.Reader).ReadLine",
	"(*bufio.Reader).ReadRune",
	"(*bufio.Reader).ReadString",
	"(*bufio.Scanner).Bytes",
	"(*bufio.Scanner).Scan",
	"(*bufio.Scanner).Text",
	"(*net/http.Client).Do",
	"(*os.File).Read",
	"(*os.File).ReadAt",
	"(*os.File).ReadDir",
	"(*os.File).Readdirnames",
	"(*os.File).Stat",
	"(*os/exec.Cmd).CombinedOutput",
	"(*os/exec.Cmd).Output",
	"crypto/rand.Read",
	"flag.Arg",
	"flag.Args",
	"flag.NArg",
	"fmt.Fscan",
	"fmt.Fscanf",
	"fmt.Fscanln",
	"fmt.Scan",
	"fmt.Scanf",
	"fmt.Scanln",
	"io.ReadAll",
	"io.ReadFull",
	"math/rand.Float64",
	"math/rand.Int",
	"math/rand.Int63",
	"math/rand.Intn",
	"net/http.Get",
	"net/http.Post",
	"os.Environ",
	"os.Getenv",
	"os.Getpid",
	"os.Getwd",
	"os.Hostname",
	"os.LookupEnv",
	"os.Open",
	"os.OpenFile",
	"os.ReadDir",
	"os.ReadFile",
	"os.Stat",
	"path/filepath.Abs",
	"runtime.NumCPU",
	"runtime.NumGoroutine",
	"time.Now",
	"time.Since",
	"time.Until",
}

// stdInputGlobals are the globals of the standard library that hold input
var stdInputGlobals = []string{
	"flag.CommandLine",
	"os.Args",
	"os.Stdin",
}

// stdSummaries are the summaries of the standard library functions that are neither input sources nor in pure
// packages
var stdSummaries = []FunctionSummary{
	// formatting: the number of bytes written only depends on the arguments, write errors are ignored
	readsArgs("errors.Is"),
	readsArgs("errors.Join"),
	readsArgs("errors.New"),
	readsArgs("errors.Unwrap"),
	readsArgs("fmt.Errorf"),
	readsArgs("fmt.Print"),
	readsArgs("fmt.Printf"),
	readsArgs("fmt.Println"),
	readsArgs("fmt.Sprint"),
	readsArgs("fmt.Sprintf"),
	readsArgs("fmt.Sprintln"),
	{Name: "fmt.Sscan", Args: map[int]inputdep.LibArgDepInfo{1: argDep(0)}, Return: argDep(0)},
	{Name: "fmt.Sscanf", Args: map[int]inputdep.LibArgDepInfo{2: argDep(0, 1)}, Return: argDep(0, 1)},

	// buffers and builders
	writesReceiver("(*bytes.Buffer).Write"),
	writesReceiver("(*bytes.Buffer).WriteByte"),
	writesReceiver("(*bytes.Buffer).WriteRune"),
	writesReceiver("(*bytes.Buffer).WriteString"),
	readsArgs("(*bytes.Buffer).Bytes"),
	readsArgs("(*bytes.Buffer).Len"),
	readsArgs("(*bytes.Buffer).String"),
	writesReceiver("(*strings.Builder).Write"),
	writesReceiver("(*strings.Builder).WriteByte"),
	writesReceiver("(*strings.Builder).WriteRune"),
	writesReceiver("(*strings.Builder).WriteString"),
	independent("(*strings.Builder).Grow"),
	readsArgs("(*strings.Builder).Len"),
	readsArgs("(*strings.Builder).String"),
	{Name: "(*strings.Builder).Reset", Args: map[int]inputdep.LibArgDepInfo{0: indep()}, Return: indep()},

	// encoding
	readsArgs("encoding/json.Marshal"),
	readsArgs("encoding/json.MarshalIndent"),
	readsArgs("encoding/json.Valid"),
	readsArgs("encoding/json.Unmarshal"),
	readsArgs("(*encoding/base64.Encoding).EncodeToString"),
	readsArgs("(*encoding/base64.Encoding).DecodeString"),

	// paths that do not read the file system
	readsArgs("path/filepath.Base"),
	readsArgs("path/filepath.Clean"),
	readsArgs("path/filepath.Dir"),
	readsArgs("path/filepath.Ext"),
	readsArgs("path/filepath.Join"),
	readsArgs("path/filepath.Rel"),
	readsArgs("path/filepath.Split"),

	// sorting in place
	{Name: "sort.Float64s", Args: map[int]inputdep.LibArgDepInfo{0: argDep(0)}, Return: indep()},
	{Name: "sort.Ints", Args: map[int]inputdep.LibArgDepInfo{0: argDep(0)}, Return: indep()},
	{Name: "sort.Strings", Args: map[int]inputdep.LibArgDepInfo{0: argDep(0)}, Return: indep()},
	readsArgs("sort.SearchInts"),
	readsArgs("sort.SearchStrings"),

	// regular expressions
	readsArgs("regexp.MustCompile"),
	readsArgs("regexp.QuoteMeta"),
	readsArgs("(*regexp.Regexp).FindAllString"),
	readsArgs("(*regexp.Regexp).FindString"),
	readsArgs("(*regexp.Regexp).FindStringSubmatch"),
	readsArgs("(*regexp.Regexp).MatchString"),
	readsArgs("(*regexp.Regexp).ReplaceAllString"),

	// synchronization does not change values
	independent("(*sync.Mutex).Lock"),
	independent("(*sync.Mutex).Unlock"),
	independent("(*sync.RWMutex).Lock"),
	independent("(*sync.RWMutex).RLock"),
	independent("(*sync.RWMutex).RUnlock"),
	independent("(*sync.RWMutex).Unlock"),
	independent("(*sync.WaitGroup).Add"),
	independent("(*sync.WaitGroup).Done"),
	independent("(*sync.WaitGroup).Wait"),

	// durations
	readsArgs("(time.Duration).Seconds"),
	readsArgs("(time.Duration).String"),
	independent("time.Sleep"),
}
