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

// Package annotate writes the results of the input dependency analysis back into the source code, as directive
// comments on function declarations.
//
// A function whose instructions are all input independent gets a //inputdep:independent comment, and a function with
// at least one input dependent instruction gets //inputdep:dependent. The other comments of the declaration are kept.
package annotate

import (
	"fmt"
	"go/ast"
	"go/token"
	"io"
	"sort"
	"strings"

	"github.com/awslabs/argot-inputdep/analysis"
	"github.com/awslabs/argot-inputdep/analysis/inputdep"
	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
	"github.com/dave/dst/decorator/resolver/gopackages"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
)

const directivePrefix = "//inputdep:"

// Verdicts maps the position of function names to the directive written on their declaration.
type Verdicts map[analysis.DirectivePos]analysis.DirectiveKind

// NewVerdicts returns the verdicts of every named function analyzed in reg. Anonymous and synthetic functions have no
// declaration and are skipped.
func NewVerdicts(prog *ssa.Program, reg *inputdep.Registry) Verdicts {
	v := Verdicts{}
	for _, f := range reg.Functions() {
		if f.Parent() != nil || f.Synthetic != "" || f.Pos() == token.NoPos {
			continue
		}
		r, ok := reg.Lookup(f)
		if !ok {
			continue
		}
		v[analysis.NewDirectivePos(prog.Fset.Position(f.Pos()))] = verdictOf(r)
	}
	return v
}

func verdictOf(r inputdep.FunctionResult) analysis.DirectiveKind {
	for _, b := range r.Function().Blocks {
		if r.IsInputDependentBlock(b) {
			return analysis.DirectiveDependent
		}
	}
	return analysis.DirectiveIndependent
}

// Load loads, parses and decorates the packages matching patterns.
func Load(cfg *packages.Config, patterns ...string) ([]*decorator.Package, error) {
	pkgs, err := decorator.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("could not load packages: %w", err)
	}
	return pkgs, nil
}

// Change is a file whose declarations were annotated
type Change struct {
	Package  *decorator.Package
	File     *dst.File
	Filename string
}

// Annotate writes the verdicts on the function declarations of packages. It returns the files that changed, sorted
// by name.
func Annotate(packages []*decorator.Package, verdicts Verdicts) []Change {
	var changes []Change
	for _, pack := range packages {
		for _, dstFile := range pack.Syntax {
			if AnnotateFile(pack.Decorator, pack.Fset, dstFile, verdicts) > 0 {
				changes = append(changes, Change{
					Package:  pack,
					File:     dstFile,
					Filename: pack.Decorator.Filenames[dstFile],
				})
			}
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Filename < changes[j].Filename })
	return changes
}

// AnnotateFile writes the verdicts on the function declarations of file, which must have been decorated by d.
// It returns the number of declarations that were annotated.
func AnnotateFile(d *decorator.Decorator, fset *token.FileSet, file *dst.File, verdicts Verdicts) int {
	n := 0
	for _, decl := range file.Decls {
		funcDecl, ok := decl.(*dst.FuncDecl)
		if !ok {
			continue
		}
		astDecl, ok := d.Ast.Nodes[funcDecl].(*ast.FuncDecl)
		if !ok {
			continue
		}
		kind, ok := verdicts[analysis.NewDirectivePos(fset.Position(astDecl.Name.Pos()))]
		if !ok {
			continue
		}
		setDirective(&funcDecl.Decs.NodeDecs, kind)
		n++
	}
	return n
}

// setDirective replaces any verdict previously written in decs by kind.
func setDirective(decs *dst.NodeDecs, kind analysis.DirectiveKind) {
	var kept []string
	for _, c := range decs.Start.All() {
		if isVerdict(c) {
			continue
		}
		kept = append(kept, c)
	}
	decs.Start.Replace(kept...)
	decs.Start.Append(directivePrefix + string(kind))
}

func isVerdict(comment string) bool {
	after, found := strings.CutPrefix(comment, directivePrefix)
	if !found {
		return false
	}
	k := analysis.DirectiveKind(strings.TrimSpace(after))
	return k == analysis.DirectiveDependent || k == analysis.DirectiveIndependent
}

// Fprint writes the source of file to w. The file must have been decorated without an import resolver.
func Fprint(w io.Writer, file *dst.File) error {
	return decorator.NewRestorer().Fprint(w, file)
}

// Fprint writes the annotated source of the file to w
func (c Change) Fprint(w io.Writer) error {
	r := decorator.NewRestorerWithImports(c.Package.PkgPath, gopackages.New(c.Package.Dir))
	return r.Fprint(w, c.File)
}

// Save overwrites the files of the packages that changed with their annotated sources.
func Save(changes []Change) error {
	saved := map[*decorator.Package]bool{}
	for _, c := range changes {
		if saved[c.Package] {
			continue
		}
		saved[c.Package] = true
		if err := c.Package.Save(); err != nil {
			return fmt.Errorf("could not write the sources of %s: %w", c.Package.PkgPath, err)
		}
	}
	return nil
}
