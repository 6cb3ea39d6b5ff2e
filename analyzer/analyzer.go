// Package analyzer implements the dependency analyser of §4.4: for every
// formula-bearing cell, walk its expression tree and emit the set of
// cells it reads.
package analyzer

import (
	"strings"

	"github.com/forgelang/forge/ast"
	"github.com/forgelang/forge/forgeerr"
	"github.com/forgelang/forge/model"
)

// Graph is the dependency adjacency list: cell -> cells it reads. Produced
// for the scheduler (§4.5).
type Graph struct {
	Edges map[model.CellID][]model.CellID
}

// Analyzer walks every formula in a Model's Registry to build the
// dependency Graph.
type Analyzer struct {
	Model    *model.Model
	Registry *model.Registry
}

func New(m *model.Model, reg *model.Registry) *Analyzer {
	return &Analyzer{Model: m, Registry: reg}
}

// Analyze computes the dependency graph. Per §7's policy, the first
// unresolved reference short-circuits the run.
func (a *Analyzer) Analyze() (*Graph, error) {
	g := &Graph{Edges: map[model.CellID][]model.CellID{}}
	for _, cell := range a.Registry.Cells() {
		if cell.Formula == nil {
			continue
		}
		refs, err := a.references(cell)
		if err != nil {
			return nil, err
		}
		g.Edges[cell.ID] = refs
	}
	return g, nil
}

func (a *Analyzer) references(cell *model.Cell) ([]model.CellID, error) {
	doc, _ := a.Model.Document(cell.Addr.Document)
	var refs []model.CellID
	var firstErr error

	ast.Walk(cell.Formula, func(e *ast.Expr) {
		if firstErr != nil || e.Kind != ast.Ref {
			return
		}
		id, err := a.resolve(doc, cell, e)
		if err != nil {
			firstErr = err
			return
		}
		refs = append(refs, id)
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return refs, nil
}

// Resolve exposes resolve to the evaluator (§4.6), which re-resolves every
// reference it encounters rather than consulting the dependency graph: the
// graph only records cell identity, not which element of a row-wise column
// a reference is bound to.
func (a *Analyzer) Resolve(doc *model.Document, cell *model.Cell, ref *ast.Expr) (model.CellID, error) {
	return a.resolve(doc, cell, ref)
}

// resolve implements §4.4's resolution order: unqualified names resolve
// same-table columns first, then document scalars; table.column resolves
// within the current document; @alias.path resolves through the include
// map into the foreign document's namespace.
func (a *Analyzer) resolve(doc *model.Document, cell *model.Cell, ref *ast.Expr) (model.CellID, error) {
	formula := cell.Formula.String()
	location := cell.Addr.String()

	switch ref.RefForm {
	case ast.RefCrossDoc:
		if len(ref.RefParts) < 2 {
			return 0, forgeerr.Reference(formula, location, ref.String(), "", nil)
		}
		alias := ref.RefParts[0]
		foreign, ok := doc.Includes[alias]
		if !ok {
			candidates := aliasNames(doc)
			return 0, forgeerr.Reference(formula, location, alias, Suggest(alias, candidates), candidates)
		}
		tail := ref.RefParts[1:]
		return a.resolveInDocument(foreign, nil, tail, formula, location)

	case ast.RefTableColumn:
		return a.resolveInDocument(doc, nil, ref.RefParts, formula, location)

	default: // RefName
		return a.resolveUnqualified(doc, cell, ref.RefParts[0], formula, location)
	}
}

func (a *Analyzer) resolveUnqualified(doc *model.Document, cell *model.Cell, name string, formula, location string) (model.CellID, error) {
	if cell.Table != nil {
		if col, ok := cell.Table.Column(name); ok {
			id, _ := a.Registry.Lookup(model.CellAddr{Document: doc.Name, Table: cell.Table.Name, Name: col.Name})
			return id, nil
		}
	}
	if s, ok := doc.Scalar(name); ok {
		id, _ := a.Registry.Lookup(model.CellAddr{Document: doc.Name, Name: s.Path})
		return id, nil
	}
	candidates := candidateNames(doc, cell.Table)
	return 0, forgeerr.Reference(formula, location, name, Suggest(name, candidates), candidates)
}

// resolveInDocument resolves a dotted path (table.column, or, within a
// foreign namespace, a bare scalar path possibly containing dots) absolute
// within doc.
func (a *Analyzer) resolveInDocument(doc *model.Document, _ *model.Table, parts []string, formula, location string) (model.CellID, error) {
	if len(parts) >= 2 {
		tableName := parts[0]
		colName := strings.Join(parts[1:], ".")
		if t, ok := doc.Table(tableName); ok {
			if _, ok := t.Column(colName); ok {
				id, _ := a.Registry.Lookup(model.CellAddr{Document: doc.Name, Table: tableName, Name: colName})
				return id, nil
			}
		}
	}
	full := strings.Join(parts, ".")
	if s, ok := doc.Scalar(full); ok {
		id, _ := a.Registry.Lookup(model.CellAddr{Document: doc.Name, Name: s.Path})
		return id, nil
	}
	candidates := candidateNames(doc, nil)
	return 0, forgeerr.Reference(formula, location, full, Suggest(full, candidates), candidates)
}

func candidateNames(doc *model.Document, table *model.Table) []string {
	var out []string
	if table != nil {
		for _, c := range table.Columns {
			out = append(out, c.Name)
		}
	}
	for _, s := range doc.Scalars {
		out = append(out, s.Path)
	}
	for _, t := range doc.Tables {
		for _, c := range t.Columns {
			out = append(out, t.Name+"."+c.Name)
		}
	}
	return out
}

func aliasNames(doc *model.Document) []string {
	var out []string
	for alias := range doc.Includes {
		out = append(out, alias)
	}
	return out
}
