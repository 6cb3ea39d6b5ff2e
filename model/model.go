package model

import (
	"fmt"

	"github.com/forgelang/forge/ast"
	"github.com/forgelang/forge/parser"
)

// ElementType is the declared element type of a Column (§3).
type ElementType int

const (
	ElemNumber ElementType = iota
	ElemText
	ElemBool
	ElemDate
)

// Pos records where an entity was authored, for error messages.
type Pos struct {
	Document string
	Line     int
}

// Scalar is a named value at a dotted path (§3).
type Scalar struct {
	Path    string // dotted path within its document, e.g. "pricing.tax_rate"
	Value   Value  // literal / prior-computed cache; zero Value if absent
	HasValue bool
	Formula string // formula text, empty if none
	Unit    Unit
	Pos     Pos
}

// Column is a named vector at a dotted path inside a table (§3).
type Column struct {
	Name    string
	Elem    ElementType
	Values  []Value // length == table row count after computation
	Formula string  // row-wise formula text, empty for literal columns
	Unit    Unit
	Pos     Pos
}

// Table is a named collection of columns sharing one row count (§3).
type Table struct {
	Name    string
	Columns []*Column
	RowCount int
	Pos     Pos
}

func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Document is a set of scalars and tables with an identity (§3).
type Document struct {
	Name    string // namespace name, used to qualify cross-document references
	Path    string // source file path
	Version string // _forge_version; the loader rejects versions newer than loader.SupportedVersionRange

	Scalars []*Scalar
	Tables  []*Table

	// Includes maps a local alias to the foreign document it resolves to.
	Includes map[string]*Document
	// IncludePaths preserves the authored alias -> path mapping for the
	// writer and the bridge.
	IncludePaths map[string]string
}

func NewDocument(name, path string) *Document {
	return &Document{
		Name:         name,
		Path:         path,
		Includes:     map[string]*Document{},
		IncludePaths: map[string]string{},
	}
}

func (d *Document) Scalar(path string) (*Scalar, bool) {
	for _, s := range d.Scalars {
		if s.Path == path {
			return s, true
		}
	}
	return nil, false
}

func (d *Document) Table(name string) (*Table, bool) {
	for _, t := range d.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Model is the multi-document model (§3): every loaded document, keyed by
// name, in load order.
type Model struct {
	Documents   []*Document
	documentIdx map[string]*Document
}

func NewModel() *Model {
	return &Model{documentIdx: map[string]*Document{}}
}

func (m *Model) AddDocument(d *Document) {
	m.Documents = append(m.Documents, d)
	m.documentIdx[d.Name] = d
}

func (m *Model) Document(name string) (*Document, bool) {
	d, ok := m.documentIdx[name]
	return d, ok
}

// CellID is a small stable integer handle assigned at load time (§9 design
// notes), used by the dependency graph and scheduler instead of pointer
// chasing.
type CellID int

// CellAddr is the human-readable qualified address of a cell, used in
// error messages and the public API.
type CellAddr struct {
	Document string
	Table    string // empty for a scalar
	Name     string // scalar path, or column name within Table
}

func (a CellAddr) String() string {
	if a.Table == "" {
		return a.Document + ":" + a.Name
	}
	return fmt.Sprintf("%s:%s.%s", a.Document, a.Table, a.Name)
}

// Cell is one addressable unit of computation: either a scalar or a
// table column, plus its parsed formula (nil for terminal cells).
type Cell struct {
	ID      CellID
	Addr    CellAddr
	Scalar  *Scalar // set iff this cell is a scalar
	Table   *Table  // set iff this cell is a column
	Column  *Column
	Formula *ast.Expr
}

// Registry assigns stable CellIDs to every formula-bearing and
// literal cell across a Model, at load time, per §9's design notes.
type Registry struct {
	cells   []*Cell
	byAddr  map[string]CellID
}

func NewRegistry() *Registry {
	return &Registry{byAddr: map[string]CellID{}}
}

func (r *Registry) register(addr CellAddr, scalar *Scalar, table *Table, col *Column, formula *ast.Expr) CellID {
	id := CellID(len(r.cells))
	r.cells = append(r.cells, &Cell{ID: id, Addr: addr, Scalar: scalar, Table: table, Column: col, Formula: formula})
	r.byAddr[addr.String()] = id
	return id
}

// Build walks every document in the model and registers one Cell per
// scalar and per column, in document order (for the scheduler's stable
// tie-breaking, §4.5).
func Build(m *Model) (*Registry, error) {
	r := NewRegistry()
	for _, doc := range m.Documents {
		for _, s := range doc.Scalars {
			var expr *ast.Expr
			if s.Formula != "" {
				e, err := parser.Parse(s.Formula)
				if err != nil {
					return nil, err
				}
				expr = e
			}
			r.register(CellAddr{Document: doc.Name, Name: s.Path}, s, nil, nil, expr)
		}
		for _, t := range doc.Tables {
			for _, c := range t.Columns {
				var expr *ast.Expr
				if c.Formula != "" {
					e, err := parser.Parse(c.Formula)
					if err != nil {
						return nil, err
					}
					expr = e
				}
				r.register(CellAddr{Document: doc.Name, Table: t.Name, Name: c.Name}, nil, t, c, expr)
			}
		}
	}
	return r, nil
}

func (r *Registry) Cells() []*Cell { return r.cells }

func (r *Registry) Cell(id CellID) *Cell { return r.cells[id] }

func (r *Registry) Lookup(addr CellAddr) (CellID, bool) {
	id, ok := r.byAddr[addr.String()]
	return id, ok
}

func (r *Registry) Len() int { return len(r.cells) }
