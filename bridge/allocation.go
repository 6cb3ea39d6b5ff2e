package bridge

import (
	"fmt"

	"github.com/forgelang/forge/model"
)

// Slot is one cell or column's grid allocation: the sheet it lives on, its
// column letter, and the row span its data occupies. A scalar has Rows==1;
// a table column has Rows==table row count, per §4.9's "deterministic
// sheet/cell allocation".
type Slot struct {
	Addr  model.CellAddr
	Sheet string
	Col   string
	Row0  int // first data row (1-based)
	Rows  int
}

// CellAt returns the address of row's element (row is 0-based within the
// slot), e.g. "B2" for row 0 of a slot starting at Row0==2.
func (s Slot) CellAt(row int) string {
	return fmt.Sprintf("%s%d", s.Col, s.Row0+row)
}

// RangeAddr returns the full-span address, "B2:B101" for a multi-row slot
// or just "B5" for a one-row slot (scalars, or a single-row table).
func (s Slot) RangeAddr() string {
	if s.Rows <= 1 {
		return s.CellAt(0)
	}
	return s.CellAt(0) + ":" + s.CellAt(s.Rows-1)
}

// Allocation is the bridge's name<->grid-address map, built once per export
// (forward, from a Model+Registry) or reconstructed once per import (in
// reverse, from the persisted __forge_meta__ sheet).
type Allocation struct {
	bySlot map[model.CellID]Slot

	// Reverse indices, built by allocationFromSlots for the importer.
	single map[string]singleHit // "Sheet!B2" -> hit
	ranged map[string]model.CellAddr // "Sheet!B2:B101" -> column address
}

type singleHit struct {
	Addr model.CellAddr
	Row  int // 0-based row within the column; -1 for a scalar
}

func newAllocation() *Allocation {
	return &Allocation{bySlot: map[model.CellID]Slot{}}
}

// Build assigns every registered cell a deterministic grid Slot, per §4.9:
// one sheet per table (namespaced by document for anything beyond the
// primary document), one scalars sheet per document, columns allocated
// left to right in definition order, data starting at row 2 beneath a
// header row.
func Build(m *model.Model, reg *model.Registry) *Allocation {
	a := newAllocation()
	for _, s := range computeSlots(m) {
		if id, ok := reg.Lookup(s.Addr); ok {
			a.bySlot[id] = s
		}
	}
	return a
}

// computeSlots derives the same deterministic sheet/column/row layout Build
// uses, but from model structure alone (document/table/scalar/column
// identity and row counts) rather than from a Registry's CellIDs. This lets
// the importer's header-layout fallback (readMeta found no persisted
// allocation) re-derive the exporter's exact layout from a model it just
// reconstructed from sheet headers, without needing CellIDs at all.
func computeSlots(m *model.Model) []Slot {
	var slots []Slot
	for i, doc := range m.Documents {
		prefix := ""
		if i > 0 {
			prefix = doc.Name + "_"
		}
		scalarSheet := prefix + "Scalars"
		row := 2
		for _, s := range doc.Scalars {
			slots = append(slots, Slot{
				Addr:  model.CellAddr{Document: doc.Name, Name: s.Path},
				Sheet: scalarSheet, Col: "B", Row0: row, Rows: 1,
			})
			row++
		}
		for _, t := range doc.Tables {
			sheet := prefix + t.Name
			for ci, c := range t.Columns {
				rows := t.RowCount
				if rows == 0 {
					rows = 1
				}
				slots = append(slots, Slot{
					Addr:  model.CellAddr{Document: doc.Name, Table: t.Name, Name: c.Name},
					Sheet: sheet, Col: columnLetter(ci + 1), Row0: 2, Rows: rows,
				})
			}
		}
	}
	return slots
}

// Slot returns id's grid allocation.
func (a *Allocation) Slot(id model.CellID) (Slot, bool) {
	s, ok := a.bySlot[id]
	return s, ok
}

// Slots returns every allocated slot, for the meta sheet writer.
func (a *Allocation) Slots() []Slot {
	out := make([]Slot, 0, len(a.bySlot))
	for _, s := range a.bySlot {
		out = append(out, s)
	}
	return out
}

// allocationFromSlots reconstructs an Allocation for import, in reverse:
// only the address->name indices are populated, since an importer builds
// its Registry (and CellIDs) after the model exists, not before.
func allocationFromSlots(slots []Slot) *Allocation {
	a := newAllocation()
	a.single = map[string]singleHit{}
	a.ranged = map[string]model.CellAddr{}
	for _, s := range slots {
		a.ranged[s.Sheet+"!"+s.RangeAddr()] = s.Addr
		if s.Addr.Table == "" {
			a.single[s.Sheet+"!"+s.CellAt(0)] = singleHit{Addr: s.Addr, Row: -1}
			continue
		}
		for r := 0; r < s.Rows; r++ {
			a.single[s.Sheet+"!"+s.CellAt(r)] = singleHit{Addr: s.Addr, Row: r}
		}
	}
	return a
}

func (a *Allocation) lookupSingle(sheet, addr string) (singleHit, bool) {
	h, ok := a.single[sheet+"!"+addr]
	return h, ok
}

func (a *Allocation) lookupRange(sheet, rangeAddr string) (model.CellAddr, bool) {
	addr, ok := a.ranged[sheet+"!"+rangeAddr]
	return addr, ok
}

// columnLetter converts a 1-based column index into Excel-style column
// letters (1 -> A, 26 -> Z, 27 -> AA).
func columnLetter(n int) string {
	var buf [8]byte
	pos := len(buf)
	for n > 0 {
		n--
		pos--
		buf[pos] = byte('A' + n%26)
		n /= 26
	}
	return string(buf[pos:])
}
