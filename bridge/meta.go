package bridge

import (
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/forgelang/forge/model"
)

// metaSheet is the hidden allocation-table sheet of §4.9/§6: "A hidden
// metadata sheet (__forge_meta__) records the name<->address mapping to
// ensure lossless round-trips."
const metaSheet = "__forge_meta__"

var metaHeader = []string{"Document", "Table", "Name", "Sheet", "Col", "Row0", "Rows"}

// writeMeta persists alloc's slots onto the hidden metadata sheet.
func writeMeta(f *excelize.File, alloc *Allocation) error {
	idx, err := f.NewSheet(metaSheet)
	if err != nil {
		return err
	}
	for i, h := range metaHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(metaSheet, cell, h); err != nil {
			return err
		}
	}
	for i, s := range alloc.Slots() {
		row := i + 2
		values := []interface{}{s.Addr.Document, s.Addr.Table, s.Addr.Name, s.Sheet, s.Col, s.Row0, s.Rows}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(metaSheet, cell, v); err != nil {
				return err
			}
		}
	}
	if err := f.SetSheetVisible(metaSheet, false); err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	return nil
}

// readMeta reconstructs an Allocation from the hidden metadata sheet. The
// second return value reports whether the sheet was present at all: its
// absence is not an error, only a signal to fall back to header-layout
// heuristics (§4.9: "or, absent it, heuristics that match header labels").
func readMeta(f *excelize.File) (*Allocation, bool, error) {
	rows, err := f.GetRows(metaSheet)
	if err != nil || len(rows) < 2 {
		return nil, false, nil
	}
	slots := make([]Slot, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < len(metaHeader) {
			continue
		}
		row0, _ := strconv.Atoi(row[5])
		rowN, _ := strconv.Atoi(row[6])
		slots = append(slots, Slot{
			Addr:  model.CellAddr{Document: row[0], Table: row[1], Name: row[2]},
			Sheet: row[3],
			Col:   row[4],
			Row0:  row0,
			Rows:  rowN,
		})
	}
	return allocationFromSlots(slots), true, nil
}
