// Package bridge implements the spreadsheet bridge of §4.9: bidirectional
// translation between a Forge model and a binary spreadsheet workbook, via
// a name<->grid-address formula rewriter.
//
// The binary container itself is read and written with
// github.com/xuri/excelize/v2, a real ecosystem library for the OOXML
// format (see DESIGN.md for why this dependency is named rather than
// grounded in a retrieval-pack repo). Every other concern here (the
// rewriter, the allocation table, cross-document sheet namespacing) is
// original engine logic built on the same ast.Expr-walking idiom the
// analyser and evaluator already use.
package bridge

import (
	"context"

	"github.com/xuri/excelize/v2"

	"github.com/forgelang/forge/analyzer"
	"github.com/forgelang/forge/eval"
	"github.com/forgelang/forge/forgeerr"
	"github.com/forgelang/forge/model"
)

// Export writes m's computed state to an .xlsx workbook at path: one sheet
// per table, one scalars sheet per document, plus the hidden
// __forge_meta__ allocation sheet.
//
// Per Open Question (c), a cyclic model refuses export with a Cycle error
// before any sheet is written: eval.Run's own scheduling pass surfaces the
// cycle and aborts before any sheet is created, since spreadsheets only
// support circular references under iterative calculation, which this
// engine does not model.
func Export(ctx context.Context, m *model.Model, path string) error {
	reg, err := model.Build(m)
	if err != nil {
		return err
	}
	az := analyzer.New(m, reg)

	if _, err := eval.Run(ctx, m, eval.DefaultConfig()); err != nil {
		return err
	}

	alloc := Build(m, reg)

	f := excelize.NewFile()
	defer f.Close()

	for i, doc := range m.Documents {
		if err := ctx.Err(); err != nil {
			return forgeerr.Cancelled(err.Error())
		}
		prefix := ""
		if i > 0 {
			prefix = doc.Name + "_"
		}
		if len(doc.Scalars) > 0 {
			if err := exportScalarSheet(f, az, reg, alloc, doc, prefix+"Scalars"); err != nil {
				return err
			}
		}
		for _, t := range doc.Tables {
			if err := exportTableSheet(f, az, reg, alloc, doc, t, prefix+t.Name); err != nil {
				return err
			}
		}
	}

	if err := writeMeta(f, alloc); err != nil {
		return forgeerr.ImportExport("", "", err.Error())
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		// Sheet1 may already have been renamed away by the first real
		// sheet on some excelize versions; absence is not fatal.
		_ = err
	}

	if err := f.SaveAs(path); err != nil {
		return forgeerr.IO(path, err)
	}
	return nil
}

func exportScalarSheet(f *excelize.File, az *analyzer.Analyzer, reg *model.Registry, alloc *Allocation, doc *model.Document, sheet string) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return forgeerr.ImportExport(sheet, "", err.Error())
	}
	_ = f.SetCellValue(sheet, "A1", "Name")
	_ = f.SetCellValue(sheet, "B1", "Value")

	for _, s := range doc.Scalars {
		id, ok := reg.Lookup(model.CellAddr{Document: doc.Name, Name: s.Path})
		if !ok {
			continue
		}
		slot, ok := alloc.Slot(id)
		if !ok {
			continue
		}
		labelCell, _ := excelize.CoordinatesToCellName(1, slot.Row0)
		if err := f.SetCellValue(sheet, labelCell, s.Path); err != nil {
			return forgeerr.ImportExport(sheet, labelCell, err.Error())
		}
		valueCell := slot.CellAt(0)
		if s.Formula != "" {
			cell := reg.Cell(id)
			formula, err := ToGridFormula(alloc, az, doc, cell, -1)
			if err != nil {
				return err
			}
			if err := f.SetCellFormula(sheet, valueCell, formula); err != nil {
				return forgeerr.ImportExport(sheet, valueCell, err.Error())
			}
			continue
		}
		if err := setLiteral(f, sheet, valueCell, s.Value); err != nil {
			return err
		}
	}
	return nil
}

func exportTableSheet(f *excelize.File, az *analyzer.Analyzer, reg *model.Registry, alloc *Allocation, doc *model.Document, t *model.Table, sheet string) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return forgeerr.ImportExport(sheet, "", err.Error())
	}
	for ci, c := range t.Columns {
		id, ok := reg.Lookup(model.CellAddr{Document: doc.Name, Table: t.Name, Name: c.Name})
		if !ok {
			continue
		}
		slot, ok := alloc.Slot(id)
		if !ok {
			continue
		}
		headerCell, _ := excelize.CoordinatesToCellName(ci+1, 1)
		if err := f.SetCellValue(sheet, headerCell, c.Name); err != nil {
			return forgeerr.ImportExport(sheet, headerCell, err.Error())
		}

		cell := reg.Cell(id)
		for row := 0; row < slot.Rows; row++ {
			addr := slot.CellAt(row)
			if c.Formula != "" {
				formula, err := ToGridFormula(alloc, az, doc, cell, row)
				if err != nil {
					return err
				}
				if err := f.SetCellFormula(sheet, addr, formula); err != nil {
					return forgeerr.ImportExport(sheet, addr, err.Error())
				}
				continue
			}
			var v model.Value
			if row < len(c.Values) {
				v = c.Values[row]
			}
			if err := setLiteral(f, sheet, addr, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func setLiteral(f *excelize.File, sheet, cell string, v model.Value) error {
	var err error
	switch v.Kind {
	case model.KindNumber:
		err = f.SetCellValue(sheet, cell, v.Number)
	case model.KindBool:
		err = f.SetCellValue(sheet, cell, v.Bool)
	case model.KindText:
		err = f.SetCellValue(sheet, cell, v.Text)
	case model.KindError:
		err = f.SetCellValue(sheet, cell, "#ERROR: "+v.Err.Error())
	default:
		return nil
	}
	if err != nil {
		return forgeerr.ImportExport(sheet, cell, err.Error())
	}
	return nil
}
