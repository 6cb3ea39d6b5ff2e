package bridge

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/forgelang/forge/forgeerr"
	"github.com/forgelang/forge/model"
)

// ImportOptions controls how Import groups the workbook's sheets back into
// documents, per §4.9/§6's CLI surface (`--split-files`, `--multi-doc`).
type ImportOptions struct {
	// SplitFiles reconstructs one model.Document per table sheet instead
	// of one document holding every table, mirroring `--split-files`.
	SplitFiles bool
	// MultiDoc is accepted for API parity with the CLI's `--multi-doc`
	// flag; Import itself always returns one *model.Model; the adapter
	// that serialises it to a document-separator-delimited file is
	// outside the core's scope (§6).
	MultiDoc bool
}

type pendingFormula struct {
	sheet string
	cell  string
	set   func(string)
}

// Import reads an .xlsx workbook written by Export (or one a spreadsheet
// user has hand-edited) back into a *model.Model, per §4.9: "reads sheets
// in reverse: deduces tables and columns from header layout, reads stored
// formulas, reverse-translates grid-address formulas back into name-form."
func Import(ctx context.Context, path string, opts ImportOptions) (*model.Model, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, forgeerr.IO(path, err)
	}
	defer f.Close()

	alloc, hasMeta, err := readMeta(f)
	if err != nil {
		return nil, forgeerr.IO(path, err)
	}

	docName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m := model.NewModel()
	var pending []pendingFormula

	sheets := f.GetSheetList()
	docs := map[string]*model.Document{}
	docFor := func(sheet string) *model.Document {
		name := docName
		if opts.SplitFiles {
			name = sheet
		}
		if d, ok := docs[name]; ok {
			return d
		}
		d := model.NewDocument(name, path)
		docs[name] = d
		m.AddDocument(d)
		return d
	}

	for _, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, forgeerr.Cancelled(err.Error())
		}
		if sheet == metaSheet {
			continue
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, forgeerr.ImportExport(sheet, "", err.Error())
		}
		if len(rows) == 0 {
			continue
		}
		doc := docFor(sheet)
		if isScalarSheet(sheet) {
			if err := importScalarSheet(f, sheet, doc, &pending); err != nil {
				return nil, err
			}
			continue
		}
		if err := importTableSheet(f, sheet, rows, doc, &pending); err != nil {
			return nil, err
		}
	}

	if !hasMeta {
		alloc = allocationFromSlots(computeSlots(m))
	}
	for _, p := range pending {
		raw, err := f.GetCellFormula(p.sheet, p.cell)
		if err != nil {
			return nil, forgeerr.ImportExport(p.sheet, p.cell, err.Error())
		}
		named, err := FromGridFormula(alloc, p.sheet, raw)
		if err != nil {
			return nil, err
		}
		p.set(named)
	}
	return m, nil
}

func isScalarSheet(sheet string) bool {
	return sheet == "Scalars" || strings.HasSuffix(sheet, "_Scalars")
}

func importScalarSheet(f *excelize.File, sheet string, doc *model.Document, pending *[]pendingFormula) error {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return forgeerr.ImportExport(sheet, "", err.Error())
	}
	for i, row := range rows {
		gridRow := i + 1
		if gridRow == 1 || len(row) < 1 {
			continue // header row
		}
		name := row[0]
		if name == "" {
			continue
		}
		s := &model.Scalar{Path: name}
		doc.Scalars = append(doc.Scalars, s)

		cell := "B" + strconv.Itoa(gridRow)
		formula, err := f.GetCellFormula(sheet, cell)
		if err != nil {
			return forgeerr.ImportExport(sheet, cell, err.Error())
		}
		if formula != "" {
			scalar := s
			*pending = append(*pending, pendingFormula{sheet: sheet, cell: cell, set: func(text string) {
				scalar.Formula = text
			}})
			continue
		}
		var raw string
		if len(row) > 1 {
			raw = row[1]
		}
		s.Value = parseLiteral(raw)
		s.HasValue = true
	}
	return nil
}

func importTableSheet(f *excelize.File, sheet string, rows [][]string, doc *model.Document, pending *[]pendingFormula) error {
	if len(rows) == 0 {
		return nil
	}
	header := rows[0]
	t := &model.Table{Name: sheet}
	cols := make([]*model.Column, len(header))
	for i, name := range header {
		c := &model.Column{Name: name}
		cols[i] = c
		t.Columns = append(t.Columns, c)
	}
	t.RowCount = len(rows) - 1
	doc.Tables = append(doc.Tables, t)

	for ci, c := range cols {
		colLetter := columnLetter(ci + 1)
		c.Values = make([]model.Value, t.RowCount)
		for r := 0; r < t.RowCount; r++ {
			gridRow := r + 2
			cell := colLetter + strconv.Itoa(gridRow)
			formula, err := f.GetCellFormula(sheet, cell)
			if err != nil {
				return forgeerr.ImportExport(sheet, cell, err.Error())
			}
			if formula != "" {
				col := c
				*pending = append(*pending, pendingFormula{sheet: sheet, cell: cell, set: func(text string) {
					col.Formula = text
				}})
				continue
			}
			var raw string
			if r+1 < len(rows) && ci < len(rows[r+1]) {
				raw = rows[r+1][ci]
			}
			c.Values[r] = parseLiteral(raw)
		}
	}
	return nil
}

func parseLiteral(raw string) model.Value {
	if raw == "" {
		return model.Value{}
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return model.Num(f)
	}
	switch strings.ToUpper(raw) {
	case "TRUE":
		return model.Boolean(true)
	case "FALSE":
		return model.Boolean(false)
	}
	return model.Str(raw)
}
