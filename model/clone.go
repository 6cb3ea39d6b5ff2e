package model

// Clone returns an independent copy of m's scalars and columns so the
// evaluator can write computed values into one copy while another is kept
// as a pristine snapshot (used by the validator to compare "stored" against
// "recomputed" without re-reading the source file). Included foreign
// documents are shared by reference: §9's design notes treat an included
// document as a read-only namespace, never mutated by a calculation run of
// the document that includes it.
func Clone(m *Model) *Model {
	out := NewModel()
	docCopies := map[string]*Document{}

	for _, doc := range m.Documents {
		docCopies[doc.Name] = cloneDocument(doc)
	}
	// Second pass: point each clone's Includes at sibling clones when the
	// included document is itself part of this model, else share the
	// original (it belongs to an independently-loaded namespace).
	for _, doc := range m.Documents {
		clone := docCopies[doc.Name]
		for alias, inc := range doc.Includes {
			if incClone, ok := docCopies[inc.Name]; ok {
				clone.Includes[alias] = incClone
			} else {
				clone.Includes[alias] = inc
			}
		}
		out.AddDocument(clone)
	}
	return out
}

func cloneDocument(doc *Document) *Document {
	clone := NewDocument(doc.Name, doc.Path)
	clone.Version = doc.Version
	for k, v := range doc.IncludePaths {
		clone.IncludePaths[k] = v
	}
	for _, s := range doc.Scalars {
		cp := *s
		clone.Scalars = append(clone.Scalars, &cp)
	}
	for _, t := range doc.Tables {
		clone.Tables = append(clone.Tables, cloneTable(t))
	}
	return clone
}

func cloneTable(t *Table) *Table {
	clone := &Table{Name: t.Name, RowCount: t.RowCount, Pos: t.Pos}
	for _, c := range t.Columns {
		cp := *c
		cp.Values = append([]Value(nil), c.Values...)
		clone.Columns = append(clone.Columns, &cp)
	}
	return clone
}
