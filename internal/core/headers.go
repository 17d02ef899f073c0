package core

import "strings"

// IdentifierHeader names the column whose empty cells mark rows to skip.
const IdentifierHeader = "id"

// Column is one non-empty header of a page.
type Column struct {
	Index int        // position in the raw header line
	Name  string     // header text
	Field *FieldSpec // nil when no field of the record type has this name
}

// HeaderSet lists a page's non-empty headers in order. Data rows are
// aligned to Columns after filtering.
type HeaderSet struct {
	Columns []Column
	ID      int // index into Columns of the identifier column, -1 if none
}

// ResolveHeaders maps header cells to fields of rt by exact name. Empty
// headers are dropped. Repeated names all map to the same field, so the
// right-most column's value is the one that remains on the record.
func ResolveHeaders(cells []string, rt *RecordType) HeaderSet {
	hs := HeaderSet{
		Columns: make([]Column, 0, len(cells)),
		ID:      -1,
	}

	for i, name := range cells {
		if name == "" {
			continue
		}

		col := Column{Index: i, Name: name}
		if rt != nil {
			if f, ok := rt.Field(name); ok {
				col.Field = &f
			}
		}

		if hs.ID < 0 && strings.EqualFold(name, IdentifierHeader) {
			hs.ID = len(hs.Columns)
		}
		hs.Columns = append(hs.Columns, col)
	}

	return hs
}

// Unmapped returns the columns that match no field.
func (hs HeaderSet) Unmapped() []Column {
	var out []Column
	for _, c := range hs.Columns {
		if c.Field == nil {
			out = append(out, c)
		}
	}
	return out
}

