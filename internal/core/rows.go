package core

// Row is a data line aligned to a HeaderSet.
type Row struct {
	Line  int      // 1-based line number in the page
	Cells []string // one cell per HeaderSet column
}

// FilterRows splits data lines and aligns them to hs, dropping cells under
// empty headers. A cell missing from a short line reads as empty. When hs
// has an identifier column, rows with an empty identifier are skipped.
// firstLine is the page line number of lines[0].
func FilterRows(lines []string, hs HeaderSet, delim rune, firstLine int) (rows []Row, skipped int) {
	rows = make([]Row, 0, len(lines))

	for i, line := range lines {
		raw := SplitLine(line, delim)

		cells := make([]string, len(hs.Columns))
		for j, c := range hs.Columns {
			if c.Index < len(raw) {
				cells[j] = raw[c.Index]
			}
		}

		if hs.ID >= 0 && cells[hs.ID] == "" {
			skipped++
			continue
		}

		rows = append(rows, Row{Line: firstLine + i, Cells: cells})
	}

	return rows, skipped
}
