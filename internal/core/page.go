package core

import (
	"context"
	"fmt"
)

// pageReporter receives progress from one page import. Each page is three
// steps: fetch, parse, populate.
type pageReporter interface {
	step(phase RunPhase, status string)
	done()
	warn(w Warning)
}

// PageImporter runs the fetch, parse and populate steps for one target.
type PageImporter struct {
	fetcher Fetcher
	delim   rune
}

// NewPageImporter creates a page importer reading comma-separated pages.
func NewPageImporter(fetcher Fetcher) *PageImporter {
	return &PageImporter{fetcher: fetcher, delim: DefaultDelimiter}
}

// ImportPage fills t's destination from its page. The target must already
// have passed Validate. A fetch failure, or a single-object target without
// rows, is returned as a *TargetError and leaves the destination untouched.
func (p *PageImporter) ImportPage(ctx context.Context, documentID string, t Target, rep pageReporter) (PageResult, error) {
	res := PageResult{Field: t.Field, Page: t.Page, Kind: t.Kind}

	// Step 1: fetch
	rep.step(PhaseFetching, fmt.Sprintf("Downloading page '%s'...", t.Page))
	page, err := p.fetcher.Fetch(ctx, PageSource{DocumentID: documentID, Page: t.Page})
	if err != nil {
		return res, &TargetError{Field: t.Field, Page: t.Page, Err: err}
	}
	res.Bytes = page.Bytes
	rep.done()

	// Step 2: headers and rows
	rep.step(PhaseParsing, "Analysing headers...")
	lines := splitLines(page.Text)
	var header, data []string
	if len(lines) > 0 {
		header = SplitLine(lines[0], p.delim)
		data = lines[1:]
	}

	hs := ResolveHeaders(header, t.Record)
	for _, c := range hs.Unmapped() {
		rep.warn(Warning{
			Page:    t.Page,
			Line:    1,
			Column:  c.Name,
			Message: fmt.Sprintf("header '%s' matches no field in %s", c.Name, t.Record.Name()),
		})
	}

	rows, skipped := FilterRows(data, hs, p.delim, 2)
	if t.Kind == KindSingle && len(rows) > 1 {
		rows = rows[:1]
	}
	res.Skipped = skipped
	rep.done()

	// Step 3: populate
	rep.step(PhasePopulating, fmt.Sprintf("Populating %s...", t.describe()))
	records := make([]any, 0, len(rows))
	for _, row := range rows {
		records = append(records, p.populate(t, hs, row, rep))
	}

	if err := t.assign(records); err != nil {
		return res, &TargetError{Field: t.Field, Page: t.Page, Err: err}
	}
	res.Records = len(records)
	rep.done()

	return res, nil
}

// populate creates one record from row. Cells that cannot be converted
// leave the field at its zero value; non-empty ones are reported.
func (p *PageImporter) populate(t Target, hs HeaderSet, row Row, rep pageReporter) any {
	rec := t.Record.newRecord()

	for i, col := range hs.Columns {
		if col.Field == nil {
			continue
		}

		cell := row.Cells[i]
		v, ok := Coerce(cell, *col.Field)
		if !ok {
			if cell != "" {
				rep.warn(Warning{
					Page:    t.Page,
					Line:    row.Line,
					Column:  col.Name,
					Value:   cell,
					Message: fmt.Sprintf("cannot convert to %s", col.Field.Type),
				})
			}
			continue
		}
		col.Field.Set(rec, v)
	}

	return rec
}
