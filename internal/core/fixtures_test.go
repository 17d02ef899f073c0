package core

import (
	"context"
	"fmt"
	"sync"
)

type rarity int

const (
	rarityCommon rarity = iota
	rarityRare
	rarityEpic
)

func (r rarity) String() string {
	switch r {
	case rarityCommon:
		return "Common"
	case rarityRare:
		return "Rare"
	case rarityEpic:
		return "Epic"
	}
	return fmt.Sprintf("rarity(%d)", int(r))
}

type scoreRow struct {
	ID    int32
	Name  string
	Score int64
}

var scoreType = NewRecordType[scoreRow]("ScoreRow",
	Int32Field("id", func(r *scoreRow, v int32) { r.ID = v }),
	StringField("name", func(r *scoreRow, v string) { r.Name = v }),
	Int64Field("score", func(r *scoreRow, v int64) { r.Score = v }),
)

type valueRow struct {
	Value float64
}

var valueType = NewRecordType[valueRow]("ValueRow",
	Float64Field("value", func(r *valueRow, v float64) { r.Value = v }),
)

type gear struct {
	ID     string
	Level  int8
	Weight float32
	Active bool
	Rarity rarity
}

var gearType = NewRecordType[gear]("Gear",
	StringField("ID", func(g *gear, v string) { g.ID = v }),
	Int8Field("Level", func(g *gear, v int8) { g.Level = v }),
	Float32Field("Weight", func(g *gear, v float32) { g.Weight = v }),
	BoolField("Active", func(g *gear, v bool) { g.Active = v }),
	EnumField("Rarity", func(g *gear, v rarity) { g.Rarity = v }, rarityCommon, rarityRare, rarityEpic),
)

var baseType = NewAbstractRecordType("Base",
	StringField("id", func(r *scoreRow, v string) {}),
)

// stubFetcher serves page text from memory and records every request.
type stubFetcher struct {
	mu     sync.Mutex
	pages  map[string]string
	errs   map[string]error
	calls  []PageSource
	onCall func(src PageSource)
}

func newStubFetcher(pages map[string]string) *stubFetcher {
	return &stubFetcher{pages: pages, errs: map[string]error{}}
}

func (f *stubFetcher) Fetch(ctx context.Context, src PageSource) (Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, src)
	hook := f.onCall
	f.mu.Unlock()

	if hook != nil {
		hook(src)
	}

	url := src.URL("https://sheets.test/d")
	if err, ok := f.errs[src.Page]; ok {
		return Page{}, err
	}
	text, ok := f.pages[src.Page]
	if !ok {
		return Page{}, &FetchError{URL: url, StatusCode: 404}
	}
	return Page{URL: url, Text: text, Bytes: int64(len(text))}, nil
}

func (f *stubFetcher) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	pages := make([]string, len(f.calls))
	for i, c := range f.calls {
		pages[i] = c.Page
	}
	return pages
}

// recorder captures observer callbacks in order.
type recorder struct {
	mu       sync.Mutex
	statuses []string
	progress []float64
	failures []string
	finished []RunResult
}

func (r *recorder) StatusChanged(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recorder) ProgressChanged(p float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func (r *recorder) Failed(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, msg)
}

func (r *recorder) Finished(res RunResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, res)
}
