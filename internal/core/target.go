package core

import (
	"fmt"
	"strings"
)

// Target binds one spreadsheet page to a destination field of a content
// object. Build targets with SingleTarget, ListTarget or ArrayTarget so the
// destination is typed; a Target assembled by hand is rejected at setup.
type Target struct {
	Field  string        // destination field name, used in messages and selection
	Page   string        // page (sheet) name inside the document
	Kind   ContainerKind // shape of the destination
	Record *RecordType   // element type

	assign func(records []any) error
	err    error
}

// SingleTarget fills *dst from the first surviving row of page.
func SingleTarget[T any](field, page string, rt *RecordType, dst *T) Target {
	t := newTarget[T](field, page, KindSingle, rt)
	t.assign = func(records []any) error {
		if len(records) == 0 {
			return ErrEmptyPage
		}
		*dst = *records[0].(*T)
		return nil
	}
	return t
}

// ListTarget replaces *dst with one element per surviving row, in row order.
func ListTarget[T any](field, page string, rt *RecordType, dst *[]T) Target {
	t := newTarget[T](field, page, KindList, rt)
	t.assign = func(records []any) error {
		out := make([]T, 0, len(records))
		for _, r := range records {
			out = append(out, *r.(*T))
		}
		*dst = out
		return nil
	}
	return t
}

// ArrayTarget replaces *dst with a slice whose length is exactly the number
// of surviving rows, element i coming from row i.
func ArrayTarget[T any](field, page string, rt *RecordType, dst *[]T) Target {
	t := newTarget[T](field, page, KindArray, rt)
	t.assign = func(records []any) error {
		out := make([]T, len(records))
		for i, r := range records {
			out[i] = *r.(*T)
		}
		*dst = out
		return nil
	}
	return t
}

func newTarget[T any](field, page string, kind ContainerKind, rt *RecordType) Target {
	t := Target{Field: field, Page: page, Kind: kind, Record: rt}
	if rt.instantiable() {
		if _, ok := rt.newRecord().(*T); !ok {
			var zero T
			t.err = fmt.Errorf("record type %s does not produce %T elements", rt.name, zero)
		}
	}
	return t
}

// Validate reports setup problems: unknown container kind, missing or
// abstract element type, element type mismatch, or a field the coercer
// cannot fill. It never touches the network.
func (t Target) Validate() error {
	fail := func(err error) error {
		return &TargetError{Field: t.Field, Page: t.Page, Err: err}
	}

	switch t.Kind {
	case KindSingle, KindList, KindArray:
	default:
		return fail(fmt.Errorf("%w: could not identify the container kind of %s", ErrUnsupportedTarget, t.Kind))
	}
	if strings.TrimSpace(t.Page) == "" {
		return fail(fmt.Errorf("%w: page name is empty", ErrUnsupportedTarget))
	}
	if !t.Record.instantiable() {
		return fail(fmt.Errorf("%w: could not identify the type of records stored in %s", ErrUnsupportedTarget, t.Field))
	}
	if t.err != nil {
		return fail(fmt.Errorf("%w: %v", ErrUnsupportedTarget, t.err))
	}
	if t.assign == nil {
		return fail(fmt.Errorf("%w: no destination bound to %s", ErrUnsupportedTarget, t.Field))
	}
	if err := t.Record.checkFields(); err != nil {
		return fail(err)
	}
	return nil
}

// describe renders the populate status line, e.g. "list 'Items'<Item>".
func (t Target) describe() string {
	name := "?"
	if t.Record != nil {
		name = t.Record.name
	}
	return fmt.Sprintf("%s '%s'<%s>", t.Kind, t.Field, name)
}
