package core

import (
	"fmt"
)

// Enumerant is one named value of an enum field.
type Enumerant struct {
	Name  string
	Value int64
}

// FieldSpec describes one importable field of a record type. Set receives a
// record created by the owning RecordType and a value produced by Coerce for
// Type, so string fields get a string, int32 fields an int32, enum fields an
// int64 taken from Enumerants.
type FieldSpec struct {
	Name       string
	Type       FieldType
	Enumerants []Enumerant
	Set        func(record any, value any)
}

// RecordType is the explicit schema of an element type: how to create an
// instance and which fields can be set from a page column of the same name.
type RecordType struct {
	name      string
	abstract  bool
	fields    []FieldSpec
	index     map[string]int
	newRecord func() any
}

// NewRecordType registers the importable fields of T. Field names are
// matched against page headers exactly, so they must be unique.
func NewRecordType[T any](name string, fields ...FieldSpec) *RecordType {
	rt := newRecordType(name, fields)
	rt.newRecord = func() any { return new(T) }
	return rt
}

// NewAbstractRecordType describes fields shared by several concrete record
// types. It cannot be instantiated, so a target using it is rejected.
func NewAbstractRecordType(name string, fields ...FieldSpec) *RecordType {
	rt := newRecordType(name, fields)
	rt.abstract = true
	return rt
}

func newRecordType(name string, fields []FieldSpec) *RecordType {
	rt := &RecordType{
		name:   name,
		fields: append([]FieldSpec(nil), fields...),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range rt.fields {
		if _, dup := rt.index[f.Name]; dup {
			panic(fmt.Sprintf("record type %s: field %q declared twice", name, f.Name))
		}
		rt.index[f.Name] = i
	}
	return rt
}

// Name returns the record type's display name.
func (rt *RecordType) Name() string { return rt.name }

// Abstract reports whether the type cannot be instantiated.
func (rt *RecordType) Abstract() bool { return rt.abstract }

// Fields returns the importable fields in declaration order.
func (rt *RecordType) Fields() []FieldSpec {
	return append([]FieldSpec(nil), rt.fields...)
}

// Field looks up an importable field by exact, case-sensitive name.
func (rt *RecordType) Field(name string) (FieldSpec, bool) {
	i, ok := rt.index[name]
	if !ok {
		return FieldSpec{}, false
	}
	return rt.fields[i], true
}

func (rt *RecordType) instantiable() bool {
	return rt != nil && !rt.abstract && rt.newRecord != nil
}

// checkFields rejects fields the coercer cannot fill.
func (rt *RecordType) checkFields() error {
	for _, f := range rt.fields {
		if !f.Type.Supported() {
			return fmt.Errorf("%w: %s.%s is %s", ErrUnsupportedField, rt.name, f.Name, f.Type)
		}
		if f.Type == FieldEnum && len(f.Enumerants) == 0 {
			return fmt.Errorf("%w: %s.%s is an enum without values", ErrUnsupportedField, rt.name, f.Name)
		}
		if f.Set == nil {
			return fmt.Errorf("%w: %s.%s has no setter", ErrUnsupportedField, rt.name, f.Name)
		}
	}
	return nil
}

/* ----------------------------------------
	Typed field constructors
---------------------------------------- */

func field[T, V any](name string, typ FieldType, set func(*T, V)) FieldSpec {
	return FieldSpec{
		Name: name,
		Type: typ,
		Set: func(record any, value any) {
			set(record.(*T), value.(V))
		},
	}
}

// StringField declares a text field.
func StringField[T any](name string, set func(*T, string)) FieldSpec {
	return field(name, FieldString, set)
}

// Int8Field declares an 8-bit signed integer field.
func Int8Field[T any](name string, set func(*T, int8)) FieldSpec {
	return field(name, FieldInt8, set)
}

// Int16Field declares a 16-bit signed integer field.
func Int16Field[T any](name string, set func(*T, int16)) FieldSpec {
	return field(name, FieldInt16, set)
}

// Int32Field declares a 32-bit signed integer field.
func Int32Field[T any](name string, set func(*T, int32)) FieldSpec {
	return field(name, FieldInt32, set)
}

// Int64Field declares a 64-bit signed integer field.
func Int64Field[T any](name string, set func(*T, int64)) FieldSpec {
	return field(name, FieldInt64, set)
}

// BoolField declares a boolean field.
func BoolField[T any](name string, set func(*T, bool)) FieldSpec {
	return field(name, FieldBool, set)
}

// Float32Field declares a single precision field.
func Float32Field[T any](name string, set func(*T, float32)) FieldSpec {
	return field(name, FieldFloat32, set)
}

// Float64Field declares a double precision field.
func Float64Field[T any](name string, set func(*T, float64)) FieldSpec {
	return field(name, FieldFloat64, set)
}

// Enumerable is an integer-backed enum that can name its values.
type Enumerable interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32
	String() string
}

// EnumField declares a field whose cells name one of values, matched
// case-insensitively against each value's String form.
func EnumField[T any, E Enumerable](name string, set func(*T, E), values ...E) FieldSpec {
	enumerants := make([]Enumerant, len(values))
	for i, v := range values {
		enumerants[i] = Enumerant{Name: v.String(), Value: int64(v)}
	}
	return FieldSpec{
		Name:       name,
		Type:       FieldEnum,
		Enumerants: enumerants,
		Set: func(record any, value any) {
			set(record.(*T), E(value.(int64)))
		},
	}
}
