// Package model implements the in-memory data structures of §3: scalars,
// columns, tables, documents, and the tagged Value union they compute to.
package model

import (
	"fmt"
	"strconv"

	"github.com/spf13/cast"

	"github.com/forgelang/forge/forgeerr"
)

// ValueKind tags the variant of a Value.
type ValueKind int

const (
	KindNumber ValueKind = iota
	KindText
	KindBool
	KindColumn
	KindError
)

// Value is the tagged value every expression evaluates to (§3). A
// column-of-length-one and a scalar are distinct, per §3's invariant, so
// Column is never collapsed to Number/Text/Bool even when it holds one
// element.
type Value struct {
	Kind ValueKind

	Number float64
	Text   string
	Bool   bool
	Column []Value // elements may differ in Kind (e.g. an error beside numbers)
	Err    *forgeerr.Error
}

func Num(n float64) Value  { return Value{Kind: KindNumber, Number: n} }
func Str(s string) Value   { return Value{Kind: KindText, Text: s} }
func Boolean(b bool) Value { return Value{Kind: KindBool, Bool: b} }
func Vec(items []Value) Value {
	return Value{Kind: KindColumn, Column: items}
}
func Err(e *forgeerr.Error) Value { return Value{Kind: KindError, Err: e} }

func (v Value) IsError() bool  { return v.Kind == KindError }
func (v Value) IsColumn() bool { return v.Kind == KindColumn }
func (v Value) Len() int {
	if v.Kind == KindColumn {
		return len(v.Column)
	}
	return 1
}

// At returns the scalar at row i, broadcasting a scalar value over any row
// index (§4.6 broadcasting).
func (v Value) At(i int) Value {
	if v.Kind == KindColumn {
		if i < 0 || i >= len(v.Column) {
			return Err(forgeerr.Domain("index", []interface{}{i}, "index out of range"))
		}
		return v.Column[i]
	}
	return v
}

// AsNumber coerces v to a float64, promoting booleans to 0/1 and parsing
// numeric strings, per §4.6's type coercion rule. Coercion itself goes
// through spf13/cast rather than hand-rolled strconv/type-switch branches.
func (v Value) AsNumber() (float64, *forgeerr.Error) {
	switch v.Kind {
	case KindNumber:
		return v.Number, nil
	case KindBool:
		return cast.ToFloat64(v.Bool), nil
	case KindText:
		f, err := cast.ToFloat64E(v.Text)
		if err != nil {
			return 0, forgeerr.Domain("numeric coercion", []interface{}{v.Text}, "not a number")
		}
		return f, nil
	case KindError:
		return 0, v.Err
	}
	return 0, forgeerr.Domain("numeric coercion", []interface{}{v}, "cannot coerce column to number")
}

// AsText coerces v to its textual form, used by the concatenation operator
// (§4.6: "Text concatenation (&) coerces any operand to its textual form").
func (v Value) AsText() (string, *forgeerr.Error) {
	switch v.Kind {
	case KindText:
		return v.Text, nil
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'g', -1, 64), nil
	case KindBool:
		if v.Bool {
			return "TRUE", nil
		}
		return "FALSE", nil
	case KindError:
		return "", v.Err
	}
	return "", forgeerr.Domain("text coercion", []interface{}{v}, "cannot coerce column to text")
}

// AsBool coerces v to a boolean: non-zero numbers are true, and text is
// parsed as a boolean literal ("TRUE", "true", "1", ...); text that is not
// such a literal is false.
func (v Value) AsBool() (bool, *forgeerr.Error) {
	switch v.Kind {
	case KindBool:
		return v.Bool, nil
	case KindNumber:
		return v.Number != 0, nil
	case KindText:
		b, err := cast.ToBoolE(v.Text)
		if err != nil {
			return false, nil
		}
		return b, nil
	case KindError:
		return false, v.Err
	}
	return false, forgeerr.Domain("boolean coercion", []interface{}{v}, "cannot coerce column to boolean")
}

func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	case KindText:
		return v.Text
	case KindBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case KindColumn:
		return fmt.Sprintf("<column len=%d>", len(v.Column))
	case KindError:
		return "#ERROR: " + v.Err.Error()
	}
	return "<invalid>"
}
