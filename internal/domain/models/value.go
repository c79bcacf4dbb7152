package models

import (
	"math"
	"strconv"
	"strings"
)

// Kind is the type of a cell value.
type Kind uint8

const (
	KindNull Kind = iota
	KindText
	KindNumber
	KindBool
)

// Value is one spreadsheet cell after reading. The zero Value is Null.
type Value struct {
	Kind Kind
	Text string
	Num  float64
	Bool bool
}

// Null returns the missing value.
func Null() Value { return Value{} }

// Text returns a text value. An empty string stays a text value and is not Null.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// Number returns a numeric value; NaN becomes Null.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Null()
	}
	return Value{Kind: KindNumber, Num: f}
}

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// IsNull reports whether v is missing.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// IsText reports whether v holds text.
func (v Value) IsText() bool { return v.Kind == KindText }

// String renders v for storage in a text column. Integral numbers are rendered
// without a fractional part. Null renders as "".
func (v Value) String() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber:
		if v.Num == math.Trunc(v.Num) && math.Abs(v.Num) < 1e15 {
			return strconv.FormatInt(int64(v.Num), 10)
		}
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBool:
		if v.Bool {
			return "1"
		}
		return "0"
	default:
		return ""
	}
}

// SQL returns the value bound into a statement: nil for Null, the rendered string otherwise.
func (v Value) SQL() any {
	if v.IsNull() {
		return nil
	}
	return v.String()
}

// Flag returns the trimmed lower-cased text of v, or "" when v is Null, blank
// or the literal "nan". Callers treat "" as absent.
func (v Value) Flag() string {
	if v.IsNull() {
		return ""
	}
	s := strings.ToLower(strings.TrimSpace(v.String()))
	if s == "nan" {
		return ""
	}
	return s
}

// Equal compares kind and content.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindNumber:
		return v.Num == o.Num
	case KindBool:
		return v.Bool == o.Bool
	default:
		return v.Text == o.Text
	}
}
