package shader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
)

// ValueKind identifies the type held by a Value.
type ValueKind int

const (
	// ValueUint holds a uint32.
	ValueUint ValueKind = iota
	// ValueInt holds an int32.
	ValueInt
	// ValueFloat holds a float32.
	ValueFloat
	// ValueBool holds a bool.
	ValueBool
	// ValueDef is a bare define with no value. It reads as true.
	ValueDef
)

func (k ValueKind) String() string {
	switch k {
	case ValueUint:
		return "uint"
	case ValueInt:
		return "int"
	case ValueFloat:
		return "float"
	case ValueBool:
		return "bool"
	case ValueDef:
		return "def"
	}
	return fmt.Sprintf("ValueKind(%d)", int(k))
}

// Value is a define value as seen by the preprocessor.
type Value struct {
	kind ValueKind
	u    uint32
	i    int32
	f    float32
	b    bool
}

// Uint returns a uint32 define value.
func Uint(v uint32) Value { return Value{kind: ValueUint, u: v} }

// Int returns an int32 define value.
func Int(v int32) Value { return Value{kind: ValueInt, i: v} }

// Float returns a float32 define value.
func Float(v float32) Value { return Value{kind: ValueFloat, f: v} }

// Bool returns a boolean define value.
func Bool(v bool) Value { return Value{kind: ValueBool, b: v} }

// Def returns a bare define with no value.
func Def() Value { return Value{kind: ValueDef} }

// Kind returns the type held by v.
func (v Value) Kind() ValueKind { return v.kind }

// String renders v the way it is substituted into shader source. A bare define renders as "true".
func (v Value) String() string {
	switch v.kind {
	case ValueUint:
		return strconv.FormatUint(uint64(v.u), 10)
	case ValueInt:
		return strconv.FormatInt(int64(v.i), 10)
	case ValueFloat:
		return strconv.FormatFloat(float64(v.f), 'f', -1, 32)
	case ValueBool:
		return strconv.FormatBool(v.b)
	default:
		return "true"
	}
}

// ParseValue parses a define value. It tries uint32, then int32, then float32, then a
// case-insensitive true/false.
//
// Parameters:
//   - s: the literal text
//
// Returns:
//   - Value: the parsed value
//   - error: ErrInvalidDefineValue if s matches none of the forms
func ParseValue(s string) (Value, error) {
	if u, err := strconv.ParseUint(s, 10, 32); err == nil {
		return Uint(uint32(u)), nil
	}
	if i, err := strconv.ParseInt(s, 10, 32); err == nil {
		return Int(int32(i)), nil
	}
	if f, err := strconv.ParseFloat(s, 32); err == nil {
		return Float(float32(f)), nil
	}
	switch strings.ToLower(s) {
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	}
	return Value{}, fmt.Errorf("%w: %q", ErrInvalidDefineValue, s)
}

// IfOp is a comparison operator accepted by #if.
type IfOp int

const (
	IfEq IfOp = iota
	IfNe
	IfGt
	IfGe
	IfLt
	IfLe
)

var ifOpNames = map[string]IfOp{
	"==": IfEq,
	"!=": IfNe,
	">":  IfGt,
	">=": IfGe,
	"<":  IfLt,
	"<=": IfLe,
}

func (op IfOp) String() string {
	for name, o := range ifOpNames {
		if o == op {
			return name
		}
	}
	return "?"
}

func parseIfOp(s string) (IfOp, bool) {
	op, ok := ifOpNames[s]
	return op, ok
}

func (op IfOp) ordering() bool {
	return op != IfEq && op != IfNe
}

// Compare evaluates lhs op rhs. Bools become Uint 0 or 1 first. A bare define becomes Uint 1 for
// == and != but has no ordering. The right-hand side is then cast to the left-hand kind.
//
// Parameters:
//   - lhs: the left operand, whose kind decides the comparison type
//   - op: the operator
//   - rhs: the right operand
//
// Returns:
//   - bool: the result
//   - error: ErrUnsupportedIfOperation if the operands cannot be compared with op
func (op IfOp) Compare(lhs, rhs Value) (bool, error) {
	if op.ordering() && (lhs.kind == ValueDef || rhs.kind == ValueDef) {
		return false, fmt.Errorf("%w: %s(%s) %s %s(%s)", ErrUnsupportedIfOperation, lhs.kind, lhs, op, rhs.kind, rhs)
	}
	lhs, rhs = lhs.numeric(), rhs.numeric()

	switch lhs.kind {
	case ValueUint:
		return compareOrdered(op, lhs.u, rhs.asUint()), nil
	case ValueInt:
		return compareOrdered(op, lhs.i, rhs.asInt()), nil
	case ValueFloat:
		return compareOrdered(op, lhs.f, rhs.asFloat()), nil
	}
	return false, fmt.Errorf("%w: %s %s %s", ErrUnsupportedIfOperation, lhs.kind, op, rhs.kind)
}

func (v Value) numeric() Value {
	switch v.kind {
	case ValueBool:
		if v.b {
			return Uint(1)
		}
		return Uint(0)
	case ValueDef:
		return Uint(1)
	}
	return v
}

// asUint casts wrapping from int and saturating from float.
func (v Value) asUint() uint32 {
	switch v.kind {
	case ValueInt:
		return uint32(v.i)
	case ValueFloat:
		switch {
		case math32.IsNaN(v.f) || v.f <= 0:
			return 0
		case v.f >= math32.MaxUint32:
			return math32.MaxUint32
		}
		return uint32(v.f)
	}
	return v.u
}

// asInt casts wrapping from uint and saturating from float.
func (v Value) asInt() int32 {
	switch v.kind {
	case ValueUint:
		return int32(v.u)
	case ValueFloat:
		switch {
		case math32.IsNaN(v.f):
			return 0
		case v.f <= math32.MinInt32:
			return math32.MinInt32
		case v.f >= math32.MaxInt32:
			return math32.MaxInt32
		}
		return int32(v.f)
	}
	return v.i
}

func (v Value) asFloat() float32 {
	switch v.kind {
	case ValueUint:
		return float32(v.u)
	case ValueInt:
		return float32(v.i)
	}
	return v.f
}

func compareOrdered[T uint32 | int32 | float32](op IfOp, l, r T) bool {
	switch op {
	case IfEq:
		return l == r
	case IfNe:
		return l != r
	case IfGt:
		return l > r
	case IfGe:
		return l >= r
	case IfLt:
		return l < r
	default:
		return l <= r
	}
}
