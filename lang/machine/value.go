// Package machine implements the virtual machine that executes the
// bytecode-compiled form of the source code. It also provides the runtime
// representation of values, the heap and its garbage collector, and the
// string-interning hash table.
package machine

import "strconv"

// Value is the interface implemented by any value manipulated by the machine:
// nil, booleans, 64-bit floats, and references to heap objects.
type Value interface {
	// String returns the string representation of the value, as produced by
	// the print statement.
	String() string

	// Type returns a short string describing the value's type.
	Type() string
}

// NilType is the type of the Nil value.
type NilType struct{}

// Nil is the nil value of the language.
var Nil Value = NilType{}

func (NilType) String() string { return "nil" }
func (NilType) Type() string   { return "nil" }

// Bool is the type of the True and False values.
type Bool bool

// True and False are the boolean values of the language.
const (
	True  Bool = true
	False Bool = false
)

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (b Bool) Type() string { return "bool" }

// Number is a 64-bit IEEE-754 floating point number, the only numeric type of
// the language.
type Number float64

func (n Number) String() string {
	return strconv.FormatFloat(float64(n), 'g', -1, 64)
}
func (n Number) Type() string { return "number" }

// Truth returns the truthiness of any value: nil and false are falsey,
// everything else - including 0 and the empty string - is truthy.
func Truth(v Value) Bool {
	switch v := v.(type) {
	case NilType:
		return False
	case Bool:
		return v
	default:
		return True
	}
}

// Equal returns true if x and y are considered equal by the language: values
// of different types are never equal, nil, booleans and numbers compare by
// value, and heap objects compare by identity. Strings compare correctly by
// identity because they are interned.
func Equal(x, y Value) bool {
	switch x := x.(type) {
	case NilType:
		_, ok := y.(NilType)
		return ok
	case Bool:
		yb, ok := y.(Bool)
		return ok && x == yb
	case Number:
		yn, ok := y.(Number)
		return ok && x == yn
	default:
		// heap objects, including interned strings
		return x == y
	}
}
