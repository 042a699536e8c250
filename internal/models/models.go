// Package models holds the document tree produced by the parser and the
// parsed save that a session keeps resident.
//
// A Value is one of Null, Bool, Number, String, Array or *Object. Values are
// built once by the parser and never mutated afterwards, so they can be read
// from any number of goroutines without locking.
package models

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a node of the document tree. The set of implementations is closed.
type Value interface {
	Kind() Kind
	appendJSON(dst []byte) []byte
}

// Null is the absent value.
type Null struct{}

// Bool is a yes/no value.
type Bool bool

// String is decoded text.
type String string

// Array is an ordered sequence of values.
type Array []Value

func (Null) Kind() Kind   { return KindNull }
func (Bool) Kind() Kind   { return KindBool }
func (String) Kind() Kind { return KindString }
func (Array) Kind() Kind  { return KindArray }

// Save is a parsed save file held for the lifetime of a session. Raw is the
// undecoded gamestate payload, kept because raw-text lookups re-derive
// information the tree collapses.
type Save struct {
	Gamestate *Object
	Meta      *Object
	Raw       []byte
}

// Section returns the top-level gamestate value stored under name.
func (s *Save) Section(name string) (Value, bool) {
	if s == nil || s.Gamestate == nil {
		return nil, false
	}
	return s.Gamestate.Get(name)
}

// SectionObject returns the named section when it is an Object.
func (s *Save) SectionObject(name string) (*Object, bool) {
	v, ok := s.Section(name)
	if !ok {
		return nil, false
	}
	obj, ok := v.(*Object)
	return obj, ok
}

// ScalarText renders a scalar the way it is compared against request
// values: strings verbatim, booleans as yes/no, numbers in canonical
// decimal form. Containers and null report false.
func ScalarText(v Value) (string, bool) {
	switch t := v.(type) {
	case String:
		return string(t), true
	case Bool:
		if t {
			return "yes", true
		}
		return "no", true
	case Number:
		return t.String(), true
	default:
		return "", false
	}
}

// Equal reports whether a and b hold the same tree. Objects compare as
// mappings, so member order is ignored.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Null:
		return true
	case Bool:
		return x == b.(Bool)
	case String:
		return x == b.(String)
	case Number:
		return x.Equal(b.(Number))
	case Array:
		y := b.(Array)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case *Object:
		y := b.(*Object)
		if x.Len() != y.Len() {
			return false
		}
		for _, m := range x.Members() {
			other, ok := y.Get(m.Key)
			if !ok || !Equal(m.Value, other) {
				return false
			}
		}
		return true
	}
	return false
}
