package ir

// Type kinds and mutability classification.

import (
	"fmt"
	"strings"
)

// TypeKind distinguishes the kinds of types a Value may carry.
type TypeKind int

const (
	TensorKind TypeKind = iota
	ListKind
	TupleKind
	DictKind
	ClassKind
	OptionalKind
	FutureKind
	IntKind
	FloatKind
	BoolKind
	StringKind
	NoneKind
)

var typeKindNames = [...]string{
	TensorKind:   "Tensor",
	ListKind:     "List",
	TupleKind:    "Tuple",
	DictKind:     "Dict",
	ClassKind:    "Class",
	OptionalKind: "Optional",
	FutureKind:   "Future",
	IntKind:      "Int",
	FloatKind:    "Float",
	BoolKind:     "Bool",
	StringKind:   "String",
	NoneKind:     "None",
}

func (k TypeKind) String() string { return typeKindNames[k] }

// Type is the type of a Value. Composite types carry their element types in
// Elems (List: element; Dict: key, value; Tuple: fields; Optional/Future:
// wrapped type). Class types carry their name.
type Type struct {
	Kind  TypeKind
	Elems []*Type
	Name  string // Class name, empty otherwise.
}

// Shared primitive types. Primitives carry no identity so sharing is safe.
var (
	TensorType = &Type{Kind: TensorKind}
	IntType    = &Type{Kind: IntKind}
	FloatType  = &Type{Kind: FloatKind}
	BoolType   = &Type{Kind: BoolKind}
	StringType = &Type{Kind: StringKind}
	NoneType   = &Type{Kind: NoneKind}
)

// ListOf returns a List type with the given element type.
func ListOf(elem *Type) *Type { return &Type{Kind: ListKind, Elems: []*Type{elem}} }

// TupleOf returns a Tuple type with the given field types.
func TupleOf(fields ...*Type) *Type { return &Type{Kind: TupleKind, Elems: fields} }

// DictOf returns a Dict type with the given key and value types.
func DictOf(key, value *Type) *Type { return &Type{Kind: DictKind, Elems: []*Type{key, value}} }

// OptionalOf returns an Optional wrapping t.
func OptionalOf(t *Type) *Type { return &Type{Kind: OptionalKind, Elems: []*Type{t}} }

// FutureOf returns a Future wrapping t.
func FutureOf(t *Type) *Type { return &Type{Kind: FutureKind, Elems: []*Type{t}} }

// ClassOf returns a Class type with the given name.
func ClassOf(name string) *Type { return &Type{Kind: ClassKind, Name: name} }

// MutableKind returns the type-kind bucket used to divide mutable values, and
// false if the type is not mutable. Every wildcard that resolves to the same
// bucket aliases each other. Optionals resolve to their element's bucket.
func MutableKind(t *Type) (TypeKind, bool) {
	switch t.Kind {
	case TensorKind, ListKind, TupleKind, DictKind, ClassKind:
		return t.Kind, true
	case OptionalKind:
		return MutableKind(t.Elems[0])
	}
	return 0, false
}

// ShouldTrack reports whether values of this type take part in alias
// analysis. Values of untracked types never alias and never have writers.
func ShouldTrack(t *Type) bool {
	_, ok := MutableKind(t)
	return ok
}

// IsContainer reports whether the type may hold other tracked values.
// Futures and Optionals are transparent wrappers for this purpose.
func IsContainer(t *Type) bool {
	switch t.Kind {
	case FutureKind, OptionalKind:
		return IsContainer(t.Elems[0])
	}
	return len(t.Elems) > 0
}

func (t *Type) String() string {
	switch t.Kind {
	case ClassKind:
		return t.Name
	case ListKind, OptionalKind, FutureKind, DictKind, TupleKind:
		elems := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			elems[i] = e.String()
		}
		return fmt.Sprintf("%s[%s]", t.Kind, strings.Join(elems, ", "))
	}
	return t.Kind.String()
}
