// Package candid describes remote service interfaces and encodes call
// arguments and results in the service's binary wire format.
package candid

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind enumerates the supported type constructors.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNat
	KindInt
	KindText
	KindPrincipal
	KindReserved
	KindOpt
	KindVec
	KindRecord
	KindVariant
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNat:
		return "nat"
	case KindInt:
		return "int"
	case KindText:
		return "text"
	case KindPrincipal:
		return "principal"
	case KindReserved:
		return "reserved"
	case KindOpt:
		return "opt"
	case KindVec:
		return "vec"
	case KindRecord:
		return "record"
	case KindVariant:
		return "variant"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Type is an immutable type description. Compound types are built with
// Opt, Vec, Record, Variant and Tuple.
type Type struct {
	Kind   Kind
	Elem   *Type
	Fields []Field
	Tuple  bool
}

// Field is a labelled member of a record or variant. ID is the wire label.
type Field struct {
	Name string
	ID   uint32
	Type *Type
}

var (
	Null      = &Type{Kind: KindNull}
	Bool      = &Type{Kind: KindBool}
	Nat       = &Type{Kind: KindNat}
	Int       = &Type{Kind: KindInt}
	Text      = &Type{Kind: KindText}
	Principal = &Type{Kind: KindPrincipal}
	Reserved  = &Type{Kind: KindReserved}
)

// F declares a named field.
func F(name string, t *Type) Field {
	return Field{Name: name, ID: Hash(name), Type: t}
}

func Opt(elem *Type) *Type { return &Type{Kind: KindOpt, Elem: elem} }

func Vec(elem *Type) *Type { return &Type{Kind: KindVec, Elem: elem} }

// Record declares a record; fields are kept in wire order.
func Record(fields ...Field) *Type {
	return &Type{Kind: KindRecord, Fields: sortFields(fields)}
}

// Variant declares a variant; tags are kept in wire order.
func Variant(fields ...Field) *Type {
	return &Type{Kind: KindVariant, Fields: sortFields(fields)}
}

// Tuple is a record whose fields are labelled 0..n-1. Values are []any.
func Tuple(elems ...*Type) *Type {
	fields := make([]Field, len(elems))
	for i, e := range elems {
		fields[i] = Field{Name: strconv.Itoa(i), ID: uint32(i), Type: e}
	}
	return &Type{Kind: KindRecord, Fields: fields, Tuple: true}
}

func sortFields(fields []Field) []Field {
	out := append([]Field(nil), fields...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Hash computes the wire label of a field name.
func Hash(name string) uint32 {
	var h uint32
	for i := 0; i < len(name); i++ {
		h = h*223 + uint32(name[i])
	}
	return h
}

// FieldByID returns the field with the given wire label.
func (t *Type) FieldByID(id uint32) (Field, bool) {
	for _, f := range t.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// String renders the type in interface-definition syntax.
func (t *Type) String() string {
	switch t.Kind {
	case KindOpt:
		return "opt " + t.Elem.String()
	case KindVec:
		return "vec " + t.Elem.String()
	case KindRecord, KindVariant:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			switch {
			case t.Tuple:
				parts[i] = f.Type.String()
			case t.Kind == KindVariant && f.Type.Kind == KindNull:
				parts[i] = f.Name
			default:
				parts[i] = f.Name + ": " + f.Type.String()
			}
		}
		return fmt.Sprintf("%s { %s }", t.Kind, strings.Join(parts, "; "))
	default:
		return t.Kind.String()
	}
}
