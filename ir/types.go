// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package ir is the VB6 intermediate representation the lifter builds and
// the code generator walks: typed expressions, statements, basic blocks,
// and functions.
package ir

// TypeKind enumerates the VB6 value kinds the IR can carry.
type TypeKind int

const (
	KindVoid TypeKind = iota
	KindByte
	KindBoolean
	KindInteger
	KindLong
	KindSingle
	KindDouble
	KindCurrency
	KindDate
	KindString
	KindObject
	KindVariant
	KindUserDefined
	KindArray
	KindUnknown
)

func (k TypeKind) String() string {
	switch k {
	case KindVoid:
		return "Void"
	case KindByte:
		return "Byte"
	case KindBoolean:
		return "Boolean"
	case KindInteger:
		return "Integer"
	case KindLong:
		return "Long"
	case KindSingle:
		return "Single"
	case KindDouble:
		return "Double"
	case KindCurrency:
		return "Currency"
	case KindDate:
		return "Date"
	case KindString:
		return "String"
	case KindObject:
		return "Object"
	case KindVariant:
		return "Variant"
	case KindUserDefined:
		return "UserDefined"
	case KindArray:
		return "Array"
	default:
		return "Unknown"
	}
}

// Type is the IR's type descriptor: a kind plus, for Array, its element
// type and dimension count, and, for UserDefined, its declared name.
type Type struct {
	Kind            TypeKind
	ElementType     *Type
	ArrayDimensions int
	TypeName        string
}

// String renders the declared-type spelling the code generator emits
// ("As T"), e.g. "Integer", "Variant", "MyClass".
func (t Type) String() string {
	if t.Kind == KindUserDefined && t.TypeName != "" {
		return t.TypeName
	}
	return t.Kind.String()
}

// FromPCodeType maps a P-Code operand data-type name (pcode.DataType's
// String()) to the IR type it lifts as, per the type-mapping table: every
// P-Code type maps to its same-named IR type except Variant and Unknown,
// which both collapse to Variant.
func FromPCodeType(name string) Type {
	switch name {
	case "Byte":
		return Type{Kind: KindByte}
	case "Boolean":
		return Type{Kind: KindBoolean}
	case "Integer":
		return Type{Kind: KindInteger}
	case "Long":
		return Type{Kind: KindLong}
	case "Single":
		return Type{Kind: KindSingle}
	case "String":
		return Type{Kind: KindString}
	case "Object":
		return Type{Kind: KindObject}
	default:
		return Type{Kind: KindVariant}
	}
}
