package ir

import (
	"fmt"
	"strings"
)

// Types carry no source position.  They are shared freely between nodes;
// record types additionally have identity since the lowerer grows them
// field by field.
type Type interface {
	isTypeExpr()

	String() string

	Equals(Type) bool
}

type isType struct{}

func (isType) isTypeExpr() {}

type IntType struct {
	isType

	Bits   int // 8, 16, 32 or 64
	Signed bool
}

var (
	I8  = IntType{Bits: 8, Signed: true}
	I16 = IntType{Bits: 16, Signed: true}
	I32 = IntType{Bits: 32, Signed: true}
	I64 = IntType{Bits: 64, Signed: true}
	U8  = IntType{Bits: 8}
	U16 = IntType{Bits: 16}
	U32 = IntType{Bits: 32}
	U64 = IntType{Bits: 64}
)

func (t IntType) String() string {
	if t.Signed {
		return fmt.Sprintf("i%d", t.Bits)
	}
	return fmt.Sprintf("u%d", t.Bits)
}

func (t IntType) Equals(other Type) bool {
	o, ok := other.(IntType)
	return ok && o == t
}

// Signed returns the signed integer type with the same width as t.  The
// canonical loop iterator type is always signed.
func Signed(t Type) IntType {
	i, ok := t.(IntType)
	if !ok {
		panic("should never happen")
	}
	i.Signed = true
	return i
}

type FloatType struct {
	isType

	Bits int // 32 or 64
}

var (
	F32 = FloatType{Bits: 32}
	F64 = FloatType{Bits: 64}
)

func (t FloatType) String() string {
	return fmt.Sprintf("f%d", t.Bits)
}

func (t FloatType) Equals(other Type) bool {
	o, ok := other.(FloatType)
	return ok && o == t
}

type BoolType struct {
	isType
}

func (BoolType) String() string {
	return "bool"
}

func (BoolType) Equals(other Type) bool {
	_, ok := other.(BoolType)
	return ok
}

type VoidType struct {
	isType
}

func (VoidType) String() string {
	return "void"
}

func (VoidType) Equals(other Type) bool {
	_, ok := other.(VoidType)
	return ok
}

type PointerType struct {
	isType

	Elem Type
}

func NewPointerType(elem Type) PointerType {
	return PointerType{Elem: elem}
}

func (t PointerType) String() string {
	return "*" + t.Elem.String()
}

func (t PointerType) Equals(other Type) bool {
	o, ok := other.(PointerType)
	return ok && o.Elem.Equals(t.Elem)
}

// ArrayType's element count is an expression.  When Count is not an integer
// literal the array is variably sized; such variables always carry a value
// expression aliasing the backing storage and always cross parallel
// boundaries by pointer.
type ArrayType struct {
	isType

	Elem  Type
	Count Expr
}

func (t ArrayType) String() string {
	if count, ok := t.Count.(*IntLit); ok {
		return fmt.Sprintf("[%d]%s", count.Value, t.Elem.String())
	}
	return fmt.Sprintf("[?]%s", t.Elem.String())
}

func (t ArrayType) Equals(other Type) bool {
	o, ok := other.(ArrayType)
	if !ok || !o.Elem.Equals(t.Elem) {
		return false
	}
	count, ok := t.Count.(*IntLit)
	if !ok {
		return false
	}
	oCount, ok := o.Count.(*IntLit)
	return ok && count.Value == oCount.Value
}

func (t ArrayType) IsVariablySized() bool {
	_, ok := t.Count.(*IntLit)
	return !ok
}

// Field of a record type.  Offset is assigned by platform layout.  Origin
// links a communication record field back to the original variable it
// transports; a child-side record clone additionally links each field to the
// sender-side field it mirrors so both agree on offsets.
type Field struct {
	Name string
	Type Type

	Offset int

	ByPointer bool

	Origin      *Var
	OriginField *Field
}

// RecordType has identity; use pointers.  The lowerer grows communication
// records one field at a time, then asks the platform for a layout.
type RecordType struct {
	isType

	Name   string
	Fields []*Field

	// Set by platform layout; meaningless before.
	ByteSize  int
	ByteAlign int
}

func NewRecordType(name string) *RecordType {
	return &RecordType{Name: name}
}

func (t *RecordType) String() string {
	fields := make([]string, 0, len(t.Fields))
	for _, field := range t.Fields {
		fields = append(fields, field.Name+" "+field.Type.String())
	}
	return fmt.Sprintf("record %s {%s}", t.Name, strings.Join(fields, "; "))
}

func (t *RecordType) Equals(other Type) bool {
	return Type(t) == other
}

func (t *RecordType) FieldByName(name string) *Field {
	for _, field := range t.Fields {
		if field.Name == name {
			return field
		}
	}
	return nil
}

func IsAggregate(t Type) bool {
	switch t.(type) {
	case ArrayType, *RecordType:
		return true
	default:
		return false
	}
}
