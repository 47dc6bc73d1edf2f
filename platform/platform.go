// Package platform describes the properties of the compilation target that
// the lowerer and expander depend on: scalar sizes and alignment, record
// layout, and which atomic intrinsics the machine provides.
package platform

import (
	"github.com/pattyshack/towhee/ir"
)

type Platform interface {
	Name() string

	PointerSize() int

	// SizeOf returns -1 for variably sized types.
	SizeOf(ir.Type) int
	AlignOf(ir.Type) int

	// Layout assigns field offsets and computes the record's size and
	// alignment.  Idempotent.
	Layout(*ir.RecordType)

	// Whether the target has a single-instruction atomic read-modify-write /
	// compare-and-swap for operands of the given byte size.
	SupportsFetchOp(size int) bool
	SupportsCompareAndSwap(size int) bool
}

// Spec is a concrete platform description, either built in (Amd64) or
// loaded from a config file.
type Spec struct {
	TargetName string `yaml:"name"`

	PtrSize  int `yaml:"pointer_size"`
	MaxAlign int `yaml:"max_align"`

	FetchOpSizes        []int `yaml:"fetch_op_sizes"`
	CompareAndSwapSizes []int `yaml:"compare_and_swap_sizes"`
}

var _ Platform = &Spec{}

func Amd64() *Spec {
	return &Spec{
		TargetName:          "amd64",
		PtrSize:             8,
		MaxAlign:            16,
		FetchOpSizes:        []int{1, 2, 4, 8},
		CompareAndSwapSizes: []int{1, 2, 4, 8, 16},
	}
}

func (spec *Spec) Name() string {
	return spec.TargetName
}

func (spec *Spec) PointerSize() int {
	return spec.PtrSize
}

func (spec *Spec) SizeOf(t ir.Type) int {
	switch concrete := t.(type) {
	case ir.IntType:
		return concrete.Bits / 8
	case ir.FloatType:
		return concrete.Bits / 8
	case ir.BoolType:
		return 1
	case ir.PointerType:
		return spec.PtrSize
	case ir.ArrayType:
		count, ok := concrete.Count.(*ir.IntLit)
		if !ok {
			return -1
		}
		elemSize := spec.SizeOf(concrete.Elem)
		if elemSize < 0 {
			return -1
		}
		return elemSize * int(count.Value)
	case *ir.RecordType:
		spec.Layout(concrete)
		return concrete.ByteSize
	case ir.VoidType:
		return 0
	default:
		panic("should never happen")
	}
}

func (spec *Spec) AlignOf(t ir.Type) int {
	switch concrete := t.(type) {
	case ir.ArrayType:
		return spec.AlignOf(concrete.Elem)
	case *ir.RecordType:
		spec.Layout(concrete)
		return concrete.ByteAlign
	default:
		size := spec.SizeOf(t)
		if size <= 0 {
			return 1
		}
		if size > spec.MaxAlign {
			return spec.MaxAlign
		}
		return size
	}
}

func (spec *Spec) Layout(record *ir.RecordType) {
	if record.ByteAlign != 0 {
		return
	}

	offset := 0
	align := 1
	for _, field := range record.Fields {
		fieldType := field.Type
		fieldSize := spec.SizeOf(fieldType)
		if fieldSize < 0 {
			// Variably sized fields cross boundaries by pointer; the clause
			// scanner guarantees none reach layout.
			panic("should never happen")
		}
		fieldAlign := spec.AlignOf(fieldType)

		offset = alignUp(offset, fieldAlign)
		field.Offset = offset
		offset += fieldSize

		if fieldAlign > align {
			align = fieldAlign
		}
	}

	record.ByteSize = alignUp(offset, align)
	record.ByteAlign = align
}

func (spec *Spec) SupportsFetchOp(size int) bool {
	return containsSize(spec.FetchOpSizes, size)
}

func (spec *Spec) SupportsCompareAndSwap(size int) bool {
	return containsSize(spec.CompareAndSwapSizes, size)
}

func alignUp(offset int, align int) int {
	remainder := offset % align
	if remainder == 0 {
		return offset
	}
	return offset + align - remainder
}

func containsSize(sizes []int, size int) bool {
	for _, candidate := range sizes {
		if candidate == size {
			return true
		}
	}
	return false
}
