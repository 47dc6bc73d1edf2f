// Package gomp describes the fixed surface of the GOMP runtime library and
// the atomic intrinsics the expander may emit calls to.
package gomp

import (
	"fmt"

	"github.com/pattyshack/towhee/ir"
)

const (
	ParallelStart = "GOMP_parallel_start"
	ParallelEnd   = "GOMP_parallel_end"

	ParallelSectionsStart = "GOMP_parallel_sections_start"

	LoopEnd       = "GOMP_loop_end"
	LoopEndNowait = "GOMP_loop_end_nowait"

	SectionsStart     = "GOMP_sections_start"
	SectionsNext      = "GOMP_sections_next"
	SectionsEnd       = "GOMP_sections_end"
	SectionsEndNowait = "GOMP_sections_end_nowait"

	SingleStart     = "GOMP_single_start"
	SingleCopyStart = "GOMP_single_copy_start"
	SingleCopyEnd   = "GOMP_single_copy_end"

	Barrier = "GOMP_barrier"

	OrderedStart = "GOMP_ordered_start"
	OrderedEnd   = "GOMP_ordered_end"

	CriticalStart     = "GOMP_critical_start"
	CriticalEnd       = "GOMP_critical_end"
	CriticalNameStart = "GOMP_critical_name_start"
	CriticalNameEnd   = "GOMP_critical_name_end"

	AtomicStart = "GOMP_atomic_start"
	AtomicEnd   = "GOMP_atomic_end"

	GetNumThreads = "omp_get_num_threads"
	GetThreadNum  = "omp_get_thread_num"

	Trap = "__builtin_trap"
)

// Loop dispatch entry points, indexed by schedule kind + 4 * has-ordered.
var loopStartNames = [8]string{
	"GOMP_loop_static_start",
	"GOMP_loop_dynamic_start",
	"GOMP_loop_guided_start",
	"GOMP_loop_runtime_start",
	"GOMP_loop_ordered_static_start",
	"GOMP_loop_ordered_dynamic_start",
	"GOMP_loop_ordered_guided_start",
	"GOMP_loop_ordered_runtime_start",
}

var loopNextNames = [8]string{
	"GOMP_loop_static_next",
	"GOMP_loop_dynamic_next",
	"GOMP_loop_guided_next",
	"GOMP_loop_runtime_next",
	"GOMP_loop_ordered_static_next",
	"GOMP_loop_ordered_dynamic_next",
	"GOMP_loop_ordered_guided_next",
	"GOMP_loop_ordered_runtime_next",
}

// Combined parallel + worksharing loop entry points.  There are no ordered
// variants; ordered loops are never combined.
var parallelLoopStartNames = [4]string{
	"GOMP_parallel_loop_static_start",
	"GOMP_parallel_loop_dynamic_start",
	"GOMP_parallel_loop_guided_start",
	"GOMP_parallel_loop_runtime_start",
}

func scheduleIndex(kind ir.ScheduleKind, ordered bool) int {
	idx := int(kind)
	if idx < 0 || idx > 3 {
		panic("should never happen")
	}
	if ordered {
		idx += 4
	}
	return idx
}

func LoopStartName(kind ir.ScheduleKind, ordered bool) string {
	return loopStartNames[scheduleIndex(kind, ordered)]
}

func LoopNextName(kind ir.ScheduleKind, ordered bool) string {
	return loopNextNames[scheduleIndex(kind, ordered)]
}

func ParallelLoopStartName(kind ir.ScheduleKind) string {
	return parallelLoopStartNames[scheduleIndex(kind, false)]
}

// Atomic intrinsics, parameterized by element size in bytes.

var fetchOpBases = map[ir.BinaryOp]string{
	ir.Add:    "__sync_fetch_and_add",
	ir.Sub:    "__sync_fetch_and_sub",
	ir.BitAnd: "__sync_fetch_and_and",
	ir.BitOr:  "__sync_fetch_and_or",
	ir.BitXor: "__sync_fetch_and_xor",
}

func validAtomicSize(size int) bool {
	switch size {
	case 1, 2, 4, 8, 16:
		return true
	default:
		return false
	}
}

// FetchOpName returns the intrinsic implementing an atomic read-modify-write
// for op on a size byte operand, or false when no intrinsic form exists for
// the operator.
func FetchOpName(op ir.BinaryOp, size int) (string, bool) {
	base, ok := fetchOpBases[op]
	if !ok || !validAtomicSize(size) {
		return "", false
	}
	return fmt.Sprintf("%s_%d", base, size), true
}

func CompareAndSwapName(size int) string {
	if !validAtomicSize(size) {
		panic("should never happen")
	}
	return fmt.Sprintf("__sync_val_compare_and_swap_%d", size)
}
