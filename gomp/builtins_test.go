package gomp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pattyshack/towhee/ir"
)

func TestLoopDispatchNames(t *testing.T) {
	testCases := []struct {
		kind      ir.ScheduleKind
		ordered   bool
		wantStart string
		wantNext  string
	}{
		{ir.ScheduleStatic, false, "GOMP_loop_static_start", "GOMP_loop_static_next"},
		{ir.ScheduleDynamic, false, "GOMP_loop_dynamic_start", "GOMP_loop_dynamic_next"},
		{ir.ScheduleGuided, false, "GOMP_loop_guided_start", "GOMP_loop_guided_next"},
		{ir.ScheduleRuntime, false, "GOMP_loop_runtime_start", "GOMP_loop_runtime_next"},
		{ir.ScheduleStatic, true, "GOMP_loop_ordered_static_start", "GOMP_loop_ordered_static_next"},
		{ir.ScheduleDynamic, true, "GOMP_loop_ordered_dynamic_start", "GOMP_loop_ordered_dynamic_next"},
		{ir.ScheduleGuided, true, "GOMP_loop_ordered_guided_start", "GOMP_loop_ordered_guided_next"},
		{ir.ScheduleRuntime, true, "GOMP_loop_ordered_runtime_start", "GOMP_loop_ordered_runtime_next"},
	}

	for _, testCase := range testCases {
		require.Equal(
			t,
			testCase.wantStart,
			LoopStartName(testCase.kind, testCase.ordered))
		require.Equal(
			t,
			testCase.wantNext,
			LoopNextName(testCase.kind, testCase.ordered))
	}
}

func TestParallelLoopStartNames(t *testing.T) {
	require.Equal(
		t,
		"GOMP_parallel_loop_static_start",
		ParallelLoopStartName(ir.ScheduleStatic))
	require.Equal(
		t,
		"GOMP_parallel_loop_runtime_start",
		ParallelLoopStartName(ir.ScheduleRuntime))
}

func TestFetchOpName(t *testing.T) {
	name, ok := FetchOpName(ir.Add, 4)
	require.True(t, ok)
	require.Equal(t, "__sync_fetch_and_add_4", name)

	name, ok = FetchOpName(ir.BitXor, 8)
	require.True(t, ok)
	require.Equal(t, "__sync_fetch_and_xor_8", name)

	// No intrinsic form for multiplication.
	_, ok = FetchOpName(ir.Mul, 4)
	require.False(t, ok)

	// Unsupported operand size.
	_, ok = FetchOpName(ir.Add, 3)
	require.False(t, ok)
}

func TestCompareAndSwapName(t *testing.T) {
	require.Equal(
		t,
		"__sync_val_compare_and_swap_8",
		CompareAndSwapName(8))

	require.Panics(t, func() { CompareAndSwapName(5) })
}
