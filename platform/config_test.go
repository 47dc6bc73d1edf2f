package platform

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	spec, err := ParseConfig([]byte(`
name: rv64
pointer_size: 8
max_align: 16
fetch_op_sizes: [4, 8]
compare_and_swap_sizes: [4, 8]
`))
	require.NoError(t, err)
	require.Equal(t, "rv64", spec.Name())
	require.Equal(t, 8, spec.PointerSize())
	require.True(t, spec.SupportsFetchOp(4))
	require.False(t, spec.SupportsFetchOp(2))
	require.True(t, spec.SupportsCompareAndSwap(8))
	require.False(t, spec.SupportsCompareAndSwap(16))
}

func TestParseConfigMissingName(t *testing.T) {
	_, err := ParseConfig([]byte("pointer_size: 8"))
	require.ErrorContains(t, err, "missing name")
}

func TestParseConfigBadPointerSize(t *testing.T) {
	_, err := ParseConfig([]byte("name: weird\npointer_size: 3"))
	require.ErrorContains(t, err, "unsupported pointer size")
}

func TestParseConfigDefaultMaxAlign(t *testing.T) {
	spec, err := ParseConfig([]byte("name: ilp32\npointer_size: 4"))
	require.NoError(t, err)
	require.Equal(t, 4, spec.MaxAlign)
}

func TestParseConfigMalformedYaml(t *testing.T) {
	_, err := ParseConfig([]byte("name: [unterminated"))
	require.ErrorContains(t, err, "failed to parse")
}
