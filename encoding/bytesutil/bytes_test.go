package bytesutil_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/preconf-labs/gateway/encoding/bytesutil"
)

func TestToBytes32(t *testing.T) {
	require.Equal(t, [32]byte{1, 2}, bytesutil.ToBytes32([]byte{1, 2}))
	// Oversized input is truncated, not rejected.
	long := make([]byte, 40)
	long[0], long[39] = 7, 9
	require.Equal(t, [32]byte{7}, bytesutil.ToBytes32(long))
}

func TestToBytes4(t *testing.T) {
	require.Equal(t, [4]byte{3, 0, 0, 0}, bytesutil.ToBytes4([]byte{3}))
	require.Equal(t, [4]byte{1, 2, 3, 4}, bytesutil.ToBytes4([]byte{1, 2, 3, 4, 5}))
}

func TestUint64ToBytesLittleEndian(t *testing.T) {
	require.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0, 0}, bytesutil.Uint64ToBytesLittleEndian(1))
	require.Equal(t, []byte{0, 1, 0, 0, 0, 0, 0, 0}, bytesutil.Uint64ToBytesLittleEndian(256))
}

func TestReverseByteOrder(t *testing.T) {
	input := []byte{1, 2, 3, 4}
	require.Equal(t, []byte{4, 3, 2, 1}, bytesutil.ReverseByteOrder(input))
	require.Equal(t, []byte{1, 2, 3, 4}, input)
}

func TestSafeCopyBytes(t *testing.T) {
	require.Nil(t, bytesutil.SafeCopyBytes(nil))
	src := []byte{9, 8}
	cp := bytesutil.SafeCopyBytes(src)
	require.Equal(t, src, cp)
	cp[0] = 0
	require.Equal(t, byte(9), src[0])
}

func TestPadTo(t *testing.T) {
	require.Equal(t, []byte{1, 0, 0, 0}, bytesutil.PadTo([]byte{1}, 4))
	require.Equal(t, []byte{1, 2, 3}, bytesutil.PadTo([]byte{1, 2, 3}, 2))
}
