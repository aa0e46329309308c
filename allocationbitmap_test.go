package exfat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocationBitmap_RoundTrip(t *testing.T) {
	used := map[uint32]bool{
		2: true,
		3: false,
		4: true,
		5: false,
	}

	ab := NewAllocationBitmapFromUsedFlags(used, 4)

	require.True(t, ab.Used(2))
	require.False(t, ab.Used(3))
	require.True(t, ab.Used(4))
	require.False(t, ab.Used(5))
}

func TestAllocationBitmap_Serialize_PadsToClusterSize(t *testing.T) {
	used := map[uint32]bool{2: true}

	ab := NewAllocationBitmapFromUsedFlags(used, 4)
	serialized := ab.Serialize(512)

	require.Len(t, serialized, 512)
	require.Equal(t, byte(1), serialized[0]&0x01)
}

func TestParseAllocationBitmap(t *testing.T) {
	data := []byte{0b00000101} // clusters 2 and 4 used

	ab := ParseAllocationBitmap(data, 4)

	require.True(t, ab.Used(2))
	require.False(t, ab.Used(3))
	require.True(t, ab.Used(4))
	require.False(t, ab.Used(5))
}

func TestAllocationBitmap_UsedFlags_ExpandsFull(t *testing.T) {
	used := map[uint32]bool{2: true, 3: true}

	ab := NewAllocationBitmapFromUsedFlags(used, 2)
	out := ab.UsedFlags()

	require.Len(t, out, 2)
	require.True(t, out[2])
	require.True(t, out[3])
}
