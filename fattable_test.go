package exfat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFatTable_SerializeAndParseRoundTrip(t *testing.T) {
	chainMap := map[uint32]uint32{
		2: 3,
		3: 4,
		4: 0,
		5: 0,
	}

	ft := NewFatTable(chainMap)

	serialized := ft.Serialize(512)
	require.Equal(t, 0, len(serialized)%512)

	parsed, err := ParseFatTable(serialized, 4)
	require.NoError(t, err)

	chains, err := parsed.ToChains()
	require.NoError(t, err)

	require.Equal(t, []uint32{2, 3, 4}, chains[2])
	require.Equal(t, []uint32{5}, chains[5])
}

func TestFatTable_ToChains_DetectsCycle(t *testing.T) {
	chainMap := map[uint32]uint32{
		2: 3,
		3: 2,
	}

	ft := NewFatTable(chainMap)

	_, err := ft.ToChains()
	require.Error(t, err)
	require.True(t, IsKind(err, ErrorKindMalformedFat))
}

func TestParseFatTable_RejectsOutOfRangeSuccessor(t *testing.T) {
	data := make([]byte, 16)
	defaultEncoding.PutUint32(data[0:4], fatMediaDescriptorSentinel)
	defaultEncoding.PutUint32(data[4:8], fatEndOfChainSentinel)
	defaultEncoding.PutUint32(data[8:12], 9999)

	_, err := ParseFatTable(data, 2)
	require.Error(t, err)
	require.True(t, IsKind(err, ErrorKindMalformedFat))
}

func TestParseFatTable_RejectsBadByteLength(t *testing.T) {
	_, err := ParseFatTable([]byte{1, 2, 3}, 1)
	require.Error(t, err)
	require.True(t, IsKind(err, ErrorKindMalformedFat))
}

func TestFatTable_SectorsPerFat(t *testing.T) {
	chainMap := map[uint32]uint32{2: 0}

	ft := NewFatTable(chainMap)

	require.Equal(t, uint32(1), ft.SectorsPerFat(512))
}
