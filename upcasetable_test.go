package exfat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpcaseTable_CapitalizeChar(t *testing.T) {
	ut := NewUpcaseTable()

	require.Equal(t, uint16('A'), ut.CapitalizeChar('a'))
	require.Equal(t, uint16('Z'), ut.CapitalizeChar('z'))
	require.Equal(t, uint16('9'), ut.CapitalizeChar('9'))
}

func TestUpcaseTable_CapitalizeString(t *testing.T) {
	ut := NewUpcaseTable()

	units := []uint16{'h', 'e', 'l', 'l', 'o'}
	upper := ut.CapitalizeString(units)

	require.Equal(t, []uint16{'H', 'E', 'L', 'L', 'O'}, upper)
}

func TestUpcaseTable_SerializeAndParseRoundTrip(t *testing.T) {
	ut := NewUpcaseTable()

	serialized := ut.Serialize()
	require.True(t, len(serialized)%2 == 0)

	parsed, err := ParseUpcaseTable(serialized)
	require.NoError(t, err)

	for c := rune('a'); c <= 'z'; c++ {
		require.Equal(t, ut.CapitalizeChar(uint16(c)), parsed.CapitalizeChar(uint16(c)))
	}
}

func TestUpcaseTable_Checksum_StableAcrossCalls(t *testing.T) {
	ut := NewUpcaseTable()

	c1 := ut.Checksum()
	c2 := ut.Checksum()

	require.Equal(t, c1, c2)
	require.NotZero(t, c1)
}

func TestParseUpcaseTable_OddLength(t *testing.T) {
	_, err := ParseUpcaseTable([]byte{0x01, 0x02, 0x03})

	require.Error(t, err)
	require.True(t, IsKind(err, ErrorKindMalformedUpcaseTable))
}
