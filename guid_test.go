package exfat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGuid_BytesAndReadGuidRoundTrip(t *testing.T) {
	g, err := NewGuid()
	require.NoError(t, err)

	raw := g.Bytes()
	parsed := ReadGuid(raw)

	require.Equal(t, g.Version, parsed.Version)
	require.Equal(t, g.ClockSequence, parsed.ClockSequence)
	require.Equal(t, g.Node, parsed.Node)
}

func TestGuid_String_Format(t *testing.T) {
	g := NullGuid()

	s := g.String()
	require.Len(t, s, 36)
	require.Equal(t, byte('-'), s[8])
	require.Equal(t, byte('-'), s[13])
	require.Equal(t, byte('-'), s[18])
	require.Equal(t, byte('-'), s[23])
}

func TestNullGuid_IsAllZeroNode(t *testing.T) {
	g := NullGuid()

	for _, b := range g.Node {
		require.Zero(t, b)
	}
}
