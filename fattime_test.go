package exfat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTime_ToFatTimestampAndBack(t *testing.T) {
	original := time.Date(2024, time.March, 15, 13, 45, 30, 0, time.UTC)
	tm := NewTime(original)

	packed := tm.ToFatTimestamp()
	tenMs := tm.Fat10msIncrement()

	roundTripped := FromFatTimestamp(packed, tenMs, 0)

	require.Equal(t, original.Year(), roundTripped.Year())
	require.Equal(t, original.Month(), roundTripped.Month())
	require.Equal(t, original.Day(), roundTripped.Day())
	require.Equal(t, original.Hour(), roundTripped.Hour())
	require.Equal(t, original.Minute(), roundTripped.Minute())
	require.Equal(t, original.Second(), roundTripped.Second())
}

func TestTime_Fat10msIncrement_OddSecond(t *testing.T) {
	tm := NewTime(time.Date(2024, time.March, 15, 13, 45, 31, 500000000, time.UTC))

	// Odd second contributes 100 centiseconds, plus half a second (50 centiseconds).
	require.Equal(t, uint8(150), tm.Fat10msIncrement())
}

func TestTime_GuidTimestampRoundTrip(t *testing.T) {
	original := time.Date(2024, time.March, 15, 13, 45, 30, 0, time.UTC)
	tm := NewTime(original)

	ticks := tm.GuidTimestamp()
	roundTripped := FromGuidTimestamp(ticks)

	require.WithinDuration(t, original, roundTripped.Time, time.Microsecond)
}

func TestFromGuidTimestamp_Zero_IsEpoch(t *testing.T) {
	tm := FromGuidTimestamp(0)

	require.Equal(t, guidEpoch, tm.Time)
}
