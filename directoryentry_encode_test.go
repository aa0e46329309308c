package exfat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildFileEntrySet_LayoutAndChecksum(t *testing.T) {
	ut := NewUpcaseTable()
	now := NewTime(time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC))

	set := BuildFileEntrySet(ut, "hello.txt", false, true, 5, 11, now, now, now)

	// File + StreamExtension + 1 FileName entry (9 code units fits in one 15-unit entry).
	require.Len(t, set, 32*3)
	require.Equal(t, byte(EntryTypeFile), set[0])
	require.Equal(t, byte(EntryTypeStreamExtension), set[32])
	require.Equal(t, byte(EntryTypeFileName), set[64])

	storedChecksum := uint16(set[2]) | uint16(set[3])<<8

	var recomputed uint16
	for i, b := range set {
		if i == 2 || i == 3 {
			continue
		}

		recomputed = (recomputed << 15) + (recomputed >> 1) + uint16(b)
	}

	require.Equal(t, recomputed, storedChecksum)
}

func TestBuildFileEntrySet_MultipleNameEntries(t *testing.T) {
	ut := NewUpcaseTable()
	now := NewTime(time.Now())

	longName := "this-name-is-longer-than-fifteen-utf16-units.txt"

	set := BuildFileEntrySet(ut, longName, false, true, 5, 11, now, now, now)

	units := utf16Units(longName)
	expectedNameEntries := (len(units) + fileNameUnitsPerEntry - 1) / fileNameUnitsPerEntry

	require.Len(t, set, 32*(2+expectedNameEntries))
}

func TestBuildFileEntrySet_DirectoryAttributeBit(t *testing.T) {
	ut := NewUpcaseTable()
	now := NewTime(time.Now())

	set := BuildFileEntrySet(ut, "subdir", true, true, 5, 0, now, now, now)

	attrs := uint16(set[4]) | uint16(set[5])<<8
	require.NotZero(t, attrs&0x10)
}

func TestBuildVolumeLabelEntry_TruncatesTo11Units(t *testing.T) {
	entry := BuildVolumeLabelEntry("ABCDEFGHIJKLMNOP")

	require.Equal(t, byte(EntryTypeVolumeLabel), entry[0])
	require.Equal(t, uint8(11), entry[1])
}

func TestBuildAllocationBitmapEntry_Layout(t *testing.T) {
	entry := BuildAllocationBitmapEntry(0, 5, 512)

	require.Equal(t, byte(EntryTypeAllocationBitmap), entry[0])
}

func TestBuildUpcaseTableEntry_Layout(t *testing.T) {
	entry := BuildUpcaseTableEntry(0xdeadbeef, 6, 1024)

	require.Equal(t, byte(EntryTypeUpcaseTable), entry[0])

	checksum := defaultEncoding.Uint32(entry[4:8])
	require.Equal(t, uint32(0xdeadbeef), checksum)
}

func TestBuildVolumeGuidEntry_ChecksumExcludesOwnField(t *testing.T) {
	var guid [16]byte
	for i := range guid {
		guid[i] = byte(i)
	}

	set := BuildVolumeGuidEntry(guid)

	require.Equal(t, byte(EntryTypeVolumeGuid), set[0])

	storedChecksum := uint16(set[2]) | uint16(set[3])<<8

	var recomputed uint16
	for i, b := range set {
		if i == 2 || i == 3 {
			continue
		}

		recomputed = (recomputed << 15) + (recomputed >> 1) + uint16(b)
	}

	require.Equal(t, recomputed, storedChecksum)
}

func TestNameHash_IsCaseInsensitive(t *testing.T) {
	ut := NewUpcaseTable()

	lower := utf16Units("readme.txt")
	upper := utf16Units("README.TXT")

	require.Equal(t, nameHash(ut, lower), nameHash(ut, upper))
}
