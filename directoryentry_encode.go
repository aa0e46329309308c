package exfat

import (
	"github.com/dsoprea/go-logging"
	"github.com/go-restruct/restruct"
	"golang.org/x/text/encoding/unicode"
)

// Directory-entry type-code bytes (entry-type byte with the in-use bit set),
// per spec.md section 4.5.
const (
	EntryTypeFile             EntryType = 0x85
	EntryTypeStreamExtension  EntryType = 0xC0
	EntryTypeFileName         EntryType = 0xC1
	EntryTypeAllocationBitmap EntryType = 0x81
	EntryTypeUpcaseTable      EntryType = 0x82
	EntryTypeVolumeLabel      EntryType = 0x83
	EntryTypeVolumeGuid       EntryType = 0xA0
)

const fileNameUnitsPerEntry = 15

var utf16LittleEndian = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// encodedSet is a directory entry set's raw bytes, in on-disk order.
type encodedSet []byte

func encodeEntry(x interface{}) []byte {
	data, err := restruct.Pack(defaultEncoding, x)
	log.PanicIf(err)

	if len(data) != 32 {
		padded := make([]byte, 32)
		copy(padded, data)
		data = padded
	}

	return data
}

// checksum16 folds data through the set-checksum/name-hash algorithm: a
// running u16 rotate-right-by-1, c = (c << 15) + (c >> 1) + byte.
func checksum16(data []byte) uint16 {
	var c uint16
	for _, b := range data {
		c = (c << 15) + (c >> 1) + uint16(b)
	}

	return c
}

// utf16Units encodes name as UTF-16LE code units via golang.org/x/text.
func utf16Units(name string) []uint16 {
	encoded, err := utf16LittleEndian.NewEncoder().String(name)
	log.PanicIf(err)

	units := make([]uint16, len(encoded)/2)
	for i := range units {
		units[i] = uint16(encoded[i*2]) | uint16(encoded[i*2+1])<<8
	}

	return units
}

// nameHash computes the StreamExtension name-hash: the checksum16 fold over
// the little-endian bytes of the upper-cased UTF-16 name.
func nameHash(ut *UpcaseTable, units []uint16) uint16 {
	upper := ut.CapitalizeString(units)

	raw := make([]byte, len(upper)*2)
	for i, u := range upper {
		raw[i*2] = byte(u)
		raw[i*2+1] = byte(u >> 8)
	}

	return checksum16(raw)
}

// FatTimestampOf packs a time.Time into the exFAT timestamp triple: the
// packed u32, the 10ms-increment byte, and the signed 15-minute UTC offset
// byte.
func FatTimestampOf(t Time) (packed ExfatTimestamp, tenMs uint8, utcOffset uint8) {
	return t.ToFatTimestamp(), t.Fat10msIncrement(), t.FatUtcOffsetByte()
}

// BuildFileEntrySet encodes the File + StreamExtension + FileName(s) set for
// one file or directory. isDirectory controls the Directory file-attribute
// bit; firstCluster/dataLength describe the data stream (the file's bytes
// for a file, or the directory's own entry-vector chain for a directory).
func BuildFileEntrySet(
	ut *UpcaseTable,
	name string,
	isDirectory bool,
	noFatChain bool,
	firstCluster uint32,
	dataLength uint64,
	createTime, modifiedTime, accessedTime Time,
) []byte {
	units := utf16Units(name)

	nameEntryCount := (len(units) + fileNameUnitsPerEntry - 1) / fileNameUnitsPerEntry
	if nameEntryCount == 0 {
		nameEntryCount = 0
	}

	attrs := FileAttributes(0)
	if isDirectory {
		attrs = FileAttributes(0x10)
	} else {
		attrs = FileAttributes(0x20) // archive
	}

	createPacked, createTenMs, createOffset := FatTimestampOf(createTime)
	modifiedPacked, modifiedTenMs, modifiedOffset := FatTimestampOf(modifiedTime)
	accessedPacked, _, accessedOffset := FatTimestampOf(accessedTime)

	fileEntry := ExfatFileDirectoryEntry{
		EntryType:                 EntryTypeFile,
		SecondaryCountRaw:         uint8(1 + nameEntryCount),
		SetChecksum:               0, // filled below
		FileAttributes:            attrs,
		CreateTimestampRaw:        createPacked,
		LastModifiedTimestampRaw:  modifiedPacked,
		LastAccessedTimestampRaw:  accessedPacked,
		Create10msIncrement:       createTenMs,
		LastModified10msIncrement: modifiedTenMs,
		CreateUtcOffset:           createOffset,
		LastModifiedUtcOffset:     modifiedOffset,
		LastAccessedUtcOffset:     accessedOffset,
	}

	secondaryFlags := GeneralSecondaryFlags(1) // AllocationPossible
	if noFatChain {
		secondaryFlags |= 2
	}

	streamEntry := ExfatStreamExtensionDirectoryEntry{
		EntryType:             EntryTypeStreamExtension,
		GeneralSecondaryFlags: secondaryFlags,
		NameLength:            uint8(len(units)),
		NameHash:              nameHash(ut, units),
		ValidDataLength:       dataLength,
		FirstCluster:          firstCluster,
		DataLength:            dataLength,
	}

	set := make([]byte, 0, 32*(2+nameEntryCount))
	set = append(set, encodeEntry(fileEntry)...)
	set = append(set, encodeEntry(streamEntry)...)

	for i := 0; i < nameEntryCount; i++ {
		start := i * fileNameUnitsPerEntry
		end := start + fileNameUnitsPerEntry
		if end > len(units) {
			end = len(units)
		}

		var raw [30]byte
		for j, u := range units[start:end] {
			raw[j*2] = byte(u)
			raw[j*2+1] = byte(u >> 8)
		}

		nameEntry := ExfatFileNameDirectoryEntry{
			EntryType:             EntryTypeFileName,
			GeneralSecondaryFlags: 0,
			FileName:              raw,
		}

		set = append(set, encodeEntry(nameEntry)...)
	}

	applySetChecksum(set)

	return set
}

// applySetChecksum computes the set-checksum over set (excluding the File
// entry's own checksum field, bytes 2..3) and writes it back into those
// bytes in place.
func applySetChecksum(set []byte) {
	filtered := make([]byte, 0, len(set)-2)
	for i, b := range set {
		if i == 2 || i == 3 {
			continue
		}

		filtered = append(filtered, b)
	}

	c := checksum16(filtered)

	set[2] = byte(c)
	set[3] = byte(c >> 8)
}

// BuildAllocationBitmapEntry encodes an AllocationBitmap directory entry.
// identifier is 0 or 1, used when num_of_fats == 2 to distinguish the two
// bitmap copies.
func BuildAllocationBitmapEntry(identifier uint8, firstCluster uint32, dataLength uint64) []byte {
	entry := ExfatAllocationBitmapDirectoryEntry{
		EntryType:    EntryTypeAllocationBitmap,
		BitmapFlags:  identifier,
		FirstCluster: firstCluster,
		DataLength:   dataLength,
	}

	return encodeEntry(entry)
}

// BuildUpcaseTableEntry encodes an UpcaseTable directory entry.
func BuildUpcaseTableEntry(checksum uint32, firstCluster uint32, dataLength uint64) []byte {
	entry := ExfatUpcaseTableDirectoryEntry{
		EntryType:     EntryTypeUpcaseTable,
		TableChecksum: checksum,
		FirstCluster:  firstCluster,
		DataLength:    dataLength,
	}

	return encodeEntry(entry)
}

// BuildVolumeLabelEntry encodes a VolumeLabel directory entry for label
// (truncated to 11 UTF-16 code units, per spec.md).
func BuildVolumeLabelEntry(label string) []byte {
	units := utf16Units(label)
	if len(units) > 11 {
		units = units[:11]
	}

	var raw [30]byte
	for i, u := range units {
		raw[i*2] = byte(u)
		raw[i*2+1] = byte(u >> 8)
	}

	entry := ExfatVolumeLabelDirectoryEntry{
		EntryType:      EntryTypeVolumeLabel,
		CharacterCount: uint8(len(units)),
		VolumeLabel:    raw,
	}

	return encodeEntry(entry)
}

// BuildVolumeGuidEntry encodes a VolumeGuid directory entry (a one-entry
// "set" whose own set-checksum excludes its own bytes 2..3, same as a File
// set).
func BuildVolumeGuidEntry(guid [16]byte) []byte {
	entry := ExfatVolumeGuidDirectoryEntry{
		EntryType:           EntryTypeVolumeGuid,
		SecondaryCountRaw:   0,
		SetChecksum:         0,
		GeneralPrimaryFlags: 0,
		VolumeGuid:          guid,
	}

	set := encodeEntry(entry)
	applySetChecksum(set)

	return set
}
