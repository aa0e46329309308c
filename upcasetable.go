package exfat

import (
	"sort"
	"unicode"

	"github.com/dsoprea/go-logging"
)

// UpcaseTable is the BMP upper-case folding map used for exFAT filename
// comparison and name-hash computation. Only code points whose upper-case
// folding is itself a single BMP scalar are represented; everything else
// folds to itself.
type UpcaseTable struct {
	entries map[uint16]uint16
}

// NewUpcaseTable builds the default table by folding every BMP code point
// through unicode.ToUpper and keeping only the entries that actually change
// and that stay within the BMP.
func NewUpcaseTable() *UpcaseTable {
	entries := make(map[uint16]uint16)

	for c := rune(0); c <= 0xFFFF; c++ {
		upper := unicode.ToUpper(c)
		if upper == c || upper > 0xFFFF || upper < 0 {
			continue
		}

		entries[uint16(c)] = uint16(upper)
	}

	return &UpcaseTable{entries: entries}
}

// CapitalizeChar returns the upper-case folding of c, or c itself when the
// table has no entry for it.
func (ut *UpcaseTable) CapitalizeChar(c uint16) uint16 {
	if upper, found := ut.entries[c]; found {
		return upper
	}

	return c
}

// CapitalizeString folds every UTF-16 code unit in units through
// CapitalizeChar.
func (ut *UpcaseTable) CapitalizeString(units []uint16) []uint16 {
	out := make([]uint16, len(units))
	for i, u := range units {
		out[i] = ut.CapitalizeChar(u)
	}

	return out
}

// Checksum computes the table checksum: c = (c << 15) + (c >> 1) + byte over
// every serialised byte, in a 32-bit accumulator. Distinct from the
// boot-region checksum's fold, which shifts left by 31.
func (ut *UpcaseTable) Checksum() uint32 {
	return checksum32(ut.Serialize())
}

func checksum32(data []byte) uint32 {
	var c uint32
	for _, b := range data {
		c = (c << 15) + (c >> 1) + uint32(b)
	}

	return c
}

// Serialize produces the compressed on-disk representation: a little-endian
// u16 stream where runs of identity entries are replaced by the escape pair
// 0xFFFF, run_length.
func (ut *UpcaseTable) Serialize() []byte {
	keys := make([]uint16, 0, len(ut.entries))
	for k := range ut.entries {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var words []uint16

	var lastKey int32 = -1

	for _, k := range keys {
		gap := int32(k) - lastKey - 1
		if gap > 0 {
			words = append(words, 0xFFFF, uint16(gap))
		}

		words = append(words, ut.entries[k])
		lastKey = int32(k)
	}

	if lastKey >= 0 && lastKey < 0xFFFF {
		words = append(words, 0xFFFF, uint16(0xFFFF-uint32(lastKey)))
	}

	data := make([]byte, len(words)*2)
	for i, w := range words {
		data[i*2] = byte(w)
		data[i*2+1] = byte(w >> 8)
	}

	return data
}

// ParseUpcaseTable decompresses raw into an UpcaseTable. raw must be a
// little-endian u16 stream as produced by Serialize.
func ParseUpcaseTable(raw []byte) (ut *UpcaseTable, err error) {
	defer func() {
		if state := recover(); state != nil {
			err = log.Wrap(state.(error))
		}
	}()

	if len(raw)%2 != 0 {
		return nil, NewKindedError(ErrorKindMalformedUpcaseTable, "odd byte length", nil)
	}

	words := make([]uint16, len(raw)/2)
	for i := range words {
		words[i] = uint16(raw[i*2]) | uint16(raw[i*2+1])<<8
	}

	entries := make(map[uint16]uint16)

	var nextC uint32
	compressed := false

	for _, w := range words {
		if compressed {
			runLength := uint32(w)
			if nextC+runLength > 0x10000 {
				return nil, NewKindedError(ErrorKindMalformedUpcaseTable, "compressed run overflows 0xFFFF", nil)
			}

			nextC += runLength
			compressed = false

			continue
		}

		if w == 0xFFFF {
			compressed = true
			continue
		}

		if nextC > 0xFFFF {
			return nil, NewKindedError(ErrorKindMalformedUpcaseTable, "identity cursor overflowed BMP", nil)
		}

		entries[uint16(nextC)] = w
		nextC++
	}

	return &UpcaseTable{entries: entries}, nil
}
