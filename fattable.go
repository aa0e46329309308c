package exfat

import (
	"encoding/binary"

	"github.com/dsoprea/go-logging"
)

const (
	fatMediaDescriptorSentinel = 0xFFFFFFF8
	fatEndOfChainSentinel      = 0xFFFFFFFF
)

// FatTable is the build/parse-independent representation of a File
// Allocation Table: a cluster-number -> optional-next-cluster-number
// mapping, together with its sector-aligned serialisation.
type FatTable struct {
	next map[uint32]uint32 // 0 means "no successor" (terminal)
}

// NewFatTable derives a FatTable from a cluster heap's chain map.
func NewFatTable(chainMap map[uint32]uint32) *FatTable {
	next := make(map[uint32]uint32, len(chainMap))
	for k, v := range chainMap {
		next[k] = v
	}

	return &FatTable{next: next}
}

// SectorsPerFat returns ceil(serialised length / sectorSize).
func (ft *FatTable) SectorsPerFat(sectorSize uint32) uint32 {
	serialisedLen := uint32(len(ft.Serialize(sectorSize)))

	return (serialisedLen + sectorSize - 1) / sectorSize
}

// Serialize produces the little-endian u32 FAT stream: entry 0 is the media
// descriptor sentinel, entry 1 is the end-of-chain sentinel, and entries
// 2..=maxCluster carry each cluster's successor or the end-of-chain
// sentinel. The stream is padded with 0xFF bytes to a sectorSize boundary.
func (ft *FatTable) Serialize(sectorSize uint32) []byte {
	maxCluster := uint32(firstDataClusterNumber - 1)
	for c := range ft.next {
		if c > maxCluster {
			maxCluster = c
		}
	}

	entryCount := maxCluster + 1
	data := make([]byte, entryCount*4)

	binary.LittleEndian.PutUint32(data[0:4], fatMediaDescriptorSentinel)
	binary.LittleEndian.PutUint32(data[4:8], fatEndOfChainSentinel)

	for c := uint32(firstDataClusterNumber); c <= maxCluster; c++ {
		value := uint32(fatEndOfChainSentinel)
		if next, found := ft.next[c]; found && next != 0 {
			value = next
		}

		binary.LittleEndian.PutUint32(data[c*4:c*4+4], value)
	}

	if pad := len(data) % int(sectorSize); pad != 0 {
		padding := make([]byte, int(sectorSize)-pad)
		for i := range padding {
			padding[i] = 0xFF
		}

		data = append(data, padding...)
	}

	return data
}

// ParseFatTable reads a little-endian u32 FAT stream and restricts entries
// to the valid cluster range [2, 2+clusterCount). Values below 2 and values
// at or above the media-descriptor sentinel mark a terminal (or unused)
// cluster; a successor at or beyond 2+clusterCount is a malformed-FAT error.
func ParseFatTable(data []byte, clusterCount uint32) (ft *FatTable, err error) {
	defer func() {
		if state := recover(); state != nil {
			err = log.Wrap(state.(error))
		}
	}()

	if len(data)%4 != 0 {
		return nil, NewKindedError(ErrorKindMalformedFat, "FAT byte length not a multiple of 4", nil)
	}

	entryCount := uint32(len(data) / 4)

	next := make(map[uint32]uint32)

	upperBound := firstDataClusterNumber + clusterCount

	for c := uint32(firstDataClusterNumber); c < entryCount && c < upperBound; c++ {
		value := binary.LittleEndian.Uint32(data[c*4 : c*4+4])

		if value >= fatMediaDescriptorSentinel || value < firstDataClusterNumber {
			// terminal or unused: recorded with no successor (0).
			next[c] = 0
			continue
		}

		if value >= upperBound {
			return nil, NewKindedError(ErrorKindMalformedFat, "successor outside valid cluster range", nil)
		}

		next[c] = value
	}

	return &FatTable{next: next}, nil
}

// ToChains folds (cluster, next) pairs into first-cluster -> ordered member
// clusters. A chain head is any cluster that is never the target of another
// cluster's successor edge; each chain is then walked from its head to its
// terminal member (one whose successor is 0). A chain that revisits a
// cluster, or a cluster that no chain head reaches (it sits on a cycle), is
// a malformed-FAT error.
func (ft *FatTable) ToChains() (map[uint32][]uint32, error) {
	isSuccessorOfSomeone := make(map[uint32]bool, len(ft.next))
	for _, next := range ft.next {
		isSuccessorOfSomeone[next] = true
	}

	chains := make(map[uint32][]uint32)
	visited := make(map[uint32]bool, len(ft.next))

	for c := range ft.next {
		if isSuccessorOfSomeone[c] {
			continue
		}

		chain := []uint32{c}
		seen := map[uint32]bool{c: true}
		visited[c] = true

		cur := c
		for {
			next, hasNext := ft.next[cur]
			if !hasNext || next == 0 {
				break
			}

			if seen[next] {
				return nil, NewKindedError(ErrorKindMalformedFat, "cycle detected in cluster chain", nil)
			}

			chain = append(chain, next)
			seen[next] = true
			visited[next] = true
			cur = next
		}

		chains[c] = chain
	}

	for c := range ft.next {
		if !visited[c] {
			return nil, NewKindedError(ErrorKindMalformedFat, "cycle detected in cluster chain", nil)
		}
	}

	return chains, nil
}
