package exfat

import (
	"github.com/boljen/go-bitmap"
)

// AllocationBitmap is the per-cluster used/free table. Cluster 2 is bit 0;
// cluster (i+2) is bit i. It is itself written into the cluster heap as a
// regular byte stream and referenced by an AllocationBitmap directory entry.
type AllocationBitmap struct {
	bits         bitmap.Bitmap
	clusterCount uint32
}

// NewAllocationBitmapFromUsedFlags builds an AllocationBitmap covering
// clusters [2, 2+clusterCount) from a cluster-number -> used map, as
// produced by ClusterHeap.UsedFlags.
func NewAllocationBitmapFromUsedFlags(used map[uint32]bool, clusterCount uint32) *AllocationBitmap {
	bm := bitmap.New(int(clusterCount))

	for c, isUsed := range used {
		if c < firstDataClusterNumber {
			continue
		}

		i := c - firstDataClusterNumber
		if i >= clusterCount {
			continue
		}

		bm.Set(int(i), isUsed)
	}

	return &AllocationBitmap{bits: bm, clusterCount: clusterCount}
}

// Used reports whether clusterNumber is marked used.
func (ab *AllocationBitmap) Used(clusterNumber uint32) bool {
	if clusterNumber < firstDataClusterNumber {
		return false
	}

	i := clusterNumber - firstDataClusterNumber
	if i >= ab.clusterCount {
		return false
	}

	return ab.bits.Get(int(i))
}

// UsedFlags expands the bitmap back into a cluster-number -> used map.
func (ab *AllocationBitmap) UsedFlags() map[uint32]bool {
	out := make(map[uint32]bool, ab.clusterCount)
	for i := uint32(0); i < ab.clusterCount; i++ {
		out[firstDataClusterNumber+i] = ab.bits.Get(int(i))
	}

	return out
}

// Serialize renders the bitmap as its on-disk byte stream, padded to a whole
// cluster with zero bytes.
func (ab *AllocationBitmap) Serialize(clusterSize uint32) []byte {
	data := []byte(ab.bits)

	byteCount := (ab.clusterCount + 7) / 8
	if uint32(len(data)) < byteCount {
		padded := make([]byte, byteCount)
		copy(padded, data)
		data = padded
	} else {
		data = data[:byteCount]
	}

	if pad := uint32(len(data)) % clusterSize; pad != 0 {
		data = append(data, make([]byte, clusterSize-pad)...)
	}

	return data
}

// ParseAllocationBitmap reads a byte-packed bitmap for clusterCount clusters
// starting at cluster 2.
func ParseAllocationBitmap(data []byte, clusterCount uint32) *AllocationBitmap {
	byteCount := (clusterCount + 7) / 8

	buf := make([]byte, byteCount)
	copy(buf, data)

	return &AllocationBitmap{bits: bitmap.Bitmap(buf), clusterCount: clusterCount}
}
