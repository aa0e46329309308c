package exfat

// firstDataClusterNumber is the first cluster number issued by the heap;
// clusters 0 and 1 are reserved (they map to the FAT's media-descriptor and
// end-of-chain sentinels).
const firstDataClusterNumber = 2

// ClusterHeap owns the data clusters of a volume being built or parsed. It
// is the single mutable owner of cluster-number assignment during a build
// (see the concurrency notes on sequential, depth-first append order).
type ClusterHeap struct {
	clusterSize uint32
	chains      map[uint32][]uint32 // first cluster -> ordered cluster numbers
	bytes       map[uint32][]byte   // cluster number -> its cluster_size bytes
	used        map[uint32]bool
	next        uint32
}

// NewClusterHeap returns an empty heap for the given cluster size in bytes.
func NewClusterHeap(clusterSize uint32) *ClusterHeap {
	return &ClusterHeap{
		clusterSize: clusterSize,
		chains:      make(map[uint32][]uint32),
		bytes:       make(map[uint32][]byte),
		used:        make(map[uint32]bool),
		next:        firstDataClusterNumber,
	}
}

// Append splits data into cluster_size slices (padding the final slice with
// fillByte), assigns the next contiguous cluster numbers, and records the
// resulting chain. It returns 0, the "no cluster allocated" sentinel, when
// data is empty.
func (ch *ClusterHeap) Append(data []byte, fillByte byte) (firstCluster uint32) {
	if len(data) == 0 {
		return 0
	}

	numClusters := (uint32(len(data)) + ch.clusterSize - 1) / ch.clusterSize

	chain := make([]uint32, 0, numClusters)

	for i := uint32(0); i < numClusters; i++ {
		clusterNumber := ch.next
		ch.next++

		start := i * ch.clusterSize
		end := start + ch.clusterSize
		if end > uint32(len(data)) {
			end = uint32(len(data))
		}

		buf := make([]byte, ch.clusterSize)
		for j := range buf {
			buf[j] = fillByte
		}

		copy(buf, data[start:end])

		ch.bytes[clusterNumber] = buf
		ch.used[clusterNumber] = true
		chain = append(chain, clusterNumber)
	}

	firstCluster = chain[0]
	ch.chains[firstCluster] = chain

	return firstCluster
}

// ClusterChainBytes concatenates the bytes of the chain beginning at
// firstCluster. It returns nil when firstCluster is not a known chain head.
func (ch *ClusterHeap) ClusterChainBytes(firstCluster uint32) []byte {
	chain, found := ch.chains[firstCluster]
	if !found {
		return nil
	}

	out := make([]byte, 0, len(chain)*int(ch.clusterSize))
	for _, c := range chain {
		out = append(out, ch.bytes[c]...)
	}

	return out
}

// FixSize appends single-cluster, all-zero, unused clusters until the heap's
// total byte size reaches target. It is used to enforce the exFAT minimum
// volume size.
func (ch *ClusterHeap) FixSize(target uint64) {
	for uint64(ch.NumberOfClusters())*uint64(ch.clusterSize) < target {
		clusterNumber := ch.next
		ch.next++

		ch.bytes[clusterNumber] = make([]byte, ch.clusterSize)
		ch.used[clusterNumber] = false
	}
}

// NumberOfClusters returns the count of clusters issued so far, used or not.
func (ch *ClusterHeap) NumberOfClusters() uint32 {
	return ch.next - firstDataClusterNumber
}

// UsedFlags returns cluster-number -> used for every cluster the heap knows
// about.
func (ch *ClusterHeap) UsedFlags() map[uint32]bool {
	out := make(map[uint32]bool, len(ch.used))
	for k, v := range ch.used {
		out[k] = v
	}

	return out
}

// SetUsedFlags imports used/free state read from an on-disk allocation
// bitmap, overwriting whatever this heap had inferred on its own. Used when
// reconstructing a heap from a parsed image.
func (ch *ClusterHeap) SetUsedFlags(bitmap map[uint32]bool) {
	for k, v := range bitmap {
		ch.used[k] = v
	}
}

// ClusterChainMap returns cluster-number -> next cluster-number (0 meaning
// "no successor") as consumed by the FAT builder.
func (ch *ClusterHeap) ClusterChainMap() map[uint32]uint32 {
	out := make(map[uint32]uint32)

	for _, chain := range ch.chains {
		for i, c := range chain {
			if i+1 < len(chain) {
				out[c] = chain[i+1]
			} else {
				out[c] = 0
			}
		}
	}

	return out
}

// Bytes renders the full heap, cluster 2 through the highest issued cluster
// number, as one contiguous buffer, in cluster-number order.
func (ch *ClusterHeap) Bytes() []byte {
	out := make([]byte, 0, int(ch.NumberOfClusters())*int(ch.clusterSize))

	for c := uint32(firstDataClusterNumber); c < ch.next; c++ {
		buf, found := ch.bytes[c]
		if !found {
			buf = make([]byte, ch.clusterSize)
		}

		out = append(out, buf...)
	}

	return out
}

// ReadClusterHeap reconstructs a ClusterHeap from a flat post-cluster-heap-
// offset byte buffer and the chain-of-successors map recovered from the
// FAT. chains maps a chain's first cluster to its ordered member clusters,
// matching FatTable.ToChains's output.
func ReadClusterHeap(data []byte, clusterSize uint32, chains map[uint32][]uint32, clusterCount uint32) *ClusterHeap {
	ch := NewClusterHeap(clusterSize)
	ch.next = firstDataClusterNumber + clusterCount

	for c := uint32(0); c < clusterCount; c++ {
		clusterNumber := firstDataClusterNumber + c
		start := uint64(c) * uint64(clusterSize)
		end := start + uint64(clusterSize)

		if start >= uint64(len(data)) {
			break
		}

		if end > uint64(len(data)) {
			end = uint64(len(data))
		}

		buf := make([]byte, clusterSize)
		copy(buf, data[start:end])
		ch.bytes[clusterNumber] = buf
	}

	for first, chain := range chains {
		ch.chains[first] = chain
	}

	return ch
}
