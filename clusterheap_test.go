package exfat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClusterHeap_AppendSingleCluster(t *testing.T) {
	heap := NewClusterHeap(512)

	first := heap.Append([]byte("hello"), 0)
	require.Equal(t, uint32(2), first)

	data := heap.ClusterChainBytes(first)
	require.Len(t, data, 512)
	require.Equal(t, []byte("hello"), data[:5])
}

func TestClusterHeap_AppendMultiCluster(t *testing.T) {
	heap := NewClusterHeap(8)

	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(i)
	}

	first := heap.Append(payload, 0)
	chain := heap.ClusterChainMap()

	require.Equal(t, uint32(2), first)
	require.Equal(t, uint32(3), chain[2])
	require.Equal(t, uint32(4), chain[3])
	require.Equal(t, uint32(0), chain[4])

	data := heap.ClusterChainBytes(first)
	require.Equal(t, payload, data[:20])
}

func TestClusterHeap_AppendEmptyReturnsZero(t *testing.T) {
	heap := NewClusterHeap(512)

	first := heap.Append(nil, 0)
	require.Equal(t, uint32(0), first)
}

func TestClusterHeap_FixSize(t *testing.T) {
	heap := NewClusterHeap(512)

	heap.Append([]byte("x"), 0)
	heap.FixSize(512 * 4)

	require.Equal(t, uint32(4), heap.NumberOfClusters())
}

func TestClusterHeap_UsedFlags(t *testing.T) {
	heap := NewClusterHeap(512)

	first := heap.Append([]byte("x"), 0)
	used := heap.UsedFlags()

	require.True(t, used[first])
}
