package exfat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildSampleTree(t *testing.T) (*NodeArena, *ClusterHeap) {
	root := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(root, "alpha.txt"), []byte("alpha contents"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "beta.txt"), []byte("beta"), 0o644))

	heap := NewClusterHeap(512)
	ut := NewUpcaseTable()

	arena, _, err := BuildTree(heap, ut, root, BuildTreeOptions{NumOfFats: 1})
	require.NoError(t, err)

	return arena, heap
}

func TestBuildTree_ProducesRootWithChildren(t *testing.T) {
	arena, heap := buildSampleTree(t)

	root := arena.Root()
	require.True(t, root.IsDirectory)
	require.Len(t, root.Children, 2)
	require.NotZero(t, root.FirstCluster)
	require.NotZero(t, heap.NumberOfClusters())
}

func TestBuildTree_NestedFilePathReconstructs(t *testing.T) {
	arena, _ := buildSampleTree(t)

	var betaIndex = -1

	for i, n := range arena.Nodes {
		if n.Name == "beta.txt" {
			betaIndex = i
		}
	}

	require.NotEqual(t, -1, betaIndex)

	path := arena.Path(betaIndex)
	require.Equal(t, filepath.Join("sub", "beta.txt"), path)
}

func TestBuildTree_WithVolumeGuid(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "x.txt"), []byte("x"), 0o644))

	heap := NewClusterHeap(512)
	ut := NewUpcaseTable()

	_, guid, err := BuildTree(heap, ut, root, BuildTreeOptions{NumOfFats: 1, HasVolumeGuid: true})
	require.NoError(t, err)
	require.NotNil(t, guid)
}

func TestBuildTree_MinimumVolumeSizeEnforced(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "tiny.txt"), []byte("t"), 0o644))

	heap := NewClusterHeap(512)
	ut := NewUpcaseTable()

	_, _, err := BuildTree(heap, ut, root, BuildTreeOptions{NumOfFats: 1})
	require.NoError(t, err)

	require.GreaterOrEqual(t, uint64(heap.NumberOfClusters())*uint64(512), uint64(minimumVolumeSize))
}

func TestBuildAllocationBitmapEntries_CoversOwnClusters(t *testing.T) {
	heap := NewClusterHeap(512)
	heap.Append(make([]byte, 2000), 0)

	before := heap.NumberOfClusters()

	entries := buildAllocationBitmapEntries(heap, 1)

	require.NotEmpty(t, entries)
	require.Greater(t, heap.NumberOfClusters(), before)

	// AllocationBitmap entry: FirstCluster is at bytes 20..23.
	bitmapFirstCluster := defaultEncoding.Uint32(entries[20:24])
	bitmap := ParseAllocationBitmap(heap.ClusterChainBytes(bitmapFirstCluster), heap.NumberOfClusters())
	require.True(t, bitmap.Used(bitmapFirstCluster))
}
