package exfat

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleBuildOptions(t *testing.T) BuildOptions {
	root := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(root, "one.txt"), []byte("one contents"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "dir", "two.txt"), []byte("two contents"), 0o644))

	return BuildOptions{
		Template:          BootSectorHeader{},
		SourcePath:        root,
		SectorSize:        512,
		SectorsPerCluster: 8,
		NumberOfFats:      1,
		VolumeSerial:      0x12345678,
	}
}

func TestBuild_HappyPath(t *testing.T) {
	ex, err := Build(sampleBuildOptions(t))
	require.NoError(t, err)
	require.NotNil(t, ex)

	require.Equal(t, ex.Heap.NumberOfClusters(), ex.BootSector.ClusterCount)
	require.Equal(t, ex.Arena.Root().FirstCluster, ex.BootSector.FirstClusterOfRootDirectory)
	require.Equal(t, uint8(1), ex.BootSector.NumberOfFats)
}

func TestBuild_RejectsEmptySourcePath(t *testing.T) {
	opts := sampleBuildOptions(t)
	opts.SourcePath = ""

	ex, err := Build(opts)
	require.Error(t, err)
	require.Nil(t, ex)
}

func TestVerifyBuildInvariants_RejectsBadSectorSize(t *testing.T) {
	opts := sampleBuildOptions(t)
	opts.SectorSize = 128

	_, err := Build(opts)
	require.Error(t, err)
}

func TestVerifyBuildInvariants_RejectsBadFatCount(t *testing.T) {
	opts := sampleBuildOptions(t)
	opts.NumberOfFats = 3

	_, err := Build(opts)
	require.Error(t, err)
}

func TestExfat_Bytes_LengthMatchesComponents(t *testing.T) {
	ex, err := Build(sampleBuildOptions(t))
	require.NoError(t, err)

	out := ex.Bytes()

	bootRegionLen := 12 * int(ex.sectorSize)
	fatLen := len(ex.Fat.Serialize(ex.sectorSize))
	heapLen := len(ex.Heap.Bytes())

	expected := 2*bootRegionLen + int(ex.BootSector.NumberOfFats)*fatLen + heapLen

	require.Len(t, out, expected)
}

// nodeShape captures the part of a BuildNode that must survive a build/parse
// round trip: name, kind, and byte content, independent of cluster-number
// assignment (which Build and ParseExfat need not agree on).
type nodeShape struct {
	name        string
	isDirectory bool
	content     string
	children    []nodeShape
}

func shapeOf(heap *ClusterHeap, arena *NodeArena, index int) nodeShape {
	n := arena.Nodes[index]

	children := make([]nodeShape, 0, len(n.Children))
	for _, childIndex := range n.Children {
		children = append(children, shapeOf(heap, arena, childIndex))
	}

	sort.Slice(children, func(i, j int) bool { return children[i].name < children[j].name })

	var content string
	if !n.IsDirectory && n.FirstCluster != 0 {
		raw := heap.ClusterChainBytes(n.FirstCluster)
		if uint64(len(raw)) > n.DataLength {
			raw = raw[:n.DataLength]
		}

		content = string(raw)
	}

	return nodeShape{name: n.Name, isDirectory: n.IsDirectory, content: content, children: children}
}

func TestBuildThenParseExfat_RoundTrip(t *testing.T) {
	ex, err := Build(sampleBuildOptions(t))
	require.NoError(t, err)

	raw := ex.Bytes()

	parsed, err := ParseExfat(ParseExfatOptions{ReadSeeker: bytes.NewReader(raw)})
	require.NoError(t, err)
	require.NotNil(t, parsed)

	require.Equal(t, ex.BootSector.ClusterCount, parsed.BootSector.ClusterCount)
	require.Equal(t, ex.BootSector.FirstClusterOfRootDirectory, parsed.BootSector.FirstClusterOfRootDirectory)
	require.NotEmpty(t, parsed.Heap.Bytes())

	require.NotNil(t, parsed.Arena)
	require.NotNil(t, parsed.UpcaseTbl)
	require.Equal(t, ex.UpcaseTbl.Checksum(), parsed.UpcaseTbl.Checksum())

	// The root directory itself has no on-disk name (BuildTree's root node
	// name is just the host directory's basename, an artifact of the build
	// side that does not round-trip); compare the root's children instead.
	builtShape := shapeOf(ex.Heap, ex.Arena, 0)
	parsedShape := shapeOf(parsed.Heap, parsed.Arena, 0)

	require.Equal(t, builtShape.children, parsedShape.children)
}
