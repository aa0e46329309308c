package exfat

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// builtReader assembles a small volume via Build and hands back a read-side
// ExfatReader over its serialised bytes, so the legacy read path (tree.go,
// navigator.go) can be exercised against data this module produced itself
// instead of a missing pre-built fixture image.
func builtReader(t *testing.T) *ExfatReader {
	root := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("aaa"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("bbb"), 0o644))

	ex, err := Build(BuildOptions{
		SourcePath:        root,
		SectorSize:        512,
		SectorsPerCluster: 8,
		NumberOfFats:      1,
	})
	require.NoError(t, err)

	er := NewExfatReader(bytes.NewReader(ex.Bytes()))
	require.NoError(t, er.Parse())

	return er
}

func TestTree_LoadAndList(t *testing.T) {
	er := builtReader(t)

	tree := NewTree(er)
	require.NoError(t, tree.Load())

	files, nodes, err := tree.List()
	require.NoError(t, err)

	require.Contains(t, files, "a.txt")
	require.Contains(t, files, `sub`)
	require.Contains(t, files, `sub\b.txt`)

	node := nodes["a.txt"]
	require.NotNil(t, node)
	require.False(t, node.IsDirectory())
	require.NotNil(t, node.FileDirectoryEntry())
	require.NotNil(t, node.IndexedDirectoryEntry())
}

func TestTree_Lookup(t *testing.T) {
	er := builtReader(t)

	tree := NewTree(er)
	require.NoError(t, tree.Load())

	node, err := tree.Lookup([]string{"sub", "b.txt"})
	require.NoError(t, err)
	require.NotNil(t, node)
	require.False(t, node.IsDirectory())
}
