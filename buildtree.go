package exfat

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/dsoprea/go-logging"
)

// volumeLabel is the literal label the builder stamps on every volume, per
// spec.md section 4.6.
const volumeLabel = "THEOS"

// minimumVolumeSize is exFAT's minimum volume size, 2^20 bytes.
const minimumVolumeSize = 1 << 20

// BuildNode is one arena-indexed element of the in-memory tree built from a
// host directory. Parent/child links are plain indices, not pointers or
// weak handles, so the tree never needs boxed recursion or reference
// counting (see the design notes on avoiding Rc/Weak).
type BuildNode struct {
	Name         string
	IsDirectory  bool
	FirstCluster uint32
	DataLength   uint64
	ParentIndex  int // -1 for the root
	Children     []int

	CreateTime   Time
	ModifiedTime Time
	AccessedTime Time
}

// NodeArena owns every BuildNode produced by a build. Index 0 is always the
// root.
type NodeArena struct {
	Nodes []*BuildNode
}

func (a *NodeArena) add(n *BuildNode) int {
	a.Nodes = append(a.Nodes, n)
	return len(a.Nodes) - 1
}

// Root returns the arena's root node.
func (a *NodeArena) Root() *BuildNode {
	return a.Nodes[0]
}

// Path reconstructs the destination path of the node at index by walking
// parent indices up to the root.
func (a *NodeArena) Path(index int) string {
	var parts []string

	for index != -1 {
		n := a.Nodes[index]
		if n.ParentIndex != -1 {
			parts = append([]string{n.Name}, parts...)
		}

		index = n.ParentIndex
	}

	return filepath.Join(parts...)
}

// BuildTreeOptions controls host-tree construction.
type BuildTreeOptions struct {
	HasVolumeGuid bool
	NumOfFats     int
}

// BuildTree walks rootPath on the host, appending file bytes and directory
// entry-vectors into heap, and returns the resulting arena and the volume
// GUID, if one was generated.
func BuildTree(heap *ClusterHeap, ut *UpcaseTable, rootPath string, opts BuildTreeOptions) (arena *NodeArena, volumeGuid *Guid, err error) {
	defer func() {
		if state := recover(); state != nil {
			err = log.Wrap(state.(error))
		}
	}()

	arena = &NodeArena{}

	rootIndex, rootEntries, err := buildChildren(heap, arena, ut, -1, rootPath)
	log.PanicIf(err)

	upcaseBytes := ut.Serialize()
	upcaseFirstCluster := heap.Append(upcaseBytes, 0)
	rootEntries = append(rootEntries, BuildUpcaseTableEntry(ut.Checksum(), upcaseFirstCluster, uint64(len(upcaseBytes)))...)

	rootEntries = append(rootEntries, BuildVolumeLabelEntry(volumeLabel)...)

	var guid *Guid

	if opts.HasVolumeGuid {
		g, guidErr := NewGuid()
		log.PanicIf(guidErr)

		guid = &g
		rootEntries = append(rootEntries, BuildVolumeGuidEntry(g.Bytes())...)
	}

	heap.FixSize(minimumVolumeSize)

	bitmapEntries := buildAllocationBitmapEntries(heap, opts.NumOfFats)
	rootEntries = append(rootEntries, bitmapEntries...)

	rootFirstCluster := heap.Append(rootEntries, 0)

	root := arena.Nodes[rootIndex]
	root.FirstCluster = rootFirstCluster
	root.DataLength = uint64(len(rootEntries))

	return arena, guid, nil
}

// buildAllocationBitmapEntries determines the converged number of bitmap
// clusters (appending bitmap clusters can itself grow the cluster count,
// possibly requiring one more bitmap cluster), then appends numOfFats
// copies of the bitmap covering every cluster, including the bitmap's own,
// and returns the encoded AllocationBitmap directory entries.
func buildAllocationBitmapEntries(heap *ClusterHeap, numOfFats int) []byte {
	baseClusterCount := heap.NumberOfClusters()
	clusterSize := heap.clusterSize

	finalClusterCount := baseClusterCount

	for {
		bitmapByteLen := (finalClusterCount + 7) / 8
		bitmapClusters := (bitmapByteLen + clusterSize - 1) / clusterSize
		candidate := baseClusterCount + bitmapClusters*uint32(numOfFats)

		if candidate == finalClusterCount {
			break
		}

		finalClusterCount = candidate
	}

	used := heap.UsedFlags()
	for c := baseClusterCount + firstDataClusterNumber; c < finalClusterCount+firstDataClusterNumber; c++ {
		used[c] = true
	}

	bitmap := NewAllocationBitmapFromUsedFlags(used, finalClusterCount)
	bitmapBytes := bitmap.Serialize(clusterSize)

	var entries []byte

	for i := 0; i < numOfFats; i++ {
		firstCluster := heap.Append(bitmapBytes, 0)
		entries = append(entries, BuildAllocationBitmapEntry(uint8(i), firstCluster, uint64(len(bitmapBytes)))...)
	}

	return entries
}

// buildChildren recursively builds the BuildNode for every entry of path (a
// host directory), in host directory-iteration order sorted by name for
// determinism, and returns the new directory's arena index plus the raw
// bytes of its children's directory-entry sets (not yet including any
// root-only special entries).
func buildChildren(heap *ClusterHeap, arena *NodeArena, ut *UpcaseTable, parentIndex int, path string) (index int, childEntryBytes []byte, err error) {
	info, statErr := os.Stat(path)
	if statErr != nil {
		return 0, nil, NewKindedError(ErrorKindHostIoError, path, statErr)
	}

	node := &BuildNode{
		Name:         filepath.Base(path),
		IsDirectory:  true,
		ParentIndex:  parentIndex,
		CreateTime:   NewTime(info.ModTime()),
		ModifiedTime: NewTime(info.ModTime()),
		AccessedTime: NewTime(info.ModTime()),
	}

	index = arena.add(node)

	entries, err := os.ReadDir(path)
	if err != nil {
		return 0, nil, NewKindedError(ErrorKindHostIoError, path, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		childPath := filepath.Join(path, entry.Name())

		var (
			entrySet  []byte
			childIndex int
			childNode *BuildNode
		)

		if entry.IsDir() {
			var childBytes []byte

			childIndex, childBytes, err = buildChildren(heap, arena, ut, index, childPath)
			if err != nil {
				return 0, nil, err
			}

			childNode = arena.Nodes[childIndex]
			chainFirstCluster := heap.Append(childBytes, 0)
			childNode.FirstCluster = chainFirstCluster
			childNode.DataLength = uint64(len(childBytes))

			entrySet = BuildFileEntrySet(ut, entry.Name(), true, true, chainFirstCluster, uint64(len(childBytes)), childNode.CreateTime, childNode.ModifiedTime, childNode.AccessedTime)
		} else {
			data, readErr := os.ReadFile(childPath)
			if readErr != nil {
				return 0, nil, NewKindedError(ErrorKindHostIoError, childPath, readErr)
			}

			childInfo, infoErr := entry.Info()
			if infoErr != nil {
				return 0, nil, NewKindedError(ErrorKindHostIoError, childPath, infoErr)
			}

			firstCluster := heap.Append(data, 0)

			childNode = &BuildNode{
				Name:         entry.Name(),
				IsDirectory:  false,
				ParentIndex:  index,
				FirstCluster: firstCluster,
				DataLength:   uint64(len(data)),
				CreateTime:   NewTime(childInfo.ModTime()),
				ModifiedTime: NewTime(childInfo.ModTime()),
				AccessedTime: NewTime(childInfo.ModTime()),
			}

			childIndex = arena.add(childNode)

			entrySet = BuildFileEntrySet(ut, entry.Name(), false, true, firstCluster, uint64(len(data)), childNode.CreateTime, childNode.ModifiedTime, childNode.AccessedTime)
		}

		arena.Nodes[index].Children = append(arena.Nodes[index].Children, childIndex)
		childEntryBytes = append(childEntryBytes, entrySet...)
	}

	return index, childEntryBytes, nil
}

// ParseTree decodes the node tree rooted at rootFirstCluster back out of an
// already-parsed cluster heap: the reverse of BuildTree. It decodes the
// root's own entry-vector via heap.ClusterChainBytes, recurses into every
// directory it finds, and along the way decodes the root directory's
// AllocationBitmap entry to repopulate the heap's used-flags, its
// UpcaseTable entry into the returned UpcaseTable, and its VolumeGuid entry
// (if present) into the returned Guid.
func ParseTree(heap *ClusterHeap, rootFirstCluster uint32) (arena *NodeArena, ut *UpcaseTable, volumeGuid *Guid, err error) {
	defer func() {
		if state := recover(); state != nil {
			err = log.Wrap(state.(error))
		}
	}()

	arena = &NodeArena{}

	rootIndex := arena.add(&BuildNode{
		IsDirectory:  true,
		FirstCluster: rootFirstCluster,
		ParentIndex:  -1,
	})

	rootBytes := heap.ClusterChainBytes(rootFirstCluster)

	index, decodeErr := decodeDirectoryIndex(rootBytes)
	log.PanicIf(decodeErr)

	if utdeList, found := index["UpcaseTable"]; found && len(utdeList) > 0 {
		utde := utdeList[0].PrimaryEntry.(*ExfatUpcaseTableDirectoryEntry)

		raw := heap.ClusterChainBytes(utde.FirstCluster)
		if uint64(len(raw)) > utde.DataLength {
			raw = raw[:utde.DataLength]
		}

		ut, err = ParseUpcaseTable(raw)
		log.PanicIf(err)
	} else {
		ut = NewUpcaseTable()
	}

	if abdeList, found := index["AllocationBitmap"]; found && len(abdeList) > 0 {
		abde := abdeList[0].PrimaryEntry.(*ExfatAllocationBitmapDirectoryEntry)

		raw := heap.ClusterChainBytes(abde.FirstCluster)
		bitmap := ParseAllocationBitmap(raw, heap.NumberOfClusters())
		heap.SetUsedFlags(bitmap.UsedFlags())
	}

	if vgdeList, found := index["VolumeGuid"]; found && len(vgdeList) > 0 {
		vgde := vgdeList[0].PrimaryEntry.(*ExfatVolumeGuidDirectoryEntry)

		g := ReadGuid(vgde.VolumeGuid)
		volumeGuid = &g
	}

	parseErr := parseChildren(heap, arena, rootIndex, index)
	log.PanicIf(parseErr)

	return arena, ut, volumeGuid, nil
}

// parseChildren decodes every File entry in index into a BuildNode under
// parentIndex, recursing into directories by decoding their own
// entry-vector chain the same way ParseTree decoded the root's.
func parseChildren(heap *ClusterHeap, arena *NodeArena, parentIndex int, index DirectoryEntryIndex) error {
	fileIdeList, found := index["File"]
	if !found {
		return nil
	}

	for _, ide := range fileIdeList {
		fde := ide.PrimaryEntry.(*ExfatFileDirectoryEntry)

		var sede *ExfatStreamExtensionDirectoryEntry
		for _, secondary := range ide.SecondaryEntries {
			if s, ok := secondary.(*ExfatStreamExtensionDirectoryEntry); ok {
				sede = s
				break
			}
		}

		if sede == nil {
			return NewKindedError(ErrorKindMalformedDirectory, "File entry missing its StreamExtension", nil)
		}

		name, _ := ide.Extra["complete_filename"].(string)
		isDirectory := fde.FileAttributes.IsDirectory()

		node := &BuildNode{
			Name:         name,
			IsDirectory:  isDirectory,
			FirstCluster: sede.FirstCluster,
			DataLength:   sede.DataLength,
			ParentIndex:  parentIndex,
			CreateTime:   FromFatTimestamp(fde.CreateTimestampRaw, fde.Create10msIncrement, int8(fde.CreateUtcOffset)),
			ModifiedTime: FromFatTimestamp(fde.LastModifiedTimestampRaw, fde.LastModified10msIncrement, int8(fde.LastModifiedUtcOffset)),
			AccessedTime: FromFatTimestamp(fde.LastAccessedTimestampRaw, 0, int8(fde.LastAccessedUtcOffset)),
		}

		childIndex := arena.add(node)
		arena.Nodes[parentIndex].Children = append(arena.Nodes[parentIndex].Children, childIndex)

		if !isDirectory {
			continue
		}

		childBytes := heap.ClusterChainBytes(sede.FirstCluster)
		if uint64(len(childBytes)) > sede.DataLength {
			childBytes = childBytes[:sede.DataLength]
		}

		childDirIndex, decodeErr := decodeDirectoryIndex(childBytes)
		if decodeErr != nil {
			return decodeErr
		}

		if childErr := parseChildren(heap, arena, childIndex, childDirIndex); childErr != nil {
			return childErr
		}
	}

	return nil
}

// decodeDirectoryIndex decodes a raw directory-entry-vector byte stream (as
// returned by ClusterHeap.ClusterChainBytes) into the same indexed form
// navigator.go's IndexDirectoryEntries produces from a live reader: each
// primary entry is grouped with the secondary entries its own
// SecondaryCount declares.
func decodeDirectoryIndex(data []byte) (DirectoryEntryIndex, error) {
	index := make(DirectoryEntryIndex)

	var primaryEntry DirectoryEntry
	var secondaryEntries []DirectoryEntry

	for i := 0; i+directoryEntryBytesCount <= len(data); i += directoryEntryBytesCount {
		raw := data[i : i+directoryEntryBytesCount]
		entryType := EntryType(raw[0])

		if entryType.IsEndOfDirectory() {
			break
		}

		if !entryType.IsInUse() {
			continue
		}

		de, err := parseDirectoryEntry(entryType, raw)
		if err != nil {
			return nil, err
		}

		if entryType.IsPrimary() {
			primaryEntry = de
			secondaryEntries = make([]DirectoryEntry, 0)
		} else {
			secondaryEntries = append(secondaryEntries, de)
		}

		if pde, ok := primaryEntry.(PrimaryDirectoryEntry); ok {
			if len(secondaryEntries) == int(pde.SecondaryCount()) {
				indexDirectoryEntry(index, primaryEntry, secondaryEntries)
			}
		} else if entryType.IsPrimary() {
			indexDirectoryEntry(index, primaryEntry, secondaryEntries)
		}
	}

	return index, nil
}

func indexDirectoryEntry(index DirectoryEntryIndex, primaryEntry DirectoryEntry, secondaryEntries []DirectoryEntry) {
	extra := make(map[string]interface{})

	if _, ok := primaryEntry.(*ExfatFileDirectoryEntry); ok {
		mf := MultipartFilename(secondaryEntries)
		extra["complete_filename"] = mf.Filename()
	}

	ide := IndexedDirectoryEntry{
		PrimaryEntry:     primaryEntry,
		SecondaryEntries: secondaryEntries,
		Extra:            extra,
	}

	typeName := primaryEntry.TypeName()
	index[typeName] = append(index[typeName], ide)
}
