package exfat

import (
	"bytes"
	"io"

	"github.com/dsoprea/go-logging"
	"github.com/hashicorp/errwrap"
	"github.com/hashicorp/go-multierror"
)

// BuildOptions configures a full volume build. Template is mandatory: it is
// the source of the fields this tool synthesizes no value for (VolumeFlags,
// DriveSelect, BootCode).
type BuildOptions struct {
	Template          BootSectorHeader
	SourcePath        string
	SectorSize        uint32
	SectorsPerCluster uint32
	NumberOfFats      uint8
	HasVolumeGuid     bool
	VolumeSerial      uint32
}

// Exfat is a fully assembled, in-memory exFAT volume: the built cluster
// heap, FAT table(s), node tree, and boot region, ready for Bytes() or
// already-decoded by ParseExfat().
type Exfat struct {
	Heap       *ClusterHeap
	Fat        *FatTable
	Arena      *NodeArena
	UpcaseTbl  *UpcaseTable
	VolumeGuid *Guid
	BootSector BootSectorHeader
	sectorSize uint32
}

// Build assembles a complete exFAT volume image from a host directory tree,
// per spec.md's top-level pipeline: build the node tree and cluster heap,
// derive the FAT from the heap's chain map, check every invariant before
// computing any checksum, then derive and serialize the boot region.
func Build(opts BuildOptions) (ex *Exfat, err error) {
	defer func() {
		if state := recover(); state != nil {
			err = log.Wrap(state.(error))
		}
	}()

	if opts.SourcePath == "" {
		return nil, NewKindedError(ErrorKindInvalidArguments, "source path is required", nil)
	}

	clusterSize := opts.SectorSize * opts.SectorsPerCluster

	heap := NewClusterHeap(clusterSize)
	ut := NewUpcaseTable()

	arena, volumeGuid, err := BuildTree(heap, ut, opts.SourcePath, BuildTreeOptions{
		HasVolumeGuid: opts.HasVolumeGuid,
		NumOfFats:     int(opts.NumberOfFats),
	})
	log.PanicIf(err)

	fatTable := NewFatTable(heap.ClusterChainMap())

	if verifyErr := verifyBuildInvariants(heap, fatTable, arena, opts); verifyErr != nil {
		return nil, verifyErr
	}

	clusterCount := heap.NumberOfClusters()
	fatSectorsEach := fatTable.SectorsPerFat(opts.SectorSize)

	bsh := BuildBootSectorHeader(bootSectorParams{
		Template:          opts.Template,
		SectorSize:        opts.SectorSize,
		SectorsPerCluster: opts.SectorsPerCluster,
		NumberOfFats:      opts.NumberOfFats,
		FatSectorsEach:    fatSectorsEach,
		ClusterHeapBytes:  uint64(clusterCount) * uint64(clusterSize),
		ClusterCount:      clusterCount,
		RootFirstCluster:  arena.Root().FirstCluster,
		VolumeSerial:      opts.VolumeSerial,
		PercentInUse:      PercentInUse(countUsed(heap.UsedFlags()), clusterCount),
	})

	ex = &Exfat{
		Heap:       heap,
		Fat:        fatTable,
		Arena:      arena,
		UpcaseTbl:  ut,
		VolumeGuid: volumeGuid,
		BootSector: bsh,
		sectorSize: opts.SectorSize,
	}

	return ex, nil
}

func countUsed(used map[uint32]bool) (count uint32) {
	for _, isUsed := range used {
		if isUsed {
			count++
		}
	}

	return count
}

// verifyBuildInvariants collects every invariant violation before failing,
// via a multierror, instead of aborting on the first one: a caller fixing a
// malformed host tree wants the full list in one pass, not one failure per
// re-run.
func verifyBuildInvariants(heap *ClusterHeap, fatTable *FatTable, arena *NodeArena, opts BuildOptions) error {
	var result *multierror.Error

	if opts.SectorSize < 512 || opts.SectorSize > 4096 {
		result = multierror.Append(result, errwrap.Wrapf("invalid sector size: {{err}}",
			NewKindedError(ErrorKindInvalidArguments, "sector size must be in [512, 4096]", nil)))
	}

	if opts.NumberOfFats != 1 && opts.NumberOfFats != 2 {
		result = multierror.Append(result, errwrap.Wrapf("invalid FAT count: {{err}}",
			NewKindedError(ErrorKindInvalidArguments, "number-of-fats must be 1 or 2", nil)))
	}

	if arena == nil || len(arena.Nodes) == 0 {
		result = multierror.Append(result, errwrap.Wrapf("empty tree: {{err}}",
			NewKindedError(ErrorKindMalformedDirectory, "build produced no root node", nil)))
	}

	chains, chainErr := fatTable.ToChains()
	if chainErr != nil {
		result = multierror.Append(result, errwrap.Wrapf("FAT chain reconstruction failed: {{err}}", chainErr))
	} else {
		for first, chain := range chains {
			for _, c := range chain {
				if !heap.UsedFlags()[c] {
					result = multierror.Append(result, errwrap.Wrapf("chain references unallocated cluster: {{err}}",
						NewKindedError(ErrorKindMalformedFat, "chain head and an unused cluster disagree", nil)))

					break
				}
			}

			_ = first
		}
	}

	if result != nil {
		return result.ErrorOrNil()
	}

	return nil
}

// Bytes serializes the fully assembled volume: the Main boot region, the
// Backup boot region (identical contents), the FAT(s), and the cluster
// heap, in on-disk order.
func (ex *Exfat) Bytes() []byte {
	bootRegion := BuildBootRegion(ex.BootSector, ex.sectorSize)

	fatBytes := ex.Fat.Serialize(ex.sectorSize)

	var out []byte
	out = append(out, bootRegion...) // main
	out = append(out, bootRegion...) // backup

	for i := uint8(0); i < ex.BootSector.NumberOfFats; i++ {
		out = append(out, fatBytes...)
	}

	out = append(out, ex.Heap.Bytes()...)

	return out
}

// ParseExfatOptions configures a read-back of a previously built image.
type ParseExfatOptions struct {
	ReadSeeker io.ReadSeeker
}

// ParseExfat decodes a full exFAT image back into the same representation
// Build produces: the existing read-side ExfatReader decodes the boot
// region, the main and backup boot regions are compared byte for byte, the
// first FAT is read with ParseFatTable and folded into cluster chains, the
// cluster heap bytes are pulled out behind them, and ParseTree rebuilds the
// node tree from the heap.
func ParseExfat(opts ParseExfatOptions) (ex *Exfat, err error) {
	defer func() {
		if state := recover(); state != nil {
			err = log.Wrap(state.(error))
		}
	}()

	er := NewExfatReader(opts.ReadSeeker)

	err = er.Parse()
	log.PanicIf(err)

	bsh := er.ActiveBootRegion()
	sectorSize := er.SectorSize()
	clusterSize := sectorSize * er.SectorsPerCluster()

	bootRegionBytes := 12 * int64(sectorSize)
	bootRegions := make([]byte, 2*bootRegionBytes)
	_, err = opts.ReadSeeker.Seek(0, io.SeekStart)
	log.PanicIf(err)

	_, err = io.ReadFull(opts.ReadSeeker, bootRegions)
	log.PanicIf(err)

	if !bytes.Equal(bootRegions[:bootRegionBytes], bootRegions[bootRegionBytes:]) {
		return nil, NewKindedError(ErrorKindMalformedImage, "main and backup boot regions differ", nil)
	}

	fatBytes := make([]byte, bsh.ClusterCount*4+8)
	_, err = opts.ReadSeeker.Seek(int64(bsh.FatOffset)*int64(sectorSize), io.SeekStart)
	log.PanicIf(err)

	_, err = io.ReadFull(opts.ReadSeeker, fatBytes)
	log.PanicIf(err)

	fatTable, err := ParseFatTable(fatBytes, bsh.ClusterCount)
	log.PanicIf(err)

	chains, err := fatTable.ToChains()
	log.PanicIf(err)

	heapBytes := make([]byte, uint64(bsh.ClusterCount)*uint64(clusterSize))
	_, err = opts.ReadSeeker.Seek(int64(bsh.ClusterHeapOffset)*int64(sectorSize), io.SeekStart)
	log.PanicIf(err)

	_, err = io.ReadFull(opts.ReadSeeker, heapBytes)
	log.PanicIf(err)

	heap := ReadClusterHeap(heapBytes, clusterSize, chains, bsh.ClusterCount)

	arena, ut, volumeGuid, err := ParseTree(heap, bsh.FirstClusterOfRootDirectory)
	log.PanicIf(err)

	ex = &Exfat{
		Heap:       heap,
		Fat:        fatTable,
		Arena:      arena,
		UpcaseTbl:  ut,
		VolumeGuid: volumeGuid,
		BootSector: bsh,
		sectorSize: sectorSize,
	}

	return ex, nil
}
