package exfat

import (
	"github.com/dsoprea/go-logging"
	"github.com/go-restruct/restruct"
)

// bootSectorParams is the minimal set of values BuildBootRegion needs in
// order to derive every mandatory BootSectorHeader field. Template supplies
// the fields this tool has no opinion about (VolumeFlags, DriveSelect,
// BootCode) and is mandatory: a build without a template boot sector to
// borrow these from fails with ErrorKindInvalidArguments before reaching
// here.
type bootSectorParams struct {
	Template          BootSectorHeader
	SectorSize        uint32
	SectorsPerCluster uint32
	NumberOfFats      uint8
	FatSectorsEach    uint32
	ClusterHeapBytes  uint64
	ClusterCount      uint32
	RootFirstCluster  uint32
	VolumeSerial      uint32
	PercentInUse      uint8
}

// bytesPerSectorShift and sectorsPerClusterShift invert N = 2^shift, panicking
// if N is not a power of two in the valid exFAT range.
func bytesPerSectorShift(sectorSize uint32) uint8 {
	for shift := uint8(9); shift <= 12; shift++ {
		if uint32(1)<<shift == sectorSize {
			return shift
		}
	}

	log.Panicf("sector size not a valid power of two in [512, 4096]: %d", sectorSize)

	return 0
}

func sectorsPerClusterShift(sectorsPerCluster uint32) uint8 {
	for shift := uint8(0); shift <= 25; shift++ {
		if uint32(1)<<shift == sectorsPerCluster {
			return shift
		}
	}

	log.Panicf("sectors-per-cluster not a valid power of two: %d", sectorsPerCluster)

	return 0
}

// BuildBootSectorHeader derives every mandatory BootSectorHeader field from
// p, per spec.md section 4.7: fat_offset is fixed at 24 sectors (the size of
// the boot region), cluster_heap_offset follows the FATs, cluster_count and
// volume_length follow the cluster heap, VolumeFlags, DriveSelect and the
// boot code are copied from the template, and the reserved fields are zero.
func BuildBootSectorHeader(p bootSectorParams) BootSectorHeader {
	fatOffset := uint32(24)
	clusterHeapOffset := fatOffset + p.FatSectorsEach*uint32(p.NumberOfFats)

	clusterHeapSectors := (p.ClusterHeapBytes + uint64(p.SectorSize) - 1) / uint64(p.SectorSize)
	volumeLength := uint64(clusterHeapOffset) + clusterHeapSectors

	bsh := BootSectorHeader{
		FileSystemName:              [8]byte{'E', 'X', 'F', 'A', 'T', ' ', ' ', ' '},
		PartitionOffset:             0,
		VolumeLength:                volumeLength,
		FatOffset:                   fatOffset,
		FatLength:                   p.FatSectorsEach,
		ClusterHeapOffset:           clusterHeapOffset,
		ClusterCount:                p.ClusterCount,
		FirstClusterOfRootDirectory: p.RootFirstCluster,
		VolumeSerialNumber:          p.VolumeSerial,
		FileSystemRevision:          [2]uint8{0, 1}, // 1.00: low, high
		VolumeFlags:                 p.Template.VolumeFlags,
		BytesPerSectorShift:         bytesPerSectorShift(p.SectorSize),
		SectorsPerClusterShift:      sectorsPerClusterShift(p.SectorsPerCluster),
		NumberOfFats:                p.NumberOfFats,
		DriveSelect:                 p.Template.DriveSelect,
		PercentInUse:                p.PercentInUse,
		BootCode:                    p.Template.BootCode,
		BootSignature:               requiredBootSignature,
	}

	copy(bsh.JumpBoot[:], requiredJumpBootSignature)

	return bsh
}

// PercentInUse returns the percentage (rounded down) of usedClusters out of
// totalClusters, or 0xFF when totalClusters is 0.
func PercentInUse(usedClusters, totalClusters uint32) uint8 {
	if totalClusters == 0 {
		return 0xFF
	}

	return uint8(uint64(usedClusters) * 100 / uint64(totalClusters))
}

// BuildExtendedBootSector renders one all-zero Extended Boot Sector (boot
// code plus its trailing AA550000h signature), padded to sectorSize.
func BuildExtendedBootSector(sectorSize uint32) []byte {
	data := make([]byte, sectorSize)

	defaultEncoding.PutUint32(data[sectorSize-4:], requiredExtendedBootSignature)

	return data
}

// BuildOemParameterSector renders an empty OEM Parameter sector: 10 unused,
// all-zero OEM parameter slots plus trailing padding to sectorSize.
func BuildOemParameterSector(sectorSize uint32) []byte {
	params := OemParameters{}

	packed, err := restruct.Pack(defaultEncoding, &params)
	log.PanicIf(err)

	data := make([]byte, sectorSize)
	copy(data, packed)

	return data
}

// BuildReservedSector renders an all-zero Reserved sector.
func BuildReservedSector(sectorSize uint32) []byte {
	return make([]byte, sectorSize)
}

// BuildBootChecksumSector computes the boot-region checksum over the
// preceding 11 sectors (the Main Boot Sector with its VolumeFlags and
// PercentInUse bytes left out, the 8 Extended Boot Sectors, the OEM
// Parameter sector, and the Reserved sector) using the 32-bit
// rotate-right-by-1 fold, and renders a sector's worth of the repeated
// checksum value.
func BuildBootChecksumSector(bootSectorBytes []byte, extendedBootSectors [][]byte, oemParameterSector, reservedSector []byte, sectorSize uint32) []byte {
	var c uint32
	fold := func(data []byte) {
		for _, b := range data {
			c = (c << 31) + (c >> 1) + uint32(b)
		}
	}

	// VolumeFlags (offset 106, 2 bytes) and PercentInUse (offset 112, 1
	// byte) are stale by definition and excluded from the checksum.
	for i, b := range bootSectorBytes {
		if i == 106 || i == 107 || i == 112 {
			continue
		}

		c = (c << 31) + (c >> 1) + uint32(b)
	}

	for _, ebs := range extendedBootSectors {
		fold(ebs)
	}
	fold(oemParameterSector)
	fold(reservedSector)

	out := make([]byte, sectorSize)
	for i := 0; i+4 <= len(out); i += 4 {
		defaultEncoding.PutUint32(out[i:i+4], c)
	}

	return out
}

// BuildBootRegion renders one complete 12-sector boot region (Main or
// Backup): the Boot Sector, 8 Extended Boot Sectors, the OEM Parameter
// sector, the Reserved sector, and the Boot Checksum sector, in that order.
func BuildBootRegion(bsh BootSectorHeader, sectorSize uint32) []byte {
	bootSectorBytes, err := restruct.Pack(defaultEncoding, &bsh)
	log.PanicIf(err)

	if uint32(len(bootSectorBytes)) < sectorSize {
		padded := make([]byte, sectorSize)
		copy(padded, bootSectorBytes)
		bootSectorBytes = padded
	}

	extendedBootSectors := make([][]byte, mainExtendedBootSectorCount)
	for i := range extendedBootSectors {
		extendedBootSectors[i] = BuildExtendedBootSector(sectorSize)
	}

	oemParameterSector := BuildOemParameterSector(sectorSize)
	reservedSector := BuildReservedSector(sectorSize)
	checksumSector := BuildBootChecksumSector(bootSectorBytes, extendedBootSectors, oemParameterSector, reservedSector, sectorSize)

	region := make([]byte, 0, 12*int(sectorSize))
	region = append(region, bootSectorBytes...)

	for _, ebs := range extendedBootSectors {
		region = append(region, ebs...)
	}

	region = append(region, oemParameterSector...)
	region = append(region, reservedSector...)
	region = append(region, checksumSector...)

	return region
}
