package exfat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytesPerSectorShift_ValidValues(t *testing.T) {
	require.Equal(t, uint8(9), bytesPerSectorShift(512))
	require.Equal(t, uint8(12), bytesPerSectorShift(4096))
}

func TestSectorsPerClusterShift_ValidValues(t *testing.T) {
	require.Equal(t, uint8(0), sectorsPerClusterShift(1))
	require.Equal(t, uint8(3), sectorsPerClusterShift(8))
}

func TestBuildBootSectorHeader_DerivesOffsets(t *testing.T) {
	bsh := BuildBootSectorHeader(bootSectorParams{
		SectorSize:        512,
		SectorsPerCluster: 8,
		NumberOfFats:      1,
		FatSectorsEach:    10,
		ClusterHeapBytes:  512 * 8 * 100,
		ClusterCount:      100,
		RootFirstCluster:  2,
		VolumeSerial:      0xAABBCCDD,
		PercentInUse:      50,
	})

	require.Equal(t, uint32(24), bsh.FatOffset)
	require.Equal(t, uint32(34), bsh.ClusterHeapOffset) // 24 + 10*1
	require.Equal(t, uint32(100), bsh.ClusterCount)
	require.Equal(t, requiredBootSignature, bsh.BootSignature)
	require.Equal(t, uint8(9), bsh.BytesPerSectorShift)
	require.Equal(t, uint8(3), bsh.SectorsPerClusterShift)
}

func TestPercentInUse(t *testing.T) {
	require.Equal(t, uint8(50), PercentInUse(50, 100))
	require.Equal(t, uint8(0xFF), PercentInUse(1, 0))
	require.Equal(t, uint8(0), PercentInUse(0, 100))
}

func TestBuildBootRegion_Is12Sectors(t *testing.T) {
	bsh := BuildBootSectorHeader(bootSectorParams{
		SectorSize:        512,
		SectorsPerCluster: 8,
		NumberOfFats:      1,
		FatSectorsEach:    10,
		ClusterHeapBytes:  512 * 8 * 100,
		ClusterCount:      100,
		RootFirstCluster:  2,
		VolumeSerial:      1,
		PercentInUse:      0,
	})

	region := BuildBootRegion(bsh, 512)

	require.Len(t, region, 12*512)
}

func TestBuildBootChecksumSector_RepeatsValue(t *testing.T) {
	bootSectorBytes := make([]byte, 512)
	extendedBootSectors := [][]byte{make([]byte, 512)}
	oemParameterSector := make([]byte, 512)
	reservedSector := make([]byte, 512)

	checksum := BuildBootChecksumSector(bootSectorBytes, extendedBootSectors, oemParameterSector, reservedSector, 512)

	first := defaultEncoding.Uint32(checksum[0:4])

	for i := 0; i+4 <= len(checksum); i += 4 {
		require.Equal(t, first, defaultEncoding.Uint32(checksum[i:i+4]))
	}
}

func TestBuildBootChecksumSector_IgnoresVolumeFlagsAndPercentInUse(t *testing.T) {
	a := make([]byte, 512)
	b := make([]byte, 512)
	b[106] = 0xFF // VolumeFlags byte
	b[112] = 0xFF // PercentInUse byte

	extendedBootSectors := [][]byte{make([]byte, 512)}
	oemParameterSector := make([]byte, 512)
	reservedSector := make([]byte, 512)

	checksumA := BuildBootChecksumSector(a, extendedBootSectors, oemParameterSector, reservedSector, 512)
	checksumB := BuildBootChecksumSector(b, extendedBootSectors, oemParameterSector, reservedSector, 512)

	require.Equal(t, checksumA, checksumB)
}
