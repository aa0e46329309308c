package exfat

import (
	"os"

	"golang.org/x/sys/unix"
)

// HostPreflight validates that sourcePath is readable and that the
// filesystem backing destinationPath has enough free space for a rough
// estimate of the built image (the sum of source file sizes, rounded up
// generously since the exact size depends on cluster size and metadata
// overhead this check doesn't try to reproduce).
func HostPreflight(sourcePath, destinationPath string) error {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return NewKindedError(ErrorKindHostIoError, sourcePath, err)
	}

	if !info.IsDir() {
		return NewKindedError(ErrorKindInvalidArguments, sourcePath+" is not a directory", nil)
	}

	sourceBytes, err := dirSize(sourcePath)
	if err != nil {
		return NewKindedError(ErrorKindHostIoError, sourcePath, err)
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(destinationDir(destinationPath), &stat); err != nil {
		return NewKindedError(ErrorKindHostIoError, destinationPath, err)
	}

	availableBytes := stat.Bavail * uint64(stat.Bsize)

	// Generous headroom: metadata (directory entries, FAT, bitmap, boot
	// region) rarely exceeds a few percent of payload size.
	estimatedBytes := sourceBytes + sourceBytes/10 + uint64(minimumVolumeSize)

	if availableBytes < estimatedBytes {
		return NewKindedError(ErrorKindHostIoError, "insufficient free space at destination", nil)
	}

	return nil
}

func destinationDir(destinationPath string) string {
	info, err := os.Stat(destinationPath)
	if err == nil && info.IsDir() {
		return destinationPath
	}

	dir := destinationPath
	for i := len(dir) - 1; i >= 0; i-- {
		if dir[i] == os.PathSeparator {
			return dir[:i]
		}
	}

	return "."
}

func dirSize(path string) (uint64, error) {
	var total uint64

	entries, err := os.ReadDir(path)
	if err != nil {
		return 0, err
	}

	for _, entry := range entries {
		childPath := path + string(os.PathSeparator) + entry.Name()

		if entry.IsDir() {
			sub, err := dirSize(childPath)
			if err != nil {
				return 0, err
			}

			total += sub

			continue
		}

		info, err := entry.Info()
		if err != nil {
			return 0, err
		}

		total += uint64(info.Size())
	}

	return total, nil
}
