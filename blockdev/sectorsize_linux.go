package blockdev

import (
	"os"

	"golang.org/x/sys/unix"
)

// LogicalSectorSize returns the logical sector size of a block device and
// SectorSize for everything else, e.g. image files or in-memory files.
func LogicalSectorSize(f interface{}) (int, error) {
	osf, ok := f.(*os.File)
	if !ok {
		return SectorSize, nil
	}

	info, err := osf.Stat()
	if err != nil {
		return 0, err
	}
	if info.Mode()&os.ModeDevice == 0 || info.Mode()&os.ModeCharDevice != 0 {
		return SectorSize, nil
	}

	return unix.IoctlGetInt(int(osf.Fd()), unix.BLKSSZGET)
}
