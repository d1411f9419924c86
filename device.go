package fat16

import (
	"context"
)

// SectorSize is the size of a device sector and the only FAT sector size
// supported by this driver.
const SectorSize = 512

// BlockDevice is the sector-granular device a filesystem is mounted from,
// usually a partition of a disk.
// ReadSectors fills every buffer of dst, each exactly SectorSize bytes long,
// from consecutive sectors starting at first. It may block and should return
// early with the context error once ctx is done.
//
// Generated mock using mockgen:
//
//	mockgen -source=device.go -destination=device_mock.go -package fat16
type BlockDevice interface {
	ReadSectors(ctx context.Context, first uint64, dst [][]byte) error
}

//go:generate mockgen -source=device.go -destination=device_mock.go -package fat16
//go:generate go run ./cmd/generate -o testdata/sample.img
