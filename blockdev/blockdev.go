// Package blockdev provides sector addressed devices for the fat16 driver:
// disk images, real block devices and partitions of either.
package blockdev

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// SectorSize is the size of every sector read through this package.
const SectorSize = 512

var (
	ErrShortRead  = errors.New("short read")
	ErrBufferSize = errors.New("buffer is not one sector")
	ErrSectorSize = errors.New("unsupported logical sector size")
)

// Device reads whole sectors from an io.ReaderAt.
type Device struct {
	r io.ReaderAt
}

// New returns a device reading from r, sector i starts at byte i*SectorSize.
func New(r io.ReaderAt) *Device {
	return &Device{r: r}
}

// Open opens the image or block device at name through fsys. Block devices
// must have a logical sector size of SectorSize.
// The returned close function closes the underlying file.
func Open(fsys afero.Fs, name string) (*Device, func() error, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, nil, err
	}

	size, err := LogicalSectorSize(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	if size != SectorSize {
		f.Close()
		return nil, nil, fmt.Errorf("%s: %w: %d", name, ErrSectorSize, size)
	}

	return New(f), f.Close, nil
}

// ReadSectors reads len(dst) consecutive sectors starting at first.
func (d *Device) ReadSectors(ctx context.Context, first uint64, dst [][]byte) error {
	for i, buf := range dst {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(buf) != SectorSize {
			return fmt.Errorf("%w: %d bytes", ErrBufferSize, len(buf))
		}

		sector := first + uint64(i)
		n, err := d.r.ReadAt(buf, int64(sector)*SectorSize)
		if n == len(buf) {
			// io.ReaderAt may return io.EOF together with a full buffer.
			continue
		}
		if err == nil || err == io.EOF {
			err = ErrShortRead
		}
		return fmt.Errorf("sector %d: %w", sector, err)
	}
	return nil
}

// SectorReader is the contract Partition forwards to. It is the same as
// fat16.BlockDevice.
type SectorReader interface {
	ReadSectors(ctx context.Context, first uint64, dst [][]byte) error
}

// Partition is a sector range of a device. Sector numbers are relative to
// the start of the partition. Reads are not checked against the length, the
// filesystem on it is trusted to stay within its declared extent.
type Partition struct {
	dev   SectorReader
	start uint64
	count uint64
}

func NewPartition(dev SectorReader, start, count uint64) *Partition {
	return &Partition{dev: dev, start: start, count: count}
}

func (p *Partition) ReadSectors(ctx context.Context, first uint64, dst [][]byte) error {
	return p.dev.ReadSectors(ctx, p.start+first, dst)
}

// Start returns the first device sector of the partition.
func (p *Partition) Start() uint64 {
	return p.start
}

// Count returns the declared number of sectors.
func (p *Partition) Count() uint64 {
	return p.count
}
