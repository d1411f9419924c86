package fat16

import (
	"context"
	"encoding/binary"
	"iter"
	"log/slog"

	"github.com/aligator/fat16/checkpoint"
)

// ClusterNumber indexes the FAT and, starting at 2, the data region.
type ClusterNumber uint32

const (
	firstDataCluster ClusterNumber = 2

	// Values from 0xFFF0 up to 0xFFF6 are reserved and never valid links.
	fatReserved   uint16 = 0xFFF0
	fatBadCluster uint16 = 0xFFF7
	fatEndOfChain uint16 = 0xFFF8
)

// NextCluster looks up the FAT link of cluster c. ok is false if c is the
// last cluster of its chain.
func (fs *Filesystem) NextCluster(ctx context.Context, c ClusterNumber) (next ClusterNumber, ok bool, err error) {
	if err := fs.sb.checkCluster(c); err != nil {
		fs.logger(ctx).Warn("invalid cluster in chain", slog.Uint64("cluster", uint64(c)))
		return 0, false, checkpoint.From(err)
	}

	entryOffset := uint64(c) * fatEntrySize
	fatSector := fs.sb.FirstFATSector() + entryOffset/SectorSize
	sectorOffset := entryOffset % SectorSize

	buf := make([]byte, SectorSize)
	if err := fs.readSector(ctx, fatSector, buf); err != nil {
		return 0, false, checkpoint.From(err)
	}

	link := binary.LittleEndian.Uint16(buf[sectorOffset:])
	switch {
	case link >= fatEndOfChain:
		return 0, false, nil
	case link == fatBadCluster:
		fs.logger(ctx).Warn("bad cluster in chain", slog.Uint64("cluster", uint64(c)))
		return 0, false, checkpoint.New(ErrCorruptFilesystem, "cluster %d links to a bad cluster", c)
	case link >= fatReserved || ClusterNumber(link) < firstDataCluster:
		fs.logger(ctx).Warn("reserved value in chain", slog.Uint64("cluster", uint64(c)), slog.Any("link", link))
		return 0, false, checkpoint.New(ErrCorruptFilesystem, "cluster %d links to reserved value %#04x", c, link)
	}

	return ClusterNumber(link), true, nil
}

// ClusterChain yields the clusters of the chain starting at start in order.
// The sequence is lazy: every step reads one FAT sector. It stops after the
// end-of-chain link or after yielding the first error.
// A chain longer than the FAT can address must contain a cycle and is
// reported as ErrCorruptFilesystem.
func (fs *Filesystem) ClusterChain(ctx context.Context, start ClusterNumber) iter.Seq2[ClusterNumber, error] {
	return func(yield func(ClusterNumber, error) bool) {
		maxLength := fs.sb.FATEntryCount()
		cluster := start

		for length := uint64(1); ; length++ {
			if length > maxLength {
				yield(0, checkpoint.New(ErrCorruptFilesystem, "cluster chain starting at %d does not end", start))
				return
			}

			next, ok, err := fs.NextCluster(ctx, cluster)
			if err != nil {
				yield(0, err)
				return
			}

			if !yield(cluster, nil) || !ok {
				return
			}
			cluster = next
		}
	}
}

// SectorChain yields all sectors of the chain starting at start: every
// sector of the first cluster, then every sector of the next one, and so on.
func (fs *Filesystem) SectorChain(ctx context.Context, start ClusterNumber) iter.Seq2[uint64, error] {
	return func(yield func(uint64, error) bool) {
		for cluster, err := range fs.ClusterChain(ctx, start) {
			if err != nil {
				yield(0, err)
				return
			}

			first, count := fs.sb.ClusterSectors(cluster)
			for sector := first; sector < first+count; sector++ {
				if !yield(sector, nil) {
					return
				}
			}
		}
	}
}
