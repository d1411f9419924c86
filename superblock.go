package fat16

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/aligator/fat16/checkpoint"
)

const (
	// DirEntrySize is the size of one on-disk directory record.
	DirEntrySize = 32

	fatEntrySize     = 2
	entriesPerSector = SectorSize / DirEntrySize

	// superblockSize is the part of sector 0 which is decoded.
	superblockSize = 0x18
)

// Superblock is the BIOS parameter block found in sector 0. It is decoded
// once on mount and never changed afterwards.
type Superblock struct {
	JumpCode            [3]byte
	OEMName             [8]byte
	BytesPerSector      uint16
	SectorsPerCluster   uint8
	ReservedSectorCount uint16
	FATCount            uint8
	RootEntryCount      uint16
	TotalSectorCount    uint16
	MediaDescriptor     uint8
	SectorsPerFAT       uint16
}

// DecodeSuperblock decodes the parameter block from the beginning of a
// sector. It does not validate the values, see Superblock.Validate.
func DecodeSuperblock(b []byte) (Superblock, error) {
	if len(b) < superblockSize {
		return Superblock{}, checkpoint.New(ErrUnsupported, "superblock needs %d bytes, got %d", superblockSize, len(b))
	}

	var sb Superblock
	copy(sb.JumpCode[:], b[0x00:0x03])
	copy(sb.OEMName[:], b[0x03:0x0b])
	sb.BytesPerSector = binary.LittleEndian.Uint16(b[0x0b:])
	sb.SectorsPerCluster = b[0x0d]
	sb.ReservedSectorCount = binary.LittleEndian.Uint16(b[0x0e:])
	sb.FATCount = b[0x10]
	sb.RootEntryCount = binary.LittleEndian.Uint16(b[0x11:])
	sb.TotalSectorCount = binary.LittleEndian.Uint16(b[0x13:])
	sb.MediaDescriptor = b[0x15]
	sb.SectorsPerFAT = binary.LittleEndian.Uint16(b[0x16:])

	return sb, nil
}

// Validate rejects geometries which would make the derived sector offsets
// meaningless.
func (sb Superblock) Validate() error {
	if sb.BytesPerSector != SectorSize {
		return checkpoint.New(ErrUnsupported, "%d bytes per sector, only %d is supported", sb.BytesPerSector, SectorSize)
	}

	// Sectors per cluster has to be a power of two and greater than 0.
	if sb.SectorsPerCluster == 0 || bits.OnesCount8(sb.SectorsPerCluster) != 1 {
		return checkpoint.New(ErrUnsupported, "invalid sectors per cluster %d", sb.SectorsPerCluster)
	}

	if sb.FATCount == 0 {
		return checkpoint.New(ErrUnsupported, "no FAT")
	}

	// FAT32 keeps the FAT size in a 32 bit field and sets this one to 0.
	if sb.SectorsPerFAT == 0 {
		return checkpoint.New(ErrUnsupported, "sectors per FAT is 0, not a FAT16 filesystem")
	}

	return nil
}

func readSuperblock(ctx context.Context, dev BlockDevice) (Superblock, error) {
	buf := make([]byte, SectorSize)
	if err := dev.ReadSectors(ctx, 0, [][]byte{buf}); err != nil {
		return Superblock{}, checkpoint.Wrapf(err, ErrIO, "read superblock")
	}

	sb, err := DecodeSuperblock(buf)
	if err != nil {
		return Superblock{}, checkpoint.From(err)
	}

	return sb, checkpoint.From(sb.Validate())
}

func (sb Superblock) FirstFATSector() uint64 {
	return uint64(sb.ReservedSectorCount)
}

func (sb Superblock) FATSectorCount() uint64 {
	return uint64(sb.SectorsPerFAT)
}

func (sb Superblock) AllFATsSectorCount() uint64 {
	return uint64(sb.FATCount) * sb.FATSectorCount()
}

func (sb Superblock) FirstRootDirSector() uint64 {
	return sb.FirstFATSector() + sb.AllFATsSectorCount()
}

// RootDirSectorCount rounds up, a partially used last sector still belongs to
// the root directory region.
func (sb Superblock) RootDirSectorCount() uint64 {
	return (uint64(sb.RootEntryCount)*DirEntrySize + SectorSize - 1) / SectorSize
}

// FirstDataSector is the first sector of cluster 2.
func (sb Superblock) FirstDataSector() uint64 {
	return sb.FirstRootDirSector() + sb.RootDirSectorCount()
}

func (sb Superblock) ClusterSectorCount() uint64 {
	return uint64(sb.SectorsPerCluster)
}

func (sb Superblock) ClusterSize() int64 {
	return int64(sb.SectorsPerCluster) * SectorSize
}

// FATEntryCount is the number of links the FAT can address. Clusters at or
// beyond it can not be part of a chain.
func (sb Superblock) FATEntryCount() uint64 {
	return sb.FATSectorCount() * SectorSize / fatEntrySize
}

// FirstClusterSector returns the first sector of a data cluster. The cluster
// must be a valid data cluster (see checkCluster); cluster numbers start at 2.
func (sb Superblock) FirstClusterSector(c ClusterNumber) uint64 {
	return sb.FirstDataSector() + uint64(c-firstDataCluster)*sb.ClusterSectorCount()
}

// ClusterSectors returns the contiguous sector range [first, first+count)
// of a data cluster.
func (sb Superblock) ClusterSectors(c ClusterNumber) (first, count uint64) {
	return sb.FirstClusterSector(c), sb.ClusterSectorCount()
}

// checkCluster reports clusters which can not hold data.
func (sb Superblock) checkCluster(c ClusterNumber) error {
	if c < firstDataCluster {
		return checkpoint.New(ErrCorruptFilesystem, "reserved cluster %d used as data cluster", c)
	}
	if uint64(c) >= sb.FATEntryCount() {
		return checkpoint.New(ErrCorruptFilesystem, "cluster %d out of bounds, FAT has %d entries", c, sb.FATEntryCount())
	}
	return nil
}

func (sb Superblock) String() string {
	return fmt.Sprintf("FAT16{oem=%q sectorsPerCluster=%d reserved=%d fats=%d sectorsPerFAT=%d rootEntries=%d}",
		string(sb.OEMName[:]), sb.SectorsPerCluster, sb.ReservedSectorCount, sb.FATCount, sb.SectorsPerFAT, sb.RootEntryCount)
}
