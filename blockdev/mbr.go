package blockdev

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	mbrPartitionTable = 0x1BE
	mbrEntrySize      = 16
	mbrSignature      = 0x1FE
)

var ErrNoMBR = errors.New("no MBR signature")

// PartitionEntry is one of the four primary entries of a master boot record.
type PartitionEntry struct {
	Index    int
	Bootable bool
	Type     uint8
	FirstLBA uint32
	Sectors  uint32
}

// IsFAT16 reports the partition types used for FAT16 volumes.
func (e PartitionEntry) IsFAT16() bool {
	switch e.Type {
	case 0x04, 0x06, 0x0E:
		return true
	}
	return false
}

func (e PartitionEntry) IsEmpty() bool {
	return e.Type == 0 || e.Sectors == 0
}

// Partition scopes dev to the sectors of the entry.
func (e PartitionEntry) Partition(dev SectorReader) *Partition {
	return NewPartition(dev, uint64(e.FirstLBA), uint64(e.Sectors))
}

func (e PartitionEntry) String() string {
	return fmt.Sprintf("partition %d: type %#04x, sectors %d-%d", e.Index, e.Type, e.FirstLBA, uint64(e.FirstLBA)+uint64(e.Sectors))
}

// DecodeMBR decodes the partition table of sector 0 of a disk.
func DecodeMBR(sector []byte) ([4]PartitionEntry, error) {
	var entries [4]PartitionEntry
	if len(sector) < SectorSize {
		return entries, fmt.Errorf("%w: %d bytes", ErrBufferSize, len(sector))
	}
	if sector[mbrSignature] != 0x55 || sector[mbrSignature+1] != 0xAA {
		return entries, ErrNoMBR
	}

	for i := range entries {
		b := sector[mbrPartitionTable+i*mbrEntrySize:]
		entries[i] = PartitionEntry{
			Index:    i,
			Bootable: b[0] == 0x80,
			Type:     b[4],
			FirstLBA: binary.LittleEndian.Uint32(b[8:]),
			Sectors:  binary.LittleEndian.Uint32(b[12:]),
		}
	}
	return entries, nil
}

// ReadMBR reads and decodes the master boot record of dev.
func ReadMBR(ctx context.Context, dev SectorReader) ([4]PartitionEntry, error) {
	buf := make([]byte, SectorSize)
	if err := dev.ReadSectors(ctx, 0, [][]byte{buf}); err != nil {
		return [4]PartitionEntry{}, err
	}
	return DecodeMBR(buf)
}
