package fat16

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aligator/fat16/checkpoint"
)

type Attributes uint8

const (
	AttrReadOnly Attributes = 1 << iota
	AttrHidden
	AttrSystem
	AttrVolumeID
	AttrDirectory
	AttrArchive

	// attrLongName marks VFAT long filename slots.
	attrLongName = AttrReadOnly | AttrHidden | AttrSystem | AttrVolumeID
)

func (a Attributes) Has(flag Attributes) bool {
	return a&flag == flag
}

func (a Attributes) String() string {
	flags := []byte("------")
	for i, c := range "rhsvda" {
		if a&(1<<i) != 0 {
			flags[i] = byte(c)
		}
	}
	return string(flags)
}

const (
	// recordEnd as first name byte marks the end of a directory.
	recordEnd = 0x00
	// recordDeleted as first name byte marks a deleted record.
	recordDeleted = 0xE5
	// recordEscapedE5 stands for a name which really starts with 0xE5.
	recordEscapedE5 = 0x05
)

// RawDirEntry is one 32 byte directory record.
type RawDirEntry struct {
	Basename     [8]byte
	Extension    [3]byte
	Attributes   Attributes
	Reserved     uint8
	CreateTenths uint8
	CreateTime   uint16
	CreateDate   uint16
	AccessDate   uint16
	ClusterHigh  uint16
	ModifyTime   uint16
	ModifyDate   uint16
	ClusterLow   uint16
	Size         uint32
}

// DecodeRawDirEntry decodes the record at the beginning of b.
func DecodeRawDirEntry(b []byte) (RawDirEntry, error) {
	if len(b) < DirEntrySize {
		return RawDirEntry{}, checkpoint.New(ErrCorruptFilesystem, "directory record needs %d bytes, got %d", DirEntrySize, len(b))
	}

	var r RawDirEntry
	copy(r.Basename[:], b[0:8])
	copy(r.Extension[:], b[8:11])
	r.Attributes = Attributes(b[11])
	r.Reserved = b[12]
	r.CreateTenths = b[13]
	r.CreateTime = binary.LittleEndian.Uint16(b[14:])
	r.CreateDate = binary.LittleEndian.Uint16(b[16:])
	r.AccessDate = binary.LittleEndian.Uint16(b[18:])
	r.ClusterHigh = binary.LittleEndian.Uint16(b[20:])
	r.ModifyTime = binary.LittleEndian.Uint16(b[22:])
	r.ModifyDate = binary.LittleEndian.Uint16(b[24:])
	r.ClusterLow = binary.LittleEndian.Uint16(b[26:])
	r.Size = binary.LittleEndian.Uint32(b[28:])

	return r, nil
}

// EncodeRawDirEntry writes r to the beginning of b.
func EncodeRawDirEntry(b []byte, r RawDirEntry) error {
	if len(b) < DirEntrySize {
		return fmt.Errorf("directory record needs %d bytes, got %d", DirEntrySize, len(b))
	}

	copy(b[0:8], r.Basename[:])
	copy(b[8:11], r.Extension[:])
	b[11] = byte(r.Attributes)
	b[12] = r.Reserved
	b[13] = r.CreateTenths
	binary.LittleEndian.PutUint16(b[14:], r.CreateTime)
	binary.LittleEndian.PutUint16(b[16:], r.CreateDate)
	binary.LittleEndian.PutUint16(b[18:], r.AccessDate)
	binary.LittleEndian.PutUint16(b[20:], r.ClusterHigh)
	binary.LittleEndian.PutUint16(b[22:], r.ModifyTime)
	binary.LittleEndian.PutUint16(b[24:], r.ModifyDate)
	binary.LittleEndian.PutUint16(b[26:], r.ClusterLow)
	binary.LittleEndian.PutUint32(b[28:], r.Size)

	return nil
}

// Name returns the display name: lowercase, basename trimmed of trailing
// spaces and, unless the extension is blank, a dot and the trimmed extension.
func (r RawDirEntry) Name() string {
	base := r.Basename
	if base[0] == recordEscapedE5 {
		base[0] = recordDeleted
	}

	name := lowerASCII(strings.TrimRight(string(base[:]), " "))
	if r.Extension[0] != ' ' {
		name += "." + lowerASCII(strings.TrimRight(string(r.Extension[:]), " "))
	}
	return name
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func (r RawDirEntry) FirstCluster() ClusterNumber {
	return ClusterNumber(r.ClusterLow) | ClusterNumber(r.ClusterHigh)<<16
}

func (r RawDirEntry) ModTime() time.Time {
	return parseTimestamp(r.ModifyDate, r.ModifyTime)
}

func (r RawDirEntry) isEnd() bool {
	return r.Basename[0] == recordEnd
}

func (r RawDirEntry) isDeleted() bool {
	return r.Basename[0] == recordDeleted
}

func (r RawDirEntry) isLongName() bool {
	return r.Attributes&0x3F == attrLongName
}

// DirEntry is a shared handle on a directory record. It is reference
// counted: the creator owns one reference, Retain adds one and Release drops
// one. The quota node of the entry is returned, and the parent released, when
// the last reference is dropped.
type DirEntry struct {
	fs     *Filesystem
	parent *DirEntry
	raw    RawDirEntry
	refs   atomic.Int32
}

// newDirEntry charges the quota for the new node and retains the parent.
func newDirEntry(fs *Filesystem, parent *DirEntry, raw RawDirEntry) (*DirEntry, error) {
	if err := fs.quota.acquire(); err != nil {
		return nil, checkpoint.From(err)
	}

	e := &DirEntry{
		fs:     fs,
		parent: parent,
		raw:    raw,
	}
	e.refs.Store(1)
	if parent != nil {
		parent.Retain()
	}

	return e, nil
}

// Retain adds a reference and returns e.
func (e *DirEntry) Retain() *DirEntry {
	e.refs.Add(1)
	return e
}

// Release drops a reference.
func (e *DirEntry) Release() {
	switch refs := e.refs.Add(-1); {
	case refs > 0:
		return
	case refs < 0:
		panic("fat16: DirEntry released more often than retained")
	}

	e.fs.quota.release()
	if e.parent != nil {
		e.parent.Release()
	}
}

func (e *DirEntry) Name() string {
	return e.raw.Name()
}

func (e *DirEntry) IsDir() bool {
	return e.raw.Attributes.Has(AttrDirectory)
}

func (e *DirEntry) Attributes() Attributes {
	return e.raw.Attributes
}

func (e *DirEntry) Size() int64 {
	return int64(e.raw.Size)
}

func (e *DirEntry) FirstCluster() ClusterNumber {
	return e.raw.FirstCluster()
}

func (e *DirEntry) ModTime() time.Time {
	return e.raw.ModTime()
}

func (e *DirEntry) Raw() RawDirEntry {
	return e.raw
}

// Parent returns the entry of the enclosing directory, nil for entries of
// the root directory.
func (e *DirEntry) Parent() *DirEntry {
	return e.parent
}

// Identity is stable for the same on-disk record across enumerations: the
// identities of all parents, the first cluster and the name.
func (e *DirEntry) Identity() string {
	self := fmt.Sprintf("%d:%s", e.FirstCluster(), e.Name())
	if e.parent == nil {
		return "/" + self
	}
	return e.parent.Identity() + "/" + self
}

// Lock takes the exclusive lock of this entry in the lock table of its
// filesystem. The lock is independent of the reference count: the guard has
// to be released explicitly.
func (e *DirEntry) Lock(ctx context.Context) (*Guard, error) {
	g, err := e.fs.locks.Acquire(ctx, e.Identity())
	return g, checkpoint.From(err)
}

// Node is the result of opening a DirEntry: a *Directory or a *File.
type Node interface {
	// Entry returns the opened entry, nil for the root directory.
	Entry() *DirEntry
	Close() error
}

// Open returns a *Directory for directories and a *File positioned at the
// start of the file otherwise. The node retains e until it is closed.
func (e *DirEntry) Open() (Node, error) {
	if e.IsDir() {
		return &Directory{
			fs:    e.fs,
			entry: e.Retain(),
		}, nil
	}

	return newFile(e.fs, e.Retain()), nil
}
