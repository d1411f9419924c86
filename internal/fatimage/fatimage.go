// Package fatimage builds small FAT16 images in memory. The layout is the
// classic one: boot sector, reserved sectors, FAT copies, the fixed root
// directory region and the data clusters. Clusters are allocated in the
// order directories and files were added, every chain is contiguous.
package fatimage

import (
	"encoding/binary"
	"fmt"
	"path"
	"strings"
	"time"
)

const (
	SectorSize = 512
	recordSize = 32

	attrVolumeID  = 0x08
	attrDirectory = 0x10
	attrArchive   = 0x20

	mediaFixed = 0xF8

	endOfChain = 0xFFFF
)

// DefaultModTime is the timestamp of every record.
var DefaultModTime = time.Date(2024, 5, 17, 12, 34, 56, 0, time.UTC)

type Options struct {
	SectorsPerCluster uint8
	ReservedSectors   uint16
	FATCount          uint8
	RootEntries       uint16
	OEMName           string
	// VolumeLabel adds a volume id record as first root entry if set.
	VolumeLabel string
}

func (o *Options) setDefaults() {
	if o.SectorsPerCluster == 0 {
		o.SectorsPerCluster = 4
	}
	if o.ReservedSectors == 0 {
		o.ReservedSectors = 1
	}
	if o.FATCount == 0 {
		o.FATCount = 2
	}
	if o.RootEntries == 0 {
		o.RootEntries = 512
	}
	if o.OEMName == "" {
		o.OEMName = "fatimage"
	}
}

type node struct {
	name     [11]byte
	dir      bool
	deleted  bool
	volume   bool
	data     []byte
	children []*node
	byName   map[string]*node
	parent   *node

	cluster  uint16
	clusters int
}

// Builder collects directories and files until Build is called.
type Builder struct {
	opts Options
	root *node
}

func New(opts Options) *Builder {
	opts.setDefaults()

	b := &Builder{
		opts: opts,
		root: &node{dir: true, byName: make(map[string]*node)},
	}
	if opts.VolumeLabel != "" {
		label := &node{volume: true}
		copy(label.name[:], padded(strings.ToUpper(opts.VolumeLabel), 11))
		b.root.children = append(b.root.children, label)
	}
	return b
}

func padded(s string, n int) string {
	if len(s) >= n {
		return s[:n]
	}
	return s + strings.Repeat(" ", n-len(s))
}

// shortName converts "readme.md" to the 11 byte record name "README  MD ".
func shortName(name string) ([11]byte, error) {
	var result [11]byte

	base, ext, _ := strings.Cut(strings.ToUpper(name), ".")
	if name == "." || name == ".." {
		base, ext = name, ""
	}
	if base == "" || len(base) > 8 || len(ext) > 3 || strings.Contains(ext, ".") {
		return result, fmt.Errorf("%q is no 8.3 name", name)
	}

	copy(result[:8], padded(base, 8))
	copy(result[8:], padded(ext, 3))
	return result, nil
}

func (b *Builder) dir(p string) (*node, error) {
	cur := b.root
	for _, component := range strings.Split(path.Clean("/"+p), "/") {
		if component == "" {
			continue
		}
		next, ok := cur.byName[strings.ToLower(component)]
		if !ok {
			name, err := shortName(component)
			if err != nil {
				return nil, err
			}
			next = &node{name: name, dir: true, parent: cur, byName: make(map[string]*node)}
			cur.children = append(cur.children, next)
			cur.byName[strings.ToLower(component)] = next
		}
		if !next.dir {
			return nil, fmt.Errorf("path %q invalid: %q is a file", p, component)
		}
		cur = next
	}
	return cur, nil
}

// Mkdir creates the directory p and all missing parents.
func (b *Builder) Mkdir(p string) error {
	_, err := b.dir(p)
	return err
}

// AddFile adds a file with the given content. Parents are created.
func (b *Builder) AddFile(p string, data []byte) error {
	dir, err := b.dir(path.Dir(path.Clean("/" + p)))
	if err != nil {
		return err
	}
	base := path.Base(p)
	name, err := shortName(base)
	if err != nil {
		return err
	}
	if _, ok := dir.byName[strings.ToLower(base)]; ok {
		return fmt.Errorf("%q already exists", p)
	}

	f := &node{name: name, data: data, parent: dir}
	dir.children = append(dir.children, f)
	dir.byName[strings.ToLower(base)] = f
	return nil
}

// AddDeleted adds a deleted record for name p. It keeps its slot in the
// directory but owns no clusters.
func (b *Builder) AddDeleted(p string) error {
	dir, err := b.dir(path.Dir(path.Clean("/" + p)))
	if err != nil {
		return err
	}
	name, err := shortName(path.Base(p))
	if err != nil {
		return err
	}

	dir.children = append(dir.children, &node{name: name, deleted: true, parent: dir})
	return nil
}

func (b *Builder) clusterSize() int {
	return int(b.opts.SectorsPerCluster) * SectorSize
}

func (b *Builder) allocate(n *node, next *int) {
	size := len(n.data)
	if n.dir {
		size = (len(n.children) + 2) * recordSize
	}

	n.clusters = (size + b.clusterSize() - 1) / b.clusterSize()
	if n.dir && n.clusters == 0 {
		n.clusters = 1
	}
	if n.clusters > 0 {
		n.cluster = uint16(*next)
		*next += n.clusters
	}

	for _, c := range n.children {
		if !c.deleted && !c.volume {
			b.allocate(c, next)
		}
	}
}

// Build lays out and renders the image.
func (b *Builder) Build() (*Image, error) {
	if len(b.root.children) > int(b.opts.RootEntries) {
		return nil, fmt.Errorf("%d root entries do not fit into %d", len(b.root.children), b.opts.RootEntries)
	}

	next := 2
	for _, c := range b.root.children {
		if !c.deleted && !c.volume {
			b.allocate(c, &next)
		}
	}
	if next > 0xFFF0 {
		return nil, fmt.Errorf("%d clusters do not fit into FAT16", next)
	}

	sectorsPerFAT := (next*2 + SectorSize - 1) / SectorSize
	rootSectors := (int(b.opts.RootEntries)*recordSize + SectorSize - 1) / SectorSize
	dataStart := int(b.opts.ReservedSectors) + int(b.opts.FATCount)*sectorsPerFAT + rootSectors
	totalSectors := dataStart + (next-2)*int(b.opts.SectorsPerCluster)

	img := &Image{
		Data:              make([]byte, totalSectors*SectorSize),
		SectorsPerCluster: b.opts.SectorsPerCluster,
		ReservedSectors:   b.opts.ReservedSectors,
		FATCount:          b.opts.FATCount,
		RootEntries:       b.opts.RootEntries,
		SectorsPerFAT:     uint16(sectorsPerFAT),
		TotalSectors:      uint32(totalSectors),
		clusters:          make(map[string]uint16),
	}

	b.writeBootSector(img)
	img.SetFAT(0, 0xFF00|mediaFixed)
	img.SetFAT(1, 0xFFFF)

	b.writeRecords(img, img.RootDirOffset(), b.root.children)
	for _, c := range b.root.children {
		b.writeNode(img, c, "")
	}

	return img, nil
}

func (b *Builder) writeBootSector(img *Image) {
	s := img.Data[:SectorSize]

	copy(s[0:3], []byte{0xEB, 0x3C, 0x90})
	copy(s[3:11], padded(b.opts.OEMName, 8))
	binary.LittleEndian.PutUint16(s[11:], SectorSize)
	s[13] = b.opts.SectorsPerCluster
	binary.LittleEndian.PutUint16(s[14:], b.opts.ReservedSectors)
	s[16] = b.opts.FATCount
	binary.LittleEndian.PutUint16(s[17:], b.opts.RootEntries)
	if img.TotalSectors < 0x10000 {
		binary.LittleEndian.PutUint16(s[19:], uint16(img.TotalSectors))
	} else {
		binary.LittleEndian.PutUint32(s[32:], img.TotalSectors)
	}
	s[21] = mediaFixed
	binary.LittleEndian.PutUint16(s[22:], img.SectorsPerFAT)
	binary.LittleEndian.PutUint16(s[24:], 32) // sectors per track
	binary.LittleEndian.PutUint16(s[26:], 4)  // heads
	s[36] = 0x80                              // drive number
	s[38] = 0x29                              // extended boot signature
	binary.LittleEndian.PutUint32(s[39:], 0x1F16CAFE)
	copy(s[43:54], padded(strings.ToUpper(b.opts.VolumeLabel), 11))
	copy(s[54:62], "FAT16   ")
	s[510], s[511] = 0x55, 0xAA
}

func dosTime(t time.Time) (date, clock uint16) {
	date = uint16(t.Year()-1980)<<9 | uint16(t.Month())<<5 | uint16(t.Day())
	clock = uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2)
	return date, clock
}

func putRecord(dst []byte, name [11]byte, attr byte, cluster uint16, size uint32) {
	date, clock := dosTime(DefaultModTime)

	copy(dst[0:11], name[:])
	dst[11] = attr
	binary.LittleEndian.PutUint16(dst[14:], clock)
	binary.LittleEndian.PutUint16(dst[16:], date)
	binary.LittleEndian.PutUint16(dst[18:], date)
	binary.LittleEndian.PutUint16(dst[22:], clock)
	binary.LittleEndian.PutUint16(dst[24:], date)
	binary.LittleEndian.PutUint16(dst[26:], cluster)
	binary.LittleEndian.PutUint32(dst[28:], size)
}

func (b *Builder) writeRecords(img *Image, offset int, children []*node) {
	for i, c := range children {
		dst := img.Data[offset+i*recordSize:]
		switch {
		case c.volume:
			putRecord(dst, c.name, attrVolumeID, 0, 0)
		case c.deleted:
			putRecord(dst, c.name, attrArchive, 0, 0)
			dst[0] = 0xE5
		case c.dir:
			putRecord(dst, c.name, attrDirectory, c.cluster, 0)
		default:
			putRecord(dst, c.name, attrArchive, c.cluster, uint32(len(c.data)))
		}
	}
}

func displayName(name [11]byte) string {
	base := strings.TrimRight(string(name[:8]), " ")
	ext := strings.TrimRight(string(name[8:]), " ")
	if ext != "" {
		base += "." + ext
	}
	return strings.ToLower(base)
}

func (b *Builder) writeNode(img *Image, n *node, parentPath string) {
	if n.deleted || n.volume {
		return
	}

	p := parentPath + "/" + displayName(n.name)
	img.clusters[p] = n.cluster

	for i := 0; i < n.clusters; i++ {
		c := n.cluster + uint16(i)
		if i == n.clusters-1 {
			img.SetFAT(c, endOfChain)
		} else {
			img.SetFAT(c, c+1)
		}
	}

	if !n.dir {
		if n.clusters > 0 {
			copy(img.Data[img.ClusterOffset(n.cluster):], n.data)
		}
		return
	}

	var dot, dotdot [11]byte
	copy(dot[:], padded(".", 11))
	copy(dotdot[:], padded("..", 11))
	parentCluster := uint16(0)
	if n.parent != nil {
		parentCluster = n.parent.cluster
	}

	records := append([]*node{
		{name: dot, dir: true, cluster: n.cluster},
		{name: dotdot, dir: true, cluster: parentCluster},
	}, n.children...)
	b.writeRecords(img, img.ClusterOffset(n.cluster), records)

	for _, c := range n.children {
		b.writeNode(img, c, p)
	}
}

// Image is a rendered filesystem image plus the layout needed to locate
// structures in it.
type Image struct {
	Data []byte

	SectorsPerCluster uint8
	ReservedSectors   uint16
	FATCount          uint8
	RootEntries       uint16
	SectorsPerFAT     uint16
	TotalSectors      uint32

	clusters map[string]uint16
}

// Cluster returns the first cluster of the file or directory at p, e.g.
// "/docs/readme.md".
func (img *Image) Cluster(p string) uint16 {
	return img.clusters[path.Clean("/"+strings.ToLower(p))]
}

func (img *Image) ClusterSize() int {
	return int(img.SectorsPerCluster) * SectorSize
}

func (img *Image) FATOffset(copyIndex int) int {
	return (int(img.ReservedSectors) + copyIndex*int(img.SectorsPerFAT)) * SectorSize
}

// SetFAT writes the link of cluster c into every FAT copy.
func (img *Image) SetFAT(c, value uint16) {
	for i := 0; i < int(img.FATCount); i++ {
		binary.LittleEndian.PutUint16(img.Data[img.FATOffset(i)+int(c)*2:], value)
	}
}

// FAT returns the link of cluster c from the first FAT.
func (img *Image) FAT(c uint16) uint16 {
	return binary.LittleEndian.Uint16(img.Data[img.FATOffset(0)+int(c)*2:])
}

func (img *Image) RootDirOffset() int {
	return img.FATOffset(int(img.FATCount))
}

func (img *Image) DataOffset() int {
	rootSectors := (int(img.RootEntries)*recordSize + SectorSize - 1) / SectorSize
	return img.RootDirOffset() + rootSectors*SectorSize
}

func (img *Image) ClusterOffset(c uint16) int {
	return img.DataOffset() + (int(c)-2)*img.ClusterSize()
}

// RecordOffset returns the byte offset of record index of the directory at
// dir ("/" for the root). For subdirectories index 0 and 1 are "." and "..".
func (img *Image) RecordOffset(dir string, index int) int {
	if path.Clean("/"+dir) == "/" {
		return img.RootDirOffset() + index*recordSize
	}
	return img.ClusterOffset(img.Cluster(dir)) + index*recordSize
}
