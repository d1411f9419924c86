package fat16

import (
	"context"
	"iter"

	"github.com/aligator/fat16/checkpoint"
)

// Directory is either the fixed root directory region or a subdirectory
// stored in the cluster chain of its entry. It caches nothing, every
// enumeration reads the directory sectors again.
type Directory struct {
	fs *Filesystem
	// entry is nil for the root directory. A ".." entry of a first level
	// subdirectory has cluster 0 and also refers to the root region.
	entry *DirEntry
}

// Entry returns the entry the directory was opened from, nil for the root.
func (d *Directory) Entry() *DirEntry {
	return d.entry
}

func (d *Directory) IsRoot() bool {
	return d.entry == nil || d.entry.FirstCluster() == 0
}

// Close releases the entry of a subdirectory.
func (d *Directory) Close() error {
	if d.entry != nil {
		d.entry.Release()
		d.entry = nil
	}
	return nil
}

// sectors yields the sectors holding the records of d.
func (d *Directory) sectors(ctx context.Context) iter.Seq2[uint64, error] {
	if !d.IsRoot() {
		return d.fs.SectorChain(ctx, d.entry.FirstCluster())
	}

	return func(yield func(uint64, error) bool) {
		first := d.fs.sb.FirstRootDirSector()
		for sector := first; sector < first+d.fs.sb.RootDirSectorCount(); sector++ {
			if !yield(sector, nil) {
				return
			}
		}
	}
}

// records yields the raw records of all directory sectors, skipping deleted
// records and long filename slots. The first record starting with 0x00 ends
// the directory, nothing after it is yielded.
func (d *Directory) records(ctx context.Context) iter.Seq2[RawDirEntry, error] {
	return func(yield func(RawDirEntry, error) bool) {
		buf := make([]byte, SectorSize)

		for sector, err := range d.sectors(ctx) {
			if err != nil {
				yield(RawDirEntry{}, err)
				return
			}

			if err := d.fs.readSector(ctx, sector, buf); err != nil {
				yield(RawDirEntry{}, err)
				return
			}

			for i := 0; i < entriesPerSector; i++ {
				raw, err := DecodeRawDirEntry(buf[i*DirEntrySize:])
				if err != nil {
					yield(RawDirEntry{}, err)
					return
				}

				switch {
				case raw.isEnd():
					return
				case raw.isDeleted(), raw.isLongName():
					continue
				}

				if !yield(raw, nil) {
					return
				}
			}
		}
	}
}

// Entries yields a new DirEntry for every record of the directory, in
// on-disk order. The caller owns the yielded entries and has to Release them.
// The sequence stops after the first error, e.g. ErrMemoryExhausted if an
// entry can not be allocated.
func (d *Directory) Entries(ctx context.Context) iter.Seq2[*DirEntry, error] {
	return func(yield func(*DirEntry, error) bool) {
		for raw, err := range d.records(ctx) {
			if err != nil {
				yield(nil, err)
				return
			}

			entry, err := newDirEntry(d.fs, d.entry, raw)
			if err != nil {
				yield(nil, err)
				return
			}

			if !yield(entry, nil) {
				return
			}
		}
	}
}

// Entry returns the first entry whose name equals name. It returns an error
// matching ErrNotFound if there is none.
func (d *Directory) Entry(ctx context.Context, name string) (*DirEntry, error) {
	for entry, err := range d.Entries(ctx) {
		if err != nil {
			return nil, checkpoint.From(err)
		}

		if entry.Name() == name {
			return entry, nil
		}
		entry.Release()
	}

	return nil, checkpoint.New(ErrNotFound, "%q", name)
}

// ReadDir collects all entries of d. On error all collected entries are
// released again.
func (d *Directory) ReadDir(ctx context.Context) ([]*DirEntry, error) {
	var entries []*DirEntry
	for entry, err := range d.Entries(ctx) {
		if err != nil {
			for _, e := range entries {
				e.Release()
			}
			return nil, checkpoint.From(err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
