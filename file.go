package fat16

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/aligator/fat16/checkpoint"
)

// seek is the read cursor of a File.
type seek struct {
	// cluster is only meaningful while done is false.
	cluster ClusterNumber
	done    bool
	// sector within the cluster, 0..SectorsPerCluster.
	sector uint64
	// offset within the sector, 0..SectorSize.
	offset int
	// pos is the number of bytes read so far.
	pos int64
}

// File is an open regular file. Reads are strictly sequential, the cursor
// only moves forward.
type File struct {
	fs    *Filesystem
	entry *DirEntry

	// lock guards seek. It is a semaphore so that waiting for it can be
	// canceled through the context.
	lock *semaphore.Weighted
	seek seek

	closeOnce sync.Once
}

func newFile(fs *Filesystem, entry *DirEntry) *File {
	return &File{
		fs:    fs,
		entry: entry,
		lock:  semaphore.NewWeighted(1),
		seek: seek{
			cluster: entry.FirstCluster(),
		},
	}
}

func (f *File) Entry() *DirEntry {
	return f.entry
}

func (f *File) Size() int64 {
	return f.entry.Size()
}

// Position returns the number of bytes read so far.
func (f *File) Position(ctx context.Context) (int64, error) {
	if err := f.lock.Acquire(ctx, 1); err != nil {
		return 0, checkpoint.From(err)
	}
	defer f.lock.Release(1)

	return f.seek.pos, nil
}

// Close releases the entry of the file. Closing twice is a no-op.
func (f *File) Close() error {
	f.closeOnce.Do(f.entry.Release)
	return nil
}

// Read copies the next bytes of the file into p and returns how many were
// copied. It returns 0 and no error at the end of the file, which is reached
// at the file size or when the cluster chain ends, whichever comes first.
//
// Concurrent reads on the same File are serialized.
//
// If an error occurs after some sectors have been copied, Read returns only
// the error. The cursor still moved past the copied sectors, so those bytes
// are lost for the caller. The cursor never stops inside a sector which was
// not copied completely, a canceled or failed Read can be retried.
func (f *File) Read(ctx context.Context, p []byte) (int, error) {
	if err := f.lock.Acquire(ctx, 1); err != nil {
		return 0, checkpoint.From(err)
	}
	defer f.lock.Release(1)

	if remaining := f.Size() - f.seek.pos; int64(len(p)) > remaining {
		p = p[:remaining]
	}

	sectorsPerCluster := f.fs.sb.ClusterSectorCount()
	buf := make([]byte, SectorSize)
	total := 0

	for len(p) > 0 {
		// Work on a copy, it is stored only after the sector was copied.
		s := f.seek

		if s.offset == SectorSize {
			s.offset = 0
			s.sector++
		}

		if s.sector == sectorsPerCluster && !s.done {
			s.sector = 0

			next, ok, err := f.fs.NextCluster(ctx, s.cluster)
			if err != nil {
				return 0, checkpoint.From(err)
			}
			s.cluster, s.done = next, !ok
		}

		if s.done {
			f.seek = s
			return total, nil
		}

		if err := f.fs.sb.checkCluster(s.cluster); err != nil {
			return 0, checkpoint.From(err)
		}

		sector := f.fs.sb.FirstClusterSector(s.cluster) + s.sector
		if err := f.fs.readSector(ctx, sector, buf); err != nil {
			return 0, checkpoint.From(err)
		}

		n := copy(p, buf[s.offset:])
		p = p[n:]
		s.offset += n
		s.pos += int64(n)
		total += n

		f.seek = s
	}

	return total, nil
}
