package fat16

import (
	"context"
	"log/slog"

	"github.com/aligator/fat16/checkpoint"
	"github.com/aligator/fat16/internal/logging"
)

// Filesystem is a mounted FAT16 filesystem. It is never modified after
// Open and may be shared by any number of directories, entries and files.
type Filesystem struct {
	dev   BlockDevice
	sb    Superblock
	log   *slog.Logger
	quota *Quota
	locks *LockTable
}

type Option func(*Filesystem)

// WithLogger sets the logger used when the context of an operation does not
// carry one.
func WithLogger(l *slog.Logger) Option {
	return func(fs *Filesystem) {
		fs.log = l
	}
}

// WithQuota limits the number of live nodes of this filesystem. The mount
// itself counts as one node.
func WithQuota(q *Quota) Option {
	return func(fs *Filesystem) {
		fs.quota = q
	}
}

// WithLockTable shares a lock table between several mounts.
func WithLockTable(t *LockTable) Option {
	return func(fs *Filesystem) {
		fs.locks = t
	}
}

// Open mounts the filesystem found on dev by reading its superblock.
func Open(ctx context.Context, dev BlockDevice, opts ...Option) (*Filesystem, error) {
	fs := &Filesystem{
		dev: dev,
		log: logging.Discard(),
	}
	for _, opt := range opts {
		opt(fs)
	}
	if fs.locks == nil {
		fs.locks = NewLockTable()
	}

	if err := fs.quota.acquire(); err != nil {
		return nil, checkpoint.From(err)
	}

	sb, err := readSuperblock(ctx, dev)
	if err != nil {
		fs.quota.release()
		return nil, checkpoint.From(err)
	}
	fs.sb = sb

	fs.logger(ctx).Debug("mounted filesystem",
		slog.String("superblock", sb.String()),
		slog.Uint64("first_root_dir_sector", sb.FirstRootDirSector()),
		slog.Uint64("first_data_sector", sb.FirstDataSector()),
	)

	return fs, nil
}

// Close returns the node of the mount to the quota. Handles opened from the
// filesystem keep working.
func (fs *Filesystem) Close() error {
	fs.quota.release()
	return nil
}

func (fs *Filesystem) Superblock() Superblock {
	return fs.sb
}

// Root returns the fixed root directory region.
func (fs *Filesystem) Root() *Directory {
	return &Directory{fs: fs}
}

// Locks returns the lock table used for DirEntry.Lock.
func (fs *Filesystem) Locks() *LockTable {
	return fs.locks
}

func (fs *Filesystem) logger(ctx context.Context) *slog.Logger {
	if l := logging.FromContext(ctx); l != nil {
		return l
	}
	return fs.log
}

// readSector reads a single sector into buf.
func (fs *Filesystem) readSector(ctx context.Context, sector uint64, buf []byte) error {
	if err := fs.dev.ReadSectors(ctx, sector, [][]byte{buf}); err != nil {
		fs.logger(ctx).Debug("sector read failed", slog.Uint64("sector", sector), slog.Any("err", err))
		return checkpoint.Wrapf(err, ErrIO, "read sector %d", sector)
	}
	return nil
}
