package fat16

import (
	"errors"
)

// These errors classify every failure of the driver. Returned errors are
// checkpoints (see package checkpoint), so use errors.Is to test for them.
var (
	// ErrMemoryExhausted is returned when a node could not be allocated
	// because the node quota of the filesystem is used up.
	ErrMemoryExhausted = errors.New("memory exhausted")

	// ErrIO is returned for any failure of the underlying block device.
	ErrIO = errors.New("i/o error")

	// ErrNotFound is returned if a name does not resolve to an entry.
	ErrNotFound = errors.New("not found")

	// ErrCorruptFilesystem is returned for on-disk values which can not be
	// valid, e.g. cluster links outside of the FAT or into a bad cluster.
	ErrCorruptFilesystem = errors.New("corrupt filesystem")

	// ErrUnsupported is returned on mount if the superblock describes a
	// geometry this driver can not read.
	ErrUnsupported = errors.New("unsupported filesystem")

	ErrNotDirectory = errors.New("not a directory")
	ErrIsDirectory  = errors.New("is a directory")
	ErrReadOnly     = errors.New("read-only filesystem")
)
