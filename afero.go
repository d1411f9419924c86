package fat16

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/aligator/fat16/checkpoint"
)

// Lookup resolves a slash separated path starting at the root directory.
// Components are matched case-insensitively. The root itself resolves to a
// nil entry. The caller owns the returned entry.
func (fs *Filesystem) Lookup(ctx context.Context, name string) (*DirEntry, error) {
	var current *DirEntry

	for _, component := range strings.Split(name, "/") {
		if component == "" || component == "." {
			continue
		}

		dir := fs.Root()
		if current != nil {
			if !current.IsDir() {
				err := checkpoint.New(ErrNotDirectory, "%q in %q", current.Name(), name)
				current.Release()
				return nil, err
			}
			dir = &Directory{fs: fs, entry: current}
		}

		// The child retains current as its parent.
		next, err := dir.Entry(ctx, strings.ToLower(component))
		if current != nil {
			current.Release()
		}
		if err != nil {
			return nil, checkpoint.From(err)
		}
		current = next
	}

	return current, nil
}

// Fs exposes a mounted filesystem as read-only afero.Fs. All operations use
// the context given to NewAferoFs.
type Fs struct {
	ctx context.Context
	fs  *Filesystem
}

var _ afero.Fs = (*Fs)(nil)

// NewAferoFs wraps fs. Use afero.IOFS to get an io/fs.FS from it.
func NewAferoFs(ctx context.Context, fs *Filesystem) *Fs {
	return &Fs{ctx: ctx, fs: fs}
}

func readOnly(op, name string) error {
	return &os.PathError{Op: op, Path: name, Err: checkpoint.Wrap(syscall.EROFS, ErrReadOnly)}
}

func pathError(op, name string, err error) error {
	if errors.Is(err, ErrNotFound) {
		// os.IsNotExist only recognizes syscall errors.
		err = syscall.ENOENT
	}
	return &os.PathError{Op: op, Path: name, Err: err}
}

func (a *Fs) Open(name string) (afero.File, error) {
	entry, err := a.fs.Lookup(a.ctx, name)
	if err != nil {
		return nil, pathError("open", name, err)
	}

	f := &aferoFile{ctx: a.ctx, fs: a.fs, name: name}
	if entry == nil {
		f.dir = a.fs.Root()
		return f, nil
	}
	defer entry.Release()

	node, err := entry.Open()
	if err != nil {
		return nil, pathError("open", name, err)
	}

	switch n := node.(type) {
	case *Directory:
		f.dir = n
	case *File:
		f.file = n
	}
	return f, nil
}

func (a *Fs) OpenFile(name string, flag int, _ os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 {
		return nil, readOnly("open", name)
	}
	return a.Open(name)
}

func (a *Fs) Stat(name string) (os.FileInfo, error) {
	entry, err := a.fs.Lookup(a.ctx, name)
	if err != nil {
		return nil, pathError("stat", name, err)
	}
	if entry == nil {
		return entryFileInfo{root: true}, nil
	}
	defer entry.Release()

	return entry.FileInfo(), nil
}

func (a *Fs) Name() string {
	return "fat16"
}

func (a *Fs) Create(name string) (afero.File, error) {
	return nil, readOnly("create", name)
}

func (a *Fs) Mkdir(name string, _ os.FileMode) error {
	return readOnly("mkdir", name)
}

func (a *Fs) MkdirAll(name string, _ os.FileMode) error {
	return readOnly("mkdir", name)
}

func (a *Fs) Remove(name string) error {
	return readOnly("remove", name)
}

func (a *Fs) RemoveAll(name string) error {
	return readOnly("remove", name)
}

func (a *Fs) Rename(oldname, _ string) error {
	return readOnly("rename", oldname)
}

func (a *Fs) Chmod(name string, _ os.FileMode) error {
	return readOnly("chmod", name)
}

func (a *Fs) Chown(name string, _, _ int) error {
	return readOnly("chown", name)
}

func (a *Fs) Chtimes(name string, _ time.Time, _ time.Time) error {
	return readOnly("chtimes", name)
}

// aferoFile is either a directory (dir set) or a regular file (file set).
type aferoFile struct {
	ctx  context.Context
	fs   *Filesystem
	name string

	dir       *Directory
	dirOffset int

	file *File
}

var _ afero.File = (*aferoFile)(nil)

func (f *aferoFile) Close() error {
	if f.dir != nil {
		return f.dir.Close()
	}
	return f.file.Close()
}

func (f *aferoFile) Name() string {
	return f.name
}

func (f *aferoFile) Stat() (os.FileInfo, error) {
	if f.file != nil {
		return f.file.Entry().FileInfo(), nil
	}
	if f.dir.Entry() == nil {
		return entryFileInfo{root: true}, nil
	}
	return f.dir.Entry().FileInfo(), nil
}

func (f *aferoFile) Read(p []byte) (int, error) {
	if f.file == nil {
		return 0, pathError("read", f.name, checkpoint.Wrap(syscall.EISDIR, ErrIsDirectory))
	}
	if len(p) == 0 {
		return 0, nil
	}

	n, err := f.file.Read(f.ctx, p)
	if err != nil {
		return 0, pathError("read", f.name, err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// ReadAt reads from a fresh cursor, the position used by Read is unchanged.
func (f *aferoFile) ReadAt(p []byte, off int64) (int, error) {
	if f.file == nil {
		return 0, pathError("read", f.name, checkpoint.Wrap(syscall.EISDIR, ErrIsDirectory))
	}
	if off < 0 {
		return 0, pathError("readat", f.name, checkpoint.Wrap(syscall.EINVAL, afero.ErrOutOfRange))
	}

	cursor := newFile(f.fs, f.file.Entry().Retain())
	defer cursor.Close()

	if err := discard(f.ctx, cursor, off); err != nil {
		return 0, pathError("readat", f.name, err)
	}

	total := 0
	for total < len(p) {
		n, err := cursor.Read(f.ctx, p[total:])
		if err != nil {
			return total, pathError("readat", f.name, err)
		}
		if n == 0 {
			return total, io.EOF
		}
		total += n
	}
	return total, nil
}

// Seek moves forward by reading and discarding. Seeking backwards starts
// over with a fresh cursor.
func (f *aferoFile) Seek(offset int64, whence int) (int64, error) {
	if f.file == nil {
		return 0, pathError("seek", f.name, checkpoint.Wrap(syscall.EISDIR, ErrIsDirectory))
	}

	pos, err := f.file.Position(f.ctx)
	if err != nil {
		return 0, pathError("seek", f.name, err)
	}

	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += pos
	case io.SeekEnd:
		offset += f.file.Size()
	default:
		return 0, pathError("seek", f.name, syscall.EINVAL)
	}

	if offset < 0 || offset > f.file.Size() {
		return 0, pathError("seek", f.name, checkpoint.Wrap(syscall.EINVAL, afero.ErrOutOfRange))
	}

	if offset < pos {
		fresh := newFile(f.fs, f.file.Entry().Retain())
		f.file.Close()
		f.file, pos = fresh, 0
	}

	if err := discard(f.ctx, f.file, offset-pos); err != nil {
		return 0, pathError("seek", f.name, err)
	}
	return offset, nil
}

// discard reads and drops n bytes.
func discard(ctx context.Context, f *File, n int64) error {
	buf := make([]byte, 8*SectorSize)
	for n > 0 {
		chunk := buf
		if int64(len(chunk)) > n {
			chunk = chunk[:n]
		}

		read, err := f.Read(ctx, chunk)
		if err != nil {
			return checkpoint.From(err)
		}
		if read == 0 {
			return io.ErrUnexpectedEOF
		}
		n -= int64(read)
	}
	return nil
}

// Readdir lists the directory without "." and ".." and without the volume
// label. Like os.File.Readdir, count > 0 returns at most count infos and
// io.EOF at the end, count <= 0 returns all remaining infos.
func (f *aferoFile) Readdir(count int) ([]os.FileInfo, error) {
	if f.dir == nil {
		return nil, pathError("readdir", f.name, checkpoint.Wrap(syscall.ENOTDIR, ErrNotDirectory))
	}

	entries, err := f.dir.ReadDir(f.ctx)
	if err != nil {
		return nil, pathError("readdir", f.name, err)
	}

	var infos []os.FileInfo
	for _, e := range entries {
		name := e.Name()
		if name != "." && name != ".." && !e.Attributes().Has(AttrVolumeID) {
			infos = append(infos, e.FileInfo())
		}
		e.Release()
	}

	if f.dirOffset > len(infos) {
		f.dirOffset = len(infos)
	}
	infos = infos[f.dirOffset:]

	if count <= 0 {
		f.dirOffset += len(infos)
		return infos, nil
	}

	if len(infos) == 0 {
		return nil, io.EOF
	}
	if len(infos) > count {
		infos = infos[:count]
	}
	f.dirOffset += len(infos)
	return infos, nil
}

func (f *aferoFile) Readdirnames(count int) ([]string, error) {
	infos, err := f.Readdir(count)
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name()
	}
	return names, err
}

func (f *aferoFile) Sync() error {
	return nil
}

func (f *aferoFile) Truncate(int64) error {
	return readOnly("truncate", f.name)
}

func (f *aferoFile) Write([]byte) (int, error) {
	return 0, readOnly("write", f.name)
}

func (f *aferoFile) WriteAt([]byte, int64) (int, error) {
	return 0, readOnly("write", f.name)
}

func (f *aferoFile) WriteString(string) (int, error) {
	return 0, readOnly("write", f.name)
}
