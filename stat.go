package fat16

import (
	"os"
	"time"
)

// FileInfo describes the entry as os.FileInfo. Sys returns the RawDirEntry.
func (e *DirEntry) FileInfo() os.FileInfo {
	return entryFileInfo{raw: e.raw}
}

type entryFileInfo struct {
	raw  RawDirEntry
	root bool
}

func (e entryFileInfo) Name() string {
	if e.root {
		return "/"
	}
	return e.raw.Name()
}

func (e entryFileInfo) Size() int64 {
	if e.IsDir() {
		return 0
	}
	return int64(e.raw.Size)
}

func (e entryFileInfo) Mode() os.FileMode {
	mode := os.FileMode(0o444)
	if !e.raw.Attributes.Has(AttrReadOnly) {
		mode |= 0o200
	}
	if e.IsDir() {
		return mode | os.ModeDir | 0o111
	}
	return mode
}

func (e entryFileInfo) ModTime() time.Time {
	return e.raw.ModTime()
}

func (e entryFileInfo) IsDir() bool {
	return e.root || e.raw.Attributes.Has(AttrDirectory)
}

func (e entryFileInfo) Sys() interface{} {
	return e.raw
}
