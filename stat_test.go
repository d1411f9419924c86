package fat16

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aligator/fat16/internal/fatimage"
)

func TestDirEntry_FileInfo(t *testing.T) {
	img := buildImage(t, fatimage.Options{RootEntries: 16},
		imageEntry{path: "hello.txt", data: []byte("Hello World")},
		imageEntry{path: "docs/a.txt", data: []byte("a")},
		imageEntry{path: "locked.txt", data: []byte("locked")},
	)
	img.Data[img.RecordOffset("/", 2)+11] |= byte(AttrReadOnly)
	fs := mount(t, newTestDevice(img))

	tests := []struct {
		name      string
		lookup    string
		wantSize  int64
		wantMode  os.FileMode
		wantIsDir bool
	}{
		{name: "file", lookup: "hello.txt", wantSize: 11, wantMode: 0o644},
		{name: "directory", lookup: "docs", wantMode: os.ModeDir | 0o755, wantIsDir: true},
		{name: "read-only file", lookup: "locked.txt", wantSize: 6, wantMode: 0o444},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := fs.Root().Entry(context.Background(), tt.lookup)
			require.NoError(t, err)
			defer entry.Release()

			info := entry.FileInfo()
			assert.Equal(t, tt.lookup, info.Name())
			assert.Equal(t, tt.wantSize, info.Size())
			assert.Equal(t, tt.wantMode, info.Mode())
			assert.Equal(t, tt.wantIsDir, info.IsDir())
			assert.Equal(t, fatimage.DefaultModTime, info.ModTime())
			assert.Equal(t, entry.Raw(), info.Sys())
		})
	}
}

func TestEntryFileInfo_Root(t *testing.T) {
	info := entryFileInfo{root: true}
	assert.Equal(t, "/", info.Name())
	assert.True(t, info.IsDir())
	assert.Equal(t, os.ModeDir|0o755, info.Mode())
	assert.Equal(t, int64(0), info.Size())
	assert.True(t, info.ModTime().IsZero())
}
