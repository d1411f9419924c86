package fatimage

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortName(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "readme.md", want: "README  MD "},
		{name: "a", want: "A          "},
		{name: "12345678.abc", want: "12345678ABC"},
		{name: "..", want: "..         "},
		{name: "toolongname.txt", wantErr: true},
		{name: "a.long", wantErr: true},
		{name: "a.b.c", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := shortName(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got[:]))
		})
	}
}

func TestBuild(t *testing.T) {
	b := New(Options{SectorsPerCluster: 1, RootEntries: 16, VolumeLabel: "test"})
	big := bytes.Repeat([]byte("0123456789abcdef"), 64) // 2 clusters
	require.NoError(t, b.AddFile("hello.txt", []byte("hello world")))
	require.NoError(t, b.AddFile("docs/big.bin", big))
	require.NoError(t, b.AddFile("empty", nil))
	require.NoError(t, b.AddDeleted("gone.txt"))

	img, err := b.Build()
	require.NoError(t, err)

	t.Run("boot sector", func(t *testing.T) {
		assert.Equal(t, uint16(512), binary.LittleEndian.Uint16(img.Data[11:]))
		assert.Equal(t, byte(1), img.Data[13])
		assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(img.Data[17:]))
		assert.Equal(t, []byte{0x55, 0xAA}, img.Data[510:512])
		assert.Len(t, img.Data, int(img.TotalSectors)*SectorSize)
	})

	t.Run("clusters", func(t *testing.T) {
		assert.Equal(t, uint16(2), img.Cluster("/hello.txt"))
		assert.Equal(t, uint16(3), img.Cluster("/docs"))
		assert.Equal(t, uint16(4), img.Cluster("/docs/big.bin"))
		assert.Equal(t, uint16(0), img.Cluster("/empty"))

		assert.Equal(t, uint16(endOfChain), img.FAT(2))
		assert.Equal(t, uint16(5), img.FAT(4))
		assert.Equal(t, uint16(endOfChain), img.FAT(5))
	})

	t.Run("every FAT copy", func(t *testing.T) {
		img.SetFAT(5, 0xFFF7)
		for i := 0; i < int(img.FATCount); i++ {
			assert.Equal(t, uint16(0xFFF7), binary.LittleEndian.Uint16(img.Data[img.FATOffset(i)+10:]))
		}
		img.SetFAT(5, endOfChain)
	})

	t.Run("root records", func(t *testing.T) {
		label := img.Data[img.RecordOffset("/", 0):]
		assert.Equal(t, "TEST       ", string(label[:11]))
		assert.Equal(t, byte(attrVolumeID), label[11])

		hello := img.Data[img.RecordOffset("/", 1):]
		assert.Equal(t, "HELLO   TXT", string(hello[:11]))
		assert.Equal(t, uint32(11), binary.LittleEndian.Uint32(hello[28:]))

		gone := img.Data[img.RecordOffset("/", 4):]
		assert.Equal(t, byte(0xE5), gone[0])

		assert.Equal(t, byte(0), img.Data[img.RecordOffset("/", 5)])
	})

	t.Run("subdirectory records", func(t *testing.T) {
		dot := img.Data[img.RecordOffset("/docs", 0):]
		assert.Equal(t, ".          ", string(dot[:11]))
		assert.Equal(t, uint16(3), binary.LittleEndian.Uint16(dot[26:]))

		dotdot := img.Data[img.RecordOffset("/docs", 1):]
		assert.Equal(t, "..         ", string(dotdot[:11]))
		assert.Equal(t, uint16(0), binary.LittleEndian.Uint16(dotdot[26:]))
	})

	t.Run("content", func(t *testing.T) {
		off := img.ClusterOffset(img.Cluster("/docs/big.bin"))
		assert.Equal(t, big, img.Data[off:off+len(big)])
	})
}

func TestBuildErrors(t *testing.T) {
	b := New(Options{RootEntries: 1})
	require.NoError(t, b.AddFile("a", nil))
	require.NoError(t, b.AddFile("b", nil))
	_, err := b.Build()
	assert.Error(t, err)

	b = New(Options{})
	require.NoError(t, b.AddFile("a", nil))
	assert.Error(t, b.AddFile("a", nil))
	assert.Error(t, b.Mkdir("a/b"))
}
