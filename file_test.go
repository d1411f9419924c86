package fat16

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aligator/fat16/internal/fatimage"
)

// pattern returns n bytes which differ between nearby offsets.
func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func openFile(t *testing.T, fs *Filesystem, name string) *File {
	t.Helper()

	entry, err := fs.Lookup(context.Background(), name)
	require.NoError(t, err)
	defer entry.Release()

	node, err := entry.Open()
	require.NoError(t, err)
	f, ok := node.(*File)
	require.True(t, ok, "%q is no file", name)
	t.Cleanup(func() { f.Close() })
	return f
}

// readAll reads f with chunks of the given size until Read returns 0.
func readAll(ctx context.Context, f *File, chunk int) ([]byte, error) {
	var result []byte
	buf := make([]byte, chunk)
	for {
		n, err := f.Read(ctx, buf)
		if err != nil {
			return result, err
		}
		if n == 0 {
			return result, nil
		}
		result = append(result, buf[:n]...)
	}
}

func TestFile_Read(t *testing.T) {
	tests := []struct {
		name   string
		opts   fatimage.Options
		data   []byte
		chunks []int
	}{
		{
			name:   "small file",
			data:   []byte("Hello World"),
			chunks: []int{1, 5, 11, 64},
		},
		{
			name:   "exactly one sector",
			opts:   fatimage.Options{SectorsPerCluster: 1},
			data:   pattern(SectorSize),
			chunks: []int{1, 100, 512, 513},
		},
		{
			name:   "several sectors of one cluster",
			opts:   fatimage.Options{SectorsPerCluster: 8},
			data:   pattern(3*SectorSize + 17),
			chunks: []int{7, 512, 1000, 8192},
		},
		{
			name:   "several clusters",
			opts:   fatimage.Options{SectorsPerCluster: 2},
			data:   pattern(5*2*SectorSize + 300),
			chunks: []int{1, 333, 1024, 1500, 1 << 16},
		},
		{
			name:   "one sector per cluster",
			opts:   fatimage.Options{SectorsPerCluster: 1},
			data:   pattern(7 * SectorSize),
			chunks: []int{511, 512, 4096},
		},
	}
	for _, tt := range tests {
		for _, chunk := range tt.chunks {
			t.Run(fmt.Sprintf("%s chunk %d", tt.name, chunk), func(t *testing.T) {
				opts := tt.opts
				opts.RootEntries = 16
				img := buildImage(t, opts, imageEntry{path: "data.bin", data: tt.data})
				fs := mount(t, newTestDevice(img))
				f := openFile(t, fs, "data.bin")

				got, err := readAll(context.Background(), f, chunk)
				require.NoError(t, err)
				if !bytes.Equal(tt.data, got) {
					t.Errorf("File.Read() with chunk size %d read %d bytes, differing from the %d written", chunk, len(got), len(tt.data))
				}

				pos, err := f.Position(context.Background())
				require.NoError(t, err)
				assert.Equal(t, int64(len(tt.data)), pos)

				// The end stays the end.
				n, err := f.Read(context.Background(), make([]byte, 10))
				assert.NoError(t, err)
				assert.Equal(t, 0, n)
			})
		}
	}
}

func TestFile_Read_NotContiguous(t *testing.T) {
	data := pattern(3 * SectorSize)
	img := buildImage(t, fatimage.Options{SectorsPerCluster: 1, RootEntries: 16},
		imageEntry{path: "data.bin", data: data},
	)

	// Move the second and third cluster: 2 -> 4 -> 3.
	third := append([]byte(nil), img.Data[img.ClusterOffset(4):img.ClusterOffset(5)]...)
	copy(img.Data[img.ClusterOffset(4):], img.Data[img.ClusterOffset(3):img.ClusterOffset(4)])
	copy(img.Data[img.ClusterOffset(3):], third)
	img.SetFAT(2, 4)
	img.SetFAT(4, 3)
	img.SetFAT(3, 0xFFFF)

	fs := mount(t, newTestDevice(img))
	got, err := readAll(context.Background(), openFile(t, fs, "data.bin"), 700)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFile_Read_ChainShorterThanSize(t *testing.T) {
	data := pattern(3 * SectorSize)
	img := buildImage(t, fatimage.Options{SectorsPerCluster: 1, RootEntries: 16},
		imageEntry{path: "data.bin", data: data},
	)
	img.SetFAT(img.Cluster("/data.bin"), 0xFFF8)

	fs := mount(t, newTestDevice(img))
	got, err := readAll(context.Background(), openFile(t, fs, "data.bin"), 1000)
	require.NoError(t, err)
	assert.Equal(t, data[:SectorSize], got, "reading stops at the end of the chain")
}

func TestFile_Read_SizeSmallerThanChain(t *testing.T) {
	img := buildImage(t, fatimage.Options{SectorsPerCluster: 1, RootEntries: 16},
		imageEntry{path: "data.bin", data: pattern(2 * SectorSize)},
	)
	// Shrink the recorded size, the chain keeps both clusters.
	record := img.Data[img.RecordOffset("/", 0):]
	record[28], record[29] = 100, 0

	fs := mount(t, newTestDevice(img))
	got, err := readAll(context.Background(), openFile(t, fs, "data.bin"), 4096)
	require.NoError(t, err)
	assert.Equal(t, pattern(100), got)
}

func TestFile_Read_Empty(t *testing.T) {
	img := buildImage(t, fatimage.Options{RootEntries: 16},
		imageEntry{path: "empty.txt"},
	)
	dev := newTestDevice(img)
	fs := mount(t, dev)
	f := openFile(t, fs, "empty.txt")
	assert.Equal(t, ClusterNumber(0), f.Entry().FirstCluster())

	reads := dev.readCount()
	n, err := f.Read(context.Background(), make([]byte, 64))
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, reads, dev.readCount(), "an empty file never touches the device")
}

func TestFile_Read_EmptyBuffer(t *testing.T) {
	img := buildImage(t, fatimage.Options{RootEntries: 16},
		imageEntry{path: "hello.txt", data: []byte("hello")},
	)
	fs := mount(t, newTestDevice(img))
	f := openFile(t, fs, "hello.txt")

	n, err := f.Read(context.Background(), nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := readAll(context.Background(), f, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestFile_Read_DeviceError(t *testing.T) {
	data := pattern(3 * SectorSize)
	img := buildImage(t, fatimage.Options{SectorsPerCluster: 1, RootEntries: 16},
		imageEntry{path: "data.bin", data: data},
	)
	dev := newTestDevice(img)
	fs := mount(t, dev)
	f := openFile(t, fs, "data.bin")
	ctx := context.Background()

	second := fs.Superblock().FirstDataSector() + 1
	dev.failSector(second, errDevice)

	n, err := f.Read(ctx, make([]byte, len(data)))
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, errDevice)
	assert.Equal(t, 0, n)

	// The first sector was consumed, the failed one was not.
	pos, err := f.Position(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(SectorSize), pos)

	dev.failSector(second, nil)
	got, err := readAll(ctx, f, len(data))
	require.NoError(t, err)
	assert.Equal(t, data[SectorSize:], got)
}

func TestFile_Read_CorruptChain(t *testing.T) {
	img := buildImage(t, fatimage.Options{SectorsPerCluster: 1, RootEntries: 16},
		imageEntry{path: "data.bin", data: pattern(2 * SectorSize)},
	)
	img.SetFAT(img.Cluster("/data.bin"), 0xFFF7)

	fs := mount(t, newTestDevice(img))
	f := openFile(t, fs, "data.bin")

	buf := make([]byte, SectorSize)
	n, err := f.Read(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, SectorSize, n)

	_, err = f.Read(context.Background(), buf)
	assert.ErrorIs(t, err, ErrCorruptFilesystem)
}

func TestFile_Read_FirstClusterOutOfRange(t *testing.T) {
	img := buildImage(t, fatimage.Options{RootEntries: 16},
		imageEntry{path: "data.bin", data: []byte("data")},
	)
	record := img.Data[img.RecordOffset("/", 0):]
	record[26], record[27] = 0xF0, 0x0F

	fs := mount(t, newTestDevice(img))
	_, err := openFile(t, fs, "data.bin").Read(context.Background(), make([]byte, 4))
	assert.ErrorIs(t, err, ErrCorruptFilesystem)
}

func TestFile_Read_Canceled(t *testing.T) {
	img := buildImage(t, fatimage.Options{RootEntries: 16},
		imageEntry{path: "hello.txt", data: []byte("hello")},
	)
	fs := mount(t, newTestDevice(img))
	f := openFile(t, fs, "hello.txt")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Read(ctx, make([]byte, 5))
	assert.True(t, errors.Is(err, context.Canceled), "File.Read() error = %v", err)

	got, err := readAll(context.Background(), f, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got, "a canceled read does not move the cursor")
}

func TestFile_Read_WaitsForLock(t *testing.T) {
	img := buildImage(t, fatimage.Options{RootEntries: 16},
		imageEntry{path: "hello.txt", data: []byte("hello")},
	)
	fs := mount(t, newTestDevice(img))
	f := openFile(t, fs, "hello.txt")

	require.NoError(t, f.lock.Acquire(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.Read(ctx, make([]byte, 5))
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "File.Read() error = %v", err)

	f.lock.Release(1)
	n, err := f.Read(context.Background(), make([]byte, 5))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestFile_Read_Concurrent(t *testing.T) {
	const sectors = 64

	// Every sector is filled with its own index.
	data := make([]byte, sectors*SectorSize)
	for i := range data {
		data[i] = byte(i / SectorSize)
	}
	img := buildImage(t, fatimage.Options{SectorsPerCluster: 4, RootEntries: 16},
		imageEntry{path: "data.bin", data: data},
	)
	fs := mount(t, newTestDevice(img))
	f := openFile(t, fs, "data.bin")

	var (
		mu  sync.Mutex
		got []int
		wg  sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			buf := make([]byte, SectorSize)
			for {
				n, err := f.Read(context.Background(), buf)
				if !assert.NoError(t, err) || n == 0 {
					return
				}
				assert.Equal(t, SectorSize, n)
				assert.Equal(t, bytes.Repeat(buf[:1], SectorSize), buf, "a read returns one whole sector")

				mu.Lock()
				got = append(got, int(buf[0]))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	sort.Ints(got)
	want := make([]int, sectors)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, got, "every sector is read exactly once")
}

func TestFile_Close(t *testing.T) {
	img := buildImage(t, fatimage.Options{RootEntries: 16},
		imageEntry{path: "hello.txt", data: []byte("hello")},
	)
	quota := NewQuota(4)
	fs := mount(t, newTestDevice(img), WithQuota(quota))

	entry, err := fs.Root().Entry(context.Background(), "hello.txt")
	require.NoError(t, err)
	node, err := entry.Open()
	require.NoError(t, err)
	entry.Release()

	assert.Equal(t, int64(2), quota.InUse())
	assert.NoError(t, node.Close())
	assert.NoError(t, node.Close())
	assert.Equal(t, int64(1), quota.InUse())
}
