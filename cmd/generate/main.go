// generate writes a small FAT16 image for trying out the fat16 command.
// Can be executed using 'go generate' from the project root.
package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/aligator/fat16/internal/fatimage"
)

// partitionStart is the LBA of the single partition written by --partitioned.
const partitionStart = 2048

func sample(label string) (*fatimage.Image, error) {
	b := fatimage.New(fatimage.Options{VolumeLabel: label})

	files := []struct{ path, content string }{
		{"hello.txt", "Hello World\n"},
		{"docs/readme.md", "# fat16\n\nA read-only FAT16 driver.\n"},
		{"docs/notes/todo", "nothing\n"},
		{"data/numbers.txt", numbers(2000)},
		{"data/empty.bin", ""},
		{"system/config.sys", "FILES=20\r\n"},
		{"system/autoexec.bat", "@ECHO OFF\r\n"},
	}
	for _, f := range files {
		if err := b.AddFile(f.path, []byte(f.content)); err != nil {
			return nil, err
		}
	}
	if err := b.Mkdir("data/old"); err != nil {
		return nil, err
	}
	if err := b.AddDeleted("data/removed.txt"); err != nil {
		return nil, err
	}
	return b.Build()
}

// numbers spans several clusters.
func numbers(n int) string {
	var sb strings.Builder
	for i := range n {
		fmt.Fprintf(&sb, "%d\n", i)
	}
	return sb.String()
}

// partitioned puts data into the first primary partition of an MBR disk.
func partitioned(data []byte) []byte {
	disk := make([]byte, partitionStart*512+len(data))
	entry := disk[0x1BE:]
	entry[4] = 0x06
	binary.LittleEndian.PutUint32(entry[8:], partitionStart)
	binary.LittleEndian.PutUint32(entry[12:], uint32(len(data)/512))
	disk[0x1FE], disk[0x1FF] = 0x55, 0xAA
	copy(disk[partitionStart*512:], data)
	return disk
}

func main() {
	flags := pflag.NewFlagSet("generate", pflag.ExitOnError)
	var (
		out   = flags.StringP("output", "o", "testdata/sample.img", "image to write")
		label = flags.String("label", "SAMPLE", "volume label")
		mbr   = flags.Bool("partitioned", false, "wrap the filesystem into an MBR partition table")
	)
	flags.Parse(os.Args[1:])

	img, err := sample(*label)
	if err != nil {
		panic(err)
	}

	data := img.Data
	if *mbr {
		data = partitioned(data)
	}

	fs := afero.NewOsFs()
	if err := fs.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		panic(err)
	}
	if err := afero.WriteFile(fs, *out, data, 0o644); err != nil {
		panic(err)
	}
	fmt.Printf("wrote %s (%d bytes)\n", *out, len(data))
}
