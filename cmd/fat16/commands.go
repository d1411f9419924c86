package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/afero"

	"github.com/aligator/fat16"
	"github.com/aligator/fat16/blockdev"
	"github.com/aligator/fat16/internal/config"
	"github.com/aligator/fat16/internal/logging"
)

var (
	dirColor    = color.New(color.FgBlue, color.Bold)
	hiddenColor = color.New(color.FgHiBlack)
	labelColor  = color.New(color.Bold)
)

type command func(a *app, ctx context.Context, args []string) error

var commands = map[string]command{
	"info": (*app).info,
	"ls":   (*app).ls,
	"tree": (*app).tree,
	"cat":  (*app).cat,
}

// app is a mounted image plus where to print to.
type app struct {
	fs        *fat16.Filesystem
	quota     *fat16.Quota
	partition *blockdev.PartitionEntry
	out       io.Writer
}

func run(ctx context.Context, fsys afero.Fs, cfg *config.Config, out io.Writer, args []string) error {
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}

	a, unmount, err := mount(ctx, fsys, cfg)
	if err != nil {
		return err
	}
	defer unmount()

	a.out = out
	return cmd(a, ctx, args[1:])
}

func mount(ctx context.Context, fsys afero.Fs, cfg *config.Config) (*app, func() error, error) {
	dev, closeDev, err := blockdev.Open(fsys, cfg.Image)
	if err != nil {
		return nil, nil, err
	}

	a := &app{}
	var bd fat16.BlockDevice = dev

	if cfg.Partition > 0 {
		entries, err := blockdev.ReadMBR(ctx, dev)
		if err != nil {
			closeDev()
			return nil, nil, fmt.Errorf("%s: %w", cfg.Image, err)
		}

		entry := entries[cfg.Partition-1]
		if entry.IsEmpty() {
			closeDev()
			return nil, nil, fmt.Errorf("%s: partition %d is empty", cfg.Image, cfg.Partition)
		}
		if !entry.IsFAT16() {
			if l := logging.FromContext(ctx); l != nil {
				l.Warn("partition type is no FAT16 type", slog.String("partition", entry.String()))
			}
		}

		bd = entry.Partition(dev)
		a.partition = &entry
	}

	if cfg.MaxNodes > 0 {
		a.quota = fat16.NewQuota(cfg.MaxNodes)
	}

	fs, err := fat16.Open(ctx, bd, fat16.WithQuota(a.quota))
	if err != nil {
		closeDev()
		return nil, nil, err
	}
	a.fs = fs

	return a, func() error {
		fs.Close()
		return closeDev()
	}, nil
}

func (a *app) info(_ context.Context, _ []string) error {
	sb := a.fs.Superblock()

	line := func(label string, value interface{}) {
		fmt.Fprintf(a.out, "%s %v\n", labelColor.Sprintf("%-20s", label+":"), value)
	}

	if a.partition != nil {
		line("partition", a.partition)
	}
	line("oem name", strings.TrimRight(string(sb.OEMName[:]), " \x00"))
	line("bytes per sector", sb.BytesPerSector)
	line("sectors per cluster", sb.SectorsPerCluster)
	line("reserved sectors", sb.ReservedSectorCount)
	line("FATs", sb.FATCount)
	line("sectors per FAT", sb.SectorsPerFAT)
	line("root entries", sb.RootEntryCount)
	line("total sectors", sb.TotalSectorCount)
	line("media descriptor", fmt.Sprintf("%#02x", sb.MediaDescriptor))
	line("root dir sector", sb.FirstRootDirSector())
	line("data sector", sb.FirstDataSector())
	if a.quota != nil {
		line("node limit", a.quota.Limit())
	}
	return nil
}

// openDir opens the directory at p, the root for "" and "/".
func (a *app) openDir(ctx context.Context, p string) (*fat16.Directory, error) {
	entry, err := a.fs.Lookup(ctx, p)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return a.fs.Root(), nil
	}
	defer entry.Release()

	if !entry.IsDir() {
		return nil, fmt.Errorf("%s: %w", p, fat16.ErrNotDirectory)
	}
	node, err := entry.Open()
	if err != nil {
		return nil, err
	}
	return node.(*fat16.Directory), nil
}

func displayName(e *fat16.DirEntry) string {
	switch {
	case e.IsDir():
		return dirColor.Sprint(e.Name())
	case e.Attributes().Has(fat16.AttrHidden), e.Attributes().Has(fat16.AttrSystem):
		return hiddenColor.Sprint(e.Name())
	}
	return e.Name()
}

func (a *app) ls(ctx context.Context, args []string) error {
	p := "/"
	if len(args) > 0 {
		p = args[0]
	}

	dir, err := a.openDir(ctx, p)
	if err != nil {
		return err
	}
	defer dir.Close()

	for entry, err := range dir.Entries(ctx) {
		if err != nil {
			return err
		}
		if !entry.Attributes().Has(fat16.AttrVolumeID) {
			fmt.Fprintf(a.out, "%s %10d %s %s\n",
				entry.Attributes(), entry.Size(), entry.ModTime().Format("2006-01-02 15:04"), displayName(entry))
		}
		entry.Release()
	}
	return nil
}

func (a *app) tree(ctx context.Context, args []string) error {
	p := "/"
	if len(args) > 0 {
		p = args[0]
	}

	dir, err := a.openDir(ctx, p)
	if err != nil {
		return err
	}
	defer dir.Close()

	fmt.Fprintln(a.out, dirColor.Sprint(p))
	return a.printTree(ctx, dir, "")
}

func (a *app) printTree(ctx context.Context, dir *fat16.Directory, prefix string) error {
	entries, err := dir.ReadDir(ctx)
	if err != nil {
		return err
	}
	defer func() {
		for _, e := range entries {
			e.Release()
		}
	}()

	var children []*fat16.DirEntry
	for _, e := range entries {
		if e.Name() != "." && e.Name() != ".." && !e.Attributes().Has(fat16.AttrVolumeID) {
			children = append(children, e)
		}
	}
	sort.Slice(children, func(i, j int) bool {
		return children[i].Name() < children[j].Name()
	})

	for i, e := range children {
		branch, indent := "├── ", "│   "
		if i == len(children)-1 {
			branch, indent = "└── ", "    "
		}
		fmt.Fprintln(a.out, prefix+branch+displayName(e))

		if !e.IsDir() {
			continue
		}
		node, err := e.Open()
		if err != nil {
			return err
		}
		err = a.printTree(ctx, node.(*fat16.Directory), prefix+indent)
		node.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *app) cat(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("cat needs a path")
	}

	entry, err := a.fs.Lookup(ctx, args[0])
	if err != nil {
		return err
	}
	if entry == nil || entry.IsDir() {
		if entry != nil {
			entry.Release()
		}
		return fmt.Errorf("%s: %w", args[0], fat16.ErrIsDirectory)
	}

	node, err := entry.Open()
	entry.Release()
	if err != nil {
		return err
	}
	f := node.(*fat16.File)
	defer f.Close()

	buf := make([]byte, 8*fat16.SectorSize)
	for {
		n, err := f.Read(ctx, buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := a.out.Write(buf[:n]); err != nil {
			return err
		}
	}
}
