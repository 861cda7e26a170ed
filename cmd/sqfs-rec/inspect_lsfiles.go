// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"path"
	"strings"

	"github.com/datawire/dlib/derror"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/spf13/cobra"

	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs/sqfsinode"
	"git.lukeshu.com/squashfs-progs-ng/lib/textui"
)

func init() {
	inspectors = append(inspectors, subcommand{
		Command: cobra.Command{
			Use:   "ls-files",
			Short: "A listing of all files in the archive",
			Args:  cliutil.WrapPositionalArgs(cobra.NoArgs),
		},
		RunE: func(fs *squashfs.FS, cmd *cobra.Command, _ []string) (err error) {
			out := bufio.NewWriter(os.Stdout)
			defer func() {
				if _err := out.Flush(); _err != nil && err == nil {
					err = _err
				}
			}()
			defer func() {
				if _err := derror.PanicToError(recover()); _err != nil {
					textui.Fprintf(out, "\n\n%+v\n", _err)
					err = _err
				}
			}()
			ctx := cmd.Context()

			root, err := fs.RootInode(ctx)
			if err != nil {
				return err
			}
			printDir(ctx, out, "", true, "/", fs, root)

			return nil
		},
	})
}

const (
	tS = "    "
	tl = "│   "
	tT = "├── "
	tL = "└── "
)

func printText(out io.Writer, prefix string, isLast bool, name, text string) {
	first, rest := tT, tl
	if isLast {
		first, rest = tL, tS
	}
	for i, line := range strings.Split(textui.Sprintf("%q %s", name, text), "\n") {
		_, _ = io.WriteString(out, prefix)
		if i == 0 {
			_, _ = io.WriteString(out, first)
		} else {
			_, _ = io.WriteString(out, rest)
		}
		_, _ = io.WriteString(out, line)
		_, _ = io.WriteString(out, "\n")
	}
}

func fmtErr(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "\n") {
		errStr = "\\\n" + errStr
	}
	return errStr
}

func fmtInode(ino *sqfsinode.Inode) string {
	return textui.Sprintf("ino=%v mode=%v uid=%v gid=%v size=%v",
		ino.Inum, ino.Mode, ino.UID, ino.GID, ino.Size)
}

func printDir(ctx context.Context, out io.Writer, prefix string, isLast bool, name string, fs *squashfs.FS, ino *sqfsinode.Inode) {
	printText(out, prefix, isLast, name+"/", fmtInode(ino))
	if isLast {
		prefix += tS
	} else {
		prefix += tl
	}
	ents, err := fs.ReadDir(ctx, ino)
	if err != nil {
		printText(out, prefix, true, "", textui.Sprintf("err=%v", fmtErr(err)))
		return
	}
	for i, ent := range ents {
		printDirEntry(ctx, out, prefix, i == len(ents)-1, fs, path.Join(name, ent.Name), ent)
	}
}

func printDirEntry(ctx context.Context, out io.Writer, prefix string, isLast bool, fs *squashfs.FS, name string, ent squashfs.DirEntry) {
	ino, err := fs.ReadInode(ctx, ent.Ref)
	if err != nil {
		printText(out, prefix, isLast, name, textui.Sprintf("%v err=%v", ent.Type, fmtErr(err)))
		return
	}
	switch ent.Type {
	case sqfsinode.DIR_TYPE:
		printDir(ctx, out, prefix, isLast, name, fs, ino)
	case sqfsinode.SYMLINK_TYPE:
		target, err := fs.ReadSymlink(ctx, ino)
		if err != nil {
			printText(out, prefix, isLast, name, textui.Sprintf("%v err=%v", ent.Type, fmtErr(err)))
			return
		}
		printText(out, prefix, isLast, name, textui.Sprintf("%s -> %q", fmtInode(ino), target))
	case sqfsinode.BLKDEV_TYPE, sqfsinode.CHRDEV_TYPE:
		body, ok := ino.Body.(sqfsinode.DevBody)
		if !ok {
			printText(out, prefix, isLast, name, textui.Sprintf("%v err=inode is not a device", ent.Type))
			return
		}
		printText(out, prefix, isLast, name, textui.Sprintf("%s rdev=%v", fmtInode(ino), body.RDev))
	default:
		printText(out, prefix, isLast, name, fmtInode(ino))
	}
}
