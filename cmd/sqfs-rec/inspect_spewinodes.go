// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"os"
	"path"

	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs/sqfsinode"
	"git.lukeshu.com/squashfs-progs-ng/lib/textui"
)

func init() {
	inspectors = append(inspectors, subcommand{
		Command: cobra.Command{
			Use:   "spew-inodes",
			Short: "Spew all inodes as decoded",
			Args:  cliutil.WrapPositionalArgs(cobra.NoArgs),
		},
		RunE: func(fs *squashfs.FS, cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			spew := spew.NewDefaultConfig()
			spew.DisablePointerAddresses = true

			root, err := fs.RootInode(ctx)
			if err != nil {
				return err
			}
			return spewInodes(ctx, spew, fs, "/", root)
		},
	})
}

func spewInodes(ctx context.Context, spew *spew.ConfigState, fs *squashfs.FS, name string, ino *sqfsinode.Inode) error {
	textui.Fprintf(os.Stdout, "%s = ", name)
	spew.Dump(ino)
	_, _ = os.Stdout.WriteString("\n")

	if !ino.Mode.IsDir() {
		return nil
	}
	ents, err := fs.ReadDir(ctx, ino)
	if err != nil {
		return err
	}
	for _, ent := range ents {
		child, err := fs.ReadInode(ctx, ent.Ref)
		if err != nil {
			return err
		}
		if err := spewInodes(ctx, spew, fs, path.Join(name, ent.Name), child); err != nil {
			return err
		}
	}
	return nil
}
