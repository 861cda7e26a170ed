// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bufio"
	"os"

	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/spf13/cobra"

	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs"
	"git.lukeshu.com/squashfs-progs-ng/lib/textui"
)

func init() {
	inspectors = append(inspectors, subcommand{
		Command: cobra.Command{
			Use:   "cat PATH...",
			Short: "Write the contents of archived files to stdout",
			Args:  cliutil.WrapPositionalArgs(cobra.MinimumNArgs(1)),
		},
		RunE: func(fs *squashfs.FS, cmd *cobra.Command, args []string) (err error) {
			out := bufio.NewWriter(os.Stdout)
			defer func() {
				if _err := out.Flush(); _err != nil && err == nil {
					err = _err
				}
			}()
			ctx := cmd.Context()

			buf := make([]byte, textui.Tunable(64*1024))
			for _, arg := range args {
				ino, _, err := fs.LookupPath(ctx, arg)
				if err != nil {
					return err
				}
				fh, err := fs.OpenFile(ctx, ino)
				if err != nil {
					return err
				}
				for off := int64(0); off < fh.Size(); {
					n, err := fh.ReadAt(ctx, buf, off)
					if n > 0 {
						if _, werr := out.Write(buf[:n]); werr != nil {
							return werr
						}
						off += int64(n)
						continue
					}
					if err != nil {
						return err
					}
				}
			}
			return nil
		},
	})
}
