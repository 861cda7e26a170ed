// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/spf13/cobra"

	"git.lukeshu.com/squashfs-progs-ng/cmd/sqfs-rec/inspect/mount"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs"
)

func init() {
	inspectors = append(inspectors, subcommand{
		Command: cobra.Command{
			Use:   "mount MOUNTPOINT",
			Short: "Mount the archive read-only",
			Args:  cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		},
		RunE: func(fs *squashfs.FS, cmd *cobra.Command, args []string) error {
			return mount.MountRO(cmd.Context(), fs, args[0])
		},
	})
}
