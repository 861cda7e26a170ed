// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Command sqfs-rec inspects squashfs archives from userspace,
// without the in-kernel driver.
package main

import (
	"context"
	"os"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs"
	"git.lukeshu.com/squashfs-progs-ng/lib/textui"
)

type subcommand struct {
	cobra.Command
	RunE func(*squashfs.FS, *cobra.Command, []string) error
}

var inspectors []subcommand

func main() {
	logLevelFlag := textui.LogLevelFlag{
		Level: dlog.LogLevelInfo,
	}
	var imgFlag string

	argparser := &cobra.Command{
		Use:   "sqfs-rec {[flags]|SUBCOMMAND}",
		Short: "Inspect and extract data from squashfs archives",

		Args: cliutil.WrapPositionalArgs(cliutil.OnlySubcommands),
		RunE: cliutil.RunSubcommands,

		SilenceErrors: true, // main() will handle this after .ExecuteContext() returns
		SilenceUsage:  true, // our FlagErrorFunc will handle it

		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	argparser.SetFlagErrorFunc(cliutil.FlagErrorFunc)
	argparser.SetHelpTemplate(cliutil.HelpTemplate)
	argparser.PersistentFlags().Var(&logLevelFlag, "verbosity", "set the verbosity")
	argparser.PersistentFlags().StringVar(&imgFlag, "img", "", "open the file `archive.sqfs`")
	if err := argparser.MarkPersistentFlagFilename("img"); err != nil {
		panic(err)
	}
	if err := argparser.MarkPersistentFlagRequired("img"); err != nil {
		panic(err)
	}

	argparserInspect := &cobra.Command{
		Use:   "inspect {[flags]|SUBCOMMAND}",
		Short: "Inspect (but don't modify) a squashfs archive",

		Args: cliutil.WrapPositionalArgs(cliutil.OnlySubcommands),
		RunE: cliutil.RunSubcommands,
	}
	argparser.AddCommand(argparserInspect)

	for _, child := range inspectors {
		cmd := child.Command
		runE := child.RunE
		cmd.RunE = func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logruslogger := logrus.New()
			logruslogger.SetLevel(logrus.Level(logLevelFlag.Level))
			logger := dlog.WrapLogrus(logruslogger)
			ctx = dlog.WithLogger(ctx, logger)
			dlog.SetFallbackLogger(logger.WithField("squashfs-progs.THIS_IS_A_BUG", true))

			grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{
				EnableSignalHandling: true,
			})
			grp.Go("main", func(ctx context.Context) (err error) {
				maybeSetErr := func(_err error) {
					if _err != nil && err == nil {
						err = _err
					}
				}
				fs, err := squashfs.Open(ctx, imgFlag)
				if err != nil {
					return err
				}
				defer func() {
					maybeSetErr(fs.Close())
				}()

				cmd.SetContext(ctx)
				return runE(fs, cmd, args)
			})
			return grp.Wait()
		}
		argparserInspect.AddCommand(&cmd)
	}

	if err := argparser.ExecuteContext(context.Background()); err != nil {
		textui.Fprintf(os.Stderr, "%v: error: %v\n", argparser.CommandPath(), err)
		os.Exit(1)
	}
}
