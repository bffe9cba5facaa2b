/*
Copyright 2023 eatmoreapple

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-juicedev/sqlquery/scanner"
)

func newWatchCommand(a *app) *cobra.Command {
	var (
		interval time.Duration
		notify   bool
	)
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Load a directory and keep reloading it until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.directory(args)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("interval") {
				interval = a.settings.PollInterval
			}
			if !cmd.Flags().Changed("notify") {
				notify = a.settings.Notify
			}

			s := scanner.New(a.configuration(), scanner.DirRepository{Fs: a.fs, Root: dir},
				scanner.WithFs(a.fs),
				scanner.WithDirectoryName(""),
				scanner.WithPollInterval(interval),
				scanner.WithNotify(notify),
				scanner.WithLogger(a.logger),
			)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err = s.Initialize(ctx); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "watching %s, press Ctrl+C to stop", s.Dir())
			<-ctx.Done()
			return s.Destroy()
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", scanner.DefaultPollInterval, "poll interval")
	cmd.Flags().BoolVar(&notify, "notify", false, "rescan on file system notifications")
	return cmd
}
