// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/netSkope/console-export-tool/internal/config"
	"github.com/netSkope/console-export-tool/internal/report"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "s1export",
		Short: "Export console data to spreadsheets",
		Long: `s1export pages through console REST listings and writes the records into
one worksheet per data type. Scoped reports fan out over every account, site
and group the API token can access.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	config.RegisterFlags(root.PersistentFlags())

	for _, name := range report.Names() {
		root.AddCommand(newReportCmd(name))
	}
	root.AddCommand(newScheduleCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the root command until it finishes or the process is signalled.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
