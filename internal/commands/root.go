// Package commands is the liveroom command line.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X ...commands.Version=...".
var Version = "dev"

func New() *cobra.Command {
	root := &cobra.Command{
		Use:           "liveroom",
		Short:         "Join a live audio/video room and serve its controls over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "Config file (default config/config.<CONFIG_ENV>.yaml)")

	root.AddCommand(NewJoin().Cobra())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "liveroom", Version)
		},
	})
	return root
}

func ExecuteContext(ctx context.Context) error {
	return New().ExecuteContext(ctx)
}
