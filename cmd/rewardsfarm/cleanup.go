package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/rewardsfarm/session"
)

func newCleanupCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Terminates Chrome processes left running on the farm's profiles.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load()
			if err != nil {
				return err
			}
			n, err := session.CleanupChrome(cmd.Context(), profilesDir(cfg), slog.Default())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "terminated %d chrome process(es)\n", n)
			return nil
		},
	}
}
