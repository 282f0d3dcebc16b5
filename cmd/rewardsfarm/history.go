package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/rewardsfarm/history"
	"github.com/hazyhaar/rewardsfarm/notify"
)

func newHistoryCmd(f *flags) *cobra.Command {
	var (
		limit   int
		account string
		daily   bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Prints recent search passes or daily point totals.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.Path("history.db"))
			if err != nil {
				return err
			}
			defer store.Close()

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			if daily {
				if account == "" {
					return fmt.Errorf("history: --daily needs --account")
				}
				days, err := store.Daily(cmd.Context(), account)
				if err != nil {
					return err
				}
				t.AppendHeader(table.Row{"Date", "Earned", "Total", "Difference"})
				for _, d := range days {
					t.AppendRow(table.Row{d.Day, notify.FormatNumber(d.Earned), notify.FormatNumber(d.Total), notify.FormatNumber(d.Difference)})
				}
			} else {
				passes, err := store.LatestPasses(cmd.Context(), account, limit)
				if err != nil {
					return err
				}
				t.AppendHeader(table.Row{"When", "Account", "Kind", "Credited", "Remaining", "Earned", "Stop", "Anomalies"})
				for _, p := range passes {
					t.AppendRow(table.Row{
						p.RecordedAt.Local().Format(time.DateTime),
						p.Account,
						p.Kind.String(),
						fmt.Sprintf("%d/%d", p.Credited, p.InitialQuota),
						p.RemainingQuota,
						p.Earned(),
						string(p.StopReason),
						len(p.Anomalies),
					})
				}
			}
			t.SetStyle(table.StyleRounded)
			t.Render()
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of passes")
	cmd.Flags().StringVarP(&account, "account", "a", "", "only this account")
	cmd.Flags().BoolVar(&daily, "daily", false, "print daily totals instead of passes")
	return cmd
}
