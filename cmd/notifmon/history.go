package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nhle/notification-monitor/internal/theme"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print recent refresh runs from the sync history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		hist, err := openHistory(cfg)
		if err != nil {
			return err
		}
		if hist == nil {
			return fmt.Errorf("sync history is disabled (history.enabled: false)")
		}
		defer hist.Close()

		runs, err := hist.RecentRefreshes(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		stats, err := hist.RefreshStats(cmd.Context())
		if err != nil {
			return err
		}

		now := time.Now()
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
			Headers("FINISHED", "TRIGGER", "RECORDS", "TOOK", "OUTCOME")
		for _, r := range runs {
			outcome := "ok"
			if r.Failed() {
				outcome = theme.ErrorStyle.Render(r.Error)
			}
			t.Row(
				humanize.RelTime(r.FinishedAt, now, "ago", "from now"),
				string(r.Trigger),
				humanize.Comma(int64(r.RecordCount)),
				r.Duration().Round(time.Millisecond).String(),
				outcome,
			)
		}

		fmt.Printf("%s refreshes, %s failed\n", humanize.Comma(int64(stats.Total)), humanize.Comma(int64(stats.Failed)))
		fmt.Println(t.String())
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
}
