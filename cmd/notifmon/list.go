package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nhle/notification-monitor/internal/model"
	appsync "github.com/nhle/notification-monitor/internal/sync"
	"github.com/nhle/notification-monitor/internal/theme"
	"github.com/nhle/notification-monitor/internal/ui"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Fetch the notification list once and print it",
	Long: `list performs a single bulk fetch and prints the records in service
order. It exits non-zero if the fetch fails.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := consoleLogger(cfg)

		s := appsync.New(newClient(cfg),
			appsync.WithLogger(log),
			appsync.WithFetchTimeout(cfg.FetchTimeout()),
		)
		if err := s.Refresh(cmd.Context(), model.TriggerManual); err != nil {
			return err
		}

		records := s.Snapshot()
		if listJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}

		fmt.Println(lipgloss.NewStyle().Bold(true).Render(ui.Title(s.LastResult().FinishedAt)))
		fmt.Println(renderRecords(records))
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print records as JSON")
}

// renderRecords draws records as a bordered table with colored statuses.
func renderRecords(records []model.DisplayRecord) string {
	if len(records) == 0 {
		return theme.HelpStyle.Render("no notifications")
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers("ID", "RECIPIENT", "STATUS", "TIME").
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return base.Bold(true)
			}
			if col == 2 && row >= 0 && row < len(records) {
				return base.Foreground(theme.StatusColor(records[row].Status))
			}
			return base
		})

	for _, r := range records {
		t.Row(r.ID, r.Recipient, r.Status, r.RelativeTime)
	}
	return t.String()
}
