package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/notification-monitor/internal/push"
	"github.com/nhle/notification-monitor/internal/theme"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the fetch endpoint and push channel are reachable",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := consoleLogger(cfg)

		ok := theme.StatusStyle("delivered").Render("ok")
		fail := theme.StatusStyle("failed").Render("FAIL")
		var failed bool

		fmt.Printf("config   %s\n", configPath())

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.FetchTimeout())
		defer cancel()
		if summary, err := newClient(cfg).Ping(ctx); err != nil {
			failed = true
			fmt.Printf("list     %s %s: %v\n", fail, cfg.ListURL(), err)
		} else {
			fmt.Printf("list     %s %s\n", ok, summary)
		}

		dialCtx, dialCancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer dialCancel()
		if err := push.NewWebSocketTransport(log).Dial(dialCtx, cfg.PushURL()); err != nil {
			failed = true
			fmt.Printf("push     %s %s: %v\n", fail, cfg.PushURL(), err)
		} else {
			fmt.Printf("push     %s %s\n", ok, cfg.PushURL())
		}

		if failed {
			return fmt.Errorf("one or more checks failed")
		}
		return nil
	},
}
