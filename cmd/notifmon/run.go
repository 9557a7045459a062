package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/notification-monitor/internal/app"
	"github.com/nhle/notification-monitor/internal/logging"
	"github.com/nhle/notification-monitor/internal/push"
	appsync "github.com/nhle/notification-monitor/internal/sync"
	helpview "github.com/nhle/notification-monitor/internal/ui/help"
)

// runTUI starts the interactive table. Logs go to the configured file
// because the terminal belongs to the UI.
func runTUI(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.NewFile(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Close()
	log := logger.Logger

	hist, err := openHistory(cfg)
	if err != nil {
		return err
	}

	syncOpts := []appsync.Option{
		appsync.WithLogger(log),
		appsync.WithFetchTimeout(cfg.FetchTimeout()),
	}
	ctrlOpts := []appsync.ControllerOption{
		appsync.WithDebounce(cfg.Debounce()),
		appsync.WithControllerLogger(log),
	}
	appOpts := app.Options{
		HistoryKeep: cfg.History.Keep,
		Endpoints: helpview.Endpoints{
			ListURL: cfg.ListURL(),
			PushURL: cfg.PushURL(),
		},
		Log: log,
	}

	if hist != nil {
		defer hist.Close()
		if err := hist.Prune(context.Background(), cfg.History.Keep); err != nil {
			log.Warn().Err(err).Msg("pruning sync history")
		}
		syncOpts = append(syncOpts, appsync.WithObserver(hist))
		ctrlOpts = append(ctrlOpts, appsync.WithConnectionObserver(hist))
		appOpts.History = hist
	}

	s := appsync.New(newClient(cfg), syncOpts...)
	transport := push.NewWebSocketTransport(log)
	ctrl := appsync.NewController(s, transport, cfg.PushURL(), ctrlOpts...)
	defer ctrl.Stop()
	appOpts.Controller = ctrl

	log.Info().
		Str("list_url", cfg.ListURL()).
		Str("push_url", cfg.PushURL()).
		Dur("debounce", cfg.Debounce()).
		Msg("starting notifmon")

	p := tea.NewProgram(app.New(appOpts), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}
