package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nhle/notification-monitor/internal/logging"
	"github.com/nhle/notification-monitor/internal/model"
	"github.com/nhle/notification-monitor/internal/source/notifyapi"
	"github.com/nhle/notification-monitor/internal/store"
)

var (
	cfgFile  string
	baseURL  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "notifmon",
	Short: "Live view of outbound email notifications",
	Long: `notifmon shows the notification service's outbound email records and
keeps the table current by re-fetching whenever the service pushes a
RECORD_ADDED or RECORD_UPDATED event.`,
	SilenceUsage: true,
	RunE:         runTUI,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.config/notifmon/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "notification service URL, overrides base_url")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level, overrides log.level")

	rootCmd.AddCommand(listCmd, historyCmd, doctorCmd, initCmd)
}

// configPath returns the --config value or the default path.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return model.DefaultConfigPath()
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (*model.AppConfig, error) {
	cfg, err := model.LoadConfig(configPath())
	if err != nil {
		return nil, err
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// consoleLogger is used by the non-interactive subcommands.
func consoleLogger(cfg *model.AppConfig) zerolog.Logger {
	return logging.NewConsole(os.Stderr, cfg.Log.Level)
}

// newClient builds the bulk fetch client from config.
func newClient(cfg *model.AppConfig) *notifyapi.Client {
	return notifyapi.NewClient(
		cfg.ListURL(),
		notifyapi.WithTimeout(cfg.FetchTimeout()),
		notifyapi.WithBreaker(notifyapi.NewBreaker("notifyapi")),
	)
}

// openHistory opens the sync history store, or returns nil when history
// is disabled.
func openHistory(cfg *model.AppConfig) (*store.SQLiteStore, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	s, err := store.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sync history: %w", err)
	}
	return s, nil
}

func main() {
	Execute()
}
