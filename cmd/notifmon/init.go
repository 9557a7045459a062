package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/notification-monitor/internal/model"
	"github.com/nhle/notification-monitor/internal/ui/setup"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or edit the configuration file interactively",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := configPath()

		cfg, err := model.LoadConfig(path)
		if err != nil {
			// Start over from defaults if the existing file is unusable.
			cfg = model.DefaultAppConfig()
		}

		form := setup.New(cfg)
		if err := form.Run(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				fmt.Println("aborted, nothing written")
				return nil
			}
			return err
		}
		if !form.Confirmed() {
			fmt.Println("nothing written")
			return nil
		}
		if err := form.Apply(); err != nil {
			return err
		}
		if err := model.SaveConfig(path, cfg); err != nil {
			return err
		}

		fmt.Printf("wrote %s\n", path)
		return nil
	},
}
