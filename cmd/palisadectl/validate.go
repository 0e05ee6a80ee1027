package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/palisadeproject/palisade/pkg/config"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg.Defaults()
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			fmt.Printf("%s: configuration valid (%d firewalls, %d providers)\n",
				configPath, len(cfg.Firewalls), len(cfg.Providers))
			return nil
		},
	}
}
