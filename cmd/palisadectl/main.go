package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath   string
	outputFormat string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "palisadectl",
		Short: "Palisade authentication pipeline CLI",
		Long:  `Palisadectl inspects and validates the configuration of a palisade authentication pipeline.`,
	}

	defaultConfig := "palisade.yaml"
	if envPath := os.Getenv("PALISADE_CONFIG"); envPath != "" {
		defaultConfig = envPath
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "Configuration file (env: PALISADE_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")

	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(routesCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
