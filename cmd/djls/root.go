package main

import (
	"github.com/spf13/cobra"
)

var (
	flagConfig  string
	flagNoColor bool
	flagDebug   bool
)

var rootCmd = &cobra.Command{
	Use:           "djls",
	Short:         "Language server and checker for Django templates",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a djls.toml config file (overrides project discovery)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable ANSI styling in terminal output")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
}
