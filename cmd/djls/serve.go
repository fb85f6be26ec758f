package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/djls-go/djls/internal/djlog"
	"github.com/djls-go/djls/internal/incremental"
	"github.com/djls-go/djls/internal/lspserver"
	"github.com/djls-go/djls/internal/source"
	"github.com/djls-go/djls/internal/tagspec"
	"github.com/djls-go/djls/internal/watch"
)

var (
	flagLogFile    string
	flagNoWatch    bool
	flagProjectDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Django template language server over stdio",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd)
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagLogFile, "log-file", "", "write logs to this file instead of stderr")
	serveCmd.Flags().BoolVar(&flagNoWatch, "no-watch", false, "disable the file-system watcher")
	serveCmd.Flags().StringVar(&flagProjectDir, "project", ".", "project root to search for config and to watch")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(flagProjectDir)
	if err != nil {
		return fmt.Errorf("djls serve: %w", err)
	}

	logger, closeLog, err := djlog.New(cfg, flagLogFile)
	if err != nil {
		return fmt.Errorf("djls serve: %w", err)
	}
	defer closeLog()

	store := source.NewStore()
	engine := incremental.NewEngine(store, tagspec.Builtins())

	server := lspserver.NewServer(store, engine, cfg, logger)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if !flagNoWatch {
		watcher, err := watch.New(300 * time.Millisecond)
		if err != nil {
			logger.Error("failed to start file watcher, continuing without it", "error", err)
		} else {
			defer watcher.Close()
			if err := watcher.AddRoot(flagProjectDir); err != nil {
				logger.Error("failed to watch project root", "root", flagProjectDir, "error", err)
			}
			watchLog := djlog.Component(logger, "watcher")
			go watch.Run(watcher, store, func(err error) {
				watchLog.Warn("error syncing file-system change", "error", err)
			})
		}
	}

	djlog.Component(logger, "server").Info("starting djls", "project", flagProjectDir)
	return lspserver.Serve(ctx, server)
}
