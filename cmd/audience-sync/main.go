package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/audience-sync/internal/config"
	"github.com/ignite/audience-sync/internal/mailchimp"
	"github.com/ignite/audience-sync/internal/pkg/logger"
	"github.com/ignite/audience-sync/internal/report"
	"github.com/ignite/audience-sync/internal/sheets"
	"github.com/ignite/audience-sync/internal/syncjob"
)

const defaultConfigPath = "config/config.yaml"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := os.Getenv("AUDIENCE_SYNC_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		fmt.Printf("✗ Failed to load config %s: %v\n", configPath, err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("✗ Invalid configuration: %v\n", err)
		return 1
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.Redact())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := report.NewConsole(os.Stdout)
	prompter := report.NewPrompter(os.Stdin, os.Stdout)

	runner := syncjob.New(cfg, syncjob.Deps{
		Source: mailchimp.NewClient(cfg.Mailchimp),
		Connect: func(ctx context.Context) (syncjob.Destination, error) {
			client, err := sheets.NewServiceAccountClient(ctx, cfg.GoogleSheets)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		Confirm: prompter.Confirm,
		Console: console,
		Log:     logger.Default(),
	})

	// The runner has already reported failures on the console.
	if _, err := runner.Run(ctx); err != nil {
		return 1
	}
	return 0
}
