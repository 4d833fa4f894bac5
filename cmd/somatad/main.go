// Command somatad runs the organism: it boots the body from whatever the
// previous session left behind, drives the tick loop until it receives an
// interrupt, and persists the next generation on the way out.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"somata/internal/body"
	"somata/internal/config"
	"somata/internal/logging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("somatad", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file (optional)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger, closeLog := logging.New(logging.Config{
		Level:   cfg.Logging.Level,
		JSON:    cfg.Logging.JSON,
		Dir:     cfg.Logging.Dir,
		Service: "somatad",
	})
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := body.Boot(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("boot: %w", err)
	}

	logger.Info("somatad starting",
		"storage", cfg.Storage.Backend,
		"telemetry", cfg.Telemetry.Addr)
	if err := b.Run(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("run: %w", err)
	}
	logger.Info("somatad stopped")
	return nil
}
