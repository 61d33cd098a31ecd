package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/abrezinsky/electionvote/internal/app"
	"github.com/abrezinsky/electionvote/internal/auth"
	"github.com/abrezinsky/electionvote/internal/config"
	"github.com/abrezinsky/electionvote/internal/logger"
	"github.com/abrezinsky/electionvote/pkg/electionfeed"
)

var (
	version = "dev"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "electionvote:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args, ".env", os.Stderr)
	if err != nil {
		return err
	}

	appLog := logger.NewWithOptions(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Output: os.Stderr,
	})

	// Setup admin authentication
	password := cfg.AdminPassword
	if password == "" {
		password = auth.GeneratePassword()
		appLog.Info("Admin password", "password", password)
	}
	adminAuth := auth.New(password, auth.SecretFromString(cfg.JWTSecret))
	if cfg.JWTSecret == "" {
		appLog.Warn("JWT_SECRET not set, sessions will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	feed := electionfeed.NewHTTPClient(cfg.ElectionFeedURL, appLog)
	a, err := app.New(ctx, cfg, appLog, feed, adminAuth)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer a.Close()

	appLog.Info("electionvote starting", "version", version, "public_url", cfg.PublicURL)
	return a.Run(ctx)
}
