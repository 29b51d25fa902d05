package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"

	"classbot/internal/bot"
	"classbot/internal/config"
	"classbot/internal/transport/telegram/adapter"
	"classbot/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml/json")
	flag.Parse()

	// Local development convenience; absent .env is fine.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	cfgMgr := config.NewManager(cfgPath)
	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, closeLog, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()
	cfgMgr.SetLogger(log.With(logx.String("comp", "config")))

	pollTimeout, err := config.ParseDurationOrDefault(
		"telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return err
	}
	tg, err := adapter.New(adapter.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return fmt.Errorf("telegram adapter: %w", err)
	}

	app, err := bot.New(cfg, tg, log)
	if err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}

	// Validate and commit edits as they happen; services pick them up
	// on the next restart.
	go func() { _ = cfgMgr.Watch(ctx) }()
	go func() {
		updates := cfgMgr.Subscribe(1)
		defer cfgMgr.Unsubscribe(updates)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-updates:
				if !ok {
					return
				}
				log.Info("config file changed; restart to apply", logx.String("path", cfgPath))
			}
		}
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	return app.Stop(stopCtx)
}

func newLogger(cfg config.LoggingConfig) (logx.Logger, func() error, error) {
	console := cfg.Console == nil || *cfg.Console
	file := strings.TrimSpace(cfg.File)
	return logx.New(logx.Config{
		Level:   cfg.Level,
		Console: console,
		File:    logx.FileConfig{Enabled: file != "", Path: file},
	})
}
