package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"TLISentinel/internal/analyzer"
	"TLISentinel/internal/collector"
	"TLISentinel/internal/config"
	"TLISentinel/internal/inbox"
	"TLISentinel/internal/notifier"
	"TLISentinel/internal/recorder"
	"TLISentinel/internal/scheduler"
)

func main() {
	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	setupLogging(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().Msg("TLISentinel starting...")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Market data providers
	provider, err := collector.NewProvider(cfg.Market.Providers, cfg.Market.FinnhubAPIKey, collector.HTTPOptions{
		ProxyURL:       cfg.Proxy,
		Timeout:        cfg.Market.FetchTimeout,
		RequestsPerSec: cfg.Market.RequestsPerSec,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init market data provider")
	}
	if cfg.Cache.Enabled {
		rc, err := collector.NewRedisCache(ctx, cfg.Cache.RedisAddr, cfg.Cache.Password, cfg.Cache.DB)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, running without snapshot cache")
		} else {
			defer rc.Close()
			provider = collector.NewCachedProvider(provider, rc, cfg.Cache.TTL)
		}
	}
	log.Info().Str("provider", provider.Name()).Msg("market data source")

	an := analyzer.New(provider, analyzer.Options{
		MaxConcurrency: cfg.Market.MaxConcurrency,
		FetchTimeout:   cfg.Market.FetchTimeout,
	})

	// Recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}
	defer rec.Close()

	// Inbox
	var mb scheduler.Mailbox
	if cfg.InboxEnabled() {
		mb = inbox.NewReader(inbox.Config{
			Host:          cfg.IMAP.Host,
			Port:          cfg.IMAP.Port,
			Username:      cfg.IMAP.Username,
			Password:      cfg.IMAP.Password,
			UseTLS:        !cfg.IMAP.DisableTLS,
			Mailbox:       cfg.IMAP.Mailbox,
			SubjectFilter: cfg.IMAP.SubjectFilter,
		})
		log.Info().Str("host", cfg.IMAP.Host).Str("mailbox", cfg.IMAP.Mailbox).Msg("inbox polling enabled")
	}

	// Telegram
	tn, err := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
	if err != nil {
		log.Fatal().Err(err).Msg("init telegram notifier")
	}

	sched := scheduler.NewScheduler(ctx, an, mb, tn, rec)
	if err := sched.RegisterAll(cfg.Schedule.PollCron, cfg.Schedule.RefreshCron); err != nil {
		log.Fatal().Err(err).Msg("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	go tn.StartPolling(ctx, sched.HandleCommand)

	if cfg.Schedule.RunOnStart {
		log.Info().Msg("RUN_ON_START enabled, polling inbox now")
		go sched.RunPollNow()
	}

	log.Info().Msg("TLISentinel is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping...")
	cancel()
	log.Info().Msg("TLISentinel stopped")
}

func setupLogging(level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
