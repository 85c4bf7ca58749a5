package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"TrendSentinel/internal/chart"
	"TrendSentinel/internal/collector"
	"TrendSentinel/internal/config"
	"TrendSentinel/internal/logger"
	"TrendSentinel/internal/notifier"
	"TrendSentinel/internal/recorder"
	"TrendSentinel/internal/runner"
	"TrendSentinel/internal/scheduler"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "path to the YAML config")
	once := flag.Bool("once", false, "run one batch and exit, ignoring the schedule")
	flag.Parse()
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		*cfgPath = v
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New("trend-sentinel", cfg.LoggerConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	runCfg, err := cfg.RunConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("build run config")
	}
	log.Info().Int("instruments", len(runCfg.Tickers)).Stringer("strategy", runCfg.Strategy).Msg("TrendSentinel starting")

	// Data source
	var fetcher collector.Fetcher
	switch cfg.DataSource.Provider {
	case "vstrader":
		fetcher = collector.NewVsTraderFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy)
	case "mock":
		fetcher = &collector.MockFetcher{Price: 100}
	default:
		fetcher = collector.NewYahooFetcher(cfg.Proxy)
	}
	log.Info().Str("provider", fetcher.Name()).Msg("data source ready")
	col := collector.NewCollector(fetcher, cfg.RetryPolicy(), log.With().Str("component", "collector").Logger())

	// Recorder
	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		} else {
			rec = sr
		}
	}
	defer rec.Close()

	r := runner.New(runCfg, col, log.With().Str("component", "runner").Logger())
	if runCfg.Charts {
		r.Charts = chart.NewRenderer(runCfg.OutputDir, cfg.Output.DPI)
	}
	r.Recorder = rec

	var tn *notifier.TelegramNotifier
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log.With().Str("component", "telegram").Logger())
		r.Notifier = tn
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := r.Metrics.Serve(ctx, cfg.Metrics.Addr, log); err != nil {
				log.Error().Err(err).Msg("metrics server")
			}
		}()
	}

	if *once || cfg.Schedule.Cron == "" {
		runOnce(ctx, r, log)
		return
	}

	sched := scheduler.NewScheduler(ctx, r, rec, log.With().Str("component", "scheduler").Logger())
	if err := sched.Register(cfg.Schedule.Cron); err != nil {
		log.Fatal().Err(err).Msg("register cron task")
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	if cfg.Schedule.RunOnStart {
		log.Info().Msg("RUN_ON_START enabled, executing batch now")
		go sched.RunNow()
	}

	log.Info().Str("cron", cfg.Schedule.Cron).Msg("TrendSentinel is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	log.Info().Msg("shutdown signal received, stopping")
}

func runOnce(ctx context.Context, r *runner.Runner, log zerolog.Logger) {
	rep, err := r.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("run failed")
		r.Recorder.Close()
		os.Exit(1)
	}
	fmt.Printf("\nSummary CSV saved: %s (%d signals, %d skipped)\n", rep.OutputPath, rep.Succeeded(), len(rep.Skipped))
}
