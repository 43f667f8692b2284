package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/stakebot/config"
	"github.com/alejandrodnm/stakebot/internal/adapters/metrics"
	"github.com/alejandrodnm/stakebot/internal/adapters/notify"
	"github.com/alejandrodnm/stakebot/internal/adapters/oddsfeed"
	"github.com/alejandrodnm/stakebot/internal/adapters/storage"
	"github.com/alejandrodnm/stakebot/internal/adapters/stream"
	"github.com/alejandrodnm/stakebot/internal/application/catalog"
	"github.com/alejandrodnm/stakebot/internal/application/engine"
	"github.com/alejandrodnm/stakebot/internal/application/evaluator"
	"github.com/alejandrodnm/stakebot/internal/application/investor"
	"github.com/alejandrodnm/stakebot/internal/ports"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one evaluation cycle and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	oppsPath := flag.String("opportunities", "", "read opportunities from a YAML fixture instead of the feed")
	autoAccept := flag.Bool("auto-accept", false, "paper mode: accept every recommendation that fits")
	compact := flag.Bool("compact", false, "print one line per investor instead of the full table")
	report := flag.Bool("report", false, "print the investor ledger and wagers, then exit")
	settle := flag.String("settle", "", "settle a wager and exit: investor,wager,win|loss|push[,payout]")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *autoAccept {
		cfg.Engine.AutoAccept = true
	}
	setupLogger(cfg.Log)

	slog.Info("stakebot starting",
		"config", *configPath,
		"interval", cfg.CycleInterval(),
		"once", *once,
		"auto_accept", cfg.Engine.AutoAccept,
		"strategies", len(cfg.Strategies),
		"investors", len(cfg.Investors),
	)

	store, err := storage.Open(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	strategies := catalog.New(store)
	if err := strategies.Load(ctx); err != nil {
		slog.Error("failed to load strategies", "err", err)
		os.Exit(1)
	}
	if err := strategies.PutAll(ctx, cfg.Strategies); err != nil {
		slog.Error("invalid strategy definitions", "err", err)
		os.Exit(1)
	}

	eval := evaluator.New(evaluator.Config{Workers: cfg.Engine.Workers}, nil)
	investors := investor.NewManager(strategies, eval, store, store)
	if err := investors.Load(ctx); err != nil {
		slog.Error("failed to load investors", "err", err)
		os.Exit(1)
	}
	for _, inv := range cfg.Investors {
		if _, err := investors.Add(ctx, inv); err != nil {
			slog.Error("failed to add investor", "investor", inv.ID, "err", err)
			os.Exit(1)
		}
	}

	console := notify.NewConsole(*compact)

	if *settle != "" {
		if err := runSettle(ctx, investors, *settle); err != nil {
			slog.Error("settle failed", "err", err)
			os.Exit(1)
		}
		console.PrintLedger(investors.List())
		return
	}
	if *report {
		if err := runReport(ctx, store, investors, console); err != nil {
			slog.Error("report failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if cfg.Engine.StartInvestors {
		for _, inv := range investors.List() {
			if err := investors.Start(ctx, inv.ID); err != nil {
				slog.Debug("investor not started", "investor", inv.ID, "err", err)
			}
		}
	}

	feed, err := newFeed(cfg, *oppsPath)
	if err != nil {
		slog.Error("failed to load opportunities", "err", err, "path", *oppsPath)
		os.Exit(1)
	}

	notifiers := []ports.Notifier{console}
	if rdb := newRedis(ctx, cfg.Redis); rdb != nil {
		defer rdb.Close()
		notifiers = append(notifiers, stream.NewPublisher(rdb, cfg.Redis.MaxLen))
	}
	if cfg.Metrics.Addr != "" {
		recorder := metrics.NewRecorder()
		recorder.Serve(ctx, cfg.Metrics.Addr)
		notifiers = append(notifiers, recorder)
	}
	if cfg.Telegram.BotToken != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.Top)
		if err != nil {
			slog.Warn("telegram unavailable, notifications disabled", "err", err)
		} else {
			notifiers = append(notifiers, tg)
		}
	}

	e := engine.New(engine.Config{
		Interval:    cfg.CycleInterval(),
		Once:        *once,
		AutoAccept:  cfg.Engine.AutoAccept,
		WeeklyReset: cfg.Engine.WeeklyReset,
	}, feed, investors, notifiers...)

	if err := e.Run(ctx); err != nil {
		slog.Error("engine exited with error", "err", err)
		os.Exit(1)
	}

	if *once {
		console.PrintLedger(investors.List())
	}
	slog.Info("stakebot stopped cleanly")
}

// newFeed elige entre el fixture local y el feed HTTP.
func newFeed(cfg *config.Config, oppsPath string) (ports.OpportunityProvider, error) {
	if oppsPath != "" {
		opps, err := config.LoadOpportunities(oppsPath)
		if err != nil {
			return nil, err
		}
		slog.Info("using opportunity fixture", "path", oppsPath, "count", len(opps))
		return oddsfeed.NewStatic(opps), nil
	}
	return oddsfeed.NewClient(cfg.Feed.BaseURL, cfg.Feed.Sports...), nil
}

// newRedis devuelve nil si no hay Redis configurado o no responde: la
// publicación en streams es opcional.
func newRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Warn("redis unavailable, stream publishing disabled", "addr", cfg.Addr, "err", err)
		rdb.Close()
		return nil
	}
	slog.Info("publishing recommendations to redis streams", "addr", cfg.Addr)
	return rdb
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
