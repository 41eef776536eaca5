package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"genstrat/internal/config"
	"genstrat/internal/executor"
	"genstrat/internal/executor/binancegw"
	"genstrat/internal/history"
	"genstrat/internal/logger"
	binancesrc "genstrat/internal/market/binance"
	"genstrat/internal/monitor"
	"genstrat/internal/reconcile"
	redisstore "genstrat/internal/store/redis"
	"genstrat/internal/strategy"
	"genstrat/internal/suggest"
	"genstrat/internal/trade"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		logger.Errorf("fatal: %v", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger.SetLevel(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, err := redisstore.New(redisstore.Config{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		KeyPrefix: cfg.Redis.KeyPrefix,
	})
	if err != nil {
		return err
	}
	defer kv.Close()
	if err := kv.Ping(ctx); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	archive, err := history.New(cfg.History.DBPath)
	if err != nil {
		return fmt.Errorf("open history db: %w", err)
	}
	defer archive.Close()

	source := binancesrc.New(binancesrc.Config{
		RESTBaseURL:        cfg.Exchange.RESTBaseURL,
		FuturesRESTBaseURL: cfg.Exchange.FuturesRESTBaseURL,
		HTTPTimeout:        cfg.Exchange.HTTPTimeout,
	})
	defer source.Close()

	lifecycle := trade.NewLifecycle(kv).WithHistory(archive)
	strategies := strategy.NewRepository(kv)
	suggester := buildSuggester(cfg, source)
	gateway := buildGateway(cfg)

	exec := executor.New(gateway, lifecycle)
	reconciler := reconcile.NewEngine(lifecycle, suggester).
		WithNotifier(reconcile.LogNotifier{})

	loop := monitor.NewLoop(source, strategies, reconciler, exec, cfg.Trading.Budget).
		WithInterval(cfg.Monitor.Interval).
		WithReconcileInterval(cfg.Monitor.ReconcileInterval).
		WithCandleLimit(cfg.Monitor.CandleLimit)

	logger.Infof("genstrat started suggester=%s budget=%.2f interval=%s dry_run=%v",
		cfg.Trading.Suggester, cfg.Trading.Budget, cfg.Monitor.Interval, cfg.Exchange.DryRun)
	return loop.Run(ctx)
}

func buildSuggester(cfg *config.Config, source *binancesrc.Source) suggest.Service {
	if cfg.Trading.Suggester == "llm" {
		client := suggest.NewOpenAIClient(suggest.OpenAIConfig{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
		})
		return suggest.NewLLMSuggester(client)
	}
	return suggest.NewGenerator().WithDepthSource(source)
}

func buildGateway(cfg *config.Config) executor.OrderGateway {
	if cfg.Exchange.DryRun {
		return executor.DryRunGateway{}
	}
	return binancegw.New(binancegw.Config{
		APIKey:             cfg.Exchange.APIKey,
		APISecret:          cfg.Exchange.APISecret,
		RESTBaseURL:        cfg.Exchange.RESTBaseURL,
		FuturesRESTBaseURL: cfg.Exchange.FuturesRESTBaseURL,
		HTTPTimeout:        cfg.Exchange.HTTPTimeout,
	})
}
