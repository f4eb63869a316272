package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vitos/fx_sequence_trader/internal/domain"
	"github.com/vitos/fx_sequence_trader/internal/infrastructure/gateway"
	"github.com/vitos/fx_sequence_trader/internal/infrastructure/logger"
	"github.com/vitos/fx_sequence_trader/internal/infrastructure/storage"
	"github.com/vitos/fx_sequence_trader/internal/telemetry"
	"github.com/vitos/fx_sequence_trader/internal/usecase"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Accounts []struct {
		Name      string `yaml:"name"`
		BridgeURL string `yaml:"bridge_url"`
		DBPath    string `yaml:"db_path"`
		LogFile   string `yaml:"log_file"`
		Strategy  struct {
			BotEnabled            bool    `yaml:"bot_enabled"`
			BuysEnabled           bool    `yaml:"buys_enabled"`
			SellsEnabled          bool    `yaml:"sells_enabled"`
			Symbol                string  `yaml:"symbol"`
			TimeframeMinutes      int     `yaml:"timeframe_minutes"`
			BaseBalance           float64 `yaml:"base_balance"`
			TakeProfitPoints      float64 `yaml:"take_profit_points"`
			MaxPositions          int     `yaml:"max_positions"`
			MinDeviationDistance  float64 `yaml:"min_deviation_distance"`
			DeviationGrowthFactor float64 `yaml:"deviation_growth_factor"`
		} `yaml:"strategy"`
	} `yaml:"accounts"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	// Optional .env for local overrides
	_ = godotenv.Load()

	// 1. Load Config
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if len(cfg.Accounts) == 0 {
		log.Fatal("No accounts configured")
	}

	// 3. Init Metrics (shared registry across all accounts)
	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Build one engine per account
	var wg sync.WaitGroup
	var closers []io.Closer
	started := 0
	for _, acct := range cfg.Accounts {
		strategy := domain.StrategyConfig{
			BotEnabled:            acct.Strategy.BotEnabled,
			BuysEnabled:           acct.Strategy.BuysEnabled,
			SellsEnabled:          acct.Strategy.SellsEnabled,
			Symbol:                acct.Strategy.Symbol,
			Timeframe:             time.Duration(acct.Strategy.TimeframeMinutes) * time.Minute,
			BaseBalance:           acct.Strategy.BaseBalance,
			TakeProfitPoints:      acct.Strategy.TakeProfitPoints,
			MaxPositions:          acct.Strategy.MaxPositions,
			MinDeviationDistance:  acct.Strategy.MinDeviationDistance,
			DeviationGrowthFactor: acct.Strategy.DeviationGrowthFactor,
		}
		// A malformed account is skipped; the rest keep trading.
		if err := strategy.Validate(); err != nil {
			log.Error("Skipping account with invalid strategy config",
				zap.String("account", acct.Name), zap.Error(err))
			continue
		}

		acctLog := log
		if acct.LogFile != "" {
			acctLog, err = logger.NewFileLogger(acct.LogFile, cfg.Logging.Level)
			if err != nil {
				log.Error("Failed to init account logger, using default",
					zap.String("account", acct.Name), zap.Error(err))
				acctLog = log
			}
		}
		acctLog = acctLog.With(zap.String("account", acct.Name))

		// An unreachable bridge at startup is a deployment error, not a
		// transient condition.
		bridge := gateway.NewMT5Bridge(acct.BridgeURL)
		if err := bridge.Connect(); err != nil {
			log.Fatal("Failed to connect to bridge",
				zap.String("account", acct.Name), zap.Error(err))
		}
		closers = append(closers, bridge)

		dbPath := acct.DBPath
		if dbPath == "" {
			dbPath = fmt.Sprintf("trader_%s.db", acct.Name)
		}
		journal, err := storage.NewSQLiteJournal(dbPath)
		if err != nil {
			log.Fatal("Failed to init sqlite journal",
				zap.String("account", acct.Name), zap.Error(err))
		}
		closers = append(closers, journal)

		counters := &domain.PerformanceCounters{}
		tracker := usecase.NewSequenceTracker(bridge, journal, counters, acctLog)
		validator := usecase.NewTradingValidator(bridge, usecase.DefaultValidatorConfig())
		sizer := usecase.NewOrderSizer(strategy)
		orders := usecase.NewOrderManager(strategy.Symbol, bridge, sizer, journal, acctLog)
		calendar := usecase.NewMarketCalendar()
		policy := usecase.NewRandomGatePolicy(time.Now().UnixNano())

		engine := usecase.NewStrategyEngine(
			strategy, bridge, tracker, validator, orders, sizer, calendar,
			policy, counters, metrics, acctLog,
		)

		wg.Add(1)
		go func() {
			defer wg.Done()
			acctLog.Info("Engine starting",
				zap.String("symbol", strategy.Symbol),
				zap.Duration("timeframe", strategy.Timeframe))
			engine.Run(ctx)
		}()
		started++
	}

	if started == 0 {
		log.Fatal("No account passed config validation")
	}

	// 5. Metrics endpoint
	port := cfg.Server.Port
	if port == 0 {
		port = 9090
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler(registry))
	server := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Metrics server failed", zap.Error(err))
		}
	}()

	// 6. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	cancel()
	wg.Wait()

	// Engines are stopped; release the bridge sessions and journals.
	for _, c := range closers {
		if err := c.Close(); err != nil {
			log.Warn("Close failed during shutdown", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)
}
