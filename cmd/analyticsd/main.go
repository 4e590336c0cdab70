// analyticsd is the Polymarket anomaly-detection and paper-trading daemon.
// It runs a continuous pipeline that watches market data for statistical
// and structural anomalies, scores their quality, paper-trades the ones
// that qualify, and alerts over Telegram.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phenomenon0/market-analytics/internal/alert"
	"github.com/phenomenon0/market-analytics/internal/bus"
	"github.com/phenomenon0/market-analytics/internal/config"
	"github.com/phenomenon0/market-analytics/internal/logger"
	"github.com/phenomenon0/market-analytics/internal/market"
	"github.com/phenomenon0/market-analytics/internal/metrics"
	"github.com/phenomenon0/market-analytics/internal/orchestrator"
	"github.com/phenomenon0/market-analytics/internal/paper"
	"github.com/phenomenon0/market-analytics/internal/streaming"
	"github.com/phenomenon0/market-analytics/internal/transport"
)

var configPath = flag.String("config", "./config.yaml", "Path to the YAML configuration file")

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("starting market-analytics daemon")

	daemon, err := newDaemon(cfg)
	if err != nil {
		logger.Fatal("failed to initialize daemon: %v", err)
	}

	daemon.orch.OnStage(func(result orchestrator.StageResult) {
		if result.Success {
			logger.Debug("[%s] OK (%v)", result.Stage, result.Duration)
			return
		}
		logger.Warn("[%s] FAILED (%v): %s", result.Stage, result.Duration, result.Error)
	})

	go daemon.startHTTP(cfg.Server.StatusAddr, cfg.Server.MetricsPath)

	if err := daemon.orch.Start(ctx); err != nil {
		logger.Fatal("failed to start orchestrator: %v", err)
	}

	logger.Info("daemon running, status server on %s", cfg.Server.StatusAddr)

	<-sigCh
	logger.Info("shutting down")

	daemon.orch.Stop()
	cancel()

	report := daemon.paperEngine.GetDailyReport(time.Now().UTC())
	balance, _ := report.Balance.Float64()
	logger.Info("final paper balance: $%.2f, open positions: %d, loss streak: %d",
		balance, len(report.OpenPositions), report.LossStreak)
}

// daemon bundles every long-lived component the orchestrator coordinates.
type daemon struct {
	metrics     *metrics.Metrics
	hub         *streaming.Hub
	bus         *bus.Bus
	paperEngine *paper.Engine
	dispatcher  *alert.Dispatcher
	orch        *orchestrator.Orchestrator
}

func newDaemon(cfg *config.Config) (*daemon, error) {
	d := &daemon{
		metrics: metrics.New(),
		hub:     streaming.NewHub(),
		bus:     bus.New(256),
	}
	go d.hub.Run()

	d.paperEngine = paper.NewEngine(cfg.Paper.TradesFile)
	if err := d.paperEngine.Load(); err != nil {
		logger.Warn("no existing paper trading state loaded: %v", err)
	}

	var tr alert.Transport
	if cfg.Sources.TelegramBotToken != "" {
		client, err := transport.NewTelegramClient(cfg.Sources.TelegramBotToken, cfg.Sources.TelegramChatID, 3, time.Second)
		if err != nil {
			return nil, fmt.Errorf("failed to create telegram client: %w", err)
		}
		tr = client
	} else {
		logger.Warn("no telegram bot token configured, alerts will be dropped at the transport boundary")
		tr = noopTransport{}
	}

	limiter := alert.NewRateLimiter(cfg.Alerting.RateLimitFile, cfg.Alerting.MaxAlertsPerDay,
		time.Duration(cfg.Alerting.MinSignalGapMinutes)*time.Minute)
	deduper := alert.NewDeduper(
		time.Duration(cfg.Alerting.DeduplicationMinutes)*time.Minute,
		cfg.Alerting.DedupEvictAbove,
		cfg.Alerting.MaxAlertsPerMinute,
		cfg.Alerting.ThrottleWindow,
	)
	d.dispatcher = alert.NewDispatcher(tr, limiter, deduper)

	metadata := market.NewGammaClient(cfg.Sources.GammaAPIURL, cfg.Sources.HTTPTimeout, cfg.Sources.RateLimitPerSec, cfg.Sources.RateLimitBurst)
	trades := market.NewCLOBTradeClient(cfg.Sources.CLOBAPIURL, cfg.Sources.HTTPTimeout, cfg.Sources.RateLimitPerSec, cfg.Sources.RateLimitBurst)
	orderbooks := market.NewCLOBBookClient(cfg.Sources.CLOBAPIURL, cfg.Sources.HTTPTimeout, cfg.Sources.RateLimitPerSec, cfg.Sources.RateLimitBurst)
	cryptoStream := market.NewWSCryptoStream(
		cfg.Sources.CryptoWSURL,
		time.Duration(cfg.Sources.WSReconnectMinMs)*time.Millisecond,
		time.Duration(cfg.Sources.WSReconnectMaxMs)*time.Millisecond,
	)

	var newsFeed market.NewsFeed
	if len(cfg.Sources.NewsFeedURLs) > 0 {
		newsFeed = market.NewRSSNewsFeed(cfg.Sources.NewsFeedURLs, cfg.Sources.HTTPTimeout)
	}

	orchCfg := orchestrator.DefaultConfig()
	d.orch = orchestrator.New(
		orchCfg,
		d.bus,
		d.metrics,
		d.hub,
		metadata,
		trades,
		orderbooks,
		cryptoStream,
		newsFeed,
		d.paperEngine,
		d.dispatcher,
	)

	return d, nil
}

func (d *daemon) startHTTP(addr, metricsPath string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"running":       d.orch.IsRunning(),
			"activeMarkets": d.orch.ActiveMarketCount(),
			"clients":       d.hub.ClientCount(),
			"dailyReport":   d.paperEngine.GetDailyReport(time.Now().UTC()),
		})
	})

	mux.Handle(metricsPath, promhttp.HandlerFor(d.metrics.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/ws", d.hub.ServeWS)

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("status server error: %v", err)
	}
}

// noopTransport satisfies alert.Transport when no outbound chat transport
// is configured; alerts are dropped rather than causing a send error.
type noopTransport struct{}

func (noopTransport) Send(text string) error {
	logger.Debug("alert (no transport configured): %s", text)
	return nil
}
