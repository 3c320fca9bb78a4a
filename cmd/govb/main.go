package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evdnx/govb/config"
	"github.com/evdnx/govb/engine"
	"github.com/evdnx/govb/exchange"
	"github.com/evdnx/govb/exchange/upbit"
	"github.com/evdnx/govb/ichimoku"
	"github.com/evdnx/govb/logger"
)

func main() {
	configDir := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	log, err := logger.NewZapLogger()
	if err != nil {
		os.Stderr.WriteString("logger init failed: " + err.Error() + "\n")
		os.Exit(1)
	}

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Error("config_load_failed", logger.Err(err))
		os.Exit(1)
	}

	creds, err := config.LoadCredentials(cfg.CredentialsFile)
	if err != nil {
		log.Error("credentials_load_failed", logger.Err(err))
		os.Exit(1)
	}

	var gw exchange.Gateway = upbit.New(cfg.RESTURL, creds.AccessKey, creds.SecretKey)
	if !cfg.LiveTrading {
		log.Warn("live_trading_disabled", logger.String("mode", "dry-run"))
		gw = exchange.NewDryRun(gw, log)
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, log)
	}

	spans := ichimoku.NewGatewayProvider(gw, log)
	trader := engine.NewTrader(cfg, gw, spans, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("trader_starting",
		logger.Int("watched", len(cfg.WatchedTickers)),
		logger.Bool("live", cfg.LiveTrading),
	)
	if err := trader.Run(ctx); err != nil && err != context.Canceled {
		log.Error("trader_exit", logger.Err(err))
		os.Exit(1)
	}
}

func serveMetrics(addr string, log logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Info("metrics_listening", logger.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics_server_failed", logger.Err(err))
	}
}
