package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/openhedge/arbitrage/config"
	"github.com/openhedge/arbitrage/pkg/exchange"
	"github.com/openhedge/arbitrage/pkg/exchange/aevo"
	"github.com/openhedge/arbitrage/pkg/exchange/dydx"
	"github.com/openhedge/arbitrage/pkg/logging"
	"github.com/openhedge/arbitrage/pkg/metrics"
	"github.com/openhedge/arbitrage/pkg/orchestrator"
	"github.com/openhedge/arbitrage/pkg/transport"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "", "path to yaml config file")
		quiet      = flag.Bool("quiet", false, "suppress verbose logs")
		failFast   = flag.Bool("fail-fast", false, "stop everything when one venue stream terminates")
		instrument = flag.String("instrument", "", "override the instrument on both venues, e.g. BTC")
	)
	flag.Parse()

	_ = godotenv.Load()

	level := logging.INFO
	if *quiet {
		level = logging.WARN
	}
	log := logging.NewLogger(level)
	defer log.Sync() //nolint:errcheck
	zap.ReplaceGlobals(log.Zap())

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("load config", zap.Error(err))
		return 1
	}
	if *instrument != "" {
		cfg.Dydx.Instrument = fmt.Sprintf("%s-USD", *instrument)
		cfg.Aevo.Instrument = fmt.Sprintf("%s-PERP", *instrument)
	}
	policy := orchestrator.Policy(cfg.Policy)
	if *failFast {
		policy = orchestrator.FailFast
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("shutting down")
		cancel()
	}()

	if cfg.MetricsAddr != "" {
		reg := metrics.Init()
		go func() {
			if err := metrics.Serve(cfg.MetricsAddr, reg); err != nil {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	dydxCh, err := transport.Dial(ctx, cfg.Dydx.Transport)
	if err != nil {
		log.Error("connect dydx", zap.Error(err))
		return 1
	}
	aevoCh, err := transport.Dial(ctx, cfg.Aevo.Transport)
	if err != nil {
		_ = dydxCh.Close()
		log.Error("connect aevo", zap.Error(err))
		return 1
	}

	adapters := []exchange.Adapter{
		dydx.New(dydxCh, cfg.Dydx.Instrument),
		aevo.New(aevoCh, cfg.Aevo.Instrument),
	}

	log.Info("watching order books",
		zap.String("dydx_instrument", cfg.Dydx.Instrument),
		zap.String("aevo_instrument", cfg.Aevo.Instrument),
		zap.String("policy", string(policy)),
	)

	err = orchestrator.New(log, policy).Run(ctx, adapters...)
	switch {
	case errors.Is(err, context.Canceled):
		log.Info("exited cleanly")
		return 0
	default:
		log.Error("orchestrator stopped", zap.Error(err))
		return 1
	}
}
