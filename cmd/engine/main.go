package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/config"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/logger"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/processor"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/rules"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.FromEnv()
	logger.Init(cfg.LogLevel)
	log := logger.WithComponent("main")

	// Configuration errors are fatal: the engine never starts serving with a
	// partial or invalid catalogue.
	catalog, err := rules.Load(cfg.RulesPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.RulesPath).Msg("rule configuration rejected")
	}

	p := processor.New(cfg, catalog)

	// run engine in background
	go func() {
		if err := p.Run(ctx); err != nil {
			log.Error().Err(err).Msg("engine exited")
			cancel()
		}
	}()

	// wait for termination signals
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigs:
		log.Info().Msg("shutting down")
		cancel()
	case <-ctx.Done():
	}

	// give graceful shutdown some time
	time.Sleep(500 * time.Millisecond)
	log.Info().Msg("exited")
}
