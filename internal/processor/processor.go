package processor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/config"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/handlers"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/kafka"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/logger"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/metrics"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/middleware"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/models"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/rules"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/state"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/worker"
)

// Processor is the high-level coordinator: it wires the scored-event intake
// (Kafka consumer and HTTP ingest) to the evaluation shards and the alert
// delivery pool, and serves the ops endpoints.
type Processor struct {
	cfg     *config.Config
	catalog *rules.Catalog

	producer     *kafka.Producer
	consumer     *kafka.Consumer
	cache        *state.AlertCache
	shards       *worker.Shards
	deliveryPool *worker.Pool
	httpServer   *http.Server
	alertChan    chan *models.AlertEvent
	wg           sync.WaitGroup
}

// New constructs a Processor over an already-loaded rule catalogue.
func New(cfg *config.Config, catalog *rules.Catalog) *Processor {
	return &Processor{
		cfg:       cfg,
		catalog:   catalog,
		alertChan: make(chan *models.AlertEvent, cfg.AlertQueueSize),
	}
}

// Run starts background goroutines and blocks until context cancelled.
func (p *Processor) Run(ctx context.Context) error {
	log := logger.WithComponent("processor")
	log.Info().
		Int("rules", p.catalog.Len()).
		Int("burst_rules", len(p.catalog.Bursts)).
		Int("dominant_rules", len(p.catalog.Dominants)).
		Int("tag_routes", len(p.catalog.TagRoutes)).
		Msg("alert engine starting")

	if err := p.initProducer(); err != nil {
		log.Error().Err(err).Msg("failed to initialize producer")
		return fmt.Errorf("failed to initialize producer: %w", err)
	}

	p.initCache(ctx)
	p.initDeliveryPool()
	p.deliveryPool.Start()

	p.initShards()
	p.shards.Start()

	p.initConsumer()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.consumer.Run(ctx); err != nil {
			log.Error().Err(err).Msg("consumer exited with error")
		}
	}()

	p.initHTTPServer()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Info().Str("addr", p.cfg.HTTPAddr).Msg("starting HTTP server")
		if err := p.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.reportStats(ctx)
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	return p.shutdown()
}

// initProducer initializes the Kafka alert producer
func (p *Processor) initProducer() error {
	log := logger.WithComponent("processor")
	producer, err := kafka.NewProducer(
		p.cfg.Kafka.Brokers,
		p.cfg.Kafka.AlertsTopic,
		p.cfg.Kafka.Producer,
	)
	if err != nil {
		return err
	}

	p.producer = producer
	log.Info().
		Strs("brokers", p.cfg.Kafka.Brokers).
		Str("topic", p.cfg.Kafka.AlertsTopic).
		Msg("kafka alert producer initialized")
	return nil
}

// initCache initializes the optional latest-alert cache
func (p *Processor) initCache(ctx context.Context) {
	if p.cfg.Redis.Addr == "" {
		return
	}

	log := logger.WithComponent("processor")
	p.cache = state.NewAlertCache(p.cfg.Redis.Addr, p.cfg.Redis.TTL)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.cache.Ping(pingCtx); err != nil {
		// Cache writes are best-effort; keep the client and let it reconnect
		log.Warn().Err(err).Str("addr", p.cfg.Redis.Addr).Msg("alert cache unreachable at startup")
	} else {
		log.Info().Str("addr", p.cfg.Redis.Addr).Msg("alert cache initialized")
	}
}

// initDeliveryPool initializes the alert delivery pool
func (p *Processor) initDeliveryPool() {
	log := logger.WithComponent("processor")
	var cache worker.Cache
	if p.cache != nil {
		cache = p.cache
	}
	p.deliveryPool = worker.NewPool(worker.Config{
		Publisher:    p.producer,
		Cache:        cache,
		AlertChan:    p.alertChan,
		Workers:      p.cfg.Kafka.Producer.PoolSize,
		BatchSize:    p.cfg.Kafka.Producer.BatchSize,
		BatchTimeout: p.cfg.Kafka.Producer.BatchTimeout,
	})
	metrics.AlertQueueCapacity.Set(float64(cap(p.alertChan)))
	log.Info().Int("workers", p.cfg.Kafka.Producer.PoolSize).Msg("delivery pool initialized")
}

// initShards initializes the evaluation shards
func (p *Processor) initShards() {
	log := logger.WithComponent("processor")
	p.shards = worker.NewShards(worker.ShardConfig{
		Catalog:   p.catalog,
		Count:     p.cfg.Shards,
		QueueSize: p.cfg.ShardQueueSize,
		AlertChan: p.alertChan,
	})
	log.Info().Int("shards", p.cfg.Shards).Msg("evaluation shards initialized")
}

// initConsumer initializes the scored-event consumer
func (p *Processor) initConsumer() {
	p.consumer = kafka.NewConsumer(
		p.cfg.Kafka.Brokers,
		p.cfg.Kafka.EventsTopic,
		p.cfg.Kafka.ConsumerGroup,
		p.shards.Submit,
	)
}

// initHTTPServer initializes the HTTP server with handlers
func (p *Processor) initHTTPServer() {
	mux := http.NewServeMux()

	ingestHandler := handlers.NewIngestHandler(handlers.IngestConfig{
		Submitter:   p.shards,
		MaxBodySize: 10 * 1024 * 1024, // 10MB
	})
	mux.Handle("/ingest", middleware.Chain(
		ingestHandler,
		middleware.Recovery,
		middleware.Logging,
	))

	mux.HandleFunc("/health", p.healthHandler)
	mux.HandleFunc("/stats", p.statsHandler)
	mux.Handle("/metrics", promhttp.Handler())

	p.httpServer = &http.Server{
		Addr:         p.cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// shutdown performs graceful shutdown
func (p *Processor) shutdown() error {
	log := logger.WithComponent("processor")
	log.Info().Msg("initiating graceful shutdown")

	// 1. Stop reading new events
	log.Info().Msg("closing consumer")
	if err := p.consumer.Close(); err != nil {
		log.Error().Err(err).Msg("consumer close error")
	}

	// 2. Stop accepting new HTTP requests
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info().Msg("stopping HTTP server")
	if err := p.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 3. Drain the evaluation shards; every accepted event is evaluated
	log.Info().Msg("draining evaluation shards")
	p.shards.Stop()

	// 4. Close the alert channel so delivery workers flush and exit
	log.Info().Msg("closing alert channel")
	close(p.alertChan)

	done := make(chan struct{})
	go func() {
		p.deliveryPool.Stop()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("delivery pool stopped gracefully")
	case <-time.After(15 * time.Second):
		log.Warn().Msg("delivery shutdown timeout - forcing exit")
	}

	// 5. Close producer and cache
	log.Info().Msg("closing kafka producer")
	if err := p.producer.Close(); err != nil {
		log.Error().Err(err).Msg("producer close error")
	}
	if p.cache != nil {
		if err := p.cache.Close(); err != nil {
			log.Error().Err(err).Msg("cache close error")
		}
	}

	// 6. Wait for all goroutines
	p.wg.Wait()

	log.Info().Msg("alert engine stopped gracefully")
	return nil
}

// reportStats periodically logs statistics
func (p *Processor) reportStats(ctx context.Context) {
	log := logger.WithComponent("processor")
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			shardStats := p.shards.Stats()
			poolStats := p.deliveryPool.Stats()
			producerStats := p.producer.Stats()

			metrics.ShardQueueSize.Set(float64(p.shards.QueueDepth()))
			metrics.AlertQueueSize.Set(float64(len(p.alertChan)))
			metrics.BurstDevicesTracked.Set(float64(p.shards.Devices()))

			log.Info().
				Uint64("events_evaluated", shardStats.Evaluated).
				Uint64("alerts_emitted", shardStats.Emitted).
				Uint64("alerts_delivered", poolStats.Delivered).
				Uint64("alerts_failed", poolStats.Failed).
				Uint64("producer_sent", producerStats.MessagesSent).
				Uint64("producer_failed", producerStats.MessagesFailed).
				Int("alert_queue", len(p.alertChan)).
				Int("devices_tracked", p.shards.Devices()).
				Msg("stats")
		}
	}
}

// healthHandler handles health check requests
func (p *Processor) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := p.producer.HealthCheck(ctx); err != nil {
		http.Error(w, fmt.Sprintf("unhealthy: %v", err), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// statsHandler returns current statistics
func (p *Processor) statsHandler(w http.ResponseWriter, r *http.Request) {
	shardStats := p.shards.Stats()
	poolStats := p.deliveryPool.Stats()
	producerStats := p.producer.Stats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{
		"shards": {
			"evaluated": %d,
			"emitted": %d,
			"queue_depth": %d,
			"devices_tracked": %d
		},
		"delivery": {
			"delivered": %d,
			"failed": %d
		},
		"producer": {
			"messages_sent": %d,
			"messages_failed": %d,
			"bytes_written": %d
		},
		"alert_queue": {
			"buffered": %d,
			"capacity": %d
		}
	}`,
		shardStats.Evaluated,
		shardStats.Emitted,
		p.shards.QueueDepth(),
		p.shards.Devices(),
		poolStats.Delivered,
		poolStats.Failed,
		producerStats.MessagesSent,
		producerStats.MessagesFailed,
		producerStats.BytesWritten,
		len(p.alertChan),
		cap(p.alertChan),
	)
}
