package worker

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/logger"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/metrics"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/models"
)

// Publisher defines the interface for delivering alerts to the downstream sink
type Publisher interface {
	Publish(ctx context.Context, alert *models.AlertEvent) error
	PublishBatch(ctx context.Context, alerts []*models.AlertEvent) error
}

// Cache records the latest alert per device. Optional; best-effort.
type Cache interface {
	StoreLatest(ctx context.Context, alert *models.AlertEvent) error
}

// Pool manages delivery workers that drain the alert queue into the sink.
// Delivery is decoupled from evaluation: a slow or failing sink only fills
// the bounded alert queue, it never stalls a matcher. Alerts that exhaust
// the publisher's retry budget are surfaced via logs and metrics, never
// silently dropped.
type Pool struct {
	publisher    Publisher
	cache        Cache
	alertChan    chan *models.AlertEvent
	workers      int
	batchSize    int
	batchTimeout time.Duration

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	// Metrics
	delivered atomic.Uint64
	failed    atomic.Uint64
}

// Config holds delivery pool configuration
type Config struct {
	Publisher    Publisher
	Cache        Cache
	AlertChan    chan *models.AlertEvent
	Workers      int
	BatchSize    int
	BatchTimeout time.Duration
}

// NewPool creates a new delivery pool
func NewPool(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 100 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		publisher:    cfg.Publisher,
		cache:        cfg.Cache,
		alertChan:    cfg.AlertChan,
		workers:      cfg.Workers,
		batchSize:    cfg.BatchSize,
		batchTimeout: cfg.BatchTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start begins delivering alerts
func (p *Pool) Start() {
	log := logger.WithComponent("delivery_pool")
	log.Info().
		Int("workers", p.workers).
		Int("batch_size", p.batchSize).
		Dur("batch_timeout", p.batchTimeout).
		Msg("starting delivery pool")

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop gracefully stops all workers
func (p *Pool) Stop() {
	log := logger.WithComponent("delivery_pool")
	log.Info().Msg("stopping delivery pool")
	p.cancel()
	p.wg.Wait()
	log.Info().Msg("delivery pool stopped")
}

// worker drains alerts from the channel
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	log := logger.WithComponent("delivery_worker").With().Int("worker_id", id).Logger()

	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			log.Error().
				Interface("panic", r).
				Bytes("stack", stack).
				Msg("delivery worker panic recovered")
			metrics.PanicsRecovered.WithLabelValues("delivery_worker").Inc()
		}
	}()

	log.Info().Msg("delivery worker started")
	defer log.Info().Msg("delivery worker stopped")

	batch := make([]*models.AlertEvent, 0, p.batchSize)
	timer := time.NewTimer(p.batchTimeout)
	defer timer.Stop()

	for {
		select {
		case <-p.ctx.Done():
			// Flush remaining batch before exiting
			if len(batch) > 0 {
				p.deliverBatch(batch)
			}
			return

		case alert, ok := <-p.alertChan:
			if !ok {
				// Channel closed, flush and exit
				if len(batch) > 0 {
					p.deliverBatch(batch)
				}
				return
			}

			batch = append(batch, alert)

			if len(batch) >= p.batchSize {
				p.deliverBatch(batch)
				batch = batch[:0]
				timer.Reset(p.batchTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				p.deliverBatch(batch)
				batch = batch[:0]
			}
			timer.Reset(p.batchTimeout)
		}
	}
}

// deliverBatch publishes a batch of alerts to the sink
func (p *Pool) deliverBatch(batch []*models.AlertEvent) {
	if len(batch) == 0 {
		return
	}

	log := logger.WithComponent("delivery_worker")
	start := time.Now()

	// Delivery must be able to finish a flush after p.ctx is cancelled, so
	// the publish context is independent of the pool lifecycle.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := p.publisher.PublishBatch(ctx, batch)
	duration := time.Since(start)

	metrics.DeliveryBatchDuration.Observe(duration.Seconds())

	if err != nil {
		log.Error().
			Err(err).
			Int("batch_size", len(batch)).
			Dur("duration", duration).
			Msg("failed to deliver alert batch")

		// Fallback: deliver individually so one bad alert cannot hold the
		// whole batch hostage
		p.deliverIndividually(batch)
		return
	}

	log.Debug().
		Int("batch_size", len(batch)).
		Dur("duration", duration).
		Msg("alert batch delivered")

	p.delivered.Add(uint64(len(batch)))
	metrics.DeliveryProcessedTotal.Add(float64(len(batch)))
	p.cacheBatch(batch)
}

// deliverIndividually retries each alert separately (fallback)
func (p *Pool) deliverIndividually(batch []*models.AlertEvent) {
	log := logger.WithComponent("delivery_worker")
	log.Warn().Int("count", len(batch)).Msg("attempting individual delivery for failed batch")

	for _, alert := range batch {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := p.publisher.Publish(ctx, alert)
		cancel()

		if err != nil {
			log.Error().
				Err(err).
				Str("device_id", alert.DeviceID).
				Str("rule_name", alert.RuleName).
				Str("severity", string(alert.Severity)).
				Msg("alert delivery exhausted retry budget")
			p.failed.Add(1)
			metrics.DeliveryFailedTotal.Inc()
		} else {
			p.delivered.Add(1)
			metrics.DeliveryProcessedTotal.Inc()
			p.cacheAlert(alert)
		}
	}
}

func (p *Pool) cacheBatch(batch []*models.AlertEvent) {
	for _, alert := range batch {
		p.cacheAlert(alert)
	}
}

func (p *Pool) cacheAlert(alert *models.AlertEvent) {
	if p.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.cache.StoreLatest(ctx, alert); err != nil {
		log := logger.WithComponent("delivery_worker")
		log.Warn().
			Err(err).
			Str("device_id", alert.DeviceID).
			Msg("latest-alert cache write failed")
	}
}

// Stats returns delivery pool statistics
func (p *Pool) Stats() Stats {
	return Stats{
		Delivered: p.delivered.Load(),
		Failed:    p.failed.Load(),
	}
}

// Stats holds delivery pool metrics
type Stats struct {
	Delivered uint64
	Failed    uint64
}
