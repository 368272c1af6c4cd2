package worker

import (
	"context"
	"errors"
	"hash/fnv"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/engine"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/logger"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/metrics"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/models"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/rules"
)

// ErrShardsStopped is returned by Submit after Stop has begun.
var ErrShardsStopped = errors.New("evaluation shards are stopped")

// Shards partitions the event stream by device ID across independent
// evaluation goroutines. Each shard owns one Evaluator, and with it the burst
// window state of every device hashed to it, so no locking is needed on the
// matching hot path. The shared rule catalogue is read-only.
type Shards struct {
	queues []chan *models.ScoredEvent
	evals  []*engine.Evaluator
	alerts chan<- *models.AlertEvent

	stopped atomic.Bool
	wg      sync.WaitGroup

	// Metrics
	evaluated atomic.Uint64
	emitted   atomic.Uint64
}

// ShardConfig holds evaluation shard configuration.
type ShardConfig struct {
	Catalog   *rules.Catalog
	Count     int
	QueueSize int
	AlertChan chan<- *models.AlertEvent
}

// NewShards creates the shard set. Each shard gets its own Evaluator over the
// shared catalogue.
func NewShards(cfg ShardConfig) *Shards {
	if cfg.Count <= 0 {
		cfg.Count = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	s := &Shards{
		queues: make([]chan *models.ScoredEvent, cfg.Count),
		evals:  make([]*engine.Evaluator, cfg.Count),
		alerts: cfg.AlertChan,
	}
	for i := 0; i < cfg.Count; i++ {
		s.queues[i] = make(chan *models.ScoredEvent, cfg.QueueSize)
		s.evals[i] = engine.NewEvaluator(cfg.Catalog)
	}
	return s
}

// Start launches one goroutine per shard.
func (s *Shards) Start() {
	log := logger.WithComponent("shards")
	log.Info().
		Int("shards", len(s.queues)).
		Int("queue_size", cap(s.queues[0])).
		Msg("starting evaluation shards")

	metrics.ShardQueueCapacity.Set(float64(len(s.queues) * cap(s.queues[0])))

	for i := range s.queues {
		s.wg.Add(1)
		go s.run(i)
	}
}

// Stop closes the shard queues, waits for the backlog to drain, and returns.
// Alerts for every submitted event are on the alert channel when Stop
// returns.
func (s *Shards) Stop() {
	if s.stopped.Swap(true) {
		return
	}
	log := logger.WithComponent("shards")
	log.Info().Msg("stopping evaluation shards")
	for _, q := range s.queues {
		close(q)
	}
	s.wg.Wait()
	log.Info().Msg("evaluation shards stopped")
}

// Submit routes an event to its device's shard, blocking while the shard
// queue is full. It must not be called concurrently with Stop.
func (s *Shards) Submit(ctx context.Context, ev *models.ScoredEvent) error {
	if s.stopped.Load() {
		return ErrShardsStopped
	}
	select {
	case s.queues[s.shardFor(ev.DeviceID)] <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit routes an event without blocking; it reports false when the
// shard queue is full.
func (s *Shards) TrySubmit(ev *models.ScoredEvent) bool {
	if s.stopped.Load() {
		return false
	}
	select {
	case s.queues[s.shardFor(ev.DeviceID)] <- ev:
		return true
	default:
		return false
	}
}

func (s *Shards) shardFor(deviceID string) int {
	h := fnv.New32a()
	h.Write([]byte(deviceID))
	return int(h.Sum32() % uint32(len(s.queues)))
}

// run drains one shard queue through its evaluator.
func (s *Shards) run(id int) {
	defer s.wg.Done()

	log := logger.WithComponent("shard").With().Int("shard_id", id).Logger()

	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			log.Error().
				Interface("panic", r).
				Bytes("stack", stack).
				Msg("shard panic recovered")
			metrics.PanicsRecovered.WithLabelValues("shard").Inc()
		}
	}()

	log.Info().Msg("shard started")
	defer log.Info().Msg("shard stopped")

	eval := s.evals[id]
	for ev := range s.queues[id] {
		alerts := eval.Evaluate(ev)
		s.evaluated.Add(1)

		for _, alert := range alerts {
			s.alerts <- alert
			s.emitted.Add(1)
		}

		if len(alerts) > 0 {
			log.Debug().
				Str("device_id", ev.DeviceID).
				Int("alerts", len(alerts)).
				Msg("event produced alerts")
		}
	}
}

// QueueDepth returns the total number of events buffered across shards.
func (s *Shards) QueueDepth() int {
	depth := 0
	for _, q := range s.queues {
		depth += len(q)
	}
	return depth
}

// Devices returns the number of devices with live burst state across shards.
func (s *Shards) Devices() int {
	n := 0
	for _, e := range s.evals {
		n += e.Devices()
	}
	return n
}

// Stats returns shard counters.
func (s *Shards) Stats() ShardStats {
	return ShardStats{
		Evaluated: s.evaluated.Load(),
		Emitted:   s.emitted.Load(),
	}
}

// ShardStats holds shard counters.
type ShardStats struct {
	Evaluated uint64
	Emitted   uint64
}
