package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/logger"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/metrics"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/models"
)

// ScoredEventInput is the wire format of one scored event on the events
// topic. The timestamp is a string so upstream jobs can write any of the
// supported formats.
type ScoredEventInput struct {
	Timestamp   string             `json:"timestamp"`
	DeviceID    string             `json:"device_id"`
	State       string             `json:"operating_state"`
	Score       float64            `json:"anomaly_score"`
	Tag         string             `json:"tag,omitempty"`
	Families    map[string]float64 `json:"family_attribution"`
	TopFeatures []models.Share     `json:"top_features"`
}

// ToEvent converts the wire record into a ScoredEvent.
func (in ScoredEventInput) ToEvent() (*models.ScoredEvent, error) {
	ts, err := models.ParseTimestamp(in.Timestamp)
	if err != nil {
		return nil, err
	}

	return &models.ScoredEvent{
		Timestamp:   ts,
		DeviceID:    in.DeviceID,
		State:       models.OperatingState(in.State),
		Score:       in.Score,
		Tag:         in.Tag,
		Families:    in.Families,
		TopFeatures: in.TopFeatures,
	}, nil
}

// SubmitFunc hands a validated event to the evaluation shards. It blocks
// when the shard queue is full, which backpressures consumption.
type SubmitFunc func(ctx context.Context, ev *models.ScoredEvent) error

// Consumer reads scored events from the events topic and feeds them to the
// evaluation shards in arrival order. Malformed records are skipped with a
// diagnostic; they never abort the stream.
type Consumer struct {
	reader *kafka.Reader
	submit SubmitFunc
}

// NewConsumer creates a consumer for the scored-events topic.
func NewConsumer(brokers []string, topic, groupID string, submit SubmitFunc) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: time.Second,
			MaxWait:        time.Second,
		}),
		submit: submit,
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	log := logger.WithComponent("kafka_consumer")
	log.Info().Msg("consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Info().Msg("consumer stopping")
				return nil
			}
			log.Error().Err(err).Msg("read error")
			select {
			case <-time.After(500 * time.Millisecond):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		var input ScoredEventInput
		if err := json.Unmarshal(msg.Value, &input); err != nil {
			log.Warn().Err(err).Int64("offset", msg.Offset).Msg("skipping undecodable event")
			metrics.EventsReceivedTotal.WithLabelValues("kafka", "skipped").Inc()
			metrics.EventsSkippedTotal.WithLabelValues("decode_error").Inc()
			continue
		}

		ev, err := input.ToEvent()
		if err != nil {
			log.Warn().
				Err(err).
				Str("device_id", input.DeviceID).
				Str("timestamp", input.Timestamp).
				Msg("skipping event with bad timestamp")
			metrics.EventsReceivedTotal.WithLabelValues("kafka", "skipped").Inc()
			metrics.EventsSkippedTotal.WithLabelValues("bad_timestamp").Inc()
			continue
		}

		ev.Normalize()
		if err := ev.Validate(); err != nil {
			log.Warn().
				Err(err).
				Str("device_id", ev.DeviceID).
				Msg("skipping malformed event")
			metrics.EventsReceivedTotal.WithLabelValues("kafka", "skipped").Inc()
			metrics.EventsSkippedTotal.WithLabelValues("invalid").Inc()
			continue
		}

		if err := c.submit(ctx, ev); err != nil {
			// Submit only fails on shutdown
			return nil
		}
		metrics.EventsReceivedTotal.WithLabelValues("kafka", "accepted").Inc()
	}
}

// Close releases the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
