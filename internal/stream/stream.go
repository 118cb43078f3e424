// Package stream moves collected measurements through a Redis stream.
package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"atmosfera/internal/logging"
	"atmosfera/internal/metrics"
	"atmosfera/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// payloadField is the stream entry field holding the JSON message.
const payloadField = "data"

const (
	SourceHistorical = "historical"
	SourceCurrent    = "current"
)

// Message is one batch of measurements for a station.
type Message struct {
	ID           string               `json:"id"`
	Source       string               `json:"source"`
	Station      string               `json:"station"`
	PublishedAt  time.Time            `json:"published_at"`
	Measurements []models.Measurement `json:"measurements"`
}

// Client is the subset of the Redis API the stream needs. *redis.Client satisfies it.
type Client interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

type Publisher struct {
	client Client
	stream string
}

func NewPublisher(client Client, stream string) *Publisher {
	return &Publisher{client: client, stream: stream}
}

// Publish adds one message carrying ms to the stream and returns the entry ID.
func (p *Publisher) Publish(ctx context.Context, source, station string, ms []models.Measurement) (string, error) {
	msg := Message{
		ID:           uuid.NewString(),
		Source:       source,
		Station:      station,
		PublishedAt:  time.Now().UTC(),
		Measurements: ms,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to serialize message for %s: %w", station, err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{payloadField: string(data)},
	}).Result()
	if err != nil {
		metrics.RecordIngested("publish_failed", len(ms))
		return "", fmt.Errorf("failed to publish to %s for %s: %w", p.stream, station, err)
	}

	metrics.RecordIngested("published", len(ms))
	logging.Info().Str("station", station).Str("source", source).Int("rows", len(ms)).Str("entry", id).Msg("published measurements")
	return id, nil
}

// Handler processes one message. Returning an error leaves the entry unacknowledged.
type Handler func(ctx context.Context, msg Message) error

type ConsumerConfig struct {
	Stream   string
	Group    string
	Consumer string
	Count    int64
	Block    time.Duration
}

type Consumer struct {
	client Client
	cfg    ConsumerConfig
}

func NewConsumer(client Client, cfg ConsumerConfig) *Consumer {
	if cfg.Consumer == "" {
		cfg.Consumer = "consumer-1"
	}
	if cfg.Count <= 0 {
		cfg.Count = 10
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	return &Consumer{client: client, cfg: cfg}
}

// Run reads the stream through the consumer group until ctx is cancelled.
// The group is created if missing. Malformed entries are acknowledged and
// dropped; entries whose handler fails stay pending.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	log := logging.With("stream")
	log.Info().Str("stream", c.cfg.Stream).Str("group", c.cfg.Group).Msg("consuming stream")

	for {
		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.cfg.Group,
			Consumer: c.cfg.Consumer,
			Streams:  []string{c.cfg.Stream, ">"},
			Count:    c.cfg.Count,
			Block:    c.cfg.Block,
		}).Result()

		if ctx.Err() != nil {
			return nil
		}

		if err != nil && !errors.Is(err, redis.Nil) {
			log.Error().Err(err).Msg("error reading from redis")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		for _, s := range streams {
			for _, entry := range s.Messages {
				if ctx.Err() != nil {
					return nil
				}
				c.process(ctx, entry, handle)
			}
		}
	}
}

func (c *Consumer) process(ctx context.Context, entry redis.XMessage, handle Handler) {
	log := logging.With("stream")

	msg, err := Decode(entry)
	if err != nil {
		log.Warn().Err(err).Str("entry", entry.ID).Msg("dropping malformed entry")
		metrics.RecordIngested("malformed", 1)
		c.ack(entry.ID)
		return
	}

	if err := handle(ctx, msg); err != nil {
		log.Error().Err(err).Str("entry", entry.ID).Str("station", msg.Station).Msg("handler failed, entry left pending")
		metrics.RecordIngested("handler_failed", len(msg.Measurements))
		return
	}

	metrics.RecordIngested("consumed", len(msg.Measurements))
	c.ack(entry.ID)
}

func (c *Consumer) ack(id string) {
	// a cancelled run context must not prevent the ack of finished work
	if err := c.client.XAck(context.Background(), c.cfg.Stream, c.cfg.Group, id).Err(); err != nil {
		logging.Warn().Err(err).Str("entry", id).Msg("failed to ack entry")
	}
}

// Decode parses a stream entry into a Message.
func Decode(entry redis.XMessage) (Message, error) {
	raw, ok := entry.Values[payloadField].(string)
	if !ok {
		return Message{}, fmt.Errorf("entry %s has no %q field", entry.ID, payloadField)
	}
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return Message{}, fmt.Errorf("entry %s: %w", entry.ID, err)
	}
	return msg, nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
