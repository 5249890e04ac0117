package bus

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"solana-signal-engine/internal/observability"
)

// streamMaxLen is the approximate cap on the signal stream, enforced via XADD MAXLEN ~.
const streamMaxLen int64 = 10000

// RedisConfig holds connection parameters for the Redis client.
type RedisConfig struct {
	Addr       string `yaml:"addr" toml:"addr"`
	Password   string `yaml:"password" toml:"password"`
	DB         int    `yaml:"db" toml:"db"`
	PoolSize   int    `yaml:"pool_size" toml:"pool_size"`
	MaxRetries int    `yaml:"max_retries" toml:"max_retries"`
	TLSEnabled bool   `yaml:"tls" toml:"tls"`
	Prefix     string `yaml:"prefix" toml:"prefix"` // Default: "signals"
}

// RedisPublisher publishes JSON messages on Redis Pub/Sub channels
// <prefix>:candidates, <prefix>:guards and <prefix>:signals. Signals are
// also appended to the stream <prefix>:signals:stream for consumers that
// need replay.
type RedisPublisher struct {
	rdb    *redis.Client
	prefix string
	owned  bool
}

var _ Publisher = (*RedisPublisher)(nil)

// DialRedis connects, pings, and returns a publisher that owns the client.
func DialRedis(ctx context.Context, cfg RedisConfig) (*RedisPublisher, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	p := NewRedisPublisher(rdb, cfg.Prefix)
	p.owned = true
	return p, nil
}

// NewRedisPublisher wraps an existing client. Close does not close it.
func NewRedisPublisher(rdb *redis.Client, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = "signals"
	}
	return &RedisPublisher{rdb: rdb, prefix: prefix}
}

// Channel returns the Pub/Sub channel for topic.
func (p *RedisPublisher) Channel(topic string) string {
	return p.prefix + ":" + topic
}

// Stream returns the signal stream key.
func (p *RedisPublisher) Stream() string {
	return p.prefix + ":" + TopicSignals + ":stream"
}

func (p *RedisPublisher) PublishCandidate(ctx context.Context, m CandidateMessage) error {
	return p.publish(ctx, TopicCandidates, m)
}

func (p *RedisPublisher) PublishGuards(ctx context.Context, m GuardMessage) error {
	return p.publish(ctx, TopicGuards, m)
}

// PublishSignal publishes on the signals channel and appends to the stream
// in one pipeline.
func (p *RedisPublisher) PublishSignal(ctx context.Context, m SignalMessage) (err error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("redis: encode signal: %w", err)
	}

	defer observe("publish_signal", time.Now(), &err)

	_, err = p.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, p.Channel(TopicSignals), payload)
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: p.Stream(),
			MaxLen: streamMaxLen,
			Approx: true,
			Values: map[string]interface{}{
				"signal_id": m.SignalID,
				"mint":      m.Result.Mint,
				"signal":    string(m.Result.Signal),
				"payload":   payload,
			},
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: publish signal: %w", err)
	}
	return nil
}

func (p *RedisPublisher) publish(ctx context.Context, topic string, v interface{}) (err error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: encode %s: %w", topic, err)
	}

	defer observe("publish_"+topic, time.Now(), &err)

	if err = p.rdb.Publish(ctx, p.Channel(topic), payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", p.Channel(topic), err)
	}
	return nil
}

// Close closes the client if the publisher dialed it.
func (p *RedisPublisher) Close() error {
	if !p.owned {
		return nil
	}
	return p.rdb.Close()
}

// observe records command latency and the final value of *errp. Use with defer.
func observe(operation string, start time.Time, errp *error) {
	observability.RecordDBQuery("redis", operation, time.Since(start).Seconds(), *errp)
}
