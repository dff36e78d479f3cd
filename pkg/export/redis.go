package export

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vnykmshr/bgpool/pkg/pool"
)

// Config holds configuration for the Redis counter exporter.
type Config struct {
	// Redis client used for publishing. Required.
	Redis redis.UniversalClient

	// Key is the Redis key prefix for this pool's snapshots. Default "bgpool".
	Key string

	// InstanceID uniquely identifies this process among pool instances
	// sharing the prefix. Default host:pid plus a random suffix.
	InstanceID string

	// Interval is the minimum time between published snapshots. Default 15s.
	Interval time.Duration

	// KeyTTL is how long published keys live without refresh. Default 1h.
	KeyTTL time.Duration

	// RedisTimeout bounds each publish round trip. Default 500ms.
	RedisTimeout time.Duration

	// Logger receives publish failures. If nil, logging is disabled.
	Logger *zerolog.Logger
}

// RedisExporter periodically publishes a pool's counter snapshot to Redis so
// that in-flight maintenance activity is observable across processes. It
// runs as an ordinary pool task: between publish intervals it reports no
// useful work and rides the pool's own backoff, so it costs one cheap
// selection pass per idle interval.
type RedisExporter struct {
	cfg  Config
	log  zerolog.Logger
	keys map[string]string

	mu          sync.Mutex
	lastPublish time.Time
	handle      *pool.TaskHandle
}

// NewRedisExporter validates the configuration and creates an exporter.
func NewRedisExporter(cfg Config) (*RedisExporter, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	if cfg.Key == "" {
		cfg.Key = "bgpool"
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = generateInstanceID()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.KeyTTL <= 0 {
		cfg.KeyTTL = time.Hour
	}
	if cfg.RedisTimeout <= 0 {
		cfg.RedisTimeout = 500 * time.Millisecond
	}

	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("exporter", cfg.Key).Logger()
	}

	return &RedisExporter{
		cfg:  cfg,
		log:  log,
		keys: redisKeys(cfg.Key),
	}, nil
}

// Attach registers the exporter as a task on the pool. The returned handle
// can be woken to force an early publish.
func (e *RedisExporter) Attach(p pool.Pool) *pool.TaskHandle {
	handle := p.AddTask(e.task(p))

	e.mu.Lock()
	e.handle = handle
	e.mu.Unlock()

	return handle
}

// Detach removes the exporter's task from the pool, waiting for any
// in-flight publish to finish.
func (e *RedisExporter) Detach(p pool.Pool) {
	e.mu.Lock()
	handle := e.handle
	e.handle = nil
	e.mu.Unlock()

	if handle != nil {
		p.RemoveTask(handle)
	}
}

func (e *RedisExporter) task(p pool.Pool) pool.Task {
	return func(ctx context.Context, tc *pool.TaskContext) (bool, error) {
		if !e.due(time.Now()) {
			return false, nil
		}

		if err := e.publish(ctx, p.Counters()); err != nil {
			// Logged by the pool as well; publishing resumes on the next
			// eligible turn.
			return false, fmt.Errorf("publishing counter snapshot: %w", err)
		}

		e.markPublished(time.Now())
		return true, nil
	}
}

// due reports whether the publish interval has elapsed.
func (e *RedisExporter) due(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return now.Sub(e.lastPublish) >= e.cfg.Interval
}

func (e *RedisExporter) markPublished(now time.Time) {
	e.mu.Lock()
	e.lastPublish = now
	e.mu.Unlock()
}

// publish writes the snapshot in one pipeline: the counters hash is
// replaced wholesale so counters that have drained to zero do not linger,
// and every key is refreshed with the configured TTL.
func (e *RedisExporter) publish(ctx context.Context, counters map[string]int64) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RedisTimeout)
	defer cancel()

	pipe := e.cfg.Redis.Pipeline()

	pipe.Del(ctx, e.keys["counters"])
	if len(counters) > 0 {
		fields := make(map[string]interface{}, len(counters))
		for name, value := range counters {
			fields[name] = value
		}
		pipe.HSet(ctx, e.keys["counters"], fields)
		pipe.Expire(ctx, e.keys["counters"], e.cfg.KeyTTL)
	}

	pipe.HSet(ctx, e.keys["meta"], map[string]interface{}{
		"instance_id":  e.cfg.InstanceID,
		"published_at": time.Now().UnixNano(),
	})
	pipe.Expire(ctx, e.keys["meta"], e.cfg.KeyTTL)

	pipe.SAdd(ctx, e.keys["instances"], e.cfg.InstanceID)
	pipe.Expire(ctx, e.keys["instances"], e.cfg.KeyTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		e.log.Error().Err(err).Msg("failed to publish counter snapshot")
		return err
	}

	return nil
}

// redisKeys returns the full key names used under a prefix.
func redisKeys(prefix string) map[string]string {
	return map[string]string{
		"counters":  prefix + ":counters",
		"meta":      prefix + ":meta",
		"instances": prefix + ":instances",
	}
}

// generateInstanceID builds a reasonably unique identifier for this process.
func generateInstanceID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s:%d:%04x", hostname, os.Getpid(), rand.Intn(0x10000))
}
