package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opsloop/remedia/pkg/execute"
	"github.com/opsloop/remedia/pkg/sources"
)

// Redis persists samples and execution records to Redis lists with TTL-based
// expiration, enabling external consumers (dashboards, knowledge bases) to
// read recent history without coupling to the loop process.
//
// Key layout:
//
//	remedia:samples:{subsystem}:{metric} — LPUSH'd sample JSON, trimmed
//	remedia:records                      — LPUSH'd record JSON, trimmed
type Redis struct {
	client  *redis.Client
	ttl     time.Duration
	maxList int64
}

// NewRedis creates a Redis-backed sink and verifies connectivity.
//
// ttl = 0 uses a default of 30 minutes. maxList bounds each list's length
// (default 1000 entries).
func NewRedis(addr, password string, db int, ttl time.Duration) (*Redis, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}
	if ttl == 0 {
		ttl = 30 * time.Minute
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &Redis{
		client:  client,
		ttl:     ttl,
		maxList: 1000,
	}, nil
}

func (r *Redis) WriteSample(ctx context.Context, s sources.Sample) error {
	if err := validateName(s.SubsystemID); err != nil {
		return err
	}
	if err := validateName(s.Metric); err != nil {
		return err
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal sample: %w", err)
	}

	key := fmt.Sprintf("remedia:samples:%s:%s", s.SubsystemID, s.Metric)
	return r.push(ctx, key, data)
}

func (r *Redis) WriteRecord(ctx context.Context, rec execute.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return r.push(ctx, "remedia:records", data)
}

// push prepends data to a bounded, expiring list.
func (r *Redis) push(ctx context.Context, key string, data []byte) error {
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, r.maxList-1)
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis write %s: %w", key, err)
	}
	return nil
}

// RecentRecords reads up to limit record entries, newest first. Used by
// integration tests and external consumers.
func (r *Redis) RecentRecords(ctx context.Context, limit int64) ([]execute.Record, error) {
	if limit <= 0 {
		limit = r.maxList
	}
	raw, err := r.client.LRange(ctx, "remedia:records", 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis read records: %w", err)
	}

	records := make([]execute.Record, 0, len(raw))
	for _, item := range raw {
		var rec execute.Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Ping checks the Redis connection health.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client connection. Safe to call multiple times.
func (r *Redis) Close() error {
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	if err != nil && err.Error() == "redis: client is closed" {
		return nil
	}
	return err
}

func validateName(name string) error {
	if name == "" {
		return errors.New("name required")
	}
	for _, c := range name {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '_') {
			return fmt.Errorf("invalid name %q: only alphanumeric, hyphens, and underscores allowed", name)
		}
	}
	return nil
}
