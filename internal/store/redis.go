package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	redis "github.com/redis/go-redis/v9"
)

// RedisOptions configures NewRedis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces every key; defaults to "vodfetch".
	KeyPrefix string
	// ConnectTimeout bounds the startup ping retries.
	ConnectTimeout time.Duration
	Logger         *log.Logger
}

// Redis stores each record as JSON under <prefix>:job:<id> and indexes ids
// in the <prefix>:jobs sorted set scored by creation time.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects and pings the server, retrying with exponential
// backoff until ConnectTimeout elapses.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithPrefix("store")
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = timeout
	b.MaxInterval = 5 * time.Second
	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return client.Ping(pingCtx).Err()
	}
	notify := func(err error, next time.Duration) {
		logger.Warn("redis not reachable, retrying", "addr", opts.Addr, "err", err, "in", next)
	}
	if err := backoff.RetryNotify(ping, backoff.WithContext(b, ctx), notify); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}
	logger.Info("connected to redis", "addr", opts.Addr, "db", opts.DB)
	return NewRedisFromClient(client, opts.KeyPrefix), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "vodfetch"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) recordKey(id string) string { return r.prefix + ":job:" + id }
func (r *Redis) indexKey() string          { return r.prefix + ":jobs" }

func (r *Redis) Create(ctx context.Context, rec *Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, r.recordKey(rec.ID), b, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("record %s already exists", rec.ID)
	}
	return r.client.ZAdd(ctx, r.indexKey(), redis.Z{Score: float64(rec.CreatedAt.UnixNano()), Member: rec.ID}).Err()
}

func (r *Redis) Get(ctx context.Context, id string) (*Record, error) {
	val, err := r.client.Get(ctx, r.recordKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound(id)
		}
		return nil, err
	}
	return decodeRecord(val)
}

// Update applies u inside an optimistic transaction on the record key.
func (r *Redis) Update(ctx context.Context, id string, u Update) error {
	key := r.recordKey(id)
	return r.client.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return notFound(id)
			}
			return err
		}
		rec, err := decodeRecord(val)
		if err != nil {
			return err
		}
		apply(rec, u)
		b, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, 0)
			return nil
		})
		return err
	}, key)
}

func (r *Redis) List(ctx context.Context) ([]*Record, error) {
	ids, err := r.client.ZRevRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return make([]*Record, 0), nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.recordKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := decodeRecord([]byte(s))
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *Redis) Close() error { return r.client.Close() }

func decodeRecord(b []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}
