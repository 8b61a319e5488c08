package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second
)

// KV is the subset of go-redis commands the mirror uses.
type KV interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisMirror stores the latest State as JSON under a single key.
type RedisMirror struct {
	client KV
	key    string
	ttl    time.Duration
}

// NewRedisMirror returns a redis-backed mirror. A zero ttl keeps the key
// forever.
func NewRedisMirror(client KV, key string, ttl time.Duration) *RedisMirror {
	return &RedisMirror{client: client, key: key, ttl: ttl}
}

// NewRedisClient returns a go-redis client and validates the connection
// with PING.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis: addr is empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return client, nil
}

// Key returns the redis key holding the state.
func (m *RedisMirror) Key() string { return m.key }

// Save writes st.
func (m *RedisMirror) Save(ctx context.Context, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return m.client.Set(ctx, m.key, data, m.ttl).Err()
}

// Load reads the mirrored state. ok is false when nothing is stored.
func (m *RedisMirror) Load(ctx context.Context) (State, bool, error) {
	raw, err := m.client.Get(ctx, m.key).Result()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}
	var st State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return State{}, false, fmt.Errorf("decode state: %w", err)
	}
	return st, true, nil
}
