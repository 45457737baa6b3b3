package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/kirillkom/flipscout/internal/core/domain"
	"github.com/kirillkom/flipscout/internal/core/ports"
)

var (
	_ ports.CompsCache = (*Redis)(nil)
	_ ports.CompsCache = (*Memory)(nil)
)

// Memory is an in-process comps cache used when Redis is not configured.
type Memory struct {
	mu  sync.Mutex
	m   map[string]entry
	now func() time.Time
}

type entry struct {
	b   []byte
	exp time.Time
}

func NewMemory() *Memory {
	return &Memory{m: make(map[string]entry), now: time.Now}
}

func (c *Memory) Get(_ context.Context, key string) (*domain.CompsResult, bool, error) {
	c.mu.Lock()
	e, ok := c.m[key]
	if ok && !e.exp.IsZero() && c.now().After(e.exp) {
		delete(c.m, key)
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	return decode(e.b)
}

func (c *Memory) Set(_ context.Context, key string, result domain.CompsResult, ttl time.Duration) error {
	b, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "cache: encode comps")
	}
	e := entry{b: b}
	if ttl > 0 {
		e.exp = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.m[key] = e
	c.mu.Unlock()
	return nil
}

// Redis stores comps as JSON strings under a shared key prefix.
type Redis struct {
	client redis.Cmdable
	prefix string
}

func NewRedis(client redis.Cmdable, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, key string) (*domain.CompsResult, bool, error) {
	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, domain.WrapError(domain.ErrTemporary, "redis get", err)
	}
	return decode(b)
}

func (r *Redis) Set(ctx context.Context, key string, result domain.CompsResult, ttl time.Duration) error {
	b, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "cache: encode comps")
	}
	if err := r.client.Set(ctx, r.prefix+key, b, ttl).Err(); err != nil {
		return domain.WrapError(domain.ErrTemporary, "redis set", err)
	}
	return nil
}

// Open returns a Redis-backed cache when addr is set, the memory cache otherwise.
// The returned close func releases the client.
func Open(ctx context.Context, addr, password string, db int, prefix string) (ports.CompsCache, func() error, error) {
	if addr == "" {
		return NewMemory(), func() error { return nil }, nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, eris.Wrapf(err, "cache: ping redis %s", addr)
	}
	return NewRedis(client, prefix), client.Close, nil
}

func decode(b []byte) (*domain.CompsResult, bool, error) {
	var result domain.CompsResult
	if err := json.Unmarshal(b, &result); err != nil {
		return nil, false, eris.Wrap(err, "cache: decode comps")
	}
	return &result, true, nil
}
