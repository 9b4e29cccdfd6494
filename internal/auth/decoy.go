// AngelaMos | 2026
// decoy.go

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DecoyTTL bounds how long failures against an unknown email are counted.
const DecoyTTL = 24 * time.Hour

// FailureCounter counts failed logins for emails that have no account, so
// the guard can answer them with the same counts and lockout a real
// account would produce.
type FailureCounter interface {
	Increment(ctx context.Context, email string) (int, error)
}

type RedisFailureCounter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisFailureCounter(client *redis.Client, ttl time.Duration) *RedisFailureCounter {
	if ttl <= 0 {
		ttl = DecoyTTL
	}
	return &RedisFailureCounter{client: client, ttl: ttl}
}

func (c *RedisFailureCounter) Increment(ctx context.Context, email string) (int, error) {
	key := decoyKey(email)

	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("count unknown login: %w", err)
	}
	if n == 1 {
		if err := c.client.Expire(ctx, key, c.ttl).Err(); err != nil {
			return 0, fmt.Errorf("expire unknown login counter: %w", err)
		}
	}

	return int(n), nil
}

// decoyKey hashes the email so guessed addresses are not stored in clear.
func decoyKey(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return "roadwatch:login:unknown:" + hex.EncodeToString(sum[:])
}

type decoyEntry struct {
	count   int
	expires time.Time
}

type MemoryFailureCounter struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]decoyEntry
	now     func() time.Time
}

func NewMemoryFailureCounter(ttl time.Duration) *MemoryFailureCounter {
	if ttl <= 0 {
		ttl = DecoyTTL
	}
	return &MemoryFailureCounter{
		ttl:     ttl,
		entries: make(map[string]decoyEntry),
		now:     time.Now,
	}
}

func (c *MemoryFailureCounter) Increment(_ context.Context, email string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	key := decoyKey(email)

	e, ok := c.entries[key]
	if !ok || now.After(e.expires) {
		e = decoyEntry{expires: now.Add(c.ttl)}
	}
	e.count++
	c.entries[key] = e
	return e.count, nil
}
