// AngelaMos | 2026
// checkpoint.go

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	JobExport = "export"
	JobImport = "import"

	checkpointKeyPrefix = "roadwatch:sync:checkpoint:"
)

// Checkpointer remembers the last id a batch finished so a cancelled run
// can pick up after it. Load returns "" when nothing is stored.
type Checkpointer interface {
	Load(ctx context.Context, job string) (string, error)
	Save(ctx context.Context, job, lastID string) error
	Clear(ctx context.Context, job string) error
}

type RedisCheckpoints struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCheckpoints(client *redis.Client, ttl time.Duration) *RedisCheckpoints {
	return &RedisCheckpoints{client: client, ttl: ttl}
}

func (c *RedisCheckpoints) Load(ctx context.Context, job string) (string, error) {
	id, err := c.client.Get(ctx, checkpointKeyPrefix+job).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load checkpoint %s: %w", job, err)
	}
	return id, nil
}

func (c *RedisCheckpoints) Save(ctx context.Context, job, lastID string) error {
	if err := c.client.Set(ctx, checkpointKeyPrefix+job, lastID, c.ttl).Err(); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", job, err)
	}
	return nil
}

func (c *RedisCheckpoints) Clear(ctx context.Context, job string) error {
	if err := c.client.Del(ctx, checkpointKeyPrefix+job).Err(); err != nil {
		return fmt.Errorf("clear checkpoint %s: %w", job, err)
	}
	return nil
}

type MemoryCheckpoints struct {
	mu   sync.Mutex
	last map[string]string
}

func NewMemoryCheckpoints() *MemoryCheckpoints {
	return &MemoryCheckpoints{last: make(map[string]string)}
}

func (c *MemoryCheckpoints) Load(_ context.Context, job string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last[job], nil
}

func (c *MemoryCheckpoints) Save(_ context.Context, job, lastID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last[job] = lastID
	return nil
}

func (c *MemoryCheckpoints) Clear(_ context.Context, job string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.last, job)
	return nil
}

var (
	_ Checkpointer = (*RedisCheckpoints)(nil)
	_ Checkpointer = (*MemoryCheckpoints)(nil)
)
