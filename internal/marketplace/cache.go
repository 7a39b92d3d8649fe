package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	openTasksKey    = "marketplace:tasks:open"
	openTasksGenKey = "marketplace:tasks:open:gen"
)

// TaskCache stores the open task list between writes. Every invalidation
// bumps a generation; a list read under an older generation is never stored.
type TaskCache interface {
	OpenTasks(ctx context.Context) ([]Task, bool, error)
	Generation(ctx context.Context) (int64, error)
	StoreOpenTasks(ctx context.Context, gen int64, tasks []Task) error
	InvalidateOpenTasks(ctx context.Context) error
}

// storeIfCurrent sets the list only while the generation still matches.
var storeIfCurrent = redis.NewScript(`
local gen = redis.call("GET", KEYS[1]) or "0"
if gen ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

type redisTaskCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisTaskCache(rdb *redis.Client, ttl time.Duration) TaskCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &redisTaskCache{rdb: rdb, ttl: ttl}
}

func (c *redisTaskCache) OpenTasks(ctx context.Context) ([]Task, bool, error) {
	raw, err := c.rdb.Get(ctx, openTasksKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var tasks []Task
	if err := json.Unmarshal(raw, &tasks); err != nil {
		// a corrupt entry is a miss
		return nil, false, nil
	}
	return tasks, true, nil
}

func (c *redisTaskCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, openTasksGenKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *redisTaskCache) StoreOpenTasks(ctx context.Context, gen int64, tasks []Task) error {
	if tasks == nil {
		tasks = []Task{}
	}
	raw, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	keys := []string{openTasksGenKey, openTasksKey}
	return storeIfCurrent.Run(ctx, c.rdb, keys, strconv.FormatInt(gen, 10), raw, c.ttl.Milliseconds()).Err()
}

func (c *redisTaskCache) InvalidateOpenTasks(ctx context.Context) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, openTasksGenKey)
		pipe.Del(ctx, openTasksKey)
		return nil
	})
	return err
}
