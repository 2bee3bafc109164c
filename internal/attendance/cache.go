package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/pichator/pichator/internal/platform/db"
)

const cacheVersionKey = "pichator:dept:version"

// Cache keeps department reports in Redis. Keys embed a global version so a
// single Bump after any write invalidates every report at once.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache instantiates the cache helper. A nil client disables caching but
// still collapses concurrent loads.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes the cache key with the current version.
func (c *Cache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	joined := "pichator:dept:" + strings.Join(parts, ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", joined, ver), nil
}

// FetchDepartment returns the cached report for key or builds it with loader.
// Concurrent misses on the same key share a single load. The load runs
// detached from the caller so one cancelled request cannot fail the others.
func (c *Cache) FetchDepartment(ctx context.Context, key string, loader func(context.Context) (DepartmentReport, error)) (DepartmentReport, error) {
	if loader == nil {
		return DepartmentReport{}, errors.New("attendance: cache loader required")
	}
	if c == nil {
		return loader(ctx)
	}
	if c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			var report DepartmentReport
			if err := json.Unmarshal(payload, &report); err == nil {
				return report, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			return DepartmentReport{}, err
		}
	}

	loadCtx := db.Detach(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		report, err := loader(loadCtx)
		if err != nil {
			return nil, err
		}
		if c.client != nil {
			raw, err := json.Marshal(report)
			if err != nil {
				return nil, err
			}
			if err := c.client.Set(loadCtx, key, raw, c.ttl).Err(); err != nil {
				return nil, err
			}
		}
		return report, nil
	})
	select {
	case <-ctx.Done():
		return DepartmentReport{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return DepartmentReport{}, res.Err
		}
		return res.Val.(DepartmentReport), nil
	}
}

// Bump invalidates every cached report.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}
