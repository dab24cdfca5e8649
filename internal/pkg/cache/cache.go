package cache

import (
	"context"
	"time"
)

// Cache is the JSON cache surface the usecases depend on. RedisClient and Memory implement it.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	DeletePattern(ctx context.Context, pattern string) error
}

// DashboardPattern matches every cached dashboard. Writers that change products, stock,
// purchases or sales delete it.
const DashboardPattern = "dashboard:*"
