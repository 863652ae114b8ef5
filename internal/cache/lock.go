package cache

import (
	"context"
	"time"

	"CogitoRadio/storage/redis"
)

// 基于 SetNX 的分布式锁：扫描器处理单个提醒时持有，
// 防止相邻两个 tick 并发处理同一提醒造成双触发。
const (
	lockPrefix = "lock"
)

func TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {

	fullkey := redis.Key(lockPrefix, key)

	result, err := redis.Client().SetNX(ctx, fullkey, 1, ttl).Result()

	if err != nil {
		return false, err
	}

	return result, err
}

func Unlock(ctx context.Context, key string) error {
	fullkey := redis.Key(lockPrefix, key)

	return redis.Client().Del(ctx, fullkey).Err()
}

// RedisLocker 提供给需要注入锁的组件（如扫描器）的适配器
type RedisLocker struct{}

func (RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return TryLock(ctx, key, ttl)
}

func (RedisLocker) Unlock(ctx context.Context, key string) error {
	return Unlock(ctx, key)
}
