package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// 扫描互斥锁。锁值为随机令牌，释放前校验令牌，
// 避免扫描耗时超过TTL后误删其他实例重新获取的锁。

var sweepUnlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// acquireSweepLock 尝试获取扫描锁，成功返回释放用的令牌
func acquireSweepLock(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (string, bool) {
	token := uuid.New().String()
	ok, err := client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		log.Printf("[PROC] 获取扫描锁 %s 失败: %v", key, err)
		return "", false
	}
	return token, ok
}

// releaseSweepLock 令牌匹配时释放锁，不匹配或已过期则不动
func releaseSweepLock(ctx context.Context, client *redis.Client, key, token string) {
	if err := sweepUnlockScript.Run(ctx, client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		log.Printf("[PROC] 释放扫描锁 %s 失败: %v", key, err)
	}
}
