package service

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func setupLockRedis(t *testing.T) *redis.Client {
	t.Helper()
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	client := redis.NewClient(&redis.Options{Addr: host + ":" + port})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// TestSweepLockTokenRelease 只有持有令牌的一方能释放锁
func TestSweepLockTokenRelease(t *testing.T) {
	client := setupLockRedis(t)
	ctx := context.Background()
	key := fmt.Sprintf("proc:test:lock:%d", time.Now().UnixNano())
	t.Cleanup(func() { client.Del(context.Background(), key) })

	token, ok := acquireSweepLock(ctx, client, key, time.Minute)
	if !ok {
		t.Fatal("expected lock acquired")
	}

	// 锁被占用时第二次获取失败
	if _, ok := acquireSweepLock(ctx, client, key, time.Minute); ok {
		t.Fatal("expected second acquire to fail while held")
	}

	// 别人的令牌释放不掉，模拟TTL过期后被另一实例接管的场景
	releaseSweepLock(ctx, client, key, "stale-token")
	if client.Exists(ctx, key).Val() != 1 {
		t.Fatal("lock deleted by non-owner token")
	}

	releaseSweepLock(ctx, client, key, token)
	if client.Exists(ctx, key).Val() != 0 {
		t.Fatal("lock not released by owner token")
	}

	if _, ok := acquireSweepLock(ctx, client, key, time.Minute); !ok {
		t.Fatal("expected reacquire after release")
	}
}
