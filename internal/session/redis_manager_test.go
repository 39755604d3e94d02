package session

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 使用测试用Redis客户端（需要真实Redis实例）
func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // 使用测试专用数据库
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping test")
		return nil
	}

	client.FlushDB(ctx)
	t.Cleanup(func() {
		client.FlushDB(ctx)
		client.Close()
	})
	return client
}

func TestRedisManager_Basic(t *testing.T) {
	client := setupTestRedis(t)
	if client == nil {
		return
	}

	mgr := NewRedisManager(client, "test-server-1", 5*time.Minute, nil)
	require.NotNil(t, mgr)

	now := time.Now()
	assert.True(t, mgr.Open("10.0.0.1", 19132, now))
	assert.False(t, mgr.Open("10.0.0.1", 19132, now))
	assert.True(t, mgr.Touch("10.0.0.1", 19132, now))
	assert.False(t, mgr.Touch("10.0.0.2", 19132, now))

	rec, err := mgr.lookup(context.Background(), "10.0.0.1", 19132)
	require.NoError(t, err)
	assert.Equal(t, "test-server-1", rec.ServerID)
	assert.Equal(t, 19132, rec.Port)
}

func TestRedisManager_SharedCount(t *testing.T) {
	client := setupTestRedis(t)
	if client == nil {
		return
	}

	m1 := NewRedisManager(client, "server-1", 5*time.Minute, nil)
	m2 := NewRedisManager(client, "server-2", 5*time.Minute, nil)
	m1.SetSyncInterval(0)
	m2.SetSyncInterval(0)

	now := time.Now()
	m1.Open("10.0.0.1", 1, now)
	m2.Open("10.0.0.2", 1, now)
	m2.Open("10.0.0.3", 1, now)

	m1.Tick(now)
	assert.Equal(t, 3, m1.Count(), "count covers every instance")
	assert.Equal(t, 1, m1.LocalCount())
}

func TestRedisManager_TickExpires(t *testing.T) {
	client := setupTestRedis(t)
	if client == nil {
		return
	}

	mgr := NewRedisManager(client, "server-1", time.Minute, nil)
	mgr.SetSyncInterval(0)
	now := time.Now()
	mgr.Open("10.0.0.1", 1, now)
	mgr.Tick(now.Add(2 * time.Minute))

	assert.False(t, mgr.Has("10.0.0.1", 1))
	assert.Equal(t, 0, mgr.Count())
	_, err := mgr.lookup(context.Background(), "10.0.0.1", 1)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestRedisManager_Cleanup(t *testing.T) {
	client := setupTestRedis(t)
	if client == nil {
		return
	}

	mgr := NewRedisManager(client, "server-1", time.Minute, nil)
	now := time.Now()
	mgr.Open("10.0.0.1", 1, now)
	mgr.Open("10.0.0.2", 1, now)
	mgr.Close("10.0.0.2", 1)

	require.NoError(t, mgr.Cleanup())
	n, err := client.ZCard(context.Background(), keyActive).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

// stalledRedis 接受连接但从不应答
func stalledRedis(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_, _ = io.Copy(io.Discard, conn)
			}()
		}
	}()
	return ln.Addr().String()
}

func TestRedisManager_SlowRedisBounded(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:                  stalledRedis(t),
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		MaxRetries:            -1,
		ContextTimeoutEnabled: true,
	})
	t.Cleanup(func() { client.Close() })

	mgr := NewRedisManager(client, "server-1", time.Minute, nil)
	mgr.SetOpTimeout(100 * time.Millisecond)
	mgr.SetSyncInterval(0)
	now := time.Now()

	t.Run("建立会话不被阻塞", func(t *testing.T) {
		start := time.Now()
		assert.True(t, mgr.Open("10.0.0.1", 1, now))
		assert.Less(t, time.Since(start), 3*time.Second)
		assert.True(t, mgr.Has("10.0.0.1", 1))
	})
	t.Run("同步不被阻塞", func(t *testing.T) {
		start := time.Now()
		mgr.Tick(now.Add(time.Second))
		assert.Less(t, time.Since(start), 3*time.Second)
		assert.Equal(t, 1, mgr.Count(), "failed sync keeps the local view")
	})
	t.Run("关闭会话不被阻塞", func(t *testing.T) {
		start := time.Now()
		mgr.Close("10.0.0.1", 1)
		assert.Less(t, time.Since(start), 3*time.Second)
		assert.False(t, mgr.Has("10.0.0.1", 1))
	})
}
