package redis_limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// acquireScript 当前值未达上限时加一并续期，否则返回上限+1表示失败
var acquireScript = redis.NewScript(
	`local current = redis.call('GET', KEYS[1])
	if current == false then
		current = 0
	else
		current = tonumber(current)
	end

	if current >= tonumber(ARGV[1]) then
		return current + 1
	end

	local newCount = redis.call('INCR', KEYS[1])
	redis.call('EXPIRE', KEYS[1], tonumber(ARGV[2]))
	return newCount`,
)

// releaseScript 减一，归零时删除 key
var releaseScript = redis.NewScript(
	`local count = redis.call('DECR', KEYS[1])
	if tonumber(count) <= 0 then
		redis.call('DEL', KEYS[1])
		return 0
	else
		redis.call('EXPIRE', KEYS[1], tonumber(ARGV[1]))
		return count
	end`,
)

// RedisLimiter 基于Redis的并发限制器，多实例部署时共享槽位
type RedisLimiter struct {
	client        *redis.Client
	maxConcurrent int
	keyPrefix     string
	ttl           time.Duration
	logger        *logrus.Logger
}

// NewRedisLimiter 创建基于Redis的并发限制器
func NewRedisLimiter(client *redis.Client, maxConcurrent int, keyPrefix string, ttl time.Duration, logger *logrus.Logger) *RedisLimiter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisLimiter{
		client:        client,
		maxConcurrent: maxConcurrent,
		keyPrefix:     keyPrefix,
		ttl:           ttl,
		logger:        logger,
	}
}

// Acquire 获取并发槽位
func (rl *RedisLimiter) Acquire(ctx context.Context, key string) error {
	redisKey := rl.keyPrefix + key

	result, err := acquireScript.Run(ctx, rl.client, []string{redisKey}, rl.maxConcurrent, int(rl.ttl.Seconds())).Result()
	if err != nil {
		return fmt.Errorf("执行Lua脚本失败: %w", err)
	}

	newCount, ok := result.(int64)
	if !ok {
		return fmt.Errorf("Lua脚本返回值类型错误: %T", result)
	}

	entry := rl.logger.WithFields(logrus.Fields{
		"model":          key,
		"current":        newCount - 1,
		"max_concurrent": rl.maxConcurrent,
	})

	// 检查是否超过了限制
	if int(newCount) > rl.maxConcurrent {
		entry.Warn("并发槽位已满")
		return fmt.Errorf("并发限制已达到上限: %d", rl.maxConcurrent)
	}

	entry.Debug("成功获取并发槽位")
	return nil
}

// Release 释放并发槽位
func (rl *RedisLimiter) Release(ctx context.Context, key string) {
	redisKey := rl.keyPrefix + key

	result, err := releaseScript.Run(ctx, rl.client, []string{redisKey}, int(rl.ttl.Seconds())).Result()
	if err != nil {
		rl.logger.WithError(err).WithField("model", key).Error("释放并发槽位失败")
		return
	}

	finalCount, _ := result.(int64)
	rl.logger.WithFields(logrus.Fields{
		"model":     key,
		"remaining": finalCount,
	}).Debug("释放并发槽位")
}

// GetCurrent 获取当前并发数
func (rl *RedisLimiter) GetCurrent(ctx context.Context, key string) (int, error) {
	redisKey := rl.keyPrefix + key
	current, err := rl.client.Get(ctx, redisKey).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("获取当前并发数失败: %w", err)
	}
	return current, nil
}

// GetMaxConcurrent 获取最大并发数
func (rl *RedisLimiter) GetMaxConcurrent() int {
	return rl.maxConcurrent
}
