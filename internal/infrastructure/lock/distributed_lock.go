package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 多实例部署时，进程内的 KeyedMutex 无法保证同一用户的充值/使用互斥，
// 此时改用 Redis 锁：
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（防止持锁进程崩溃导致死锁）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：Lua 脚本里先比较 value 再删除，保证原子性
//
// 注意：等待方是轮询重试的，不保证先到先得。
// ============================================================================

const unlockScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁的 value（用于验证锁的持有者）
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// NewPointLock 创建积分锁（按用户维度）
func NewPointLock(client *redis.Client, userID int64, token string, expiration time.Duration) *DistributedLock {
	return NewDistributedLock(client, PointLockKey(userID), token, expiration)
}

// PointLockKey 返回用户积分锁的 key
func PointLockKey(userID int64) string {
	return fmt.Sprintf("point:lock:user:%d", userID)
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
//
// 锁已过期或已被别人持有时返回 ErrLockExpired，不会删除别人的锁。
func (l *DistributedLock) Unlock(ctx context.Context) error {
	deleted, err := l.client.Eval(ctx, unlockScript, []string{l.key}, l.value).Int64()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrLockExpired
	}
	return nil
}

// RedisLocker 基于 DistributedLock 的 Locker 实现
type RedisLocker struct {
	client        *redis.Client
	expiration    time.Duration
	retryInterval time.Duration
	maxRetries    int
	logger        *zap.Logger
}

func NewRedisLocker(client *redis.Client, expiration, retryInterval time.Duration, maxRetries int, logger *zap.Logger) *RedisLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{
		client:        client,
		expiration:    expiration,
		retryInterval: retryInterval,
		maxRetries:    maxRetries,
		logger:        logger.Named("redis_locker"),
	}
}

func (l *RedisLocker) Lock(ctx context.Context, userID int64) (Unlock, error) {
	dl := NewPointLock(l.client, userID, uuid.NewString(), l.expiration)
	if err := dl.Lock(ctx, l.retryInterval, l.maxRetries); err != nil {
		return nil, err
	}

	return once(func() {
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
		defer cancel()
		if err := dl.Unlock(unlockCtx); err != nil {
			l.logger.Warn("释放用户锁失败", zap.Int64("user_id", userID), zap.Error(err))
		}
	}), nil
}

var _ Locker = (*RedisLocker)(nil)
