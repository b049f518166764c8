package lock

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrLockFailed  = errors.New("获取用户锁失败")
	ErrLockExpired = errors.New("锁已过期")
)

// Unlock 释放一次加锁，重复调用是安全的
type Unlock func()

// Locker 按用户维度加锁
//
// 同一用户的 Lock 调用互斥，不同用户之间互不影响。
// ctx 只约束等待锁的过程，拿到锁之后由调用方负责调用 Unlock。
type Locker interface {
	Lock(ctx context.Context, userID int64) (Unlock, error)
}

func once(fn func()) Unlock {
	var o sync.Once
	return func() { o.Do(fn) }
}
