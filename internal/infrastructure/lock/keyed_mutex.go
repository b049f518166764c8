package lock

import (
	"context"
	"fmt"
	"sync"
)

// KeyedMutex 进程内的用户锁，按到达顺序（FIFO）交接
//
// 每个用户一条等待队列，在第一次争用时创建，最后一个持有者释放且无人等待时回收。
// 释放锁时直接把所有权交给队首的等待者，后来者无法插队。
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[int64]*waitQueue
}

type waitQueue struct {
	waiters []chan struct{}
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[int64]*waitQueue)}
}

func (m *KeyedMutex) Lock(ctx context.Context, userID int64) (Unlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	q, held := m.entries[userID]
	if !held {
		m.entries[userID] = &waitQueue{}
		m.mu.Unlock()
		return m.unlocker(userID), nil
	}
	ready := make(chan struct{})
	q.waiters = append(q.waiters, ready)
	m.mu.Unlock()

	select {
	case <-ready:
		return m.unlocker(userID), nil
	case <-ctx.Done():
	}

	m.mu.Lock()
	for i, w := range q.waiters {
		if w == ready {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			m.mu.Unlock()
			return nil, ctx.Err()
		}
	}
	m.mu.Unlock()

	// 取消的同时锁已经交到手上，继续交给下一位
	m.release(userID)
	return nil, ctx.Err()
}

func (m *KeyedMutex) unlocker(userID int64) Unlock {
	return once(func() { m.release(userID) })
}

func (m *KeyedMutex) release(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.entries[userID]
	if !ok {
		panic(fmt.Sprintf("lock: unlock of unlocked user %d", userID))
	}
	if len(q.waiters) == 0 {
		delete(m.entries, userID)
		return
	}
	next := q.waiters[0]
	q.waiters[0] = nil
	q.waiters = q.waiters[1:]
	close(next)
}

// Len 返回当前被持有的用户锁数量
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *KeyedMutex) waiting(userID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.entries[userID]; ok {
		return len(q.waiters)
	}
	return 0
}

var _ Locker = (*KeyedMutex)(nil)
