package repository

import (
	"context"
	"math/rand"
	"time"

	"pointledger/internal/model"
)

// BalanceStore 用户积分余额存储
//
// Get 通过第二个返回值明确区分"不存在"和"存在但余额为 0"。
// Put 写入的 UpdateMillis 对同一用户严格递增。
type BalanceStore interface {
	Get(ctx context.Context, userID int64) (model.UserPoint, bool, error)
	Put(ctx context.Context, userID int64, point int64) (model.UserPoint, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// HistoryLog 积分流水存储，只追加
type HistoryLog interface {
	Append(ctx context.Context, userID int64, amount int64, txType model.TransactionType, timeMillis int64) (model.PointHistory, error)
	ListByUserID(ctx context.Context, userID int64) ([]model.PointHistory, error)
}

// nextMillis 返回新的更新时间：取当前毫秒和 prev+1 中较大者
func nextMillis(now time.Time, prev int64) int64 {
	ms := now.UnixMilli()
	if ms <= prev {
		return prev + 1
	}
	return ms
}

// Latency 模拟外部存储的访问延迟，每次调用随机等待 [Min, Max]
type Latency struct {
	Min time.Duration
	Max time.Duration
}

func (l Latency) wait(ctx context.Context) error {
	d := l.Min
	if l.Max > l.Min {
		d += time.Duration(rand.Int63n(int64(l.Max - l.Min + 1)))
	}
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
