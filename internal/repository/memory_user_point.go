package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"pointledger/internal/model"
)

// UserPointTable 内存版余额表
//
// 行以值的方式整体替换，读操作拿到的是完整快照，不会看到写了一半的数据。
type UserPointTable struct {
	mu      sync.RWMutex
	rows    map[int64]model.UserPoint
	latency Latency
	now     func() time.Time
}

func NewUserPointTable(latency Latency) *UserPointTable {
	return &UserPointTable{
		rows:    make(map[int64]model.UserPoint),
		latency: latency,
		now:     time.Now,
	}
}

func (t *UserPointTable) Get(ctx context.Context, userID int64) (model.UserPoint, bool, error) {
	if err := t.latency.wait(ctx); err != nil {
		return model.UserPoint{}, false, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	row, ok := t.rows[userID]
	return row, ok, nil
}

func (t *UserPointTable) Put(ctx context.Context, userID int64, point int64) (model.UserPoint, error) {
	if err := t.latency.wait(ctx); err != nil {
		return model.UserPoint{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	row := model.UserPoint{
		ID:           userID,
		Point:        point,
		UpdateMillis: nextMillis(t.now(), t.rows[userID].UpdateMillis),
	}
	t.rows[userID] = row
	return row, nil
}

func (t *UserPointTable) ListUserIDs(ctx context.Context) ([]int64, error) {
	if err := t.latency.wait(ctx); err != nil {
		return nil, err
	}

	t.mu.RLock()
	ids := make([]int64, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	t.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

var _ BalanceStore = (*UserPointTable)(nil)
