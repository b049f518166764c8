package repository

import (
	"context"
	"sort"
	"sync"

	"pointledger/internal/model"
)

// PointHistoryTable 内存版流水表，ID 按插入顺序自增
type PointHistoryTable struct {
	mu      sync.RWMutex
	rows    []model.PointHistory
	cursor  int64
	latency Latency
}

func NewPointHistoryTable(latency Latency) *PointHistoryTable {
	return &PointHistoryTable{latency: latency}
}

func (t *PointHistoryTable) Append(ctx context.Context, userID int64, amount int64, txType model.TransactionType, timeMillis int64) (model.PointHistory, error) {
	if err := t.latency.wait(ctx); err != nil {
		return model.PointHistory{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursor++
	row := model.PointHistory{
		ID:         t.cursor,
		UserID:     userID,
		Amount:     amount,
		Type:       txType,
		TimeMillis: timeMillis,
	}
	t.rows = append(t.rows, row)
	return row, nil
}

func (t *PointHistoryTable) ListByUserID(ctx context.Context, userID int64) ([]model.PointHistory, error) {
	if err := t.latency.wait(ctx); err != nil {
		return nil, err
	}

	t.mu.RLock()
	histories := make([]model.PointHistory, 0)
	for _, row := range t.rows {
		if row.UserID == userID {
			histories = append(histories, row)
		}
	}
	t.mu.RUnlock()

	sort.Slice(histories, func(i, j int) bool {
		if histories[i].TimeMillis != histories[j].TimeMillis {
			return histories[i].TimeMillis < histories[j].TimeMillis
		}
		return histories[i].ID < histories[j].ID
	})
	return histories, nil
}

var _ HistoryLog = (*PointHistoryTable)(nil)
