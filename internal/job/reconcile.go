package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pointledger/internal/repository"

	"go.uber.org/zap"
)

// Discrepancy 余额与流水合计不一致的用户
type Discrepancy struct {
	UserID     int64 `json:"user_id"`
	Point      int64 `json:"point"`
	HistorySum int64 `json:"history_sum"`
}

// ReconcileJob 定期核对每个用户的余额是否等于流水金额之和
//
// 流水写入失败时余额已经变更，这类用户会在这里被发现。只报告，不修复。
// 核对不加用户锁，正在变更中的用户可能被误报，下一轮会恢复。
type ReconcileJob struct {
	balances  repository.BalanceStore
	histories repository.HistoryLog
	interval  time.Duration
	logger    *zap.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func NewReconcileJob(balances repository.BalanceStore, histories repository.HistoryLog, interval time.Duration, logger *zap.Logger) *ReconcileJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReconcileJob{
		balances:  balances,
		histories: histories,
		interval:  interval,
		logger:    logger.Named("reconcile_job"),
		stopCh:    make(chan struct{}),
	}
}

func (j *ReconcileJob) Start(ctx context.Context) {
	j.logger.Info("对账任务启动", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("收到停止信号，任务退出")
			return
		case <-j.stopCh:
			j.logger.Info("任务停止")
			return
		case <-ticker.C:
			if _, err := j.Reconcile(ctx); err != nil {
				j.logger.Error("对账失败", zap.Error(err))
			}
		}
	}
}

func (j *ReconcileJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
}

// Reconcile 执行一轮对账，返回不一致的用户
func (j *ReconcileJob) Reconcile(ctx context.Context) ([]Discrepancy, error) {
	userIDs, err := j.balances.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询用户列表失败: %w", err)
	}

	var discrepancies []Discrepancy
	for _, userID := range userIDs {
		d, ok, err := j.check(ctx, userID)
		if err != nil {
			j.logger.Warn("核对用户失败", zap.Int64("user_id", userID), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		j.logger.Error("余额与流水不一致",
			zap.Int64("user_id", d.UserID),
			zap.Int64("point", d.Point),
			zap.Int64("history_sum", d.HistorySum))
		discrepancies = append(discrepancies, d)
	}

	if len(discrepancies) > 0 {
		j.logger.Warn("本轮对账发现不一致", zap.Int("users", len(userIDs)), zap.Int("discrepancies", len(discrepancies)))
	}
	return discrepancies, nil
}

func (j *ReconcileJob) check(ctx context.Context, userID int64) (Discrepancy, bool, error) {
	point, ok, err := j.balances.Get(ctx, userID)
	if err != nil || !ok {
		return Discrepancy{}, false, err
	}

	histories, err := j.histories.ListByUserID(ctx, userID)
	if err != nil {
		return Discrepancy{}, false, err
	}

	var sum int64
	for _, h := range histories {
		sum += h.Amount
	}
	if sum == point.Point {
		return Discrepancy{}, false, nil
	}
	return Discrepancy{UserID: userID, Point: point.Point, HistorySum: sum}, true, nil
}
