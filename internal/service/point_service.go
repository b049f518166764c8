package service

import (
	"context"
	"fmt"
	"math"

	"pointledger/internal/infrastructure/lock"
	"pointledger/internal/model"
	"pointledger/internal/repository"
	"pointledger/pkg/idgen"

	"go.uber.org/zap"
)

// ============================================================================
// 积分服务
// ============================================================================
//
// 【并发模型】
//
//   查询：不加锁，直接读存储
//   充值/使用/开户：按用户加锁，锁内重新读取余额 -> 校验 -> 写余额 -> 写流水
//
// 同一用户的变更严格串行，不同用户之间互不阻塞。
//
// 【提交顺序】
//
//   1. 写余额（生成严格递增的更新时间）
//   2. 用同一个时间戳追加流水
//   3. 投递积分变动事件（只入队不阻塞，不影响结果）
//   4. 释放锁
//
// 事件在锁内入队，同一用户的事件顺序和提交顺序一致。
//
// 余额和流水不是一个原子操作，第 2 步失败时余额不回滚，
// 返回 ErrHistoryAppend 并记录错误日志，由对账任务发现并修复。
// ============================================================================

// EventPublisher 积分变动事件的投递方，实现不能阻塞调用方
type EventPublisher interface {
	Publish(ctx context.Context, event *model.PointEvent)
}

type Option func(*PointService)

func WithLogger(logger *zap.Logger) Option {
	return func(s *PointService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithEventPublisher(publisher EventPublisher) Option {
	return func(s *PointService) {
		s.publisher = publisher
	}
}

type PointService struct {
	balances  repository.BalanceStore
	histories repository.HistoryLog
	locker    lock.Locker
	publisher EventPublisher
	logger    *zap.Logger
}

func NewPointService(balances repository.BalanceStore, histories repository.HistoryLog, locker lock.Locker, opts ...Option) *PointService {
	s := &PointService{
		balances:  balances,
		histories: histories,
		locker:    locker,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("point_service")
	return s
}

// GetUserPoint 查询用户积分
func (s *PointService) GetUserPoint(ctx context.Context, userID int64) (*model.UserPoint, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	point, ok, err := s.balances.Get(ctx, userID)
	if err != nil {
		return nil, storeFailure("read balance", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: userID=%d", ErrNotFound, userID)
	}
	return &point, nil
}

// GetPointHistories 查询用户积分流水，按时间升序，没有流水时返回空切片
func (s *PointService) GetPointHistories(ctx context.Context, userID int64) ([]model.PointHistory, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	histories, err := s.histories.ListByUserID(ctx, userID)
	if err != nil {
		return nil, storeFailure("list histories", err)
	}
	if histories == nil {
		histories = []model.PointHistory{}
	}
	return histories, nil
}

// Charge 充值积分，用户不存在时从 0 开始
func (s *PointService) Charge(ctx context.Context, userID, amount int64) (*model.UserPoint, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	return s.apply(ctx, userID, amount, model.TransactionTypeCharge)
}

// Use 使用积分，用户不存在返回 ErrNotFound，余额不足返回 ErrInsufficientFunds
func (s *PointService) Use(ctx context.Context, userID, amount int64) (*model.UserPoint, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	// 加锁前先确认用户存在，不存在的用户不需要排队
	if _, err := s.GetUserPoint(ctx, userID); err != nil {
		return nil, err
	}
	return s.apply(ctx, userID, amount, model.TransactionTypeUse)
}

// Open 开户，余额为 0，不产生流水
func (s *PointService) Open(ctx context.Context, userID int64) (*model.UserPoint, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	var opened model.UserPoint
	err := s.withUserLock(ctx, userID, func(ctx context.Context) error {
		_, ok, err := s.balances.Get(ctx, userID)
		if err != nil {
			return storeFailure("read balance", err)
		}
		if ok {
			return fmt.Errorf("%w: userID=%d", ErrAlreadyExists, userID)
		}

		opened, err = s.balances.Put(ctx, userID, 0)
		if err != nil {
			return storeFailure("write balance", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("开户成功", zap.Int64("user_id", userID))
	return &opened, nil
}

func (s *PointService) apply(ctx context.Context, userID, amount int64, txType model.TransactionType) (*model.UserPoint, error) {
	var updated model.UserPoint
	err := s.withUserLock(ctx, userID, func(ctx context.Context) error {
		// 锁内重新读取，锁外读到的余额可能已经过期
		current, ok, err := s.balances.Get(ctx, userID)
		if err != nil {
			return storeFailure("read balance", err)
		}
		if !ok {
			if txType == model.TransactionTypeUse {
				return fmt.Errorf("%w: userID=%d", ErrNotFound, userID)
			}
			current = model.UserPoint{ID: userID}
		}

		point, err := nextPoint(current.Point, amount, txType)
		if err != nil {
			return err
		}

		updated, err = s.balances.Put(ctx, userID, point)
		if err != nil {
			return storeFailure("write balance", err)
		}

		if _, err := s.histories.Append(ctx, userID, txType.Sign()*amount, txType, updated.UpdateMillis); err != nil {
			s.logger.Error("余额已变更但流水写入失败，需要对账",
				zap.Int64("user_id", userID),
				zap.String("type", string(txType)),
				zap.Int64("amount", amount),
				zap.Int64("point", updated.Point),
				zap.Int64("time_millis", updated.UpdateMillis),
				zap.Error(err))
			return fmt.Errorf("%w: userID=%d: %w", ErrHistoryAppend, userID, err)
		}

		s.publish(ctx, updated, amount, txType)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("积分变更成功",
		zap.Int64("user_id", userID),
		zap.String("type", string(txType)),
		zap.Int64("amount", amount),
		zap.Int64("point", updated.Point))

	return &updated, nil
}

// withUserLock 持有用户锁执行 fn
//
// ctx 只约束等待锁的过程，拿到锁之后 fn 使用不可取消的 ctx，保证提交不会被调用方中途打断。
func (s *PointService) withUserLock(ctx context.Context, userID int64, fn func(ctx context.Context) error) error {
	unlock, err := s.locker.Lock(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: userID=%d: %w", ErrLockUnavailable, userID, err)
	}
	defer unlock()

	return fn(context.WithoutCancel(ctx))
}

func (s *PointService) publish(ctx context.Context, updated model.UserPoint, amount int64, txType model.TransactionType) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, &model.PointEvent{
		EventNo:    idgen.GenerateEventNo(),
		UserID:     updated.ID,
		Amount:     txType.Sign() * amount,
		Type:       txType,
		Point:      updated.Point,
		TimeMillis: updated.UpdateMillis,
	})
}

func nextPoint(point, amount int64, txType model.TransactionType) (int64, error) {
	switch txType {
	case model.TransactionTypeCharge:
		if amount > math.MaxInt64-point {
			return 0, fmt.Errorf("%w: 充值后余额溢出: point=%d, amount=%d", ErrInvalidArgument, point, amount)
		}
		return point + amount, nil
	case model.TransactionTypeUse:
		if point < amount {
			return 0, fmt.Errorf("%w: point=%d, amount=%d", ErrInsufficientFunds, point, amount)
		}
		return point - amount, nil
	default:
		return 0, fmt.Errorf("%w: 未知的交易类型 %q", ErrInvalidArgument, txType)
	}
}

func validateUserID(userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("%w: 用户ID必须为正数: %d", ErrInvalidArgument, userID)
	}
	return nil
}

func validateAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: 金额必须为正数: %d", ErrInvalidArgument, amount)
	}
	return nil
}
