package repository

import (
	"context"
	"errors"
	"time"

	"pointledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserPointRepository MySQL 版余额表
//
// Put 先读出上一次的更新时间再 upsert，两步之间不加行锁：
// 同一用户的写入由 PointService 的用户锁串行化。
type UserPointRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewUserPointRepository(db *gorm.DB) *UserPointRepository {
	return &UserPointRepository{db: db, now: time.Now}
}

func (r *UserPointRepository) Get(ctx context.Context, userID int64) (model.UserPoint, bool, error) {
	var row model.UserPoint
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.UserPoint{}, false, nil
		}
		return model.UserPoint{}, false, err
	}
	return row, true, nil
}

func (r *UserPointRepository) Put(ctx context.Context, userID int64, point int64) (model.UserPoint, error) {
	current, _, err := r.Get(ctx, userID)
	if err != nil {
		return model.UserPoint{}, err
	}

	row := model.UserPoint{
		ID:           userID,
		Point:        point,
		UpdateMillis: nextMillis(r.now(), current.UpdateMillis),
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"point", "update_millis"}),
		}).
		Create(&row).Error
	if err != nil {
		return model.UserPoint{}, err
	}
	return row, nil
}

func (r *UserPointRepository) ListUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&model.UserPoint{}).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

var _ BalanceStore = (*UserPointRepository)(nil)
