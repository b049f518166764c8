package repository

import (
	"context"

	"pointledger/internal/model"

	"gorm.io/gorm"
)

// PointHistoryRepository MySQL 版流水表
type PointHistoryRepository struct {
	db *gorm.DB
}

func NewPointHistoryRepository(db *gorm.DB) *PointHistoryRepository {
	return &PointHistoryRepository{db: db}
}

func (r *PointHistoryRepository) Append(ctx context.Context, userID int64, amount int64, txType model.TransactionType, timeMillis int64) (model.PointHistory, error) {
	row := model.PointHistory{
		UserID:     userID,
		Amount:     amount,
		Type:       txType,
		TimeMillis: timeMillis,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.PointHistory{}, err
	}
	return row, nil
}

func (r *PointHistoryRepository) ListByUserID(ctx context.Context, userID int64) ([]model.PointHistory, error) {
	histories := make([]model.PointHistory, 0)
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("time_millis ASC").
		Order("id ASC").
		Find(&histories).Error
	if err != nil {
		return nil, err
	}
	return histories, nil
}

var _ HistoryLog = (*PointHistoryRepository)(nil)
