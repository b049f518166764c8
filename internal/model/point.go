package model

// ============================================================================
// 交易类型常量
// ============================================================================

// TransactionType 积分流水类型
type TransactionType string

const (
	TransactionTypeCharge TransactionType = "CHARGE" // 充值
	TransactionTypeUse    TransactionType = "USE"    // 使用（扣减）
)

// Sign 返回该类型在流水金额上的符号：充值为正，使用为负
func (t TransactionType) Sign() int64 {
	if t == TransactionTypeUse {
		return -1
	}
	return 1
}

// ============================================================================
// 积分余额与流水实体
// ============================================================================

// UserPoint 用户积分余额表
// Point 永远不为负数，且只能通过 PointService 修改
type UserPoint struct {
	ID           int64 `gorm:"column:user_id;primaryKey;autoIncrement:false" json:"id"`
	Point        int64 `gorm:"not null" json:"point"`
	UpdateMillis int64 `gorm:"not null" json:"updateMillis"` // 最后一次变动的毫秒时间戳，对同一用户严格递增
}

func (UserPoint) TableName() string {
	return "user_point"
}

// PointHistory 积分流水表
//
// 只追加，不修改，不删除。排序规则为 TimeMillis 升序，相同时按 ID（插入顺序）升序。
type PointHistory struct {
	ID         int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64           `gorm:"index:idx_user_time;not null" json:"userId"`
	Amount     int64           `gorm:"not null" json:"amount"` // 正数为充值，负数为使用
	Type       TransactionType `gorm:"type:varchar(16);not null" json:"type"`
	TimeMillis int64           `gorm:"index:idx_user_time;not null" json:"timeMillis"`
}

func (PointHistory) TableName() string {
	return "point_history"
}
