package model

// PointEvent 积分变动事件，在一次充值/使用提交后投递到消息队列
type PointEvent struct {
	EventNo    string          `json:"event_no"`
	UserID     int64           `json:"user_id"`
	Amount     int64           `json:"amount"`
	Type       TransactionType `json:"type"`
	Point      int64           `json:"point"` // 变动后的余额
	TimeMillis int64           `json:"time_millis"`
}
