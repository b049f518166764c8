package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument   = errors.New("参数不合法")
	ErrNotFound          = errors.New("用户积分不存在")
	ErrInsufficientFunds = errors.New("积分不足")
	ErrAlreadyExists     = errors.New("用户积分已存在")
	ErrStoreFailure      = errors.New("存储访问失败")
	ErrLockUnavailable   = errors.New("用户锁不可用")

	// ErrHistoryAppend 余额已写入但流水写入失败，余额比流水超前，需要对账修复
	ErrHistoryAppend = fmt.Errorf("%w: 余额已写入但流水写入失败", ErrStoreFailure)
)

func storeFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreFailure, op, err)
}
