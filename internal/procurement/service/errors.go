package service

import (
	"errors"
	"fmt"
)

// 错误分类：校验错误立即返回不重试；状态冲突要求调用方重新拉取当前状态；
// 外部依赖错误在收货/通知边界吸收，以次要状态字段上报，不作为主操作失败。

// ValidationError 输入不合法或逻辑不一致
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// NewValidationError 创建校验错误
func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidationError 判断是否校验错误
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StateConflictError 当前状态与期望不符，记录未被改动
type StateConflictError struct {
	Entity   string
	ID       string
	Expected string
	Actual   string
}

func (e *StateConflictError) Error() string {
	if e.Actual != "" {
		return fmt.Sprintf("%s %s 状态冲突: 期望 %s，当前 %s", e.Entity, e.ID, e.Expected, e.Actual)
	}
	return fmt.Sprintf("%s %s 状态冲突: 期望 %s", e.Entity, e.ID, e.Expected)
}

// NewStateConflict 创建状态冲突错误
func NewStateConflict(entity, id, expected, actual string) error {
	return &StateConflictError{Entity: entity, ID: id, Expected: expected, Actual: actual}
}

// IsStateConflict 判断是否状态冲突
func IsStateConflict(err error) bool {
	var sc *StateConflictError
	if errors.As(err, &sc) {
		return true
	}
	return errors.Is(err, ErrDuplicateReceipt) || errors.Is(err, ErrDuplicateQuote)
}

var (
	// ErrDuplicateReceipt 同一PO重复提交收货单
	ErrDuplicateReceipt = errors.New("该采购订单已存在收货单")
	// ErrDuplicateQuote 同一(供应商, 询价单, 行项)重复建报价行
	ErrDuplicateQuote = errors.New("该供应商在此行项上已有报价记录")
)
