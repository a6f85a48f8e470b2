package service

import (
	"context"

	"go.uber.org/zap"
)

// Operation обозначает пользовательскую операцию над договором.
type Operation string

// Операции, о результате которых сообщается через Notifier.
const (
	OpCreate    Operation = "create"
	OpUpdate    Operation = "update"
	OpDocuments Operation = "documents"
	OpAdvance   Operation = "advance_status"
	OpConfirm   Operation = "confirm_status"
	OpDelete    Operation = "delete"
)

// SuccessMessage возвращает сообщение об успешном выполнении операции.
func (o Operation) SuccessMessage() string {
	switch o {
	case OpCreate:
		return "계약이 등록되었습니다."
	case OpUpdate:
		return "계약 정보가 수정되었습니다."
	case OpDocuments:
		return "첨부 서류가 저장되었습니다."
	case OpAdvance, OpConfirm:
		return "계약 상태가 변경되었습니다."
	case OpDelete:
		return "계약이 삭제되었습니다."
	}
	return "처리되었습니다."
}

// Notification описывает результат одной операции.
type Notification struct {
	Operation  Operation
	ContractID int64
	Message    string
	Err        error
}

// Success сообщает, завершилась ли операция без ошибки.
func (n Notification) Success() bool {
	return n.Err == nil
}

// Notifier получает уведомления об успехе и неудаче каждой операции.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NopNotifier игнорирует уведомления.
type NopNotifier struct{}

// Notify ничего не делает.
func (NopNotifier) Notify(context.Context, Notification) {}

// LogNotifier пишет уведомления в журнал.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier создаёт уведомитель поверх логгера.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) {
	fields := []zap.Field{
		zap.String("operation", string(n.Operation)),
		zap.Int64("contract_id", n.ContractID),
		zap.String("message", n.Message),
	}
	if n.Success() {
		l.logger.Info("contract operation succeeded", fields...)
		return
	}
	l.logger.Warn("contract operation failed", append(fields, zap.Error(n.Err))...)
}
