// Package history предоставляет доступ только на чтение к журналу смены статусов договора.
package history

import (
	"context"

	"github.com/mmeshcher/realty-contracts/internal/model"
)

// Source описывает хранилище, из которого читается журнал.
type Source interface {
	FetchContractHistory(ctx context.Context, id int64) ([]model.HistoryEntry, error)
}

// Log читает журнал статусов. Записи добавляет только хранилище при смене статуса.
type Log struct {
	source Source
}

// NewLog создаёт журнал поверх источника.
func NewLog(source Source) *Log {
	return &Log{source: source}
}

// Load возвращает записи журнала в том порядке, в каком их отдало хранилище.
func (l *Log) Load(ctx context.Context, contractID int64) ([]model.HistoryEntry, error) {
	entries, err := l.source.FetchContractHistory(ctx, contractID)
	if err != nil {
		return nil, err
	}
	return append([]model.HistoryEntry(nil), entries...), nil
}

// Latest возвращает последнюю запись журнала.
func Latest(entries []model.HistoryEntry) (model.HistoryEntry, bool) {
	if len(entries) == 0 {
		return model.HistoryEntry{}, false
	}
	return entries[len(entries)-1], true
}
