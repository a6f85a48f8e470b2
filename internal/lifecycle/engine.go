package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmeshcher/realty-contracts/internal/model"
)

var (
	// ErrInvalidTransition возвращается, если переход не разрешён таблицей переходов.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNoPendingChange возвращается при подтверждении без предварительного запроса.
	ErrNoPendingChange = errors.New("no pending status change to commit")
)

// Store описывает операции хранилища, нужные для смены статуса.
type Store interface {
	UpdateContractStatus(ctx context.Context, id int64, status model.Status, snapshot model.Contract) error
	UpdateContractToNextStatus(ctx context.Context, id int64, status model.Status, snapshot model.Contract) error
	FetchContractDetail(ctx context.Context, id int64) (*model.Contract, error)
	FetchContractHistory(ctx context.Context, id int64) ([]model.HistoryEntry, error)
}

type pendingChange struct {
	status      model.Status
	expectedEnd *time.Time
}

// Engine ведёт смену статусов одного договора. Статус меняется локально до
// ответа хранилища, после чего договор и журнал всегда перечитываются, и
// локальное состояние заменяется прочитанным. Engine не потокобезопасен:
// операции над одним договором выполняются последовательно.
type Engine struct {
	policy   Policy
	store    Store
	contract model.Contract
	history  []model.HistoryEntry
	pending  *pendingChange
	stale    bool
}

// NewEngine создаёт движок для текущего состояния договора.
func NewEngine(policy Policy, store Store, contract model.Contract, history []model.HistoryEntry) *Engine {
	return &Engine{
		policy:   policy,
		store:    store,
		contract: contract.Clone(),
		history:  append([]model.HistoryEntry(nil), history...),
	}
}

// Contract возвращает копию локального состояния договора.
func (e *Engine) Contract() model.Contract {
	return e.contract.Clone()
}

// History возвращает копию журнала статусов.
func (e *Engine) History() []model.HistoryEntry {
	return append([]model.HistoryEntry(nil), e.history...)
}

// Stale сообщает, что последнее перечитывание не удалось и локальное
// состояние может не совпадать с хранилищем.
func (e *Engine) Stale() bool {
	return e.stale
}

// Advance переводит договор на следующий статус основного пути.
func (e *Engine) Advance(ctx context.Context, next model.Status) error {
	from := e.contract.Status
	if !e.policy.CanAdvance(from, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, next)
	}

	e.contract.Status = next
	err := e.store.UpdateContractToNextStatus(ctx, e.contract.ID, next, e.snapshot())
	return e.settle(ctx, err)
}

// RequestConfirmation запоминает намерение перевести договор в CANCELLED или
// TERMINATED. Переход выполняется только вызовом Commit. expectedEnd
// учитывается лишь для отмены.
func (e *Engine) RequestConfirmation(terminal model.Status, expectedEnd *time.Time) error {
	from := e.contract.Status
	if !terminal.Branch() || !e.policy.CanBranch(from, terminal) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, terminal)
	}

	p := &pendingChange{status: terminal}
	if terminal == model.StatusCancelled && expectedEnd != nil {
		end := model.DateOf(*expectedEnd)
		p.expectedEnd = &end
	}
	e.pending = p
	return nil
}

// Pending возвращает статус, ожидающий подтверждения.
func (e *Engine) Pending() (model.Status, bool) {
	if e.pending == nil {
		return "", false
	}
	return e.pending.status, true
}

// Discard отменяет запрошенное подтверждение.
func (e *Engine) Discard() {
	e.pending = nil
}

// Commit выполняет ранее запрошенный переход. Запрос снимается при любом исходе.
func (e *Engine) Commit(ctx context.Context) error {
	p := e.pending
	if p == nil {
		return ErrNoPendingChange
	}
	e.pending = nil

	from := e.contract.Status
	if !e.policy.CanBranch(from, p.status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, p.status)
	}

	e.contract.Status = p.status
	if p.expectedEnd != nil {
		e.contract.ExpectedContractEndDate = p.expectedEnd
	}
	err := e.store.UpdateContractStatus(ctx, e.contract.ID, p.status, e.snapshot())
	return e.settle(ctx, err)
}

// Refresh перечитывает договор и журнал из хранилища и заменяет локальное состояние.
func (e *Engine) Refresh(ctx context.Context) error {
	contract, err := e.store.FetchContractDetail(ctx, e.contract.ID)
	if err != nil {
		e.stale = true
		return fmt.Errorf("refetch contract: %w", err)
	}
	history, err := e.store.FetchContractHistory(ctx, e.contract.ID)
	if err != nil {
		e.stale = true
		return fmt.Errorf("refetch history: %w", err)
	}

	e.contract = contract.Clone()
	e.contract.History = append([]model.HistoryEntry(nil), history...)
	e.history = append([]model.HistoryEntry(nil), history...)
	e.stale = false
	return nil
}

// settle перечитывает состояние после записи независимо от её результата.
// Отмена исходного контекста не мешает перечитыванию.
func (e *Engine) settle(ctx context.Context, persistErr error) error {
	if persistErr != nil {
		persistErr = fmt.Errorf("persist status: %w", persistErr)
	}
	refreshErr := e.Refresh(context.WithoutCancel(ctx))
	return errors.Join(persistErr, refreshErr)
}

func (e *Engine) snapshot() model.Contract {
	s := e.contract.Clone()
	s.History = nil
	return s
}
