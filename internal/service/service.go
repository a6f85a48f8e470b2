// Package service реализует операции над договорами: создание, правку,
// вложения, смену статуса и удаление.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/realty-contracts/internal/attachment"
	"github.com/mmeshcher/realty-contracts/internal/directory"
	"github.com/mmeshcher/realty-contracts/internal/history"
	"github.com/mmeshcher/realty-contracts/internal/lifecycle"
	"github.com/mmeshcher/realty-contracts/internal/model"
	"github.com/mmeshcher/realty-contracts/internal/validation"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateContract(ctx context.Context, c model.Contract) (int64, error)
	FetchContractDetail(ctx context.Context, id int64) (*model.Contract, error)
	FetchContractHistory(ctx context.Context, id int64) ([]model.HistoryEntry, error)
	UpdateContract(ctx context.Context, id int64, c model.Contract) error
	UpdateContractStatus(ctx context.Context, id int64, status model.Status, snapshot model.Contract) error
	UpdateContractToNextStatus(ctx context.Context, id int64, status model.Status, snapshot model.Contract) error
	DeleteContract(ctx context.Context, id int64) error
	ListPropertyRefs(ctx context.Context, afterID int64, limit int) ([]model.PropertyRef, error)
	UpdatePropertyAddress(ctx context.Context, propertyID int64, address string) error
}

// Directory описывает справочник объектов и клиентов.
type Directory interface {
	GetProperty(ctx context.Context, id int64) (*directory.Property, error)
	GetCustomer(ctx context.Context, id int64) (*directory.Customer, error)
}

// FileStorage описывает хранилище файлов договоров.
type FileStorage interface {
	Upload(ctx context.Context, u model.Upload) (model.Document, error)
}

// Dependencies собирает зависимости сервиса. Directory и Storage необязательны.
type Dependencies struct {
	Repository Repository
	Directory  Directory
	Storage    FileStorage
	Notifier   Notifier
	Policy     lifecycle.Policy
	Logger     *zap.Logger
}

// Snapshot содержит состояние договора и журнала статусов, прочитанное из хранилища.
type Snapshot struct {
	Contract model.Contract
	History  []model.HistoryEntry
}

// Service содержит бизнес-логику работы с договорами.
type Service struct {
	repo     Repository
	dir      Directory
	files    FileStorage
	notifier Notifier
	policy   lifecycle.Policy
	history  *history.Log
	logger   *zap.Logger
}

// syncPageSize задаёт размер страницы при синхронизации адресов.
const syncPageSize = 100

// NewService создаёт сервис. Пустая политика заменяется политикой по умолчанию.
func NewService(deps Dependencies) *Service {
	s := &Service{
		repo:     deps.Repository,
		dir:      deps.Directory,
		files:    deps.Storage,
		notifier: deps.Notifier,
		policy:   deps.Policy,
		logger:   deps.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.notifier == nil {
		s.notifier = NopNotifier{}
	}
	if len(s.policy.CancelFrom) == 0 && len(s.policy.TerminateFrom) == 0 {
		s.policy = lifecycle.DefaultPolicy()
	}
	if s.repo != nil {
		s.history = history.NewLog(s.repo)
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Policy возвращает действующую политику переходов.
func (s *Service) Policy() lifecycle.Policy {
	return s.policy
}

// Create проверяет и сохраняет новый договор. Без статуса договор
// создаётся в статусе IN_PROGRESS.
func (s *Service) Create(ctx context.Context, d model.Draft) (int64, error) {
	if d.Status() == "" {
		d = d.WithStatus(model.DefaultStatus)
	}

	d, err := s.prepare(ctx, d)
	if err != nil {
		s.notify(ctx, OpCreate, 0, err)
		return 0, err
	}

	id, err := s.repo.CreateContract(ctx, d.Contract())
	err = mapError(err)
	s.notify(ctx, OpCreate, id, err)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Get возвращает договор вместе с журналом статусов.
func (s *Service) Get(ctx context.Context, id int64) (*Snapshot, error) {
	return s.load(ctx, id)
}

// History возвращает журнал статусов договора.
func (s *Service) History(ctx context.Context, id int64) ([]model.HistoryEntry, error) {
	entries, err := s.history.Load(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	return entries, nil
}

// UpdateBasicInfo сохраняет основные поля договора. Статус и вложения
// здесь не меняются: для них есть отдельные операции.
func (s *Service) UpdateBasicInfo(ctx context.Context, id int64, d model.Draft) (*Snapshot, error) {
	current, err := s.repo.FetchContractDetail(ctx, id)
	if err != nil {
		err = mapError(err)
		s.notify(ctx, OpUpdate, id, err)
		return nil, err
	}

	// Статус в форме обязателен, но сохраняется текущий.
	d = d.WithStatus(current.Status).WithDocuments(current.Documents)

	d, err = s.prepare(ctx, d)
	if err != nil {
		s.notify(ctx, OpUpdate, id, err)
		return nil, err
	}

	c := d.Contract()
	c.ID = id
	if err := s.repo.UpdateContract(ctx, id, c); err != nil {
		err = mapError(err)
		s.notify(ctx, OpUpdate, id, err)
		return nil, err
	}

	snap, err := s.load(ctx, id)
	s.notify(ctx, OpUpdate, id, err)
	return snap, err
}

// UpdateDocuments заменяет вложения договора. В keep передаются оставленные
// файлы, в files новые. Размер новых файлов проверяется до любых обращений к сети.
// После попытки записи договор всегда перечитывается.
func (s *Service) UpdateDocuments(ctx context.Context, id int64, keep []model.Document, files []model.Upload) (*Snapshot, error) {
	m := attachment.NewManager(keep)
	for _, f := range files {
		if err := m.StageFile(f); err != nil {
			s.notify(ctx, OpDocuments, id, err)
			return nil, err
		}
	}
	keep, files = m.ToSubmission()

	current, err := s.repo.FetchContractDetail(ctx, id)
	if err != nil {
		err = mapError(err)
		s.notify(ctx, OpDocuments, id, err)
		return nil, err
	}

	if violations := validation.Validate(model.DraftFromContract(*current)); len(violations) > 0 {
		err := &ValidationError{Violations: violations}
		s.notify(ctx, OpDocuments, id, err)
		return nil, err
	}

	if violations := unknownDocuments(current.Documents, keep); len(violations) > 0 {
		err := &ValidationError{Violations: violations}
		s.notify(ctx, OpDocuments, id, err)
		return nil, err
	}

	writeErr := s.writeDocuments(ctx, id, *current, keep, files)
	snap, err := s.settle(ctx, id, writeErr)
	s.notify(ctx, OpDocuments, id, err)
	return snap, err
}

func (s *Service) writeDocuments(ctx context.Context, id int64, current model.Contract, keep []model.Document, files []model.Upload) (err error) {
	if len(files) > 0 && s.files == nil {
		return errors.New("file storage is not configured")
	}

	docs := append([]model.Document(nil), keep...)
	var uploaded []string
	defer func() {
		if err != nil && len(uploaded) > 0 {
			s.logger.Warn("uploaded documents left without contract",
				zap.Int64("contract_id", id),
				zap.Strings("urls", uploaded),
				zap.Error(err),
			)
		}
	}()

	for _, f := range files {
		doc, err := s.files.Upload(ctx, f)
		if err != nil {
			return fmt.Errorf("upload document: %w", err)
		}
		docs = append(docs, doc)
		uploaded = append(uploaded, doc.FileURL)
	}

	c := current.Clone()
	c.Documents = docs
	c.History = nil
	return s.repo.UpdateContract(ctx, id, c)
}

// unknownDocuments возвращает нарушения для оставляемых файлов, которых нет
// среди сохранённых вложений договора.
func unknownDocuments(stored, keep []model.Document) []model.Violation {
	known := make(map[model.Document]struct{}, len(stored))
	for _, d := range stored {
		known[d] = struct{}{}
	}

	var violations []model.Violation
	for _, d := range keep {
		if _, ok := known[d]; ok {
			continue
		}
		violations = append(violations, model.Violation{
			Code:    model.ViolationDocumentUnknown,
			Field:   "existingDocuments",
			Message: fmt.Sprintf("기존 첨부 파일이 아닙니다: %s", d.FileName),
		})
	}
	return violations
}

// AdvanceStatus переводит договор на следующий статус основного пути.
// Возвращаемый снимок всегда прочитан из хранилища после записи; если
// перечитать не удалось, снимок равен nil.
func (s *Service) AdvanceStatus(ctx context.Context, id int64, next model.Status) (*Snapshot, error) {
	engine, err := s.engine(ctx, id)
	if err != nil {
		s.notify(ctx, OpAdvance, id, err)
		return nil, err
	}

	err = engine.Advance(ctx, next)
	snap := engineSnapshot(engine)
	err = mapError(err)
	s.notify(ctx, OpAdvance, id, err)
	return snap, err
}

// ConfirmStatus переводит договор в CANCELLED или TERMINATED. Без явного
// подтверждения ничего не отправляется. expectedEnd учитывается только при отмене.
func (s *Service) ConfirmStatus(ctx context.Context, id int64, terminal model.Status, expectedEnd *time.Time, confirmed bool) (*Snapshot, error) {
	if !confirmed {
		return nil, ErrConfirmationRequired
	}
	if !terminal.Branch() {
		return nil, fmt.Errorf("%w: %s is not a terminal branch", ErrInvalidTransition, terminal)
	}

	engine, err := s.engine(ctx, id)
	if err != nil {
		s.notify(ctx, OpConfirm, id, err)
		return nil, err
	}

	if err := engine.RequestConfirmation(terminal, expectedEnd); err != nil {
		snap := engineSnapshot(engine)
		s.notify(ctx, OpConfirm, id, err)
		return snap, err
	}

	err = engine.Commit(ctx)
	snap := engineSnapshot(engine)
	err = mapError(err)
	s.notify(ctx, OpConfirm, id, err)
	return snap, err
}

// Delete удаляет договор после явного подтверждения.
func (s *Service) Delete(ctx context.Context, id int64, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	err := mapError(s.repo.DeleteContract(ctx, id))
	s.notify(ctx, OpDelete, id, err)
	return err
}

// StartAddressSync запускает фоновое обновление адресов объектов из справочника.
func (s *Service) StartAddressSync(ctx context.Context, interval time.Duration) {
	if s.dir == nil || interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.syncAddresses(ctx)
			}
		}
	}()
}

func (s *Service) syncAddresses(ctx context.Context) {
	var afterID int64
	for {
		refs, err := s.repo.ListPropertyRefs(ctx, afterID, syncPageSize)
		if err != nil {
			s.logger.Warn("list property refs", zap.Error(err))
			return
		}

		for _, ref := range refs {
			afterID = ref.PropertyID
			if !s.syncAddress(ctx, ref) {
				return
			}
		}

		if len(refs) < syncPageSize {
			return
		}
	}
}

// syncAddress возвращает false, если синхронизацию нужно прервать.
func (s *Service) syncAddress(ctx context.Context, ref model.PropertyRef) bool {
	p, err := s.dir.GetProperty(ctx, ref.PropertyID)

	var rl *directory.RateLimitError
	switch {
	case err == nil:
	case errors.As(err, &rl):
		if rl.RetryAfter > 0 {
			timer := time.NewTimer(rl.RetryAfter)
			select {
			case <-ctx.Done():
				timer.Stop()
				return false
			case <-timer.C:
			}
		}
		return true
	case errors.Is(err, directory.ErrNotFound):
		return true
	default:
		if ctx.Err() != nil {
			return false
		}
		s.logger.Debug("get property", zap.Int64("property_id", ref.PropertyID), zap.Error(err))
		return true
	}

	if p.Address == "" || p.Address == ref.Address {
		return true
	}
	if err := s.repo.UpdatePropertyAddress(ctx, ref.PropertyID, p.Address); err != nil {
		s.logger.Warn("update property address",
			zap.Int64("property_id", ref.PropertyID),
			zap.Error(err),
		)
	}
	return true
}

// prepare выполняет локальную проверку и дополняет черновик данными справочника.
func (s *Service) prepare(ctx context.Context, d model.Draft) (model.Draft, error) {
	if violations := validation.Validate(d); len(violations) > 0 {
		return d, &ValidationError{Violations: violations}
	}
	return s.resolve(ctx, d)
}

// resolve подставляет адрес объекта и имена сторон из справочника.
// Недоступность справочника не мешает сохранению.
func (s *Service) resolve(ctx context.Context, d model.Draft) (model.Draft, error) {
	if s.dir == nil {
		return d, nil
	}

	var violations []model.Violation

	p, err := s.dir.GetProperty(ctx, d.PropertyID())
	switch {
	case err == nil:
		d = d.WithProperty(d.PropertyID(), p.Address)
	case errors.Is(err, directory.ErrNotFound):
		violations = append(violations, model.Violation{
			Code:    model.ViolationPropertyUnknown,
			Field:   "propertyUid",
			Message: "존재하지 않는 매물입니다.",
		})
	default:
		s.logger.Warn("resolve property", zap.Int64("property_id", d.PropertyID()), zap.Error(err))
	}

	lessors, lv := s.resolveParties(ctx, d.Lessors(), "lessorOrSellerUids")
	lessees, bv := s.resolveParties(ctx, d.Lessees(), "lesseeOrBuyerUids")
	violations = append(violations, lv...)
	violations = append(violations, bv...)

	if len(violations) > 0 {
		return d, &ValidationError{Violations: violations}
	}
	return d.WithParties(lessors, lessees), nil
}

func (s *Service) resolveParties(ctx context.Context, parties []model.Party, field string) ([]model.Party, []model.Violation) {
	var violations []model.Violation
	for i, p := range parties {
		c, err := s.dir.GetCustomer(ctx, p.CustomerID)
		switch {
		case err == nil:
			parties[i].Name = c.Name
		case errors.Is(err, directory.ErrNotFound):
			violations = append(violations, model.Violation{
				Code:    model.ViolationPartyUnknown,
				Field:   field,
				Message: fmt.Sprintf("존재하지 않는 고객입니다: %d", p.CustomerID),
			})
		default:
			s.logger.Warn("resolve customer", zap.Int64("customer_id", p.CustomerID), zap.Error(err))
		}
	}
	return parties, violations
}

// engine читает договор и журнал и создаёт движок переходов.
// Договор с нарушениями правил не переводится в другой статус.
func (s *Service) engine(ctx context.Context, id int64) (*lifecycle.Engine, error) {
	snap, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if violations := validation.Validate(model.DraftFromContract(snap.Contract)); len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}
	return lifecycle.NewEngine(s.policy, s.repo, snap.Contract, snap.History), nil
}

func (s *Service) load(ctx context.Context, id int64) (*Snapshot, error) {
	c, err := s.repo.FetchContractDetail(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	entries, err := s.history.Load(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}

	contract := c.Clone()
	contract.History = entries
	return &Snapshot{Contract: contract, History: entries}, nil
}

// settle перечитывает договор после попытки записи. Ошибка записи и ошибка
// перечитывания объединяются; при неудачном перечитывании снимок равен nil.
func (s *Service) settle(ctx context.Context, id int64, writeErr error) (*Snapshot, error) {
	if writeErr != nil {
		writeErr = mapError(writeErr)
	}
	snap, err := s.load(context.WithoutCancel(ctx), id)
	if err != nil {
		return nil, errors.Join(writeErr, err)
	}
	return snap, writeErr
}

func engineSnapshot(e *lifecycle.Engine) *Snapshot {
	if e.Stale() {
		return nil
	}
	c := e.Contract()
	h := e.History()
	c.History = h
	return &Snapshot{Contract: c, History: h}
}

func (s *Service) notify(ctx context.Context, op Operation, id int64, err error) {
	n := Notification{Operation: op, ContractID: id, Err: err}
	if err == nil {
		n.Message = op.SuccessMessage()
	} else {
		n.Message = UserMessage(err)
	}
	s.notifier.Notify(ctx, n)
}
