// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/realty-contracts/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrContractNotFound возвращается, если договор с указанным идентификатором не найден.
var (
	ErrContractNotFound = errors.New("contract not found")
	// ErrDuplicateContract возвращается, если такой же договор уже сохранён.
	ErrDuplicateContract = errors.New("contract already exists")
	// ErrPropertyUnderContract возвращается, если по объекту уже есть действующий договор.
	ErrPropertyUnderContract = errors.New("property is already under an active contract")
	// ErrPartyOverlap возвращается, если клиент указан на обеих сторонах сделки.
	ErrPartyOverlap = errors.New("customer is assigned to both sides")
	// ErrInvalidContract возвращается при нарушении ограничений таблицы договоров.
	ErrInvalidContract = errors.New("contract violates storage constraints")
	// ErrInvalidTransition возвращается, если новый статус не следует за текущим.
	ErrInvalidTransition = errors.New("status is not the successor of the stored status")
)

const (
	sideLessor = "LESSOR_OR_SELLER"
	sideLessee = "LESSEE_OR_BUYER"
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{100 * time.Millisecond, 300 * time.Millisecond, 500 * time.Millisecond}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(delays) {
			break
		}

		timer := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// classify переводит ошибки ограничений PostgreSQL в ошибки репозитория.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		switch pgErr.ConstraintName {
		case "uq_contracts_active_property":
			return fmt.Errorf("%w: %w", ErrPropertyUnderContract, err)
		case "uq_contracts_duplicate":
			return fmt.Errorf("%w: %w", ErrDuplicateContract, err)
		case "contract_parties_pkey":
			return fmt.Errorf("%w: %w", ErrPartyOverlap, err)
		}
	case pgerrcode.CheckViolation:
		return fmt.Errorf("%w: %s", ErrInvalidContract, pgErr.ConstraintName)
	}
	return err
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateContract сохраняет новый договор вместе со сторонами и документами.
func (r *PostgresRepository) CreateContract(ctx context.Context, c model.Contract) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO contracts (
			category, status, contract_date, contract_start_date, contract_end_date,
			expected_contract_end_date, property_id, property_address, deposit, monthly_rent, price
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		categoryParam(c.Category), string(c.Status), c.ContractDate, c.ContractStartDate, c.ContractEndDate,
		c.ExpectedContractEndDate, c.PropertyID, c.PropertyAddress, c.Deposit, c.MonthlyRent, c.Price,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert contract: %w", classify(err))
	}

	if err := replaceChildren(ctx, tx, id, c); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return id, nil
}

// FetchContractDetail возвращает договор со сторонами и документами. Журнал статусов не заполняется.
func (r *PostgresRepository) FetchContractDetail(ctx context.Context, id int64) (*model.Contract, error) {
	var (
		c        model.Contract
		category *string
		status   string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, category, status, contract_date, contract_start_date, contract_end_date,
			expected_contract_end_date, property_id, property_address, deposit, monthly_rent, price
		 FROM contracts
		 WHERE id = $1`,
		id,
	).Scan(&c.ID, &category, &status, &c.ContractDate, &c.ContractStartDate, &c.ContractEndDate,
		&c.ExpectedContractEndDate, &c.PropertyID, &c.PropertyAddress, &c.Deposit, &c.MonthlyRent, &c.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("select contract: %w", err)
	}

	c.Status = model.Status(status)
	if category != nil {
		cat := model.Category(*category)
		c.Category = &cat
	}

	if err := r.loadParties(ctx, &c); err != nil {
		return nil, err
	}
	if err := r.loadDocuments(ctx, &c); err != nil {
		return nil, err
	}

	return &c, nil
}

func (r *PostgresRepository) loadParties(ctx context.Context, c *model.Contract) error {
	rows, err := r.pool.Query(ctx,
		`SELECT side, customer_id, name
		 FROM contract_parties
		 WHERE contract_id = $1
		 ORDER BY position`,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("select parties: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			side string
			p    model.Party
		)
		if err := rows.Scan(&side, &p.CustomerID, &p.Name); err != nil {
			return fmt.Errorf("scan party: %w", err)
		}
		if side == sideLessor {
			c.LessorOrSellerParties = append(c.LessorOrSellerParties, p)
		} else {
			c.LesseeOrBuyerParties = append(c.LesseeOrBuyerParties, p)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) loadDocuments(ctx context.Context, c *model.Contract) error {
	rows, err := r.pool.Query(ctx,
		`SELECT file_name, file_url
		 FROM contract_documents
		 WHERE contract_id = $1
		 ORDER BY position`,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("select documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.FileName, &d.FileURL); err != nil {
			return fmt.Errorf("scan document: %w", err)
		}
		c.Documents = append(c.Documents, d)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}
	return nil
}

// FetchContractHistory возвращает журнал смены статусов в порядке записи.
func (r *PostgresRepository) FetchContractHistory(ctx context.Context, id int64) ([]model.HistoryEntry, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM contracts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check contract: %w", err)
	}
	if !exists {
		return nil, ErrContractNotFound
	}

	rows, err := r.pool.Query(ctx,
		`SELECT prev_status, current_status, changed_at
		 FROM contract_history
		 WHERE contract_id = $1
		 ORDER BY changed_at, id`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	defer rows.Close()

	var res []model.HistoryEntry
	for rows.Next() {
		var prev, current string
		var changedAt time.Time
		if err := rows.Scan(&prev, &current, &changedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		res = append(res, model.HistoryEntry{
			PrevStatus:    model.Status(prev),
			CurrentStatus: model.Status(current),
			ChangedAt:     changedAt,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// UpdateContract перезаписывает поля, стороны и документы договора.
// Статус и журнал статусов не меняются: для них есть отдельные методы.
func (r *PostgresRepository) UpdateContract(ctx context.Context, id int64, c model.Contract) error {
	return r.withRetry(ctx, func() error {
		return r.write(ctx, id, c, nil)
	})
}

// UpdateContractStatus сохраняет снимок договора с новым статусом и добавляет запись в журнал.
// Договор в конечном статусе не меняется.
func (r *PostgresRepository) UpdateContractStatus(ctx context.Context, id int64, status model.Status, snapshot model.Contract) error {
	t := &transition{next: status, guard: notTerminal(status)}
	return r.withRetry(ctx, func() error {
		return r.write(ctx, id, snapshot, t)
	})
}

// UpdateContractToNextStatus работает как UpdateContractStatus, но дополнительно
// проверяет, что новый статус следует за сохранённым.
func (r *PostgresRepository) UpdateContractToNextStatus(ctx context.Context, id int64, status model.Status, snapshot model.Contract) error {
	t := &transition{next: status, guard: successorOf(status)}
	return r.withRetry(ctx, func() error {
		return r.write(ctx, id, snapshot, t)
	})
}

// transition описывает смену статуса внутри записи договора.
type transition struct {
	next  model.Status
	guard func(prev model.Status) error
}

func notTerminal(next model.Status) func(prev model.Status) error {
	return func(prev model.Status) error {
		if prev.Terminal() {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev, next)
		}
		return nil
	}
}

func successorOf(next model.Status) func(prev model.Status) error {
	return func(prev model.Status) error {
		if succ, ok := prev.Successor(); !ok || succ != next {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev, next)
		}
		return nil
	}
}

const updateContractSQL = `UPDATE contracts SET
	category = $2,
	contract_date = $3,
	contract_start_date = $4,
	contract_end_date = $5,
	expected_contract_end_date = $6,
	property_id = $7,
	property_address = $8,
	deposit = $9,
	monthly_rent = $10,
	price = $11,
	updated_at = NOW()
 WHERE id = $1`

// write блокирует строку договора и перезаписывает её в одной транзакции.
// Статус меняется и попадает в журнал только при заданном t.
func (r *PostgresRepository) write(ctx context.Context, id int64, c model.Contract, t *transition) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var prev string
	err = tx.QueryRow(ctx, `SELECT status FROM contracts WHERE id = $1 FOR UPDATE`, id).Scan(&prev)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrContractNotFound
		}
		return fmt.Errorf("lock contract: %w", err)
	}

	if t != nil {
		if err := t.guard(model.Status(prev)); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, updateContractSQL,
		id, categoryParam(c.Category), c.ContractDate, c.ContractStartDate, c.ContractEndDate,
		c.ExpectedContractEndDate, c.PropertyID, c.PropertyAddress, c.Deposit, c.MonthlyRent, c.Price,
	)
	if err != nil {
		return fmt.Errorf("update contract: %w", classify(err))
	}

	if err := replaceChildren(ctx, tx, id, c); err != nil {
		return err
	}

	if t != nil && prev != string(t.next) {
		_, err = tx.Exec(ctx, `UPDATE contracts SET status = $2 WHERE id = $1`, id, string(t.next))
		if err != nil {
			return fmt.Errorf("update status: %w", classify(err))
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO contract_history (contract_id, prev_status, current_status) VALUES ($1, $2, $3)`,
			id, prev, string(t.next),
		)
		if err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func replaceChildren(ctx context.Context, tx pgx.Tx, id int64, c model.Contract) error {
	if _, err := tx.Exec(ctx, `DELETE FROM contract_parties WHERE contract_id = $1`, id); err != nil {
		return fmt.Errorf("delete parties: %w", err)
	}

	position := 0
	insertParty := func(side string, p model.Party) error {
		position++
		_, err := tx.Exec(ctx,
			`INSERT INTO contract_parties (contract_id, customer_id, side, name, position) VALUES ($1, $2, $3, $4, $5)`,
			id, p.CustomerID, side, p.Name, position,
		)
		if err != nil {
			return fmt.Errorf("insert party: %w", classify(err))
		}
		return nil
	}
	for _, p := range c.LessorOrSellerParties {
		if err := insertParty(sideLessor, p); err != nil {
			return err
		}
	}
	for _, p := range c.LesseeOrBuyerParties {
		if err := insertParty(sideLessee, p); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM contract_documents WHERE contract_id = $1`, id); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	for i, d := range c.Documents {
		_, err := tx.Exec(ctx,
			`INSERT INTO contract_documents (contract_id, position, file_name, file_url) VALUES ($1, $2, $3, $4)`,
			id, i, d.FileName, d.FileURL,
		)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
	}
	return nil
}

// DeleteContract удаляет договор вместе со сторонами, документами и журналом.
func (r *PostgresRepository) DeleteContract(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM contracts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete contract: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrContractNotFound
	}
	return nil
}

// ListPropertyRefs возвращает объекты, на которые ссылаются договоры, начиная после afterID.
func (r *PostgresRepository) ListPropertyRefs(ctx context.Context, afterID int64, limit int) ([]model.PropertyRef, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT property_id, MIN(property_address)
		 FROM contracts
		 WHERE property_id > $1
		 GROUP BY property_id
		 ORDER BY property_id
		 LIMIT $2`,
		afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select property refs: %w", err)
	}
	defer rows.Close()

	var res []model.PropertyRef
	for rows.Next() {
		var ref model.PropertyRef
		if err := rows.Scan(&ref.PropertyID, &ref.Address); err != nil {
			return nil, fmt.Errorf("scan property ref: %w", err)
		}
		res = append(res, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// UpdatePropertyAddress обновляет копию адреса во всех договорах по объекту.
func (r *PostgresRepository) UpdatePropertyAddress(ctx context.Context, propertyID int64, address string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE contracts SET property_address = $2 WHERE property_id = $1 AND property_address <> $2`,
		propertyID, address,
	)
	if err != nil {
		return fmt.Errorf("update property address: %w", err)
	}
	return nil
}

func categoryParam(c *model.Category) *string {
	if c == nil {
		return nil
	}
	s := string(*c)
	return &s
}
