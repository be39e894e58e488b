package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	ledger "municipal-portal/internal/ledger/domain"
)

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store reads the ledger from the portal's postgres schema.
type Store struct {
	db *sql.DB
}

// NewStore constructs a store over a pooled connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) reader() (*reader, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("ledger store: nil db")
	}
	return &reader{q: s.db}, nil
}

// AccountExists reports whether accounts holds accountID.
func (s *Store) AccountExists(ctx context.Context, accountID string) (bool, error) {
	r, err := s.reader()
	if err != nil {
		return false, err
	}
	return r.AccountExists(ctx, accountID)
}

// FetchCharges returns bills for the query ordered by created_at, id.
func (s *Store) FetchCharges(ctx context.Context, q ledger.ChargeQuery) ([]ledger.Charge, error) {
	r, err := s.reader()
	if err != nil {
		return nil, err
	}
	return r.FetchCharges(ctx, q)
}

// FetchSettlements returns payments for the query ordered by created_at, id.
func (s *Store) FetchSettlements(ctx context.Context, q ledger.SettlementQuery) ([]ledger.Settlement, error) {
	r, err := s.reader()
	if err != nil {
		return nil, err
	}
	return r.FetchSettlements(ctx, q)
}

// ListAccounts returns every account number in ascending order.
func (s *Store) ListAccounts(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("ledger store: nil db")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT account_number
FROM accounts
ORDER BY account_number`)
	if err != nil {
		return nil, unavailable("list accounts", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, unavailable("list accounts", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list accounts", err)
	}
	return out, nil
}

// ReadSnapshot runs fn inside a read-only repeatable-read transaction so every
// query it issues sees the same committed state.
func (s *Store) ReadSnapshot(ctx context.Context, fn func(ledger.Reader) error) error {
	if s == nil || s.db == nil {
		return errors.New("ledger store: nil db")
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return unavailable("begin snapshot", err)
	}
	if err := fn(&reader{q: tx, serial: &sync.Mutex{}}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit snapshot", err)
	}
	return nil
}

// reader issues ledger queries. A transaction owns a single connection, so
// queries on it are serialized through serial.
type reader struct {
	q      queryer
	serial *sync.Mutex
}

func (r *reader) lock() func() {
	if r.serial == nil {
		return func() {}
	}
	r.serial.Lock()
	return r.serial.Unlock
}

func (r *reader) AccountExists(ctx context.Context, accountID string) (bool, error) {
	defer r.lock()()
	var exists bool
	err := r.q.QueryRowContext(ctx, `
SELECT EXISTS (SELECT 1 FROM accounts WHERE account_number = $1)`, accountID).Scan(&exists)
	if err != nil {
		return false, unavailable("account exists", err)
	}
	return exists, nil
}

func (r *reader) FetchCharges(ctx context.Context, q ledger.ChargeQuery) ([]ledger.Charge, error) {
	where, args := factFilter(q.AccountID, q.Service, q.Window)
	query := `
SELECT id, account_number, service, amount, billing_period_start, billing_period_end,
	due_date, status, paid_at, created_at
FROM bills
WHERE ` + where + `
ORDER BY created_at, id`

	defer r.lock()()
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("fetch charges", err)
	}
	defer rows.Close()
	out := make([]ledger.Charge, 0)
	for rows.Next() {
		c, err := scanCharge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("fetch charges", err)
	}
	return out, nil
}

func (r *reader) FetchSettlements(ctx context.Context, q ledger.SettlementQuery) ([]ledger.Settlement, error) {
	where, args := factFilter(q.AccountID, q.Service, q.Window)
	statuses := q.StatusesOrDefault()
	placeholders := make([]string, len(statuses))
	for i, st := range statuses {
		args = append(args, string(st))
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := `
SELECT id, account_number, service, amount, payment_method, payment_reference,
	status, bill_id, created_at
FROM payments
WHERE ` + where + ` AND status IN (` + strings.Join(placeholders, ", ") + `)
ORDER BY created_at, id`

	defer r.lock()()
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("fetch settlements", err)
	}
	defer rows.Close()
	out := make([]ledger.Settlement, 0)
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("fetch settlements", err)
	}
	return out, nil
}

// factFilter builds the shared account/service/window predicate.
func factFilter(accountID string, service ledger.Service, window ledger.Window) (string, []any) {
	conds := []string{"account_number = $1"}
	args := []any{accountID}
	if !service.IsAll() {
		args = append(args, string(service))
		conds = append(conds, fmt.Sprintf("service = $%d", len(args)))
	}
	if !window.From.IsZero() {
		args = append(args, window.From)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	args = append(args, window.Until)
	conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	return strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCharge(row rowScanner) (ledger.Charge, error) {
	var (
		c           ledger.Charge
		service     sql.NullString
		amount      decimal.Decimal
		status      string
		periodStart sql.NullTime
		periodEnd   sql.NullTime
		dueDate     sql.NullTime
		paidAt      sql.NullTime
	)
	err := row.Scan(
		&c.ID,
		&c.AccountID,
		&service,
		&amount,
		&periodStart,
		&periodEnd,
		&dueDate,
		&status,
		&paidAt,
		&c.CreatedAt,
	)
	if err != nil {
		return ledger.Charge{}, corrupt("scan charge", err)
	}
	if c.Amount, err = ledger.MoneyFromDecimal(amount); err != nil {
		return ledger.Charge{}, corrupt(fmt.Sprintf("bill %d", c.ID), err)
	}
	if c.Status, err = ledger.ParseChargeStatus(status); err != nil {
		return ledger.Charge{}, corrupt(fmt.Sprintf("bill %d", c.ID), err)
	}
	c.Service = ledger.ServiceFromTag(service.String)
	if periodStart.Valid {
		c.BillingPeriodStart = periodStart.Time.UTC()
	}
	if periodEnd.Valid {
		c.BillingPeriodEnd = periodEnd.Time.UTC()
	}
	if dueDate.Valid {
		c.DueDate = dueDate.Time.UTC()
	}
	if paidAt.Valid {
		paid := paidAt.Time.UTC()
		c.PaidAt = &paid
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

func scanSettlement(row rowScanner) (ledger.Settlement, error) {
	var (
		s         ledger.Settlement
		service   sql.NullString
		amount    decimal.Decimal
		method    sql.NullString
		reference sql.NullString
		status    string
		billID    sql.NullInt64
	)
	err := row.Scan(
		&s.ID,
		&s.AccountID,
		&service,
		&amount,
		&method,
		&reference,
		&status,
		&billID,
		&s.CreatedAt,
	)
	if err != nil {
		return ledger.Settlement{}, corrupt("scan settlement", err)
	}
	if s.Amount, err = ledger.MoneyFromDecimal(amount); err != nil {
		return ledger.Settlement{}, corrupt(fmt.Sprintf("payment %d", s.ID), err)
	}
	if s.Status, err = ledger.ParseSettlementStatus(status); err != nil {
		return ledger.Settlement{}, corrupt(fmt.Sprintf("payment %d", s.ID), err)
	}
	s.Service = ledger.ServiceFromTag(service.String)
	s.Method = method.String
	s.Reference = reference.String
	if billID.Valid {
		id := billID.Int64
		s.RelatedChargeID = &id
	}
	s.CreatedAt = s.CreatedAt.UTC()
	return s, nil
}

// unavailable wraps driver failures. Cancellation passes through unchanged.
func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ledger.ErrStoreUnavailable, op, err)
}

// corrupt wraps a row that was read but cannot be decoded into a fact.
func corrupt(op string, err error) error {
	return fmt.Errorf("%w: ledger store: %s: %w", ledger.ErrInconsistentLedger, op, err)
}

var _ ledger.Store = (*Store)(nil)
