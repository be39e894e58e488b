package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	ledger "municipal-portal/internal/ledger/domain"
)

// Account is a ledger account holder.
type Account struct {
	Number     string
	HolderName string
}

// Store is an in-memory ledger store.
type Store struct {
	mu          sync.RWMutex
	accounts    map[string]Account
	charges     []ledger.Charge
	settlements []ledger.Settlement
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{accounts: make(map[string]Account)}
}

// AddAccount registers an account (overwrites existing).
func (s *Store) AddAccount(account Account) error {
	if account.Number == "" {
		return ledger.ErrEmptyAccountID
	}
	s.mu.Lock()
	s.accounts[account.Number] = account
	s.mu.Unlock()
	return nil
}

// AddCharge appends a charge.
func (s *Store) AddCharge(charge ledger.Charge) error {
	if charge.AccountID == "" {
		return ledger.ErrEmptyAccountID
	}
	if charge.CreatedAt.IsZero() {
		return errors.New("memory store: charge created_at required")
	}
	s.mu.Lock()
	s.charges = append(s.charges, charge)
	s.mu.Unlock()
	return nil
}

// AddSettlement appends a settlement.
func (s *Store) AddSettlement(settlement ledger.Settlement) error {
	if settlement.AccountID == "" {
		return ledger.ErrEmptyAccountID
	}
	if settlement.CreatedAt.IsZero() {
		return errors.New("memory store: settlement created_at required")
	}
	s.mu.Lock()
	s.settlements = append(s.settlements, settlement)
	s.mu.Unlock()
	return nil
}

// AccountExists reports whether the account is registered.
func (s *Store) AccountExists(ctx context.Context, accountID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	_, ok := s.accounts[accountID]
	s.mu.RUnlock()
	return ok, nil
}

// FetchCharges returns matching charges ordered by created_at, id.
func (s *Store) FetchCharges(ctx context.Context, q ledger.ChargeQuery) ([]ledger.Charge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]ledger.Charge, 0)
	for _, c := range s.charges {
		if c.AccountID == q.AccountID && q.Service.Matches(c.Service) && q.Window.Includes(c.CreatedAt) {
			out = append(out, cloneCharge(c))
		}
	}
	s.mu.RUnlock()
	ledger.SortCharges(out)
	return out, nil
}

// FetchSettlements returns matching settlements ordered by created_at, id.
func (s *Store) FetchSettlements(ctx context.Context, q ledger.SettlementQuery) ([]ledger.Settlement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]ledger.Settlement, 0)
	for _, st := range s.settlements {
		if st.AccountID == q.AccountID && q.Service.Matches(st.Service) && q.Window.Includes(st.CreatedAt) && q.AcceptsStatus(st.Status) {
			out = append(out, cloneSettlement(st))
		}
	}
	s.mu.RUnlock()
	ledger.SortSettlements(out)
	return out, nil
}

// ListAccounts returns account numbers in ascending order.
func (s *Store) ListAccounts(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out, nil
}

// ReadSnapshot runs fn against a frozen copy of the store, so writes made
// while fn runs are invisible to it.
func (s *Store) ReadSnapshot(ctx context.Context, fn func(ledger.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(s.clone())
}

func (s *Store) clone() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := &Store{
		accounts:    make(map[string]Account, len(s.accounts)),
		charges:     make([]ledger.Charge, len(s.charges)),
		settlements: make([]ledger.Settlement, len(s.settlements)),
	}
	for k, v := range s.accounts {
		out.accounts[k] = v
	}
	copy(out.charges, s.charges)
	copy(out.settlements, s.settlements)
	return out
}

func cloneCharge(c ledger.Charge) ledger.Charge {
	if c.PaidAt != nil {
		paid := *c.PaidAt
		c.PaidAt = &paid
	}
	return c
}

func cloneSettlement(s ledger.Settlement) ledger.Settlement {
	if s.RelatedChargeID != nil {
		id := *s.RelatedChargeID
		s.RelatedChargeID = &id
	}
	return s
}

var _ ledger.Store = (*Store)(nil)
