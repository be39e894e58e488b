package ledger

import "context"

// ChargeQuery selects charges of one account. An AllServices scope returns
// every service.
type ChargeQuery struct {
	AccountID string
	Service   Service
	Window    Window
}

// SettlementQuery selects settlements of one account. An empty Statuses list
// means successful settlements only.
type SettlementQuery struct {
	AccountID string
	Service   Service
	Window    Window
	Statuses  []SettlementStatus
}

// StatusesOrDefault returns the status filter to apply.
func (q SettlementQuery) StatusesOrDefault() []SettlementStatus {
	if len(q.Statuses) == 0 {
		return []SettlementStatus{SettlementStatusSuccess}
	}
	return q.Statuses
}

// AcceptsStatus reports whether status passes the query's filter.
func (q SettlementQuery) AcceptsStatus(status SettlementStatus) bool {
	for _, s := range q.StatusesOrDefault() {
		if s == status {
			return true
		}
	}
	return false
}

// Reader reads ledger facts. Results are ordered by CreatedAt then ID.
// Implementations must be safe for concurrent use and must report failures
// as errors wrapping ErrStoreUnavailable, never as empty results.
type Reader interface {
	AccountExists(ctx context.Context, accountID string) (bool, error)
	FetchCharges(ctx context.Context, q ChargeQuery) ([]Charge, error)
	FetchSettlements(ctx context.Context, q SettlementQuery) ([]Settlement, error)
}

// Store is the ledger store port.
type Store interface {
	Reader
	// ReadSnapshot runs fn against a Reader that observes one consistent
	// ledger state for its whole lifetime.
	ReadSnapshot(ctx context.Context, fn func(Reader) error) error
	// ListAccounts returns every account id in ascending order.
	ListAccounts(ctx context.Context) ([]string, error)
}
