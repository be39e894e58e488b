package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ledger "municipal-portal/internal/ledger/domain"
	"municipal-portal/internal/ledger/infrastructure/memory"
)

var windhoek = time.FixedZone("CAT", 2*3600)

func at(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, windhoek)
}

func mustPeriod(t *testing.T, token string) ledger.Period {
	t.Helper()
	p, err := ledger.ParsePeriod(token, windhoek)
	require.NoError(t, err)
	return p
}

type ledgerBuilder struct {
	t     *testing.T
	store *memory.Store
	next  int64
}

func newLedger(t *testing.T, accounts ...string) *ledgerBuilder {
	t.Helper()
	store := memory.NewStore()
	for _, a := range accounts {
		require.NoError(t, store.AddAccount(memory.Account{Number: a}))
	}
	return &ledgerBuilder{t: t, store: store}
}

func (b *ledgerBuilder) id() int64 {
	b.next++
	return b.next
}

func (b *ledgerBuilder) charge(account string, svc ledger.Service, amount string, created, due time.Time, status ledger.ChargeStatus) int64 {
	id := b.id()
	require.NoError(b.t, b.store.AddCharge(ledger.Charge{
		ID:        id,
		AccountID: account,
		Service:   svc,
		Amount:    ledger.MustParseMoney(amount),
		DueDate:   due,
		Status:    status,
		CreatedAt: created,
	}))
	return id
}

func (b *ledgerBuilder) settle(account string, svc ledger.Service, amount string, created time.Time, status ledger.SettlementStatus, method string) int64 {
	id := b.id()
	require.NoError(b.t, b.store.AddSettlement(ledger.Settlement{
		ID:        id,
		AccountID: account,
		Service:   svc,
		Amount:    ledger.MustParseMoney(amount),
		Method:    method,
		Reference: "REF",
		Status:    status,
		CreatedAt: created,
	}))
	return id
}

// busyLedger spreads activity for one account across several months, all
// services and every status.
func busyLedger(t *testing.T) *ledgerBuilder {
	b := newLedger(t, "OKA-2001")
	acct := "OKA-2001"
	b.charge(acct, ledger.ServiceWater, "410.20", at(2025, 9, 1, 8), at(2025, 9, 20, 0), ledger.ChargeStatusPaid)
	b.charge(acct, ledger.ServiceElectricity, "980.00", at(2025, 9, 1, 8), at(2025, 9, 20, 0), ledger.ChargeStatusOverdue)
	b.settle(acct, ledger.ServiceWater, "410.20", at(2025, 9, 15, 10), ledger.SettlementStatusSuccess, "card")
	b.charge(acct, ledger.ServicePropertyRates, "1500.00", at(2025, 10, 1, 8), at(2025, 10, 25, 0), ledger.ChargeStatusPending)
	b.charge(acct, ledger.ServiceRefuseCollection, "120.00", at(2025, 10, 1, 8), at(2025, 10, 25, 0), ledger.ChargeStatusVoid)
	b.settle(acct, ledger.ServiceElectricity, "500.00", at(2025, 10, 12, 9), ledger.SettlementStatusSuccess, "eft")
	b.settle(acct, ledger.ServiceElectricity, "480.00", at(2025, 10, 13, 9), ledger.SettlementStatusFailed, "card")
	b.charge(acct, ledger.ServiceWater, "388.75", at(2025, 11, 1, 0), at(2025, 11, 20, 0), ledger.ChargeStatusPending)
	b.settle(acct, ledger.ServicePropertyRates, "2000.00", at(2025, 11, 30, 23), ledger.SettlementStatusSuccess, "eft")
	b.settle(acct, ledger.ServiceWater, "50.00", at(2025, 12, 1, 0), ledger.SettlementStatusPending, "card")
	b.charge(acct, ledger.ServiceElectricity, "1785.50", at(2025, 12, 31, 23), at(2026, 1, 20, 0), ledger.ChargeStatusPending)
	return b
}

// failingStore wraps a memory store and fails the configured stream.
type failingStore struct {
	*memory.Store
	chargesErr     error
	settlementsErr error
}

func (s *failingStore) FetchCharges(ctx context.Context, q ledger.ChargeQuery) ([]ledger.Charge, error) {
	if s.chargesErr != nil {
		return nil, s.chargesErr
	}
	return s.Store.FetchCharges(ctx, q)
}

func (s *failingStore) FetchSettlements(ctx context.Context, q ledger.SettlementQuery) ([]ledger.Settlement, error) {
	if s.settlementsErr != nil {
		return nil, s.settlementsErr
	}
	return s.Store.FetchSettlements(ctx, q)
}

func (s *failingStore) ReadSnapshot(ctx context.Context, fn func(ledger.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(s)
}
