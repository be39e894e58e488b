package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ledger "municipal-portal/internal/ledger/domain"
)

func newTestAssembler(t *testing.T, store ledger.Store) (*Assembler, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	a, err := NewAssembler(store, logger,
		WithBillingLocation(windhoek),
		WithClock(func() time.Time { return at(2026, 2, 1, 9) }),
	)
	require.NoError(t, err)
	return a, hook
}

func TestAggregateTwoServices(t *testing.T) {
	b := newLedger(t, "A1")
	b.charge("A1", ledger.ServiceWater, "1245.00", at(2025, 12, 1, 8), at(2025, 12, 20, 0), ledger.ChargeStatusPending)
	b.charge("A1", ledger.ServiceElectricity, "1785.50", at(2025, 12, 2, 8), at(2025, 12, 20, 0), ledger.ChargeStatusPending)
	agg, err := NewAggregator(b.store, nil)
	require.NoError(t, err)

	got, err := agg.Aggregate(context.Background(), "A1", []ledger.Service{ledger.ServiceWater, ledger.ServiceElectricity}, mustPeriod(t, "2025-12"))
	require.NoError(t, err)
	assert.Equal(t, "3030.50", got.Consolidated.Closing.String())
	require.Len(t, got.PerService, 2)
	assert.Equal(t, ledger.ServiceWater, got.PerService[0].Service)
	assert.Equal(t, "1245.00", got.PerService[0].Balance.Closing.String())
	assert.Equal(t, ledger.ServiceElectricity, got.PerService[1].Service)
	assert.Equal(t, "1785.50", got.PerService[1].Balance.Closing.String())
}

func TestAggregateKeepsCallerOrder(t *testing.T) {
	b := busyLedger(t)
	agg, err := NewAggregator(b.store, nil)
	require.NoError(t, err)

	order := []ledger.Service{ledger.ServiceRefuseCollection, ledger.ServiceWater, ledger.ServicePropertyRates, ledger.ServiceElectricity, ledger.ServiceWater}
	got, err := agg.Aggregate(context.Background(), "OKA-2001", order, mustPeriod(t, "2025-11"))
	require.NoError(t, err)
	require.Len(t, got.PerService, 4)
	for i, svc := range order[:4] {
		assert.Equal(t, svc, got.PerService[i].Service)
	}
	assert.Equal(t, got.Consolidated.Closing, ledger.SumClosing(got.PerService))

	_, err = agg.Aggregate(context.Background(), "OKA-2001", []ledger.Service{ledger.AllServices}, mustPeriod(t, "2025-11"))
	assert.True(t, errors.Is(err, ledger.ErrUnknownService))
}

func TestAggregationConsistencyAcrossPeriods(t *testing.T) {
	b := busyLedger(t)
	agg, err := NewAggregator(b.store, nil)
	require.NoError(t, err)

	period := mustPeriod(t, "2025-08")
	for i := 0; i < 6; i++ {
		got, err := agg.Aggregate(context.Background(), "OKA-2001", nil, period)
		require.NoError(t, err, period.Token())
		assert.Equal(t, got.Consolidated.Closing, ledger.SumClosing(got.PerService), period.Token())
		period = period.Next()
	}
}

func TestInconsistentLedgerIsReported(t *testing.T) {
	b := newLedger(t, "A1")
	b.charge("A1", ledger.ServiceWater, "100.00", at(2025, 12, 1, 8), at(2025, 12, 20, 0), ledger.ChargeStatusPending)
	// a tag outside the catalog counts in the consolidated query only
	b.charge("A1", ledger.Service("Sewerage"), "40.00", at(2025, 12, 1, 8), at(2025, 12, 20, 0), ledger.ChargeStatusPending)
	a, hook := newTestAssembler(t, b.store)

	stmt, err := a.Assemble(context.Background(), AssembleRequest{AccountID: "A1", Period: mustPeriod(t, "2025-12")})
	require.Error(t, err)
	assert.Nil(t, stmt)
	assert.True(t, errors.Is(err, ledger.ErrInconsistentLedger))

	var logged bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			logged = true
			assert.Equal(t, "A1", e.Data["account"])
		}
	}
	assert.True(t, logged)

	// a partial service list is not cross-checked
	agg, err := NewAggregator(b.store, nil)
	require.NoError(t, err)
	_, err = agg.Aggregate(context.Background(), "A1", []ledger.Service{ledger.ServiceWater}, mustPeriod(t, "2025-12"))
	require.NoError(t, err)
}

func TestAssembleStatement(t *testing.T) {
	b := busyLedger(t)
	a, _ := newTestAssembler(t, b.store)
	asOf := at(2026, 1, 15, 12)

	stmt, err := a.Assemble(context.Background(), AssembleRequest{AccountID: "OKA-2001", Period: mustPeriod(t, "2025-12"), AsOf: asOf})
	require.NoError(t, err)

	assert.Equal(t, ledger.AllServices, stmt.Scope)
	assert.Equal(t, "368.75", stmt.Balance.Opening.String())
	assert.Equal(t, "2154.25", stmt.Balance.Closing.String())
	require.Len(t, stmt.PerService, 4)
	assert.Equal(t, stmt.Balance.Closing, ledger.SumClosing(stmt.PerService))

	require.Len(t, stmt.Charges, 1)
	assert.Equal(t, "1785.50", stmt.Charges[0].Amount.String())
	// pending settlements are not statement lines
	assert.Empty(t, stmt.Settlements)

	assert.Equal(t, stmt.Balance.Closing, stmt.Aging.Total())
	assert.True(t, stmt.CreditBalance.IsZero())
	assert.Equal(t, asOf, stmt.AsOf)
	assert.NotEmpty(t, stmt.Fingerprint)
	assert.Equal(t, at(2026, 2, 1, 9).UTC(), stmt.GeneratedAt)
}

func TestAssembleAgingNinetyFiveDays(t *testing.T) {
	b := newLedger(t, "A1")
	asOf := at(2026, 1, 15, 12)
	b.charge("A1", ledger.ServiceWater, "640.00", at(2025, 9, 20, 8), asOf.AddDate(0, 0, -95), ledger.ChargeStatusPending)
	a, _ := newTestAssembler(t, b.store)

	stmt, err := a.Assemble(context.Background(), AssembleRequest{AccountID: "A1", Period: mustPeriod(t, "2026-01"), AsOf: asOf})
	require.NoError(t, err)
	assert.Equal(t, "640.00", stmt.Aging.Days90.String())
	assert.Equal(t, stmt.Balance.Closing, stmt.Aging.Total())
}

func TestAssembleCreditBalance(t *testing.T) {
	b := newLedger(t, "A1")
	b.charge("A1", ledger.ServiceWater, "100.00", at(2025, 12, 1, 8), at(2025, 12, 20, 0), ledger.ChargeStatusPaid)
	b.settle("A1", ledger.ServiceWater, "150.00", at(2025, 12, 5, 8), ledger.SettlementStatusSuccess, "eft")
	a, _ := newTestAssembler(t, b.store)

	stmt, err := a.Assemble(context.Background(), AssembleRequest{AccountID: "A1", Period: mustPeriod(t, "2025-12"), AsOf: at(2025, 12, 31, 0)})
	require.NoError(t, err)
	assert.Equal(t, "-50.00", stmt.Balance.Closing.String())
	assert.Equal(t, ledger.AgingSnapshot{}, stmt.Aging)
	assert.Equal(t, "50.00", stmt.CreditBalance.String())
}

func TestAgingCompletenessAcrossPeriods(t *testing.T) {
	b := busyLedger(t)
	a, _ := newTestAssembler(t, b.store)
	period := mustPeriod(t, "2025-08")
	for i := 0; i < 6; i++ {
		for _, svc := range append([]ledger.Service{ledger.AllServices}, ledger.Catalog()...) {
			name := fmt.Sprintf("%s/%s", svc.Label(), period.Token())
			stmt, err := a.Assemble(context.Background(), AssembleRequest{AccountID: "OKA-2001", Service: svc, Period: period, AsOf: period.End})
			require.NoError(t, err, name)
			want := stmt.Balance.Closing
			if want.IsNegative() {
				want = 0
				assert.Equal(t, stmt.Balance.Closing.Neg(), stmt.CreditBalance, name)
			}
			assert.Equal(t, want, stmt.Aging.Total(), name)
		}
		period = period.Next()
	}
}

func TestAssembleIsIdempotent(t *testing.T) {
	b := busyLedger(t)
	a, _ := newTestAssembler(t, b.store)
	req := AssembleRequest{AccountID: "OKA-2001", Period: mustPeriod(t, "2025-11"), AsOf: at(2025, 12, 5, 0)}

	first, err := a.Assemble(context.Background(), req)
	require.NoError(t, err)
	second, err := a.Assemble(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, first, second)
}

func TestAssembleSingleService(t *testing.T) {
	b := busyLedger(t)
	a, _ := newTestAssembler(t, b.store)

	stmt, err := a.Assemble(context.Background(), AssembleRequest{
		AccountID: "OKA-2001",
		Service:   ledger.ServicePropertyRates,
		Period:    mustPeriod(t, "2025-11"),
		AsOf:      at(2025, 11, 30, 23),
	})
	require.NoError(t, err)
	require.Len(t, stmt.PerService, 1)
	assert.Equal(t, ledger.ServicePropertyRates, stmt.PerService[0].Service)
	assert.Equal(t, "-500.00", stmt.Balance.Closing.String())
	assert.Equal(t, "500.00", stmt.CreditBalance.String())
	require.Len(t, stmt.Settlements, 1)
	assert.Empty(t, stmt.Charges)
}

func TestAssembleLinesAreOrdered(t *testing.T) {
	b := newLedger(t, "A1")
	created := at(2025, 12, 3, 8)
	b.charge("A1", ledger.ServiceWater, "1.00", at(2025, 12, 9, 8), created, ledger.ChargeStatusPending)
	b.charge("A1", ledger.ServiceElectricity, "2.00", created, created, ledger.ChargeStatusPending)
	b.charge("A1", ledger.ServiceWater, "3.00", created, created, ledger.ChargeStatusVoid)
	a, _ := newTestAssembler(t, b.store)

	stmt, err := a.Assemble(context.Background(), AssembleRequest{AccountID: "A1", Period: mustPeriod(t, "2025-12"), AsOf: at(2025, 12, 31, 0)})
	require.NoError(t, err)
	require.Len(t, stmt.Charges, 3)
	assert.Equal(t, []int64{2, 3, 1}, []int64{stmt.Charges[0].ID, stmt.Charges[1].ID, stmt.Charges[2].ID})
	assert.Equal(t, "3.00", stmt.Balance.Charges.String())
}

func TestAssembleDegeneratePeriod(t *testing.T) {
	b := busyLedger(t)
	a, _ := newTestAssembler(t, b.store)
	instant := at(2025, 11, 1, 0)
	p, err := ledger.NewPeriod(instant, instant)
	require.NoError(t, err)

	stmt, err := a.Assemble(context.Background(), AssembleRequest{AccountID: "OKA-2001", Period: p, AsOf: instant})
	require.NoError(t, err)
	assert.Equal(t, stmt.Balance.Opening, stmt.Balance.Closing)
	assert.Empty(t, stmt.Charges)
	assert.Empty(t, stmt.Settlements)
}

func TestAssembleDefaultsAsOfToPeriodEnd(t *testing.T) {
	b := busyLedger(t)
	a, _ := newTestAssembler(t, b.store)
	period := mustPeriod(t, "2025-10")

	stmt, err := a.Assemble(context.Background(), AssembleRequest{AccountID: "OKA-2001", Period: period})
	require.NoError(t, err)
	assert.Equal(t, period.End, stmt.AsOf)
}

func TestAssembleUnknownAccount(t *testing.T) {
	b := busyLedger(t)
	a, _ := newTestAssembler(t, b.store)

	stmt, err := a.Assemble(context.Background(), AssembleRequest{AccountID: "NOPE", Period: mustPeriod(t, "2025-12")})
	assert.Nil(t, stmt)
	assert.True(t, errors.Is(err, ledger.ErrAccountNotFound))
}

func TestAssembleStoreUnavailable(t *testing.T) {
	b := busyLedger(t)
	store := &failingStore{Store: b.store, settlementsErr: fmt.Errorf("%w: pool exhausted", ledger.ErrStoreUnavailable)}
	a, _ := newTestAssembler(t, store)

	stmt, err := a.Assemble(context.Background(), AssembleRequest{AccountID: "OKA-2001", Period: mustPeriod(t, "2025-12")})
	assert.Nil(t, stmt)
	assert.True(t, errors.Is(err, ledger.ErrStoreUnavailable))
}

func TestAssembleCancelled(t *testing.T) {
	b := busyLedger(t)
	a, _ := newTestAssembler(t, b.store)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stmt, err := a.Assemble(ctx, AssembleRequest{AccountID: "OKA-2001", Period: mustPeriod(t, "2025-12")})
	assert.Nil(t, stmt)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestAssembleValidation(t *testing.T) {
	b := busyLedger(t)
	a, _ := newTestAssembler(t, b.store)

	_, err := a.Assemble(context.Background(), AssembleRequest{AccountID: "OKA-2001"})
	assert.True(t, errors.Is(err, ledger.ErrInvalidPeriod))

	_, err = NewAssembler(nil, nil)
	require.Error(t, err)
}
