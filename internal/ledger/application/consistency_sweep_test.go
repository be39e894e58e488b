package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ledger "municipal-portal/internal/ledger/domain"
)

func newSweep(t *testing.T, store ledger.Store) *ConsistencySweep {
	t.Helper()
	logger, _ := test.NewNullLogger()
	agg, err := NewAggregator(store, logger)
	require.NoError(t, err)
	sweep, err := NewConsistencySweep(store, agg, logger, windhoek)
	require.NoError(t, err)
	sweep.now = func() time.Time { return at(2026, 1, 3, 1) }
	return sweep
}

func TestSweepFlagsInconsistentAccounts(t *testing.T) {
	b := newLedger(t, "A1", "A2", "A3")
	b.charge("A1", ledger.ServiceWater, "10.00", at(2025, 12, 2, 0), at(2025, 12, 20, 0), ledger.ChargeStatusPending)
	b.charge("A2", ledger.Service("Sewerage"), "10.00", at(2025, 12, 2, 0), at(2025, 12, 20, 0), ledger.ChargeStatusPending)

	report, err := newSweep(t, b.store).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2025-12", report.Period.Token())
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, []string{"A2"}, report.Inconsistent)
	assert.Empty(t, report.Failed)
}

func TestSweepCollectsStoreFailures(t *testing.T) {
	b := newLedger(t, "A1", "A2")
	store := &failingStore{Store: b.store, chargesErr: ledger.ErrStoreUnavailable}

	report, err := newSweep(t, store).RunPeriod(context.Background(), mustPeriod(t, "2025-11"))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, []string{"A1", "A2"}, report.Failed)
}

func TestSweepReportListsAreSorted(t *testing.T) {
	accounts := []string{"Z9", "M4", "B2", "K7", "A1", "Q3", "C5"}
	b := newLedger(t, accounts...)
	for _, a := range accounts {
		b.charge(a, ledger.Service("Sewerage"), "10.00", at(2025, 12, 2, 0), at(2025, 12, 20, 0), ledger.ChargeStatusPending)
	}
	b.charge("A1", ledger.ServiceUntagged, "5.00", at(2025, 12, 3, 0), time.Time{}, ledger.ChargeStatusPending)

	for i := 0; i < 5; i++ {
		report, err := newSweep(t, b.store).RunPeriod(context.Background(), mustPeriod(t, "2025-12"))
		require.NoError(t, err)
		assert.Equal(t, []string{"A1", "B2", "C5", "K7", "M4", "Q3", "Z9"}, report.Inconsistent)
	}
}

func TestSweepStopsOnCancel(t *testing.T) {
	b := newLedger(t, "A1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newSweep(t, b.store).Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	b := newLedger(t)
	sweep := newSweep(t, b.store)

	_, err := NewScheduler("not a schedule", sweep, nil, windhoek, time.Minute)
	require.Error(t, err)

	s, err := NewScheduler("0 3 1 * *", sweep, nil, windhoek, time.Minute)
	require.NoError(t, err)
	s.Start()
	<-s.Stop().Done()
}

func TestSchedulerRunOnceLogsInconsistency(t *testing.T) {
	b := newLedger(t, "A2")
	b.charge("A2", ledger.Service("Sewerage"), "10.00", at(2025, 12, 2, 0), at(2025, 12, 20, 0), ledger.ChargeStatusPending)
	sweep := newSweep(t, b.store)
	logger, hook := test.NewNullLogger()

	s, err := NewScheduler("@daily", sweep, logger, windhoek, time.Minute)
	require.NoError(t, err)
	s.runOnce()

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "inconsistent ledger", hook.LastEntry().Message)
	assert.Equal(t, "A2", hook.LastEntry().Data["account"])
}
