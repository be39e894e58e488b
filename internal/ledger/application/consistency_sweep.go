package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	ledger "municipal-portal/internal/ledger/domain"
	"municipal-portal/internal/observability/metrics"
)

const defaultSweepWorkers = 4

// SweepReport summarizes one consistency sweep.
type SweepReport struct {
	Period       ledger.Period
	Checked      int
	Inconsistent []string
	Failed       []string
}

// ConsistencySweep re-aggregates every account for a closed month and reports
// accounts whose per-service breakdown does not reconcile.
type ConsistencySweep struct {
	store      ledger.Store
	aggregator *Aggregator
	logger     logrus.FieldLogger
	location   *time.Location
	now        func() time.Time
	workers    int
}

// NewConsistencySweep constructs a sweep.
func NewConsistencySweep(store ledger.Store, aggregator *Aggregator, logger logrus.FieldLogger, loc *time.Location) (*ConsistencySweep, error) {
	if store == nil {
		return nil, errors.New("consistency sweep: nil store")
	}
	if aggregator == nil {
		return nil, errors.New("consistency sweep: nil aggregator")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ConsistencySweep{
		store:      store,
		aggregator: aggregator,
		logger:     logger,
		location:   loc,
		now:        time.Now,
		workers:    defaultSweepWorkers,
	}, nil
}

// Run sweeps the most recent complete calendar month.
func (s *ConsistencySweep) Run(ctx context.Context) (SweepReport, error) {
	current := ledger.MonthOf(s.now().In(s.location))
	return s.RunPeriod(ctx, current.Previous())
}

// RunPeriod sweeps period. Per-account failures are collected in the report;
// only listing failures and cancellation abort the sweep.
func (s *ConsistencySweep) RunPeriod(ctx context.Context, period ledger.Period) (SweepReport, error) {
	report := SweepReport{Period: period}
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return report, err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, accountID := range accounts {
		accountID := accountID
		g.Go(func() error {
			_, err := s.aggregator.Aggregate(gctx, accountID, ledger.Catalog(), period)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			report.Checked++
			switch {
			case err == nil:
				metrics.IncSweepAccount(metrics.ResultSuccess)
			case errors.Is(err, ledger.ErrInconsistentLedger):
				metrics.IncSweepAccount(metrics.ResultInconsistent)
				report.Inconsistent = append(report.Inconsistent, accountID)
			default:
				metrics.IncSweepAccount(metrics.ResultError)
				report.Failed = append(report.Failed, accountID)
				s.logger.WithError(err).WithField("account", accountID).Warn("consistency sweep: aggregate failed")
			}
			return nil
		})
	}
	err = g.Wait()
	sort.Strings(report.Inconsistent)
	sort.Strings(report.Failed)
	if err != nil {
		return report, err
	}

	metrics.MarkSweepCompleted(s.now())
	s.logger.WithFields(logrus.Fields{
		"period":       period.Token(),
		"checked":      report.Checked,
		"inconsistent": len(report.Inconsistent),
		"failed":       len(report.Failed),
	}).Info("consistency sweep completed")
	return report, nil
}
