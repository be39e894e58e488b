package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	ledger "municipal-portal/internal/ledger/domain"
	"municipal-portal/internal/observability/metrics"
)

// Aggregate is a consolidated balance with its per-service breakdown.
type Aggregate struct {
	Consolidated ledger.Balance
	PerService   []ledger.ServiceBalance
}

// Aggregator combines per-service balances into an account-level balance.
type Aggregator struct {
	store  ledger.Store
	logger logrus.FieldLogger
}

// NewAggregator constructs an aggregator.
func NewAggregator(store ledger.Store, logger logrus.FieldLogger) (*Aggregator, error) {
	if store == nil {
		return nil, errors.New("service aggregator: nil store")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Aggregator{store: store, logger: logger}, nil
}

// Aggregate computes the consolidated balance through the all-services query
// and one balance per requested service, ordered as services. An empty list
// means the whole catalog. When services cover the catalog the per-service
// closings must add up to the consolidated closing; otherwise
// ErrInconsistentLedger is returned.
func (a *Aggregator) Aggregate(ctx context.Context, accountID string, services []ledger.Service, period ledger.Period) (Aggregate, error) {
	if err := validateScope(accountID, ledger.AllServices); err != nil {
		return Aggregate{}, err
	}
	if err := validatePeriod(period); err != nil {
		return Aggregate{}, err
	}
	var out Aggregate
	err := a.store.ReadSnapshot(ctx, func(r ledger.Reader) error {
		agg, err := aggregateWith(ctx, r, a.logger, accountID, services, period)
		if err != nil {
			return err
		}
		out = agg
		return nil
	})
	if err != nil {
		return Aggregate{}, err
	}
	return out, nil
}

func aggregateWith(ctx context.Context, r ledger.Reader, logger logrus.FieldLogger, accountID string, services []ledger.Service, period ledger.Period) (Aggregate, error) {
	services, err := normalizeServices(services)
	if err != nil {
		return Aggregate{}, err
	}

	var consolidated ledger.Balance
	perService := make([]ledger.ServiceBalance, len(services))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := balanceWith(gctx, r, accountID, ledger.AllServices, period)
		if err != nil {
			return err
		}
		consolidated = b
		return nil
	})
	for i, svc := range services {
		i, svc := i, svc
		g.Go(func() error {
			b, err := balanceWith(gctx, r, accountID, svc, period)
			if err != nil {
				return err
			}
			perService[i] = ledger.ServiceBalance{Service: svc, Balance: b}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Aggregate{}, err
	}
	if err := ctx.Err(); err != nil {
		return Aggregate{}, err
	}

	if ledger.CoversCatalog(services) {
		sum := ledger.SumClosing(perService)
		if sum != consolidated.Closing {
			metrics.IncInconsistency()
			logger.WithFields(logrus.Fields{
				"account":      accountID,
				"period":       period.Token(),
				"consolidated": consolidated.Closing.String(),
				"per_service":  sum.String(),
			}).Error("per-service balances do not reconcile")
			return Aggregate{}, fmt.Errorf("%w: account %s period %s: consolidated %s, per-service sum %s",
				ledger.ErrInconsistentLedger, accountID, period.Token(), consolidated.Closing, sum)
		}
	}
	return Aggregate{Consolidated: consolidated, PerService: perService}, nil
}

// normalizeServices defaults to the catalog, rejects unknown entries and
// drops repeats while keeping the caller's order.
func normalizeServices(services []ledger.Service) ([]ledger.Service, error) {
	if len(services) == 0 {
		return ledger.Catalog(), nil
	}
	seen := make(map[ledger.Service]struct{}, len(services))
	out := make([]ledger.Service, 0, len(services))
	for _, svc := range services {
		if !svc.IsRecognized() {
			return nil, fmt.Errorf("%w: %q", ledger.ErrUnknownService, string(svc))
		}
		if _, ok := seen[svc]; ok {
			continue
		}
		seen[svc] = struct{}{}
		out = append(out, svc)
	}
	return out, nil
}
