package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	ledger "municipal-portal/internal/ledger/domain"
	"municipal-portal/internal/observability/metrics"
)

// Calculator computes opening and period balances from ledger facts.
type Calculator struct {
	store ledger.Store
}

// NewCalculator constructs a calculator.
func NewCalculator(store ledger.Store) (*Calculator, error) {
	if store == nil {
		return nil, errors.New("balance calculator: nil store")
	}
	return &Calculator{store: store}, nil
}

// OpeningBalance returns charges minus successful settlements created before at.
func (c *Calculator) OpeningBalance(ctx context.Context, accountID string, service ledger.Service, at time.Time) (ledger.Money, error) {
	if err := validateScope(accountID, service); err != nil {
		return 0, err
	}
	charges, settlements, err := fetchStreams(ctx, c.store, accountID, service, ledger.Window{Until: at})
	if err != nil {
		return 0, err
	}
	return sumCharges(charges, ledger.Window{Until: at}).Sub(sumSettlements(settlements, ledger.Window{Until: at})), nil
}

// Balance returns the opening, period totals and closing for period.
func (c *Calculator) Balance(ctx context.Context, accountID string, service ledger.Service, period ledger.Period) (ledger.Balance, error) {
	if err := validateScope(accountID, service); err != nil {
		return ledger.Balance{}, err
	}
	if err := validatePeriod(period); err != nil {
		return ledger.Balance{}, err
	}
	return balanceWith(ctx, c.store, accountID, service, period)
}

// AccountBalance is Balance read from one snapshot, failing with
// ErrAccountNotFound for unknown accounts.
func (c *Calculator) AccountBalance(ctx context.Context, accountID string, service ledger.Service, period ledger.Period) (ledger.Balance, error) {
	if err := validateScope(accountID, service); err != nil {
		return ledger.Balance{}, err
	}
	if err := validatePeriod(period); err != nil {
		return ledger.Balance{}, err
	}
	var out ledger.Balance
	err := c.store.ReadSnapshot(ctx, func(r ledger.Reader) error {
		if err := ensureAccount(ctx, r, accountID); err != nil {
			return err
		}
		b, err := balanceWith(ctx, r, accountID, service, period)
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return ledger.Balance{}, err
	}
	return out, nil
}

func balanceWith(ctx context.Context, r ledger.Reader, accountID string, service ledger.Service, period ledger.Period) (ledger.Balance, error) {
	charges, settlements, err := fetchStreams(ctx, r, accountID, service, period.HistoryThrough())
	if err != nil {
		return ledger.Balance{}, err
	}
	return foldBalance(charges, settlements, period), nil
}

// fetchStreams reads both fact streams concurrently. Either failure (or a
// cancelled ctx) discards both results.
func fetchStreams(ctx context.Context, r ledger.Reader, accountID string, service ledger.Service, window ledger.Window) ([]ledger.Charge, []ledger.Settlement, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	var (
		charges     []ledger.Charge
		settlements []ledger.Settlement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		out, err := r.FetchCharges(gctx, ledger.ChargeQuery{AccountID: accountID, Service: service, Window: window})
		metrics.ObserveLedgerFetch(metrics.StreamCharges, time.Since(start))
		if err != nil {
			return fmt.Errorf("fetch charges: %w", err)
		}
		charges = out
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		out, err := r.FetchSettlements(gctx, ledger.SettlementQuery{AccountID: accountID, Service: service, Window: window})
		metrics.ObserveLedgerFetch(metrics.StreamSettlements, time.Since(start))
		if err != nil {
			return fmt.Errorf("fetch settlements: %w", err)
		}
		settlements = out
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return charges, settlements, nil
}

// foldBalance partitions history into facts before the period (opening) and
// facts inside it (totals). Facts after the period end are ignored.
func foldBalance(charges []ledger.Charge, settlements []ledger.Settlement, period ledger.Period) ledger.Balance {
	before := ledger.Window{Until: period.Start}
	during := period.ActivityWindow()
	opening := sumCharges(charges, before).Sub(sumSettlements(settlements, before))
	return ledger.NewBalance(opening, sumCharges(charges, during), sumSettlements(settlements, during))
}

func sumCharges(charges []ledger.Charge, w ledger.Window) ledger.Money {
	var total ledger.Money
	for _, c := range charges {
		if c.CountsTowardBalance() && w.Includes(c.CreatedAt) {
			total = total.Add(c.Amount)
		}
	}
	return total
}

func sumSettlements(settlements []ledger.Settlement, w ledger.Window) ledger.Money {
	var total ledger.Money
	for _, s := range settlements {
		if s.Status == ledger.SettlementStatusSuccess && w.Includes(s.CreatedAt) {
			total = total.Add(s.Amount)
		}
	}
	return total
}

func ensureAccount(ctx context.Context, r ledger.Reader, accountID string) error {
	ok, err := r.AccountExists(ctx, accountID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, accountID)
	}
	return nil
}

func validateScope(accountID string, service ledger.Service) error {
	if accountID == "" {
		return ledger.ErrEmptyAccountID
	}
	if !service.IsAll() && !service.IsRecognized() {
		return fmt.Errorf("%w: %q", ledger.ErrUnknownService, string(service))
	}
	return nil
}

func validatePeriod(period ledger.Period) error {
	if period.Start.IsZero() || period.End.IsZero() {
		return fmt.Errorf("%w: zero bound", ledger.ErrInvalidPeriod)
	}
	if period.End.Before(period.Start) {
		return fmt.Errorf("%w: end before start", ledger.ErrInvalidPeriod)
	}
	return nil
}
