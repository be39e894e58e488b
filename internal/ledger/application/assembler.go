package application

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	ledger "municipal-portal/internal/ledger/domain"
	"municipal-portal/internal/observability/metrics"
)

// AssembleRequest names the statement to build.
type AssembleRequest struct {
	AccountID string
	// Service scopes the statement; AllServices (the zero value) consolidates.
	Service ledger.Service
	Period  ledger.Period
	// AsOf is the aging reference time. Zero means the earlier of now and the
	// period end.
	AsOf time.Time
}

// Assembler builds account statements.
type Assembler struct {
	store    ledger.Store
	logger   logrus.FieldLogger
	location *time.Location
	now      func() time.Time
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithBillingLocation sets the timezone used for aging day counts.
func WithBillingLocation(loc *time.Location) AssemblerOption {
	return func(a *Assembler) {
		if loc != nil {
			a.location = loc
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) AssemblerOption {
	return func(a *Assembler) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAssembler constructs an assembler.
func NewAssembler(store ledger.Store, logger logrus.FieldLogger, opts ...AssemblerOption) (*Assembler, error) {
	if store == nil {
		return nil, errors.New("statement assembler: nil store")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	a := &Assembler{
		store:    store,
		logger:   logger,
		location: time.UTC,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Assemble reads one ledger snapshot and returns the statement for the
// request. Unknown accounts fail with ErrAccountNotFound.
func (a *Assembler) Assemble(ctx context.Context, req AssembleRequest) (*ledger.Statement, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveStatementAssemble(result, time.Since(start))
	}()

	if err := validateScope(req.AccountID, req.Service); err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if err := validatePeriod(req.Period); err != nil {
		result = metrics.ResultError
		return nil, err
	}
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = a.now()
		if asOf.After(req.Period.End) {
			asOf = req.Period.End
		}
	}

	var stmt *ledger.Statement
	err := a.store.ReadSnapshot(ctx, func(r ledger.Reader) error {
		built, err := a.assembleWith(ctx, r, req, asOf)
		if err != nil {
			return err
		}
		stmt = built
		return nil
	})
	if err != nil {
		if errors.Is(err, ledger.ErrInconsistentLedger) {
			result = metrics.ResultInconsistent
		} else {
			result = metrics.ResultError
		}
		a.logger.WithFields(logrus.Fields{
			"account": req.AccountID,
			"period":  req.Period.Token(),
			"service": req.Service.Label(),
		}).WithError(err).Debug("statement assemble failed")
		return nil, err
	}

	stmt.GeneratedAt = a.now().UTC()
	fingerprint, err := ledger.ComputeFingerprint(*stmt)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	stmt.Fingerprint = fingerprint
	return stmt, nil
}

func (a *Assembler) assembleWith(ctx context.Context, r ledger.Reader, req AssembleRequest, asOf time.Time) (*ledger.Statement, error) {
	if err := ensureAccount(ctx, r, req.AccountID); err != nil {
		return nil, err
	}

	var (
		balance    ledger.Balance
		perService []ledger.ServiceBalance
	)
	if req.Service.IsAll() {
		agg, err := aggregateWith(ctx, r, a.logger, req.AccountID, ledger.Catalog(), req.Period)
		if err != nil {
			return nil, err
		}
		balance = agg.Consolidated
		perService = agg.PerService
	} else {
		b, err := balanceWith(ctx, r, req.AccountID, req.Service, req.Period)
		if err != nil {
			return nil, err
		}
		balance = b
		perService = []ledger.ServiceBalance{{Service: req.Service, Balance: b}}
	}

	charges, settlements, err := fetchStreams(ctx, r, req.AccountID, req.Service, req.Period.HistoryThrough())
	if err != nil {
		return nil, err
	}

	aging, credit := ledger.BuildAging(balance.Closing, charges, asOf, a.location)

	return &ledger.Statement{
		AccountID:     req.AccountID,
		Scope:         req.Service,
		Period:        req.Period,
		AsOf:          asOf,
		Balance:       balance,
		PerService:    perService,
		Charges:       chargeLines(charges, req.Period),
		Settlements:   settlementLines(settlements, req.Period),
		Aging:         aging,
		CreditBalance: credit,
	}, nil
}

func chargeLines(charges []ledger.Charge, period ledger.Period) []ledger.Charge {
	out := make([]ledger.Charge, 0)
	for _, c := range charges {
		if period.Contains(c.CreatedAt) {
			out = append(out, c)
		}
	}
	ledger.SortCharges(out)
	return out
}

func settlementLines(settlements []ledger.Settlement, period ledger.Period) []ledger.Settlement {
	out := make([]ledger.Settlement, 0)
	for _, s := range settlements {
		if s.Status == ledger.SettlementStatusSuccess && period.Contains(s.CreatedAt) {
			out = append(out, s)
		}
	}
	ledger.SortSettlements(out)
	return out
}
