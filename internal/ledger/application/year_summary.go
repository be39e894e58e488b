package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	ledger "municipal-portal/internal/ledger/domain"
	"municipal-portal/internal/observability/metrics"
)

// MonthStatus describes a month in a year summary.
type MonthStatus string

const (
	MonthStatusPaid        MonthStatus = "Paid"
	MonthStatusCurrent     MonthStatus = "Current"
	MonthStatusOutstanding MonthStatus = "Outstanding"
)

// MonthSummary is the consolidated balance of one calendar month.
type MonthSummary struct {
	Period  ledger.Period
	Balance ledger.Balance
	Status  MonthStatus
}

// ServiceTotals is what was billed and paid for a service during the year.
type ServiceTotals struct {
	Service ledger.Service
	Billed  ledger.Money
	Paid    ledger.Money
}

// Net is billed minus paid.
func (t ServiceTotals) Net() ledger.Money { return t.Billed.Sub(t.Paid) }

// MethodTotals groups the year's successful settlements by payment method.
type MethodTotals struct {
	Method string
	Count  int
	Total  ledger.Money
}

// YearSummary is the annual overview of an account.
type YearSummary struct {
	AccountID      string
	Year           int
	Opening        ledger.Money
	Closing        ledger.Money
	TotalBilled    ledger.Money
	TotalPaid      ledger.Money
	Months         []MonthSummary
	Services       []ServiceTotals
	PaymentMethods []MethodTotals
}

// YearSummarizer builds year summaries from ledger facts.
type YearSummarizer struct {
	store    ledger.Store
	location *time.Location
	now      func() time.Time
}

// NewYearSummarizer constructs a summarizer. loc is the billing timezone.
func NewYearSummarizer(store ledger.Store, loc *time.Location, now func() time.Time) (*YearSummarizer, error) {
	if store == nil {
		return nil, errors.New("year summary: nil store")
	}
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &YearSummarizer{store: store, location: loc, now: now}, nil
}

// Summarize reads one snapshot and returns twelve monthly balances plus
// per-service and per-method totals for year.
func (y *YearSummarizer) Summarize(ctx context.Context, accountID string, year int) (*YearSummary, error) {
	result := metrics.ResultSuccess
	defer func() { metrics.IncYearSummary(result) }()

	if err := validateScope(accountID, ledger.AllServices); err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if year < 1900 || year > 9999 {
		result = metrics.ResultError
		return nil, fmt.Errorf("%w: year %d out of range", ledger.ErrInvalidPeriod, year)
	}

	jan := ledger.MonthOf(time.Date(year, time.January, 1, 0, 0, 0, 0, y.location))
	dec := ledger.MonthOf(time.Date(year, time.December, 1, 0, 0, 0, 0, y.location))

	var summary *YearSummary
	err := y.store.ReadSnapshot(ctx, func(r ledger.Reader) error {
		if err := ensureAccount(ctx, r, accountID); err != nil {
			return err
		}
		charges, settlements, err := fetchStreams(ctx, r, accountID, ledger.AllServices, dec.HistoryThrough())
		if err != nil {
			return err
		}
		summary = summarizeYear(accountID, year, jan, charges, settlements, y.now().In(y.location))
		return nil
	})
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	return summary, nil
}

func summarizeYear(accountID string, year int, jan ledger.Period, charges []ledger.Charge, settlements []ledger.Settlement, now time.Time) *YearSummary {
	out := &YearSummary{AccountID: accountID, Year: year}

	month := jan
	for i := 0; i < 12; i++ {
		b := foldBalance(charges, settlements, month)
		status := MonthStatusOutstanding
		switch {
		case month.Contains(now):
			status = MonthStatusCurrent
		case b.Closing <= 0:
			status = MonthStatusPaid
		}
		out.Months = append(out.Months, MonthSummary{Period: month, Balance: b, Status: status})
		month = month.Next()
	}
	out.Opening = out.Months[0].Balance.Opening
	out.Closing = out.Months[11].Balance.Closing

	yearWindow := ledger.Window{From: jan.Start, Until: out.Months[11].Period.End.Add(time.Nanosecond)}
	byService := map[ledger.Service]*ServiceTotals{}
	totalsFor := func(svc ledger.Service) *ServiceTotals {
		t, ok := byService[svc]
		if !ok {
			t = &ServiceTotals{Service: svc}
			byService[svc] = t
		}
		return t
	}
	for _, c := range charges {
		if !c.CountsTowardBalance() || !yearWindow.Includes(c.CreatedAt) {
			continue
		}
		t := totalsFor(c.Service)
		t.Billed = t.Billed.Add(c.Amount)
		out.TotalBilled = out.TotalBilled.Add(c.Amount)
	}
	byMethod := map[string]*MethodTotals{}
	for _, s := range settlements {
		if s.Status != ledger.SettlementStatusSuccess || !yearWindow.Includes(s.CreatedAt) {
			continue
		}
		t := totalsFor(s.Service)
		t.Paid = t.Paid.Add(s.Amount)
		out.TotalPaid = out.TotalPaid.Add(s.Amount)

		method := s.Method
		if method == "" {
			method = "unspecified"
		}
		m, ok := byMethod[method]
		if !ok {
			m = &MethodTotals{Method: method}
			byMethod[method] = m
		}
		m.Count++
		m.Total = m.Total.Add(s.Amount)
	}

	for _, svc := range ledger.Catalog() {
		out.Services = append(out.Services, *totalsFor(svc))
		delete(byService, svc)
	}
	extra := make([]ledger.Service, 0, len(byService))
	for svc := range byService {
		extra = append(extra, svc)
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	for _, svc := range extra {
		out.Services = append(out.Services, *byService[svc])
	}

	methods := make([]string, 0, len(byMethod))
	for m := range byMethod {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	for _, m := range methods {
		out.PaymentMethods = append(out.PaymentMethods, *byMethod[m])
	}
	return out
}
