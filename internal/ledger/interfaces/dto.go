package interfaces

import (
	"time"

	ledgerapp "municipal-portal/internal/ledger/application"
	ledger "municipal-portal/internal/ledger/domain"
)

const dateLayout = "2006-01-02"

// formatDay renders t as a calendar day in loc, or "" when t is unset.
func formatDay(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(dateLayout)
}

type balanceDTO struct {
	Opening     string `json:"opening"`
	Charges     string `json:"charges"`
	Settlements string `json:"settlements"`
	Closing     string `json:"closing"`
}

type serviceBalanceDTO struct {
	Service string     `json:"service"`
	Balance balanceDTO `json:"balance"`
}

type chargeDTO struct {
	ID                 int64   `json:"id"`
	Service            string  `json:"service"`
	Amount             string  `json:"amount"`
	BillingPeriodStart string  `json:"billing_period_start"`
	BillingPeriodEnd   string  `json:"billing_period_end"`
	DueDate            string  `json:"due_date"`
	Status             string  `json:"status"`
	PaidAt             *string `json:"paid_at,omitempty"`
	CreatedAt          string  `json:"created_at"`
}

type settlementDTO struct {
	ID              int64  `json:"id"`
	Service         string `json:"service"`
	Amount          string `json:"amount"`
	Method          string `json:"method"`
	Reference       string `json:"reference"`
	Status          string `json:"status"`
	RelatedChargeID *int64 `json:"related_charge_id,omitempty"`
	CreatedAt       string `json:"created_at"`
}

type agingDTO struct {
	Current     string `json:"current"`
	Days30      string `json:"days30"`
	Days60      string `json:"days60"`
	Days90      string `json:"days90"`
	Days120Plus string `json:"days120plus"`
	Total       string `json:"total"`
}

type statementDTO struct {
	AccountID     string              `json:"account_id"`
	Service       string              `json:"service"`
	Period        string              `json:"period"`
	PeriodStart   string              `json:"period_start"`
	PeriodEnd     string              `json:"period_end"`
	AsOf          string              `json:"as_of"`
	Balance       balanceDTO          `json:"balance"`
	PerService    []serviceBalanceDTO `json:"per_service"`
	Charges       []chargeDTO         `json:"charges"`
	Settlements   []settlementDTO     `json:"settlements"`
	Aging         agingDTO            `json:"aging"`
	CreditBalance string              `json:"credit_balance"`
	GeneratedAt   string              `json:"generated_at"`
	Fingerprint   string              `json:"fingerprint"`
}

type accountBalanceDTO struct {
	AccountID string     `json:"account_id"`
	Service   string     `json:"service"`
	Period    string     `json:"period"`
	Balance   balanceDTO `json:"balance"`
}

type monthDTO struct {
	Period  string     `json:"period"`
	Status  string     `json:"status"`
	Balance balanceDTO `json:"balance"`
}

type serviceTotalsDTO struct {
	Service string `json:"service"`
	Billed  string `json:"billed"`
	Paid    string `json:"paid"`
	Balance string `json:"balance"`
}

type methodTotalsDTO struct {
	Method string `json:"method"`
	Count  int    `json:"count"`
	Total  string `json:"total"`
}

type yearSummaryDTO struct {
	AccountID      string             `json:"account_id"`
	Year           int                `json:"year"`
	Opening        string             `json:"opening"`
	Closing        string             `json:"closing"`
	TotalBilled    string             `json:"total_billed"`
	TotalPaid      string             `json:"total_paid"`
	Months         []monthDTO         `json:"months"`
	Services       []serviceTotalsDTO `json:"services"`
	PaymentMethods []methodTotalsDTO  `json:"payment_methods"`
}

func toBalanceDTO(b ledger.Balance) balanceDTO {
	return balanceDTO{
		Opening:     b.Opening.String(),
		Charges:     b.Charges.String(),
		Settlements: b.Settlements.String(),
		Closing:     b.Closing.String(),
	}
}

func toStatementDTO(s *ledger.Statement) statementDTO {
	loc := s.Period.Location()
	out := statementDTO{
		AccountID:     s.AccountID,
		Service:       s.Scope.Label(),
		Period:        s.Period.Token(),
		PeriodStart:   s.Period.Start.Format(time.RFC3339),
		PeriodEnd:     s.Period.End.Format(time.RFC3339),
		AsOf:          s.AsOf.In(loc).Format(time.RFC3339),
		Balance:       toBalanceDTO(s.Balance),
		PerService:    make([]serviceBalanceDTO, 0, len(s.PerService)),
		Charges:       make([]chargeDTO, 0, len(s.Charges)),
		Settlements:   make([]settlementDTO, 0, len(s.Settlements)),
		CreditBalance: s.CreditBalance.String(),
		GeneratedAt:   s.GeneratedAt.UTC().Format(time.RFC3339),
		Fingerprint:   s.Fingerprint,
		Aging: agingDTO{
			Current:     s.Aging.Current.String(),
			Days30:      s.Aging.Days30.String(),
			Days60:      s.Aging.Days60.String(),
			Days90:      s.Aging.Days90.String(),
			Days120Plus: s.Aging.Days120Plus.String(),
			Total:       s.Aging.Total().String(),
		},
	}
	for _, sb := range s.PerService {
		out.PerService = append(out.PerService, serviceBalanceDTO{Service: string(sb.Service), Balance: toBalanceDTO(sb.Balance)})
	}
	for _, c := range s.Charges {
		item := chargeDTO{
			ID:                 c.ID,
			Service:            string(c.Service),
			Amount:             c.Amount.String(),
			BillingPeriodStart: formatDay(c.BillingPeriodStart, loc),
			BillingPeriodEnd:   formatDay(c.BillingPeriodEnd, loc),
			DueDate:            formatDay(c.DueDate, loc),
			Status:             string(c.Status),
			CreatedAt:          c.CreatedAt.In(loc).Format(time.RFC3339),
		}
		if c.PaidAt != nil {
			paid := c.PaidAt.In(loc).Format(time.RFC3339)
			item.PaidAt = &paid
		}
		out.Charges = append(out.Charges, item)
	}
	for _, st := range s.Settlements {
		out.Settlements = append(out.Settlements, settlementDTO{
			ID:              st.ID,
			Service:         string(st.Service),
			Amount:          st.Amount.String(),
			Method:          st.Method,
			Reference:       st.Reference,
			Status:          string(st.Status),
			RelatedChargeID: st.RelatedChargeID,
			CreatedAt:       st.CreatedAt.In(loc).Format(time.RFC3339),
		})
	}
	return out
}

func toYearSummaryDTO(y *ledgerapp.YearSummary) yearSummaryDTO {
	out := yearSummaryDTO{
		AccountID:      y.AccountID,
		Year:           y.Year,
		Opening:        y.Opening.String(),
		Closing:        y.Closing.String(),
		TotalBilled:    y.TotalBilled.String(),
		TotalPaid:      y.TotalPaid.String(),
		Months:         make([]monthDTO, 0, len(y.Months)),
		Services:       make([]serviceTotalsDTO, 0, len(y.Services)),
		PaymentMethods: make([]methodTotalsDTO, 0, len(y.PaymentMethods)),
	}
	for _, m := range y.Months {
		out.Months = append(out.Months, monthDTO{Period: m.Period.Token(), Status: string(m.Status), Balance: toBalanceDTO(m.Balance)})
	}
	for _, s := range y.Services {
		out.Services = append(out.Services, serviceTotalsDTO{
			Service: string(s.Service),
			Billed:  s.Billed.String(),
			Paid:    s.Paid.String(),
			Balance: s.Net().String(),
		})
	}
	for _, m := range y.PaymentMethods {
		out.PaymentMethods = append(out.PaymentMethods, methodTotalsDTO{Method: m.Method, Count: m.Count, Total: m.Total.String()})
	}
	return out
}
