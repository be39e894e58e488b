package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Statement is the assembled, read-only account statement for one period.
type Statement struct {
	AccountID     string
	Scope         Service
	Period        Period
	AsOf          time.Time
	Balance       Balance
	PerService    []ServiceBalance
	Charges       []Charge
	Settlements   []Settlement
	Aging         AgingSnapshot
	CreditBalance Money
	GeneratedAt   time.Time
	Fingerprint   string
}

// fingerprintView carries every statement field that depends on ledger data.
type fingerprintView struct {
	AccountID     string
	Scope         Service
	PeriodStart   int64
	PeriodEnd     int64
	AsOf          int64
	Balance       Balance
	PerService    []ServiceBalance
	Charges       []Charge
	Settlements   []Settlement
	Aging         AgingSnapshot
	CreditBalance Money
}

// ComputeFingerprint hashes the ledger-derived content of s. Two statements
// assembled from the same ledger state for the same inputs share a fingerprint
// regardless of when they were generated.
func ComputeFingerprint(s Statement) (string, error) {
	view := fingerprintView{
		AccountID:     s.AccountID,
		Scope:         s.Scope,
		PeriodStart:   s.Period.Start.UnixNano(),
		PeriodEnd:     s.Period.End.UnixNano(),
		AsOf:          s.AsOf.UnixNano(),
		Balance:       s.Balance,
		PerService:    s.PerService,
		Charges:       normalizeCharges(s.Charges),
		Settlements:   normalizeSettlements(s.Settlements),
		Aging:         s.Aging,
		CreditBalance: s.CreditBalance,
	}
	payload, err := json.Marshal(view)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

func normalizeCharges(in []Charge) []Charge {
	out := make([]Charge, len(in))
	for i, c := range in {
		c.BillingPeriodStart = c.BillingPeriodStart.UTC()
		c.BillingPeriodEnd = c.BillingPeriodEnd.UTC()
		c.DueDate = c.DueDate.UTC()
		c.CreatedAt = c.CreatedAt.UTC()
		if c.PaidAt != nil {
			paid := c.PaidAt.UTC()
			c.PaidAt = &paid
		}
		out[i] = c
	}
	return out
}

func normalizeSettlements(in []Settlement) []Settlement {
	out := make([]Settlement, len(in))
	for i, s := range in {
		s.CreatedAt = s.CreatedAt.UTC()
		out[i] = s
	}
	return out
}
