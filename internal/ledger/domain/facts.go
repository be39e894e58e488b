package ledger

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ChargeStatus is the lifecycle status of a bill.
type ChargeStatus string

const (
	ChargeStatusPending ChargeStatus = "pending"
	ChargeStatusPaid    ChargeStatus = "paid"
	ChargeStatusOverdue ChargeStatus = "overdue"
	ChargeStatusVoid    ChargeStatus = "void"
)

// IsOutstanding reports whether the charge is still owed.
func (s ChargeStatus) IsOutstanding() bool {
	return s == ChargeStatusPending || s == ChargeStatusOverdue
}

// Charge is a billed amount owed by an account for a service.
// Produced by the billing subsystem; the ledger only reads it.
type Charge struct {
	ID                 int64
	AccountID          string
	Service            Service
	Amount             Money
	BillingPeriodStart time.Time
	BillingPeriodEnd   time.Time
	DueDate            time.Time
	Status             ChargeStatus
	PaidAt             *time.Time
	CreatedAt          time.Time
}

// CountsTowardBalance reports whether the charge participates in balance math.
// Voided bills were cancelled and owe nothing.
func (c Charge) CountsTowardBalance() bool { return c.Status != ChargeStatusVoid }

// OutstandingAt reports whether the charge was unpaid at asOf. A bill whose
// payment landed after asOf still counts as owed on that date.
func (c Charge) OutstandingAt(asOf time.Time) bool {
	if c.Status.IsOutstanding() {
		return true
	}
	return c.Status == ChargeStatusPaid && c.PaidAt != nil && c.PaidAt.After(asOf)
}

// SettlementStatus is the lifecycle status of a payment.
type SettlementStatus string

const (
	SettlementStatusPending SettlementStatus = "pending"
	SettlementStatusSuccess SettlementStatus = "success"
	SettlementStatusFailed  SettlementStatus = "failed"
)

// Settlement is a payment applied against an account balance.
// Only successful settlements participate in balance math.
type Settlement struct {
	ID              int64
	AccountID       string
	Service         Service
	Amount          Money
	Method          string
	Reference       string
	Status          SettlementStatus
	RelatedChargeID *int64
	CreatedAt       time.Time
}

// ParseChargeStatus maps a stored status string to a ChargeStatus.
func ParseChargeStatus(raw string) (ChargeStatus, error) {
	switch s := ChargeStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case ChargeStatusPending, ChargeStatusPaid, ChargeStatusOverdue, ChargeStatusVoid:
		return s, nil
	case "outstanding", "unpaid":
		return ChargeStatusPending, nil
	case "cancelled", "canceled":
		return ChargeStatusVoid, nil
	}
	return "", fmt.Errorf("ledger: unknown charge status %q", raw)
}

// ParseSettlementStatus maps a stored status string to a SettlementStatus.
func ParseSettlementStatus(raw string) (SettlementStatus, error) {
	switch s := SettlementStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case SettlementStatusPending, SettlementStatusSuccess, SettlementStatusFailed:
		return s, nil
	case "completed":
		return SettlementStatusSuccess, nil
	}
	return "", fmt.Errorf("ledger: unknown settlement status %q", raw)
}

// SortCharges orders charges by CreatedAt ascending, ties by ID ascending.
func SortCharges(charges []Charge) {
	sort.SliceStable(charges, func(i, j int) bool {
		if !charges[i].CreatedAt.Equal(charges[j].CreatedAt) {
			return charges[i].CreatedAt.Before(charges[j].CreatedAt)
		}
		return charges[i].ID < charges[j].ID
	})
}

// SortSettlements orders settlements by CreatedAt ascending, ties by ID ascending.
func SortSettlements(settlements []Settlement) {
	sort.SliceStable(settlements, func(i, j int) bool {
		if !settlements[i].CreatedAt.Equal(settlements[j].CreatedAt) {
			return settlements[i].CreatedAt.Before(settlements[j].CreatedAt)
		}
		return settlements[i].ID < settlements[j].ID
	})
}
