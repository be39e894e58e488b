package memory

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ledger "municipal-portal/internal/ledger/domain"
)

type seedFile struct {
	Accounts []seedAccount `yaml:"accounts"`
	Bills    []seedBill    `yaml:"bills"`
	Payments []seedPayment `yaml:"payments"`
}

type seedAccount struct {
	Number     string `yaml:"account_number"`
	HolderName string `yaml:"holder_name"`
}

type seedBill struct {
	ID                 int64  `yaml:"id"`
	AccountNumber      string `yaml:"account_number"`
	Service            string `yaml:"service"`
	Amount             string `yaml:"amount"`
	BillingPeriodStart string `yaml:"billing_period_start"`
	BillingPeriodEnd   string `yaml:"billing_period_end"`
	DueDate            string `yaml:"due_date"`
	Status             string `yaml:"status"`
	PaidAt             string `yaml:"paid_at"`
	CreatedAt          string `yaml:"created_at"`
}

type seedPayment struct {
	ID            int64  `yaml:"id"`
	AccountNumber string `yaml:"account_number"`
	Service       string `yaml:"service"`
	Amount        string `yaml:"amount"`
	Method        string `yaml:"payment_method"`
	Reference     string `yaml:"payment_reference"`
	Status        string `yaml:"status"`
	BillID        *int64 `yaml:"bill_id"`
	CreatedAt     string `yaml:"created_at"`
}

// LoadFile seeds a new store from a YAML fixture file. Date-only values are
// read as midnight in loc.
func LoadFile(path string, loc *time.Location) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("memory store: open seed: %w", err)
	}
	defer f.Close()
	return Load(f, loc)
}

// Load seeds a new store from YAML.
func Load(r io.Reader, loc *time.Location) (*Store, error) {
	if loc == nil {
		loc = time.UTC
	}
	var seed seedFile
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil && err != io.EOF {
		return nil, fmt.Errorf("memory store: decode seed: %w", err)
	}

	store := NewStore()
	for _, a := range seed.Accounts {
		if err := store.AddAccount(Account{Number: a.Number, HolderName: a.HolderName}); err != nil {
			return nil, err
		}
	}
	for i, b := range seed.Bills {
		charge, err := b.toCharge(loc)
		if err != nil {
			return nil, fmt.Errorf("memory store: bill %d: %w", i, err)
		}
		if err := store.AddCharge(charge); err != nil {
			return nil, fmt.Errorf("memory store: bill %d: %w", i, err)
		}
	}
	for i, p := range seed.Payments {
		settlement, err := p.toSettlement(loc)
		if err != nil {
			return nil, fmt.Errorf("memory store: payment %d: %w", i, err)
		}
		if err := store.AddSettlement(settlement); err != nil {
			return nil, fmt.Errorf("memory store: payment %d: %w", i, err)
		}
	}
	return store, nil
}

func (b seedBill) toCharge(loc *time.Location) (ledger.Charge, error) {
	service := ledger.ServiceFromTag(b.Service)
	amount, err := ledger.ParseMoney(b.Amount)
	if err != nil {
		return ledger.Charge{}, err
	}
	status, err := ledger.ParseChargeStatus(b.Status)
	if err != nil {
		return ledger.Charge{}, err
	}
	charge := ledger.Charge{
		ID:        b.ID,
		AccountID: b.AccountNumber,
		Service:   service,
		Amount:    amount,
		Status:    status,
	}
	if charge.BillingPeriodStart, err = parseSeedTime(b.BillingPeriodStart, loc); err != nil {
		return ledger.Charge{}, err
	}
	if charge.BillingPeriodEnd, err = parseSeedTime(b.BillingPeriodEnd, loc); err != nil {
		return ledger.Charge{}, err
	}
	if charge.DueDate, err = parseSeedTime(b.DueDate, loc); err != nil {
		return ledger.Charge{}, err
	}
	if charge.CreatedAt, err = parseSeedTime(b.CreatedAt, loc); err != nil {
		return ledger.Charge{}, err
	}
	if b.PaidAt != "" {
		paid, err := parseSeedTime(b.PaidAt, loc)
		if err != nil {
			return ledger.Charge{}, err
		}
		charge.PaidAt = &paid
	}
	return charge, nil
}

func (p seedPayment) toSettlement(loc *time.Location) (ledger.Settlement, error) {
	service := ledger.ServiceFromTag(p.Service)
	amount, err := ledger.ParseMoney(p.Amount)
	if err != nil {
		return ledger.Settlement{}, err
	}
	status, err := ledger.ParseSettlementStatus(p.Status)
	if err != nil {
		return ledger.Settlement{}, err
	}
	createdAt, err := parseSeedTime(p.CreatedAt, loc)
	if err != nil {
		return ledger.Settlement{}, err
	}
	return ledger.Settlement{
		ID:              p.ID,
		AccountID:       p.AccountNumber,
		Service:         service,
		Amount:          amount,
		Method:          p.Method,
		Reference:       p.Reference,
		Status:          status,
		RelatedChargeID: p.BillID,
		CreatedAt:       createdAt,
	}, nil
}

func parseSeedTime(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q", raw)
	}
	return t, nil
}
