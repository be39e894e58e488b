package ledger

// Balance is the reckoning of an account over one period.
// Closing always equals Opening + Charges - Settlements.
type Balance struct {
	Opening     Money
	Charges     Money
	Settlements Money
	Closing     Money
}

// NewBalance derives the closing balance from its components.
func NewBalance(opening, charges, settlements Money) Balance {
	return Balance{
		Opening:     opening,
		Charges:     charges,
		Settlements: settlements,
		Closing:     opening.Add(charges).Sub(settlements),
	}
}

// OpeningOnly is the balance of a window with no activity.
func OpeningOnly(opening Money) Balance {
	return NewBalance(opening, 0, 0)
}

// ServiceBalance pairs a service with its balance for a period.
type ServiceBalance struct {
	Service Service
	Balance Balance
}

// SumClosing adds up the closing balances of a per-service breakdown.
func SumClosing(balances []ServiceBalance) Money {
	var total Money
	for _, b := range balances {
		total = total.Add(b.Balance.Closing)
	}
	return total
}
