package ledger

import (
	"sort"
	"time"
)

// AgeBucket identifies one column of an aging snapshot.
type AgeBucket int

const (
	BucketCurrent AgeBucket = iota
	Bucket30
	Bucket60
	Bucket90
	Bucket120Plus
)

// ClassifyAge maps days past due to a bucket. Not yet due (or due today) is
// current; 1-30 days, 31-60, 61-120 and beyond 120 fill the remaining columns.
func ClassifyAge(daysOverdue int) AgeBucket {
	switch {
	case daysOverdue <= 0:
		return BucketCurrent
	case daysOverdue <= 30:
		return Bucket30
	case daysOverdue <= 60:
		return Bucket60
	case daysOverdue <= 120:
		return Bucket90
	default:
		return Bucket120Plus
	}
}

// DaysOverdue counts calendar days from due to asOf in loc. Dates are compared
// at day granularity so a charge due today is not yet overdue.
func DaysOverdue(due, asOf time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	d := due.In(loc)
	a := asOf.In(loc)
	dueDay := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	asOfDay := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	return int(asOfDay.Sub(dueDay).Hours() / 24)
}

// AgingSnapshot splits an outstanding balance by how long it has been overdue.
type AgingSnapshot struct {
	Current     Money
	Days30      Money
	Days60      Money
	Days90      Money
	Days120Plus Money
}

// Total sums all buckets.
func (a AgingSnapshot) Total() Money {
	return Sum(a.Current, a.Days30, a.Days60, a.Days90, a.Days120Plus)
}

func (a *AgingSnapshot) add(bucket AgeBucket, amount Money) {
	switch bucket {
	case BucketCurrent:
		a.Current = a.Current.Add(amount)
	case Bucket30:
		a.Days30 = a.Days30.Add(amount)
	case Bucket60:
		a.Days60 = a.Days60.Add(amount)
	case Bucket90:
		a.Days90 = a.Days90.Add(amount)
	default:
		a.Days120Plus = a.Days120Plus.Add(amount)
	}
}

// BuildAging distributes closing across buckets using the charges known at
// asOf. A credit (negative) closing yields empty buckets and a positive credit
// amount. Otherwise the buckets always sum to closing: the outstanding amount
// is attributed to the most recently due charges first, unpaid charges ahead
// of settled ones, and whatever no charge explains lands in current.
func BuildAging(closing Money, charges []Charge, asOf time.Time, loc *time.Location) (AgingSnapshot, Money) {
	if closing.IsNegative() {
		return AgingSnapshot{}, closing.Neg()
	}

	var outstanding, settled []Charge
	for _, c := range charges {
		if !c.CountsTowardBalance() || c.CreatedAt.After(asOf) || c.Amount <= 0 {
			continue
		}
		if c.OutstandingAt(asOf) {
			outstanding = append(outstanding, c)
		} else {
			settled = append(settled, c)
		}
	}
	newestDueFirst(outstanding)
	newestDueFirst(settled)

	var snap AgingSnapshot
	remaining := closing
	for _, group := range [][]Charge{outstanding, settled} {
		for _, c := range group {
			if remaining.IsZero() {
				break
			}
			portion := c.Amount.Min(remaining)
			snap.add(ClassifyAge(DaysOverdue(agingDate(c), asOf, loc)), portion)
			remaining = remaining.Sub(portion)
		}
	}
	if !remaining.IsZero() {
		snap.add(BucketCurrent, remaining)
	}
	return snap, 0
}

// agingDate is the date a charge ages from. Undated charges fall back to the
// end of their billing period, then to their creation time.
func agingDate(c Charge) time.Time {
	switch {
	case !c.DueDate.IsZero():
		return c.DueDate
	case !c.BillingPeriodEnd.IsZero():
		return c.BillingPeriodEnd
	default:
		return c.CreatedAt
	}
}

func newestDueFirst(charges []Charge) {
	sort.SliceStable(charges, func(i, j int) bool {
		di, dj := agingDate(charges[i]), agingDate(charges[j])
		if !di.Equal(dj) {
			return di.After(dj)
		}
		return charges[i].ID > charges[j].ID
	})
}
